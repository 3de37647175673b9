package models

import "time"

// StackEvent is a single CloudFormation stack event decoded from a queue message.
type StackEvent struct {
	Timestamp            time.Time         `json:"timestamp"`
	StackName            string            `json:"stack_name"`
	ResourceType         string            `json:"resource_type"`
	ResourceStatus       string            `json:"resource_status"`
	ResourceStatusReason string            `json:"resource_status_reason,omitempty"`
	Attributes           map[string]string `json:"attributes,omitempty"`
	MessageId            string            `json:"message_id,omitempty"`
	TopicArn             string            `json:"topic_arn,omitempty"`
	Subject              string            `json:"subject,omitempty"`
	Type                 string            `json:"type,omitempty"`
}

// IsStackResource reports whether the event describes the stack itself rather than a nested resource.
func (event *StackEvent) IsStackResource(stackResourceType string) bool {
	return event.ResourceType == stackResourceType
}
