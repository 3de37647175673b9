// Package parser decodes CloudFormation stack event notifications delivered through SNS to SQS.
//
// A message body is an SNS envelope (JSON) whose Message field holds newline separated
// Key='Value' lines, for example:
//
//	StackId='arn:aws:cloudformation:eu-west-1:123456789012:stack/app1/...'
//	Timestamp='2015-06-03T09:57:47.123Z'
//	LogicalResourceId='app1'
//	ResourceStatus='UPDATE_COMPLETE'
//	ResourceType='AWS::CloudFormation::Stack'
//	StackName='app1'
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shini4i/deployment-notifier/internal/models"
)

// TimestampLayout is the format of the envelope Timestamp field. Fractional seconds of any
// precision are accepted after the seconds field, the zone must be a literal Z.
const TimestampLayout = "2006-01-02T15:04:05Z"

const (
	keyStackName            = "StackName"
	keyResourceType         = "ResourceType"
	keyResourceStatus       = "ResourceStatus"
	keyResourceStatusReason = "ResourceStatusReason"
)

var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrIncompleteEvent   = errors.New("incomplete event")
	ErrBadTimestamp      = errors.New("bad timestamp")
)

// Envelope is the outer SNS notification record.
type Envelope struct {
	Timestamp  string
	Message    string
	Attributes map[string]any
}

// Parse decodes a raw queue message body into a StackEvent.
func Parse(rawBody string) (models.StackEvent, error) {
	envelope, err := DecodeEnvelope(rawBody)
	if err != nil {
		return models.StackEvent{}, err
	}

	pairs := Tokenize(envelope.Message)

	event := models.StackEvent{
		StackName:            pairs[keyStackName],
		ResourceType:         pairs[keyResourceType],
		ResourceStatus:       pairs[keyResourceStatus],
		ResourceStatusReason: pairs[keyResourceStatusReason],
		Attributes:           pairs,
		MessageId:            stringAttribute(envelope.Attributes, "MessageId"),
		TopicArn:             stringAttribute(envelope.Attributes, "TopicArn"),
		Subject:              stringAttribute(envelope.Attributes, "Subject"),
		Type:                 stringAttribute(envelope.Attributes, "Type"),
	}

	var missing []string
	for _, key := range []string{keyStackName, keyResourceStatus, keyResourceType} {
		if pairs[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return models.StackEvent{}, fmt.Errorf("%w: missing %s", ErrIncompleteEvent, strings.Join(missing, ", "))
	}

	event.Timestamp, err = time.Parse(TimestampLayout, envelope.Timestamp)
	if err != nil {
		return models.StackEvent{}, fmt.Errorf("%w: %q does not match %s", ErrBadTimestamp, envelope.Timestamp, TimestampLayout)
	}

	return event, nil
}

// DecodeEnvelope decodes the outer JSON record and strips the quote marks the provider wraps scalars in.
func DecodeEnvelope(rawBody string) (Envelope, error) {
	var attributes map[string]any
	if err := json.Unmarshal([]byte(rawBody), &attributes); err != nil {
		return Envelope{}, fmt.Errorf("%w: %s", ErrMalformedEnvelope, err)
	}
	if attributes == nil {
		return Envelope{}, fmt.Errorf("%w: body is not a JSON object", ErrMalformedEnvelope)
	}

	for key, value := range attributes {
		if s, ok := value.(string); ok {
			attributes[key] = StripQuotes(s)
		}
	}

	message, ok := attributes["Message"].(string)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: Message field is missing", ErrMalformedEnvelope)
	}
	timestamp, ok := attributes["Timestamp"].(string)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: Timestamp field is missing", ErrMalformedEnvelope)
	}

	return Envelope{
		Timestamp:  timestamp,
		Message:    message,
		Attributes: attributes,
	}, nil
}

// Tokenize splits a notification message into its key/value pairs.
// Lines without '=' are skipped. A value may itself contain '='; only the first one separates.
func Tokenize(message string) map[string]string {
	pairs := make(map[string]string)
	for _, line := range strings.Split(message, "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = StripQuotes(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		pairs[key] = StripQuotes(strings.TrimSpace(value))
	}
	return pairs
}

// StripQuotes removes surrounding single quotes. Applying it twice gives the same result as once.
func StripQuotes(value string) string {
	return strings.Trim(value, "'")
}

func stringAttribute(attributes map[string]any, key string) string {
	value, _ := attributes[key].(string)
	return value
}
