package models

// StackResourceType is the resource type CloudFormation uses for the stack itself.
const StackResourceType = "AWS::CloudFormation::Stack"

const StatusUpdateComplete = "UPDATE_COMPLETE"
const StatusUpdateCompleteCleanupInProgress = "UPDATE_COMPLETE_CLEANUP_IN_PROGRESS"
const StatusRollbackPrefix = "UPDATE_ROLLBACK"

// DefaultSuccessStatuses lists the stack states that mark an update as finished.
var DefaultSuccessStatuses = []string{
	StatusUpdateComplete,
	StatusUpdateCompleteCleanupInProgress,
}
