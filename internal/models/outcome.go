package models

import "time"

type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeAborted   Outcome = "aborted"
)

// IsTerminal reports whether the outcome ends a watch with a known verdict.
func (outcome Outcome) IsTerminal() bool {
	return outcome == OutcomeSucceeded || outcome == OutcomeFailed
}

// WatchSession is the state of one watch invocation.
type WatchSession struct {
	Id              string    `json:"id"`
	TargetStackName string    `json:"target_stack_name"`
	StartTime       time.Time `json:"start_time"`
	Outcome         Outcome   `json:"outcome"`
	Reason          string    `json:"reason,omitempty"`
}

// Result is what a watch reports back to its caller.
type Result struct {
	SessionId      string    `json:"session_id"`
	Outcome        Outcome   `json:"outcome"`
	StackName      string    `json:"stack_name"`
	ResourceStatus string    `json:"resource_status,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitzero"`
}
