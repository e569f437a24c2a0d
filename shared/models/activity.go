package models

import "time"

type ActivityAction string

const (
	ActionCreated  ActivityAction = "created"
	ActionUpdated  ActivityAction = "updated"
	ActionDeleted  ActivityAction = "deleted"
	ActionAssigned ActivityAction = "assigned"
	ActionMoved    ActivityAction = "moved"
)

// Activity is an append-only record of one state-changing operation.
// TaskTitle is a snapshot taken at the time of the change.
type Activity struct {
	ID         string         `json:"id"`
	Action     ActivityAction `json:"action"`
	TaskID     string         `json:"taskId"`
	TaskTitle  string         `json:"taskTitle"`
	UserID     string         `json:"userId"`
	UserName   string         `json:"userName"`
	Details    string         `json:"details"`
	Resolution string         `json:"resolution,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}
