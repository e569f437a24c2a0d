package models

import (
	"strings"
	"time"
)

type TaskStatus string

const (
	TaskStatusToDo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusDone       TaskStatus = "done"
)

// IsValid reports whether s is one of the board columns.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusToDo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// IsActive reports whether a task in this status counts towards its
// assignee's workload.
func (s TaskStatus) IsActive() bool {
	return s == TaskStatusToDo || s == TaskStatusInProgress
}

// ActiveStatuses lists every non-terminal status.
func ActiveStatuses() []TaskStatus {
	return []TaskStatus{TaskStatusToDo, TaskStatusInProgress}
}

// NormalizeStatus converts various user inputs to standard status values.
// It returns "" for unknown input.
func NormalizeStatus(s string) TaskStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "todo", "to do", "to_do":
		return TaskStatusToDo
	case "in-progress", "in_progress", "inprogress", "in progress":
		return TaskStatusInProgress
	case "done":
		return TaskStatusDone
	default:
		return ""
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ReservedTitles are the raw and display names of the board columns.
// A task may never be titled with one of them.
var ReservedTitles = []string{"todo", "in-progress", "done", "To Do", "In Progress", "Done"}

// IsReservedTitle is case-sensitive: "DONE" is a valid title, "Done" is not.
func IsReservedTitle(title string) bool {
	for _, reserved := range ReservedTitles {
		if title == reserved {
			return true
		}
	}
	return false
}

type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         TaskStatus `json:"status"`
	Priority       Priority   `json:"priority"`
	AssignedTo     string     `json:"assignedTo"`
	AssignedToName string     `json:"assignedToName"`
	CreatedBy      string     `json:"createdBy"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	Version        int64      `json:"version"`
}

// Clone returns a shallow copy; Task has no reference fields.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
