package board

import (
	"context"
	"fmt"

	"github.com/chepyr/go-task-board/shared/models"
	"github.com/sirupsen/logrus"
)

// Changes is a partial edit. Nil fields are left as stored.
type Changes struct {
	Title       *string            `json:"title,omitempty"`
	Description *string            `json:"description,omitempty"`
	Status      *models.TaskStatus `json:"status,omitempty"`
	Priority    *models.Priority   `json:"priority,omitempty"`
	AssignedTo  *string            `json:"assignedTo,omitempty"`
}

func (c Changes) applyTo(task *models.Task) *models.Task {
	next := task.Clone()
	if c.Title != nil {
		next.Title = *c.Title
	}
	if c.Description != nil {
		next.Description = *c.Description
	}
	if c.Status != nil {
		next.Status = *c.Status
	}
	if c.Priority != nil {
		next.Priority = *c.Priority
	}
	if c.AssignedTo != nil {
		next.AssignedTo = *c.AssignedTo
	}
	return next
}

// Attempt is an edit together with the version the client last observed.
type Attempt struct {
	TaskID  string `json:"id"`
	Version int64  `json:"version"`
	Changes
}

// Apply commits changes to the task if the client's view is current.
//
// submittedVersion is the version the client last observed; zero forces
// the write without a precondition. A stale version yields a
// *ConflictError and nothing is written. If the conditional update loses
// a race with another writer, the record is re-read once: a versioned edit
// then surfaces the conflict, a forced one is retried a single time.
func (s *Service) Apply(ctx context.Context, actor Actor, taskID string, submittedVersion int64, changes Changes) (*models.Task, error) {
	attempt := Attempt{TaskID: taskID, Version: submittedVersion, Changes: changes}

	for i := 0; i < maxCommitAttempts; i++ {
		current, err := s.load(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if submittedVersion > 0 && current.Version > submittedVersion {
			s.log.WithFields(logrus.Fields{
				"event_id":  "TASK_VERSION_CONFLICT",
				"task_id":   taskID,
				"stored":    current.Version,
				"submitted": submittedVersion,
			}).Info("edit rejected: stale version")
			return nil, &ConflictError{Current: current, Attempted: attempt}
		}

		next, err := s.prepare(ctx, current, changes.applyTo(current))
		if err != nil {
			return nil, err
		}
		err = s.commit(ctx, current, next)
		if err == nil {
			action, details := describeChange(current, next)
			s.log.WithFields(logrus.Fields{
				"event_id": "TASK_UPDATED",
				"task_id":  taskID,
				"version":  next.Version,
				"action":   action,
			}).Info("task updated")
			s.record(ctx, actor, action, next, details, "")
			s.notifier.Notify(EventTaskUpdated, next)
			return next, nil
		}
		if err != errVersionMoved {
			return nil, err
		}
		s.log.WithFields(logrus.Fields{"event_id": "TASK_CAS_RETRY", "task_id": taskID}).
			Debug("conditional update lost a race, re-reading")
	}

	latest, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return nil, &ConflictError{Current: latest, Attempted: attempt}
}

// describeChange derives the activity kind from what changed. A status
// change wins over a reassignment.
func describeChange(before, after *models.Task) (models.ActivityAction, string) {
	switch {
	case before.Status != after.Status:
		return models.ActionMoved, fmt.Sprintf("Moved from %s to %s", before.Status, after.Status)
	case before.AssignedTo != after.AssignedTo:
		return models.ActionAssigned, fmt.Sprintf("Reassigned to %s", after.AssignedToName)
	default:
		return models.ActionUpdated, "Updated task"
	}
}
