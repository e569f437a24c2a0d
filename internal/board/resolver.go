package board

import (
	"context"
	"fmt"

	"github.com/chepyr/go-task-board/shared/models"
	"github.com/sirupsen/logrus"
)

type Strategy string

const (
	// StrategyMerge keeps the client's fields but falls back to the stored
	// description when the client sent none.
	StrategyMerge Strategy = "merge"
	// StrategyOverwrite takes every field the client sent.
	StrategyOverwrite Strategy = "overwrite"
)

func (s Strategy) IsValid() bool {
	return s == StrategyMerge || s == StrategyOverwrite
}

// ResolveRecord computes the record to persist after a conflict. The merge
// is per field, it never looks inside text content. Fields the client did
// not send are inherited from current.
func ResolveRecord(current *models.Task, attempt Attempt, strategy Strategy) (*models.Task, error) {
	switch strategy {
	case StrategyOverwrite:
		return attempt.Changes.applyTo(current), nil
	case StrategyMerge:
		c := attempt.Changes
		if c.Description != nil && *c.Description == "" {
			c.Description = nil
		}
		return c.applyTo(current), nil
	default:
		return nil, invalidField("unknown resolution strategy %q", strategy)
	}
}

// Resolve applies the client's attempt on top of the record as stored now,
// using the chosen strategy. The write is guarded on the version read here;
// if the task moves again before the commit a fresh *ConflictError is
// returned and the caller has to resolve again.
func (s *Service) Resolve(ctx context.Context, actor Actor, taskID string, attempt Attempt, strategy Strategy) (*models.Task, error) {
	if !strategy.IsValid() {
		return nil, invalidField("unknown resolution strategy %q", strategy)
	}
	attempt.TaskID = taskID

	current, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	proposed, err := ResolveRecord(current, attempt, strategy)
	if err != nil {
		return nil, err
	}
	next, err := s.prepare(ctx, current, proposed)
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, current, next); err != nil {
		if err != errVersionMoved {
			return nil, err
		}
		latest, err := s.load(ctx, taskID)
		if err != nil {
			return nil, err
		}
		return nil, &ConflictError{Current: latest, Attempted: attempt}
	}

	s.log.WithFields(logrus.Fields{
		"event_id": "TASK_CONFLICT_RESOLVED",
		"task_id":  taskID,
		"version":  next.Version,
		"strategy": strategy,
	}).Info("conflict resolved")
	s.record(ctx, actor, models.ActionUpdated, next,
		fmt.Sprintf("Resolved conflict using %s strategy", strategy), string(strategy))
	s.notifier.Notify(EventTaskUpdated, next)
	return next, nil
}
