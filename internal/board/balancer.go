package board

import (
	"context"
	"fmt"

	"github.com/chepyr/go-task-board/internal/db"
	"github.com/chepyr/go-task-board/shared/models"
	"github.com/sirupsen/logrus"
)

// Workload is a user with the number of unfinished tasks assigned to them.
type Workload struct {
	User   *models.User
	Active int
}

// SelectAssignee picks the user with the fewest active tasks. Ties go to
// the user listed first, so the result depends only on listing order and
// never on id ordering.
func SelectAssignee(users []*models.User, active map[string]int) (*models.User, int, error) {
	if len(users) == 0 {
		return nil, 0, ErrNoEligibleAssignee
	}
	best := 0
	for i := 1; i < len(users); i++ {
		if active[users[i].ID] < active[users[best].ID] {
			best = i
		}
	}
	return users[best], active[users[best].ID], nil
}

// Workloads lists every user in directory order with their active count.
func (s *Service) Workloads(ctx context.Context) ([]Workload, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, storeError("list users", err)
	}
	counts, err := s.activeCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Workload, 0, len(users))
	for _, u := range users {
		out = append(out, Workload{User: u, Active: counts[u.ID]})
	}
	return out, nil
}

func (s *Service) activeCounts(ctx context.Context) (map[string]int, error) {
	tasks, err := s.tasks.List(ctx, db.TaskFilter{Statuses: models.ActiveStatuses()})
	if err != nil {
		return nil, storeError("count active tasks", err)
	}
	counts := make(map[string]int)
	for _, t := range tasks {
		if t.AssignedTo != "" {
			counts[t.AssignedTo]++
		}
	}
	return counts, nil
}

// SmartAssign reassigns the task to the least-loaded user.
//
// With expectedVersion zero the reassignment is server-initiated and carries
// no client precondition; it is still committed through the version guard
// and retried once if it loses a race. A positive expectedVersion makes it
// behave like a client edit and return *ConflictError when stale.
func (s *Service) SmartAssign(ctx context.Context, actor Actor, taskID string, expectedVersion int64) (*models.Task, error) {
	var chosenID string
	for i := 0; i < maxCommitAttempts; i++ {
		current, err := s.load(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if expectedVersion > 0 && current.Version > expectedVersion {
			return nil, &ConflictError{Current: current, Attempted: s.assignAttempt(taskID, expectedVersion, chosenID)}
		}
		users, err := s.users.List(ctx)
		if err != nil {
			return nil, storeError("list users", err)
		}
		counts, err := s.activeCounts(ctx)
		if err != nil {
			return nil, err
		}
		chosen, load, err := SelectAssignee(users, counts)
		if err != nil {
			return nil, err
		}
		chosenID = chosen.ID

		proposed := current.Clone()
		proposed.AssignedTo = chosen.ID
		next, err := s.prepare(ctx, current, proposed)
		if err != nil {
			return nil, err
		}
		err = s.commit(ctx, current, next)
		if err == nil {
			// the task joins the chosen user's load unless it was already theirs
			if current.AssignedTo != chosen.ID && next.Status.IsActive() {
				load++
			}
			s.log.WithFields(logrus.Fields{
				"event_id": "TASK_SMART_ASSIGNED",
				"task_id":  taskID,
				"assignee": chosen.ID,
				"load":     load,
			}).Info("task smart assigned")
			s.record(ctx, actor, models.ActionAssigned, next,
				fmt.Sprintf("Smart assigned to %s (%d active tasks)", next.AssignedToName, load), "")
			s.notifier.Notify(EventTaskUpdated, next)
			return next, nil
		}
		if err != errVersionMoved {
			return nil, err
		}
		if expectedVersion > 0 {
			break
		}
	}

	latest, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return nil, &ConflictError{Current: latest, Attempted: s.assignAttempt(taskID, expectedVersion, chosenID)}
}

func (s *Service) assignAttempt(taskID string, version int64, assignee string) Attempt {
	a := Attempt{TaskID: taskID, Version: version}
	if assignee != "" {
		a.AssignedTo = &assignee
	}
	return a
}
