// Package board implements optimistic concurrency control for the shared
// task board: version-guarded edits, explicit conflict resolution and
// load-balanced assignment.
//
// The package never caches task state. Every operation re-reads the record
// store and commits through a compare-and-swap on the task version.
package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chepyr/go-task-board/internal/db"
	"github.com/chepyr/go-task-board/shared/models"
	"github.com/sirupsen/logrus"
)

const (
	EventTaskCreated = "task_created"
	EventTaskUpdated = "task_updated"
	EventTaskDeleted = "task_deleted"

	maxTitleLength       = 200
	maxDescriptionLength = 1000

	// a failed conditional update is retried at most once
	maxCommitAttempts = 2
)

// UserDirectory is the read-only view of users the board needs.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
}

// ActivitySink receives one event per committed write. Errors are logged
// and never fail the mutation.
type ActivitySink interface {
	Record(ctx context.Context, activity *models.Activity) error
}

// Notifier pushes real-time events to connected clients, best effort.
type Notifier interface {
	Notify(event string, payload any)
}

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   string
	Name string
}

type Deps struct {
	Tasks    db.TaskRepositoryInterface
	Users    UserDirectory
	Activity ActivitySink
	Notifier Notifier
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

type Service struct {
	tasks    db.TaskRepositoryInterface
	users    UserDirectory
	activity ActivitySink
	notifier Notifier
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		tasks:    d.Tasks,
		users:    d.Users,
		activity: d.Activity,
		notifier: d.Notifier,
		log:      d.Logger,
		now:      d.Now,
	}
	if s.activity == nil {
		s.activity = discardSink{}
	}
	if s.notifier == nil {
		s.notifier = discardNotifier{}
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// NewTask holds the client-supplied fields of a task being created.
type NewTask struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      models.TaskStatus `json:"status"`
	Priority    models.Priority   `json:"priority"`
	AssignedTo  string            `json:"assignedTo"`
}

func (s *Service) Create(ctx context.Context, actor Actor, in NewTask) (*models.Task, error) {
	status := models.TaskStatusToDo
	if in.Status != "" {
		if status = models.NormalizeStatus(string(in.Status)); status == "" {
			return nil, invalidField("unknown status %q", in.Status)
		}
	}
	priority := models.PriorityMedium
	if in.Priority != "" {
		if priority = in.Priority; !priority.IsValid() {
			return nil, invalidField("unknown priority %q", in.Priority)
		}
	}
	now := s.now()
	proposed := &models.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		AssignedTo:  in.AssignedTo,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	task, err := s.prepare(ctx, nil, proposed)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, storeError("create task", err)
	}

	s.log.WithFields(logrus.Fields{"event_id": "TASK_CREATED", "task_id": task.ID, "user_id": actor.ID}).
		Info("task created")
	s.record(ctx, actor, models.ActionCreated, task,
		fmt.Sprintf("Created task and assigned to %s", task.AssignedToName), "")
	s.notifier.Notify(EventTaskCreated, task)
	return task, nil
}

func (s *Service) Get(ctx context.Context, taskID string) (*models.Task, error) {
	return s.load(ctx, taskID)
}

// List returns every task, newest first.
func (s *Service) List(ctx context.Context) ([]*models.Task, error) {
	tasks, err := s.tasks.List(ctx, db.TaskFilter{})
	if err != nil {
		return nil, storeError("list tasks", err)
	}
	return tasks, nil
}

// Delete removes the task. A second delete of the same id returns
// ErrNotFound.
func (s *Service) Delete(ctx context.Context, actor Actor, taskID string) error {
	current, err := s.load(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return storeError("delete task", err)
	}

	s.log.WithFields(logrus.Fields{"event_id": "TASK_DELETED", "task_id": taskID, "user_id": actor.ID}).
		Info("task deleted")
	s.record(ctx, actor, models.ActionDeleted, current, "Deleted task", "")
	s.notifier.Notify(EventTaskDeleted, current)
	return nil
}

func (s *Service) load(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, storeError("load task", err)
	}
	return task, nil
}

// prepare validates proposed against the record it replaces and fills in
// the assignee display name. current is nil for a new task.
func (s *Service) prepare(ctx context.Context, current, proposed *models.Task) (*models.Task, error) {
	next := proposed.Clone()
	selfID := ""
	if current != nil {
		selfID = current.ID
	}

	next.Title = strings.TrimSpace(next.Title)
	if err := s.checkTitle(ctx, next.Title, selfID); err != nil {
		return nil, err
	}
	next.Description = strings.TrimSpace(next.Description)
	if len(next.Description) > maxDescriptionLength {
		return nil, invalidField("description too long (max %d chars)", maxDescriptionLength)
	}
	status := models.NormalizeStatus(string(next.Status))
	if status == "" {
		return nil, invalidField("unknown status %q", next.Status)
	}
	next.Status = status
	if !next.Priority.IsValid() {
		return nil, invalidField("unknown priority %q", next.Priority)
	}

	if current == nil || next.AssignedTo != current.AssignedTo {
		if next.AssignedTo == "" {
			return nil, invalidField("assignedTo is required")
		}
		user, err := s.resolveUser(ctx, next.AssignedTo)
		if err != nil {
			return nil, err
		}
		next.AssignedTo, next.AssignedToName = user.ID, user.Name
		return next, nil
	}

	// same assignee: pick up a rename, keep the cached name if the user is gone
	if next.AssignedTo != "" {
		user, err := s.users.GetByID(ctx, next.AssignedTo)
		switch {
		case err == nil:
			next.AssignedToName = user.Name
		case isNotFound(err):
		default:
			return nil, storeError("resolve assignee", err)
		}
	}
	return next, nil
}

func (s *Service) checkTitle(ctx context.Context, title, selfID string) error {
	if title == "" {
		return invalidField("title cannot be empty")
	}
	if len(title) > maxTitleLength {
		return invalidField("title too long (max %d chars)", maxTitleLength)
	}
	if models.IsReservedTitle(title) {
		return ErrReservedTitle
	}
	existing, err := s.tasks.FindByTitle(ctx, title)
	if err != nil {
		return storeError("check title", err)
	}
	if existing != nil && existing.ID != selfID {
		return ErrDuplicateTitle
	}
	return nil
}

func (s *Service) resolveUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if isNotFound(err) {
		return nil, ErrInvalidReference
	}
	if err != nil {
		return nil, storeError("resolve user", err)
	}
	return user, nil
}

// commit writes next as version current.Version+1, guarded on
// current.Version.
func (s *Service) commit(ctx context.Context, current, next *models.Task) error {
	next.ID = current.ID
	next.CreatedBy = current.CreatedBy
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = s.now()
	next.Version = current.Version + 1

	err := s.tasks.UpdateIfVersion(ctx, next, current.Version)
	switch {
	case err == nil:
		return nil
	case isVersionMismatch(err):
		return errVersionMoved
	default:
		return storeError("update task", err)
	}
}

func (s *Service) record(ctx context.Context, actor Actor, action models.ActivityAction, task *models.Task, details, resolution string) {
	activity := &models.Activity{
		Action:     action,
		TaskID:     task.ID,
		TaskTitle:  task.Title,
		UserID:     actor.ID,
		UserName:   actor.Name,
		Details:    details,
		Resolution: resolution,
		Timestamp:  s.now(),
	}
	if err := s.activity.Record(ctx, activity); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"event_id": "ACTIVITY_DROPPED", "task_id": task.ID}).
			Warn("failed to record activity")
	}
}

type discardSink struct{}

func (discardSink) Record(context.Context, *models.Activity) error { return nil }

type discardNotifier struct{}

func (discardNotifier) Notify(string, any) {}
