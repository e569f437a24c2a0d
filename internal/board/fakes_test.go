package board

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chepyr/go-task-board/internal/db"
	"github.com/chepyr/go-task-board/shared/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// memTasks is an in-memory record store with the same contract as
// db.TaskRepository.
type memTasks struct {
	mutex  sync.Mutex
	tasks  map[string]*models.Task
	nextID int

	// beforeUpdate runs inside UpdateIfVersion before the version check,
	// letting tests interleave a competing writer.
	beforeUpdate func(m *memTasks)
	listErr      error
	updates      int
}

func newMemTasks() *memTasks {
	return &memTasks{tasks: make(map[string]*models.Task)}
}

func (m *memTasks) Create(ctx context.Context, task *models.Task) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, t := range m.tasks {
		if t.Title == task.Title {
			return db.ErrDuplicateTitle
		}
	}
	if task.ID == "" {
		m.nextID++
		task.ID = fmt.Sprintf("task-%d", m.nextID)
	}
	m.tasks[task.ID] = task.Clone()
	return nil
}

func (m *memTasks) GetByID(ctx context.Context, id string) (*models.Task, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return t.Clone(), nil
}

func (m *memTasks) FindByTitle(ctx context.Context, title string) (*models.Task, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, t := range m.tasks {
		if t.Title == title {
			return t.Clone(), nil
		}
	}
	return nil, nil
}

func (m *memTasks) UpdateIfVersion(ctx context.Context, task *models.Task, expectedVersion int64) error {
	if hook := m.beforeUpdate; hook != nil {
		hook(m)
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	stored, ok := m.tasks[task.ID]
	if !ok {
		return db.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return db.ErrVersionMismatch
	}
	m.tasks[task.ID] = task.Clone()
	m.updates++
	return nil
}

func (m *memTasks) Delete(ctx context.Context, id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *memTasks) List(ctx context.Context, filter db.TaskFilter) ([]*models.Task, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.Task
	for _, t := range m.tasks {
		if filter.AssignedTo != "" && t.AssignedTo != filter.AssignedTo {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// bump simulates another writer committing directly to the store.
func (m *memTasks) bump(id string, mutate func(t *models.Task)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	t := m.tasks[id]
	mutate(t)
	t.Version++
}

func containsStatus(list []models.TaskStatus, s models.TaskStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type memUsers struct {
	users []*models.User
	err   error
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memUsers) List(ctx context.Context) ([]*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users, nil
}

type recordingSink struct {
	mutex      sync.Mutex
	activities []*models.Activity
	err        error
}

func (r *recordingSink) Record(ctx context.Context, a *models.Activity) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.activities = append(r.activities, a)
	return r.err
}

func (r *recordingSink) last() *models.Activity {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if len(r.activities) == 0 {
		return nil
	}
	return r.activities[len(r.activities)-1]
}

type recordingNotifier struct {
	mutex  sync.Mutex
	events []string
}

func (r *recordingNotifier) Notify(event string, payload any) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events = append(r.events, event)
}

type fixture struct {
	svc      *Service
	tasks    *memTasks
	users    *memUsers
	sink     *recordingSink
	notifier *recordingNotifier
	logs     *test.Hook

	clockMu sync.Mutex
	clock   time.Time
}

// tick advances the fake clock by one second.
func (f *fixture) tick() time.Time {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

var (
	ann   = &models.User{ID: "u-ann", Name: "Ann"}
	bob   = &models.User{ID: "u-bob", Name: "Bob"}
	carol = &models.User{ID: "u-carol", Name: "Carol"}
	actor = Actor{ID: "u-ann", Name: "Ann"}
)

func newFixture() *fixture {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f := &fixture{
		tasks:    newMemTasks(),
		users:    &memUsers{users: []*models.User{ann, bob, carol}},
		sink:     &recordingSink{},
		notifier: &recordingNotifier{},
		logs:     hook,
		clock:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(Deps{
		Tasks:    f.tasks,
		Users:    f.users,
		Activity: f.sink,
		Notifier: f.notifier,
		Logger:   logger,
		Now:      f.tick,
	})
	return f
}

// seed stores a task directly at the given version.
func (f *fixture) seed(title string, status models.TaskStatus, assignee *models.User, version int64) *models.Task {
	now := f.tick()
	t := &models.Task{
		Title:          title,
		Description:    "seeded",
		Status:         status,
		Priority:       models.PriorityLow,
		AssignedTo:     assignee.ID,
		AssignedToName: assignee.Name,
		CreatedBy:      ann.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        version,
	}
	if err := f.tasks.Create(context.Background(), t); err != nil {
		panic(err)
	}
	return t
}

var errBoom = errors.New("boom")

func ptr[T any](v T) *T { return &v }
