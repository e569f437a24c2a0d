package board

import (
	"context"
	"errors"
	"testing"

	"github.com/chepyr/go-task-board/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_StaleVersionIsConflict(t *testing.T) {
	f := newFixture()
	task := f.seed("Shared", models.TaskStatusToDo, ann, 3)

	_, err := f.svc.Apply(context.Background(), actor, task.ID, 2, Changes{Status: ptr(models.TaskStatusDone)})
	require.ErrorIs(t, err, ErrVersionConflict)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.EqualValues(t, 3, conflict.Current.Version)
	assert.Equal(t, models.TaskStatusToDo, conflict.Current.Status)
	assert.EqualValues(t, 2, conflict.Attempted.Version)
	assert.Equal(t, task.ID, conflict.Attempted.TaskID)
	require.NotNil(t, conflict.Attempted.Status)
	assert.Equal(t, models.TaskStatusDone, *conflict.Attempted.Status)

	stored, _ := f.tasks.GetByID(context.Background(), task.ID)
	assert.EqualValues(t, 3, stored.Version, "conflict must not write")
	assert.Empty(t, f.sink.activities)
}

func TestApply_CurrentVersionApplies(t *testing.T) {
	f := newFixture()
	task := f.seed("Shared", models.TaskStatusToDo, ann, 3)

	updated, err := f.svc.Apply(context.Background(), actor, task.ID, 3, Changes{
		Title:       ptr("Shared v2"),
		Description: ptr("new text"),
		Priority:    ptr(models.PriorityHigh),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 4, updated.Version)
	assert.True(t, updated.UpdatedAt.After(task.UpdatedAt))

	stored, _ := f.tasks.GetByID(context.Background(), task.ID)
	assert.Equal(t, updated, stored)
	assert.Equal(t, "Shared v2", stored.Title)
	assert.Equal(t, "new text", stored.Description)
	assert.Equal(t, models.PriorityHigh, stored.Priority)
	assert.Equal(t, task.CreatedAt, stored.CreatedAt)
	assert.Equal(t, task.CreatedBy, stored.CreatedBy)

	act := f.sink.last()
	assert.Equal(t, models.ActionUpdated, act.Action)
	assert.Equal(t, "Shared v2", act.TaskTitle)
}

func TestApply_VersionMonotonic(t *testing.T) {
	f := newFixture()
	task := f.seed("Counter", models.TaskStatusToDo, ann, 1)

	version := task.Version
	statuses := []models.TaskStatus{models.TaskStatusInProgress, models.TaskStatusDone, models.TaskStatusToDo}
	for i := 0; i < 9; i++ {
		updated, err := f.svc.Apply(context.Background(), actor, task.ID, version, Changes{Status: ptr(statuses[i%3])})
		require.NoError(t, err)
		require.Equal(t, version+1, updated.Version)
		version = updated.Version
	}
	assert.Len(t, f.sink.activities, 9, "exactly one event per write")
}

func TestApply_ZeroVersionForces(t *testing.T) {
	f := newFixture()
	task := f.seed("Forced", models.TaskStatusToDo, ann, 7)

	updated, err := f.svc.Apply(context.Background(), actor, task.ID, 0, Changes{Status: ptr(models.TaskStatusDone)})
	require.NoError(t, err)
	assert.EqualValues(t, 8, updated.Version)
}

func TestApply_OwnTitleIsNotDuplicate(t *testing.T) {
	f := newFixture()
	task := f.seed("Mine", models.TaskStatusToDo, ann, 1)
	f.seed("Theirs", models.TaskStatusToDo, ann, 1)

	_, err := f.svc.Apply(context.Background(), actor, task.ID, 1, Changes{Title: ptr("Mine")})
	require.NoError(t, err)

	_, err = f.svc.Apply(context.Background(), actor, task.ID, 2, Changes{Title: ptr("Theirs")})
	assert.ErrorIs(t, err, ErrDuplicateTitle)

	_, err = f.svc.Apply(context.Background(), actor, task.ID, 2, Changes{Title: ptr("To Do")})
	assert.ErrorIs(t, err, ErrReservedTitle)
}

func TestApply_AssigneeResolution(t *testing.T) {
	f := newFixture()
	task := f.seed("Owned", models.TaskStatusToDo, ann, 1)

	updated, err := f.svc.Apply(context.Background(), actor, task.ID, 1, Changes{AssignedTo: ptr(bob.ID)})
	require.NoError(t, err)
	assert.Equal(t, "Bob", updated.AssignedToName)
	act := f.sink.last()
	assert.Equal(t, models.ActionAssigned, act.Action)
	assert.Equal(t, "Reassigned to Bob", act.Details)

	_, err = f.svc.Apply(context.Background(), actor, task.ID, 2, Changes{AssignedTo: ptr("ghost")})
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestApply_RefreshesRenamedAssignee(t *testing.T) {
	f := newFixture()
	task := f.seed("Renamed", models.TaskStatusToDo, ann, 1)
	f.users.users = []*models.User{{ID: ann.ID, Name: "Ann Smith"}, bob}

	updated, err := f.svc.Apply(context.Background(), actor, task.ID, 1, Changes{Description: ptr("x")})
	require.NoError(t, err)
	assert.Equal(t, "Ann Smith", updated.AssignedToName)
}

func TestApply_KeepsCachedNameWhenAssigneeRemoved(t *testing.T) {
	f := newFixture()
	task := f.seed("Orphaned", models.TaskStatusToDo, carol, 1)
	f.users.users = []*models.User{ann, bob}

	updated, err := f.svc.Apply(context.Background(), actor, task.ID, 1, Changes{Description: ptr("x")})
	require.NoError(t, err)
	assert.Equal(t, "Carol", updated.AssignedToName)
}

func TestApply_MoveEmitsMovedActivity(t *testing.T) {
	f := newFixture()
	task := f.seed("Card", models.TaskStatusToDo, ann, 1)

	_, err := f.svc.Apply(context.Background(), actor, task.ID, 1, Changes{
		Status:     ptr(models.TaskStatusInProgress),
		AssignedTo: ptr(bob.ID),
	})
	require.NoError(t, err)
	act := f.sink.last()
	assert.Equal(t, models.ActionMoved, act.Action)
	assert.Equal(t, "Moved from todo to in-progress", act.Details)
}

func TestApply_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Apply(context.Background(), actor, "missing", 1, Changes{Title: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApply_RaceBetweenReadAndWriteSurfacesConflict(t *testing.T) {
	f := newFixture()
	task := f.seed("Raced", models.TaskStatusToDo, ann, 3)

	raced := false
	f.tasks.beforeUpdate = func(m *memTasks) {
		if !raced {
			raced = true
			m.bump(task.ID, func(t *models.Task) { t.Title = "Other writer" })
		}
	}

	_, err := f.svc.Apply(context.Background(), actor, task.ID, 3, Changes{Title: ptr("Mine")})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.EqualValues(t, 4, conflict.Current.Version)
	assert.Equal(t, "Other writer", conflict.Current.Title)
	assert.Empty(t, f.sink.activities)
}

func TestApply_ForcedWriteRetriesOnce(t *testing.T) {
	f := newFixture()
	task := f.seed("Forced race", models.TaskStatusToDo, ann, 1)

	races := 0
	f.tasks.beforeUpdate = func(m *memTasks) {
		if races == 0 {
			races++
			m.bump(task.ID, func(t *models.Task) {})
		}
	}

	updated, err := f.svc.Apply(context.Background(), actor, task.ID, 0, Changes{Status: ptr(models.TaskStatusDone)})
	require.NoError(t, err)
	assert.EqualValues(t, 3, updated.Version)
}

func TestApply_ForcedWriteSecondCollisionIsConflict(t *testing.T) {
	f := newFixture()
	task := f.seed("Hot", models.TaskStatusToDo, ann, 1)

	f.tasks.beforeUpdate = func(m *memTasks) {
		m.bump(task.ID, func(t *models.Task) {})
	}

	_, err := f.svc.Apply(context.Background(), actor, task.ID, 0, Changes{Status: ptr(models.TaskStatusDone)})
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Zero(t, f.tasks.updates)
}

func TestApply_ConcurrentWritersExactlyOneWins(t *testing.T) {
	f := newFixture()
	task := f.seed("Contended", models.TaskStatusToDo, ann, 5)

	results := make(chan error, 2)
	start := make(chan struct{})
	for _, title := range []string{"A wins", "B wins"} {
		go func(title string) {
			<-start
			_, err := f.svc.Apply(context.Background(), actor, task.ID, 5, Changes{Title: ptr(title)})
			results <- err
		}(title)
	}
	close(start)

	var ok, conflicts int
	for i := 0; i < 2; i++ {
		err := <-results
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrVersionConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	stored, _ := f.tasks.GetByID(context.Background(), task.ID)
	assert.EqualValues(t, 6, stored.Version)
}
