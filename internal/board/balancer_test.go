package board

import (
	"context"
	"errors"
	"testing"

	"github.com/chepyr/go-task-board/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectAssignee(t *testing.T) {
	users := []*models.User{ann, bob, carol}

	tests := []struct {
		name     string
		active   map[string]int
		wantUser string
		wantLoad int
	}{
		{name: "least loaded", active: map[string]int{"u-ann": 2, "u-bob": 2, "u-carol": 1}, wantUser: "u-carol", wantLoad: 1},
		{name: "tie goes to first listed", active: map[string]int{"u-ann": 2, "u-bob": 2, "u-carol": 2}, wantUser: "u-ann", wantLoad: 2},
		{name: "user without tasks counts as zero", active: map[string]int{"u-ann": 1, "u-carol": 1}, wantUser: "u-bob", wantLoad: 0},
		{name: "empty board", active: map[string]int{}, wantUser: "u-ann", wantLoad: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				got, load, err := SelectAssignee(users, tt.active)
				require.NoError(t, err)
				assert.Equal(t, tt.wantUser, got.ID)
				assert.Equal(t, tt.wantLoad, load)
			}
		})
	}
}

func TestSelectAssignee_NoUsers(t *testing.T) {
	_, _, err := SelectAssignee(nil, map[string]int{})
	assert.ErrorIs(t, err, ErrNoEligibleAssignee)
}

func TestSmartAssign_PicksLeastLoaded(t *testing.T) {
	f := newFixture()
	target := f.seed("Target", models.TaskStatusToDo, ann, 1)
	f.seed("Ann 2", models.TaskStatusInProgress, ann, 1)
	f.seed("Bob 1", models.TaskStatusToDo, bob, 1)
	f.seed("Bob 2", models.TaskStatusToDo, bob, 1)
	f.seed("Carol 1", models.TaskStatusToDo, carol, 1)
	f.seed("Carol done", models.TaskStatusDone, carol, 1)

	assigned, err := f.svc.SmartAssign(context.Background(), actor, target.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, carol.ID, assigned.AssignedTo)
	assert.Equal(t, "Carol", assigned.AssignedToName)
	assert.EqualValues(t, 2, assigned.Version)

	act := f.sink.last()
	assert.Equal(t, models.ActionAssigned, act.Action)
	assert.Equal(t, "Smart assigned to Carol (2 active tasks)", act.Details)
}

func TestSmartAssign_NoUsersLeavesTaskUntouched(t *testing.T) {
	f := newFixture()
	task := f.seed("Lonely", models.TaskStatusToDo, ann, 3)
	f.users.users = nil

	_, err := f.svc.SmartAssign(context.Background(), actor, task.ID, 0)
	require.ErrorIs(t, err, ErrNoEligibleAssignee)

	stored, _ := f.tasks.GetByID(context.Background(), task.ID)
	assert.EqualValues(t, 3, stored.Version)
	assert.Equal(t, ann.ID, stored.AssignedTo)
	assert.Empty(t, f.sink.activities)
}

func TestSmartAssign_StaleExpectedVersion(t *testing.T) {
	f := newFixture()
	task := f.seed("Guarded", models.TaskStatusToDo, ann, 5)

	_, err := f.svc.SmartAssign(context.Background(), actor, task.ID, 4)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestSmartAssign_ForcedRetriesAfterRace(t *testing.T) {
	f := newFixture()
	task := f.seed("Busy", models.TaskStatusToDo, ann, 1)
	f.tasks.beforeUpdate = func(m *memTasks) {
		m.beforeUpdate = nil
		m.bump(task.ID, func(t *models.Task) {})
	}

	assigned, err := f.svc.SmartAssign(context.Background(), actor, task.ID, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, assigned.Version)
}

func TestSmartAssign_UnknownTask(t *testing.T) {
	f := newFixture()
	_, err := f.svc.SmartAssign(context.Background(), actor, "missing", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSmartAssign_DirectoryFailure(t *testing.T) {
	f := newFixture()
	task := f.seed("Task", models.TaskStatusToDo, ann, 1)
	f.users.err = errors.New("directory down")

	_, err := f.svc.SmartAssign(context.Background(), actor, task.ID, 0)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestWorkloads(t *testing.T) {
	f := newFixture()
	f.seed("A1", models.TaskStatusToDo, ann, 1)
	f.seed("A2", models.TaskStatusDone, ann, 1)
	f.seed("B1", models.TaskStatusInProgress, bob, 1)

	loads, err := f.svc.Workloads(context.Background())
	require.NoError(t, err)
	require.Len(t, loads, 3)
	assert.Equal(t, 1, loads[0].Active)
	assert.Equal(t, 1, loads[1].Active)
	assert.Equal(t, 0, loads[2].Active)
}
