package board

import (
	"errors"
	"fmt"

	"github.com/chepyr/go-task-board/internal/db"
	"github.com/chepyr/go-task-board/shared/models"
)

var (
	ErrNotFound           = errors.New("task not found")
	ErrInvalidReference   = errors.New("assigned user not found")
	ErrDuplicateTitle     = errors.New("task title must be unique")
	ErrReservedTitle      = errors.New("task title cannot match column names")
	ErrInvalidField       = errors.New("invalid field value")
	ErrVersionConflict    = errors.New("version conflict")
	ErrNoEligibleAssignee = errors.New("no eligible assignee")
	ErrStoreUnavailable   = errors.New("store unavailable")
)

// ConflictError is returned when an edit was made from a stale view.
// It carries the record as currently stored and what the caller tried to
// write, so that a resolution strategy can be chosen.
type ConflictError struct {
	Current   *models.Task
	Attempted Attempt
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict on task %s: stored version %d, submitted %d",
		e.Current.ID, e.Current.Version, e.Attempted.Version)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}

func invalidField(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidField, fmt.Sprintf(format, args...))
}

// storeError translates record store failures into the board taxonomy.
// Anything unrecognised becomes ErrStoreUnavailable.
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, db.ErrDuplicateTitle):
		return ErrDuplicateTitle
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// errVersionMoved signals that a conditional update lost the race.
var errVersionMoved = errors.New("version moved between read and write")

func isNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound)
}

func isVersionMismatch(err error) bool {
	return errors.Is(err, db.ErrVersionMismatch)
}
