package handlers

import (
	"errors"
	"net/http"

	"github.com/chepyr/go-task-board/internal/board"
	"github.com/chepyr/go-task-board/shared"
	"github.com/chepyr/go-task-board/shared/models"
)

/*
conflictResponse is the 409 body for a stale edit. yourChanges echoes the
attempt so the client can send it back to /resolve-conflict.
*/
type conflictResponse struct {
	Error       string        `json:"error"`
	Message     string        `json:"message"`
	CurrentTask *models.Task  `json:"currentTask"`
	YourChanges board.Attempt `json:"yourChanges"`
}

// writeBoardError maps the board error taxonomy to HTTP.
func (h *Handler) writeBoardError(w http.ResponseWriter, err error) {
	var conflict *board.ConflictError
	switch {
	case errors.As(err, &conflict):
		shared.SendJSON(w, http.StatusConflict, conflictResponse{
			Error:       "Version conflict",
			Message:     "The task was modified by another user. Choose merge or overwrite to resolve.",
			CurrentTask: conflict.Current,
			YourChanges: conflict.Attempted,
		})
	case errors.Is(err, board.ErrNotFound):
		shared.SendError(w, "Task not found", http.StatusNotFound)
	case errors.Is(err, board.ErrInvalidReference):
		shared.SendError(w, "Assigned user not found", http.StatusBadRequest)
	case errors.Is(err, board.ErrDuplicateTitle):
		shared.SendError(w, "Task title must be unique", http.StatusBadRequest)
	case errors.Is(err, board.ErrReservedTitle):
		shared.SendError(w, "Task title cannot match column names", http.StatusBadRequest)
	case errors.Is(err, board.ErrInvalidField):
		shared.SendError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, board.ErrNoEligibleAssignee):
		shared.SendError(w, "No users available for assignment", http.StatusConflict)
	default:
		h.log().WithError(err).WithField("event_id", "INTERNAL_ERROR").Error("request failed")
		shared.SendError(w, "Internal server error", http.StatusInternalServerError)
	}
}
