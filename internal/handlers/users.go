package handlers

import (
	"net/http"

	"github.com/chepyr/go-task-board/shared"
)

type userSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	ActiveTasks int    `json:"activeTasks"`
}

// ListUsers returns every user with their unfinished task count, in the
// order the smart assignment breaks ties by.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	loads, err := h.Board.Workloads(ctx)
	if err != nil {
		h.writeBoardError(w, err)
		return
	}
	out := make([]userSummary, 0, len(loads))
	for _, l := range loads {
		out = append(out, userSummary{ID: l.User.ID, Name: l.User.Name, Email: l.User.Email, ActiveTasks: l.Active})
	}
	shared.SendJSON(w, http.StatusOK, out)
}
