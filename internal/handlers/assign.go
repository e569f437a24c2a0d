package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/chepyr/go-task-board/shared"
	"github.com/gorilla/mux"
)

// SmartAssign hands the task to the least-loaded user. An optional
// {"version": n} body makes the reassignment fail with 409 when stale.
func (h *Handler) SmartAssign(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var input struct {
		Version int64 `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		shared.SendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()
	task, err := h.Board.SmartAssign(ctx, actor, mux.Vars(r)["id"], input.Version)
	if err != nil {
		h.writeBoardError(w, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, task)
}
