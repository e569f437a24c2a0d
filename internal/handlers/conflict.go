package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/chepyr/go-task-board/internal/board"
	"github.com/chepyr/go-task-board/shared"
	"github.com/gorilla/mux"
)

// ResolveConflict takes the yourChanges object from a 409 response and the
// chosen strategy:
//
//	{"strategy": "merge", "yourChanges": {"id": "...", "version": 2, "title": "..."}}
func (h *Handler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !isJSONContentType(r) {
		shared.SendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var input struct {
		Strategy    board.Strategy `json:"strategy"`
		YourChanges board.Attempt  `json:"yourChanges"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		shared.SendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if !input.Strategy.IsValid() {
		shared.SendError(w, "strategy must be merge or overwrite", http.StatusBadRequest)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()
	task, err := h.Board.Resolve(ctx, actor, mux.Vars(r)["id"], input.YourChanges, input.Strategy)
	if err != nil {
		h.writeBoardError(w, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, task)
}
