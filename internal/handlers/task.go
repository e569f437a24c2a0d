package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/chepyr/go-task-board/internal/board"
	"github.com/chepyr/go-task-board/shared"
	"github.com/chepyr/go-task-board/shared/models"
	"github.com/gorilla/mux"
)

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	tasks, err := h.Board.List(ctx)
	if err != nil {
		h.writeBoardError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	shared.SendJSON(w, http.StatusOK, tasks)
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
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
	var input board.NewTask
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		shared.SendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()
	task, err := h.Board.Create(ctx, actor, input)
	if err != nil {
		h.writeBoardError(w, err)
		return
	}
	w.Header().Set("Location", "/tasks/"+task.ID)
	shared.SendJSON(w, http.StatusCreated, task)
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	task, err := h.Board.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		h.writeBoardError(w, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, task)
}

/*
UpdateTask applies a partial edit. The body carries the version the client
last saw next to the changed fields:

	{"version": 3, "status": "done"}

A missing or zero version applies the edit without a version check.
*/
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
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
		Version int64 `json:"version"`
		board.Changes
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		shared.SendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if input.Version < 0 {
		shared.SendError(w, "version must not be negative", http.StatusBadRequest)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()
	task, err := h.Board.Apply(ctx, actor, mux.Vars(r)["id"], input.Version, input.Changes)
	if err != nil {
		h.writeBoardError(w, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, task)
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()
	if err := h.Board.Delete(ctx, actor, mux.Vars(r)["id"]); err != nil {
		h.writeBoardError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
