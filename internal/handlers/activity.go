package handlers

import (
	"net/http"
	"strconv"

	"github.com/chepyr/go-task-board/shared"
	"github.com/chepyr/go-task-board/shared/models"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// ListActivities returns the most recent activities, newest first.
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			shared.SendError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxActivityLimit)
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()
	activities, err := h.ActivityRepo.ListRecent(ctx, limit)
	if err != nil {
		h.log().WithError(err).Error("list activities")
		shared.SendError(w, "Failed to list activities", http.StatusInternalServerError)
		return
	}
	if activities == nil {
		activities = []*models.Activity{}
	}
	shared.SendJSON(w, http.StatusOK, activities)
}
