package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/erazemk/prehrana/internal/model"
)

// GoalStore is the goal side of the record store.
type GoalStore interface {
	UpsertGoal(ctx context.Context, userID, nutrient, period string, target float64) (string, error)
	ListGoals(ctx context.Context, userID string) ([]model.Goal, error)
}

// ProgressSource computes goal progress for a user.
type ProgressSource interface {
	Progress(ctx context.Context, userID string) ([]model.GoalProgress, error)
}

// GoalsHandler handles goal endpoints.
type GoalsHandler struct {
	Store    GoalStore
	Progress ProgressSource
}

type upsertGoalRequest struct {
	Type   string  `json:"type"`
	Period string  `json:"period"`
	Target float64 `json:"target"`
}

// Upsert handles PUT /api/goals.
func (h *GoalsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := model.ValidateGoal(req.Type, req.Period, req.Target); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.Store.UpsertGoal(r.Context(), userID(r), req.Type, req.Period, req.Target)
	if err != nil {
		slog.Error("failed to upsert goal", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save goal")
		return
	}

	slog.Info("goal saved", "user", userID(r), "goal", id, "type", req.Type, "period", req.Period, "target", req.Target)
	jsonResponse(w, http.StatusOK, map[string]string{"id": id})
}

// List handles GET /api/goals.
func (h *GoalsHandler) List(w http.ResponseWriter, r *http.Request) {
	goals, err := h.Store.ListGoals(r.Context(), userID(r))
	if err != nil {
		slog.Error("failed to list goals", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list goals")
		return
	}
	if goals == nil {
		goals = []model.Goal{}
	}
	jsonResponse(w, http.StatusOK, goals)
}

// GetProgress handles GET /api/goals/progress.
func (h *GoalsHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.Progress.Progress(r.Context(), userID(r))
	if err != nil {
		slog.Error("failed to compute goal progress", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to compute goal progress")
		return
	}
	jsonResponse(w, http.StatusOK, progress)
}
