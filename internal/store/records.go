package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/erazemk/prehrana/internal/model"
)

// Records serves the scan and goal stores from SQLite.
type Records struct {
	DB *sql.DB
}

func (r *Records) CreateFoodScan(ctx context.Context, userID, imageURL string, items []model.FoodItem, totalCalories float64) (string, error) {
	return CreateFoodScan(ctx, r.DB, userID, imageURL, items, totalCalories)
}

func (r *Records) GetFoodScan(ctx context.Context, id string) (*model.FoodScan, error) {
	return GetFoodScan(ctx, r.DB, id)
}

func (r *Records) ListFoodScans(ctx context.Context, userID string) ([]model.FoodScan, error) {
	return ListFoodScans(ctx, r.DB, userID)
}

func (r *Records) ListRecentFoodScans(ctx context.Context, userID string, window time.Duration) ([]model.FoodScan, error) {
	return ListRecentFoodScans(ctx, r.DB, userID, window)
}

func (r *Records) DeleteFoodScan(ctx context.Context, id string) error {
	return DeleteFoodScan(ctx, r.DB, id)
}

func (r *Records) UpsertGoal(ctx context.Context, userID, nutrient, period string, target float64) (string, error) {
	return UpsertGoal(ctx, r.DB, userID, nutrient, period, target)
}

func (r *Records) ListGoals(ctx context.Context, userID string) ([]model.Goal, error) {
	return ListGoals(ctx, r.DB, userID)
}
