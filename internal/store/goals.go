package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/erazemk/prehrana/internal/model"
)

// UpsertGoal sets the target of the user's goal for (nutrient, period),
// creating it if needed, and returns the goal ID.
//
// The lookup and the write are separate statements without a transaction, so
// concurrent upserts for the same triple can insert duplicates or lose one
// of the targets.
func UpsertGoal(ctx context.Context, db *sql.DB, userID, nutrient, period string, target float64) (string, error) {
	var id string
	err := db.QueryRowContext(ctx,
		`SELECT id FROM goals WHERE user_id = ? AND type = ? AND period = ?
		 ORDER BY created_at LIMIT 1`,
		userID, nutrient, period,
	).Scan(&id)
	switch {
	case err == nil:
		_, err = db.ExecContext(ctx, `UPDATE goals SET target = ? WHERE id = ?`, target, id)
		if err != nil {
			return "", fmt.Errorf("updating goal: %w", err)
		}
		return id, nil
	case err != sql.ErrNoRows:
		return "", fmt.Errorf("finding goal: %w", err)
	}

	id = uuid.NewString()
	_, err = db.ExecContext(ctx,
		`INSERT INTO goals (id, user_id, type, period, target, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, userID, nutrient, period, target, now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("creating goal: %w", err)
	}
	return id, nil
}

// ListGoals returns all goals for a user.
func ListGoals(ctx context.Context, db *sql.DB, userID string) ([]model.Goal, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, type, period, target, created_at
		 FROM goals WHERE user_id = ? ORDER BY created_at`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing goals: %w", err)
	}
	defer rows.Close()

	var goals []model.Goal
	for rows.Next() {
		var g model.Goal
		if err := rows.Scan(&g.ID, &g.UserID, &g.Type, &g.Period, &g.Target, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}
