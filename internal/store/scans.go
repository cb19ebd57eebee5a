package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/prehrana/internal/model"
)

// RecentWindow is the default lookback for recent scans.
const RecentWindow = 7 * 24 * time.Hour

// now is the server clock used for timestamps and windows.
var now = time.Now

// CreateFoodScan stores a scan with a server-assigned timestamp and returns its ID.
// The caller is responsible for only passing non-empty item lists.
func CreateFoodScan(ctx context.Context, db *sql.DB, userID, imageURL string, items []model.FoodItem, totalCalories float64) (string, error) {
	id := uuid.NewString()
	timestamp := now().UnixMilli()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO food_scans (id, user_id, image_url, total_calories, timestamp) VALUES (?, ?, ?, ?, ?)`,
		id, userID, imageURL, totalCalories, timestamp,
	)
	if err != nil {
		return "", fmt.Errorf("creating food scan: %w", err)
	}

	for i, item := range items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO food_scan_items (scan_id, position, name, calories, protein, carbs, fat)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, i, item.Name, item.Calories, item.Protein, item.Carbs, item.Fat,
		)
		if err != nil {
			return "", fmt.Errorf("creating food scan item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing food scan: %w", err)
	}
	return id, nil
}

// GetFoodScan returns a scan by ID, or nil if it does not exist.
func GetFoodScan(ctx context.Context, db *sql.DB, id string) (*model.FoodScan, error) {
	s := &model.FoodScan{}
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, image_url, total_calories, timestamp
		 FROM food_scans WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &s.ImageURL, &s.TotalCalories, &s.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting food scan: %w", err)
	}

	scans := []model.FoodScan{*s}
	if err := loadFoodItems(ctx, db, scans); err != nil {
		return nil, err
	}
	return &scans[0], nil
}

// ListFoodScans returns all scans for a user, most recent first.
func ListFoodScans(ctx context.Context, db *sql.DB, userID string) ([]model.FoodScan, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, image_url, total_calories, timestamp
		 FROM food_scans WHERE user_id = ?
		 ORDER BY timestamp DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing food scans: %w", err)
	}
	return scanFoodScans(ctx, db, rows)
}

// ListRecentFoodScans returns a user's scans with timestamp >= now-window,
// most recent first.
func ListRecentFoodScans(ctx context.Context, db *sql.DB, userID string, window time.Duration) ([]model.FoodScan, error) {
	since := now().Add(-window).UnixMilli()
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, image_url, total_calories, timestamp
		 FROM food_scans WHERE user_id = ? AND timestamp >= ?
		 ORDER BY timestamp DESC`, userID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent food scans: %w", err)
	}
	return scanFoodScans(ctx, db, rows)
}

// DeleteFoodScan removes a scan and its items. Deleting a missing scan is not an error.
func DeleteFoodScan(ctx context.Context, db *sql.DB, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM food_scan_items WHERE scan_id = ?`, id); err != nil {
		return fmt.Errorf("deleting food scan items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM food_scans WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting food scan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing food scan delete: %w", err)
	}
	return nil
}

// scanFoodScans reads scan rows and then attaches their items. The rows are
// closed before items are queried so a single-connection pool is not blocked.
func scanFoodScans(ctx context.Context, db *sql.DB, rows *sql.Rows) ([]model.FoodScan, error) {
	var scans []model.FoodScan
	for rows.Next() {
		var s model.FoodScan
		if err := rows.Scan(&s.ID, &s.UserID, &s.ImageURL, &s.TotalCalories, &s.Timestamp); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning food scan: %w", err)
		}
		scans = append(scans, s)
	}
	err := rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("reading food scans: %w", err)
	}

	if err := loadFoodItems(ctx, db, scans); err != nil {
		return nil, err
	}
	return scans, nil
}

// loadFoodItems fills FoodItems for each scan, preserving item order.
func loadFoodItems(ctx context.Context, db *sql.DB, scans []model.FoodScan) error {
	for i := range scans {
		rows, err := db.QueryContext(ctx,
			`SELECT name, calories, protein, carbs, fat
			 FROM food_scan_items WHERE scan_id = ?
			 ORDER BY position`, scans[i].ID,
		)
		if err != nil {
			return fmt.Errorf("listing food scan items: %w", err)
		}

		items := []model.FoodItem{}
		for rows.Next() {
			var item model.FoodItem
			var protein, carbs, fat sql.NullFloat64
			if err := rows.Scan(&item.Name, &item.Calories, &protein, &carbs, &fat); err != nil {
				rows.Close()
				return fmt.Errorf("scanning food scan item: %w", err)
			}
			item.Protein = nullFloat(protein)
			item.Carbs = nullFloat(carbs)
			item.Fat = nullFloat(fat)
			items = append(items, item)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("reading food scan items: %w", err)
		}
		scans[i].FoodItems = items
	}
	return nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
