// Package progress compares a user's goals with what they have eaten in the
// current day and the rolling week.
package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/prehrana/internal/model"
)

// WeekWindow is the length of the rolling weekly bucket.
const WeekWindow = 7 * 24 * time.Hour

// GoalSource lists a user's goals.
type GoalSource interface {
	ListGoals(ctx context.Context, userID string) ([]model.Goal, error)
}

// ScanSource lists a user's scans.
type ScanSource interface {
	ListFoodScans(ctx context.Context, userID string) ([]model.FoodScan, error)
}

// Service computes goal progress from the stores.
type Service struct {
	Goals GoalSource
	Scans ScanSource

	// Location sets the local midnight for the daily bucket. Defaults to time.Local.
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

// Progress returns progress for each of the user's goals.
func (s *Service) Progress(ctx context.Context, userID string) ([]model.GoalProgress, error) {
	goals, err := s.Goals.ListGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing goals: %w", err)
	}
	scans, err := s.Scans.ListFoodScans(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing food scans: %w", err)
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	return Compute(goals, scans, now(), loc), nil
}

// Compute sums scan nutrients into a daily bucket (since local midnight in
// loc) and a weekly bucket (since now minus seven days). A scan counts toward
// every bucket it falls in. Each goal reads its period's bucket.
func Compute(goals []model.Goal, scans []model.FoodScan, now time.Time, loc *time.Location) []model.GoalProgress {
	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).UnixMilli()
	weekStart := now.Add(-WeekWindow).UnixMilli()

	var today, week model.Totals
	for _, scan := range scans {
		inToday := scan.Timestamp >= dayStart
		inWeek := scan.Timestamp >= weekStart
		for _, item := range scan.FoodItems {
			if inToday {
				today.Add(item)
			}
			if inWeek {
				week.Add(item)
			}
		}
	}

	result := make([]model.GoalProgress, 0, len(goals))
	for _, g := range goals {
		bucket := today
		if g.Period == model.PeriodWeekly {
			bucket = week
		}
		current := bucket.Get(g.Type)
		result = append(result, model.GoalProgress{
			GoalID:  g.ID,
			Type:    g.Type,
			Period:  g.Period,
			Target:  g.Target,
			Current: current,
			Percent: Percent(current, g.Target),
		})
	}
	return result
}

// Percent returns current as a share of target, clamped to [0, 100].
// Targets of zero or less report 0.
func Percent(current, target float64) float64 {
	if target <= 0 {
		return 0
	}
	p := current / target * 100
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}
