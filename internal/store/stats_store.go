package store

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nhle/todosync/internal/model"
)

type statsRow struct {
	Status      string     `db:"status"`
	IsDeleted   bool       `db:"is_deleted"`
	CompletedAt *time.Time `db:"completed_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

// StatsSummary computes the user's summary relative to now: live todos,
// todos completed today, and this ISO week's completion rate (done this
// week over live todos created this week, rounded to two places).
func (s *SQLiteStore) StatsSummary(ctx context.Context, userID string, now time.Time) (model.Stats, error) {
	var rows []statsRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT status, is_deleted, completed_at, created_at FROM todos WHERE user_id = ?", userID)
	if err != nil {
		return model.Stats{}, fmt.Errorf("loading todos for stats: %w", err)
	}
	return computeStats(rows, now), nil
}

func computeStats(rows []statsRow, now time.Time) model.Stats {
	loc := now.Location()
	today := model.DateOf(now)
	weekStart := today.AddDays(-isoWeekday(now))
	weekEnd := weekStart.AddDays(6)
	inWeek := func(t time.Time) bool {
		d := model.DateOf(t.In(loc))
		return !d.Before(weekStart) && !d.After(weekEnd)
	}

	var stats model.Stats
	var weekDone, weekTotal int
	for _, r := range rows {
		if !r.IsDeleted {
			stats.TotalTodos++
			if inWeek(r.CreatedAt) {
				weekTotal++
			}
		}
		if r.Status != model.StatusDone || r.CompletedAt == nil {
			continue
		}
		if model.DateOf(r.CompletedAt.In(loc)).Equal(today) {
			stats.TodayCompleted++
		}
		if inWeek(*r.CompletedAt) {
			weekDone++
		}
	}

	if weekTotal > 0 {
		stats.WeekCompletionRate = math.Round(float64(weekDone)/float64(weekTotal)*100) / 100
	}
	return stats
}

// isoWeekday returns days since Monday.
func isoWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
