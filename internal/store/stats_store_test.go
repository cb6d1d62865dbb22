package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/todosync/internal/model"
)

func TestComputeStatsUsesISOWeek(t *testing.T) {
	// Wednesday; the week runs Monday 13th through Sunday 19th.
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	at := func(day, hour int) time.Time { return time.Date(2024, 5, day, hour, 0, 0, 0, time.UTC) }
	done := func(day int) *time.Time { v := at(day, 9); return &v }

	rows := []statsRow{
		{Status: model.StatusDone, CreatedAt: at(13, 8), CompletedAt: done(15)},
		{Status: model.StatusTodo, CreatedAt: at(14, 8)},
		{Status: model.StatusTodo, CreatedAt: at(19, 23)},
		{Status: model.StatusTodo, CreatedAt: at(14, 8), IsDeleted: true},
		{Status: model.StatusDone, CreatedAt: at(6, 8), CompletedAt: done(12)},
	}

	stats := computeStats(rows, now)
	assert.Equal(t, 4, stats.TotalTodos)
	assert.Equal(t, 1, stats.TodayCompleted)
	assert.Equal(t, 0.33, stats.WeekCompletionRate)
}

func TestComputeStatsEmptyWeek(t *testing.T) {
	stats := computeStats(nil, time.Date(2024, 5, 19, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, model.Stats{}, stats)
}

func TestISOWeekday(t *testing.T) {
	assert.Equal(t, 0, isoWeekday(time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 6, isoWeekday(time.Date(2024, 5, 19, 0, 0, 0, 0, time.UTC)))
}
