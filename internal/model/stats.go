package model

// Stats is the server-computed summary shown in the header.
type Stats struct {
	TotalTodos         int     `json:"total_todos"`
	TodayCompleted     int     `json:"today_completed"`
	WeekCompletionRate float64 `json:"week_completion_rate"`
}

// Normalized returns s with the completion rate clamped to [0,1].
func (s Stats) Normalized() Stats {
	switch {
	case s.WeekCompletionRate < 0:
		s.WeekCompletionRate = 0
	case s.WeekCompletionRate > 1:
		s.WeekCompletionRate = 1
	}
	return s
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items    []T `json:"items"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}
