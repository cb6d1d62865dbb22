package model

import "time"

// Todo status constants.
const (
	StatusTodo = "todo"
	StatusDone = "done"
)

// Todo priority constants.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Todo is a server-owned todo item as returned by the REST service.
type Todo struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description,omitempty" db:"description"`
	Status      string     `json:"status" db:"status"`
	Priority    string     `json:"priority" db:"priority"`
	DueDate     *Date      `json:"due_date,omitempty" db:"due_date"`
	CategoryID  *string    `json:"category_id,omitempty" db:"category_id"`
	Tags        []string   `json:"tags,omitempty" db:"-"`
	IsDeleted   bool       `json:"is_deleted" db:"is_deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsDone reports whether the todo is completed.
func (t Todo) IsDone() bool { return t.Status == StatusDone }

// HasDueDate reports whether the todo has a deadline. A nil or zero due
// date means "no deadline", never "today".
func (t Todo) HasDueDate() bool {
	return t.DueDate != nil && !t.DueDate.IsZero()
}

// ToggledStatus returns the status a toggle moves the todo to: done
// becomes todo, anything else becomes done.
func (t Todo) ToggledStatus() string {
	if t.Status == StatusDone {
		return StatusTodo
	}
	return StatusDone
}

// ValidStatus reports whether s is one of the enumerated statuses.
func ValidStatus(s string) bool {
	return s == StatusTodo || s == StatusDone
}

// ValidPriority reports whether p is one of the enumerated priorities.
func ValidPriority(p string) bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Due badge values returned by DueBadge.
const (
	DueNone    = ""
	DueOverdue = "overdue"
	DueSoon    = "soon"
)

// DueBadge classifies a due date for list rendering: overdue when it is
// before today, soon when it falls within the next two days.
func DueBadge(due *Date, today Date) string {
	if due == nil || due.IsZero() {
		return DueNone
	}
	if due.Before(today) {
		return DueOverdue
	}
	if today.DaysUntil(*due) <= 2 {
		return DueSoon
	}
	return DueNone
}
