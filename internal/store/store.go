package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/todosync/internal/model"
)

// Sentinel errors returned by Store implementations.
var (
	ErrNotFound           = errors.New("store: not found")
	ErrConflict           = errors.New("store: already exists")
	ErrInvalidCredentials = errors.New("store: invalid credentials")
	ErrTokenExpired       = errors.New("store: token expired")
)

// Due filter values understood by TodoFilter.Due.
const (
	DueToday   = "today"
	DueWeek    = "week"
	DueOverdue = "overdue"
	DueNone    = "none"
)

// TodoFilter controls filtering, sorting, and pagination for todo queries.
type TodoFilter struct {
	Status         string
	Priority       string
	CategoryID     string
	Keyword        string     // matched against title and description
	Due            string     // "today", "week" (today..today+7), "overdue", "none"
	Today          model.Date // reference date for Due
	SortBy         string     // "created_at", "due_date", "priority"
	SortDesc       bool
	IncludeDeleted bool
	Page           int
	PageSize       int
}

// TodoChanges is a partial todo update. Nil fields are left unchanged.
type TodoChanges struct {
	Title       *string
	Description *string
	Priority    *string
	Status      *string
	DueDate     *model.Date
	CategoryID  *string
	Tags        []string
}

// CategoryChanges is a partial category update.
type CategoryChanges struct {
	Name  *string
	Color *string
	Order *int
}

// Store defines the persistence interface of the reference backend. Every
// todo and category operation is scoped to the owning user.
type Store interface {
	// === Users ===

	CreateUser(ctx context.Context, username, password, email, role string) (*model.User, error)
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	EnsureAdmin(ctx context.Context, username, password, email string) error

	// === Tokens ===

	IssueToken(ctx context.Context, userID string, ttl time.Duration) (string, error)
	ResolveToken(ctx context.Context, token string) (*model.User, error)
	RevokeToken(ctx context.Context, token string) error

	// === Todos ===

	CreateTodo(ctx context.Context, userID string, todo model.Todo) (*model.Todo, error)
	UpdateTodo(ctx context.Context, userID, id string, changes TodoChanges) (*model.Todo, error)
	GetTodo(ctx context.Context, userID, id string) (*model.Todo, error)
	ListTodos(ctx context.Context, userID string, filter TodoFilter) ([]model.Todo, int, error)
	SoftDeleteTodo(ctx context.Context, userID, id string) error
	ClearDone(ctx context.Context, userID string) (int, error)
	BatchStatus(ctx context.Context, userID string, ids []string, status string) error

	// === Trash ===

	ListTrash(ctx context.Context, userID string, page, pageSize int) ([]model.Todo, int, error)
	RestoreTodo(ctx context.Context, userID, id string) error
	PurgeTodo(ctx context.Context, userID, id string) error
	ClearTrash(ctx context.Context, userID string) error

	// === Categories ===

	ListCategories(ctx context.Context, userID string) ([]model.Category, error)
	CreateCategory(ctx context.Context, userID string, category model.Category) (*model.Category, error)
	UpdateCategory(ctx context.Context, userID, id string, changes CategoryChanges) (*model.Category, error)
	DeleteCategory(ctx context.Context, userID, id string) error

	// === Stats ===

	StatsSummary(ctx context.Context, userID string, now time.Time) (model.Stats, error)
}
