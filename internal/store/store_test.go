package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/store"
	"github.com/nhle/todosync/tests/testutil"
)

func ptr[T any](v T) *T { return &v }

func TestUsersAndAuthentication(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	alice := testutil.NewUser(t, s, "alice")
	assert.Equal(t, model.RoleUser, alice.Role)

	_, err := s.CreateUser(ctx, "alice", "other", "", "")
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := s.Authenticate(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = s.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, store.ErrInvalidCredentials)
	_, err = s.Authenticate(ctx, "nobody", "secret")
	assert.ErrorIs(t, err, store.ErrInvalidCredentials)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureAdmin(ctx, "admin", "Admin@123456", ""))
	require.NoError(t, s.EnsureAdmin(ctx, "admin", "Admin@123456", ""))

	admin, err := s.Authenticate(ctx, "admin", "Admin@123456")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())
}

func TestTokens(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	alice := testutil.NewUser(t, s, "alice")

	token, err := s.IssueToken(ctx, alice.ID, time.Hour)
	require.NoError(t, err)

	user, err := s.ResolveToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	expired, err := s.IssueToken(ctx, alice.ID, -time.Second)
	require.NoError(t, err)
	_, err = s.ResolveToken(ctx, expired)
	assert.ErrorIs(t, err, store.ErrTokenExpired)

	_, err = s.ResolveToken(ctx, "unknown")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.RevokeToken(ctx, token))
	_, err = s.ResolveToken(ctx, token)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTodoRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	alice := testutil.NewUser(t, s, "alice")

	due := model.MustParseDate("2024-01-01")
	created := testutil.NewTodo(t, s, alice.ID, model.Todo{
		Title:    "A",
		Priority: model.PriorityHigh,
		DueDate:  &due,
		Tags:     []string{"home"},
	})
	assert.Equal(t, model.StatusTodo, created.Status)
	assert.Nil(t, created.CompletedAt)

	got, err := s.GetTodo(ctx, alice.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)
	assert.Equal(t, model.PriorityHigh, got.Priority)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, "2024-01-01", got.DueDate.String())
	assert.Equal(t, []string{"home"}, got.Tags)
	assert.Nil(t, got.CategoryID)

	updated, err := s.UpdateTodo(ctx, alice.ID, created.ID, store.TodoChanges{Status: ptr(model.StatusDone)})
	require.NoError(t, err)
	assert.Equal(t, "A", updated.Title, "unset fields are left alone")
	assert.Equal(t, model.StatusDone, updated.Status)
	assert.NotNil(t, updated.CompletedAt)

	_, err = s.GetTodo(ctx, "someone-else", created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListTodosFilters(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	alice := testutil.NewUser(t, s, "alice")
	today := model.MustParseDate("2024-05-10")
	day := func(n int) *model.Date {
		d := today.AddDays(n)
		return &d
	}

	testutil.NewTodo(t, s, alice.ID, model.Todo{Title: "today milk", DueDate: day(0), Priority: model.PriorityLow})
	testutil.NewTodo(t, s, alice.ID, model.Todo{Title: "in a week", DueDate: day(7), Priority: model.PriorityHigh})
	testutil.NewTodo(t, s, alice.ID, model.Todo{Title: "next month", DueDate: day(30)})
	testutil.NewTodo(t, s, alice.ID, model.Todo{Title: "late", DueDate: day(-1), Status: model.StatusDone})
	testutil.NewTodo(t, s, alice.ID, model.Todo{Title: "someday", Description: "buy milk"})

	tests := []struct {
		name   string
		filter store.TodoFilter
		want   []string
	}{
		{"today", store.TodoFilter{Due: store.DueToday}, []string{"today milk"}},
		{"week", store.TodoFilter{Due: store.DueWeek}, []string{"today milk", "in a week"}},
		{"overdue", store.TodoFilter{Due: store.DueOverdue}, []string{"late"}},
		{"none", store.TodoFilter{Due: store.DueNone}, []string{"someday"}},
		{"keyword matches description", store.TodoFilter{Keyword: "milk"}, []string{"today milk", "someday"}},
		{"status", store.TodoFilter{Status: model.StatusDone}, []string{"late"}},
		{"priority", store.TodoFilter{Priority: model.PriorityHigh}, []string{"in a week"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.Today = today
			todos, total, err := s.ListTodos(ctx, alice.ID, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), total)
			var titles []string
			for _, td := range todos {
				titles = append(titles, td.Title)
			}
			assert.ElementsMatch(t, tt.want, titles)
		})
	}
}

func TestListTodosSortAndPaging(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	alice := testutil.NewUser(t, s, "alice")

	testutil.NewTodo(t, s, alice.ID, model.Todo{Title: "low", Priority: model.PriorityLow})
	testutil.NewTodo(t, s, alice.ID, model.Todo{Title: "high", Priority: model.PriorityHigh})
	testutil.NewTodo(t, s, alice.ID, model.Todo{Title: "medium", Priority: model.PriorityMedium})

	todos, total, err := s.ListTodos(ctx, alice.ID, store.TodoFilter{SortBy: "priority", SortDesc: true, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, todos, 2)
	assert.Equal(t, "high", todos[0].Title)
	assert.Equal(t, "medium", todos[1].Title)

	todos, _, err = s.ListTodos(ctx, alice.ID, store.TodoFilter{SortBy: "priority", SortDesc: true, Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "low", todos[0].Title)
}

func TestTrashLifecycle(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	alice := testutil.NewUser(t, s, "alice")

	a := testutil.NewTodo(t, s, alice.ID, model.Todo{Title: "a"})
	b := testutil.NewTodo(t, s, alice.ID, model.Todo{Title: "b", Status: model.StatusDone})

	n, err := s.ClearDone(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.ClearDone(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "clearing with nothing done is not an error")

	require.NoError(t, s.SoftDeleteTodo(ctx, alice.ID, a.ID))

	live, total, err := s.ListTodos(ctx, alice.ID, store.TodoFilter{})
	require.NoError(t, err)
	assert.Empty(t, live)
	assert.Zero(t, total)

	trash, total, err := s.ListTrash(ctx, alice.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, trash, 2)

	require.NoError(t, s.RestoreTodo(ctx, alice.ID, a.ID))
	assert.ErrorIs(t, s.RestoreTodo(ctx, alice.ID, a.ID), store.ErrNotFound, "only trashed todos can be restored")

	require.NoError(t, s.PurgeTodo(ctx, alice.ID, b.ID))
	_, err = s.GetTodo(ctx, alice.ID, b.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.SoftDeleteTodo(ctx, alice.ID, a.ID))
	require.NoError(t, s.ClearTrash(ctx, alice.ID))
	_, total, err = s.ListTrash(ctx, alice.ID, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestBatchStatus(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	alice := testutil.NewUser(t, s, "alice")

	a := testutil.NewTodo(t, s, alice.ID, model.Todo{Title: "a"})
	b := testutil.NewTodo(t, s, alice.ID, model.Todo{Title: "b"})

	require.NoError(t, s.BatchStatus(ctx, alice.ID, []string{a.ID, b.ID, "missing"}, model.StatusDone))

	done, total, err := s.ListTodos(ctx, alice.ID, store.TodoFilter{Status: model.StatusDone})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, td := range done {
		assert.NotNil(t, td.CompletedAt)
	}
}

func TestCategories(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	alice := testutil.NewUser(t, s, "alice")
	bob := testutil.NewUser(t, s, "bob")

	work, err := s.CreateCategory(ctx, alice.ID, model.Category{Name: "Work", Color: "#f00", Order: 2})
	require.NoError(t, err)
	_, err = s.CreateCategory(ctx, alice.ID, model.Category{Name: "Home", Order: 1})
	require.NoError(t, err)
	_, err = s.CreateCategory(ctx, alice.ID, model.Category{Name: "Work"})
	assert.ErrorIs(t, err, store.ErrConflict)
	_, err = s.CreateCategory(ctx, bob.ID, model.Category{Name: "Work"})
	assert.NoError(t, err, "names are unique per user")

	list, err := s.ListCategories(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Home", list[0].Name)

	renamed, err := s.UpdateCategory(ctx, alice.ID, work.ID, store.CategoryChanges{Name: ptr("Office")})
	require.NoError(t, err)
	assert.Equal(t, "Office", renamed.Name)
	assert.Equal(t, "#f00", renamed.Color)

	todo := testutil.NewTodo(t, s, alice.ID, model.Todo{Title: "report", CategoryID: &work.ID})
	require.NoError(t, s.DeleteCategory(ctx, alice.ID, work.ID))

	got, err := s.GetTodo(ctx, alice.ID, todo.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID, "deleting a category unsets it on todos")

	assert.ErrorIs(t, s.DeleteCategory(ctx, alice.ID, work.ID), store.ErrNotFound)
}

func TestStatsSummary(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	alice := testutil.NewUser(t, s, "alice")

	testutil.NewTodo(t, s, alice.ID, model.Todo{Title: "a"})
	testutil.NewTodo(t, s, alice.ID, model.Todo{Title: "b", Status: model.StatusDone})
	testutil.NewTodo(t, s, alice.ID, model.Todo{Title: "c"})

	stats, err := s.StatsSummary(ctx, alice.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalTodos)
	assert.Equal(t, 1, stats.TodayCompleted)
	assert.InDelta(t, 0.33, stats.WeekCompletionRate, 0.001)

	empty, err := s.StatsSummary(ctx, testutil.NewUser(t, s, "bob").ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.Stats{}, empty)
}
