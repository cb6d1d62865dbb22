package mutation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/api"
	"github.com/nhle/todosync/internal/credential"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/session"
	"github.com/nhle/todosync/internal/sync"
)

// fakeGateway records calls and returns err for every one of them.
type fakeGateway struct {
	err     error
	calls   []string
	created api.TodoInput
	patched api.TodoPatch
	batch   []string
}

func (g *fakeGateway) record(name string) error {
	g.calls = append(g.calls, name)
	return g.err
}

func (g *fakeGateway) CreateTodo(_ context.Context, in api.TodoInput) (*model.Todo, error) {
	g.created = in
	if err := g.record("create"); err != nil {
		return nil, err
	}
	return &model.Todo{ID: "t1", Title: in.Title, Priority: in.Priority, Status: model.StatusTodo, DueDate: in.DueDate}, nil
}

func (g *fakeGateway) UpdateTodo(_ context.Context, id string, patch api.TodoPatch) (*model.Todo, error) {
	g.patched = patch
	if err := g.record("update " + id); err != nil {
		return nil, err
	}
	t := &model.Todo{ID: id}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	return t, nil
}

func (g *fakeGateway) DeleteTodo(_ context.Context, id string) error { return g.record("delete " + id) }
func (g *fakeGateway) ClearDone(context.Context) error               { return g.record("clear-done") }

func (g *fakeGateway) BatchStatus(_ context.Context, ids []string, status string) error {
	g.batch = ids
	return g.record("batch " + status)
}

func (g *fakeGateway) RestoreTodo(_ context.Context, id string) error { return g.record("restore " + id) }
func (g *fakeGateway) PurgeTodo(_ context.Context, id string) error   { return g.record("purge " + id) }
func (g *fakeGateway) ClearTrash(context.Context) error               { return g.record("clear-trash") }

func (g *fakeGateway) CreateCategory(_ context.Context, in api.CategoryInput) (*model.Category, error) {
	if err := g.record("create-category"); err != nil {
		return nil, err
	}
	return &model.Category{ID: "c1", Name: in.Name}, nil
}

func (g *fakeGateway) UpdateCategory(_ context.Context, id string, in api.CategoryInput) (*model.Category, error) {
	if err := g.record("update-category " + id); err != nil {
		return nil, err
	}
	return &model.Category{ID: id, Name: in.Name}, nil
}

func (g *fakeGateway) DeleteCategory(_ context.Context, id string) error {
	return g.record("delete-category " + id)
}

type fakeRefresher struct {
	sets []sync.ViewSet
}

func (r *fakeRefresher) Refresh(_ context.Context, set sync.ViewSet) sync.Event {
	r.sets = append(r.sets, set)
	return sync.Event{Cycle: uint64(len(r.sets)), Requested: set, Updated: set}
}

func newCoordinator(t *testing.T, gwErr error) (*Coordinator, *fakeGateway, *fakeRefresher, *session.Store) {
	t.Helper()
	store := session.NewStore(credential.NewMemoryVault(), nil)
	store.Establish("tok")
	gw := &fakeGateway{err: gwErr}
	ref := &fakeRefresher{}
	return New(gw, ref, session.NewClassifier(store, nil), nil), gw, ref, store
}

func TestCreateDefaultsAndRefreshes(t *testing.T) {
	c, gw, ref, _ := newCoordinator(t, nil)
	due := model.MustParseDate("2024-01-01")

	res := c.Create(context.Background(), Draft{Title: "  A  ", DueDate: &due})
	require.NoError(t, res.Err)
	require.NotNil(t, res.Todo)

	assert.Equal(t, "A", gw.created.Title)
	assert.Equal(t, model.PriorityMedium, gw.created.Priority)
	assert.Equal(t, []sync.ViewSet{sync.MutationRefresh}, ref.sets)
	assert.Equal(t, sync.MutationRefresh, res.Refresh.Updated)
}

func TestCreateRequiresTitle(t *testing.T) {
	c, gw, ref, _ := newCoordinator(t, nil)

	res := c.Create(context.Background(), Draft{Title: "   "})
	assert.ErrorIs(t, res.Err, ErrTitleRequired)
	assert.Empty(t, gw.calls, "nothing is submitted")
	assert.Empty(t, ref.sets)
}

func TestCreateRejectsUnknownPriority(t *testing.T) {
	c, gw, _, _ := newCoordinator(t, nil)

	res := c.Create(context.Background(), Draft{Title: "A", Priority: "urgent"})
	assert.ErrorIs(t, res.Err, ErrInvalidField)
	assert.Empty(t, gw.calls)
}

func TestToggleSendsComplement(t *testing.T) {
	tests := []struct {
		from, to string
	}{
		{model.StatusDone, model.StatusTodo},
		{model.StatusTodo, model.StatusDone},
		{"", model.StatusDone},
	}
	for _, tt := range tests {
		c, gw, ref, _ := newCoordinator(t, nil)
		res := c.Toggle(context.Background(), model.Todo{ID: "t1", Status: tt.from})
		require.NoError(t, res.Err)
		require.NotNil(t, gw.patched.Status)
		assert.Equal(t, tt.to, *gw.patched.Status)
		assert.Nil(t, gw.patched.Title, "toggle only touches status")
		assert.Len(t, ref.sets, 1)
	}
}

func TestEveryTodoMutationUsesSameRefreshSet(t *testing.T) {
	ctx := context.Background()
	title := "B"
	ops := map[string]func(*Coordinator) Result{
		"update":     func(c *Coordinator) Result { return c.Update(ctx, "t1", api.TodoPatch{Title: &title}) },
		"delete":     func(c *Coordinator) Result { return c.Delete(ctx, "t1") },
		"clear-done": func(c *Coordinator) Result { return c.ClearDone(ctx) },
		"set-status": func(c *Coordinator) Result { return c.SetStatus(ctx, []string{"t1", "t2"}, model.StatusDone) },
		"restore":    func(c *Coordinator) Result { return c.Restore(ctx, "t1") },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			c, _, ref, _ := newCoordinator(t, nil)
			res := op(c)
			require.NoError(t, res.Err)
			assert.Equal(t, []sync.ViewSet{sync.MutationRefresh}, ref.sets)
		})
	}
}

func TestClearDoneWithNothingDoneStillRefreshes(t *testing.T) {
	c, gw, ref, _ := newCoordinator(t, nil)

	res := c.ClearDone(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"clear-done"}, gw.calls)
	assert.Equal(t, []sync.ViewSet{sync.MutationRefresh}, ref.sets)
}

func TestFailedMutationDoesNotRefresh(t *testing.T) {
	c, _, ref, store := newCoordinator(t, &api.Error{Kind: api.KindBusiness, Code: api.CodeNotFound, Message: "todo_not_found"})

	res := c.Delete(context.Background(), "missing")
	require.Error(t, res.Err)
	assert.Equal(t, api.CodeNotFound, api.CodeOf(res.Err))
	assert.False(t, res.Verdict.SessionExpired)
	assert.Equal(t, "todo_not_found", res.Verdict.Message)
	assert.Empty(t, ref.sets)
	assert.True(t, store.Valid())
}

func TestExpiredMutationInvalidatesSession(t *testing.T) {
	store := session.NewStore(credential.NewMemoryVault(), nil)
	epoch := store.Establish("tok")
	ref := &fakeRefresher{}
	gw := &fakeGateway{err: &api.Error{Kind: api.KindAuthExpired, Code: api.CodeInvalidCredentials, Epoch: epoch}}
	c := New(gw, ref, session.NewClassifier(store, nil), nil)

	res := c.Create(context.Background(), Draft{Title: "A"})
	assert.True(t, res.Verdict.SessionExpired)
	assert.False(t, store.Valid())
	assert.Empty(t, ref.sets)
}

func TestSetStatusWithoutIDsIsNoop(t *testing.T) {
	c, gw, ref, _ := newCoordinator(t, nil)

	res := c.SetStatus(context.Background(), nil, model.StatusDone)
	assert.NoError(t, res.Err)
	assert.Empty(t, gw.calls)
	assert.Empty(t, ref.sets)

	res = c.SetStatus(context.Background(), []string{"t1"}, "archived")
	assert.ErrorIs(t, res.Err, ErrInvalidField)
}

func TestTrashPurgeRefreshesStatsOnly(t *testing.T) {
	c, _, ref, _ := newCoordinator(t, nil)

	require.NoError(t, c.Purge(context.Background(), "t1").Err)
	require.NoError(t, c.EmptyTrash(context.Background()).Err)
	assert.Equal(t, []sync.ViewSet{sync.ViewStats, sync.ViewStats}, ref.sets)
}

func TestCategoryMutationsRefreshCategories(t *testing.T) {
	c, _, ref, _ := newCoordinator(t, nil)
	ctx := context.Background()

	res := c.CreateCategory(ctx, api.CategoryInput{Name: "Home"})
	require.NoError(t, res.Err)
	assert.Equal(t, "Home", res.Category.Name)

	require.NoError(t, c.UpdateCategory(ctx, "c1", api.CategoryInput{Name: "House"}).Err)
	require.NoError(t, c.DeleteCategory(ctx, "c1").Err)

	for _, set := range ref.sets {
		assert.Equal(t, sync.CategoryRefresh, set)
	}
	assert.Len(t, ref.sets, 3)

	assert.ErrorIs(t, c.CreateCategory(ctx, api.CategoryInput{Name: " "}).Err, ErrInvalidField)
}
