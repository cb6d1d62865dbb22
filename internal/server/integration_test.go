package server_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/api"
	"github.com/nhle/todosync/internal/credential"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/mutation"
	"github.com/nhle/todosync/internal/query"
	"github.com/nhle/todosync/internal/server"
	"github.com/nhle/todosync/internal/session"
	"github.com/nhle/todosync/internal/sync"
	"github.com/nhle/todosync/tests/testutil"
)

// client wires the full client stack against a harness server the same
// way cmd/todosync does.
type client struct {
	vault       *credential.Vault
	session     *session.Store
	api         *api.Client
	engine      *sync.Engine
	coordinator *mutation.Coordinator
	boot        *session.Bootstrapper
}

func newClient(t *testing.T, h *harness, vault *credential.Vault, mode string) *client {
	t.Helper()

	sess := session.NewStore(vault, nil)
	apiClient := api.NewClient(h.srv.URL+server.APIPrefix, sess)
	classifier := session.NewClassifier(sess, nil)
	engine := sync.New(apiClient, sess, classifier, sync.Options{Debounce: 50 * time.Millisecond})
	classifier.OnExpired(engine.Halt)

	return &client{
		vault:       vault,
		session:     sess,
		api:         apiClient,
		engine:      engine,
		coordinator: mutation.New(apiClient, engine, classifier, nil),
		boot: session.NewBootstrapper(sess, apiClient, mode,
			api.Registration{Username: "demo", Password: "123456"}, nil),
	}
}

func TestDemoSessionCreateToggleClear(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := newClient(t, h, credential.NewMemoryVault(), model.AuthModeDemo)

	user, err := c.boot.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "demo", user.Username)

	ev := c.engine.Bootstrap(ctx, query.Default())
	require.NoError(t, ev.Err)
	assert.Equal(t, sync.AllViews, ev.Updated)
	assert.Equal(t, sync.QuickCounts{}, c.engine.Snapshot().Counts)

	today := c.engine.Today()
	res := c.coordinator.Create(ctx, mutation.Draft{Title: "  Buy milk ", DueDate: &today})
	require.NoError(t, res.Err)
	require.NotNil(t, res.Todo)
	assert.Equal(t, "Buy milk", res.Todo.Title)
	assert.Equal(t, model.PriorityMedium, res.Todo.Priority)
	require.NoError(t, res.Refresh.Err)

	views := c.engine.Snapshot()
	require.Len(t, views.Filtered, 1)
	assert.Equal(t, res.Todo.ID, views.Filtered[0].ID)
	assert.Equal(t, sync.QuickCounts{All: 1, Todo: 1, Today: 1}, views.Counts)
	assert.Equal(t, 1, views.Stats.TotalTodos)

	res = c.coordinator.Toggle(ctx, *res.Todo)
	require.NoError(t, res.Err)
	assert.Equal(t, model.StatusDone, res.Todo.Status)
	views = c.engine.Snapshot()
	assert.Equal(t, sync.QuickCounts{All: 1, Done: 1}, views.Counts)
	assert.Equal(t, 1, views.Stats.TodayCompleted)

	res = c.coordinator.ClearDone(ctx)
	require.NoError(t, res.Err)
	views = c.engine.Snapshot()
	assert.Empty(t, views.Filtered)
	assert.Equal(t, sync.QuickCounts{}, views.Counts)

	res = c.coordinator.ClearDone(ctx)
	require.NoError(t, res.Err, "clearing with nothing done")
	require.NoError(t, res.Refresh.Err)
}

func TestRejectedPersistedTokenIsCleared(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	vault := credential.NewMemoryVault()
	require.NoError(t, vault.Set(session.TokenKey, "left-over"))
	c := newClient(t, h, vault, model.AuthModeLogin)
	_, ok := c.session.Token()
	require.True(t, ok)

	_, err := c.boot.Run(ctx)
	require.ErrorIs(t, err, session.ErrLoginRequired)

	_, ok = c.session.Token()
	assert.False(t, ok)
	_, err = vault.Get(session.TokenKey)
	assert.ErrorIs(t, err, credential.ErrNotFound)

	assert.True(t, c.engine.Halted())
	ev := c.engine.Refresh(ctx, sync.AllViews)
	assert.ErrorIs(t, ev.Err, sync.ErrHalted)
}

func TestPersistedTokenResumesAcrossRestart(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	testutil.NewUser(t, h.store, "alice")

	vault := credential.NewMemoryVault()
	first := newClient(t, h, vault, model.AuthModeLogin)
	_, err := first.boot.Login(ctx, "alice", "secret")
	require.NoError(t, err)

	second := newClient(t, h, vault, model.AuthModeLogin)
	user, err := second.boot.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, second.session.Valid())
}

func TestRevokedTokenHaltsAndReloginResumes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := testutil.NewUser(t, h.store, "alice")
	testutil.NewTodo(t, h.store, alice.ID, model.Todo{Title: "Existing"})

	c := newClient(t, h, credential.NewMemoryVault(), model.AuthModeLogin)
	_, err := c.boot.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	require.NoError(t, c.engine.Bootstrap(ctx, query.Default()).Err)
	require.Len(t, c.engine.Snapshot().Filtered, 1)

	token, _ := c.session.Token()
	require.NoError(t, h.store.RevokeToken(ctx, token))

	res := c.coordinator.Create(ctx, mutation.Draft{Title: "Too late"})
	require.Error(t, res.Err)
	assert.True(t, res.Verdict.SessionExpired)
	assert.True(t, c.engine.Halted())
	assert.False(t, c.session.Valid())
	assert.Empty(t, c.engine.Snapshot().Filtered)

	_, err = c.boot.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	ev := c.engine.Bootstrap(ctx, query.Default())
	require.NoError(t, ev.Err)
	assert.Len(t, c.engine.Snapshot().Filtered, 1)
}

func TestSearchIsDebouncedAgainstServer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := newClient(t, h, credential.NewMemoryVault(), model.AuthModeDemo)
	_, err := c.boot.Run(ctx)
	require.NoError(t, err)
	require.NoError(t, c.engine.Bootstrap(ctx, query.Default()).Err)

	for _, title := range []string{"Buy milk", "Walk dog"} {
		require.NoError(t, c.coordinator.Create(ctx, mutation.Draft{Title: title}).Err)
	}

	holder := query.NewHolder(c.engine.QueryChanged)
	for _, text := range []string{"m", "mi", "mil", "milk"} {
		holder.SetSearch(text)
	}

	require.Eventually(t, func() bool {
		return len(c.engine.Snapshot().Filtered) == 1
	}, 3*time.Second, 20*time.Millisecond)

	views := c.engine.Snapshot()
	assert.Equal(t, "Buy milk", views.Filtered[0].Title)
	assert.Len(t, views.Overview, 2, "overview ignores the search")
	assert.Equal(t, 2, views.Counts.All)
}
