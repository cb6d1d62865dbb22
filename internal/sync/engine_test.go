package sync

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/api"
	"github.com/nhle/todosync/internal/credential"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/query"
	"github.com/nhle/todosync/internal/session"
)

const (
	testPageSize     = 50
	testOverviewSize = 100
	debounce         = 300 * time.Millisecond
)

// fakeFetcher records every call and serves canned data.
type fakeFetcher struct {
	mu         gosync.Mutex
	todoCalls  []api.TodoQuery
	catCalls   int
	statsCalls int

	todos      []model.Todo
	statsErr   error
	blockTodos bool
	onList     func()
	// serve, when set, picks the items returned for a query.
	serve func(api.TodoQuery) []model.Todo
	// gate, when set, may return a channel the call waits on before
	// returning the items it already read.
	gate func(api.TodoQuery) <-chan struct{}
}

func (f *fakeFetcher) ListTodos(ctx context.Context, q api.TodoQuery) (*model.Page[model.Todo], error) {
	f.mu.Lock()
	f.todoCalls = append(f.todoCalls, q)
	block, onList, gate := f.blockTodos, f.onList, f.gate
	items := append([]model.Todo(nil), f.todos...)
	if f.serve != nil {
		items = f.serve(q)
	}
	f.mu.Unlock()

	if onList != nil {
		onList()
	}
	if gate != nil {
		if release := gate(q); release != nil {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &model.Page[model.Todo]{Items: items, Page: 1, PageSize: q.PageSize, Total: len(items)}, nil
}

func (f *fakeFetcher) ListCategories(context.Context) ([]model.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catCalls++
	return []model.Category{{ID: "c1", Name: "Work"}}, nil
}

func (f *fakeFetcher) StatsSummary(context.Context) (*model.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls++
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return &model.Stats{TotalTodos: 3, WeekCompletionRate: 0.5}, nil
}

func (f *fakeFetcher) counts() (filtered, overview []api.TodoQuery, categories, stats int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.todoCalls {
		if q.PageSize == testOverviewSize {
			overview = append(overview, q)
		} else {
			filtered = append(filtered, q)
		}
	}
	return filtered, overview, f.catCalls, f.statsCalls
}

func (f *fakeFetcher) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.todoCalls = nil
	f.catCalls = 0
	f.statsCalls = 0
}

type harness struct {
	engine     *Engine
	fetcher    *fakeFetcher
	store      *session.Store
	classifier *session.Classifier
	clock      *clockwork.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := session.NewStore(credential.NewMemoryVault(), nil)
	store.Establish("tok")
	classifier := session.NewClassifier(store, nil)
	fetcher := &fakeFetcher{}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC))

	engine := New(fetcher, store, classifier, Options{
		Debounce:         debounce,
		PageSize:         testPageSize,
		OverviewPageSize: testOverviewSize,
		Clock:            clock,
		Location:         time.UTC,
	})
	classifier.OnExpired(engine.Halt)

	return &harness{engine: engine, fetcher: fetcher, store: store, classifier: classifier, clock: clock}
}

// bootstrap runs the initial cycle and drains its event.
func (h *harness) bootstrap(t *testing.T) {
	t.Helper()
	ev := h.engine.Bootstrap(context.Background(), query.Default())
	require.NoError(t, ev.Err)
	h.nextEvent(t)
	h.fetcher.reset()
}

func (h *harness) nextEvent(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-h.engine.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for refresh event")
		return Event{}
	}
}

func (h *harness) assertNoEvent(t *testing.T) {
	t.Helper()
	select {
	case ev := <-h.engine.Events():
		t.Fatalf("unexpected refresh event: cycle %d views %s", ev.Cycle, ev.Requested)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBootstrapFetchesAllViews(t *testing.T) {
	h := newHarness(t)
	h.fetcher.todos = []model.Todo{{ID: "t1", Title: "A", Status: model.StatusTodo}}

	ev := h.engine.Bootstrap(context.Background(), query.Default())
	require.NoError(t, ev.Err)
	assert.Equal(t, AllViews, ev.Updated)

	filtered, overview, categories, stats := h.fetcher.counts()
	assert.Len(t, filtered, 1)
	assert.Len(t, overview, 1)
	assert.Equal(t, 1, categories)
	assert.Equal(t, 1, stats)

	views := h.engine.Snapshot()
	assert.Len(t, views.Filtered, 1)
	assert.Len(t, views.Categories, 1)
	assert.Equal(t, 3, views.Stats.TotalTodos)
	assert.Equal(t, AllViews, views.Loaded)
	assert.False(t, h.engine.Pending(), "bootstrap is not debounced")
}

func TestOverviewQueryIsUnconstrained(t *testing.T) {
	h := newHarness(t)
	h.engine.Bootstrap(context.Background(), query.State{Search: "milk", Filter: query.FilterDone, Sort: query.SortPriority})

	filtered, overview, _, _ := h.fetcher.counts()
	require.Len(t, filtered, 1)
	require.Len(t, overview, 1)

	assert.Equal(t, "milk", filtered[0].Keyword)
	assert.Equal(t, model.StatusDone, filtered[0].Status)
	assert.Equal(t, "priority", filtered[0].SortBy)
	assert.Equal(t, testPageSize, filtered[0].PageSize)

	assert.Equal(t, api.TodoQuery{Page: 1, PageSize: testOverviewSize, SortBy: "created_at", SortOrder: api.SortDesc}, overview[0])
}

func TestQueryBurstCollapsesToOneFetchPair(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)

	for _, text := range []string{"m", "mi", "mil", "milk"} {
		h.engine.QueryChanged(query.State{Search: text, Filter: query.FilterAll, Sort: query.SortCreatedAt})
		h.clock.Advance(100 * time.Millisecond)
	}
	filtered, _, _, _ := h.fetcher.counts()
	assert.Empty(t, filtered, "no fetch before the quiet period elapses")

	h.clock.Advance(debounce)
	ev := h.nextEvent(t)
	assert.Equal(t, QueryRefresh, ev.Requested)
	h.assertNoEvent(t)

	filtered, overview, categories, stats := h.fetcher.counts()
	require.Len(t, filtered, 1)
	assert.Len(t, overview, 1)
	assert.Equal(t, "milk", filtered[0].Keyword)
	assert.Zero(t, categories, "query changes never refresh categories")
	assert.Zero(t, stats, "query changes never refresh stats")
}

func TestRapidFilterChangesFetchLastFilter(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)

	holder := query.NewHolder(h.engine.QueryChanged)
	holder.SetFilter(query.FilterAll)
	holder.SetFilter(query.FilterDone)
	h.clock.Advance(50 * time.Millisecond)
	holder.SetFilter(query.FilterTodo)

	h.clock.Advance(debounce - time.Millisecond)
	assert.True(t, h.engine.Pending())

	h.clock.Advance(time.Millisecond)
	h.nextEvent(t)
	h.assertNoEvent(t)

	filtered, overview, _, _ := h.fetcher.counts()
	require.Len(t, filtered, 1)
	assert.Len(t, overview, 1)
	assert.Equal(t, model.StatusTodo, filtered[0].Status)
	assert.Equal(t, query.FilterTodo, h.engine.Snapshot().Query.Filter)
}

func TestMutationRefreshFetchesEachViewOnce(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)

	// A pending query refresh is absorbed by the mutation refresh.
	h.engine.QueryChanged(query.State{Filter: query.FilterHigh, Sort: query.SortCreatedAt})
	ev := h.engine.Refresh(context.Background(), MutationRefresh)
	require.NoError(t, ev.Err)
	assert.Equal(t, MutationRefresh, ev.Updated)
	assert.False(t, h.engine.Pending())

	h.clock.Advance(debounce)
	h.nextEvent(t)
	h.assertNoEvent(t)

	filtered, overview, categories, stats := h.fetcher.counts()
	require.Len(t, filtered, 1)
	assert.Equal(t, model.PriorityHigh, filtered[0].Priority)
	assert.Len(t, overview, 1)
	assert.Equal(t, 1, stats)
	assert.Zero(t, categories)
}

func TestTransientFailureDoesNotAbortCycle(t *testing.T) {
	h := newHarness(t)
	h.fetcher.statsErr = &api.Error{Kind: api.KindTransport, Message: "backend unreachable"}

	ev := h.engine.Bootstrap(context.Background(), query.Default())
	require.Error(t, ev.Err)
	assert.False(t, ev.SessionExpired())
	assert.Equal(t, session.MessageUnreachable, ev.Verdict.Message)
	assert.Equal(t, ViewFiltered|ViewOverview|ViewCategories, ev.Updated)
	assert.False(t, h.engine.Halted())
	assert.True(t, h.store.Valid())
}

func TestSessionExpiryAbortsCycleAndHalts(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)

	h.fetcher.blockTodos = true
	h.fetcher.statsErr = &api.Error{Kind: api.KindAuthExpired, Code: 401, Epoch: h.store.Epoch()}

	ev := h.engine.Refresh(context.Background(), MutationRefresh)
	assert.True(t, ev.SessionExpired())
	assert.Equal(t, ViewSet(0), ev.Updated)
	assert.True(t, h.engine.Halted())
	assert.False(t, h.store.Valid())
	h.nextEvent(t)

	// Nothing is scheduled or fetched until a new session exists.
	h.fetcher.reset()
	h.engine.QueryChanged(query.State{Filter: query.FilterDone, Sort: query.SortCreatedAt})
	assert.False(t, h.engine.Pending())
	h.clock.Advance(debounce)
	h.assertNoEvent(t)

	ev = h.engine.Refresh(context.Background(), MutationRefresh)
	assert.ErrorIs(t, ev.Err, ErrHalted)
	filtered, overview, _, stats := h.fetcher.counts()
	assert.Empty(t, filtered)
	assert.Empty(t, overview)
	assert.Zero(t, stats)

	// A new session resumes with the latest selection.
	h.fetcher.blockTodos = false
	h.fetcher.statsErr = nil
	h.store.Establish("tok-2")
	ev = h.engine.Bootstrap(context.Background(), query.State{Filter: query.FilterDone, Sort: query.SortCreatedAt})
	require.NoError(t, ev.Err)
	assert.Equal(t, AllViews, ev.Updated)
	assert.False(t, h.engine.Halted())
}

func TestResultsFromSupersededSessionAreDiscarded(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)

	var once gosync.Once
	h.fetcher.onList = func() { once.Do(func() { h.store.Establish("other") }) }
	h.fetcher.todos = []model.Todo{{ID: "t9", Title: "late"}}

	ev := h.engine.Refresh(context.Background(), QueryRefresh)
	assert.NoError(t, ev.Err)
	assert.Equal(t, ViewSet(0), ev.Updated)
	assert.Empty(t, h.engine.Snapshot().Filtered)
}

func TestSnapshotCountsOverview(t *testing.T) {
	h := newHarness(t)
	today := h.engine.Today()
	due := func(days int) *model.Date {
		d := today.AddDays(days)
		return &d
	}
	h.fetcher.todos = []model.Todo{
		{ID: "1", Status: model.StatusTodo, DueDate: due(0)},
		{ID: "2", Status: model.StatusTodo, DueDate: due(1)},
		{ID: "3", Status: model.StatusDone, DueDate: due(0)},
		{ID: "4", Status: model.StatusTodo},
	}
	h.engine.Bootstrap(context.Background(), query.Default())

	counts := h.engine.Snapshot().Counts
	assert.Equal(t, QuickCounts{All: 4, Todo: 3, Done: 1, Today: 1, Soon: 1}, counts)
}

func TestViewSetString(t *testing.T) {
	assert.Equal(t, "filtered+overview+stats", MutationRefresh.String())
	assert.Equal(t, "none", ViewSet(0).String())
}

// holdFirst gates the first filtered query matching match until release
// is closed, and closes entered once that query is on the wire.
func holdFirst(match func(api.TodoQuery) bool) (gate func(api.TodoQuery) <-chan struct{}, entered, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	var once gosync.Once
	gate = func(q api.TodoQuery) <-chan struct{} {
		if q.PageSize != testPageSize || !match(q) {
			return nil
		}
		var held <-chan struct{}
		once.Do(func() {
			close(entered)
			held = release
		})
		return held
	}
	return gate, entered, release
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fetch")
	}
}

func TestOlderQueryCycleDoesNotOverwriteNewer(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)

	gate, entered, release := holdFirst(func(q api.TodoQuery) bool {
		return q.Status == model.StatusDone
	})
	h.fetcher.mu.Lock()
	h.fetcher.serve = func(q api.TodoQuery) []model.Todo {
		return []model.Todo{{ID: q.Status, Title: q.Status, Status: q.Status}}
	}
	h.fetcher.gate = gate
	h.fetcher.mu.Unlock()

	done := query.Default()
	done.Filter = query.FilterDone
	h.engine.QueryChanged(done)

	older := make(chan Event, 1)
	go func() { older <- h.engine.Refresh(context.Background(), QueryRefresh) }()
	waitClosed(t, entered)

	todo := query.Default()
	todo.Filter = query.FilterTodo
	h.engine.QueryChanged(todo)
	newer := h.engine.Refresh(context.Background(), QueryRefresh)
	require.NoError(t, newer.Err)
	assert.True(t, newer.Updated.Has(ViewFiltered))

	close(release)
	var ev Event
	select {
	case ev = <-older:
	case <-time.After(2 * time.Second):
		t.Fatal("older cycle did not settle")
	}
	assert.False(t, ev.Updated.Has(ViewFiltered), "older filtered result must be dropped")

	views := h.engine.Snapshot()
	assert.Equal(t, query.FilterTodo, views.Query.Filter)
	require.Len(t, views.Filtered, 1)
	assert.Equal(t, model.StatusTodo, views.Filtered[0].ID)
}

func TestReadStartedBeforeMutationCannotRestoreDeletedTodo(t *testing.T) {
	h := newHarness(t)
	h.fetcher.todos = []model.Todo{{ID: "keep"}, {ID: "gone"}}
	h.bootstrap(t)

	gate, entered, release := holdFirst(func(api.TodoQuery) bool { return true })
	h.fetcher.mu.Lock()
	h.fetcher.gate = gate
	h.fetcher.mu.Unlock()

	stale := make(chan Event, 1)
	go func() { stale <- h.engine.Refresh(context.Background(), QueryRefresh) }()
	waitClosed(t, entered)

	// The delete lands on the server, then its refresh set settles.
	h.fetcher.mu.Lock()
	h.fetcher.todos = []model.Todo{{ID: "keep"}}
	h.fetcher.mu.Unlock()
	ev := h.engine.Refresh(context.Background(), MutationRefresh)
	require.NoError(t, ev.Err)

	close(release)
	select {
	case <-stale:
	case <-time.After(2 * time.Second):
		t.Fatal("stale cycle did not settle")
	}

	views := h.engine.Snapshot()
	require.Len(t, views.Filtered, 1)
	assert.Equal(t, "keep", views.Filtered[0].ID)
	require.Len(t, views.Overview, 1)
	assert.Equal(t, "keep", views.Overview[0].ID)
}
