// Package sync keeps the client's server-backed views current: the
// filtered todo list, the unfiltered overview used for quick-category
// counts, the category list and the server stats.
package sync

import (
	"context"
	"errors"
	"log/slog"
	gosync "sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/todosync/internal/api"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/query"
	"github.com/nhle/todosync/internal/session"
)

// ErrHalted is returned for refreshes requested after the session expired
// and before the next Bootstrap.
var ErrHalted = errors.New("sync: halted until a new session is established")

// ViewSet is a set of views to refresh.
type ViewSet uint8

const (
	ViewFiltered ViewSet = 1 << iota
	ViewOverview
	ViewCategories
	ViewStats
)

// Refresh sets for each trigger.
const (
	QueryRefresh    = ViewFiltered | ViewOverview
	MutationRefresh = ViewFiltered | ViewOverview | ViewStats
	CategoryRefresh = ViewCategories | ViewFiltered | ViewOverview
	AllViews        = ViewFiltered | ViewOverview | ViewCategories | ViewStats
)

// singleViews lists every individual view.
var singleViews = []ViewSet{ViewFiltered, ViewOverview, ViewCategories, ViewStats}

// Has reports whether every view in other is in s.
func (s ViewSet) Has(other ViewSet) bool { return s&other == other }

func (s ViewSet) String() string {
	names := []struct {
		v    ViewSet
		name string
	}{
		{ViewFiltered, "filtered"},
		{ViewOverview, "overview"},
		{ViewCategories, "categories"},
		{ViewStats, "stats"},
	}
	out := ""
	for _, n := range names {
		if s.Has(n.v) {
			if out != "" {
				out += "+"
			}
			out += n.name
		}
	}
	if out == "" {
		return "none"
	}
	return out
}

// Fetcher is the read side of the REST API.
type Fetcher interface {
	ListTodos(ctx context.Context, q api.TodoQuery) (*model.Page[model.Todo], error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	StatsSummary(ctx context.Context) (*model.Stats, error)
}

// SessionState exposes the session epoch that refresh results are
// checked against.
type SessionState interface {
	Epoch() uint64
}

// Classifier routes fetch failures.
type Classifier interface {
	Classify(err error) session.Verdict
}

// Views is a snapshot of the client-side view state.
type Views struct {
	// Query is the selection the filtered view was fetched with.
	Query         query.State
	Filtered      []model.Todo
	FilteredTotal int
	Overview      []model.Todo
	Counts        QuickCounts
	Categories    []model.Category
	Stats         model.Stats
	// Loaded holds the views fetched at least once this session.
	Loaded ViewSet
	Epoch  uint64
}

// Event is a tea.Msg sent when a refresh cycle settles.
type Event struct {
	Cycle     uint64
	Requested ViewSet
	// Updated holds the views whose results were applied.
	Updated ViewSet
	// Err is the first failure of the cycle, if any.
	Err     error
	Verdict session.Verdict
}

// SessionExpired reports whether the cycle ended because the session
// expired.
func (ev Event) SessionExpired() bool {
	return ev.Verdict.SessionExpired && !ev.Verdict.Stale
}

// Options configure an Engine.
type Options struct {
	Debounce         time.Duration
	PageSize         int
	OverviewPageSize int
	// FetchTimeout bounds debounced cycles, which have no caller context.
	FetchTimeout time.Duration
	Clock        clockwork.Clock
	Location     *time.Location
	Logger       *slog.Logger
}

const (
	defaultDebounce         = 300 * time.Millisecond
	defaultPageSize         = 50
	defaultOverviewPageSize = 100
	defaultFetchTimeout     = 30 * time.Second
)

// Engine schedules and runs refresh cycles. Query changes are debounced;
// bootstrap and mutation refreshes run immediately. Results are written
// only while the session epoch the cycle started under is still current,
// and never over a view already claimed by a later cycle.
type Engine struct {
	fetcher    Fetcher
	session    SessionState
	classifier Classifier
	opts       Options
	logger     *slog.Logger
	events     chan Event
	inflight   atomic.Int32

	mu         gosync.Mutex
	query      query.State
	views      Views
	pending    clockwork.Timer
	generation uint64
	cycle      uint64
	// latest is the newest cycle started for each view.
	latest     map[ViewSet]uint64
	halted     bool
}

// New returns an Engine. It starts halted; call Bootstrap once a session
// is established.
func New(fetcher Fetcher, sess SessionState, classifier Classifier, opts Options) *Engine {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.OverviewPageSize <= 0 {
		opts.OverviewPageSize = defaultOverviewPageSize
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		fetcher:    fetcher,
		session:    sess,
		classifier: classifier,
		opts:       opts,
		logger:     opts.Logger,
		events:     make(chan Event, 16),
		query:      query.Default(),
		latest:     make(map[ViewSet]uint64),
		halted:     true,
	}
}

// Today returns the current calendar date in the engine's location.
func (e *Engine) Today() model.Date {
	return model.DateOf(e.opts.Clock.Now().In(e.opts.Location))
}

// Snapshot returns a copy of the current views with quick counts computed
// for today.
func (e *Engine) Snapshot() Views {
	e.mu.Lock()
	v := e.views
	v.Filtered = append([]model.Todo(nil), e.views.Filtered...)
	v.Overview = append([]model.Todo(nil), e.views.Overview...)
	v.Categories = append([]model.Category(nil), e.views.Categories...)
	e.mu.Unlock()

	v.Counts = CountQuick(v.Overview, e.Today())
	return v
}

// Busy reports whether a refresh cycle is running.
func (e *Engine) Busy() bool {
	return e.inflight.Load() > 0
}

// Halted reports whether the engine is waiting for a new session.
func (e *Engine) Halted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halted
}

// Bootstrap starts a session's view state: it adopts state, clears the
// previous session's views and eagerly refreshes all four views.
func (e *Engine) Bootstrap(ctx context.Context, state query.State) Event {
	e.mu.Lock()
	e.halted = false
	e.query = state
	e.cancelPendingLocked()
	e.views = Views{Query: state, Epoch: e.session.Epoch()}
	e.mu.Unlock()

	return e.Refresh(ctx, AllViews)
}

// Halt stops all scheduled work and discards the views. In-flight fetches
// are left to finish; their results are dropped.
func (e *Engine) Halt() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.halted {
		return
	}
	e.halted = true
	e.cancelPendingLocked()
	e.views = Views{Query: e.query}
	e.logger.Info("sync halted")
}

// QueryChanged records state and schedules a filtered and overview
// refresh after the debounce period, replacing any refresh already
// scheduled.
func (e *Engine) QueryChanged(state query.State) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.query = state
	if e.halted {
		return
	}
	e.cancelPendingLocked()
	gen := e.generation
	e.pending = e.opts.Clock.AfterFunc(e.opts.Debounce, func() {
		e.fire(gen)
	})
}

// Pending reports whether a debounced refresh is scheduled.
func (e *Engine) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending != nil
}

// cancelPendingLocked stops the scheduled refresh. The generation bump
// drops a callback that already fired but has not yet taken the lock.
func (e *Engine) cancelPendingLocked() {
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
	e.generation++
}

func (e *Engine) fire(gen uint64) {
	e.mu.Lock()
	if gen != e.generation || e.halted {
		e.mu.Unlock()
		return
	}
	e.pending = nil
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.FetchTimeout)
	defer cancel()
	e.Refresh(ctx, QueryRefresh)
}

// Refresh runs one cycle fetching set concurrently and blocks until every
// fetch has completed or failed. A session expiry aborts the remaining
// fetches and halts the engine; other failures are recorded and the rest
// of the cycle proceeds. The settled cycle is returned and also published
// on the event channel.
func (e *Engine) Refresh(ctx context.Context, set ViewSet) Event {
	e.mu.Lock()
	if e.halted {
		e.mu.Unlock()
		return Event{Requested: set, Err: ErrHalted}
	}
	if set.Has(QueryRefresh) {
		// This cycle covers what the scheduled one would fetch.
		e.cancelPendingLocked()
	}
	e.cycle++
	ev := Event{Cycle: e.cycle, Requested: set}
	for _, view := range singleViews {
		if set.Has(view) {
			e.latest[view] = ev.Cycle
		}
	}
	state := e.query
	e.mu.Unlock()

	e.inflight.Add(1)
	defer e.inflight.Add(-1)

	epoch := e.session.Epoch()
	logger := e.logger.With("cycle", ev.Cycle, "views", set.String())
	logger.Debug("refresh started", "epoch", epoch)

	var resMu gosync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	run := func(view ViewSet, fetch func(ctx context.Context) (func(*Views), error)) {
		if !set.Has(view) {
			return
		}
		g.Go(func() error {
			apply, err := fetch(gctx)
			if err != nil {
				if gctx.Err() != nil && errors.Is(err, context.Canceled) {
					return nil
				}
				verdict := e.classifier.Classify(err)
				resMu.Lock()
				if ev.Err == nil || (verdict.SessionExpired && !ev.Verdict.SessionExpired) {
					ev.Err = err
					ev.Verdict = verdict
				}
				resMu.Unlock()
				logger.Warn("fetch failed", "view", view.String(), "error", err)
				if verdict.SessionExpired {
					return err
				}
				return nil
			}
			if e.commit(epoch, ev.Cycle, view, apply) {
				resMu.Lock()
				ev.Updated |= view
				resMu.Unlock()
			}
			return nil
		})
	}

	run(ViewFiltered, func(ctx context.Context) (func(*Views), error) {
		page, err := e.fetcher.ListTodos(ctx, state.ListQuery(e.opts.PageSize))
		if err != nil {
			return nil, err
		}
		return func(v *Views) {
			v.Query = state
			v.Filtered = page.Items
			v.FilteredTotal = page.Total
		}, nil
	})
	run(ViewOverview, func(ctx context.Context) (func(*Views), error) {
		page, err := e.fetcher.ListTodos(ctx, e.overviewQuery())
		if err != nil {
			return nil, err
		}
		return func(v *Views) { v.Overview = page.Items }, nil
	})
	run(ViewCategories, func(ctx context.Context) (func(*Views), error) {
		categories, err := e.fetcher.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		return func(v *Views) { v.Categories = categories }, nil
	})
	run(ViewStats, func(ctx context.Context) (func(*Views), error) {
		stats, err := e.fetcher.StatsSummary(ctx)
		if err != nil {
			return nil, err
		}
		return func(v *Views) { v.Stats = *stats }, nil
	})

	_ = g.Wait()

	if ev.SessionExpired() {
		e.Halt()
	}
	logger.Debug("refresh settled", "updated", ev.Updated.String())
	e.publish(ev)
	return ev
}

// overviewQuery is the unconstrained request behind quick counts.
func (e *Engine) overviewQuery() api.TodoQuery {
	return api.TodoQuery{
		Page:      1,
		PageSize:  e.opts.OverviewPageSize,
		SortBy:    string(query.SortCreatedAt),
		SortOrder: api.SortDesc,
	}
}

// commit applies a fetch result if the session it was fetched under is
// still current and no later cycle has started for the view.
func (e *Engine) commit(epoch, cycle uint64, view ViewSet, apply func(*Views)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.halted || e.session.Epoch() != epoch {
		e.logger.Debug("discarding result from superseded session", "epoch", epoch)
		return false
	}
	if cycle < e.latest[view] {
		e.logger.Debug("discarding result from superseded cycle",
			"cycle", cycle, "latest", e.latest[view], "view", view.String())
		return false
	}
	apply(&e.views)
	e.views.Loaded |= view
	e.views.Epoch = epoch
	return true
}

// Events returns the channel settled cycles are published on.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// publish sends ev without blocking.
func (e *Engine) publish(ev Event) {
	select {
	case e.events <- ev:
	default:
		e.logger.Warn("event channel full, dropping refresh event", "cycle", ev.Cycle)
	}
}

// WaitForEvent returns a tea.Cmd that waits for the next settled cycle.
// Call it again after handling each Event to keep listening.
func (e *Engine) WaitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-e.events
		if !ok {
			return nil
		}
		return ev
	}
}
