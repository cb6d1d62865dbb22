package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/todosync/internal/api"
	"github.com/nhle/todosync/internal/keys"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/mutation"
	"github.com/nhle/todosync/internal/query"
	"github.com/nhle/todosync/internal/session"
	"github.com/nhle/todosync/internal/sync"
	"github.com/nhle/todosync/internal/ui"
	"github.com/nhle/todosync/internal/ui/categorymgr"
	"github.com/nhle/todosync/internal/ui/command"
	"github.com/nhle/todosync/internal/ui/detail"
	helpview "github.com/nhle/todosync/internal/ui/help"
	"github.com/nhle/todosync/internal/ui/loginform"
	"github.com/nhle/todosync/internal/ui/sidebar"
	"github.com/nhle/todosync/internal/ui/todoform"
	"github.com/nhle/todosync/internal/ui/todolist"
	"github.com/nhle/todosync/internal/ui/trash"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewConnecting ViewState = iota
	ViewOffline
	ViewLogin
	ViewList
	ViewDetail
	ViewHelp
	ViewCommand
	ViewTodoCreate
	ViewTodoEdit
	ViewCategories
	ViewTrash
	ViewAccount
)

// Deps are the client components the UI drives.
type Deps struct {
	Session     *session.Store
	Classifier  *session.Classifier
	Boot        *session.Bootstrapper
	Engine      *sync.Engine
	Holder      *query.Holder
	Coordinator *mutation.Coordinator
	API         *api.Client
	// Timeout bounds every command the UI runs.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Model is the root Bubble Tea model that manages view routing,
// layout and the session lifecycle.
type Model struct {
	deps         Deps
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	todoList     todolist.Model
	detail       detail.Model
	sidebar      sidebar.Model
	helpView     helpview.Model
	commandView  command.Model
	todoFormView todoform.Model
	loginView    loginform.Model
	categoryView categorymgr.Model
	trashView    trash.Model
	views        sync.Views
	user         *model.User
	ready        bool
	statusMsg    string
	errMsg       string
}

// New creates the root application model.
func New(deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 10 * time.Second
	}
	k := keys.DefaultKeyMap()
	layout := ui.NewLayout(80, 24)

	return Model{
		deps:         deps,
		currentView:  ViewConnecting,
		layout:       layout,
		keys:         k,
		todoList:     todolist.New(deps.Holder, k, 80, 24),
		detail:       detail.New(k, 80, 24),
		sidebar:      sidebar.New(layout.SidebarWidth),
		helpView:     helpview.New(k, 80, 24),
		commandView:  command.New(80, 24),
		todoFormView: todoform.New(80, 24),
		loginView:    loginform.New(80, 24),
		categoryView: categorymgr.New(deps.Coordinator, k, deps.Timeout, 80, 24),
		trashView:    trash.New(deps.API, deps.Coordinator, k, deps.Timeout, 80, 24),
	}
}

// Init starts listening for refresh events and establishes a session.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.deps.Engine.WaitForEvent(),
		m.startSession(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case sessionReadyMsg:
		cmd := m.onSessionReady(msg.user)
		return m, cmd

	case sessionFailedMsg:
		cmd := m.onSessionFailed(msg.err)
		return m, cmd

	case loginFailedMsg:
		if m.currentView == ViewAccount {
			cmd := m.loginView.StartAccount()
			m.loginView.SetError(msg.message)
			return m, cmd
		}
		cmd := m.loginView.StartLogin(msg.message)
		return m, cmd

	case sync.Event:
		cmd := m.onRefreshEvent(msg)
		return m, tea.Batch(cmd, m.deps.Engine.WaitForEvent())

	case ui.MutationMsg:
		cmd := m.onMutation(msg.Result)
		return m, cmd

	case ui.ErrorMsg:
		if m.currentView == ViewAccount {
			m.currentView = ViewList
		}
		cmd := m.onError(msg.Op, msg.Err)
		return m, cmd

	case accountCreatedMsg:
		m.currentView = ViewList
		m.statusMsg = fmt.Sprintf("Account %q created", msg.user.Username)
		return m, nil

	case loginform.LoginMsg:
		m.loginView.SetError("")
		return m, m.login(msg.Username, msg.Password)

	case loginform.AccountMsg:
		return m, m.createAccount(msg.Registration)

	case loginform.CancelMsg:
		if m.currentView == ViewAccount {
			m.currentView = ViewList
			return m, nil
		}
		cmd := m.loginView.StartLogin("")
		return m, cmd

	case todolist.SelectedTodoMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detail.SetTodo(msg.Todo, m.views.Categories, m.deps.Engine.Today())
		return m, nil

	case todoform.CreateMsg:
		m.currentView = ViewList
		return m, m.createTodo(msg.Draft)

	case todoform.UpdateMsg:
		m.currentView = m.previousView
		if msg.Patch.IsEmpty() {
			return m, nil
		}
		return m, m.updateTodo(msg.ID, msg.Patch)

	case todoform.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case detail.ActionMsg:
		cmd := m.todoAction(msg.Action, msg.Todo)
		return m, cmd

	case command.CommandMsg:
		m.currentView = m.previousView
		cmd := m.executeCommand(msg)
		return m, cmd

	case categorymgr.CloseMsg:
		m.currentView = ViewList
		return m, nil

	case trash.CloseMsg:
		m.currentView = ViewList
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		if m.acceptsGlobalKeys() {
			if next, cmd, handled := m.handleGlobalKey(msg); handled {
				return next, cmd
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// acceptsGlobalKeys reports whether the active view leaves single-letter
// keys to the application. Forms and text inputs keep them.
func (m Model) acceptsGlobalKeys() bool {
	switch m.currentView {
	case ViewList:
		return !m.todoList.Searching()
	case ViewDetail, ViewHelp, ViewOffline:
		return true
	}
	return false
}

func (m Model) handleGlobalKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.currentView == ViewList || m.currentView == ViewOffline {
			return m, m.quit(), true
		}

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case key.Matches(msg, m.keys.Back):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}

	case key.Matches(msg, m.keys.Command):
		if m.currentView == ViewOffline {
			return m, nil, false
		}
		m.previousView = m.currentView
		m.currentView = ViewCommand
		cmd := m.commandView.Focus()
		return m, cmd, true

	case key.Matches(msg, m.keys.Refresh):
		if m.currentView == ViewOffline {
			m.currentView = ViewConnecting
			return m, m.startSession(), true
		}
		if m.currentView == ViewList {
			m.statusMsg = ""
			return m, m.refreshAll(), true
		}
	}

	if m.currentView != ViewList {
		return m, nil, false
	}
	m.statusMsg = ""

	switch {
	case key.Matches(msg, m.keys.New):
		m.previousView = ViewList
		m.currentView = ViewTodoCreate
		cmd := m.todoFormView.StartCreate()
		return m, cmd, true

	case key.Matches(msg, m.keys.Edit):
		if todo, ok := m.todoList.Selected(); ok {
			m.previousView = ViewList
			m.currentView = ViewTodoEdit
			cmd := m.todoFormView.StartEdit(todo)
			return m, cmd, true
		}
		return m, nil, true

	case key.Matches(msg, m.keys.Toggle):
		if todo, ok := m.todoList.Selected(); ok {
			cmd := m.todoAction(detail.ActionToggle, todo)
			return m, cmd, true
		}
		return m, nil, true

	case key.Matches(msg, m.keys.Delete):
		if todo, ok := m.todoList.Selected(); ok {
			cmd := m.todoAction(detail.ActionDelete, todo)
			return m, cmd, true
		}
		return m, nil, true

	case key.Matches(msg, m.keys.ClearDone):
		return m, m.clearDone(), true

	case key.Matches(msg, m.keys.Categories):
		m.openCategories()
		return m, nil, true

	case key.Matches(msg, m.keys.Trash):
		m.currentView = ViewTrash
		cmd := m.trashView.Open()
		return m, cmd, true

	case key.Matches(msg, m.keys.AddAccount):
		cmd := m.openAccount()
		return m, cmd, true

	case key.Matches(msg, m.keys.Logout):
		cmd := m.logout()
		return m, cmd, true
	}
	return m, nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.todoList, cmd = m.todoList.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		if km, ok := msg.(tea.KeyMsg); ok && key.Matches(km, m.keys.Back) {
			m.currentView = m.previousView
			return m, nil
		}
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewTodoCreate, ViewTodoEdit:
		m.todoFormView, cmd = m.todoFormView.Update(msg)
	case ViewLogin, ViewAccount:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewCategories:
		m.categoryView, cmd = m.categoryView.Update(msg)
	case ViewTrash:
		m.trashView, cmd = m.trashView.Update(msg)
	}

	return m, cmd
}

func (m *Model) resize() {
	w := m.layout.ContentWidth()
	h := m.layout.ContentHeight()
	m.todoList.SetSize(w, h)
	m.detail.SetSize(w, h)
	m.helpView.SetSize(w, h)
	m.commandView.SetSize(w, h)
	m.todoFormView.SetSize(w, h)
	m.loginView.SetSize(w, h)
	m.categoryView.SetSize(w, h)
	m.trashView.SetSize(w, h)
	m.sidebar.SetWidth(m.layout.SidebarWidth)
}

// applySnapshot copies the engine's views into every component that
// renders them.
func (m *Model) applySnapshot() tea.Cmd {
	m.views = m.deps.Engine.Snapshot()
	today := m.deps.Engine.Today()

	m.sidebar.SetViews(m.views, m.deps.Holder.State().Filter)
	m.todoFormView.SetCategories(m.views.Categories)
	m.categoryView.SetCategories(m.views.Categories)
	if m.currentView == ViewDetail {
		listed := append(append([]model.Todo(nil), m.views.Filtered...), m.views.Overview...)
		m.detail.Refresh(listed, m.views.Categories, today)
	}
	return m.todoList.SetTodos(m.views.Filtered, m.views.FilteredTotal, m.views.Categories, today)
}

func (m *Model) openCategories() {
	m.categoryView.Reset()
	m.categoryView.SetCategories(m.views.Categories)
	m.currentView = ViewCategories
}

func (m *Model) quit() tea.Cmd {
	m.deps.Engine.Halt()
	return tea.Quit
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.syncStatus())

	content := m.renderContent()
	if m.showsSidebar() {
		sb := m.sidebar
		sb.SetViews(m.views, m.deps.Holder.State().Filter)
		sb.SetUser(m.user)
		content = m.layout.RenderBody(sb.View(), content)
	}

	statusBar := m.layout.RenderStatusBar(m.keyHints())
	if m.errMsg != "" {
		statusBar = m.layout.RenderErrorBar(m.errMsg)
	} else if m.statusMsg != "" {
		statusBar = m.layout.RenderStatusBar(m.statusMsg)
	}

	return m.layout.RenderWithFrame(header, content, statusBar)
}

func (m Model) showsSidebar() bool {
	switch m.currentView {
	case ViewList, ViewDetail, ViewCategories, ViewTrash:
		return m.user != nil
	}
	return false
}

func (m Model) headerTitle() string {
	if m.user == nil {
		return "Todo Sync"
	}
	return "Todo Sync · " + m.user.Username
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewConnecting:
		return m.centered("Connecting...")
	case ViewOffline:
		return m.centered(session.MessageUnreachable + "\n\nPress r to retry, q to quit.")
	case ViewList:
		return m.todoList.View()
	case ViewDetail:
		return m.detail.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewTodoCreate, ViewTodoEdit:
		return m.todoFormView.View()
	case ViewLogin, ViewAccount:
		return m.loginView.View()
	case ViewCategories:
		return m.categoryView.View()
	case ViewTrash:
		return m.trashView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the engine state.
func (m Model) syncStatus() string {
	e := m.deps.Engine
	switch {
	case e.Halted():
		return "signed out"
	case e.Busy():
		return "syncing..."
	case e.Pending():
		return "waiting..."
	case m.views.Loaded != sync.AllViews:
		return "loading..."
	default:
		return "synced"
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewDetail:
		return "esc back | e edit | x toggle | d delete | j/k scroll"
	case ViewTodoCreate, ViewTodoEdit, ViewAccount:
		return "enter submit | esc cancel"
	case ViewLogin:
		return "enter submit | ctrl+c quit"
	case ViewCategories:
		return "n new | e edit | d delete | esc back"
	case ViewTrash:
		return "r restore | d delete | E empty | esc back"
	case ViewOffline:
		return "r retry | q quit"
	case ViewConnecting:
		return "ctrl+c quit"
	default:
		if m.todoList.Searching() {
			return "type to search | enter keep | esc clear"
		}
		return "q quit | ? help | n new | x toggle | / search | 1-8 filter | tab sort"
	}
}
