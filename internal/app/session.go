package app

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todosync/internal/api"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/session"
	"github.com/nhle/todosync/internal/sync"
	"github.com/nhle/todosync/internal/theme"
	"github.com/nhle/todosync/internal/ui"
)

// sessionReadyMsg is sent once the session store holds a valid token and
// the user's profile is loaded.
type sessionReadyMsg struct {
	user *model.User
}

// sessionFailedMsg is sent when no session could be established without
// asking the user.
type sessionFailedMsg struct {
	err error
}

// loginFailedMsg is sent when submitted credentials were not accepted.
type loginFailedMsg struct {
	message string
}

// accountCreatedMsg is sent after an admin created an account.
type accountCreatedMsg struct {
	user *model.User
}

// startSession resumes a persisted session or, in demo mode, provisions
// the demo account.
func (m Model) startSession() tea.Cmd {
	boot := m.deps.Boot
	timeout := m.deps.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		user, err := boot.Run(ctx)
		if err != nil {
			return sessionFailedMsg{err: err}
		}
		return sessionReadyMsg{user: user}
	}
}

func (m Model) login(username, password string) tea.Cmd {
	boot := m.deps.Boot
	timeout := m.deps.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		user, err := boot.Login(ctx, username, password)
		if err != nil {
			return loginFailedMsg{message: loginFailure(err)}
		}
		return sessionReadyMsg{user: user}
	}
}

// loginFailure returns the text shown on the sign-in form.
func loginFailure(err error) string {
	switch {
	case api.IsTransport(err):
		return session.MessageUnreachable
	case api.IsAuthExpired(err):
		return "invalid username or password"
	}
	if apiErr, ok := api.AsError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// onSessionReady starts a fresh view state for the new session.
func (m *Model) onSessionReady(user *model.User) tea.Cmd {
	m.user = user
	m.errMsg = ""
	m.statusMsg = ""
	m.currentView = ViewList
	m.previousView = ViewList
	m.deps.Holder.Reset()
	m.deps.Logger.Info("session established", "user", user.Username, "epoch", m.deps.Session.Epoch())

	engine := m.deps.Engine
	state := m.deps.Holder.State()
	timeout := m.deps.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		// The settled cycle arrives through the engine's event channel.
		engine.Bootstrap(ctx, state)
		return nil
	}
}

func (m *Model) onSessionFailed(err error) tea.Cmd {
	m.user = nil
	if errors.Is(err, session.ErrLoginRequired) {
		m.currentView = ViewLogin
		return m.loginView.StartLogin("")
	}
	m.deps.Logger.Warn("session unavailable", "error", err)
	m.currentView = ViewOffline
	return nil
}

// onSessionExpired leaves the current session. The engine is already
// halted by the classifier. Demo mode provisions a new demo session; login
// mode asks for credentials.
func (m *Model) onSessionExpired(message string) tea.Cmd {
	if m.user == nil {
		return nil
	}
	m.user = nil
	m.views = sync.Views{}
	m.statusMsg = ""
	m.errMsg = message
	m.deps.Logger.Info("session expired")

	if m.deps.Boot.Mode() == model.AuthModeDemo {
		m.currentView = ViewConnecting
		return m.startSession()
	}
	m.currentView = ViewLogin
	return m.loginView.StartLogin(message)
}

// onRefreshEvent applies a settled refresh cycle.
func (m *Model) onRefreshEvent(ev sync.Event) tea.Cmd {
	if ev.SessionExpired() {
		return m.onSessionExpired(ev.Verdict.Message)
	}
	if ev.Verdict.Stale || errors.Is(ev.Err, sync.ErrHalted) {
		return nil
	}
	if ev.Err != nil {
		m.errMsg = ev.Verdict.Message
	} else {
		m.errMsg = ""
	}
	return m.applySnapshot()
}

// onError routes a failed read that ran outside the engine.
func (m *Model) onError(op string, err error) tea.Cmd {
	verdict := m.deps.Classifier.Classify(err)
	m.deps.Logger.Warn("request failed", "op", op, "error", err)
	if verdict.Stale {
		return nil
	}
	if verdict.SessionExpired {
		return m.onSessionExpired(verdict.Message)
	}
	m.errMsg = verdict.Message
	return nil
}

// logout revokes the token on the server, then drops the local session.
func (m *Model) logout() tea.Cmd {
	client := m.deps.API
	timeout := m.deps.Timeout
	logger := m.deps.Logger
	revoke := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := client.Logout(ctx); err != nil {
			logger.Warn("logout request failed", "error", err)
		}
		return nil
	}

	sess := m.deps.Session
	token, _ := sess.Token()
	m.deps.Engine.Halt()
	m.user = nil
	m.views = sync.Views{}
	m.errMsg = ""
	m.statusMsg = ""
	m.currentView = ViewLogin
	start := m.loginView.StartLogin("")

	if token == "" {
		sess.Invalidate()
		return start
	}
	// The token must still be attached when the revoke request is sent.
	return tea.Sequence(revoke, func() tea.Msg {
		sess.Invalidate()
		return nil
	}, start)
}

func (m *Model) openAccount() tea.Cmd {
	if m.user == nil || !m.user.IsAdmin() {
		m.errMsg = "only administrators can create accounts"
		return nil
	}
	m.currentView = ViewAccount
	return m.loginView.StartAccount()
}

func (m Model) createAccount(reg api.Registration) tea.Cmd {
	client := m.deps.API
	timeout := m.deps.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		user, err := client.CreateUser(ctx, reg)
		if err != nil {
			return accountFailedMsg(err)
		}
		return accountCreatedMsg{user: user}
	}
}

// accountFailedMsg keeps the account form open on conflicts and routes
// everything else through the classifier.
func accountFailedMsg(err error) tea.Msg {
	if api.CodeOf(err) == api.CodeConflict {
		return loginFailedMsg{message: "username already exists"}
	}
	return ui.ErrorMsg{Op: "create-account", Err: err}
}

func (m Model) centered(text string) string {
	return lipgloss.NewStyle().
		Width(m.layout.ContentWidth()).
		Height(m.layout.ContentHeight()).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray).
		Render(text)
}
