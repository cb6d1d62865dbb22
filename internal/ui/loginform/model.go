// Package loginform collects credentials for signing in and for creating
// accounts.
package loginform

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todosync/internal/api"
	"github.com/nhle/todosync/internal/theme"
)

// LoginMsg is dispatched when the sign-in form is submitted.
type LoginMsg struct {
	Username string
	Password string
}

// AccountMsg is dispatched when the account form is submitted.
type AccountMsg struct {
	Registration api.Registration
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	username string
	password string
	email    string
}

// Model is the sign-in and account creation form.
type Model struct {
	form    *huh.Form
	fb      *formBindings
	account bool
	errMsg  string
	width   int
	height  int
}

// New creates a form model.
func New(width, height int) Model {
	return Model{fb: &formBindings{}, width: width, height: height}
}

// StartLogin resets the form for signing in. errMsg is shown above the
// fields, typically why the previous session ended.
func (m *Model) StartLogin(errMsg string) tea.Cmd {
	m.account = false
	m.errMsg = errMsg
	*m.fb = formBindings{}
	m.form = huh.NewForm(huh.NewGroup(
		m.usernameField(),
		m.passwordField(),
	)).WithWidth(m.formWidth())
	return m.form.Init()
}

// StartAccount resets the form for creating an account.
func (m *Model) StartAccount() tea.Cmd {
	m.account = true
	m.errMsg = ""
	*m.fb = formBindings{}
	m.form = huh.NewForm(huh.NewGroup(
		m.usernameField(),
		m.passwordField(),
		huh.NewInput().
			Title("Email").
			Placeholder("optional").
			Value(&m.fb.email),
	)).WithWidth(m.formWidth())
	return m.form.Init()
}

// SetError shows msg above the fields.
func (m *Model) SetError(msg string) {
	m.errMsg = msg
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		fb := *m.fb
		if m.account {
			reg := api.Registration{
				Username: strings.TrimSpace(fb.username),
				Password: fb.password,
				Email:    strings.TrimSpace(fb.email),
			}
			return m, func() tea.Msg { return AccountMsg{Registration: reg} }
		}
		return m, func() tea.Msg {
			return LoginMsg{Username: strings.TrimSpace(fb.username), Password: fb.password}
		}
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "Sign in"
	if m.account {
		titleText = "Create account"
	}
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	lines := []string{titleStyle.Render(titleText)}
	if m.errMsg != "" {
		lines = append(lines, theme.OverdueStyle.Render(m.errMsg), "")
	}
	lines = append(lines, m.form.View())

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) usernameField() huh.Field {
	return huh.NewInput().
		Title("Username").
		Value(&m.fb.username).
		Validate(required("Username"))
}

func (m *Model) passwordField() huh.Field {
	return huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(&m.fb.password).
		Validate(required("Password"))
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 30), 60)
}

func required(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
