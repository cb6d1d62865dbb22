package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Selection
	Select key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Search
	Search key.Binding

	// Command palette
	Command key.Binding

	// Help toggle
	Help key.Binding

	// Manual refresh
	Refresh key.Binding

	// Quick filters, in query.Filters order
	FilterAll    key.Binding
	FilterDone   key.Binding
	FilterTodo   key.Binding
	FilterToday  key.Binding
	FilterSoon   key.Binding
	FilterHigh   key.Binding
	FilterMedium key.Binding
	FilterLow    key.Binding

	// Sort
	CycleSort key.Binding

	// Todo actions
	New       key.Binding
	Edit      key.Binding
	Toggle    key.Binding
	Delete    key.Binding
	ClearDone key.Binding

	// Other screens
	Categories key.Binding
	Trash      key.Binding
	AddAccount key.Binding
	Logout     key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open detail"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command palette"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		FilterAll: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "all"),
		),
		FilterDone: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "done"),
		),
		FilterTodo: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "todo"),
		),
		FilterToday: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "due today"),
		),
		FilterSoon: key.NewBinding(
			key.WithKeys("5"),
			key.WithHelp("5", "due soon"),
		),
		FilterHigh: key.NewBinding(
			key.WithKeys("6"),
			key.WithHelp("6", "high"),
		),
		FilterMedium: key.NewBinding(
			key.WithKeys("7"),
			key.WithHelp("7", "medium"),
		),
		FilterLow: key.NewBinding(
			key.WithKeys("8"),
			key.WithHelp("8", "low"),
		),
		CycleSort: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "cycle sort"),
		),
		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new todo"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "toggle done"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		ClearDone: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "clear done"),
		),
		Categories: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "categories"),
		),
		Trash: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "trash"),
		),
		AddAccount: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "add account"),
		),
		Logout: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "log out"),
		),
	}
}

// Filters returns the quick filter bindings in display order.
func (k *KeyMap) Filters() []key.Binding {
	return []key.Binding{
		k.FilterAll, k.FilterDone, k.FilterTodo, k.FilterToday,
		k.FilterSoon, k.FilterHigh, k.FilterMedium, k.FilterLow,
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.Back,
		k.Quit, k.Help, k.Search,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Back, k.Quit},
		{k.Search, k.Command, k.Help, k.Refresh, k.CycleSort},
		k.Filters(),
		{k.New, k.Edit, k.Toggle, k.Delete, k.ClearDone},
		{k.Categories, k.Trash, k.AddAccount, k.Logout},
	}
}
