package components

import "github.com/charmbracelet/bubbles/key"

// AccountListKeyMap defines key bindings for account list navigation
type AccountListKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Home   key.Binding
	End    key.Binding
	Escape key.Binding
	Accept key.Binding
	Filter key.Binding
}

// DefaultAccountListKeyMap returns the default account list key bindings
func DefaultAccountListKeyMap() AccountListKeyMap {
	return AccountListKeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Home: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "go to top"),
		),
		End: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "go to bottom"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear filter"),
		),
		Accept: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "accept filter"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
	}
}

// OnboardingKeyMap defines key bindings for the add-account modal
type OnboardingKeyMap struct {
	NextTab   key.Binding
	PrevTab   key.Binding
	Submit    key.Binding
	Cancel    key.Binding
	Legacy    key.Binding
	ManagedDB key.Binding
	Copy      key.Binding
	Open      key.Binding
}

// DefaultOnboardingKeyMap returns the default add-account modal key bindings
func DefaultOnboardingKeyMap() OnboardingKeyMap {
	return OnboardingKeyMap{
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next method"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-tab", "previous method"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "start"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Legacy: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "import legacy"),
		),
		ManagedDB: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("C-d", "import from editor"),
		),
		Copy: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy url"),
		),
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open url"),
		),
	}
}

// Package-level key map instances
var (
	AccountListKeys = DefaultAccountListKeyMap()
	OnboardingKeys  = DefaultOnboardingKeyMap()
)
