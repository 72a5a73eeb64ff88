package tui

import "github.com/mmcdole/roster/internal/domain"

// Message types for the TUI

// AccountsChangedMsg signals that the account store has a new snapshot.
// The model re-reads the store rather than trusting message order.
type AccountsChangedMsg struct{}

// SessionChangedMsg signals that the onboarding session changed
type SessionChangedMsg struct{}

// StoreStartedMsg reports the outcome of the first authoritative fetch
type StoreStartedMsg struct {
	Err error
}

// AccountAction names a per-account store operation
type AccountAction int

const (
	ActionSwitch AccountAction = iota
	ActionRefresh
	ActionToggleProxy
	ActionDelete
)

// ActionDoneMsg reports a finished per-account operation
type ActionDoneMsg struct {
	Action AccountAction
	IDs    []string
	Err    error
}

// RefreshAllDoneMsg reports a finished refresh of every account's quota
type RefreshAllDoneMsg struct {
	Stats domain.RefreshStats
	Err   error
}

// SyncDoneMsg signals that a background sync finished
type SyncDoneMsg struct{}

// SyncTickMsg triggers a background sync
type SyncTickMsg struct{}

// OnboardingDoneMsg reports that an add-account operation returned.
// The session observer carries the user-visible outcome.
type OnboardingDoneMsg struct {
	Err error
}

// OnboardingCancelledMsg reports the outcome of a cancel request
type OnboardingCancelledMsg struct {
	Closed bool
}

// ToggleSelectMsg toggles one account in the selection
type ToggleSelectMsg struct {
	ID string
}

// TickMsg is a general tick message for animations
type TickMsg struct{}

// ClearStatusMsg clears the status bar message
type ClearStatusMsg struct{}

// StatusMsg sets a temporary status message
type StatusMsg struct {
	Message string
	IsError bool
}
