package domain

// AccountsState is a point-in-time copy of the account store.
type AccountsState struct {
	Accounts []Account
	Current  *Account
	Busy     bool
	Err      string
}

// CurrentID returns the id of the current account or ""
func (s AccountsState) CurrentID() string {
	if s.Current == nil {
		return ""
	}
	return s.Current.ID
}

// AccountsObserver receives a snapshot whenever the account store changes.
type AccountsObserver interface {
	OnAccountsChanged(state AccountsState)
}

// NoOpObserver discards updates (for testing/batch operations).
type NoOpObserver struct{}

func (NoOpObserver) OnAccountsChanged(AccountsState) {}
