package domain

// SnapshotStore persists the last authoritative account list so the view
// has something to paint before the first fetch returns.
type SnapshotStore interface {
	GetAccounts() ([]Account, bool)
	SaveAccounts(accounts []Account) error

	// GetCurrentID returns "" when no account was current
	GetCurrentID() (string, bool)
	SaveCurrentID(id string) error

	InvalidateAll()
	Close() error
}
