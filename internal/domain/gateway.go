package domain

import "context"

// TopicOAuthURL is the push event carrying the authorization URL of an OAuth attempt
const TopicOAuthURL = "oauth-url-generated"

// Gateway is the RPC surface of the backend process.
// All account state lives behind it; callers re-read after every mutation.
type Gateway interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	// GetCurrentAccount returns nil when no account is active
	GetCurrentAccount(ctx context.Context) (*Account, error)

	AddAccount(ctx context.Context, email, refreshToken string) error
	DeleteAccount(ctx context.Context, id string) error
	DeleteAccounts(ctx context.Context, ids []string) error
	SwitchAccount(ctx context.Context, id string) error

	FetchAccountQuota(ctx context.Context, id string) error
	RefreshAllQuotas(ctx context.Context) (RefreshStats, error)

	StartOAuthLogin(ctx context.Context) error
	CancelOAuthLogin(ctx context.Context) error
	CompleteOAuthLogin(ctx context.Context) error

	ImportV1Accounts(ctx context.Context) error
	ImportFromDB(ctx context.Context) error
	ImportFromCustomDB(ctx context.Context, path string) error
	// SyncAccountFromDB returns nil when the external store has nothing new
	SyncAccountFromDB(ctx context.Context) (*Account, error)

	ToggleProxyStatus(ctx context.Context, id string, enabled bool, reason string) error

	// SubscribeOAuthURL opens a subscription to TopicOAuthURL events.
	// The subscription ends when Close is called or ctx is done.
	SubscribeOAuthURL(ctx context.Context) (Subscription, error)
}

// Subscription delivers push events until closed.
type Subscription interface {
	// URLs is closed when the subscription ends
	URLs() <-chan string
	Close()
}
