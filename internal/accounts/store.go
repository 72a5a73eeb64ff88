// Package accounts holds the process-wide view of the backend's accounts.
//
// Every mutation goes to the gateway first and then re-reads the authoritative
// list (and current account where it may have changed). Nothing is patched locally.
package accounts

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/mmcdole/roster/internal/domain"
	"golang.org/x/sync/errgroup"
)

// refetchScope selects which resources a mutation re-reads afterwards
type refetchScope int

const (
	refetchList refetchScope = 1 << iota
	refetchCurrent

	refetchBoth = refetchList | refetchCurrent
)

// Store caches the account list and current account.
type Store struct {
	gw       domain.Gateway
	cache    domain.SnapshotStore
	logger   *slog.Logger
	observer domain.AccountsObserver

	mu       sync.RWMutex
	accounts []domain.Account
	current  *domain.Account
	inflight int
	lastErr  string

	// Fetch sequencing: the most recently started fetch of a resource wins
	listSeq           uint64
	appliedListSeq    uint64
	currentSeq        uint64
	appliedCurrentSeq uint64
}

// NewStore creates a store. cache may be nil to disable snapshots.
func NewStore(gw domain.Gateway, cache domain.SnapshotStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		gw:       gw,
		cache:    cache,
		logger:   logger,
		observer: domain.NoOpObserver{},
		accounts: []domain.Account{},
	}
}

// SetObserver registers the receiver of state snapshots
func (s *Store) SetObserver(o domain.AccountsObserver) {
	if o == nil {
		o = domain.NoOpObserver{}
	}
	s.mu.Lock()
	s.observer = o
	s.mu.Unlock()
}

// Start paints the last snapshot, then performs the first authoritative fetch.
func (s *Store) Start(ctx context.Context) error {
	s.hydrate()

	s.begin()
	defer s.end()

	g := new(errgroup.Group)
	g.Go(func() error { return s.fetchList(ctx) })
	g.Go(func() error { return s.fetchCurrent(ctx) })
	if err := g.Wait(); err != nil {
		s.setErr(err)
		s.logger.Error("initial account fetch failed", "error", err)
		return err
	}
	return nil
}

// hydrate loads the snapshot cache; it never overrides a completed fetch
func (s *Store) hydrate() {
	if s.cache == nil {
		return
	}
	accounts, ok := s.cache.GetAccounts()
	if !ok {
		return
	}
	currentID, _ := s.cache.GetCurrentID()

	s.mu.Lock()
	if s.appliedListSeq == 0 {
		s.accounts = accounts
	}
	if s.appliedCurrentSeq == 0 {
		s.current = findAccount(accounts, currentID)
	}
	s.mu.Unlock()

	s.logger.Debug("hydrated accounts from snapshot", "count", len(accounts), "current", currentID)
	s.notify()
}

// Close persists the latest state to the snapshot cache
func (s *Store) Close() error {
	if s.cache == nil {
		return nil
	}
	state := s.Snapshot()
	if err := s.cache.SaveAccounts(state.Accounts); err != nil {
		return err
	}
	return s.cache.SaveCurrentID(state.CurrentID())
}

// === Read accessors ===

// Accounts returns a copy of the account list
func (s *Store) Accounts() []domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.accounts)
}

// Current returns a copy of the current account, or nil
func (s *Store) Current() *domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	c := *s.current
	return &c
}

// Busy reports whether any store operation is in flight
func (s *Store) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// Err returns the message of the last failure, or ""
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Snapshot returns a consistent copy of the whole state
func (s *Store) Snapshot() domain.AccountsState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() domain.AccountsState {
	state := domain.AccountsState{
		Accounts: slices.Clone(s.accounts),
		Busy:     s.inflight > 0,
		Err:      s.lastErr,
	}
	if s.current != nil {
		c := *s.current
		state.Current = &c
	}
	return state
}

// === State helpers ===

func (s *Store) notify() {
	s.mu.RLock()
	state := s.snapshotLocked()
	observer := s.observer
	s.mu.RUnlock()

	observer.OnAccountsChanged(state)
}

// begin marks an operation in flight and clears the previous error
func (s *Store) begin() {
	s.mu.Lock()
	s.inflight++
	s.lastErr = ""
	s.mu.Unlock()
	s.notify()
}

func (s *Store) end() {
	s.mu.Lock()
	if s.inflight > 0 {
		s.inflight--
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) setErr(err error) {
	s.mu.Lock()
	s.lastErr = domain.ErrorMessage(err)
	s.mu.Unlock()
	s.notify()
}

// === Fetches ===

func (s *Store) fetchList(ctx context.Context) error {
	s.mu.Lock()
	s.listSeq++
	seq := s.listSeq
	s.mu.Unlock()

	accounts, err := s.gw.ListAccounts(ctx)
	if err != nil {
		return err
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}

	s.mu.Lock()
	if seq <= s.appliedListSeq {
		s.mu.Unlock()
		s.logger.Debug("discarding stale account list", "seq", seq)
		return nil
	}
	s.appliedListSeq = seq
	s.accounts = accounts
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SaveAccounts(accounts); err != nil {
			s.logger.Warn("failed to save account snapshot", "error", err)
		}
	}
	s.notify()
	return nil
}

func (s *Store) fetchCurrent(ctx context.Context) error {
	s.mu.Lock()
	s.currentSeq++
	seq := s.currentSeq
	s.mu.Unlock()

	current, err := s.gw.GetCurrentAccount(ctx)
	if err != nil {
		return err
	}
	s.applyCurrent(seq, current)
	return nil
}

// applyCurrent stores current unless a later fetch already landed
func (s *Store) applyCurrent(seq uint64, current *domain.Account) {
	s.mu.Lock()
	if seq <= s.appliedCurrentSeq {
		s.mu.Unlock()
		s.logger.Debug("discarding stale current account", "seq", seq)
		return
	}
	s.appliedCurrentSeq = seq
	s.current = current
	s.mu.Unlock()

	if s.cache != nil {
		id := ""
		if current != nil {
			id = current.ID
		}
		if err := s.cache.SaveCurrentID(id); err != nil {
			s.logger.Warn("failed to save current account id", "error", err)
		}
	}
	s.notify()
}

// refetch re-reads the selected resources concurrently. Failures are logged
// and recorded but not returned: the mutation already happened.
func (s *Store) refetch(ctx context.Context, scope refetchScope) {
	g := new(errgroup.Group)
	if scope&refetchList != 0 {
		g.Go(func() error { return s.fetchList(ctx) })
	}
	if scope&refetchCurrent != 0 {
		g.Go(func() error { return s.fetchCurrent(ctx) })
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("failed to refresh accounts after mutation", "error", err)
		s.setErr(err)
	}
}

// mutate runs fn with busy set, records and returns its error, and on
// success re-reads scope before returning.
func (s *Store) mutate(ctx context.Context, op string, scope refetchScope, fn func(ctx context.Context) error) error {
	s.begin()
	defer s.end()

	if err := fn(ctx); err != nil {
		// Cancellation is the user's choice, not a failure to report
		if errors.Is(err, context.Canceled) {
			s.logger.Info(op+" cancelled")
			return err
		}
		s.logger.Error("failed to "+op, "error", err, "kind", domain.KindOf(err))
		s.setErr(err)
		return err
	}
	s.logger.Debug("account operation succeeded", "op", op)
	s.refetch(ctx, scope)
	return nil
}

// === Reads ===

// List re-reads the account list
func (s *Store) List(ctx context.Context) error {
	s.begin()
	defer s.end()

	if err := s.fetchList(ctx); err != nil {
		s.logger.Error("failed to list accounts", "error", err)
		s.setErr(err)
		return err
	}
	return nil
}

// GetCurrent re-reads the current account
func (s *Store) GetCurrent(ctx context.Context) error {
	s.begin()
	defer s.end()

	if err := s.fetchCurrent(ctx); err != nil {
		s.logger.Error("failed to get current account", "error", err)
		s.setErr(err)
		return err
	}
	return nil
}

// === Mutations ===

// Add registers an account by refresh token. email may be empty.
func (s *Store) Add(ctx context.Context, email, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.ErrEmptyToken
	}
	return s.mutate(ctx, "add account", refetchBoth, func(ctx context.Context) error {
		return s.gw.AddAccount(ctx, strings.TrimSpace(email), refreshToken)
	})
}

// Remove deletes one account
func (s *Store) Remove(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete account", refetchBoth, func(ctx context.Context) error {
		return s.gw.DeleteAccount(ctx, id)
	})
}

// RemoveMany deletes ids in a single backend call. An empty set is a no-op.
func (s *Store) RemoveMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ids = slices.Clone(ids)
	return s.mutate(ctx, "delete accounts", refetchBoth, func(ctx context.Context) error {
		return s.gw.DeleteAccounts(ctx, ids)
	})
}

// SwitchTo makes id the current account
func (s *Store) SwitchTo(ctx context.Context, id string) error {
	return s.mutate(ctx, "switch account", refetchBoth, func(ctx context.Context) error {
		return s.gw.SwitchAccount(ctx, id)
	})
}

// RefreshQuota asks the backend to recompute one account's quota
func (s *Store) RefreshQuota(ctx context.Context, id string) error {
	return s.mutate(ctx, "refresh quota", refetchList, func(ctx context.Context) error {
		return s.gw.FetchAccountQuota(ctx, id)
	})
}

// RefreshAllQuotas recomputes every quota and reports per-account results
func (s *Store) RefreshAllQuotas(ctx context.Context) (domain.RefreshStats, error) {
	var stats domain.RefreshStats
	err := s.mutate(ctx, "refresh all quotas", refetchList, func(ctx context.Context) error {
		var err error
		stats, err = s.gw.RefreshAllQuotas(ctx)
		return err
	})
	return stats, err
}

// StartOAuth runs the backend OAuth flow; it returns when the flow ends
func (s *Store) StartOAuth(ctx context.Context) error {
	return s.mutate(ctx, "start oauth login", refetchBoth, s.gw.StartOAuthLogin)
}

// CompleteOAuth finishes a flow the backend is holding open
func (s *Store) CompleteOAuth(ctx context.Context) error {
	return s.mutate(ctx, "complete oauth login", refetchBoth, s.gw.CompleteOAuthLogin)
}

// CancelOAuth asks the backend to abort a running flow. Failures are logged only.
func (s *Store) CancelOAuth(ctx context.Context) {
	if err := s.gw.CancelOAuthLogin(ctx); err != nil {
		s.logger.Error("failed to cancel oauth login", "error", err)
		return
	}
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
	s.notify()
}

// ImportLegacy imports accounts from the legacy (v1) store
func (s *Store) ImportLegacy(ctx context.Context) error {
	return s.mutate(ctx, "import legacy accounts", refetchBoth, s.gw.ImportV1Accounts)
}

// ImportManagedDB imports the account held by the managed editor database
func (s *Store) ImportManagedDB(ctx context.Context) error {
	return s.mutate(ctx, "import from database", refetchBoth, s.gw.ImportFromDB)
}

// ImportCustomDB imports from a database file at path
func (s *Store) ImportCustomDB(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.ErrEmptyPath
	}
	return s.mutate(ctx, "import from custom database", refetchBoth, func(ctx context.Context) error {
		return s.gw.ImportFromCustomDB(ctx, path)
	})
}

// ToggleProxy enables or disables an account for proxy rotation.
// It does not mark the store busy.
func (s *Store) ToggleProxy(ctx context.Context, id string, enabled bool, reason string) error {
	if err := s.gw.ToggleProxyStatus(ctx, id, enabled, reason); err != nil {
		s.logger.Error("failed to toggle proxy status", "error", err, "id", id, "enabled", enabled)
		s.setErr(err)
		return err
	}
	if err := s.fetchList(ctx); err != nil {
		s.logger.Error("failed to refresh accounts after proxy toggle", "error", err)
		s.setErr(err)
	}
	return nil
}

// SyncFromExternalStore picks up an account the editor switched to on its
// own. Best effort: it never marks the store busy and never fails.
func (s *Store) SyncFromExternalStore(ctx context.Context) {
	// Claim the sequence before the call so a fetch started later still wins
	s.mu.Lock()
	s.currentSeq++
	seq := s.currentSeq
	s.mu.Unlock()

	synced, err := s.gw.SyncAccountFromDB(ctx)
	if err != nil {
		s.logger.Warn("sync from external store failed", "error", err)
		return
	}
	if synced == nil {
		return
	}

	s.logger.Info("account synced from external store", "email", synced.Email)
	if err := s.fetchList(ctx); err != nil {
		s.logger.Warn("failed to refresh accounts after sync", "error", err)
	}
	s.applyCurrent(seq, synced)
}

func findAccount(accounts []domain.Account, id string) *domain.Account {
	if id == "" {
		return nil
	}
	for _, a := range accounts {
		if a.ID == id {
			a := a
			return &a
		}
	}
	return nil
}
