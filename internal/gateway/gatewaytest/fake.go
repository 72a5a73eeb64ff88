// Package gatewaytest provides an in-memory domain.Gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/mmcdole/roster/internal/domain"
	"github.com/mmcdole/roster/internal/gateway"
)

// Method names used for call counting and error injection
const (
	MethodListAccounts       = "ListAccounts"
	MethodGetCurrentAccount  = "GetCurrentAccount"
	MethodAddAccount         = "AddAccount"
	MethodDeleteAccount      = "DeleteAccount"
	MethodDeleteAccounts     = "DeleteAccounts"
	MethodSwitchAccount      = "SwitchAccount"
	MethodFetchAccountQuota  = "FetchAccountQuota"
	MethodRefreshAllQuotas   = "RefreshAllQuotas"
	MethodStartOAuthLogin    = "StartOAuthLogin"
	MethodCancelOAuthLogin   = "CancelOAuthLogin"
	MethodCompleteOAuthLogin = "CompleteOAuthLogin"
	MethodImportV1Accounts   = "ImportV1Accounts"
	MethodImportFromDB       = "ImportFromDB"
	MethodImportFromCustomDB = "ImportFromCustomDB"
	MethodSyncAccountFromDB  = "SyncAccountFromDB"
	MethodToggleProxyStatus  = "ToggleProxyStatus"
	MethodSubscribeOAuthURL  = "SubscribeOAuthURL"
)

// Gateway is an in-memory backend. The zero value is not usable; call New.
type Gateway struct {
	mu        sync.Mutex
	accounts  []domain.Account
	currentID string
	calls     map[string]int
	errs      map[string]error
	hooks     map[string]func(ctx context.Context) error

	// LastDeleted records the ids passed to the most recent DeleteAccounts call
	LastDeleted []string
	// LastToken records the refresh token passed to the most recent AddAccount call
	LastToken string
	// LastPath records the path passed to the most recent ImportFromCustomDB call
	LastPath string
	// SyncResult is returned by SyncAccountFromDB
	SyncResult *domain.Account
	// ImportAccounts are appended by the import methods and by OAuth start
	ImportAccounts []domain.Account
	// Stats is returned by RefreshAllQuotas
	Stats domain.RefreshStats

	Broker *gateway.Broker
}

// New creates a fake backend holding accounts; the first one is current.
func New(accounts ...domain.Account) *Gateway {
	g := &Gateway{
		accounts: slices.Clone(accounts),
		calls:    make(map[string]int),
		errs:     make(map[string]error),
		hooks:    make(map[string]func(ctx context.Context) error),
		Broker:   gateway.NewBroker(nil),
	}
	if len(accounts) > 0 {
		g.currentID = accounts[0].ID
	}
	return g
}

// SetError makes every call to method fail with err (nil clears it)
func (g *Gateway) SetError(method string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.errs, method)
		return
	}
	g.errs[method] = err
}

// SetHook runs fn at the start of method, outside the lock. A non-nil
// error from fn fails the call. Hooks let tests block a call until released.
func (g *Gateway) SetHook(method string, fn func(ctx context.Context) error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hooks[method] = fn
}

// Calls returns how many times method was invoked
func (g *Gateway) Calls(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[method]
}

// ResetCalls zeroes every call counter
func (g *Gateway) ResetCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = make(map[string]int)
}

// Accounts returns a copy of the backend's account list
func (g *Gateway) Accounts() []domain.Account {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.accounts)
}

// CurrentID returns the backend's current account id
func (g *Gateway) CurrentID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentID
}

// enter counts the call, runs any hook, and returns an injected error
func (g *Gateway) enter(ctx context.Context, method string) error {
	g.mu.Lock()
	g.calls[method]++
	hook := g.hooks[method]
	err := g.errs[method]
	g.mu.Unlock()

	if hook != nil {
		if hookErr := hook(ctx); hookErr != nil {
			return hookErr
		}
	}
	return err
}

func (g *Gateway) indexOf(id string) int {
	return slices.IndexFunc(g.accounts, func(a domain.Account) bool { return a.ID == id })
}

// removeLocked deletes ids; a deleted current account hands over to the first remaining one
func (g *Gateway) removeLocked(ids []string) {
	g.accounts = slices.DeleteFunc(g.accounts, func(a domain.Account) bool {
		return slices.Contains(ids, a.ID)
	})
	if slices.Contains(ids, g.currentID) {
		g.currentID = ""
		if len(g.accounts) > 0 {
			g.currentID = g.accounts[0].ID
		}
	}
}

func (g *Gateway) appendImportsLocked() {
	for _, a := range g.ImportAccounts {
		if g.indexOf(a.ID) < 0 {
			g.accounts = append(g.accounts, a)
		}
	}
	if g.currentID == "" && len(g.accounts) > 0 {
		g.currentID = g.accounts[0].ID
	}
}

func (g *Gateway) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	if err := g.enter(ctx, MethodListAccounts); err != nil {
		return nil, err
	}
	return g.Accounts(), nil
}

func (g *Gateway) GetCurrentAccount(ctx context.Context) (*domain.Account, error) {
	if err := g.enter(ctx, MethodGetCurrentAccount); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if i := g.indexOf(g.currentID); i >= 0 {
		a := g.accounts[i]
		return &a, nil
	}
	return nil, nil
}

func (g *Gateway) AddAccount(ctx context.Context, email, refreshToken string) error {
	if err := g.enter(ctx, MethodAddAccount); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.LastToken = refreshToken
	if email == "" {
		email = fmt.Sprintf("user%d@example.com", len(g.accounts)+1)
	}
	g.accounts = append(g.accounts, domain.Account{ID: uuid.NewString(), Email: email})
	if g.currentID == "" {
		g.currentID = g.accounts[0].ID
	}
	return nil
}

func (g *Gateway) DeleteAccount(ctx context.Context, id string) error {
	if err := g.enter(ctx, MethodDeleteAccount); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.indexOf(id) < 0 {
		return domain.ErrAccountNotFound
	}
	g.removeLocked([]string{id})
	return nil
}

func (g *Gateway) DeleteAccounts(ctx context.Context, ids []string) error {
	if err := g.enter(ctx, MethodDeleteAccounts); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.LastDeleted = slices.Clone(ids)
	g.removeLocked(ids)
	return nil
}

func (g *Gateway) SwitchAccount(ctx context.Context, id string) error {
	if err := g.enter(ctx, MethodSwitchAccount); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.indexOf(id) < 0 {
		return domain.ErrAccountNotFound
	}
	g.currentID = id
	return nil
}

func (g *Gateway) FetchAccountQuota(ctx context.Context, id string) error {
	if err := g.enter(ctx, MethodFetchAccountQuota); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.indexOf(id)
	if i < 0 {
		return domain.ErrAccountNotFound
	}
	if g.accounts[i].Quota == nil {
		g.accounts[i].Quota = &domain.Quota{}
	}
	return nil
}

func (g *Gateway) RefreshAllQuotas(ctx context.Context) (domain.RefreshStats, error) {
	if err := g.enter(ctx, MethodRefreshAllQuotas); err != nil {
		return domain.RefreshStats{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Stats, nil
}

func (g *Gateway) StartOAuthLogin(ctx context.Context) error {
	if err := g.enter(ctx, MethodStartOAuthLogin); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.appendImportsLocked()
	return nil
}

func (g *Gateway) CancelOAuthLogin(ctx context.Context) error {
	return g.enter(ctx, MethodCancelOAuthLogin)
}

func (g *Gateway) CompleteOAuthLogin(ctx context.Context) error {
	return g.enter(ctx, MethodCompleteOAuthLogin)
}

func (g *Gateway) ImportV1Accounts(ctx context.Context) error {
	if err := g.enter(ctx, MethodImportV1Accounts); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.appendImportsLocked()
	return nil
}

func (g *Gateway) ImportFromDB(ctx context.Context) error {
	if err := g.enter(ctx, MethodImportFromDB); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.appendImportsLocked()
	return nil
}

func (g *Gateway) ImportFromCustomDB(ctx context.Context, path string) error {
	if err := g.enter(ctx, MethodImportFromCustomDB); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.LastPath = path
	g.appendImportsLocked()
	return nil
}

func (g *Gateway) SyncAccountFromDB(ctx context.Context) (*domain.Account, error) {
	if err := g.enter(ctx, MethodSyncAccountFromDB); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.SyncResult == nil {
		return nil, nil
	}
	synced := *g.SyncResult
	if i := g.indexOf(synced.ID); i >= 0 {
		g.accounts[i] = synced
	} else {
		g.accounts = append(g.accounts, synced)
	}
	g.currentID = synced.ID
	return &synced, nil
}

func (g *Gateway) ToggleProxyStatus(ctx context.Context, id string, enabled bool, reason string) error {
	if err := g.enter(ctx, MethodToggleProxyStatus); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.indexOf(id)
	if i < 0 {
		return domain.ErrAccountNotFound
	}
	g.accounts[i].ProxyDisabled = !enabled
	g.accounts[i].ProxyDisabledReason = ""
	if !enabled {
		g.accounts[i].ProxyDisabledReason = reason
	}
	return nil
}

func (g *Gateway) SubscribeOAuthURL(ctx context.Context) (domain.Subscription, error) {
	if err := g.enter(ctx, MethodSubscribeOAuthURL); err != nil {
		return nil, err
	}
	return g.Broker.Subscribe(ctx), nil
}

var _ domain.Gateway = (*Gateway)(nil)
