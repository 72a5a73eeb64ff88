package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/roster/internal/accounts"
	"github.com/mmcdole/roster/internal/domain"
	"github.com/mmcdole/roster/internal/onboarding"
)

// Command factories for async operations

// waitForSignal blocks until s fires and returns msg
func waitForSignal(s signal, msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		<-s
		return msg
	}
}

// StartStoreCmd hydrates the store and performs the first fetch
func StartStoreCmd(ctx context.Context, store *accounts.Store) tea.Cmd {
	return func() tea.Msg {
		return StoreStartedMsg{Err: store.Start(ctx)}
	}
}

// SwitchAccountCmd makes id the current account
func SwitchAccountCmd(ctx context.Context, store *accounts.Store, id string) tea.Cmd {
	return func() tea.Msg {
		err := store.SwitchTo(ctx, id)
		return ActionDoneMsg{Action: ActionSwitch, IDs: []string{id}, Err: err}
	}
}

// RefreshQuotaCmd refreshes one account's quota
func RefreshQuotaCmd(ctx context.Context, store *accounts.Store, id string) tea.Cmd {
	return func() tea.Msg {
		err := store.RefreshQuota(ctx, id)
		return ActionDoneMsg{Action: ActionRefresh, IDs: []string{id}, Err: err}
	}
}

// RefreshAllQuotasCmd refreshes every account's quota
func RefreshAllQuotasCmd(ctx context.Context, store *accounts.Store) tea.Cmd {
	return func() tea.Msg {
		stats, err := store.RefreshAllQuotas(ctx)
		return RefreshAllDoneMsg{Stats: stats, Err: err}
	}
}

// ToggleProxyCmd enables or disables proxy use for id
func ToggleProxyCmd(ctx context.Context, store *accounts.Store, id string, enable bool) tea.Cmd {
	return func() tea.Msg {
		reason := ""
		if !enable {
			reason = "disabled by user"
		}
		err := store.ToggleProxy(ctx, id, enable, reason)
		return ActionDoneMsg{Action: ActionToggleProxy, IDs: []string{id}, Err: err}
	}
}

// DeleteAccountsCmd deletes ids, using the single-account call for one id
func DeleteAccountsCmd(ctx context.Context, store *accounts.Store, ids []string) tea.Cmd {
	return func() tea.Msg {
		var err error
		if len(ids) == 1 {
			err = store.Remove(ctx, ids[0])
		} else {
			err = store.RemoveMany(ctx, ids)
		}
		return ActionDoneMsg{Action: ActionDelete, IDs: ids, Err: err}
	}
}

// SyncCmd pulls the externally signed-in account into the store
func SyncCmd(ctx context.Context, store *accounts.Store) tea.Cmd {
	return func() tea.Msg {
		store.SyncFromExternalStore(ctx)
		return SyncDoneMsg{}
	}
}

// SyncTickCmd schedules the next background sync
func SyncTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return SyncTickMsg{}
	})
}

// BeginOAuthCmd runs an OAuth attempt to completion
func BeginOAuthCmd(ctx context.Context, ctrl *onboarding.Controller) tea.Cmd {
	return func() tea.Msg {
		return OnboardingDoneMsg{Err: ctrl.BeginOAuth(ctx)}
	}
}

// SubmitTokenCmd adds an account from a refresh token
func SubmitTokenCmd(ctx context.Context, ctrl *onboarding.Controller, token string) tea.Cmd {
	return func() tea.Msg {
		return OnboardingDoneMsg{Err: ctrl.SubmitToken(ctx, token)}
	}
}

// ImportCustomDBCmd imports accounts from a database file
func ImportCustomDBCmd(ctx context.Context, ctrl *onboarding.Controller, path string) tea.Cmd {
	return func() tea.Msg {
		return OnboardingDoneMsg{Err: ctrl.ImportFromCustomDB(ctx, path)}
	}
}

// ImportManagedDBCmd imports the editor's signed-in account
func ImportManagedDBCmd(ctx context.Context, ctrl *onboarding.Controller) tea.Cmd {
	return func() tea.Msg {
		return OnboardingDoneMsg{Err: ctrl.ImportFromManagedDB(ctx)}
	}
}

// ImportLegacyCmd imports accounts saved by the legacy tool
func ImportLegacyCmd(ctx context.Context, ctrl *onboarding.Controller) tea.Cmd {
	return func() tea.Msg {
		return OnboardingDoneMsg{Err: ctrl.ImportFromLegacyStore(ctx)}
	}
}

// CancelOnboardingCmd closes the add-account surface, aborting a running
// OAuth attempt on the backend first
func CancelOnboardingCmd(ctx context.Context, ctrl *onboarding.Controller) tea.Cmd {
	return func() tea.Msg {
		return OnboardingCancelledMsg{Closed: ctrl.Cancel(ctx)}
	}
}

// CopyCmd copies text to the clipboard
func CopyCmd(copyFn func(string) error, text string) tea.Cmd {
	return func() tea.Msg {
		if copyFn == nil {
			return StatusMsg{Message: "Clipboard not available", IsError: true}
		}
		if err := copyFn(text); err != nil {
			return StatusMsg{Message: err.Error(), IsError: true}
		}
		return StatusMsg{Message: "Copied authorization URL"}
	}
}

// OpenURLCmd opens url in the default browser
func OpenURLCmd(openFn func(string) error, url string) tea.Cmd {
	return func() tea.Msg {
		if openFn == nil {
			return StatusMsg{Message: "Browser not available", IsError: true}
		}
		if err := openFn(url); err != nil {
			return StatusMsg{Message: err.Error(), IsError: true}
		}
		return StatusMsg{Message: "Opened authorization URL in browser"}
	}
}

// TickCmd returns a command that sends a tick after a delay
func TickCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// ClearStatusCmd returns a command that clears status after a delay
func ClearStatusCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}

// refreshSummary renders refresh-all stats for the status bar
func refreshSummary(stats domain.RefreshStats) string {
	if stats.Failed == 0 {
		return fmt.Sprintf("Refreshed %d accounts", stats.Success)
	}
	return fmt.Sprintf("Refreshed %d/%d accounts, %d failed", stats.Success, stats.Total, stats.Failed)
}

// isRejection reports errors that mean the modal ignored the request
func isRejection(err error) bool {
	return errors.Is(err, onboarding.ErrBusy) ||
		errors.Is(err, onboarding.ErrNotOpen) ||
		errors.Is(err, onboarding.ErrWrongMode)
}
