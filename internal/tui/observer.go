package tui

import (
	"github.com/mmcdole/roster/internal/domain"
	"github.com/mmcdole/roster/internal/onboarding"
)

// signal is a coalescing notification channel: a send never blocks and
// pending notifications collapse into one.
type signal chan struct{}

func newSignal() signal {
	return make(signal, 1)
}

func (s signal) notify() {
	select {
	case s <- struct{}{}:
	default: // Already pending
	}
}

// AccountsObserver adapts domain.AccountsObserver to a signal for Bubble Tea.
type AccountsObserver struct {
	ch signal
}

// OnAccountsChanged implements domain.AccountsObserver
func (o *AccountsObserver) OnAccountsChanged(domain.AccountsState) {
	o.ch.notify()
}

// SessionObserver adapts onboarding.Observer to a signal for Bubble Tea.
type SessionObserver struct {
	ch signal
}

// OnSessionChanged implements onboarding.Observer
func (o *SessionObserver) OnSessionChanged(onboarding.Session, bool) {
	o.ch.notify()
}
