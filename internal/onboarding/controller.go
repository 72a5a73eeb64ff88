package onboarding

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/roster/internal/domain"
)

// DefaultCloseDelay is how long a successful session stays visible
const DefaultCloseDelay = 1500 * time.Millisecond

var (
	// ErrNotOpen is returned for operations on a closed surface
	ErrNotOpen = errors.New("add-account surface is not open")

	// ErrBusy is returned while an operation is loading or a success is showing
	ErrBusy = errors.New("an add-account operation is already running")

	// ErrWrongMode is returned when an operation does not belong to the selected mode
	ErrWrongMode = errors.New("operation does not match the selected mode")
)

// AccountStore is the part of the account store onboarding drives
type AccountStore interface {
	Add(ctx context.Context, email, refreshToken string) error
	StartOAuth(ctx context.Context) error
	CancelOAuth(ctx context.Context)
	ImportManagedDB(ctx context.Context) error
	ImportLegacy(ctx context.Context) error
	ImportCustomDB(ctx context.Context, path string) error
}

// URLSource opens attempt-scoped subscriptions to OAuth URL events
type URLSource interface {
	SubscribeOAuthURL(ctx context.Context) (domain.Subscription, error)
}

// scheduleFunc runs fn after d and returns a func that stops it
type scheduleFunc func(d time.Duration, fn func()) (stop func() bool)

func afterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// Controller owns the single add-account session.
//
// Every attempt gets a generation number; results from an attempt whose
// generation is no longer current are dropped, so a cancelled or superseded
// attempt never writes into a newer session.
type Controller struct {
	store      AccountStore
	urls       URLSource
	closeDelay time.Duration
	schedule   scheduleFunc
	logger     *slog.Logger

	mu            sync.Mutex
	observer      Observer
	open          bool
	session       Session
	gen           uint64
	cancelAttempt context.CancelFunc
	cancelling    bool // a backend cancel for the running attempt is in flight
	stopClose     func() bool
}

// NewController creates a controller. urls may be nil, in which case OAuth
// attempts run without surfacing the authorization URL.
func NewController(store AccountStore, urls URLSource, closeDelay time.Duration, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if closeDelay <= 0 {
		closeDelay = DefaultCloseDelay
	}
	return &Controller{
		store:      store,
		urls:       urls,
		closeDelay: closeDelay,
		schedule:   afterFunc,
		logger:     logger,
		observer:   noopObserver{},
	}
}

// SetObserver registers the receiver of session changes
func (c *Controller) SetObserver(o Observer) {
	if o == nil {
		o = noopObserver{}
	}
	c.mu.Lock()
	c.observer = o
	c.mu.Unlock()
}

// Session returns the current session and whether the surface is open
func (c *Controller) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session, c.open
}

// unlockAndNotify releases c.mu and reports the state captured under it
func (c *Controller) unlockAndNotify() {
	session, open, observer := c.session, c.open, c.observer
	c.mu.Unlock()
	observer.OnSessionChanged(session, open)
}

// discardLocked ends the session and everything attached to it
func (c *Controller) discardLocked() {
	c.gen++
	c.cancelling = false
	if c.cancelAttempt != nil {
		c.cancelAttempt()
		c.cancelAttempt = nil
	}
	if c.stopClose != nil {
		c.stopClose()
		c.stopClose = nil
	}
	c.open = false
	c.session = Session{}
}

// Open shows the surface with a fresh session. On an open surface it behaves
// like SelectMode.
func (c *Controller) Open(mode Mode) bool {
	c.mu.Lock()
	if c.open {
		c.mu.Unlock()
		return c.SelectMode(mode)
	}
	c.gen++
	c.open = true
	c.session = Session{Mode: mode, Status: StatusIdle}
	c.unlockAndNotify()
	return true
}

// SelectMode switches mode, which always starts a new session. It is
// rejected while an operation is loading or a success is showing.
func (c *Controller) SelectMode(mode Mode) bool {
	c.mu.Lock()
	if !c.open || c.session.Status == StatusLoading || c.session.Status == StatusSuccess {
		c.mu.Unlock()
		return false
	}
	c.gen++
	c.session = Session{Mode: mode, Status: StatusIdle}
	c.unlockAndNotify()
	return true
}

// Cancel closes the surface. While an OAuth attempt is loading it first asks
// the backend to abort, ignoring the outcome. A repeated Cancel while that
// request is in flight does not reach the backend again. Other loading
// operations and a showing success cannot be cancelled.
func (c *Controller) Cancel(ctx context.Context) bool {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return false
	}
	switch c.session.Status {
	case StatusSuccess:
		c.mu.Unlock()
		return false
	case StatusLoading:
		if c.session.Mode != ModeOAuth {
			c.mu.Unlock()
			return false
		}
		if c.cancelling {
			c.mu.Unlock()
			return true
		}
		c.cancelling = true
		c.mu.Unlock()

		c.logger.Info("cancelling oauth login")
		c.store.CancelOAuth(ctx)

		c.mu.Lock()
		if !c.open {
			c.mu.Unlock()
			return true
		}
	}
	c.discardLocked()
	c.unlockAndNotify()
	return true
}

// Close tears the surface down unconditionally, abandoning any running
// attempt without contacting the backend. Used on shutdown.
func (c *Controller) Close() {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return
	}
	c.discardLocked()
	c.unlockAndNotify()
}

// BeginOAuth starts the backend OAuth flow and blocks until it ends.
// Authorization URLs published during the attempt appear on the session.
func (c *Controller) BeginOAuth(ctx context.Context) error {
	return c.run(ctx, ModeOAuth, actionOAuth, func(ctx context.Context, gen uint64) error {
		if c.urls != nil {
			sub, err := c.urls.SubscribeOAuthURL(ctx)
			if err != nil {
				c.logger.Warn("failed to subscribe to oauth url events", "error", err)
			} else {
				done := make(chan struct{})
				go func() {
					defer close(done)
					for url := range sub.URLs() {
						c.setURL(gen, url)
					}
				}()
				defer func() {
					sub.Close()
					<-done
				}()
			}
		}
		return c.store.StartOAuth(ctx)
	})
}

// SubmitToken adds an account from a refresh token. An empty token fails
// without reaching the backend.
func (c *Controller) SubmitToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return c.reject(ModeToken, domain.ErrEmptyToken, MsgMissingToken)
	}
	return c.run(ctx, ModeToken, actionAddToken, func(ctx context.Context, _ uint64) error {
		return c.store.Add(ctx, "", token)
	})
}

// ImportFromManagedDB imports the account the managed editor is signed into
func (c *Controller) ImportFromManagedDB(ctx context.Context) error {
	return c.run(ctx, ModeImport, actionImportDB, func(ctx context.Context, _ uint64) error {
		return c.store.ImportManagedDB(ctx)
	})
}

// ImportFromLegacyStore imports accounts saved by the legacy (v1) tool
func (c *Controller) ImportFromLegacyStore(ctx context.Context) error {
	return c.run(ctx, ModeImport, actionImportLegacy, func(ctx context.Context, _ uint64) error {
		return c.store.ImportLegacy(ctx)
	})
}

// ImportFromCustomDB imports from a database file the user points at
func (c *Controller) ImportFromCustomDB(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return c.reject(ModeImport, domain.ErrEmptyPath, domain.ErrEmptyPath.Error())
	}
	return c.run(ctx, ModeImport, actionImportCustomDB, func(ctx context.Context, _ uint64) error {
		return c.store.ImportCustomDB(ctx, path)
	})
}

// checkLocked validates that an operation in mode may start
func (c *Controller) checkLocked(mode Mode) error {
	if !c.open {
		return ErrNotOpen
	}
	if c.session.Mode != mode {
		return ErrWrongMode
	}
	if c.session.Status == StatusLoading || c.session.Status == StatusSuccess {
		return ErrBusy
	}
	return nil
}

// reject moves the session to error for a client-side validation failure
func (c *Controller) reject(mode Mode, err error, message string) error {
	c.mu.Lock()
	if checkErr := c.checkLocked(mode); checkErr != nil {
		c.mu.Unlock()
		return checkErr
	}
	c.session = Session{Mode: mode, Status: StatusError, Message: message}
	c.unlockAndNotify()
	return err
}

// run moves the session to loading, executes fn, and records the outcome
func (c *Controller) run(ctx context.Context, mode Mode, action string, fn func(ctx context.Context, gen uint64) error) error {
	c.mu.Lock()
	if err := c.checkLocked(mode); err != nil {
		c.mu.Unlock()
		return err
	}
	c.gen++
	gen := c.gen
	attemptCtx, cancel := context.WithCancel(ctx)
	c.cancelAttempt = cancel
	c.session = Session{Mode: mode, Status: StatusLoading, Message: loadingMessage(action)}
	c.unlockAndNotify()

	c.logger.Debug("onboarding attempt started", "mode", mode, "attempt", gen)
	err := fn(attemptCtx, gen)
	cancel()

	c.finish(gen, action, err)
	return err
}

func (c *Controller) finish(gen uint64, action string, err error) {
	c.mu.Lock()
	if gen != c.gen || !c.open {
		c.mu.Unlock()
		c.logger.Debug("discarding result of superseded attempt", "attempt", gen, "error", err)
		return
	}
	c.cancelAttempt = nil

	if err != nil {
		c.session.Status = StatusError
		c.session.Message = errorMessage(action, err)
		c.logger.Warn("onboarding attempt failed", "mode", c.session.Mode, "kind", domain.KindOf(err), "error", err)
		c.unlockAndNotify()
		return
	}

	c.session.Status = StatusSuccess
	c.session.Message = successMessage(action)
	c.stopClose = c.schedule(c.closeDelay, func() { c.autoClose(gen) })
	c.logger.Info("onboarding attempt succeeded", "mode", c.session.Mode)
	c.unlockAndNotify()
}

// autoClose ends a success session once its display delay has passed
func (c *Controller) autoClose(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.open || c.session.Status != StatusSuccess {
		c.mu.Unlock()
		return
	}
	c.stopClose = nil
	c.discardLocked()
	c.unlockAndNotify()
}

func (c *Controller) setURL(gen uint64, url string) {
	c.mu.Lock()
	if gen != c.gen || !c.open {
		c.mu.Unlock()
		return
	}
	c.session.AuthorizationURL = url
	c.unlockAndNotify()
}
