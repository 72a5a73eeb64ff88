package onboarding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/roster/internal/accounts"
	"github.com/mmcdole/roster/internal/domain"
	"github.com/mmcdole/roster/internal/gateway/gatewaytest"
)

// manualScheduler captures scheduled callbacks so tests decide when time passes
type manualScheduler struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []func()
	stopped int
}

func (m *manualScheduler) schedule(d time.Duration, fn func()) func() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays = append(m.delays, d)
	i := len(m.pending)
	m.pending = append(m.pending, fn)
	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.pending[i] == nil {
			return false
		}
		m.pending[i] = nil
		m.stopped++
		return true
	}
}

// fire runs every callback still pending
func (m *manualScheduler) fire() {
	m.mu.Lock()
	fns := m.pending
	m.pending = make([]func(), len(fns))
	m.mu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			fn()
		}
	}
}

func newTestController(t *testing.T) (*Controller, *gatewaytest.Gateway, *manualScheduler) {
	t.Helper()
	gw := gatewaytest.New(domain.Account{ID: "A", Email: "a@example.com"})
	store := accounts.NewStore(gw, nil, nil)
	c := NewController(store, gw, 0, nil)
	sched := &manualScheduler{}
	c.schedule = sched.schedule
	return c, gw, sched
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// blockStartOAuth makes StartOAuthLogin wait for release or cancellation
func blockStartOAuth(gw *gatewaytest.Gateway) (entered, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once
	gw.SetHook(gatewaytest.MethodStartOAuthLogin, func(ctx context.Context) error {
		once.Do(func() { close(entered) })
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	return entered, release
}

func TestController_EmptyTokenFailsWithoutGatewayCall(t *testing.T) {
	for _, token := range []string{"", "   ", "\n\t"} {
		c, gw, _ := newTestController(t)
		c.Open(ModeToken)

		err := c.SubmitToken(context.Background(), token)
		if !errors.Is(err, domain.ErrEmptyToken) {
			t.Fatalf("expected ErrEmptyToken, got %v", err)
		}

		session, open := c.Session()
		if !open || session.Status != StatusError || session.Message != MsgMissingToken {
			t.Fatalf("unexpected session %+v open=%v", session, open)
		}
		if gw.Calls(gatewaytest.MethodAddAccount) != 0 {
			t.Fatalf("empty token reached the gateway")
		}
	}
}

func TestController_SuccessAutoClosesAfterDelay(t *testing.T) {
	c, gw, sched := newTestController(t)
	c.Open(ModeToken)

	if err := c.SubmitToken(context.Background(), "1//abc"); err != nil {
		t.Fatalf("SubmitToken: %v", err)
	}
	if gw.LastToken != "1//abc" {
		t.Fatalf("token not forwarded, got %q", gw.LastToken)
	}

	session, open := c.Session()
	if !open || session.Status != StatusSuccess {
		t.Fatalf("expected success session, got %+v open=%v", session, open)
	}
	if len(sched.delays) != 1 || sched.delays[0] != DefaultCloseDelay {
		t.Fatalf("expected one close timer of %v, got %v", DefaultCloseDelay, sched.delays)
	}

	// Success cannot be cancelled or switched away from
	if c.Cancel(context.Background()) {
		t.Fatalf("cancel should be rejected while success is showing")
	}
	if c.SelectMode(ModeOAuth) {
		t.Fatalf("mode switch should be rejected while success is showing")
	}

	sched.fire()

	if session, open := c.Session(); open || session.Status != "" {
		t.Fatalf("expected closed session after delay, got %+v open=%v", session, open)
	}
}

func TestController_ErrorPersists(t *testing.T) {
	c, gw, sched := newTestController(t)
	gw.SetError(gatewaytest.MethodImportFromDB, errors.New("no database found"))
	c.Open(ModeImport)

	if err := c.ImportFromManagedDB(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	sched.fire()

	session, open := c.Session()
	if !open || session.Status != StatusError {
		t.Fatalf("expected error to persist, got %+v open=%v", session, open)
	}
	if session.Message != "Import from database failed: no database found" {
		t.Fatalf("unexpected message %q", session.Message)
	}
	if len(sched.delays) != 0 {
		t.Fatalf("errors must not schedule a close")
	}

	// Retry from error is allowed
	gw.SetError(gatewaytest.MethodImportFromDB, nil)
	if err := c.ImportFromManagedDB(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if session, _ := c.Session(); session.Status != StatusSuccess {
		t.Fatalf("expected success after retry, got %+v", session)
	}
}

func TestController_ErrorMessagesByKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "credential missing shown verbatim",
			err:  domain.NewGatewayError("start_oauth_login", domain.KindCredentialMissing, "Refresh token not found. Sign out and sign in again."),
			want: "Refresh token not found. Sign out and sign in again.",
		},
		{
			name: "environment prefixed",
			err:  domain.NewGatewayError("start_oauth_login", domain.KindEnvironment, "callback port in use"),
			want: "Environment error: callback port in use",
		},
		{
			name: "generic prefixed with action",
			err:  errors.New("timeout"),
			want: "OAuth login failed: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, gw, _ := newTestController(t)
			gw.SetError(gatewaytest.MethodStartOAuthLogin, tt.err)
			c.Open(ModeOAuth)

			c.BeginOAuth(context.Background())

			session, _ := c.Session()
			if session.Status != StatusError || session.Message != tt.want {
				t.Fatalf("expected %q, got %+v", tt.want, session)
			}
		})
	}
}

func TestController_CancelDuringOAuthCallsGatewayOnce(t *testing.T) {
	for _, cancelErr := range []error{nil, errors.New("no flow running")} {
		c, gw, _ := newTestController(t)
		gw.SetError(gatewaytest.MethodCancelOAuthLogin, cancelErr)
		entered, _ := blockStartOAuth(gw)
		c.Open(ModeOAuth)

		done := make(chan error, 1)
		go func() { done <- c.BeginOAuth(context.Background()) }()
		<-entered

		if session, _ := c.Session(); session.Status != StatusLoading {
			t.Fatalf("expected loading, got %+v", session)
		}
		if !c.Cancel(context.Background()) {
			t.Fatalf("cancel rejected during oauth loading")
		}

		if session, open := c.Session(); open || session.Status != "" {
			t.Fatalf("expected closed idle session, got %+v open=%v", session, open)
		}
		if n := gw.Calls(gatewaytest.MethodCancelOAuthLogin); n != 1 {
			t.Fatalf("expected exactly one cancel call, got %d", n)
		}

		<-done
		// The aborted attempt must not reopen or write into the session
		if session, open := c.Session(); open || session.Status != "" {
			t.Fatalf("stale attempt leaked into session: %+v open=%v", session, open)
		}
		if gw.Broker.Subscribers() != 0 {
			t.Fatalf("oauth url subscription still open after cancel")
		}
	}
}

func TestController_RepeatedCancelCallsGatewayOnce(t *testing.T) {
	c, gw, _ := newTestController(t)
	entered, _ := blockStartOAuth(gw)

	cancelEntered := make(chan struct{})
	releaseCancel := make(chan struct{})
	var once sync.Once
	gw.SetHook(gatewaytest.MethodCancelOAuthLogin, func(context.Context) error {
		once.Do(func() { close(cancelEntered) })
		<-releaseCancel
		return nil
	})

	c.Open(ModeOAuth)
	done := make(chan error, 1)
	go func() { done <- c.BeginOAuth(context.Background()) }()
	<-entered

	results := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		go func() { results <- c.Cancel(context.Background()) }()
	}

	<-cancelEntered
	// The second cancel returns while the first is still waiting on the backend
	select {
	case ok := <-results:
		if !ok {
			t.Fatalf("repeated cancel rejected")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("repeated cancel blocked on the in-flight one")
	}
	close(releaseCancel)
	if ok := <-results; !ok {
		t.Fatalf("first cancel rejected")
	}
	<-done

	if n := gw.Calls(gatewaytest.MethodCancelOAuthLogin); n != 1 {
		t.Fatalf("expected exactly one cancel call, got %d", n)
	}
	if _, open := c.Session(); open {
		t.Fatalf("expected surface closed after cancel")
	}
}

func TestController_CancelOutsideOAuthLoadingSkipsGateway(t *testing.T) {
	c, gw, _ := newTestController(t)
	c.Open(ModeToken)
	c.SubmitToken(context.Background(), "")

	if !c.Cancel(context.Background()) {
		t.Fatalf("expected cancel from error to close")
	}
	if gw.Calls(gatewaytest.MethodCancelOAuthLogin) != 0 {
		t.Fatalf("cancel outside oauth loading must not call the gateway")
	}
	if _, open := c.Session(); open {
		t.Fatalf("expected surface closed")
	}
}

func TestController_OAuthURLSurfacedAndUnsubscribed(t *testing.T) {
	c, gw, _ := newTestController(t)
	entered, release := blockStartOAuth(gw)
	c.Open(ModeOAuth)

	done := make(chan error, 1)
	go func() { done <- c.BeginOAuth(context.Background()) }()
	<-entered

	const url = "https://accounts.example.com/o/oauth2/v2/auth?client_id=x"
	gw.Broker.Publish(url)
	waitFor(t, "authorization url", func() bool {
		s, _ := c.Session()
		return s.AuthorizationURL == url
	})

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("BeginOAuth: %v", err)
	}
	if gw.Broker.Subscribers() != 0 {
		t.Fatalf("expected subscription to close when the attempt ends")
	}
	if s, _ := c.Session(); s.Status != StatusSuccess || s.AuthorizationURL != url {
		t.Fatalf("unexpected session after success: %+v", s)
	}
}

func TestController_ModeSwitchResetsSession(t *testing.T) {
	c, _, _ := newTestController(t)
	c.Open(ModeToken)
	c.SubmitToken(context.Background(), "")

	if !c.SelectMode(ModeImport) {
		t.Fatalf("expected mode switch from error")
	}
	session, open := c.Session()
	if !open || session.Mode != ModeImport || session.Status != StatusIdle || session.Message != "" {
		t.Fatalf("expected fresh import session, got %+v", session)
	}
}

func TestController_RejectsConcurrentAndMismatchedOperations(t *testing.T) {
	c, gw, _ := newTestController(t)

	if err := c.SubmitToken(context.Background(), "x"); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}

	c.Open(ModeOAuth)
	if err := c.SubmitToken(context.Background(), "x"); !errors.Is(err, ErrWrongMode) {
		t.Fatalf("expected ErrWrongMode, got %v", err)
	}

	entered, release := blockStartOAuth(gw)
	done := make(chan error, 1)
	go func() { done <- c.BeginOAuth(context.Background()) }()
	<-entered

	if err := c.BeginOAuth(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if c.SelectMode(ModeToken) {
		t.Fatalf("mode switch should be rejected while loading")
	}

	close(release)
	<-done
}

func TestController_ObserverSeesTransitions(t *testing.T) {
	c, _, sched := newTestController(t)
	var mu sync.Mutex
	var statuses []string
	c.SetObserver(observerFunc(func(s Session, open bool) {
		mu.Lock()
		defer mu.Unlock()
		if !open {
			statuses = append(statuses, "closed")
			return
		}
		statuses = append(statuses, string(s.Status))
	}))

	c.Open(ModeImport)
	c.ImportFromLegacyStore(context.Background())
	sched.fire()

	mu.Lock()
	defer mu.Unlock()
	got := strings.Join(statuses, ",")
	if got != "idle,loading,success,closed" {
		t.Fatalf("unexpected transitions %s", got)
	}
}

func TestController_CustomDBRequiresPath(t *testing.T) {
	c, gw, _ := newTestController(t)
	c.Open(ModeImport)

	if err := c.ImportFromCustomDB(context.Background(), " "); !errors.Is(err, domain.ErrEmptyPath) {
		t.Fatalf("expected ErrEmptyPath, got %v", err)
	}
	if gw.Calls(gatewaytest.MethodImportFromCustomDB) != 0 {
		t.Fatalf("empty path reached the gateway")
	}

	if err := c.ImportFromCustomDB(context.Background(), "/data/state.vscdb"); err != nil {
		t.Fatalf("ImportFromCustomDB: %v", err)
	}
	if gw.LastPath != "/data/state.vscdb" {
		t.Fatalf("path not forwarded: %q", gw.LastPath)
	}
}

type observerFunc func(Session, bool)

func (f observerFunc) OnSessionChanged(s Session, open bool) { f(s, open) }
