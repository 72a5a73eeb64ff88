// Command roster-devgw serves an in-memory account backend over the roster
// RPC protocol so the client can be exercised without the real backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/roster/internal/adapter"
	"github.com/mmcdole/roster/internal/domain"
	"github.com/mmcdole/roster/internal/gateway/gatewaytest"
	"github.com/mmcdole/roster/internal/gateway/rpc"
)

func main() {
	var addr string
	var oauthDelay time.Duration
	flag.StringVar(&addr, "addr", "", "listen address (default: host of gateway.url)")
	flag.DurationVar(&oauthDelay, "oauth-delay", 5*time.Second, "how long a simulated OAuth login takes")
	flag.Parse()

	if err := run(addr, oauthDelay); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(addr string, oauthDelay time.Duration) error {
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if addr == "" {
		u, err := url.Parse(cfg.Gateway.URL)
		if err != nil {
			return fmt.Errorf("invalid gateway url: %w", err)
		}
		addr = u.Host
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	gw := gatewaytest.New(demoAccounts()...)
	gw.ImportAccounts = []domain.Account{{ID: uuid.NewString(), Email: "imported@example.com"}}
	var mu sync.Mutex
	var abort chan struct{}
	gw.SetHook(gatewaytest.MethodStartOAuthLogin, func(ctx context.Context) error {
		mu.Lock()
		abort = make(chan struct{})
		aborted := abort
		mu.Unlock()

		gw.Broker.Publish("https://accounts.google.com/o/oauth2/v2/auth?state=" + uuid.NewString())
		select {
		case <-time.After(oauthDelay):
			return nil
		case <-aborted:
			return domain.NewGatewayError("start oauth login", domain.KindGeneric, "OAuth login cancelled")
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	gw.SetHook(gatewaytest.MethodCancelOAuthLogin, func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if abort != nil {
			close(abort)
			abort = nil
		}
		return nil
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           rpc.NewHandler(gw, cfg.Gateway.Token, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving dev gateway", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	gw.Broker.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func demoAccounts() []domain.Account {
	now := time.Now()
	quota := func(pcts ...int) *domain.Quota {
		names := []string{"gemini-pro", "gemini-flash", "claude-sonnet"}
		q := &domain.Quota{LastUpdated: now}
		for i, p := range pcts {
			q.Models = append(q.Models, domain.ModelQuota{Name: names[i%len(names)], Percentage: p})
		}
		return q
	}
	return []domain.Account{
		{ID: uuid.NewString(), Email: "alice@example.com", Quota: quota(82, 64), LastUsed: now.Add(-time.Hour)},
		{ID: uuid.NewString(), Email: "bob@example.com", Quota: quota(35, 12, 50)},
		{ID: uuid.NewString(), Email: "carol@example.com", Quota: &domain.Quota{IsForbidden: true}, ProxyDisabled: true, ProxyDisabledReason: "forbidden"},
	}
}
