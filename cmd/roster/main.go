package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/roster/internal/accounts"
	"github.com/mmcdole/roster/internal/adapter"
	"github.com/mmcdole/roster/internal/domain"
	"github.com/mmcdole/roster/internal/gateway/rpc"
	"github.com/mmcdole/roster/internal/onboarding"
	"github.com/mmcdole/roster/internal/search"
	"github.com/mmcdole/roster/internal/store"
	"github.com/mmcdole/roster/internal/tui"
	"golang.org/x/term"
)

// Version is set at build time via -ldflags
var Version = "dev"

type cliFlags struct {
	list            bool
	switchQuery     string
	addToken        bool
	importDB        string
	setGatewayToken bool
	clearCache      bool
}

func main() {
	var showVersion bool
	var f cliFlags
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&f.list, "list", false, "print accounts and exit")
	flag.StringVar(&f.switchQuery, "switch", "", "switch to the account best matching `QUERY` and exit")
	flag.BoolVar(&f.addToken, "add-token", false, "add an account from a refresh token read from the terminal")
	flag.StringVar(&f.importDB, "import-db", "", "import accounts from the database file at `PATH` and exit")
	flag.BoolVar(&f.setGatewayToken, "set-gateway-token", false, "save the backend bearer token to the config file")
	flag.BoolVar(&f.clearCache, "clear-cache", false, "remove cached account snapshots and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("roster %s\n", Version)
		return
	}

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(f cliFlags) error {
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, logFile, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	} else {
		defer logFile.Close()
	}
	slog.SetDefault(logger)

	logger.Info("starting roster", "version", Version, "gateway", cfg.Gateway.URL)

	switch {
	case f.clearCache:
		if err := adapter.ClearCache(cfg); err != nil {
			return err
		}
		fmt.Println("✓ Cache cleared")
		return nil
	case f.setGatewayToken:
		return runSetGatewayToken(cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := rpc.NewClient(cfg.Gateway.URL, cfg.Gateway.Token, cfg.Gateway.RequestTimeout, logger)

	var snapshots domain.SnapshotStore
	cache, err := store.NewAccountCache(cfg.Cache.Dir, cfg.Gateway.URL)
	if err != nil {
		logger.Warn("snapshot cache unavailable", "error", err)
	} else {
		snapshots = cache
		defer cache.Close()
	}

	accountStore := accounts.NewStore(client, snapshots, logger)
	defer func() {
		if err := accountStore.Close(); err != nil {
			logger.Warn("failed to persist account snapshot", "error", err)
		}
	}()

	switch {
	case f.list:
		return runList(ctx, accountStore, os.Stdout)
	case f.switchQuery != "":
		return runSwitch(ctx, accountStore, f.switchQuery, os.Stdout)
	case f.addToken:
		return runAddToken(ctx, accountStore)
	case f.importDB != "":
		if err := accountStore.ImportCustomDB(ctx, f.importDB); err != nil {
			return err
		}
		fmt.Printf("✓ Imported accounts from %s (%d total)\n", f.importDB, len(accountStore.Accounts()))
		return nil
	}

	ctrl := onboarding.NewController(accountStore, client, cfg.Onboarding.CloseDelay, logger)
	browser := adapter.NewBrowser(logger)

	model := tui.NewModel(ctx, tui.Options{
		Store:         accountStore,
		Onboarding:    ctrl,
		OpenURL:       browser.Open,
		CopyText:      adapter.CopyToClipboard,
		SyncInterval:  cfg.Sync.Interval,
		ConfirmDelete: cfg.UI.ConfirmDelete,
		Logger:        logger,
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	logger.Info("starting TUI")

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}

// runList prints every account, marking the current one
func runList(ctx context.Context, s *accounts.Store, w io.Writer) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	state := s.Snapshot()
	if len(state.Accounts) == 0 {
		fmt.Fprintln(w, "No accounts.")
		return nil
	}
	for _, acc := range state.Accounts {
		marker := " "
		if acc.ID == state.CurrentID() {
			marker = "*"
		}
		quota := "-"
		if lowest, ok := acc.Quota.Lowest(); ok {
			quota = fmt.Sprintf("%d%%", lowest.Percentage)
		}
		var flags []string
		if acc.IsForbidden() {
			flags = append(flags, "forbidden")
		}
		if acc.ProxyDisabled {
			flags = append(flags, "proxy-off")
		}
		fmt.Fprintf(w, "%s %-40s %5s  %s  %s\n", marker, acc.Email, quota, acc.ID, strings.Join(flags, ","))
	}
	return nil
}

// runSwitch resolves query against the account emails and switches to the match
func runSwitch(ctx context.Context, s *accounts.Store, query string, w io.Writer) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	acc, ok := search.Resolve(query, s.Accounts())
	if !ok {
		matches := search.Rank(query, s.Accounts())
		if len(matches) == 0 {
			return fmt.Errorf("no account matches %q", query)
		}
		fmt.Fprintf(w, "%q is ambiguous:\n", query)
		for _, m := range matches {
			fmt.Fprintf(w, "  %s\n", m.Account.Email)
		}
		return fmt.Errorf("refine the query")
	}

	if err := s.SwitchTo(ctx, acc.ID); err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ Switched to %s\n", acc.Email)
	return nil
}

// runAddToken reads a refresh token without echo and adds the account
func runAddToken(ctx context.Context, s *accounts.Store) error {
	token, err := promptSecret("Refresh token: ")
	if err != nil {
		return err
	}
	if err := s.Add(ctx, "", token); err != nil {
		if domain.KindOf(err) == domain.KindValidation {
			return fmt.Errorf("%s", onboarding.MsgMissingToken)
		}
		return err
	}
	fmt.Println("✓ Account added")
	return nil
}

// runSetGatewayToken stores the backend bearer token in the config file and
// drops the cached snapshot for that gateway
func runSetGatewayToken(cfg *adapter.Config) error {
	token, err := promptSecret("Gateway token: ")
	if err != nil {
		return err
	}
	cfg.Gateway.Token = token
	if err := adapter.SaveConfig(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	// A new token may reach a different account set behind the same URL
	if err := forgetSnapshot(cfg); err != nil {
		slog.Warn("failed to drop cached accounts", "error", err)
	}
	fmt.Println("✓ Configuration saved!")
	return nil
}

// forgetSnapshot empties the cached account list for the configured gateway
func forgetSnapshot(cfg *adapter.Config) error {
	cache, err := store.NewAccountCache(cfg.Cache.Dir, cfg.Gateway.URL)
	if err != nil {
		return err
	}
	defer cache.Close()
	cache.InvalidateAll()
	return nil
}

// promptSecret reads one line, hiding input when stdin is a terminal
func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println() // Add newline after hidden input
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
