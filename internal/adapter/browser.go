package adapter

import (
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"runtime"
)

// Browser opens authorization URLs with the system default handler
type Browser struct {
	logger *slog.Logger
	start  func(name string, args ...string) error
}

// NewBrowser creates a Browser
func NewBrowser(logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{logger: logger, start: startCommand}
}

func startCommand(name string, args ...string) error {
	return exec.Command(name, args...).Start() // Start async, don't wait
}

// openCommand returns the system default opener for goos
func openCommand(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		// Not cmd /c start: cmd splits the query string at '&'
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	default:
		// Linux and other Unix-like systems
		return "xdg-open", []string{target}
	}
}

// Open launches target in the default browser. Only http and https URLs are
// accepted so a backend-supplied string never reaches the shell as a path.
func (b *Browser) Open(target string) error {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("refusing to open %q: not an http(s) url", target)
	}

	name, args := openCommand(runtime.GOOS, target)
	b.logger.Info("opening url with system default", "os", runtime.GOOS, "command", name)
	if err := b.start(name, args...); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
