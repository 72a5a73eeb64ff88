package adapter

import (
	"errors"
	"testing"
)

func TestOpenCommand(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"darwin", "open"},
		{"windows", "rundll32"},
		{"linux", "xdg-open"},
		{"freebsd", "xdg-open"},
	}
	for _, tt := range tests {
		name, args := openCommand(tt.goos, "https://example.com")
		if name != tt.want {
			t.Errorf("%s: command = %q, want %q", tt.goos, name, tt.want)
		}
		if args[len(args)-1] != "https://example.com" {
			t.Errorf("%s: url not last arg: %v", tt.goos, args)
		}
	}
}

func TestOpenCommandKeepsQueryIntact(t *testing.T) {
	const target = "https://accounts.google.com/o/oauth2/v2/auth?client_id=x&redirect_uri=http%3A%2F%2Flocalhost&state=s"
	for _, goos := range []string{"darwin", "windows", "linux"} {
		name, args := openCommand(goos, target)
		if name == "cmd" {
			t.Errorf("%s: url passes through the cmd parser", goos)
		}
		if args[len(args)-1] != target {
			t.Errorf("%s: url arg = %q", goos, args[len(args)-1])
		}
	}
}

func TestBrowserOpen(t *testing.T) {
	b := NewBrowser(NullLogger())
	var launched []string
	b.start = func(name string, args ...string) error {
		launched = append(launched, args[len(args)-1])
		return nil
	}

	if err := b.Open("https://accounts.example.com/o/oauth2/auth?x=1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, bad := range []string{"file:///etc/passwd", "not a url", ""} {
		if err := b.Open(bad); err == nil {
			t.Errorf("Open(%q) succeeded", bad)
		}
	}
	if len(launched) != 1 {
		t.Errorf("launched %d times, want 1", len(launched))
	}

	b.start = func(string, ...string) error { return errors.New("no opener") }
	if err := b.Open("http://localhost/cb"); err == nil {
		t.Error("expected launch failure to surface")
	}
}
