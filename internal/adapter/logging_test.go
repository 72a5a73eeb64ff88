package adapter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotateLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.log")

	if err := rotateLog(path, 10); err != nil {
		t.Fatalf("missing file: %v", err)
	}

	if err := os.WriteFile(path, []byte("0123456789abc"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := rotateLog(path, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal("rotation ran with rotation disabled")
	}

	if err := rotateLog(path, 10); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("log file still in place after rotation")
	}
	if data, err := os.ReadFile(path + ".1"); err != nil || string(data) != "0123456789abc" {
		t.Errorf("backup = %q, %v", data, err)
	}
}

func TestSetupLoggerRedactsTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "roster.log")
	logger, closer, err := SetupLogger(&LoggingConfig{File: path, Level: "debug"})
	if err != nil {
		t.Fatalf("SetupLogger: %v", err)
	}

	logger.Info("adding account", "refresh_token", "1//secret", "email", "a@example.com")
	logger.Debug("calling backend", "token", "bearer-secret")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "secret") {
		t.Errorf("token leaked into log:\n%s", out)
	}
	if !strings.Contains(out, "a@example.com") || !strings.Contains(out, `"app":"roster"`) {
		t.Errorf("log missing expected fields:\n%s", out)
	}
}
