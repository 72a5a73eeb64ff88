package store

import (
	"testing"

	"github.com/mmcdole/roster/internal/domain"
)

func TestAccountCache_MemoryOnly(t *testing.T) {
	s, err := NewAccountCache("", "")
	if err != nil {
		t.Fatalf("NewAccountCache: %v", err)
	}
	defer s.Close()

	if _, ok := s.GetAccounts(); ok {
		t.Fatalf("expected empty cache")
	}

	accounts := []domain.Account{{ID: "a", Email: "a@example.com"}, {ID: "b", Email: "b@example.com"}}
	if err := s.SaveAccounts(accounts); err != nil {
		t.Fatalf("SaveAccounts: %v", err)
	}
	if err := s.SaveCurrentID("b"); err != nil {
		t.Fatalf("SaveCurrentID: %v", err)
	}

	got, ok := s.GetAccounts()
	if !ok || len(got) != 2 || got[1].Email != "b@example.com" {
		t.Fatalf("unexpected accounts: %+v ok=%v", got, ok)
	}
	if id, ok := s.GetCurrentID(); !ok || id != "b" {
		t.Fatalf("expected current id b, got %q ok=%v", id, ok)
	}
}

func TestAccountCache_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	url := "http://127.0.0.1:45123"

	s, err := NewAccountCache(dir, url)
	if err != nil {
		t.Fatalf("NewAccountCache: %v", err)
	}
	quota := &domain.Quota{Models: []domain.ModelQuota{{Name: "gemini", Percentage: 42}}}
	if err := s.SaveAccounts([]domain.Account{{ID: "a", Email: "a@example.com", Quota: quota}}); err != nil {
		t.Fatalf("SaveAccounts: %v", err)
	}
	if err := s.SaveCurrentID("a"); err != nil {
		t.Fatalf("SaveCurrentID: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewAccountCache(dir, url)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, ok := reopened.GetAccounts()
	if !ok || len(got) != 1 {
		t.Fatalf("expected 1 account after reopen, got %+v ok=%v", got, ok)
	}
	if got[0].Quota == nil || got[0].Quota.Models[0].Percentage != 42 {
		t.Fatalf("quota not persisted: %+v", got[0].Quota)
	}
	if _, ok := reopened.SavedAt(); !ok {
		t.Fatalf("expected saved_at to be recorded")
	}
}

func TestAccountCache_SeparateDatabasePerGateway(t *testing.T) {
	dir := t.TempDir()

	a, err := NewAccountCache(dir, "http://one:1")
	if err != nil {
		t.Fatalf("NewAccountCache: %v", err)
	}
	defer a.Close()
	b, err := NewAccountCache(dir, "http://two:2")
	if err != nil {
		t.Fatalf("NewAccountCache: %v", err)
	}
	defer b.Close()

	if err := a.SaveAccounts([]domain.Account{{ID: "x"}}); err != nil {
		t.Fatalf("SaveAccounts: %v", err)
	}
	if _, ok := b.GetAccounts(); ok {
		t.Fatalf("accounts leaked across gateways")
	}
}

func TestAccountCache_InvalidateAll(t *testing.T) {
	s, err := NewAccountCache(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewAccountCache: %v", err)
	}
	defer s.Close()

	s.SaveAccounts([]domain.Account{{ID: "a"}})
	s.SaveCurrentID("a")
	s.InvalidateAll()

	if _, ok := s.GetAccounts(); ok {
		t.Fatalf("expected accounts to be wiped")
	}
	if _, ok := s.GetCurrentID(); ok {
		t.Fatalf("expected current id to be wiped")
	}
}

func TestHashGatewayURL_Normalizes(t *testing.T) {
	if hashGatewayURL("HTTP://Host:1/") != hashGatewayURL("http://host:1") {
		t.Fatalf("expected case and trailing slash to be ignored")
	}
}
