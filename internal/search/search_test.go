package search

import (
	"testing"

	"github.com/mmcdole/roster/internal/domain"
)

var testAccounts = []domain.Account{
	{ID: "1", Email: "alice.work@example.com", Name: "Alice"},
	{ID: "2", Email: "alice.home@example.com"},
	{ID: "3", Email: "bob@example.com", Name: "Robert"},
}

func TestRank_ExactEmailWins(t *testing.T) {
	got := Rank("BOB@example.com", testAccounts)
	if len(got) != 1 || got[0].Account.ID != "3" || got[0].Distance != 0 {
		t.Fatalf("expected exact match on bob, got %+v", got)
	}
}

func TestRank_ExactID(t *testing.T) {
	got := Rank("2", testAccounts)
	if len(got) != 1 || got[0].Account.ID != "2" {
		t.Fatalf("expected exact id match, got %+v", got)
	}
}

func TestRank_FuzzyOrdersByDistance(t *testing.T) {
	got := Rank("alicework", testAccounts)
	if len(got) == 0 || got[0].Account.ID != "1" {
		t.Fatalf("expected alice.work first, got %+v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Distance < got[i-1].Distance {
			t.Fatalf("results not sorted by distance: %+v", got)
		}
	}
}

func TestRank_MatchesDisplayName(t *testing.T) {
	got := Rank("robert", testAccounts)
	if len(got) != 1 || got[0].Account.ID != "3" {
		t.Fatalf("expected name match on bob, got %+v", got)
	}
}

func TestRank_EmptyQuery(t *testing.T) {
	if got := Rank("  ", testAccounts); got != nil {
		t.Fatalf("expected nil for empty query, got %+v", got)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		query  string
		wantID string
		wantOK bool
	}{
		{"bob", "3", true},
		{"zzz", "", false},
		{"alice.work", "1", true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, ok := Resolve(tt.query, testAccounts)
			if ok != tt.wantOK || got.ID != tt.wantID {
				t.Fatalf("Resolve(%q) = %+v, %v; want %s, %v", tt.query, got, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}
