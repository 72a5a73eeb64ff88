// Package search resolves free-text queries to accounts.
package search

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/roster/internal/domain"
)

// Match is an account ranked against a query
type Match struct {
	Account  domain.Account
	Distance int // lower is better; 0 for exact matches
}

// Rank returns the accounts matching query, best first. An exact id or
// email match (case-insensitive) is returned alone.
func Rank(query string, accounts []domain.Account) []Match {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	for _, a := range accounts {
		if a.ID == query || strings.EqualFold(a.Email, query) {
			return []Match{{Account: a}}
		}
	}

	// Search emails and display names; keep the best distance per account
	targets := make([]string, 0, len(accounts)*2)
	owners := make(map[string][]int)
	for i, a := range accounts {
		for _, t := range []string{a.Email, a.Name} {
			if t == "" {
				continue
			}
			if _, seen := owners[t]; !seen {
				targets = append(targets, t)
			}
			owners[t] = append(owners[t], i)
		}
	}

	best := make(map[int]int)
	for _, r := range fuzzy.RankFindFold(query, targets) {
		for _, idx := range owners[r.Target] {
			if d, ok := best[idx]; !ok || r.Distance < d {
				best[idx] = r.Distance
			}
		}
	}

	matches := make([]Match, 0, len(best))
	for idx, d := range best {
		matches = append(matches, Match{Account: accounts[idx], Distance: d})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Account.Email < matches[j].Account.Email
	})
	return matches
}

// Resolve returns the single best account for query. ok is false when
// nothing matches or the top two candidates are tied.
func Resolve(query string, accounts []domain.Account) (domain.Account, bool) {
	matches := Rank(query, accounts)
	if len(matches) == 0 {
		return domain.Account{}, false
	}
	if len(matches) > 1 && matches[0].Distance == matches[1].Distance {
		return domain.Account{}, false
	}
	return matches[0].Account, true
}
