package domain

import (
	"strings"
	"time"
)

// Account is a single managed credential as reported by the backend.
// Accounts are replaced wholesale on every re-fetch; never mutate one in place.
type Account struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	Name                string    `json:"name,omitempty"`
	Quota               *Quota    `json:"quota,omitempty"`
	LastUsed            time.Time `json:"last_used"`
	CreatedAt           time.Time `json:"created_at"`
	ProxyDisabled       bool      `json:"proxy_disabled"`
	ProxyDisabledReason string    `json:"proxy_disabled_reason,omitempty"`
}

// DisplayName returns the name shown in lists, falling back to the email
func (a Account) DisplayName() string {
	if strings.TrimSpace(a.Name) != "" {
		return a.Name
	}
	return a.Email
}

// ProxyEnabled reports whether the account participates in proxy rotation
func (a Account) ProxyEnabled() bool {
	return !a.ProxyDisabled
}

// IsForbidden reports whether the backend marked the account's quota as forbidden
func (a Account) IsForbidden() bool {
	return a.Quota != nil && a.Quota.IsForbidden
}

// ModelQuota is the remaining quota for a single model
type ModelQuota struct {
	Name       string `json:"name"`
	Percentage int    `json:"percentage"` // 0..100 remaining
	ResetTime  string `json:"reset_time,omitempty"`
}

// Quota is the last quota snapshot the backend computed for an account
type Quota struct {
	Models      []ModelQuota `json:"models"`
	IsForbidden bool         `json:"is_forbidden"`
	LastUpdated time.Time    `json:"last_updated"`
}

// Lowest returns the model with the least remaining quota.
// ok is false when there are no models.
func (q *Quota) Lowest() (ModelQuota, bool) {
	if q == nil || len(q.Models) == 0 {
		return ModelQuota{}, false
	}
	lowest := q.Models[0]
	for _, m := range q.Models[1:] {
		if m.Percentage < lowest.Percentage {
			lowest = m
		}
	}
	return lowest, true
}

// RefreshStats summarizes a refresh-all-quotas run
type RefreshStats struct {
	Total   int      `json:"total"`
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Details []string `json:"details"`
}

// AccountIDs returns the ids of accounts in order
func AccountIDs(accounts []Account) []string {
	ids := make([]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}
	return ids
}
