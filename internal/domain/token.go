package domain

import (
	"sort"
	"time"
)

// Client identifies the intended consumer of a token.
type Client string

const (
	// ClientUI is the interactive browser session.
	ClientUI Client = "ui"
	// ClientAPI is a programmatic API key. At most one is intended to be live per subject.
	ClientAPI Client = "api"
)

// Clients lists every known client.
func Clients() []Client {
	return []Client{ClientUI, ClientAPI}
}

// Valid reports whether c is a known client.
func (c Client) Valid() bool {
	return c == ClientUI || c == ClientAPI
}

// Authentication is the principal snapshot stored alongside a token so a bearer
// value can be resolved back into the identity it was issued for.
type Authentication struct {
	Name         string                 `json:"name"`
	Authorities  []string               `json:"authorities"`
	ProjectRoles map[string]ProjectRole `json:"project_roles"`
}

// Token is an issued access token. Records are immutable once created except for removal.
type Token struct {
	ID             string
	Value          string
	Subject        string
	Client         Client
	Scope          []string
	IssuedAt       time.Time
	ExpiresAt      *time.Time
	Authentication Authentication
}

// Expired reports whether the token's TTL has elapsed at now. Tokens without
// an expiry never expire.
func (t *Token) Expired(now time.Time) bool {
	if t == nil || t.ExpiresAt == nil {
		return false
	}
	return !now.Before(*t.ExpiresAt)
}

// ExpiresIn returns the remaining lifetime at now, zero when expired or unbounded.
func (t *Token) ExpiresIn(now time.Time) time.Duration {
	if t == nil || t.ExpiresAt == nil {
		return 0
	}
	if d := t.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Principal returns the identity the token was issued for.
func (t *Token) Principal() Principal {
	return PrincipalFromAuthentication(t.Authentication)
}

// NormalizeScope returns a sorted copy of scope without duplicates or empty entries.
func NormalizeScope(scope []string) []string {
	seen := make(map[string]struct{}, len(scope))
	out := make([]string, 0, len(scope))
	for _, s := range scope {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Confirmation is a success result describing the action taken.
type Confirmation struct {
	Message  string
	Affected int64
}
