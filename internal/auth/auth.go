// Package auth authenticates API bearer tokens and checks their scopes.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// Scopes understood by the API. A :rw scope implies its :ro counterpart.
const (
	ScopeAll           = "*"
	ScopeJobsRead      = "jobs:ro"
	ScopeJobsWrite     = "jobs:rw"
	ScopeInventoryRead = "inventory:ro"
	ScopeEventsRead    = "events:ro"
)

var knownScopes = map[string]bool{
	ScopeAll:           true,
	ScopeJobsRead:      true,
	ScopeJobsWrite:     true,
	ScopeInventoryRead: true,
	ScopeEventsRead:    true,
}

// KnownScope reports whether the API checks for scope s.
func KnownScope(s string) bool { return knownScopes[s] }

var (
	ErrNoCredentials = errors.New("missing Authorization header")
	ErrMalformed     = errors.New("invalid Authorization header format")
)

// TokenConfig is a bearer token with a set of scopes. Name labels the token
// in logs; the token itself is never logged.
type TokenConfig struct {
	Name   string
	Token  string
	Scopes []string
}

// Principal is an authenticated caller.
type Principal struct {
	Name   string
	scopes map[string]struct{}
}

// Allows reports whether p holds any of required. No requirement always
// passes, and "*" satisfies every requirement.
func (p Principal) Allows(required ...string) bool {
	if len(required) == 0 {
		return true
	}
	if _, ok := p.scopes[ScopeAll]; ok {
		return true
	}
	for _, s := range required {
		if _, ok := p.scopes[s]; ok {
			return true
		}
	}
	return false
}

type keyEntry struct {
	token     []byte
	principal Principal
}

// Keyring holds the configured credentials with scopes expanded once.
type Keyring struct {
	entries []keyEntry
}

// NewKeyring builds a keyring. A non-empty apiKey authenticates as "admin"
// with every scope.
func NewKeyring(apiKey string, tokens []TokenConfig) *Keyring {
	k := &Keyring{}
	if apiKey != "" {
		k.entries = append(k.entries, keyEntry{
			token:     []byte(apiKey),
			principal: Principal{Name: "admin", scopes: map[string]struct{}{ScopeAll: {}}},
		})
	}
	for i, t := range tokens {
		if t.Token == "" {
			continue
		}
		name := t.Name
		if name == "" {
			name = "token-" + strconv.Itoa(i)
		}
		k.entries = append(k.entries, keyEntry{
			token:     []byte(t.Token),
			principal: Principal{Name: name, scopes: expandScopes(t.Scopes)},
		})
	}
	return k
}

// Authenticate matches a presented token. Every entry is compared so the
// time taken does not depend on which token matched.
func (k *Keyring) Authenticate(presented string) (Principal, bool) {
	var (
		found Principal
		ok    bool
	)
	if presented == "" {
		return found, false
	}
	p := []byte(presented)
	for _, e := range k.entries {
		if subtle.ConstantTimeCompare(p, e.token) == 1 && !ok {
			found, ok = e.principal, true
		}
	}
	return found, ok
}

// Empty reports whether no credentials are configured.
func (k *Keyring) Empty() bool { return len(k.entries) == 0 }

func expandScopes(scopes []string) map[string]struct{} {
	out := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out[s] = struct{}{}
		if resource, ok := strings.CutSuffix(s, ":rw"); ok {
			out[resource+":ro"] = struct{}{}
		}
	}
	return out
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrNoCredentials
	}
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMalformed
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMalformed
	}
	return token, nil
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
