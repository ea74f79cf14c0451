// Package session is a cookie-referenced, keyed blob store (expansion,
// grounded on dmitrymomot-saaskit's pkg/session manager/store/transport
// split): the OIDC login/consent flow needs somewhere to park pending
// authorization-request state and an authenticated user's identity
// between HTTP round trips, keyed by an opaque token carried in a
// cookie. Backed by Redis in production and an in-memory store in
// dev/test, per saaskit's memory_store.go pattern.
package session

import (
	"time"
)

// authUserKey is the per-tenant data key the OIDC login handler writes
// the authenticated user's id under, per spec §4.5's "{tenant}_auth_user"
// convention.
func authUserKey(tenant string) string { return tenant + "_auth_user" }

// Session is a single server-side session record referenced by an
// opaque token. Data is a free-form blob: the OIDC subsystem stores the
// per-tenant auth-user key, pending authorize-request parameters, and
// federated-IdP state/nonce/verifier here.
type Session struct {
	Token     string
	Data      map[string]any
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewSession creates a session expiring after ttl.
func NewSession(token string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{Token: token, Data: map[string]any{}, ExpiresAt: now.Add(ttl), CreatedAt: now}
}

// IsExpired reports whether the session has passed its expiry.
func (s *Session) IsExpired() bool { return time.Now().After(s.ExpiresAt) }

// Get retrieves a value from the session's data blob.
func (s *Session) Get(key string) (any, bool) {
	if s == nil || s.Data == nil {
		return nil, false
	}
	v, ok := s.Data[key]
	return v, ok
}

// GetString retrieves a string value, or "" if absent or not a string.
func (s *Session) GetString(key string) string {
	v, ok := s.Get(key)
	str, _ := v.(string)
	if !ok {
		return ""
	}
	return str
}

// Set stores a value in the session's data blob.
func (s *Session) Set(key string, value any) {
	if s.Data == nil {
		s.Data = map[string]any{}
	}
	s.Data[key] = value
}

// AuthUserID returns the authenticated user id for tenant, if any.
func (s *Session) AuthUserID(tenant string) string { return s.GetString(authUserKey(tenant)) }

// SetAuthUserID records the authenticated user id for tenant.
func (s *Session) SetAuthUserID(tenant, userID string) { s.Set(authUserKey(tenant), userID) }

// ClearAuthUserID removes the authenticated user id for tenant (logout).
func (s *Session) ClearAuthUserID(tenant string) { delete(s.Data, authUserKey(tenant)) }
