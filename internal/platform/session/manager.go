package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"
)

// CookieName is the name of the cookie carrying the opaque session
// token; the token itself is meaningless outside the Store.
const CookieName = "fhirway_session"

// Manager ties a Store to the HTTP cookie transport.
type Manager struct {
	store Store
	ttl   time.Duration
	// secure controls the cookie's Secure attribute; false only in local
	// development (config.IsDev()).
	secure bool
}

// NewManager builds a Manager over store with the given session
// lifetime.
func NewManager(store Store, ttl time.Duration, secure bool) *Manager {
	return &Manager{store: store, ttl: ttl, secure: secure}
}

// Ensure returns the caller's session, creating and cookie-setting a
// new one if none is present or it has expired.
func (m *Manager) Ensure(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	if s, err := m.Get(ctx, r); err == nil {
		return s, nil
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	s := NewSession(token, m.ttl)
	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}
	m.setCookie(w, token)
	return s, nil
}

// Get retrieves the caller's session without creating one.
func (m *Manager) Get(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrNotFound
	}
	return m.store.Get(ctx, cookie.Value)
}

// Save persists mutations made to s.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	return m.store.Update(ctx, s)
}

// Destroy deletes the session and clears its cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if cookie, err := r.Cookie(CookieName); err == nil {
		_ = m.store.Delete(ctx, cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *Manager) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
