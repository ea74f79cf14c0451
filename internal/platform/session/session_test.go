package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fhirway/fhirway/internal/platform/session"
)

func TestSession_IsExpired(t *testing.T) {
	t.Run("not expired", func(t *testing.T) {
		s := session.NewSession("tok", time.Hour)
		assert.False(t, s.IsExpired())
	})

	t.Run("expired", func(t *testing.T) {
		s := session.NewSession("tok", time.Hour)
		s.ExpiresAt = time.Now().Add(-time.Minute)
		assert.True(t, s.IsExpired())
	})
}

func TestSession_GetSet(t *testing.T) {
	s := session.NewSession("tok", time.Hour)

	_, ok := s.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, "", s.GetString("missing"))

	s.Set("k", "v")
	v, ok := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, "v", s.GetString("k"))
}

func TestSession_AuthUserID_PerTenant(t *testing.T) {
	s := session.NewSession("tok", time.Hour)
	s.SetAuthUserID("acme", "user-1")
	s.SetAuthUserID("globex", "user-2")

	assert.Equal(t, "user-1", s.AuthUserID("acme"))
	assert.Equal(t, "user-2", s.AuthUserID("globex"))
	assert.Equal(t, "", s.AuthUserID("initech"))

	s.ClearAuthUserID("acme")
	assert.Equal(t, "", s.AuthUserID("acme"))
	assert.Equal(t, "user-2", s.AuthUserID("globex"))
}
