package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirway/fhirway/internal/platform/session"
)

func setupManager() *session.Manager {
	return session.NewManager(session.NewMemoryStore(), time.Hour, false)
}

func TestManager_Ensure_CreatesNewSession(t *testing.T) {
	mgr := setupManager()
	ctx := context.Background()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	s, err := mgr.Ensure(ctx, w, r)
	require.NoError(t, err)
	assert.NotEmpty(t, s.Token)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestManager_Ensure_ReturnsExistingSession(t *testing.T) {
	mgr := setupManager()
	ctx := context.Background()

	w1 := httptest.NewRecorder()
	r1 := httptest.NewRequest(http.MethodGet, "/", nil)
	s1, err := mgr.Ensure(ctx, w1, r1)
	require.NoError(t, err)

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w1.Result().Cookies() {
		r2.AddCookie(c)
	}
	w2 := httptest.NewRecorder()

	s2, err := mgr.Ensure(ctx, w2, r2)
	require.NoError(t, err)
	assert.Equal(t, s1.Token, s2.Token)
	assert.Empty(t, w2.Result().Cookies())
}

func TestManager_Get_NoCookie(t *testing.T) {
	mgr := setupManager()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := mgr.Get(context.Background(), r)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestManager_SaveAndGet(t *testing.T) {
	mgr := setupManager()
	ctx := context.Background()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	s, err := mgr.Ensure(ctx, w, r)
	require.NoError(t, err)

	s.SetAuthUserID("acme", "user-1")
	require.NoError(t, mgr.Save(ctx, s))

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		r2.AddCookie(c)
	}
	got, err := mgr.Get(ctx, r2)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.AuthUserID("acme"))
}

func TestManager_Destroy(t *testing.T) {
	mgr := setupManager()
	ctx := context.Background()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := mgr.Ensure(ctx, w, r)
	require.NoError(t, err)

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		r2.AddCookie(c)
	}
	w2 := httptest.NewRecorder()
	require.NoError(t, mgr.Destroy(ctx, w2, r2))

	cookies := w2.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)

	r3 := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		r3.AddCookie(c)
	}
	_, err = mgr.Get(ctx, r3)
	assert.ErrorIs(t, err, session.ErrNotFound)
}
