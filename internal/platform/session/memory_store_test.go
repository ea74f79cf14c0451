package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirway/fhirway/internal/platform/session"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()

	s := session.NewSession("token1", time.Hour)
	s.Set("key", "value")
	require.NoError(t, store.Create(ctx, s))

	got, err := store.Get(ctx, "token1")
	require.NoError(t, err)
	assert.Equal(t, "value", got.GetString("key"))
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	store := session.NewMemoryStore()
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMemoryStore_Get_Expired(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()

	s := session.NewSession("expired", time.Hour)
	s.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.Create(ctx, s))

	_, err := store.Get(ctx, "expired")
	assert.ErrorIs(t, err, session.ErrExpired)

	_, err = store.Get(ctx, "expired")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMemoryStore_Create_IsolatesData(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()

	s := session.NewSession("token2", time.Hour)
	s.Set("key", "original")
	require.NoError(t, store.Create(ctx, s))

	s.Set("key", "mutated-after-create")

	got, err := store.Get(ctx, "token2")
	require.NoError(t, err)
	assert.Equal(t, "original", got.GetString("key"))
}

func TestMemoryStore_Update(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()

	s := session.NewSession("token1", time.Hour)
	require.NoError(t, store.Create(ctx, s))

	s.Set("key", "updated")
	require.NoError(t, store.Update(ctx, s))

	got, err := store.Get(ctx, "token1")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.GetString("key"))
}

func TestMemoryStore_Update_NotFound(t *testing.T) {
	store := session.NewMemoryStore()
	s := session.NewSession("nonexistent", time.Hour)
	err := store.Update(context.Background(), s)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()

	s := session.NewSession("token1", time.Hour)
	require.NoError(t, store.Create(ctx, s))
	require.NoError(t, store.Delete(ctx, "token1"))

	_, err := store.Get(ctx, "token1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMemoryStore_Concurrency(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()

	s := session.NewSession("concurrent", time.Hour)
	require.NoError(t, store.Create(ctx, s))

	done := make(chan bool)
	for range 10 {
		go func() {
			for j := 0; j < 50; j++ {
				got, err := store.Get(ctx, "concurrent")
				if err == nil {
					got.Set("touched", j)
					_ = store.Update(ctx, got)
				}
			}
			done <- true
		}()
	}
	for range 10 {
		<-done
	}

	got, err := store.Get(ctx, "concurrent")
	require.NoError(t, err)
	assert.NotNil(t, got)
}
