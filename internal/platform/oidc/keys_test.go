package oidc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirway/fhirway/internal/platform/oidc"
)

func TestLoadOrCreateKeyPair_GeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()

	kp, err := oidc.LoadOrCreateKeyPair(dir)
	require.NoError(t, err)
	assert.NotNil(t, kp.Private)
	assert.NotNil(t, kp.Public)
	assert.NotEmpty(t, kp.Kid)

	reloaded, err := oidc.LoadOrCreateKeyPair(dir)
	require.NoError(t, err)
	assert.Equal(t, kp.Kid, reloaded.Kid)
	assert.Equal(t, kp.Public.N, reloaded.Public.N)
}

func TestLoadOrCreateKeyPair_KidIsDeterministic(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()

	a, err := oidc.LoadOrCreateKeyPair(dirA)
	require.NoError(t, err)
	b, err := oidc.LoadOrCreateKeyPair(dirB)
	require.NoError(t, err)

	// Independently generated keys get independent kids.
	assert.NotEqual(t, a.Kid, b.Kid)

	// Reloading the same key yields the same kid.
	again, err := oidc.LoadOrCreateKeyPair(dirA)
	require.NoError(t, err)
	assert.Equal(t, a.Kid, again.Kid)

	// JWKSDocument exposes the same kid.
	doc := a.JWKSDocument()
	require.Len(t, doc.Keys, 1)
	assert.Equal(t, a.Kid, doc.Keys[0].Kid)
	assert.Equal(t, "RSA", doc.Keys[0].Kty)
	assert.Equal(t, "RS256", doc.Keys[0].Alg)
}
