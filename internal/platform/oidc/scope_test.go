package oidc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirway/fhirway/internal/platform/oidc"
)

func TestParseScopeString_WellKnownScopes(t *testing.T) {
	scopes, err := oidc.ParseScopeString("openid profile email offline_access")
	require.NoError(t, err)
	require.Len(t, scopes, 4)
	assert.Equal(t, oidc.ScopeOpenID, scopes[0].Kind)
	assert.Equal(t, oidc.ScopeProfile, scopes[1].Kind)
	assert.Equal(t, oidc.ScopeEmail, scopes[2].Kind)
	assert.Equal(t, oidc.ScopeOfflineAccess, scopes[3].Kind)
}

func TestParseScopeString_Launch(t *testing.T) {
	scopes, err := oidc.ParseScopeString("launch/patient")
	require.NoError(t, err)
	require.Len(t, scopes, 1)
	assert.Equal(t, oidc.ScopeLaunch, scopes[0].Kind)
}

func TestParseScopeString_Clinical(t *testing.T) {
	scopes, err := oidc.ParseScopeString("patient/Observation.cruds system/*.rs")
	require.NoError(t, err)
	require.Len(t, scopes, 2)

	assert.Equal(t, oidc.ScopeClinical, scopes[0].Kind)
	assert.Equal(t, "patient", scopes[0].Principal)
	assert.Equal(t, "Observation", scopes[0].ResourceType)
	assert.Equal(t, "cruds", scopes[0].Permissions)

	assert.Equal(t, oidc.ScopeClinical, scopes[1].Kind)
	assert.Equal(t, "system", scopes[1].Principal)
	assert.Equal(t, "*", scopes[1].ResourceType)
	assert.Equal(t, "rs", scopes[1].Permissions)
}

func TestParseScopeString_PermissionsMustBeInOrder(t *testing.T) {
	_, err := oidc.ParseScopeString("patient/Observation.rc")
	assert.Error(t, err)
}

func TestParseScopeString_UnrecognizedTokenFailsWholeString(t *testing.T) {
	_, err := oidc.ParseScopeString("openid not-a-real-scope")
	assert.Error(t, err)
}

func TestHasScope(t *testing.T) {
	scopes, err := oidc.ParseScopeString("openid patient/Patient.r")
	require.NoError(t, err)
	assert.True(t, oidc.HasScope(scopes, oidc.ScopeOpenID))
	assert.False(t, oidc.HasScope(scopes, oidc.ScopeProfile))
}
