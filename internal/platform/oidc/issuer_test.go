package oidc_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/oidc"
)

func newTestIssuer(t *testing.T) *oidc.Issuer {
	t.Helper()
	kp, err := oidc.LoadOrCreateKeyPair(t.TempDir())
	require.NoError(t, err)
	return oidc.NewIssuer(kp, "https://acme.fhirway.example", "https://acme.fhirway.example")
}

func TestIssuer_SignAndVerify_RoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.Sign(oidc.TokenClaims{
		Subject:                "user-1",
		Tenant:                 ids.TenantID("acme"),
		Project:                ids.ProjectID("default"),
		UserRole:               "admin",
		UserID:                 ids.AuthorID("user-1"),
		MembershipID:           "membership-1",
		AccessPolicyVersionIDs: []ids.VersionID{"v1", "v2"},
		Scope:                  "openid patient/Patient.r",
	}, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "acme", claims.Tenant)
	assert.Equal(t, "default", claims.Project)
	assert.Equal(t, "admin", claims.UserRole)
	assert.Equal(t, "membership-1", claims.MembershipID)
	assert.Equal(t, []string{"v1", "v2"}, claims.AccessPolicyVersionIDs)
	assert.Equal(t, "openid patient/Patient.r", claims.Scope)
}

func TestIssuer_Verify_RejectsExpiredToken(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.Sign(oidc.TokenClaims{Subject: "user-1"}, -time.Minute)
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.Error(t, err)
}

func TestIssuer_Verify_RejectsWrongAudience(t *testing.T) {
	kp, err := oidc.LoadOrCreateKeyPair(t.TempDir())
	require.NoError(t, err)
	issuerA := oidc.NewIssuer(kp, "https://acme.fhirway.example", "https://acme.fhirway.example")
	issuerB := oidc.NewIssuer(kp, "https://acme.fhirway.example", "https://other.fhirway.example")

	token, err := issuerA.Sign(oidc.TokenClaims{Subject: "user-1"}, time.Hour)
	require.NoError(t, err)

	_, err = issuerB.Verify(token)
	assert.Error(t, err)
}

func TestIssuer_Verify_RejectsTamperedSignature(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.Sign(oidc.TokenClaims{Subject: "user-1"}, time.Hour)
	require.NoError(t, err)

	otherKP, err := oidc.LoadOrCreateKeyPair(t.TempDir())
	require.NoError(t, err)
	otherIssuer := oidc.NewIssuer(otherKP, "https://acme.fhirway.example", "https://acme.fhirway.example")

	_, err = otherIssuer.Verify(token)
	assert.Error(t, err)
}
