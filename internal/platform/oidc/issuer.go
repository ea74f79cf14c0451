package oidc

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/pipeline"
)

// AccessTokenTTL is how long an issued access token is valid for.
const AccessTokenTTL = time.Hour

// TokenClaims is the input to Issuer.Sign: everything the JWT needs
// beyond iss/aud/exp/iat, which Issuer fills in itself.
type TokenClaims struct {
	Subject                string
	Tenant                 ids.TenantID
	Project                ids.ProjectID
	UserRole               string
	UserID                 ids.AuthorID
	MembershipID           string
	AccessPolicyVersionIDs []ids.VersionID
	Scope                  string
}

// Issuer signs and verifies access/id tokens with the server's RSA
// keypair (RS256, spec §4.5). Implements pipeline.TokenVerifier.
type Issuer struct {
	keys     *KeyPair
	issuer   string
	audience string
}

// NewIssuer builds an Issuer. issuerURL and audience are both typically
// the project's API_URL (config.Config.APIURL).
func NewIssuer(keys *KeyPair, issuerURL, audience string) *Issuer {
	return &Issuer{keys: keys, issuer: issuerURL, audience: audience}
}

// Sign issues an RS256 access token carrying c, expiring after ttl.
func (i *Issuer) Sign(c TokenClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	versionIDs := make([]string, len(c.AccessPolicyVersionIDs))
	for idx, v := range c.AccessPolicyVersionIDs {
		versionIDs[idx] = string(v)
	}

	claims := pipeline.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Tenant:                 string(c.Tenant),
		Project:                string(c.Project),
		UserRole:               c.UserRole,
		UserID:                 string(c.UserID),
		MembershipID:           c.MembershipID,
		AccessPolicyVersionIDs: versionIDs,
		Scope:                  c.Scope,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = i.keys.Kid
	return token.SignedString(i.keys.Private)
}

// Verify parses and validates tokenString, enforcing RS256, the
// server's own issuer, and (per DESIGN.md's Open Questions decision,
// tightening the original source's disabled audience check) the
// configured audience.
func (i *Issuer) Verify(tokenString string) (*pipeline.Claims, error) {
	claims := &pipeline.Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.keys.Public, nil
	},
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
