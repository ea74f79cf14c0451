package oidc

import (
	"encoding/base64"
	"math/big"
)

// JWK is a single JSON Web Key, field names matching the teacher's
// consumer-side JWKSKey (internal/platform/auth/middleware.go) — this
// package produces what that shape describes instead of consuming it.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is a JSON Web Key Set document.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWKSDocument builds the JWKS document for kp's public key.
func (kp *KeyPair) JWKSDocument() JWKS {
	n := base64.RawURLEncoding.EncodeToString(kp.Public.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(kp.Public.E)).Bytes())
	return JWKS{Keys: []JWK{{
		Kty: "RSA",
		Kid: kp.Kid,
		Use: "sig",
		Alg: "RS256",
		N:   n,
		E:   e,
	}}}
}
