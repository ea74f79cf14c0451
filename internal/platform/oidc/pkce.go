package oidc

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/fhirway/fhirway/internal/platform/repository"
)

// VerifyPKCE checks verifier against challenge under method, per spec
// invariant 7: S256 compares base64url(no padding) of SHA-256(verifier)
// to challenge; plain compares verifier to challenge directly.
func VerifyPKCE(method repository.PKCEMethod, verifier, challenge string) bool {
	switch method {
	case repository.PKCES256:
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
	case repository.PKCEPlain:
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	default:
		return false
	}
}
