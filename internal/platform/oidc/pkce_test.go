package oidc_test

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fhirway/fhirway/internal/platform/oidc"
	"github.com/fhirway/fhirway/internal/platform/repository"
)

func TestVerifyPKCE_S256(t *testing.T) {
	verifier := "some-random-code-verifier-value-1234567890"
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	assert.True(t, oidc.VerifyPKCE(repository.PKCES256, verifier, challenge))
	assert.False(t, oidc.VerifyPKCE(repository.PKCES256, "wrong-verifier", challenge))
}

func TestVerifyPKCE_Plain(t *testing.T) {
	assert.True(t, oidc.VerifyPKCE(repository.PKCEPlain, "same-value", "same-value"))
	assert.False(t, oidc.VerifyPKCE(repository.PKCEPlain, "one-value", "other-value"))
}

func TestVerifyPKCE_UnknownMethod(t *testing.T) {
	assert.False(t, oidc.VerifyPKCE(repository.PKCEMethod("bogus"), "v", "v"))
}
