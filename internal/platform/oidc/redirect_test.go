package oidc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fhirway/fhirway/internal/platform/oidc"
)

func TestValidRedirectURI_ExactMatch(t *testing.T) {
	patterns := []string{"https://app.example.com/callback"}
	assert.True(t, oidc.ValidRedirectURI(patterns, "https://app.example.com/callback"))
	assert.False(t, oidc.ValidRedirectURI(patterns, "https://app.example.com/other"))
}

func TestValidRedirectURI_Wildcard(t *testing.T) {
	patterns := []string{"https://app.example.com/*/callback"}
	assert.True(t, oidc.ValidRedirectURI(patterns, "https://app.example.com/tenant-a/callback"))
	assert.False(t, oidc.ValidRedirectURI(patterns, "https://app.example.com/callback"))
}

func TestValidRedirectURI_WildcardCannotSmuggleScheme(t *testing.T) {
	patterns := []string{"https://app.example.com/*"}
	assert.False(t, oidc.ValidRedirectURI(patterns, "javascript://app.example.com/evil"))
	assert.False(t, oidc.ValidRedirectURI(patterns, "https://evil.com/app.example.com/x"))
}

func TestValidRedirectURI_EmptyCandidateRejected(t *testing.T) {
	assert.False(t, oidc.ValidRedirectURI([]string{"https://app.example.com/*"}, ""))
}

func TestValidRedirectURI_NoPatternsMatch(t *testing.T) {
	assert.False(t, oidc.ValidRedirectURI(nil, "https://app.example.com/callback"))
}
