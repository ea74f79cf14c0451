package oidc

import (
	"time"

	"github.com/fhirway/fhirway/internal/platform/repository"
	"github.com/fhirway/fhirway/internal/platform/session"
)

// AuthCodeTTL is the lifetime of an issued authorization code (spec
// §4.5: "5-minute expiry").
const AuthCodeTTL = 5 * time.Minute

// RefreshTokenTTL is the lifetime of an issued refresh token.
const RefreshTokenTTL = 30 * 24 * time.Hour

// OAuthError is the structured error body spec §8 requires for OIDC
// failures, matching the teacher's auth.OAuthError shape
// (internal/platform/auth/smart_launch.go).
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *OAuthError) Error() string { return e.Code + ": " + e.Description }

func invalidRequest(description string) *OAuthError {
	return &OAuthError{Code: "invalid_request", Description: description}
}

func invalidGrant(description string) *OAuthError {
	return &OAuthError{Code: "invalid_grant", Description: description}
}

func invalidClient(description string) *OAuthError {
	return &OAuthError{Code: "invalid_client", Description: description}
}

func unsupportedGrantType(description string) *OAuthError {
	return &OAuthError{Code: "unsupported_grant_type", Description: description}
}

// FederatedIDP is a project-configured upstream identity provider (spec
// §4.5's "federated/{idp_id}").
type FederatedIDP struct {
	ID           string
	Name         string
	IssuerURL    string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Service holds the OIDC subsystem's dependencies: the admin repository
// (tenants/projects/users/clients/codes), the token issuer, the session
// manager, and the configured federated IdPs per project.
type Service struct {
	Repo     repository.AdminRepository
	Issuer   *Issuer
	Sessions *session.Manager
	// FederatedIDPs looks up a project's configured upstream IdP by id.
	FederatedIDPs func(tenant, project, idpID string) (*FederatedIDP, error)
}

// NewService builds a Service.
func NewService(repo repository.AdminRepository, issuer *Issuer, sessions *session.Manager, federatedIDPs func(tenant, project, idpID string) (*FederatedIDP, error)) *Service {
	return &Service{Repo: repo, Issuer: issuer, Sessions: sessions, FederatedIDPs: federatedIDPs}
}
