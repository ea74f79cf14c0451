package oidc

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// DiscoveryDocument is the `/.well-known/openid-configuration` body
// (spec §4.5).
type DiscoveryDocument struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
}

// Discovery serves the OIDC discovery document for a tenant/project's
// issuer, mirroring the shape the teacher's auth.OIDCProvider consumes
// from third-party IdPs (internal/platform/auth/oidc.go).
func (s *Service) Discovery(baseURL string) echo.HandlerFunc {
	return func(c echo.Context) error {
		doc := DiscoveryDocument{
			Issuer:                 baseURL,
			AuthorizationEndpoint:  baseURL + "/auth/authorize",
			TokenEndpoint:          baseURL + "/auth/token",
			JWKSURI:                baseURL + "/certs/jwks",
			ResponseTypesSupported: []string{"code"},
			GrantTypesSupported:    []string{"authorization_code", "refresh_token", "client_credentials"},
			SubjectTypesSupported:  []string{"public"},
			IDTokenSigningAlgValuesSupported:  []string{"RS256"},
			ScopesSupported:                   []string{"openid", "profile", "email", "offline_access"},
			TokenEndpointAuthMethodsSupported: []string{"client_secret_post"},
		}
		return c.JSON(http.StatusOK, doc)
	}
}

// JWKS serves the server's signing key as a JSON Web Key Set.
func (s *Service) JWKS(keys *KeyPair) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, keys.JWKSDocument())
	}
}
