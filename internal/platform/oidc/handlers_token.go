package oidc

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/password"
	"github.com/fhirway/fhirway/internal/platform/repository"
)

// tokenResponse is the `/token` success body (spec §4.5).
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Token implements the `/token` endpoint's three grants (spec §4.5).
func (s *Service) Token(c echo.Context) error {
	ctx := c.Request().Context()
	tenant := ids.TenantID(c.Param("tenant"))
	project := ids.ProjectID(c.Param("project"))

	switch c.FormValue("grant_type") {
	case "authorization_code":
		return s.tokenFromAuthorizationCode(c, ctx, tenant, project)
	case "refresh_token":
		return s.tokenFromRefreshToken(c, ctx, tenant, project)
	case "client_credentials":
		return s.tokenFromClientCredentials(c, ctx, tenant, project)
	default:
		return c.JSON(http.StatusBadRequest, unsupportedGrantType("grant_type must be authorization_code, refresh_token, or client_credentials"))
	}
}

func (s *Service) tokenFromAuthorizationCode(c echo.Context, ctx context.Context, tenant ids.TenantID, project ids.ProjectID) error {
	clientID := c.FormValue("client_id")
	code := c.FormValue("code")
	verifier := c.FormValue("code_verifier")
	redirectURI := c.FormValue("redirect_uri")

	grant, err := s.Repo.GetAuthorizationCode(ctx, tenant, code, repository.KindOAuth2CodeGrant)
	if err != nil || grant == nil {
		return c.JSON(http.StatusBadRequest, invalidGrant("the provided authorization code is invalid"))
	}
	if grant.Used || time.Now().After(grant.ExpiresAt) {
		return c.JSON(http.StatusBadRequest, invalidGrant("the provided authorization code has expired or was already used"))
	}
	if clientID != "" && grant.ClientID != clientID {
		return c.JSON(http.StatusBadRequest, invalidGrant("client_id does not match the authorization code"))
	}
	if redirectURI != "" && grant.RedirectURI != redirectURI {
		return c.JSON(http.StatusBadRequest, invalidGrant("redirect_uri does not match the authorization code"))
	}
	if !VerifyPKCE(grant.PKCEChallengeMethod, verifier, grant.PKCEChallenge) {
		return c.JSON(http.StatusBadRequest, invalidGrant("code_verifier does not match code_challenge"))
	}

	if err := s.Repo.ConsumeAuthorizationCode(ctx, tenant, code); err != nil {
		return c.JSON(http.StatusInternalServerError, &OAuthError{Code: "server_error", Description: err.Error()})
	}

	scope, _ := grant.Meta["scope"].(string)
	resp, err := s.issueTokensForUser(ctx, tenant, project, grant.ClientID, grant.UserID, scope)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, &OAuthError{Code: "server_error", Description: err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Service) tokenFromRefreshToken(c echo.Context, ctx context.Context, tenant ids.TenantID, project ids.ProjectID) error {
	raw := c.FormValue("refresh_token")
	grant, err := s.Repo.GetAuthorizationCode(ctx, tenant, raw, repository.KindRefreshToken)
	if err != nil || grant == nil {
		return c.JSON(http.StatusBadRequest, invalidGrant("the provided refresh token is invalid"))
	}
	if grant.Used || time.Now().After(grant.ExpiresAt) {
		return c.JSON(http.StatusBadRequest, invalidGrant("the provided refresh token has expired or was revoked"))
	}

	if err := s.Repo.ConsumeAuthorizationCode(ctx, tenant, raw); err != nil {
		return c.JSON(http.StatusInternalServerError, &OAuthError{Code: "server_error", Description: err.Error()})
	}

	scope, _ := grant.Meta["scope"].(string)
	resp, err := s.issueTokensForUser(ctx, tenant, project, grant.ClientID, grant.UserID, scope)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, &OAuthError{Code: "server_error", Description: err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Service) tokenFromClientCredentials(c echo.Context, ctx context.Context, tenant ids.TenantID, project ids.ProjectID) error {
	clientID := c.FormValue("client_id")
	clientSecret := c.FormValue("client_secret")

	client, err := s.Repo.GetClientApplication(ctx, tenant, project, clientID)
	if err != nil || client == nil || client.Secret == "" || !password.Verify(client.Secret, clientSecret) {
		return c.JSON(http.StatusUnauthorized, invalidClient("client authentication failed"))
	}
	if !hasGrant(client.GrantTypes, repository.GrantClientCredentials) {
		return c.JSON(http.StatusBadRequest, unsupportedGrantType("client is not authorized for client_credentials"))
	}

	access, err := s.Issuer.Sign(TokenClaims{
		Subject: client.ID,
		Tenant:  tenant,
		Project: project,
		Scope:   client.Scope,
	}, AccessTokenTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, &OAuthError{Code: "server_error", Description: err.Error()})
	}

	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int(AccessTokenTTL.Seconds()),
		Scope:       client.Scope,
	})
}

func hasGrant(grants []repository.GrantType, want repository.GrantType) bool {
	for _, g := range grants {
		if g == want {
			return true
		}
	}
	return false
}

// issueTokensForUser mints the access/refresh/id token set for an
// authenticated end user, resolving their project membership for the
// role/access-policy/membership_id claims (spec §4.5).
func (s *Service) issueTokensForUser(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, clientID string, userID ids.AuthorID, scope string) (tokenResponse, error) {
	membership, err := s.Repo.GetMembership(ctx, tenant, project, userID)
	if err != nil {
		return tokenResponse{}, err
	}

	claims := TokenClaims{
		Subject:      userID.String(),
		Tenant:       tenant,
		Project:      project,
		UserID:       userID,
		Scope:        scope,
		MembershipID: membership.ID,
		UserRole:     string(membership.Role),
	}
	claims.AccessPolicyVersionIDs = membership.AccessPolicyVersionIDs

	access, err := s.Issuer.Sign(claims, AccessTokenTTL)
	if err != nil {
		return tokenResponse{}, err
	}

	refreshCode := ids.NewResourceID().String()
	if err := s.Repo.CreateAuthorizationCode(ctx, repository.AuthorizationCode{
		Code:      refreshCode,
		Kind:      repository.KindRefreshToken,
		Tenant:    tenant,
		Project:   project,
		ClientID:  clientID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(RefreshTokenTTL),
		Meta:      map[string]any{"scope": scope},
		CreatedAt: time.Now(),
	}); err != nil {
		return tokenResponse{}, err
	}

	resp := tokenResponse{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int(AccessTokenTTL.Seconds()),
		RefreshToken: refreshCode,
		Scope:        scope,
	}

	scopes, err := ParseScopeString(scope)
	if err == nil && HasScope(scopes, ScopeOpenID) {
		idToken, err := s.Issuer.Sign(claims, AccessTokenTTL)
		if err != nil {
			return tokenResponse{}, err
		}
		resp.IDToken = idToken
	}

	return resp, nil
}
