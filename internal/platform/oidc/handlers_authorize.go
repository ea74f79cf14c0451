package oidc

import (
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/repository"
)

// authorizeParams are the `/authorize` request parameters (spec §4.5).
type authorizeParams struct {
	ClientID            string
	ResponseType        string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	RedirectURI         string
	Scope               string
}

func parseAuthorizeParams(c echo.Context) authorizeParams {
	return authorizeParams{
		ClientID:            c.QueryParam("client_id"),
		ResponseType:        c.QueryParam("response_type"),
		State:               c.QueryParam("state"),
		CodeChallenge:       c.QueryParam("code_challenge"),
		CodeChallengeMethod: c.QueryParam("code_challenge_method"),
		RedirectURI:         c.QueryParam("redirect_uri"),
		Scope:               c.QueryParam("scope"),
	}
}

// Authorize implements the `/authorize` endpoint (spec §4.5's
// NEEDS_LOGIN / NEEDS_SCOPE / ISSUE_CODE states). It expects the
// {tenant}/{project} path parameters to already be resolved by the
// router.
func (s *Service) Authorize(c echo.Context) error {
	ctx := c.Request().Context()
	tenant := ids.TenantID(c.Param("tenant"))
	project := ids.ProjectID(c.Param("project"))
	params := parseAuthorizeParams(c)

	if params.ClientID == "" || params.ResponseType != "code" || params.State == "" ||
		params.CodeChallenge == "" || params.CodeChallengeMethod == "" {
		return c.JSON(http.StatusBadRequest, invalidRequest("client_id, response_type=code, state, code_challenge, and code_challenge_method are required"))
	}
	method := repository.PKCEMethod(params.CodeChallengeMethod)
	if method != repository.PKCES256 && method != repository.PKCEPlain {
		return c.JSON(http.StatusBadRequest, invalidRequest("code_challenge_method must be S256 or plain"))
	}

	client, err := s.Repo.GetClientApplication(ctx, tenant, project, params.ClientID)
	if err != nil || client == nil {
		return c.JSON(http.StatusBadRequest, invalidRequest("unknown client_id"))
	}

	redirectURI := params.RedirectURI
	if redirectURI == "" {
		if len(client.RedirectURIs) != 1 {
			return c.JSON(http.StatusBadRequest, invalidRequest("redirect_uri is required for this client"))
		}
		redirectURI = client.RedirectURIs[0]
	}
	if !ValidRedirectURI(client.RedirectURIs, redirectURI) {
		return c.JSON(http.StatusBadRequest, invalidRequest("redirect_uri does not match a registered pattern"))
	}

	sess, err := s.Sessions.Ensure(ctx, c.Response(), c.Request())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, &OAuthError{Code: "server_error", Description: err.Error()})
	}
	userID := sess.AuthUserID(string(tenant))
	if userID == "" {
		return c.Redirect(http.StatusFound, loginRedirect(c, tenant, project))
	}

	scopes, err := ParseScopeString(params.Scope)
	if err != nil {
		return c.JSON(http.StatusBadRequest, invalidRequest(err.Error()))
	}
	if needsConsent(scopes) {
		approved, err := s.Repo.ListApprovedScopes(ctx, tenant, project, client.ID, ids.AuthorID(userID))
		if err != nil {
			return c.JSON(http.StatusInternalServerError, &OAuthError{Code: "server_error", Description: err.Error()})
		}
		if !scopeAlreadyApproved(approved, params.Scope) {
			return c.Redirect(http.StatusFound, consentRedirect(c, tenant, project, params))
		}
	}

	code := ids.NewResourceID().String()
	err = s.Repo.CreateAuthorizationCode(ctx, repository.AuthorizationCode{
		Code:                code,
		Kind:                repository.KindOAuth2CodeGrant,
		Tenant:              tenant,
		Project:             project,
		ClientID:            client.ID,
		UserID:              ids.AuthorID(userID),
		ExpiresAt:           time.Now().Add(AuthCodeTTL),
		PKCEChallenge:       params.CodeChallenge,
		PKCEChallengeMethod: method,
		RedirectURI:         redirectURI,
		Meta:                map[string]any{"scope": params.Scope},
		CreatedAt:           time.Now(),
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, &OAuthError{Code: "server_error", Description: err.Error()})
	}

	dest, err := url.Parse(redirectURI)
	if err != nil {
		return c.JSON(http.StatusBadRequest, invalidRequest("invalid redirect_uri"))
	}
	q := dest.Query()
	q.Set("code", code)
	q.Set("state", params.State)
	dest.RawQuery = q.Encode()
	return c.Redirect(http.StatusFound, dest.String())
}

func needsConsent(scopes []Scope) bool {
	for _, s := range scopes {
		if s.Kind == ScopeClinical {
			return true
		}
	}
	return false
}

// scopeAlreadyApproved reports whether any prior approval already
// covers requested verbatim, per original_source's scope.rs model of
// storing the whole consented scope string.
func scopeAlreadyApproved(approved []repository.ApprovedScope, requested string) bool {
	for _, a := range approved {
		if a.Scope == requested {
			return true
		}
	}
	return false
}

func loginRedirect(c echo.Context, tenant ids.TenantID, project ids.ProjectID) string {
	return "/" + tenant.String() + "/" + project.String() + "/interactions/login?return_to=" + url.QueryEscape(c.Request().URL.RequestURI())
}

func consentRedirect(c echo.Context, tenant ids.TenantID, project ids.ProjectID, params authorizeParams) string {
	u := url.URL{Path: "/" + tenant.String() + "/" + project.String() + "/interactions/scope"}
	q := url.Values{}
	q.Set("client_id", params.ClientID)
	q.Set("state", params.State)
	q.Set("code_challenge", params.CodeChallenge)
	q.Set("code_challenge_method", params.CodeChallengeMethod)
	q.Set("redirect_uri", params.RedirectURI)
	q.Set("scope", params.Scope)
	u.RawQuery = q.Encode()
	return u.String()
}
