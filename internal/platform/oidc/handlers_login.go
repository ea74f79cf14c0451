package oidc

import (
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/password"
	"github.com/fhirway/fhirway/internal/platform/repository"
)

// loginForm is the `/interactions/login` POST body.
type loginForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
	ReturnTo string `form:"return_to"`
}

// Login authenticates an email_password user and records them as the
// logged-in user for the tenant in the current session (spec §4.5's
// LOGGED_IN state). The actual login page markup is out of scope
// (spec.md's explicit Non-goal); this handles the POSTed credentials.
func (s *Service) Login(c echo.Context) error {
	ctx := c.Request().Context()
	tenant := ids.TenantID(c.Param("tenant"))

	var form loginForm
	if err := c.Bind(&form); err != nil {
		return c.JSON(http.StatusBadRequest, invalidRequest("invalid form body"))
	}

	user, err := s.Repo.GetUserByEmail(ctx, tenant, form.Email)
	if err != nil || user == nil || user.Method != repository.MethodEmailPassword {
		return c.JSON(http.StatusUnauthorized, invalidGrant("invalid email or password"))
	}
	if !password.Verify(user.PasswordHash, form.Password) {
		return c.JSON(http.StatusUnauthorized, invalidGrant("invalid email or password"))
	}

	sess, err := s.Sessions.Ensure(ctx, c.Response(), c.Request())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, &OAuthError{Code: "server_error", Description: err.Error()})
	}
	sess.SetAuthUserID(string(tenant), user.ID.String())
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return c.JSON(http.StatusInternalServerError, &OAuthError{Code: "server_error", Description: err.Error()})
	}

	returnTo := form.ReturnTo
	if returnTo == "" {
		returnTo = "/"
	}
	return c.Redirect(http.StatusFound, returnTo)
}

// Logout clears the per-tenant session key and redirects to a
// validated redirect URI (spec §4.5).
func (s *Service) Logout(patterns []string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		tenant := ids.TenantID(c.Param("tenant"))
		redirectURI := c.QueryParam("redirect_uri")

		sess, err := s.Sessions.Get(ctx, c.Request())
		if err == nil {
			sess.ClearAuthUserID(tenant.String())
			_ = s.Sessions.Save(ctx, sess)
		}

		if redirectURI == "" || !ValidRedirectURI(patterns, redirectURI) {
			return c.NoContent(http.StatusNoContent)
		}
		return c.Redirect(http.StatusFound, redirectURI)
	}
}

// scopeForm is the `/interactions/scope` (consent) POST body (spec
// §4.5's NEEDS_SCOPE state, grounded on original_source's
// oidc/routes/scope.rs).
type scopeForm struct {
	ClientID            string `form:"client_id"`
	State               string `form:"state"`
	CodeChallenge       string `form:"code_challenge"`
	CodeChallengeMethod string `form:"code_challenge_method"`
	Scope               string `form:"scope"`
	RedirectURI         string `form:"redirect_uri"`
	Accept              string `form:"accept"`
}

// Consent implements `/interactions/scope`: on acceptance it persists
// an ApprovedScope and redirects back into `/authorize` to resume
// issuance; on refusal it reports Forbidden.
func (s *Service) Consent(c echo.Context) error {
	ctx := c.Request().Context()
	tenant := ids.TenantID(c.Param("tenant"))
	project := ids.ProjectID(c.Param("project"))

	var form scopeForm
	if err := c.Bind(&form); err != nil {
		return c.JSON(http.StatusBadRequest, invalidRequest("invalid form body"))
	}
	if form.Accept != "on" && form.Accept != "true" {
		return c.JSON(http.StatusForbidden, &OAuthError{Code: "access_denied", Description: "user did not accept the requested scopes"})
	}

	sess, err := s.Sessions.Get(ctx, c.Request())
	if err != nil {
		return c.JSON(http.StatusUnauthorized, invalidGrant("no active session"))
	}
	userID := sess.AuthUserID(string(tenant))
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, invalidGrant("no authenticated user in session"))
	}

	if err := s.Repo.PutApprovedScope(ctx, repository.ApprovedScope{
		Tenant:    tenant,
		Project:   project,
		ClientID:  form.ClientID,
		UserID:    ids.AuthorID(userID),
		Scope:     form.Scope,
		CreatedAt: time.Now(),
	}); err != nil {
		return c.JSON(http.StatusInternalServerError, &OAuthError{Code: "server_error", Description: err.Error()})
	}

	authorizeURL := url.URL{Path: "/" + tenant.String() + "/" + project.String() + "/auth/authorize"}
	q := url.Values{}
	q.Set("client_id", form.ClientID)
	q.Set("response_type", "code")
	q.Set("state", form.State)
	q.Set("code_challenge", form.CodeChallenge)
	q.Set("code_challenge_method", form.CodeChallengeMethod)
	q.Set("scope", form.Scope)
	q.Set("redirect_uri", form.RedirectURI)
	authorizeURL.RawQuery = q.Encode()
	return c.Redirect(http.StatusFound, authorizeURL.String())
}
