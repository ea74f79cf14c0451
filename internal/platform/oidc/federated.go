package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/oauth2"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/repository"
)

// federatedUserInfo is the subset of an upstream IdP's userinfo
// response used to resolve a local User.
type federatedUserInfo struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (idp *FederatedIDP) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     idp.ClientID,
		ClientSecret: idp.ClientSecret,
		Scopes:       idp.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  idp.IssuerURL + "/oauth2/authorize",
			TokenURL: idp.IssuerURL + "/oauth2/token",
		},
	}
}

// FederatedInitiate implements `/federated/{idp_id}`: it looks up the
// project's configured upstream IdP, stashes state/nonce/verifier and
// the original return_to (an /authorize URL to resume once the
// federated login completes) in the session, and redirects to the
// IdP's authorization endpoint (spec §4.5).
func (s *Service) FederatedInitiate(c echo.Context) error {
	ctx := c.Request().Context()
	tenant := ids.TenantID(c.Param("tenant"))
	project := ids.ProjectID(c.Param("project"))
	idpID := c.Param("idp_id")
	returnTo := c.QueryParam("return_to")

	idp, err := s.FederatedIDPs(tenant.String(), project.String(), idpID)
	if err != nil || idp == nil {
		return c.JSON(http.StatusBadRequest, invalidRequest("unknown federated idp"))
	}

	state, err := randomToken()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, &OAuthError{Code: "server_error", Description: err.Error()})
	}
	nonce, err := randomToken()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, &OAuthError{Code: "server_error", Description: err.Error()})
	}
	verifier := oauth2.GenerateVerifier()

	sess, err := s.Sessions.Ensure(ctx, c.Response(), c.Request())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, &OAuthError{Code: "server_error", Description: err.Error()})
	}
	sess.Set(federatedStateKey(idpID), state)
	sess.Set(federatedNonceKey(idpID), nonce)
	sess.Set(federatedVerifierKey(idpID), verifier)
	sess.Set(federatedReturnToKey(idpID), returnTo)
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return c.JSON(http.StatusInternalServerError, &OAuthError{Code: "server_error", Description: err.Error()})
	}

	authURL := idp.oauth2Config().AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("nonce", nonce),
	)
	return c.Redirect(http.StatusFound, authURL)
}

// FederatedCallback implements `/federated/{idp_id}/callback`: it
// exchanges the IdP's code for tokens, resolves the federated user's
// profile, maps it to a local User (create-if-missing by provider id),
// logs them into the session, and resumes the original /authorize
// request stashed by FederatedInitiate.
func (s *Service) FederatedCallback(c echo.Context) error {
	ctx := c.Request().Context()
	tenant := ids.TenantID(c.Param("tenant"))
	project := ids.ProjectID(c.Param("project"))
	idpID := c.Param("idp_id")

	idp, err := s.FederatedIDPs(tenant.String(), project.String(), idpID)
	if err != nil || idp == nil {
		return c.JSON(http.StatusBadRequest, invalidRequest("unknown federated idp"))
	}

	sess, err := s.Sessions.Get(ctx, c.Request())
	if err != nil {
		return c.JSON(http.StatusBadRequest, invalidRequest("no pending federated login in session"))
	}
	wantState := sess.GetString(federatedStateKey(idpID))
	verifier := sess.GetString(federatedVerifierKey(idpID))
	returnTo := sess.GetString(federatedReturnToKey(idpID))
	if wantState == "" || c.QueryParam("state") != wantState {
		return c.JSON(http.StatusBadRequest, invalidRequest("state mismatch"))
	}

	conf := idp.oauth2Config()
	token, err := conf.Exchange(ctx, c.QueryParam("code"), oauth2.VerifierOption(verifier))
	if err != nil {
		return c.JSON(http.StatusBadRequest, invalidGrant("failed to exchange federated authorization code"))
	}

	profile, err := fetchUserInfo(ctx, conf, token, idp.IssuerURL)
	if err != nil || profile.Subject == "" {
		return c.JSON(http.StatusBadGateway, &OAuthError{Code: "server_error", Description: "failed to resolve federated user profile"})
	}

	user, err := s.Repo.GetUserByProviderID(ctx, tenant, profile.Subject)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, &OAuthError{Code: "server_error", Description: err.Error()})
	}
	if user == nil {
		user = &repository.User{
			ID:         ids.AuthorID(ids.NewResourceID().String()),
			Tenant:     tenant,
			Email:      profile.Email,
			Role:       repository.RoleMember,
			Method:     repository.MethodOIDC,
			ProviderID: profile.Subject,
		}
		if err := s.Repo.CreateUser(ctx, *user); err != nil {
			return c.JSON(http.StatusInternalServerError, &OAuthError{Code: "server_error", Description: err.Error()})
		}
	}

	sess.SetAuthUserID(tenant.String(), user.ID.String())
	sess.Set(federatedStateKey(idpID), nil)
	sess.Set(federatedVerifierKey(idpID), nil)
	sess.Set(federatedNonceKey(idpID), nil)
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return c.JSON(http.StatusInternalServerError, &OAuthError{Code: "server_error", Description: err.Error()})
	}

	if returnTo == "" {
		returnTo = "/" + tenant.String() + "/" + project.String() + "/auth/authorize"
	}
	return c.Redirect(http.StatusFound, returnTo)
}

func fetchUserInfo(ctx context.Context, conf *oauth2.Config, token *oauth2.Token, issuerURL string) (federatedUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuerURL+"/oauth2/userinfo", nil)
	if err != nil {
		return federatedUserInfo{}, err
	}
	resp, err := conf.Client(ctx, token).Do(req)
	if err != nil {
		return federatedUserInfo{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var info federatedUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return federatedUserInfo{}, err
	}
	return info, nil
}

func federatedStateKey(idpID string) string    { return "federated_" + idpID + "_state" }
func federatedNonceKey(idpID string) string     { return "federated_" + idpID + "_nonce" }
func federatedVerifierKey(idpID string) string  { return "federated_" + idpID + "_verifier" }
func federatedReturnToKey(idpID string) string  { return "federated_" + idpID + "_return_to" }
