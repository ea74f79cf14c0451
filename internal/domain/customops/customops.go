// Package customops holds the platform's concrete custom-operation
// ($op) executors, registered into fhirclient.Client at startup (spec
// §4.1 step 7's custom-operation dispatch layer). Grounded on the
// original implementation's fhir_client/middleware/custom_operations
// handlers: valueset-expand, project-information, active-refresh-tokens,
// approved-scopes, and delete-refresh-token.
package customops

import (
	"context"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/ferrors"
	"github.com/fhirway/fhirway/internal/platform/fhirclient"
	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
	"github.com/fhirway/fhirway/internal/platform/repository"
	"github.com/fhirway/fhirway/internal/platform/terminology"
)

// New builds the full registry of custom operations this platform
// ships, keyed by operation code, ready to pass to fhirclient.New.
func New(repo repository.Repository, term terminology.Terminology) map[string]fhirclient.Operation {
	return map[string]fhirclient.Operation{
		"valueset-expand":       valuesetExpand(term),
		"project-information":   projectInformation(repo),
		"active-refresh-tokens": activeRefreshTokens(repo),
		"approved-scopes":       approvedScopes(repo),
		"delete-refresh-token":  deleteRefreshToken(repo),
	}
}

// valuesetExpand delegates straight to terminology.Expand, which itself
// always returns NotSupported (spec.md Non-goals exclude full value set
// expansion) — the operation is registered so $valueset-expand resolves
// to that explicit error rather than "operation not registered".
func valuesetExpand(term terminology.Terminology) fhirclient.Operation {
	return func(ctx context.Context, rc fhirclient.RequestContext, resourceType string, id ids.ResourceID, params fhirmodel.Resource) (fhirmodel.Resource, error) {
		url, _ := params["url"].(string)
		if url == "" {
			return nil, ferrors.Invalidf("invalid", "url parameter is required")
		}
		codes, err := term.Expand(ctx, url)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(codes))
		for i, c := range codes {
			values[i] = map[string]any{"system": c.System, "code": c.Code, "display": c.Display}
		}
		return fhirmodel.Resource{
			"resourceType": "Parameters",
			"parameter": []any{
				map[string]any{"name": "expansion", "part": values},
			},
		}, nil
	}
}

// projectInformation returns the caller's own project record (spec §3's
// Project aggregate) as a Parameters resource, used by clients that
// need their project's fhir_version/identity_providers without admin
// access to the full tenant/project management surface.
func projectInformation(repo repository.Repository) fhirclient.Operation {
	return func(ctx context.Context, rc fhirclient.RequestContext, resourceType string, id ids.ResourceID, params fhirmodel.Resource) (fhirmodel.Resource, error) {
		project, err := repo.GetProject(ctx, rc.Tenant, rc.Project)
		if err != nil {
			return nil, err
		}
		if project == nil {
			return nil, ferrors.NotFoundf("project %s not found", rc.Project)
		}
		idps := make([]any, len(project.IdentityProviders))
		for i, p := range project.IdentityProviders {
			idps[i] = p
		}
		return fhirmodel.Resource{
			"resourceType": "Parameters",
			"parameter": []any{
				map[string]any{"name": "id", "valueString": string(project.ID)},
				map[string]any{"name": "fhirVersion", "valueString": project.FHIRVersion},
				map[string]any{"name": "identityProviders", "part": idps},
			},
		}, nil
	}
}

// activeRefreshTokens lists the calling user's live refresh tokens for
// the current project, so a client can render "active sessions" to the
// user (the original's haste-health-list-refresh-tokens operation).
func activeRefreshTokens(repo repository.Repository) fhirclient.Operation {
	return func(ctx context.Context, rc fhirclient.RequestContext, resourceType string, id ids.ResourceID, params fhirmodel.Resource) (fhirmodel.Resource, error) {
		tokens, err := repo.ListAuthorizationCodes(ctx, rc.Tenant, rc.Project, rc.Author.ID, repository.KindRefreshToken)
		if err != nil {
			return nil, err
		}
		entries := make([]any, len(tokens))
		for i, t := range tokens {
			userAgent, _ := t.Meta["user_agent"].(string)
			entries[i] = map[string]any{
				"clientId":  t.ClientID,
				"userAgent": userAgent,
				"createdAt": t.CreatedAt.Format(timeLayout),
			}
		}
		return fhirmodel.Resource{
			"resourceType": "Parameters",
			"parameter": []any{
				map[string]any{"name": "refreshTokens", "part": entries},
			},
		}, nil
	}
}

// approvedScopes lists every client application the calling user has
// granted consent to, across all clients (the original's
// haste-health-list-scopes operation).
func approvedScopes(repo repository.Repository) fhirclient.Operation {
	return func(ctx context.Context, rc fhirclient.RequestContext, resourceType string, id ids.ResourceID, params fhirmodel.Resource) (fhirmodel.Resource, error) {
		scopes, err := repo.ListApprovedScopesForUser(ctx, rc.Tenant, rc.Project, rc.Author.ID)
		if err != nil {
			return nil, err
		}
		entries := make([]any, len(scopes))
		for i, s := range scopes {
			entries[i] = map[string]any{
				"clientId":  s.ClientID,
				"scope":     s.Scope,
				"createdAt": s.CreatedAt.Format(timeLayout),
			}
		}
		return fhirmodel.Resource{
			"resourceType": "Parameters",
			"parameter": []any{
				map[string]any{"name": "scopes", "part": entries},
			},
		}, nil
	}
}

// deleteRefreshToken revokes one of the calling user's refresh tokens,
// identified by the issuing client and the user agent it was issued to
// (the original's haste-health-delete-refresh-token operation), since a
// user may hold several concurrent sessions with the same client from
// different devices and needs to revoke just one.
func deleteRefreshToken(repo repository.Repository) fhirclient.Operation {
	return func(ctx context.Context, rc fhirclient.RequestContext, resourceType string, id ids.ResourceID, params fhirmodel.Resource) (fhirmodel.Resource, error) {
		clientID, _ := params["clientId"].(string)
		if clientID == "" {
			return nil, ferrors.Invalidf("invalid", "clientId parameter is required")
		}
		userAgent, _ := params["userAgent"].(string)
		if userAgent == "" {
			return nil, ferrors.Invalidf("invalid", "userAgent parameter is required")
		}

		tokens, err := repo.ListAuthorizationCodes(ctx, rc.Tenant, rc.Project, rc.Author.ID, repository.KindRefreshToken)
		if err != nil {
			return nil, err
		}
		var target *repository.AuthorizationCode
		for i := range tokens {
			t := &tokens[i]
			agent, _ := t.Meta["user_agent"].(string)
			if t.ClientID == clientID && agent == userAgent {
				target = t
				break
			}
		}
		if target == nil {
			return nil, ferrors.NotFoundf("refresh token not found")
		}
		if err := repo.DeleteAuthorizationCode(ctx, rc.Tenant, target.Code); err != nil {
			return nil, err
		}

		return fhirmodel.Resource{
			"resourceType": "OperationOutcome",
			"issue": []any{
				map[string]any{
					"severity":    "information",
					"code":        "informational",
					"diagnostics": "deleted refresh token for client '" + clientID + "'",
				},
			},
		}, nil
	}
}

const timeLayout = "2006-01-02T15:04:05Z07:00"
