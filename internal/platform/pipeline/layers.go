package pipeline

import (
	"context"
	"strings"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/accesscontrol"
	"github.com/fhirway/fhirway/internal/platform/ferrors"
	"github.com/fhirway/fhirway/internal/platform/fhirclient"
)

// TokenVerifier validates a bearer access token and returns its claims.
// Implemented by internal/platform/oidc; declared here (rather than
// imported from there) so pipeline has no dependency on the OIDC
// subsystem — only on the shape of what it produces.
type TokenVerifier interface {
	Verify(tokenString string) (*Claims, error)
}

// SessionJWTExtraction resolves the bearer credential from the request's
// Authorization header (spec §4.1 step 1), populating rc.Author,
// rc.AuthorKind, rc.Tenant, rc.Project, and rc.AccessPolicyVersionIDs
// from its claims. TenantProjectResolution is folded into this layer:
// the JWT is the sole source of the authenticated tenant/project.
func SessionJWTExtraction(verifier TokenVerifier) Middleware {
	return func(next Next) Next {
		return func(ctx context.Context, state *State, rc Context, req fhirclient.Request) (fhirclient.Response, error) {
			header := authHeaderFromContext(ctx)
			if !strings.HasPrefix(header, "Bearer ") {
				return fhirclient.Response{}, ferrors.Securityf("missing or malformed bearer token")
			}
			token := strings.TrimPrefix(header, "Bearer ")

			claims, err := verifier.Verify(token)
			if err != nil {
				return fhirclient.Response{}, ferrors.Securityf("invalid bearer token: %v", err)
			}

			rc.Tenant = ids.TenantID(claims.Tenant)
			rc.Project = ids.ProjectID(claims.Project)
			rc.Author = ids.AuthorID(claims.UserID)
			rc.AuthorKind = "user"
			if claims.UserID == "" {
				rc.AuthorKind = "client"
				rc.Author = ids.AuthorID(claims.Subject)
			}
			rc.AccessPolicyVersionIDs = claims.accessPolicyVersionIDs()

			return next(ctx, state, rc, req)
		}
	}
}

// ProjectAccessCheck rejects with Forbidden unless the JWT's
// tenant/project (already resolved into rc by SessionJWTExtraction)
// match the path's (spec §4.1 step 3).
func ProjectAccessCheck(next Next) Next {
	return func(ctx context.Context, state *State, rc Context, req fhirclient.Request) (fhirclient.Response, error) {
		pathTenant, pathProject := pathTenantProjectFromContext(ctx)
		if rc.Tenant != pathTenant || rc.Project != pathProject {
			return fhirclient.Response{}, ferrors.Forbiddenf("token is not authorized for %s/%s", pathTenant, pathProject)
		}
		return next(ctx, state, rc, req)
	}
}

// ResourceTypeWhitelist rejects requests whose resource type is not in
// allowed. It is an optional layer (spec §4.1 step 4, "optional per
// route"); none of the router's pre-built chains includes it.
func ResourceTypeWhitelist(allowed ...string) Middleware {
	set := make(map[string]bool, len(allowed))
	for _, t := range allowed {
		set[t] = true
	}
	return func(next Next) Next {
		return func(ctx context.Context, state *State, rc Context, req fhirclient.Request) (fhirclient.Response, error) {
			if req.ResourceType != "" && !set[req.ResourceType] {
				return fhirclient.Response{}, ferrors.Invalidf("invalid", "resource type %q is not permitted on this route", req.ResourceType)
			}
			return next(ctx, state, rc, req)
		}
	}
}

// AccessControlEvaluation loads every AccessPolicy version referenced
// by the JWT and evaluates the request against each (spec §4.1 step 5,
// §4.6); any denial short-circuits the chain.
func AccessControlEvaluation(evaluator *accesscontrol.Evaluator) Middleware {
	return func(next Next) Next {
		return func(ctx context.Context, state *State, rc Context, req fhirclient.Request) (fhirclient.Response, error) {
			acReq := accesscontrol.Request{
				Kind:         req.Kind,
				ResourceType: req.ResourceType,
				Resource:     req.Resource,
			}
			if err := evaluator.Evaluate(ctx, rc.Tenant, rc.AccessPolicyVersionIDs, acReq); err != nil {
				return fhirclient.Response{}, err
			}
			return next(ctx, state, rc, req)
		}
	}
}

// ArtifactTenantSubstitution rewrites rc to the reserved system
// tenant/project before continuing. Applied only to artifact routes
// (profiles, search parameters) which are stored cross-tenant (spec
// §4.1's "artifact routes only" qualifier). Context is never mutated in
// place: a new value is built and passed on.
func ArtifactTenantSubstitution(next Next) Next {
	return func(ctx context.Context, state *State, rc Context, req fhirclient.Request) (fhirclient.Response, error) {
		substituted := rc
		substituted.Tenant = ids.SystemTenant
		substituted.Project = ids.SystemProject
		return next(ctx, state, substituted, req)
	}
}

// CustomOperationDispatch validates that invoke requests name an
// operation before handing off to RepositoryDispatch; applied only to
// $operation routes (spec §4.1's "invoke routes only" qualifier).
func CustomOperationDispatch(next Next) Next {
	return func(ctx context.Context, state *State, rc Context, req fhirclient.Request) (fhirclient.Response, error) {
		if req.Kind == "invoke" && req.Operation == "" {
			return fhirclient.Response{}, ferrors.Invalidf("invalid", "operation name is required")
		}
		return next(ctx, state, rc, req)
	}
}
