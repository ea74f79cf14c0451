package pipeline

import (
	"context"

	"github.com/fhirway/fhirway/internal/domain/ids"
)

type contextKey int

const (
	authHeaderKey contextKey = iota
	pathTenantKey
	pathProjectKey
)

// WithAuthHeader stashes the raw Authorization header value for
// SessionJWTExtraction to read; the router sets this before calling
// Chain.Execute.
func WithAuthHeader(ctx context.Context, header string) context.Context {
	return context.WithValue(ctx, authHeaderKey, header)
}

func authHeaderFromContext(ctx context.Context) string {
	s, _ := ctx.Value(authHeaderKey).(string)
	return s
}

// WithPathTenantProject stashes the {tenant}/{project} path parameters
// so ProjectAccessCheck can compare them against the JWT's claims.
func WithPathTenantProject(ctx context.Context, tenant ids.TenantID, project ids.ProjectID) context.Context {
	ctx = context.WithValue(ctx, pathTenantKey, tenant)
	return context.WithValue(ctx, pathProjectKey, project)
}

func pathTenantProjectFromContext(ctx context.Context) (ids.TenantID, ids.ProjectID) {
	t, _ := ctx.Value(pathTenantKey).(ids.TenantID)
	p, _ := ctx.Value(pathProjectKey).(ids.ProjectID)
	return t, p
}
