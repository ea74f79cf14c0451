package repository

import (
	"context"

	"github.com/fhirway/fhirway/internal/domain/ids"
)

// AdminRepository groups the non-FHIR administrative tables: tenants,
// projects, users, memberships, client applications, authorization
// codes, and approved scopes (spec §6 relational schema). This mirrors
// the teacher's per-aggregate repository-interface shape
// (internal/domain/admin/repo.go) generalized to the spec's aggregates.
type AdminRepository interface {
	CreateTenant(ctx context.Context, t Tenant) error
	GetTenant(ctx context.Context, id ids.TenantID) (*Tenant, error)
	AdvanceIndexSequence(ctx context.Context, id ids.TenantID, position int64) error

	// ClaimTenantLocks selects candidate's rows with `FOR UPDATE SKIP
	// LOCKED` (spec §4.4 step 2): tenants already claimed by a
	// concurrent worker are silently absent from the result rather than
	// blocking this call. Must be called on a transaction-bound handle;
	// implementations return ferrors.InvalidConnectionf otherwise. Locks
	// are released on the caller's Commit/Rollback.
	ClaimTenantLocks(ctx context.Context, candidates []ids.TenantID) ([]Tenant, error)

	CreateProject(ctx context.Context, p Project) error
	GetProject(ctx context.Context, tenant ids.TenantID, id ids.ProjectID) (*Project, error)

	CreateUser(ctx context.Context, u User) error
	GetUserByID(ctx context.Context, tenant ids.TenantID, id ids.AuthorID) (*User, error)
	GetUserByEmail(ctx context.Context, tenant ids.TenantID, email string) (*User, error)
	GetUserByProviderID(ctx context.Context, tenant ids.TenantID, providerID string) (*User, error)

	CreateMembership(ctx context.Context, m Membership) error
	GetMembership(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, userID ids.AuthorID) (*Membership, error)

	CreateClientApplication(ctx context.Context, c ClientApplication) error
	GetClientApplication(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, id string) (*ClientApplication, error)

	CreateAuthorizationCode(ctx context.Context, a AuthorizationCode) error
	GetAuthorizationCode(ctx context.Context, tenant ids.TenantID, code string, kind AuthCodeKind) (*AuthorizationCode, error)
	ConsumeAuthorizationCode(ctx context.Context, tenant ids.TenantID, code string) error
	DeleteAuthorizationCode(ctx context.Context, tenant ids.TenantID, code string) error

	// ListAuthorizationCodes returns a user's non-expired, unused codes
	// of kind within project, backing the active-refresh-tokens and
	// delete-refresh-token custom operations.
	ListAuthorizationCodes(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, userID ids.AuthorID, kind AuthCodeKind) ([]AuthorizationCode, error)

	PutApprovedScope(ctx context.Context, s ApprovedScope) error
	ListApprovedScopes(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, clientID string, userID ids.AuthorID) ([]ApprovedScope, error)

	// ListApprovedScopesForUser returns every client's approved scope
	// for userID, not just one client, backing the approved-scopes
	// custom operation.
	ListApprovedScopesForUser(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, userID ids.AuthorID) ([]ApprovedScope, error)
}

// Repository is the full store surface the rest of the platform depends
// on: FHIR resource history plus the administrative tables.
type Repository interface {
	FHIRRepository
	AdminRepository
}
