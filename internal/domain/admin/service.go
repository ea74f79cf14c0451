// Package admin is the multi-tenant bootstrap surface: creating
// tenants, projects, users (with the zxcvbn-gated password check),
// memberships, and client applications. Grounded on the teacher's
// internal/domain/admin Service shape (one method pair per aggregate,
// a thin validation layer in front of the *_pg.go repository), adapted
// from the teacher's organization/department/location/system-user
// aggregates to this platform's tenant/project/user/membership/client
// aggregates.
package admin

import (
	"context"

	"github.com/google/uuid"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/ferrors"
	"github.com/fhirway/fhirway/internal/platform/password"
	"github.com/fhirway/fhirway/internal/platform/repository"
)

// Service is the bootstrap/admin operations surface the `tenant create`
// CLI command and the OIDC subsystem's user/membership lookups share.
type Service struct {
	repo repository.AdminRepository
}

// NewService builds a Service over repo.
func NewService(repo repository.AdminRepository) *Service {
	return &Service{repo: repo}
}

// CreateTenant creates a new tenant plus its reserved "system" project
// for shared artifacts (spec §3: "a reserved project id `system` exists
// per tenant for artifacts").
func (s *Service) CreateTenant(ctx context.Context, id ids.TenantID, subscriptionTier string) (*repository.Tenant, error) {
	if id == "" {
		return nil, ferrors.Invalidf("", "tenant id is required")
	}
	if subscriptionTier == "" {
		subscriptionTier = "free"
	}

	t := repository.Tenant{ID: id, SubscriptionTier: subscriptionTier}
	if err := s.repo.CreateTenant(ctx, t); err != nil {
		return nil, err
	}

	if err := s.repo.CreateProject(ctx, repository.Project{
		ID:          ids.SystemProject,
		Tenant:      id,
		FHIRVersion: "4.0.1",
	}); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateProject creates a project under an existing tenant.
func (s *Service) CreateProject(ctx context.Context, tenant ids.TenantID, id ids.ProjectID, fhirVersion string) (*repository.Project, error) {
	if id == "" {
		return nil, ferrors.Invalidf("", "project id is required")
	}
	t, err := s.repo.GetTenant(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ferrors.NotFoundf("tenant %s does not exist", tenant)
	}
	if fhirVersion == "" {
		fhirVersion = "4.0.1"
	}

	p := repository.Project{ID: id, Tenant: tenant, FHIRVersion: fhirVersion}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateUser creates an email/password user, gating the raw password
// against password.Score per spec §3's "zxcvbn score >= 3" invariant.
// OIDC-method users (no local password) skip the strength check
// entirely — there's nothing locally-held to score.
func (s *Service) CreateUser(ctx context.Context, tenant ids.TenantID, email string, role repository.UserRole, rawPassword string) (*repository.User, error) {
	if email == "" {
		return nil, ferrors.Invalidf("", "email is required")
	}
	if role == "" {
		role = repository.RoleMember
	}

	if score := password.Score(rawPassword, email); score < password.MinScore {
		return nil, ferrors.Securityf("password is too weak (score %d, need >= %d)", score, password.MinScore)
	}
	hash, err := password.Hash(rawPassword)
	if err != nil {
		return nil, ferrors.Wrap(err, "hashing password for %s", email)
	}

	u := repository.User{
		ID:           ids.AuthorID(uuid.NewString()),
		Tenant:       tenant,
		Email:        email,
		Role:         role,
		Method:       repository.MethodEmailPassword,
		PasswordHash: hash,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateFederatedUser creates (or the caller first looks up, then
// creates on miss) an oidc-method user mapped to an upstream identity
// provider's subject, per spec §4.5's federated-IdP "create-if-missing
// by (tenant, provider_id)" rule. This constructor never touches
// password.Score/Hash — there's no local credential.
func (s *Service) CreateFederatedUser(ctx context.Context, tenant ids.TenantID, email, providerID string) (*repository.User, error) {
	if providerID == "" {
		return nil, ferrors.Invalidf("", "provider_id is required")
	}
	u := repository.User{
		ID:         ids.AuthorID(uuid.NewString()),
		Tenant:     tenant,
		Email:      email,
		Role:       repository.RoleMember,
		Method:     repository.MethodOIDC,
		ProviderID: providerID,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return &u, nil
}

// AddMembership ties userID to project with role and the AccessPolicy
// versions that govern their requests there (spec §3's Membership
// entity; policyVersionIDs feed the JWT's access_policy_version_ids
// claim at token-issuance time).
func (s *Service) AddMembership(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, userID ids.AuthorID, role repository.UserRole, policyVersionIDs []ids.VersionID) (*repository.Membership, error) {
	if existing, err := s.repo.GetMembership(ctx, tenant, project, userID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ferrors.Conflictf("user %s already has a membership on %s/%s", userID, tenant, project)
	}

	m := repository.Membership{
		ID:                     uuid.NewString(),
		Tenant:                 tenant,
		Project:                project,
		UserID:                 userID,
		Role:                   role,
		AccessPolicyVersionIDs: policyVersionIDs,
	}
	if err := s.repo.CreateMembership(ctx, m); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateClientApplication registers an OAuth2 client on project,
// validating the declared grant types against spec §3's allowed set.
func (s *Service) CreateClientApplication(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, name string, grantTypes []repository.GrantType, redirectURIs []string, scope string) (*repository.ClientApplication, error) {
	if name == "" {
		return nil, ferrors.Invalidf("", "client application name is required")
	}
	for _, g := range grantTypes {
		switch g {
		case repository.GrantAuthorizationCode, repository.GrantRefreshToken, repository.GrantClientCredentials:
		default:
			return nil, ferrors.Invalidf("", "unsupported grant type %q", g)
		}
	}

	c := repository.ClientApplication{
		ID:            uuid.NewString(),
		Tenant:        tenant,
		Project:       project,
		Name:          name,
		GrantTypes:    grantTypes,
		RedirectURIs:  redirectURIs,
		ResponseTypes: []string{"code"},
		Scope:         scope,
	}
	if err := s.repo.CreateClientApplication(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}
