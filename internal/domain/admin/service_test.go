package admin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirway/fhirway/internal/domain/admin"
	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/ferrors"
	"github.com/fhirway/fhirway/internal/platform/repository"
)

// fakeAdminRepo is an in-memory AdminRepository double, following the
// fakeRepo convention already used in internal/platform/fhirclient's
// and internal/platform/indexer's tests.
type fakeAdminRepo struct {
	repository.AdminRepository
	tenants     map[ids.TenantID]repository.Tenant
	projects    map[string]repository.Project
	memberships map[string]repository.Membership
}

func newFakeAdminRepo() *fakeAdminRepo {
	return &fakeAdminRepo{
		tenants:     map[ids.TenantID]repository.Tenant{},
		projects:    map[string]repository.Project{},
		memberships: map[string]repository.Membership{},
	}
}

func (f *fakeAdminRepo) CreateTenant(ctx context.Context, t repository.Tenant) error {
	f.tenants[t.ID] = t
	return nil
}

func (f *fakeAdminRepo) GetTenant(ctx context.Context, id ids.TenantID) (*repository.Tenant, error) {
	if t, ok := f.tenants[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (f *fakeAdminRepo) CreateProject(ctx context.Context, p repository.Project) error {
	f.projects[string(p.Tenant)+"/"+string(p.ID)] = p
	return nil
}

func (f *fakeAdminRepo) CreateUser(ctx context.Context, u repository.User) error { return nil }

func (f *fakeAdminRepo) GetMembership(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, userID ids.AuthorID) (*repository.Membership, error) {
	key := string(tenant) + "/" + string(project) + "/" + string(userID)
	if m, ok := f.memberships[key]; ok {
		return &m, nil
	}
	return nil, nil
}

func (f *fakeAdminRepo) CreateMembership(ctx context.Context, m repository.Membership) error {
	key := string(m.Tenant) + "/" + string(m.Project) + "/" + string(m.UserID)
	f.memberships[key] = m
	return nil
}

func (f *fakeAdminRepo) CreateClientApplication(ctx context.Context, c repository.ClientApplication) error {
	return nil
}

func TestCreateTenant_AlsoCreatesSystemProject(t *testing.T) {
	repo := newFakeAdminRepo()
	svc := admin.NewService(repo)

	tenant, err := svc.CreateTenant(context.Background(), "demo", "")
	require.NoError(t, err)
	assert.Equal(t, "free", tenant.SubscriptionTier)

	_, ok := repo.projects["demo/system"]
	assert.True(t, ok, "expected reserved system project to be created alongside the tenant")
}

func TestCreateProject_RequiresExistingTenant(t *testing.T) {
	repo := newFakeAdminRepo()
	svc := admin.NewService(repo)

	_, err := svc.CreateProject(context.Background(), "missing", "default", "")
	require.Error(t, err)
	fe, ok := ferrors.As(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.NotFound, fe.Kind)
}

func TestCreateUser_RejectsWeakPassword(t *testing.T) {
	repo := newFakeAdminRepo()
	svc := admin.NewService(repo)

	_, err := svc.CreateUser(context.Background(), "demo", "alice@example.com", repository.RoleMember, "pw")
	require.Error(t, err)
	fe, ok := ferrors.As(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.Security, fe.Kind)
}

func TestCreateUser_AcceptsStrongPassword(t *testing.T) {
	repo := newFakeAdminRepo()
	svc := admin.NewService(repo)

	u, err := svc.CreateUser(context.Background(), "demo", "alice@example.com", repository.RoleOwner, "Correct-Horse-Battery-42")
	require.NoError(t, err)
	assert.Equal(t, repository.MethodEmailPassword, u.Method)
	assert.NotEmpty(t, u.PasswordHash)
}

func TestAddMembership_RejectsDuplicate(t *testing.T) {
	repo := newFakeAdminRepo()
	svc := admin.NewService(repo)

	_, err := svc.AddMembership(context.Background(), "demo", "default", "user-1", repository.RoleMember, nil)
	require.NoError(t, err)

	_, err = svc.AddMembership(context.Background(), "demo", "default", "user-1", repository.RoleMember, nil)
	require.Error(t, err)
	fe, ok := ferrors.As(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.Conflict, fe.Kind)
}

func TestCreateClientApplication_RejectsUnsupportedGrant(t *testing.T) {
	repo := newFakeAdminRepo()
	svc := admin.NewService(repo)

	_, err := svc.CreateClientApplication(context.Background(), "demo", "default", "my-app", []repository.GrantType{"implicit"}, nil, "openid")
	require.Error(t, err)
	fe, ok := ferrors.As(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.Invalid, fe.Kind)
}
