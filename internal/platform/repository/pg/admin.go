package pg

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/ferrors"
	"github.com/fhirway/fhirway/internal/platform/repository"
)

func (r *Repository) CreateTenant(ctx context.Context, t repository.Tenant) error {
	_, err := r.conn().Exec(ctx, `
		INSERT INTO tenants (id, subscription_tier, index_sequence_position)
		VALUES ($1, $2, $3)`,
		t.ID, t.SubscriptionTier, t.IndexSequencePosition,
	)
	if err != nil {
		return ferrors.Wrap(err, "creating tenant %s", t.ID)
	}
	return nil
}

func (r *Repository) GetTenant(ctx context.Context, id ids.TenantID) (*repository.Tenant, error) {
	var t repository.Tenant
	err := r.conn().QueryRow(ctx, `
		SELECT id, subscription_tier, index_sequence_position FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.SubscriptionTier, &t.IndexSequencePosition)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ferrors.Wrap(err, "reading tenant %s", id)
	}
	return &t, nil
}

func (r *Repository) AdvanceIndexSequence(ctx context.Context, id ids.TenantID, position int64) error {
	_, err := r.conn().Exec(ctx, `
		UPDATE tenants SET index_sequence_position = $2 WHERE id = $1 AND index_sequence_position < $2`,
		id, position,
	)
	if err != nil {
		return ferrors.Wrap(err, "advancing index sequence for tenant %s", id)
	}
	return nil
}

// ClaimTenantLocks implements the spec §4.4 step 2 lock acquisition.
// Called outside a transaction, it is a programmer error: the locks
// would be released the instant the implicit single-statement
// transaction ends, defeating the whole point of the claim.
func (r *Repository) ClaimTenantLocks(ctx context.Context, candidates []ids.TenantID) ([]repository.Tenant, error) {
	if r.tx == nil {
		return nil, ferrors.InvalidConnectionf("ClaimTenantLocks called outside a transaction")
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	rows, err := r.conn().Query(ctx, `
		SELECT id, subscription_tier, index_sequence_position FROM tenants
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE SKIP LOCKED`,
		candidates,
	)
	if err != nil {
		return nil, ferrors.Wrap(err, "claiming tenant locks")
	}
	defer rows.Close()

	var out []repository.Tenant
	for rows.Next() {
		var t repository.Tenant
		if err := rows.Scan(&t.ID, &t.SubscriptionTier, &t.IndexSequencePosition); err != nil {
			return nil, ferrors.Wrap(err, "scanning claimed tenant row")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) CreateProject(ctx context.Context, p repository.Project) error {
	_, err := r.conn().Exec(ctx, `
		INSERT INTO projects (tenant, id, fhir_version, identity_providers)
		VALUES ($1, $2, $3, $4)`,
		p.Tenant, p.ID, p.FHIRVersion, p.IdentityProviders,
	)
	if err != nil {
		return ferrors.Wrap(err, "creating project %s/%s", p.Tenant, p.ID)
	}
	return nil
}

func (r *Repository) GetProject(ctx context.Context, tenant ids.TenantID, id ids.ProjectID) (*repository.Project, error) {
	var p repository.Project
	err := r.conn().QueryRow(ctx, `
		SELECT tenant, id, fhir_version, identity_providers FROM projects WHERE tenant = $1 AND id = $2`,
		tenant, id,
	).Scan(&p.Tenant, &p.ID, &p.FHIRVersion, &p.IdentityProviders)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ferrors.Wrap(err, "reading project %s/%s", tenant, id)
	}
	return &p, nil
}

func (r *Repository) CreateUser(ctx context.Context, u repository.User) error {
	_, err := r.conn().Exec(ctx, `
		INSERT INTO users (tenant, id, email, role, method, provider_id, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.Tenant, u.ID, u.Email, string(u.Role), string(u.Method), nullString(u.ProviderID), nullString(u.PasswordHash),
	)
	if err != nil {
		return ferrors.Wrap(err, "creating user %s/%s", u.Tenant, u.Email)
	}
	return nil
}

func (r *Repository) GetUserByID(ctx context.Context, tenant ids.TenantID, id ids.AuthorID) (*repository.User, error) {
	return r.scanUser(r.conn().QueryRow(ctx, userColumns+` WHERE tenant = $1 AND id = $2`, tenant, id))
}

func (r *Repository) GetUserByEmail(ctx context.Context, tenant ids.TenantID, email string) (*repository.User, error) {
	return r.scanUser(r.conn().QueryRow(ctx, userColumns+` WHERE tenant = $1 AND email = $2`, tenant, email))
}

func (r *Repository) GetUserByProviderID(ctx context.Context, tenant ids.TenantID, providerID string) (*repository.User, error) {
	return r.scanUser(r.conn().QueryRow(ctx, userColumns+` WHERE tenant = $1 AND provider_id = $2`, tenant, providerID))
}

const userColumns = `SELECT tenant, id, email, role, method, COALESCE(provider_id, ''), COALESCE(password_hash, '') FROM users`

func (r *Repository) scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	var role, method string
	if err := row.Scan(&u.Tenant, &u.ID, &u.Email, &role, &method, &u.ProviderID, &u.PasswordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, ferrors.Wrap(err, "reading user")
	}
	u.Role = repository.UserRole(role)
	u.Method = repository.UserMethod(method)
	return &u, nil
}

func (r *Repository) CreateMembership(ctx context.Context, m repository.Membership) error {
	versionIDs := make([]string, len(m.AccessPolicyVersionIDs))
	for i, v := range m.AccessPolicyVersionIDs {
		versionIDs[i] = string(v)
	}
	_, err := r.conn().Exec(ctx, `
		INSERT INTO memberships (id, tenant, project, user_id, role, access_policy_version_ids)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.Tenant, m.Project, m.UserID, string(m.Role), versionIDs,
	)
	if err != nil {
		return ferrors.Wrap(err, "creating membership for user %s on %s/%s", m.UserID, m.Tenant, m.Project)
	}
	return nil
}

func (r *Repository) GetMembership(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, userID ids.AuthorID) (*repository.Membership, error) {
	var m repository.Membership
	var role string
	var versionIDs []string
	err := r.conn().QueryRow(ctx, `
		SELECT id, tenant, project, user_id, role, access_policy_version_ids FROM memberships
		WHERE tenant = $1 AND project = $2 AND user_id = $3`,
		tenant, project, userID,
	).Scan(&m.ID, &m.Tenant, &m.Project, &m.UserID, &role, &versionIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ferrors.Wrap(err, "reading membership for user %s on %s/%s", userID, tenant, project)
	}
	m.Role = repository.UserRole(role)
	m.AccessPolicyVersionIDs = make([]ids.VersionID, len(versionIDs))
	for i, v := range versionIDs {
		m.AccessPolicyVersionIDs[i] = ids.VersionID(v)
	}
	return &m, nil
}

func (r *Repository) CreateClientApplication(ctx context.Context, c repository.ClientApplication) error {
	grantTypes := make([]string, len(c.GrantTypes))
	for i, g := range c.GrantTypes {
		grantTypes[i] = string(g)
	}
	_, err := r.conn().Exec(ctx, `
		INSERT INTO client_applications
			(id, tenant, project, name, secret, response_types, grant_types, redirect_uris, scope)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Tenant, c.Project, c.Name, nullString(c.Secret), c.ResponseTypes, grantTypes, c.RedirectURIs, c.Scope,
	)
	if err != nil {
		return ferrors.Wrap(err, "creating client application %s/%s/%s", c.Tenant, c.Project, c.ID)
	}
	return nil
}

func (r *Repository) GetClientApplication(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, id string) (*repository.ClientApplication, error) {
	var c repository.ClientApplication
	var grantTypes []string
	err := r.conn().QueryRow(ctx, `
		SELECT id, tenant, project, name, COALESCE(secret, ''), response_types, grant_types, redirect_uris, scope
		FROM client_applications WHERE tenant = $1 AND project = $2 AND id = $3`,
		tenant, project, id,
	).Scan(&c.ID, &c.Tenant, &c.Project, &c.Name, &c.Secret, &c.ResponseTypes, &grantTypes, &c.RedirectURIs, &c.Scope)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ferrors.Wrap(err, "reading client application %s/%s/%s", tenant, project, id)
	}
	c.GrantTypes = make([]repository.GrantType, len(grantTypes))
	for i, g := range grantTypes {
		c.GrantTypes[i] = repository.GrantType(g)
	}
	return &c, nil
}

func (r *Repository) CreateAuthorizationCode(ctx context.Context, a repository.AuthorizationCode) error {
	meta, err := json.Marshal(a.Meta)
	if err != nil {
		return ferrors.Wrap(err, "marshaling authorization code metadata")
	}
	_, err = r.conn().Exec(ctx, `
		INSERT INTO authorization_codes
			(tenant, project, code, kind, client_id, user_id, expires_at,
			 pkce_code_challenge, pkce_code_challenge_method, redirect_uri, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.Tenant, nullProject(a.Project), a.Code, string(a.Kind), nullString(a.ClientID), a.UserID, a.ExpiresAt,
		nullString(a.PKCEChallenge), nullString(string(a.PKCEChallengeMethod)), nullString(a.RedirectURI), meta,
	)
	if err != nil {
		return ferrors.Wrap(err, "creating authorization code")
	}
	return nil
}

func (r *Repository) GetAuthorizationCode(ctx context.Context, tenant ids.TenantID, code string, kind repository.AuthCodeKind) (*repository.AuthorizationCode, error) {
	var a repository.AuthorizationCode
	var project, clientID, pkceChallenge, pkceMethod, redirectURI, kindStr string
	var meta []byte
	err := r.conn().QueryRow(ctx, `
		SELECT tenant, COALESCE(project, ''), code, kind, COALESCE(client_id, ''), user_id, expires_at, used,
		       COALESCE(pkce_code_challenge, ''), COALESCE(pkce_code_challenge_method, ''),
		       COALESCE(redirect_uri, ''), meta, created_at
		FROM authorization_codes WHERE tenant = $1 AND code = $2 AND kind = $3`,
		tenant, code, string(kind),
	).Scan(&a.Tenant, &project, &a.Code, &kindStr, &clientID, &a.UserID, &a.ExpiresAt, &a.Used,
		&pkceChallenge, &pkceMethod, &redirectURI, &meta, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ferrors.Wrap(err, "reading authorization code")
	}
	a.Kind = repository.AuthCodeKind(kindStr)
	a.Project = ids.ProjectID(project)
	a.ClientID = clientID
	a.PKCEChallenge = pkceChallenge
	a.PKCEChallengeMethod = repository.PKCEMethod(pkceMethod)
	a.RedirectURI = redirectURI
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &a.Meta); err != nil {
			return nil, ferrors.Wrap(err, "unmarshaling authorization code metadata")
		}
	}
	return &a, nil
}

func (r *Repository) ConsumeAuthorizationCode(ctx context.Context, tenant ids.TenantID, code string) error {
	tag, err := r.conn().Exec(ctx, `
		UPDATE authorization_codes SET used = true
		WHERE tenant = $1 AND code = $2 AND used = false`, tenant, code)
	if err != nil {
		return ferrors.Wrap(err, "consuming authorization code")
	}
	if tag.RowsAffected() == 0 {
		return ferrors.Conflictf("authorization code already used or unknown")
	}
	return nil
}

func (r *Repository) DeleteAuthorizationCode(ctx context.Context, tenant ids.TenantID, code string) error {
	tag, err := r.conn().Exec(ctx, `
		DELETE FROM authorization_codes WHERE tenant = $1 AND code = $2`, tenant, code)
	if err != nil {
		return ferrors.Wrap(err, "deleting authorization code")
	}
	if tag.RowsAffected() == 0 {
		return ferrors.NotFoundf("authorization code not found")
	}
	return nil
}

func (r *Repository) ListAuthorizationCodes(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, userID ids.AuthorID, kind repository.AuthCodeKind) ([]repository.AuthorizationCode, error) {
	rows, err := r.conn().Query(ctx, `
		SELECT tenant, COALESCE(project, ''), code, kind, COALESCE(client_id, ''), user_id, expires_at, used,
		       COALESCE(pkce_code_challenge, ''), COALESCE(pkce_code_challenge_method, ''),
		       COALESCE(redirect_uri, ''), meta, created_at
		FROM authorization_codes
		WHERE tenant = $1 AND project = $2 AND user_id = $3 AND kind = $4
		      AND used = false AND expires_at > now()
		ORDER BY created_at DESC`,
		tenant, project, userID, string(kind),
	)
	if err != nil {
		return nil, ferrors.Wrap(err, "listing authorization codes")
	}
	defer rows.Close()

	var out []repository.AuthorizationCode
	for rows.Next() {
		var a repository.AuthorizationCode
		var proj, clientID, pkceChallenge, pkceMethod, redirectURI, kindStr string
		var meta []byte
		if err := rows.Scan(&a.Tenant, &proj, &a.Code, &kindStr, &clientID, &a.UserID, &a.ExpiresAt, &a.Used,
			&pkceChallenge, &pkceMethod, &redirectURI, &meta, &a.CreatedAt); err != nil {
			return nil, ferrors.Wrap(err, "scanning authorization code row")
		}
		a.Kind = repository.AuthCodeKind(kindStr)
		a.Project = ids.ProjectID(proj)
		a.ClientID = clientID
		a.PKCEChallenge = pkceChallenge
		a.PKCEChallengeMethod = repository.PKCEMethod(pkceMethod)
		a.RedirectURI = redirectURI
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &a.Meta); err != nil {
				return nil, ferrors.Wrap(err, "unmarshaling authorization code metadata")
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) PutApprovedScope(ctx context.Context, s repository.ApprovedScope) error {
	_, err := r.conn().Exec(ctx, `
		INSERT INTO scopes (tenant, project, client, "user", scope)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant, project, client, "user", scope) DO NOTHING`,
		s.Tenant, s.Project, s.ClientID, s.UserID, s.Scope,
	)
	if err != nil {
		return ferrors.Wrap(err, "recording approved scope")
	}
	return nil
}

func (r *Repository) ListApprovedScopes(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, clientID string, userID ids.AuthorID) ([]repository.ApprovedScope, error) {
	rows, err := r.conn().Query(ctx, `
		SELECT tenant, project, client, "user", scope, created_at FROM scopes
		WHERE tenant = $1 AND project = $2 AND client = $3 AND "user" = $4`,
		tenant, project, clientID, userID,
	)
	if err != nil {
		return nil, ferrors.Wrap(err, "listing approved scopes")
	}
	defer rows.Close()

	var out []repository.ApprovedScope
	for rows.Next() {
		var s repository.ApprovedScope
		if err := rows.Scan(&s.Tenant, &s.Project, &s.ClientID, &s.UserID, &s.Scope, &s.CreatedAt); err != nil {
			return nil, ferrors.Wrap(err, "scanning approved scope row")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) ListApprovedScopesForUser(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, userID ids.AuthorID) ([]repository.ApprovedScope, error) {
	rows, err := r.conn().Query(ctx, `
		SELECT tenant, project, client, "user", scope, created_at FROM scopes
		WHERE tenant = $1 AND project = $2 AND "user" = $3
		ORDER BY created_at DESC`,
		tenant, project, userID,
	)
	if err != nil {
		return nil, ferrors.Wrap(err, "listing approved scopes for user")
	}
	defer rows.Close()

	var out []repository.ApprovedScope
	for rows.Next() {
		var s repository.ApprovedScope
		if err := rows.Scan(&s.Tenant, &s.Project, &s.ClientID, &s.UserID, &s.Scope, &s.CreatedAt); err != nil {
			return nil, ferrors.Wrap(err, "scanning approved scope row")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullProject(p ids.ProjectID) any {
	if p == "" {
		return nil
	}
	return p
}
