package repository

import (
	"time"

	"github.com/fhirway/fhirway/internal/domain/ids"
)

// Tenant is the top-level isolation boundary (spec §3).
type Tenant struct {
	ID                    ids.TenantID
	SubscriptionTier      string
	IndexSequencePosition int64
}

// Project groups resources, users, and clients within a tenant.
type Project struct {
	ID                ids.ProjectID
	Tenant            ids.TenantID
	FHIRVersion       string
	IdentityProviders []string
}

// UserRole enumerates the roles a User or Membership may hold.
type UserRole string

const (
	RoleOwner  UserRole = "owner"
	RoleAdmin  UserRole = "admin"
	RoleMember UserRole = "member"
)

// UserMethod is how a User authenticates.
type UserMethod string

const (
	MethodEmailPassword UserMethod = "email_password"
	MethodOIDC          UserMethod = "oidc"
)

// User is a principal for interactive login.
type User struct {
	ID           ids.AuthorID
	Tenant       ids.TenantID
	Email        string
	Role         UserRole
	Method       UserMethod
	ProviderID   string // set when Method == MethodOIDC
	PasswordHash string // set when Method == MethodEmailPassword
}

// Membership ties a user to a project with a role and the set of
// AccessPolicy versions that apply to requests made under it. The
// membership id, not just the user id, is carried in issued JWTs
// (spec §4.5's membership_id claim) so that a user holding memberships
// in several projects gets distinct, independently revocable policy
// bindings per project.
type Membership struct {
	ID                     string
	Tenant                 ids.TenantID
	Project                ids.ProjectID
	UserID                 ids.AuthorID
	Role                   UserRole
	AccessPolicyVersionIDs []ids.VersionID
}

// GrantType enumerates the OAuth2 grants a ClientApplication may use.
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantRefreshToken      GrantType = "refresh_token"
	GrantClientCredentials GrantType = "client_credentials"
)

// ClientApplication is an OAuth2 client registered on a project.
type ClientApplication struct {
	ID            string
	Tenant        ids.TenantID
	Project       ids.ProjectID
	Name          string
	Secret        string // hashed, only populated for client_credentials
	ResponseTypes []string
	GrantTypes    []GrantType
	RedirectURIs  []string
	Scope         string
}

// AuthCodeKind distinguishes the three uses of AuthorizationCode.
type AuthCodeKind string

const (
	KindOAuth2CodeGrant AuthCodeKind = "oauth2_code_grant"
	KindRefreshToken    AuthCodeKind = "refresh_token"
	KindPasswordReset   AuthCodeKind = "password_reset"
)

// PKCEMethod enumerates the supported PKCE code_challenge_method values.
type PKCEMethod string

const (
	PKCES256  PKCEMethod = "S256"
	PKCEPlain PKCEMethod = "plain"
)

// AuthorizationCode is a short-lived, single-use credential (spec §3).
type AuthorizationCode struct {
	Code                     string
	Kind                     AuthCodeKind
	Tenant                   ids.TenantID
	Project                  ids.ProjectID
	ClientID                 string
	UserID                   ids.AuthorID
	ExpiresAt                time.Time
	Used                     bool
	PKCEChallenge            string
	PKCEChallengeMethod      PKCEMethod
	RedirectURI              string
	Meta                     map[string]any
	CreatedAt                time.Time
}

// ApprovedScope records a user's persistent consent for a client.
type ApprovedScope struct {
	Tenant    ids.TenantID
	Project   ids.ProjectID
	ClientID  string
	UserID    ids.AuthorID
	Scope     string
	CreatedAt time.Time
}
