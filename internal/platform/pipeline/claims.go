package pipeline

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/fhirway/fhirway/internal/domain/ids"
)

// Claims is the set of registered and custom claims the oidc subsystem
// signs into every access token (spec §4.5): tenant/project/user_role/
// user_id/access_policy_version_ids/membership_id alongside the
// standard sub/exp/aud/scope fields.
type Claims struct {
	jwt.RegisteredClaims
	Tenant                 string   `json:"tenant"`
	Project                string   `json:"project"`
	UserRole               string   `json:"user_role"`
	UserID                 string   `json:"user_id"`
	MembershipID           string   `json:"membership_id"`
	AccessPolicyVersionIDs []string `json:"access_policy_version_ids"`
	Scope                  string   `json:"scope"`
}

func (c Claims) accessPolicyVersionIDs() []ids.VersionID {
	out := make([]ids.VersionID, len(c.AccessPolicyVersionIDs))
	for i, v := range c.AccessPolicyVersionIDs {
		out[i] = ids.VersionID(v)
	}
	return out
}
