// Package ids defines the value types that identify every tenant-scoped
// entity in the platform: tenants, projects, resources, versions, and
// authors. Each type is a distinct string so the compiler catches the
// classic "passed a project id where a tenant id was expected" bug, and
// each implements database/sql's Scanner/Valuer so pgx can bind and
// populate them directly.
package ids

import (
	"crypto/rand"
	"database/sql/driver"
	"fmt"
	"regexp"
)

// idAlphabet is the 37-character alphabet ([0-9a-z-]) the 26-character
// server-generated resource and version ids are drawn from, per the FHIR
// id grammar this platform enforces on its own output.
const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz-"

// generatedIDPattern matches ids the server itself generates: exactly 26
// characters from the restricted alphabet.
var generatedIDPattern = regexp.MustCompile(`^[0-9a-z-]{26}$`)

// incomingIDPattern is the looser grammar accepted for client-supplied
// resource ids (e.g. conditional update targets, imported bundles).
var incomingIDPattern = regexp.MustCompile(`^[0-9a-z-]{1,64}$`)

// SystemTenant is the reserved tenant holding cross-tenant shared
// artifacts (profiles, search parameters).
const SystemTenant TenantID = "system"

// SystemProject is the reserved project id per-tenant for artifacts.
const SystemProject ProjectID = "system"

// TenantID is the top-level multi-tenancy boundary.
type TenantID string

func (t TenantID) String() string { return string(t) }

func (t *TenantID) Scan(src any) error {
	s, err := scanString(src)
	if err != nil {
		return err
	}
	*t = TenantID(s)
	return nil
}

func (t TenantID) Value() (driver.Value, error) { return string(t), nil }

// ProjectID scopes resources, users, and clients within a tenant.
type ProjectID string

func (p ProjectID) String() string { return string(p) }

func (p *ProjectID) Scan(src any) error {
	s, err := scanString(src)
	if err != nil {
		return err
	}
	*p = ProjectID(s)
	return nil
}

func (p ProjectID) Value() (driver.Value, error) { return string(p), nil }

// ResourceID identifies a FHIR resource within a (tenant, project,
// resource_type) scope.
type ResourceID string

func (r ResourceID) String() string { return string(r) }

func (r *ResourceID) Scan(src any) error {
	s, err := scanString(src)
	if err != nil {
		return err
	}
	*r = ResourceID(s)
	return nil
}

func (r ResourceID) Value() (driver.Value, error) { return string(r), nil }

// Valid reports whether r conforms to the FHIR id grammar accepted for
// incoming (client-supplied) ids.
func (r ResourceID) Valid() bool { return incomingIDPattern.MatchString(string(r)) }

// VersionID identifies a single immutable version of a resource.
type VersionID string

func (v VersionID) String() string { return string(v) }

func (v *VersionID) Scan(src any) error {
	s, err := scanString(src)
	if err != nil {
		return err
	}
	*v = VersionID(s)
	return nil
}

func (v VersionID) Value() (driver.Value, error) { return string(v), nil }

// Valid reports whether v is a well-formed server-generated version id.
func (v VersionID) Valid() bool { return generatedIDPattern.MatchString(string(v)) }

// AuthorID identifies the principal responsible for a resource version:
// a user, a client application, or the reserved "system" author.
type AuthorID string

func (a AuthorID) String() string { return string(a) }

func (a *AuthorID) Scan(src any) error {
	s, err := scanString(src)
	if err != nil {
		return err
	}
	*a = AuthorID(s)
	return nil
}

func (a AuthorID) Value() (driver.Value, error) { return string(a), nil }

func scanString(src any) (string, error) {
	switch v := src.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("ids: cannot scan %T into string-backed id", src)
	}
}

// NewResourceID generates a collision-resistant 26-character opaque
// resource id over the restricted alphabet.
func NewResourceID() ResourceID { return ResourceID(generate26()) }

// NewVersionID generates a collision-resistant 26-character opaque
// version id over the restricted alphabet.
func NewVersionID() VersionID { return VersionID(generate26()) }

func generate26() string {
	const n = 26
	buf := make([]byte, n)
	idx := make([]byte, n)
	if _, err := rand.Read(idx); err != nil {
		panic(fmt.Errorf("ids: reading random bytes: %w", err))
	}
	for i, b := range idx {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(buf)
}

// ValidIncomingID reports whether s is acceptable as a client-supplied
// resource id.
func ValidIncomingID(s string) bool { return incomingIDPattern.MatchString(s) }
