package oidc

import (
	"fmt"
	"regexp"
	"strings"
)

// ScopeKind distinguishes the grammar families a Scope token can belong
// to (spec §4.5's SMART-on-FHIR grammar).
type ScopeKind string

const (
	ScopeOpenID        ScopeKind = "openid"
	ScopeProfile       ScopeKind = "profile"
	ScopeEmail         ScopeKind = "email"
	ScopeOfflineAccess ScopeKind = "offline_access"
	ScopeLaunch        ScopeKind = "launch"
	ScopeClinical      ScopeKind = "clinical"
)

// Scope is a single parsed OAuth2/OpenID/SMART scope token.
type Scope struct {
	Kind ScopeKind
	Raw  string

	// Clinical-scope fields, set only when Kind == ScopeClinical.
	Principal    string // user | patient | system
	ResourceType string // * or a FHIR resource type
	Permissions  string // subsequence of "cruds", in order
}

// launchScopeRe matches launch/{type}.
var launchScopeRe = regexp.MustCompile(`^launch(?:/(\S+))?$`)

// clinicalScopeRe matches {principal}/{resource}.{permissions}.
var clinicalScopeRe = regexp.MustCompile(`^(user|patient|system)/(\*|[A-Za-z]+)\.([cruds]+)$`)

// permissionOrder enforces that permission letters appear in this
// relative order, per spec §4.5.
const permissionOrder = "cruds"

// ParseScopeString splits raw on whitespace and parses each token,
// failing the whole string on the first unrecognized token (spec:
// "Any unrecognized token ⇒ parse failure").
func ParseScopeString(raw string) ([]Scope, error) {
	fields := strings.Fields(raw)
	scopes := make([]Scope, 0, len(fields))
	for _, f := range fields {
		s, err := parseScopeToken(f)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, s)
	}
	return scopes, nil
}

func parseScopeToken(token string) (Scope, error) {
	switch token {
	case string(ScopeOpenID):
		return Scope{Kind: ScopeOpenID, Raw: token}, nil
	case string(ScopeProfile):
		return Scope{Kind: ScopeProfile, Raw: token}, nil
	case string(ScopeEmail):
		return Scope{Kind: ScopeEmail, Raw: token}, nil
	case string(ScopeOfflineAccess):
		return Scope{Kind: ScopeOfflineAccess, Raw: token}, nil
	}

	if m := launchScopeRe.FindStringSubmatch(token); m != nil {
		return Scope{Kind: ScopeLaunch, Raw: token}, nil
	}

	if m := clinicalScopeRe.FindStringSubmatch(token); m != nil {
		permissions := m[3]
		if !permissionsInOrder(permissions) {
			return Scope{}, fmt.Errorf("scope %q: permission letters out of order", token)
		}
		return Scope{
			Kind:         ScopeClinical,
			Raw:          token,
			Principal:    m[1],
			ResourceType: m[2],
			Permissions:  permissions,
		}, nil
	}

	return Scope{}, fmt.Errorf("unrecognized scope token %q", token)
}

// permissionsInOrder reports whether letters appear as a subsequence of
// "cruds" with no repeats or reordering.
func permissionsInOrder(letters string) bool {
	pos := -1
	seen := make(map[byte]bool, len(letters))
	for i := 0; i < len(letters); i++ {
		c := letters[i]
		if seen[c] {
			return false
		}
		seen[c] = true
		idx := strings.IndexByte(permissionOrder, c)
		if idx <= pos {
			return false
		}
		pos = idx
	}
	return true
}

// HasScope reports whether scopes contains a token with the given kind.
func HasScope(scopes []Scope, kind ScopeKind) bool {
	for _, s := range scopes {
		if s.Kind == kind {
			return true
		}
	}
	return false
}
