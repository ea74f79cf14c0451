package oidc

import (
	"net/url"
	"regexp"
	"strings"
)

// ValidRedirectURI reports whether candidate matches at least one of
// patterns (spec invariant 8 / original_source's utilities.go
// is_valid_redirect_url): each pattern's single `*` wildcard becomes
// `(.+)` in an anchored regex, but only after a structural scheme/
// authority check against the pattern, so a wildcard can't smuggle in
// an unrelated scheme or host.
func ValidRedirectURI(patterns []string, candidate string) bool {
	if candidate == "" {
		return false
	}
	for _, pattern := range patterns {
		if matchesPattern(pattern, candidate) {
			return true
		}
	}
	return false
}

func matchesPattern(pattern, candidate string) bool {
	patternURL, err := url.Parse(strings.ReplaceAll(pattern, "*", "x"))
	if err != nil {
		return false
	}
	candidateURL, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	if patternURL.Scheme != candidateURL.Scheme || patternURL.Host != candidateURL.Host {
		return false
	}

	// QuoteMeta escapes the literal `*` to `\*`; undo that one
	// substitution so it becomes the "one or more characters" wildcard
	// the spec describes.
	expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, "(.+)") + "$"
	re, err := regexp.Compile(expr)
	if err != nil {
		return false
	}
	return re.MatchString(candidate)
}
