// Package password hashes and scores user passwords for the
// email_password authentication method (spec §4.5, original_source's
// auth_n/oidc/utilities.go set_user_password), grounded on
// dmitrymomot-saaskit's pkg/auth password service for the bcrypt
// hash/compare shape.
package password

import (
	"golang.org/x/crypto/bcrypt"
)

// Hash bcrypt-hashes raw at the library's default cost.
func Hash(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether raw matches hash.
func Verify(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}

// MinScore is the minimum acceptable Score for email_password user
// creation (spec: "score >= 3").
const MinScore = 3
