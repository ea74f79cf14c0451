package password

import (
	"strings"
	"unicode"
)

// Score estimates password strength on zxcvbn's familiar 0-4 scale. The
// example pack carries no Go zxcvbn binding (the original_source uses
// Rust's zxcvbn crate), so this is a deliberately simple heuristic
// scorer rather than a statistical one: length plus character-class
// diversity, with a penalty when the password contains one of the
// userInputs verbatim (e.g. the account's own email).
func Score(raw string, userInputs ...string) int {
	for _, input := range userInputs {
		if input != "" && strings.Contains(strings.ToLower(raw), strings.ToLower(input)) {
			return 0
		}
	}

	classes := 0
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range raw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	for _, b := range []bool{hasLower, hasUpper, hasDigit, hasSymbol} {
		if b {
			classes++
		}
	}

	length := len([]rune(raw))
	score := 0
	switch {
	case length >= 16:
		score = 4
	case length >= 12:
		score = 3
	case length >= 8:
		score = 2
	case length >= 5:
		score = 1
	}

	if classes <= 1 && score > 1 {
		score = 1
	}
	if classes >= 3 && score < 4 {
		score++
	}
	if score > 4 {
		score = 4
	}
	return score
}
