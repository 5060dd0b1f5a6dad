package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate checks password policy. It does not mutate input.
func (c Config) Validate(password string) error {
	return c.ValidateFor(password)
}

// ValidateFor checks password policy and, when RejectSimilar is set, compares
// the password against the given account attributes (username, email).
func (c Config) ValidateFor(password string, attrs ...string) error {
	// Count characters (runes), not bytes.
	n := utf8.RuneCountInString(password)

	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}

	if c.Policy.RejectNumeric && isNumeric(password) {
		return ErrNumericPassword
	}

	if c.Policy.RejectVeryWeak && looksVeryWeak(password) {
		return ErrWeakPassword
	}

	if c.Policy.RejectSimilar && similarTo(password, attrs) {
		return ErrTooSimilar
	}

	return nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// looksVeryWeak is minimal. It is not a full zxcvbn-style estimator.
func looksVeryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}

	// Reject if all same char.
	allSame := true
	var first rune
	for i, r := range s {
		if i == 0 {
			first = r
			continue
		}
		if r != first {
			allSame = false
			break
		}
	}
	if allSame {
		return true
	}

	lower := strings.ToLower(s)
	switch lower {
	case "password", "password1", "password123", "12345678", "123456789",
		"qwerty", "qwerty123", "11111111", "iloveyou", "letmein1":
		return true
	}

	return false
}

// similarTo reports whether the password contains an attribute (or the local
// part of an email attribute) of at least three characters, case-insensitively.
func similarTo(pw string, attrs []string) bool {
	lower := strings.ToLower(pw)
	for _, a := range attrs {
		a = strings.ToLower(strings.TrimSpace(a))
		if at := strings.IndexByte(a, '@'); at > 0 {
			a = a[:at]
		}
		if utf8.RuneCountInString(a) < 3 {
			continue
		}
		if strings.Contains(lower, a) {
			return true
		}
	}
	return false
}
