package auth

import (
	"regexp"
	"strings"
	"unicode"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const (
	minPasswordLength  = 8
	passwordSpecialSet = "!@#$%^&*"
)

// ValidEmail reports whether email has a plausible address shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// PasswordProblems lists the rules password breaks. An empty result means
// the password is acceptable.
func PasswordProblems(password string) []string {
	var problems []string
	if len(password) < minPasswordLength {
		problems = append(problems, "must be at least 8 characters")
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecialSet, r):
			special = true
		}
	}
	if !upper {
		problems = append(problems, "must contain an uppercase letter")
	}
	if !lower {
		problems = append(problems, "must contain a lowercase letter")
	}
	if !digit {
		problems = append(problems, "must contain a digit")
	}
	if !special {
		problems = append(problems, "must contain one of "+passwordSpecialSet)
	}
	return problems
}
