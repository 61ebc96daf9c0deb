package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Input rules.
const (
	MinUsernameLength = 3
	MinPasswordLength = 6
	// MaxPasswordBytes is the longest input bcrypt can hash.
	MaxPasswordBytes = 72
	MaxAboutLength   = 500
)

var validate = validator.New()

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// normalizePhone keeps digits and '+' only.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// truncateRunes cuts s to at most n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func checkUsername(v *ValidationError, username string) {
	if utf8.RuneCountInString(username) < MinUsernameLength {
		v.Add("username", fmt.Sprintf("username must be at least %d characters", MinUsernameLength))
	}
}

func checkEmail(v *ValidationError, email string) {
	if !isEmail(email) {
		v.Add("email", "email is not valid")
	}
}

func checkPassword(v *ValidationError, field, password string, minLength int) {
	switch {
	case password == "":
		v.Add(field, field+" is required")
	case utf8.RuneCountInString(password) < minLength:
		v.Add(field, fmt.Sprintf("%s must be at least %d characters", field, minLength))
	case len(password) > MaxPasswordBytes:
		v.Add(field, fmt.Sprintf("%s must be at most %d bytes", field, MaxPasswordBytes))
	}
}
