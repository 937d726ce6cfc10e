// internal/app/system/authutil/password.go
package authutil

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Password validation constants
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
	BcryptCost        = 12
)

// Password validation errors
var (
	ErrPasswordTooShort  = errors.New("Password must be at least 8 characters.")
	ErrPasswordTooLong   = errors.New("Password must be less than 128 characters.")
	ErrPasswordNoUpper   = errors.New("Password must contain at least one uppercase letter.")
	ErrPasswordNoLower   = errors.New("Password must contain at least one lowercase letter.")
	ErrPasswordNoDigit   = errors.New("Password must contain at least one digit.")
	ErrPasswordNoSpecial = errors.New("Password must contain at least one special character.")
	ErrPasswordCommon    = errors.New("This password is too common. Please choose a different one.")
)

// commonPasswords is a list of very common passwords that are blocked even
// when they satisfy the character-class rules.
var commonPasswords = map[string]bool{
	"password1!": true,
	"p@ssword1":  true,
	"p@ssw0rd":   true,
	"passw0rd!":  true,
	"qwerty123!": true,
	"welcome1!":  true,
	"admin123!":  true,
	"letmein1!":  true,
	"iloveyou1!": true,
	"sunshine1!": true,
}

// specialChars mirrors the character set accepted as "special".
const specialChars = `!@#$%^&*(),.?":{}|<>[]-_+=~` + "`" + `;'/\`

// PasswordRules returns a human-readable description of the password rules.
// This can be displayed on password change forms.
func PasswordRules() string {
	return "Password must be at least 8 characters and contain an uppercase letter, a lowercase letter, a digit, and a special character."
}

// ValidatePassword checks if a password meets the requirements.
// Returns nil if valid, or an error describing the first failed rule.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(specialChars, r):
			hasSpecial = true
		}
	}
	if !hasUpper {
		return ErrPasswordNoUpper
	}
	if !hasLower {
		return ErrPasswordNoLower
	}
	if !hasDigit {
		return ErrPasswordNoDigit
	}
	if !hasSpecial {
		return ErrPasswordNoSpecial
	}

	if commonPasswords[strings.ToLower(password)] {
		return ErrPasswordCommon
	}

	return nil
}

// HashPassword hashes a password using bcrypt.
// The password should be validated with ValidatePassword first.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plain-text password with a bcrypt hash.
// Returns true if the password matches, false otherwise.
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// dummyHash is a throwaway bcrypt hash at the standard cost. It matches no
// real credential.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OQn3YdHzVvv0Gz0eXQCBKpp3PLMIGKKa"

// BurnPasswordCheck runs a bcrypt comparison against a fixed hash and
// discards the result. Login calls it when no account matches the email, so
// the unknown-email path takes as long as a wrong-password one.
func BurnPasswordCheck(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
}
