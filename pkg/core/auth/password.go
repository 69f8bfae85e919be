// Package auth issues and checks credentials: bcrypt passwords, short-lived
// JWT access tokens, opaque refresh tokens and the human check on sign-up.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength and MaxPasswordLength bound accepted passwords; bcrypt
// ignores input past 72 bytes.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

var (
	// ErrInvalidCredentials is returned for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrWeakPassword is returned when a password is outside the length bounds.
	ErrWeakPassword = errors.New("password must be 8 to 72 characters")
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return "", ErrWeakPassword
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// CheckPassword compares password with a stored hash.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
