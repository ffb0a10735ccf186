package auth

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8
	// MaxPasswordLength is bcrypt's input limit in bytes.
	MaxPasswordLength = 72
)

// PasswordValidationError describes why a password was rejected.
type PasswordValidationError struct {
	Message string
}

func (e *PasswordValidationError) Error() string {
	return e.Message
}

// ValidatePassword checks length limits and rejects blank passwords.
func ValidatePassword(password string) error {
	switch {
	case strings.TrimSpace(password) == "":
		return &PasswordValidationError{Message: "password must not be blank"}
	case utf8.RuneCountInString(password) < MinPasswordLength:
		return &PasswordValidationError{Message: fmt.Sprintf("password must be at least %d characters", MinPasswordLength)}
	case len(password) > MaxPasswordLength:
		return &PasswordValidationError{Message: fmt.Sprintf("password must be at most %d bytes", MaxPasswordLength)}
	}
	return nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
