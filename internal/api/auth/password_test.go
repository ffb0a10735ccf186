package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantOK   bool
	}{
		{"valid", "storyboard", true},
		{"exactly 8", "abcdefgh", true},
		{"unicode counted as runes", "éééééééé", true},
		{"max bytes", strings.Repeat("a", 72), true},

		{"empty", "", false},
		{"spaces only", "          ", false},
		{"too short", "abc", false},
		{"exactly 7", "abcdefg", false},
		{"too long", strings.Repeat("a", 73), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			got := err == nil
			if got != tc.wantOK {
				t.Errorf("ValidatePassword(%q) error=%v, want valid=%v", tc.password, err, tc.wantOK)
			}
			if err != nil {
				var pe *PasswordValidationError
				if !errors.As(err, &pe) {
					t.Errorf("error type = %T, want *PasswordValidationError", err)
				}
			}
		})
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("storyboard")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "storyboard" {
		t.Fatal("hash should not equal the password")
	}

	if !CheckPassword(hash, "storyboard") {
		t.Error("CheckPassword() should accept the right password")
	}
	if CheckPassword(hash, "storyboarD") {
		t.Error("CheckPassword() should reject the wrong password")
	}
	if CheckPassword("", "storyboard") {
		t.Error("CheckPassword() should reject an empty hash")
	}
}
