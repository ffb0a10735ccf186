package auth

import (
	"crypto/subtle"

	"github.com/good-yellow-bee/slate/internal/models"
)

// SuperuserID is the principal id of the configured superuser. It never
// collides with a stored user id.
const SuperuserID = "superuser"

// Superuser is an account defined in configuration rather than the users
// table. It can see and edit every project.
type Superuser struct {
	Email string
	// PasswordHash is a bcrypt hash. Takes precedence over Password.
	PasswordHash string
	// Password is a plaintext password, for development setups.
	Password string
}

// Enabled reports whether a superuser is configured.
func (s *Superuser) Enabled() bool {
	return s != nil && s.Email != "" && (s.PasswordHash != "" || s.Password != "")
}

// Matches reports whether email names the superuser.
func (s *Superuser) Matches(email string) bool {
	return s.Enabled() && models.NormalizeEmail(email) == models.NormalizeEmail(s.Email)
}

// Authenticate checks the credentials against the superuser.
func (s *Superuser) Authenticate(email, password string) bool {
	if !s.Matches(email) {
		return false
	}
	if s.PasswordHash != "" {
		return CheckPassword(s.PasswordHash, password)
	}
	return subtle.ConstantTimeCompare([]byte(s.Password), []byte(password)) == 1
}

// Principal returns the superuser's identity.
func (s *Superuser) Principal() models.Principal {
	return models.Principal{
		UserID:    SuperuserID,
		Email:     models.NormalizeEmail(s.Email),
		Name:      "Superuser",
		Superuser: true,
	}
}
