package session

import (
	"net/http"

	"github.com/good-yellow-bee/slate/internal/models"
)

// Principal returns the identity the session was created for.
func (s *Session) Principal() models.Principal {
	return models.Principal{
		UserID:    s.UserID,
		Email:     s.Email,
		Name:      s.Name,
		Superuser: s.Superuser,
	}
}

// FromRequest looks up the session named by the request's cookie.
func FromRequest(store Store, r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	return store.Get(cookie.Value)
}

// SetCookie writes the session cookie.
func SetCookie(w http.ResponseWriter, s *Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
