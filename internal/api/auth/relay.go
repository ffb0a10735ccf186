package auth

import (
	"net/http"

	"github.com/good-yellow-bee/slate/internal/logging"
	"github.com/good-yellow-bee/slate/internal/models"
	"github.com/good-yellow-bee/slate/internal/web/session"
)

// RelayAuthenticator authenticates relay socket upgrades by session cookie
// or by a ?ticket= query parameter.
type RelayAuthenticator struct {
	sessions session.Store
	tickets  *TicketService
}

// NewRelayAuthenticator creates a relay authenticator.
func NewRelayAuthenticator(sessions session.Store, tickets *TicketService) *RelayAuthenticator {
	return &RelayAuthenticator{sessions: sessions, tickets: tickets}
}

// AuthenticateRequest returns the caller's identity. A ticket, when present,
// must be valid; the cookie is not consulted in that case.
func (a *RelayAuthenticator) AuthenticateRequest(r *http.Request) (models.Principal, bool) {
	if ticket := r.URL.Query().Get("ticket"); ticket != "" {
		claims, err := a.tickets.Validate(ticket)
		if err != nil {
			logging.From(r.Context()).Debugw("relay ticket rejected", "error", err)
			return models.Principal{}, false
		}
		return claims.Principal(), true
	}

	s, ok := session.FromRequest(a.sessions, r)
	if !ok {
		return models.Principal{}, false
	}
	return s.Principal(), true
}
