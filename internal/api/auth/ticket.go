// Package auth provides login, registration and relay tickets.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/good-yellow-bee/slate/internal/models"
)

const (
	ticketIssuer   = "slate"
	ticketAudience = "relay"
)

// ErrInvalidTicket is returned for tickets that fail validation.
var ErrInvalidTicket = errors.New("invalid relay ticket")

// Claims are the contents of a relay ticket.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"uid"`
	Email     string `json:"eml"`
	Name      string `json:"nam,omitempty"`
	Superuser bool   `json:"su,omitempty"`
}

// Principal returns the identity carried by the ticket.
func (c *Claims) Principal() models.Principal {
	return models.Principal{
		UserID:    c.UserID,
		Email:     c.Email,
		Name:      c.Name,
		Superuser: c.Superuser,
	}
}

// TicketService issues short-lived signed tickets that let a client open
// the relay socket without sending its session cookie.
type TicketService struct {
	secret []byte
	ttl    time.Duration
}

// NewTicketService creates a ticket service signing with HS256.
func NewTicketService(secret []byte, ttl time.Duration) *TicketService {
	return &TicketService{
		secret: secret,
		ttl:    ttl,
	}
}

// Issue signs a ticket for p.
func (s *TicketService) Issue(p models.Principal) (string, error) {
	now := time.Now()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ticketIssuer,
			Audience:  jwt.ClaimStrings{ticketAudience},
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID:    p.UserID,
		Email:     p.Email,
		Name:      p.Name,
		Superuser: p.Superuser,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate checks signature, expiry, issuer and audience.
func (s *TicketService) Validate(ticket string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(ticket, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(ticketIssuer),
		jwt.WithAudience(ticketAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Email == "" {
		return nil, ErrInvalidTicket
	}
	return claims, nil
}

// TTL returns the ticket lifetime.
func (s *TicketService) TTL() time.Duration {
	return s.ttl
}
