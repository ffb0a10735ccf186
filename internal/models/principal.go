package models

// Principal is the authenticated caller of a request or relay connection.
type Principal struct {
	UserID    string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Superuser bool   `json:"superuser"`
}

// IsZero reports whether no one is authenticated.
func (p Principal) IsZero() bool {
	return p.Email == ""
}
