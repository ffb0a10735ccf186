// Package web serves the page routes of the planner.
package web

import (
	"github.com/good-yellow-bee/slate/internal/web/handlers"
	"github.com/good-yellow-bee/slate/internal/web/session"
)

type Server struct {
	handler          *handlers.Handler
	sessions         session.Store
	useSecureCookies bool
}

// NewServer creates the page server sharing the API's session store.
func NewServer(sessions session.Store, useSecureCookies bool) *Server {
	return &Server{
		handler:          handlers.NewHandler(sessions),
		sessions:         sessions,
		useSecureCookies: useSecureCookies,
	}
}
