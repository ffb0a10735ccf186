// Package handlers serves the session-gated page routes. Page bodies are
// rendered by the client bundle; these handlers only gate and route.
package handlers

import (
	"net/http"

	"github.com/good-yellow-bee/slate/internal/logging"
	"github.com/good-yellow-bee/slate/internal/web/session"
)

type Handler struct {
	sessions session.Store
}

func NewHandler(sessions session.Store) *Handler {
	return &Handler{sessions: sessions}
}

// Helper to get session from context
type contextKey string

const SessionContextKey contextKey = "session"

func GetSession(r *http.Request) *session.Session {
	if s, ok := r.Context().Value(SessionContextKey).(*session.Session); ok {
		return s
	}
	return nil
}

// PageHeader names the page a placeholder response stands for.
const PageHeader = "X-Slate-Page"

// ShowLogin answers the login page, or sends a logged-in user to the
// dashboard.
func (h *Handler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := session.FromRequest(h.sessions, r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	w.Header().Set(PageHeader, "login")
	w.WriteHeader(http.StatusNoContent)
}

// ShowPage returns a handler answering the named page with an empty
// placeholder.
func (h *Handler) ShowPage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sess := GetSession(r); sess != nil {
			logging.From(r.Context()).Debugw("page view", "page", name, "user", sess.Email)
		}
		w.Header().Set(PageHeader, name)
		w.WriteHeader(http.StatusNoContent)
	}
}
