package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/good-yellow-bee/slate/internal/web/handlers"
	"github.com/good-yellow-bee/slate/internal/web/session"
)

func TestRoutes(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	defer store.Close()
	sess, _ := store.Create("user-1", "dir@example.com", "Dee", false)

	router := NewServer(store, false).Routes()

	tests := []struct {
		name         string
		path         string
		loggedIn     bool
		wantStatus   int
		wantLocation string
		wantPage     string
	}{
		{"login anonymous", "/login", false, http.StatusNoContent, "", "login"},
		{"login logged in", "/login", true, http.StatusFound, "/dashboard", ""},
		{"root anonymous", "/", false, http.StatusFound, "/login", ""},
		{"root logged in", "/", true, http.StatusFound, "/dashboard", ""},
		{"dashboard anonymous", "/dashboard", false, http.StatusFound, "/login", ""},
		{"dashboard", "/dashboard", true, http.StatusNoContent, "", "dashboard"},
		{"studio", "/studio", true, http.StatusNoContent, "", "studio"},
		{"production", "/production", true, http.StatusNoContent, "", "production"},
		{"production anonymous", "/production", false, http.StatusFound, "/login", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			if tc.loggedIn {
				req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sess.ID})
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantLocation != "" && rec.Header().Get("Location") != tc.wantLocation {
				t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), tc.wantLocation)
			}
			if got := rec.Header().Get(handlers.PageHeader); got != tc.wantPage {
				t.Errorf("%s = %q, want %q", handlers.PageHeader, got, tc.wantPage)
			}
		})
	}
}
