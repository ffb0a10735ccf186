package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/good-yellow-bee/slate/internal/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestRateLimiter_RefillsAcrossTheMinute(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	rl := newRateLimiter(60, clock.Now)

	for i := 0; i < 60; i++ {
		if !rl.Allow("k") {
			t.Fatalf("request %d denied inside the burst", i+1)
		}
	}
	ok, wait := rl.take("k")
	if ok {
		t.Fatal("61st request should be denied")
	}
	if wait <= 0 || wait > time.Second {
		t.Errorf("wait = %v, want at most one refill interval", wait)
	}

	// A denied request must not borrow from the future.
	clock.Advance(time.Second)
	if !rl.Allow("k") {
		t.Error("one token should have refilled after a second")
	}
	if rl.Allow("k") {
		t.Error("only one token should have refilled")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	rl := newRateLimiter(1, clock.Now)

	if !rl.Allow("a") || !rl.Allow("b") {
		t.Fatal("first request per key should pass")
	}
	if rl.Allow("a") {
		t.Error("second request for a should be denied")
	}
}

func TestRateLimiter_EvictsIdleKeys(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	rl := newRateLimiter(10, clock.Now)

	rl.Allow("old")
	clock.Advance(limiterIdleTTL / 2)
	rl.Allow("recent")
	clock.Advance(limiterIdleTTL/2 + time.Second)

	rl.evictIdle()
	if rl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", rl.Len())
	}
	rl.mu.Lock()
	_, kept := rl.buckets["recent"]
	rl.mu.Unlock()
	if !kept {
		t.Error("recently used key was evicted")
	}
}

func TestRateLimitByUser(t *testing.T) {
	limiter := NewRateLimiter(2)
	defer limiter.Close()

	handler := RateLimitByUser(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(email string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/save-project", nil)
		req = req.WithContext(WithPrincipal(req.Context(), models.Principal{Email: email}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if do("a@example.com").Code != http.StatusOK || do("A@example.com").Code != http.StatusOK {
		t.Fatal("first two requests should pass")
	}
	rec := do("a@example.com")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 should carry Retry-After")
	}
	if code := do("b@example.com").Code; code != http.StatusOK {
		t.Errorf("other user status = %d, want 200", code)
	}
}

func TestRateLimitByIP(t *testing.T) {
	limiter := NewRateLimiter(1)
	defer limiter.Close()

	handler := RateLimitByIP(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remote string) int {
		req := httptest.NewRequest("POST", "/api/login", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("198.51.100.7:4000"); code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", code)
	}
	if code := do("198.51.100.7:4001"); code != http.StatusTooManyRequests {
		t.Errorf("same address on another port status = %d, want 429", code)
	}
	if code := do("198.51.100.8:4000"); code != http.StatusOK {
		t.Errorf("other address status = %d, want 200", code)
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if ip := getClientIP(req); ip != "10.0.0.1" {
		t.Errorf("RemoteAddr ip = %q", ip)
	}

	req.Header.Set("X-Real-IP", "192.0.2.4")
	if ip := getClientIP(req); ip != "192.0.2.4" {
		t.Errorf("X-Real-IP ip = %q", ip)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9:443, 10.0.0.1")
	if ip := getClientIP(req); ip != "203.0.113.9" {
		t.Errorf("X-Forwarded-For ip = %q", ip)
	}
}
