package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()

	session, err := store.Create("user-1", "dir@example.com", "Dee", false)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if session.ID == "" {
		t.Error("session.ID is empty")
	}

	got, ok := store.Get(session.ID)
	if !ok {
		t.Fatal("Get() returned false, want true")
	}
	if got.UserID != "user-1" || got.Email != "dir@example.com" {
		t.Errorf("got %+v", got)
	}
}

func TestMemoryStore_GetExpired(t *testing.T) {
	store := NewMemoryStore(time.Millisecond)
	defer store.Close()

	session, _ := store.Create("user-1", "dir@example.com", "Dee", false)
	time.Sleep(5 * time.Millisecond)

	_, ok := store.Get(session.ID)
	if ok {
		t.Error("Get() returned true for expired session")
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()

	session, _ := store.Create("user-1", "dir@example.com", "Dee", false)
	store.Delete(session.ID)

	_, ok := store.Get(session.ID)
	if ok {
		t.Error("Get() returned true after Delete()")
	}
}

func TestMemoryStore_CloseTwice(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ttl), mr
}

func TestRedisStore_CreateAndGet(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Hour)

	session, err := store.Create("user-1", "dir@example.com", "Dee", true)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, ok := store.Get(session.ID)
	if !ok {
		t.Fatal("Get() returned false, want true")
	}
	if got.UserID != "user-1" || !got.Superuser || got.Name != "Dee" {
		t.Errorf("got %+v", got)
	}
}

func TestRedisStore_Expiry(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)

	session, err := store.Create("user-1", "dir@example.com", "Dee", false)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, ok := store.Get(session.ID); ok {
		t.Error("Get() returned true for expired session")
	}
}

func TestRedisStore_Delete(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Hour)

	session, _ := store.Create("user-1", "dir@example.com", "Dee", false)
	store.Delete(session.ID)

	if _, ok := store.Get(session.ID); ok {
		t.Error("Get() returned true after Delete()")
	}
	// Deleting a missing session is harmless.
	store.Delete("missing")
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Hour)
	mr.Close()

	if _, err := store.Create("user-1", "dir@example.com", "Dee", false); err == nil {
		t.Error("Create() should fail when redis is down")
	}
	if _, ok := store.Get("anything"); ok {
		t.Error("Get() should report missing when redis is down")
	}
}

func TestFromRequest(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()

	s, err := store.Create("u1", "dir@example.com", "Dee", false)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rec := httptest.NewRecorder()
	SetCookie(rec, s, false)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].HttpOnly || cookies[0].SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie: %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	got, ok := FromRequest(store, req)
	if !ok {
		t.Fatal("FromRequest() found no session")
	}
	if p := got.Principal(); p.Email != "dir@example.com" || p.UserID != "u1" {
		t.Errorf("Principal() = %+v", p)
	}

	if _, ok := FromRequest(store, httptest.NewRequest(http.MethodGet, "/", nil)); ok {
		t.Error("FromRequest() without cookie should fail")
	}
}
