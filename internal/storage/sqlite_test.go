package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/slate/internal/models"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store := NewSQLiteStorage(dbPath)
	if err := store.Open(); err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate database: %v", err)
	}
	return store
}

func newTestProject(id, owner, title string) *models.Project {
	p := models.NewProject(id, owner, title)
	p.Setups = []models.Setup{{
		Title: "A",
		Shots: []models.Shot{{ID: "1", Type: "Wide", Desc: "intro", Time: 10}},
	}}
	return p
}

func TestSQLiteStorage_OpenRequiresPath(t *testing.T) {
	if err := NewSQLiteStorage("").Open(); err == nil {
		t.Error("Open() with empty path should fail")
	}
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	tables := []string{"users", "projects", "schema_migrations"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s should exist: %v", table, err)
		}
	}

	// Running again is a no-op.
	if err := store.Migrate(); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

func TestUserRepository_CRUD(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	user := models.NewUser("  Director@Example.com ", "Dee Rector")
	user.ID = uuid.New().String()
	user.PasswordHash = "hash"

	if err := store.Users().Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.Users().GetByEmail(ctx, "DIRECTOR@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetByEmail() returned nil")
	}
	if got.Email != "director@example.com" {
		t.Errorf("Email = %q, want normalized", got.Email)
	}

	byID, err := store.Users().GetByID(ctx, user.ID)
	if err != nil || byID == nil {
		t.Fatalf("GetByID() = %v, %v", byID, err)
	}

	byID.Name = "Renamed"
	byID.UpdatedAt = time.Now()
	if err := store.Users().Update(ctx, byID); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	count, err := store.Users().Count(ctx)
	if err != nil || count != 1 {
		t.Errorf("Count() = %d, %v; want 1", count, err)
	}

	users, err := store.Users().List(ctx)
	if err != nil || len(users) != 1 || users[0].Name != "Renamed" {
		t.Errorf("List() = %+v, %v", users, err)
	}

	missing, err := store.Users().GetByEmail(ctx, "nobody@example.com")
	if err != nil || missing != nil {
		t.Errorf("GetByEmail(missing) = %v, %v; want nil, nil", missing, err)
	}

	dup := models.NewUser("director@example.com", "Dup")
	dup.ID = uuid.New().String()
	dup.PasswordHash = "hash"
	if err := store.Users().Create(ctx, dup); err == nil {
		t.Error("Create() with duplicate email should fail")
	}
}

func TestProjectRepository_SaveTwiceLastWriteWins(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	first := newTestProject("p1", "owner@example.com", "Draft")
	first.ScriptHTML = "<p>first</p>"
	if err := store.Projects().Save(ctx, first); err != nil {
		t.Fatalf("Save(first) error = %v", err)
	}

	second := models.NewProject("p1", "someone-else@example.com", "Final")
	second.ScriptHTML = "<p>second</p>"
	second.CreatedAt = time.Now().Add(time.Hour)
	if err := store.Projects().Save(ctx, second); err != nil {
		t.Fatalf("Save(second) error = %v", err)
	}

	got, err := store.Projects().GetByID(ctx, "p1")
	if err != nil || got == nil {
		t.Fatalf("GetByID() = %v, %v", got, err)
	}
	if got.Title != "Final" || got.ScriptHTML != "<p>second</p>" {
		t.Errorf("got %q / %q, want second save", got.Title, got.ScriptHTML)
	}
	if len(got.Setups) != 0 {
		t.Errorf("setups = %+v, want overwritten by second save", got.Setups)
	}
	if got.Owner != "owner@example.com" {
		t.Errorf("Owner = %q, want original owner kept", got.Owner)
	}
	if !got.CreatedAt.Before(second.CreatedAt) {
		t.Errorf("CreatedAt = %v, want original creation time kept", got.CreatedAt)
	}
}

func TestProjectRepository_SetupsRoundTrip(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	p := newTestProject("pilot", "owner@example.com", "Pilot")
	if err := store.Projects().Save(ctx, p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Projects().GetByID(ctx, "pilot")
	if err != nil || got == nil {
		t.Fatalf("GetByID() = %v, %v", got, err)
	}
	if len(got.Setups) != 1 || got.Setups[0].Title != "A" {
		t.Fatalf("setups = %+v", got.Setups)
	}
	shot := got.Setups[0].Shots[0]
	if shot.ID != "1" || shot.Type != "Wide" || shot.Desc != "intro" || shot.Time != 10 {
		t.Errorf("shot = %+v", shot)
	}
}

func TestProjectRepository_Delete(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.Projects().Save(ctx, newTestProject("42", "owner@example.com", "Doomed")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Projects().Delete(ctx, "42"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	got, err := store.Projects().GetByID(ctx, "42")
	if err != nil || got != nil {
		t.Errorf("GetByID() after delete = %v, %v; want nil, nil", got, err)
	}

	if err := store.Projects().Delete(ctx, "42"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
	}

	exists, err := store.Projects().Exists(ctx, "42")
	if err != nil || exists {
		t.Errorf("Exists() = %v, %v; want false", exists, err)
	}
}

func TestProjectRepository_List(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	owned := newTestProject("a", "owner@example.com", "Owned")
	owned.UpdatedAt = time.Now().Add(-time.Hour)

	shared := newTestProject("b", "other@example.com", "Shared")
	shared.Team = []models.TeamMember{{Email: "Owner@Example.com", Role: models.TeamWriter}}
	shared.Favorite = true

	foreign := newTestProject("c", "other@example.com", "Foreign")
	foreign.Archived = true

	for _, p := range []*models.Project{owned, shared, foreign} {
		if err := store.Projects().Save(ctx, p); err != nil {
			t.Fatalf("Save(%s) error = %v", p.ID, err)
		}
	}

	mine, err := store.Projects().List(ctx, ProjectFilter{Member: "owner@example.com"})
	if err != nil {
		t.Fatalf("List(member) error = %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("List(member) = %d projects, want 2", len(mine))
	}
	if mine[0].ID != "b" {
		t.Errorf("first project = %s, want most recently updated (b)", mine[0].ID)
	}

	all, err := store.Projects().List(ctx, ProjectFilter{})
	if err != nil || len(all) != 3 {
		t.Errorf("List(all) = %d, %v; want 3", len(all), err)
	}

	notArchived := false
	active, err := store.Projects().List(ctx, ProjectFilter{Archived: &notArchived})
	if err != nil || len(active) != 2 {
		t.Errorf("List(archived=false) = %d, %v; want 2", len(active), err)
	}

	favs, err := store.Projects().List(ctx, ProjectFilter{FavoriteOnly: true})
	if err != nil || len(favs) != 1 || favs[0].ID != "b" {
		t.Errorf("List(favorite) = %+v, %v", favs, err)
	}
}

func TestSQLiteStorage_MigrationsRecorded(t *testing.T) {
	store := setupTestDB(t)

	var n, top int
	err := store.db.QueryRow("SELECT COUNT(*), COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&n, &top)
	if err != nil {
		t.Fatalf("query schema_migrations: %v", err)
	}
	if n != len(migrations) || top != migrations[len(migrations)-1].Version {
		t.Errorf("recorded %d migrations up to %d, want %d up to %d",
			n, top, len(migrations), migrations[len(migrations)-1].Version)
	}
}
