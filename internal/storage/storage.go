// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"errors"

	"github.com/good-yellow-bee/slate/internal/models"
)

// ErrNotFound is returned by mutations that target a missing row.
// Lookups return (nil, nil) instead.
var ErrNotFound = errors.New("not found")

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error

	// Repository accessors
	Users() UserRepository
	Projects() ProjectRepository
}

// UserRepository defines operations for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}

// ProjectFilter narrows a project listing. Zero value lists everything.
type ProjectFilter struct {
	// Member restricts to projects owned by, or whose team lists, this email.
	Member string
	// Archived, when set, keeps only projects with that archived flag.
	Archived *bool
	// FavoriteOnly keeps only favorite projects.
	FavoriteOnly bool
}

// ProjectRepository defines operations for project rows.
// A project row is always written whole: Save overwrites the entire document.
type ProjectRepository interface {
	// Save inserts the project or overwrites the existing row with the same id.
	// Owner and CreatedAt of an existing row are kept.
	Save(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	Delete(ctx context.Context, id string) error
	// List returns metadata only; the document is never loaded.
	List(ctx context.Context, filter ProjectFilter) ([]*models.ProjectSummary, error)
	Exists(ctx context.Context, id string) (bool, error)
}
