package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/good-yellow-bee/slate/internal/metrics"
	"github.com/good-yellow-bee/slate/internal/models"
)

// observe records how long a project query took.
func observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.StorageQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

type sqliteProjectRepo struct {
	db *sql.DB
}

// Save upserts the whole row. On conflict the owner and created_at of the
// stored row win; everything else is overwritten.
func (r *sqliteProjectRepo) Save(ctx context.Context, project *models.Project) error {
	defer observe("project_save")()

	blob, err := project.Document.MarshalBlob()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO projects (id, owner, title, favorite, archived, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			favorite = excluded.favorite,
			archived = excluded.archived,
			data = excluded.data,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		project.ID, models.NormalizeEmail(project.Owner), project.Title,
		project.Favorite, project.Archived, string(blob),
		project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	defer observe("project_get")()

	query := `
		SELECT id, owner, title, favorite, archived, data, created_at, updated_at
		FROM projects WHERE id = ?
	`
	project := &models.Project{}
	var data string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID, &project.Owner, &project.Title,
		&project.Favorite, &project.Archived, &data,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project by id: %w", err)
	}
	if err := project.Document.UnmarshalBlob([]byte(data)); err != nil {
		return nil, fmt.Errorf("project %s: %w", id, err)
	}
	return project, nil
}

func (r *sqliteProjectRepo) Delete(ctx context.Context, id string) error {
	defer observe("project_delete")()

	result, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteProjectRepo) Exists(ctx context.Context, id string) (bool, error) {
	defer observe("project_exists")()

	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check project: %w", err)
	}
	return n > 0, nil
}

// List never selects the data column except to match team membership.
func (r *sqliteProjectRepo) List(ctx context.Context, filter ProjectFilter) ([]*models.ProjectSummary, error) {
	defer observe("project_list")()

	var (
		where []string
		args  []any
	)
	if filter.Member != "" {
		member := models.NormalizeEmail(filter.Member)
		where = append(where, `(owner = ? OR EXISTS (
			SELECT 1 FROM json_each(projects.data, '$.team') t
			WHERE lower(json_extract(t.value, '$.email')) = ?
		))`)
		args = append(args, member, member)
	}
	if filter.Archived != nil {
		where = append(where, "archived = ?")
		args = append(args, *filter.Archived)
	}
	if filter.FavoriteOnly {
		where = append(where, "favorite = 1")
	}

	query := `SELECT id, owner, title, favorite, archived, created_at, updated_at FROM projects`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*models.ProjectSummary, 0)
	for rows.Next() {
		p := &models.ProjectSummary{}
		err := rows.Scan(
			&p.ID, &p.Owner, &p.Title, &p.Favorite, &p.Archived,
			&p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
