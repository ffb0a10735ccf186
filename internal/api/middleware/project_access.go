package middleware

import (
	"context"
	"fmt"

	"github.com/good-yellow-bee/slate/internal/models"
	"github.com/good-yellow-bee/slate/internal/storage"
)

// ProjectAccess decides who may open a project: its owner, anyone listed in
// its team, and the superuser.
type ProjectAccess struct {
	projects storage.ProjectRepository
}

// NewProjectAccess creates a ProjectAccess backed by the project store.
func NewProjectAccess(projects storage.ProjectRepository) *ProjectAccess {
	return &ProjectAccess{projects: projects}
}

// CanAccess reports whether p may open the project. A missing project is
// never accessible.
func (pa *ProjectAccess) CanAccess(ctx context.Context, p models.Principal, projectID string) (bool, error) {
	if p.IsZero() || projectID == "" {
		return false, nil
	}
	project, err := pa.projects.GetByID(ctx, projectID)
	if err != nil {
		return false, fmt.Errorf("load project %s: %w", projectID, err)
	}
	if project == nil {
		return false, nil
	}
	return CanAccessProject(p, project), nil
}

// CanAccessProject applies the access rule to an already loaded project.
func CanAccessProject(p models.Principal, project *models.Project) bool {
	if p.Superuser {
		return true
	}
	return project.HasMember(p.Email)
}

// MemberFilter returns the listing filter for p. The superuser sees every
// project.
func MemberFilter(p models.Principal) storage.ProjectFilter {
	if p.Superuser {
		return storage.ProjectFilter{}
	}
	return storage.ProjectFilter{Member: p.Email}
}
