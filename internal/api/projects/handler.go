// Package projects implements the project API: listing, loading, saving
// and deleting planner projects.
package projects

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/good-yellow-bee/slate/internal/api/middleware"
	"github.com/good-yellow-bee/slate/internal/logging"
	"github.com/good-yellow-bee/slate/internal/metrics"
	"github.com/good-yellow-bee/slate/internal/models"
	"github.com/good-yellow-bee/slate/internal/realtime"
	"github.com/good-yellow-bee/slate/internal/storage"
)

// Response helpers (same pattern as auth)
type errorResponse struct {
	Error errorBody `json:"error"`
}
type errorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  []models.FieldError `json:"fields,omitempty"`
}
type dataResponse struct {
	Data any `json:"data"`
}

const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeForbidden        = "FORBIDDEN"
	errCodeInternalError    = "INTERNAL_ERROR"
)

// maxBodyBytes bounds a saved document; storyboard frames are inline data URIs.
const maxBodyBytes = 32 << 20

const maxFlagBytes = 1 << 10

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.From(r.Context()).Warnw("json encode error", "error", err)
	}
}

func jsonError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, r, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func jsonOK(w http.ResponseWriter, r *http.Request, data any) {
	writeJSON(w, r, http.StatusOK, dataResponse{Data: data})
}

func internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logging.From(r.Context()).Errorw(msg, "error", err)
	jsonError(w, r, http.StatusInternalServerError, errCodeInternalError, "internal server error")
}

// Broadcaster fans server events out to a project's room.
type Broadcaster interface {
	Broadcast(ctx context.Context, room, event string, data any, exclude string) error
	Presence(ctx context.Context, room string) ([]realtime.PresenceEntry, error)
}

// SaveResponse is the flat body returned by save. projectId mirrors id for
// older clients.
type SaveResponse struct {
	Success   bool      `json:"success"`
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FlagRequest sets the favorite or archived flag.
type FlagRequest struct {
	Value bool `json:"value"`
}

type Handler struct {
	projects     storage.ProjectRepository
	relay        Broadcaster
	queryTimeout time.Duration
	now          func() time.Time
}

// NewHandler creates a project handler. queryTimeout bounds each storage
// call; zero means no bound beyond the request's own context.
func NewHandler(projects storage.ProjectRepository, relay Broadcaster, queryTimeout time.Duration) *Handler {
	return &Handler{
		projects:     projects,
		relay:        relay,
		queryTimeout: queryTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) queryContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.queryTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.queryTimeout)
}

// List returns metadata for the projects the caller can open.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.GetPrincipal(r.Context())
	filter := middleware.MemberFilter(principal)

	q := r.URL.Query()
	if v := q.Get("archived"); v != "" {
		archived, err := strconv.ParseBool(v)
		if err != nil {
			jsonError(w, r, http.StatusBadRequest, errCodeBadRequest, "archived must be true or false")
			return
		}
		filter.Archived = &archived
	}
	if v := q.Get("favorite"); v != "" {
		favorite, err := strconv.ParseBool(v)
		if err != nil {
			jsonError(w, r, http.StatusBadRequest, errCodeBadRequest, "favorite must be true or false")
			return
		}
		filter.FavoriteOnly = favorite
	}

	ctx, cancel := h.queryContext(r)
	defer cancel()

	summaries, err := h.projects.List(ctx, filter)
	if err != nil {
		internalError(w, r, "list projects error", err)
		return
	}
	if summaries == nil {
		summaries = []*models.ProjectSummary{}
	}
	writeJSON(w, r, http.StatusOK, summaries)
}

// load fetches the project named by the URL and checks the caller may open
// it. It writes the error response and returns nil on failure.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) *models.Project {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, r, http.StatusBadRequest, errCodeBadRequest, "project id required")
		return nil
	}

	ctx, cancel := h.queryContext(r)
	defer cancel()

	project, err := h.projects.GetByID(ctx, id)
	if err != nil {
		internalError(w, r, "get project error", err)
		return nil
	}
	if project == nil {
		jsonError(w, r, http.StatusNotFound, errCodeNotFound, "project not found")
		return nil
	}

	principal, _ := middleware.GetPrincipal(r.Context())
	if !middleware.CanAccessProject(principal, project) {
		jsonError(w, r, http.StatusForbidden, errCodeForbidden, "no access to project")
		return nil
	}
	return project
}

// Get returns the full project, document included, as a bare object.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	project := h.load(w, r)
	if project == nil {
		return
	}
	writeJSON(w, r, http.StatusOK, project)
}

// Save inserts or overwrites a whole project and tells the room about it.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	logger := logging.From(r.Context())
	principal, _ := middleware.GetPrincipal(r.Context())

	var project models.Project
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&project); err != nil {
		metrics.ProjectSavesTotal.WithLabelValues("invalid").Inc()
		jsonError(w, r, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	project.ID = strings.TrimSpace(project.ID)
	project.Title = strings.TrimSpace(project.Title)

	if err := project.Validate(); err != nil {
		metrics.ProjectSavesTotal.WithLabelValues("invalid").Inc()
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: errorBody{
				Code:    errCodeValidationFailed,
				Message: verr.Error(),
				Fields:  verr.Fields,
			}})
			return
		}
		jsonError(w, r, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx, cancel := h.queryContext(r)
	defer cancel()

	created, err := h.prepare(ctx, principal, &project)
	if errors.Is(err, errForbidden) {
		jsonError(w, r, http.StatusForbidden, errCodeForbidden, "no access to project")
		return
	}
	if err != nil {
		metrics.ProjectSavesTotal.WithLabelValues("error").Inc()
		internalError(w, r, "save project error", err)
		return
	}

	if err := h.projects.Save(ctx, &project); err != nil {
		metrics.ProjectSavesTotal.WithLabelValues("error").Inc()
		internalError(w, r, "save project error", err)
		return
	}

	result := "updated"
	if created {
		result = "created"
	}
	metrics.ProjectSavesTotal.WithLabelValues(result).Inc()
	logger.Infow("project saved", "project", project.ID, "result", result)

	h.notify(r, &project)

	writeJSON(w, r, http.StatusOK, SaveResponse{
		Success:   true,
		ID:        project.ID,
		ProjectID: project.ID,
		UpdatedAt: project.UpdatedAt,
	})
}

var errForbidden = errors.New("forbidden")

// prepare assigns an id to new projects and carries owner and creation time
// over from the stored row. It reports whether the save creates a project.
func (h *Handler) prepare(ctx context.Context, principal models.Principal, project *models.Project) (bool, error) {
	now := h.now()
	project.UpdatedAt = now

	if project.ID == "" {
		id, err := h.newID(ctx)
		if err != nil {
			return false, err
		}
		project.ID = id
		project.Owner = principal.Email
		project.CreatedAt = now
		return true, nil
	}

	existing, err := h.projects.GetByID(ctx, project.ID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		project.Owner = principal.Email
		project.CreatedAt = now
		return true, nil
	}
	if !middleware.CanAccessProject(principal, existing) {
		return false, errForbidden
	}
	project.Owner = existing.Owner
	project.CreatedAt = existing.CreatedAt
	return false, nil
}

// newID returns a time-ordered id not used by any stored project.
func (h *Handler) newID(ctx context.Context) (string, error) {
	for {
		id, err := uuid.NewV7()
		if err != nil {
			return "", err
		}
		exists, err := h.projects.Exists(ctx, id.String())
		if err != nil {
			return "", err
		}
		if !exists {
			return id.String(), nil
		}
	}
}

// notify broadcasts the saved project to every member of its room. Failure
// only costs peers a live update; the save itself stands.
func (h *Handler) notify(r *http.Request, project *models.Project) {
	if h.relay == nil {
		return
	}
	if err := h.relay.Broadcast(r.Context(), project.ID, realtime.EventProjectUpdated, project, ""); err != nil {
		logging.From(r.Context()).Warnw("broadcast project update", "project", project.ID, "error", err)
	}
}

// Delete removes a project. Peers in the room are not notified.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	project := h.load(w, r)
	if project == nil {
		return
	}

	ctx, cancel := h.queryContext(r)
	defer cancel()

	if err := h.projects.Delete(ctx, project.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			jsonError(w, r, http.StatusNotFound, errCodeNotFound, "project not found")
			return
		}
		internalError(w, r, "delete project error", err)
		return
	}

	logging.From(r.Context()).Infow("project deleted", "project", project.ID)
	writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

// SetFavorite sets the favorite flag.
func (h *Handler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, func(p *models.Project, v bool) { p.Favorite = v })
}

// SetArchived sets the archived flag.
func (h *Handler) SetArchived(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, func(p *models.Project, v bool) { p.Archived = v })
}

func (h *Handler) setFlag(w http.ResponseWriter, r *http.Request, apply func(*models.Project, bool)) {
	var req FlagRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFlagBytes)).Decode(&req); err != nil {
		jsonError(w, r, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	project := h.load(w, r)
	if project == nil {
		return
	}

	apply(project, req.Value)
	project.UpdatedAt = h.now()

	ctx, cancel := h.queryContext(r)
	defer cancel()

	if err := h.projects.Save(ctx, project); err != nil {
		metrics.ProjectSavesTotal.WithLabelValues("error").Inc()
		internalError(w, r, "update project flag error", err)
		return
	}
	metrics.ProjectSavesTotal.WithLabelValues("updated").Inc()

	h.notify(r, project)
	jsonOK(w, r, project.Summary())
}

// Budget returns the estimated and actual budget totals.
func (h *Handler) Budget(w http.ResponseWriter, r *http.Request) {
	project := h.load(w, r)
	if project == nil {
		return
	}
	jsonOK(w, r, project.Production.BudgetSummary())
}

// Presence lists who is currently in the project's room.
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	project := h.load(w, r)
	if project == nil {
		return
	}

	entries := []realtime.PresenceEntry{}
	if h.relay != nil {
		var err error
		entries, err = h.relay.Presence(r.Context(), project.ID)
		if err != nil {
			internalError(w, r, "presence error", err)
			return
		}
	}
	jsonOK(w, r, entries)
}
