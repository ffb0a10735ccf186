package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Project is a planner project: dashboard metadata plus the document it owns.
// The document fields are flattened into the project's JSON so the wire shape
// is {id, title, scriptHtml, setups, schedule, team, production, ...}.
// A client-chosen id must fit in one URL path segment.
type Project struct {
	ID        string    `json:"id" validate:"omitempty,max=64,urlsafe"`
	Owner     string    `json:"owner"`
	Title     string    `json:"title" validate:"max=200"`
	Favorite  bool      `json:"favorite"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Document
}

// ProjectSummary is the metadata-only view of a project used by listings.
type ProjectSummary struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Title     string    `json:"title"`
	Favorite  bool      `json:"favorite"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary strips the document from the project.
func (p *Project) Summary() *ProjectSummary {
	return &ProjectSummary{
		ID:        p.ID,
		Owner:     p.Owner,
		Title:     p.Title,
		Favorite:  p.Favorite,
		Archived:  p.Archived,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// HasMember reports whether email owns the project or is listed in its team.
func (p *Project) HasMember(email string) bool {
	if email == "" {
		return false
	}
	if strings.EqualFold(p.Owner, email) {
		return true
	}
	for _, m := range p.Team {
		if strings.EqualFold(m.Email, email) {
			return true
		}
	}
	return false
}

// Document is the serialized aggregate stored as one blob per project.
// It is always written as a whole. Top-level keys the client sent are kept
// as sent, unknown ones included, so a fetch returns what was saved; a typed
// field changed in Go after decoding replaces its sent form.
type Document struct {
	ScriptHTML string       `json:"scriptHtml"`
	Setups     []Setup      `json:"setups" validate:"dive"`
	Schedule   []Day        `json:"schedule" validate:"dive"`
	Team       []TeamMember `json:"team" validate:"dive"`
	Production Production   `json:"production"`

	sent     map[string]json.RawMessage
	baseline map[string]json.RawMessage
}

// ShotCount returns the number of shots across all setups.
func (d *Document) ShotCount() int {
	n := 0
	for _, s := range d.Setups {
		n += len(s.Shots)
	}
	return n
}

// ScheduledShotCount returns the number of shot references across all days.
func (d *Document) ScheduledShotCount() int {
	n := 0
	for _, day := range d.Schedule {
		n += len(day.Shots)
	}
	return n
}

// Setup groups shots sharing a camera position. Shot order is significant.
type Setup struct {
	ID    ID     `json:"id,omitempty"`
	Title string `json:"title" validate:"max=200"`
	Shots []Shot `json:"shots" validate:"dive"`
}

// ShotStatus is the review state of a shot.
type ShotStatus string

const (
	ShotDraft    ShotStatus = "draft"
	ShotApproved ShotStatus = "approved"
	ShotFix      ShotStatus = "fix"
)

// Shot is one planned camera shot inside a setup.
type Shot struct {
	ID     ID         `json:"id" validate:"required"`
	Type   string     `json:"type,omitempty" validate:"max=100"`
	Angle  string     `json:"angle,omitempty" validate:"max=100"`
	Desc   string     `json:"desc,omitempty"`
	Lens   string     `json:"lens,omitempty" validate:"max=50"`
	FPS    string     `json:"fps,omitempty" validate:"max=50"`
	Time   Number     `json:"time,omitempty" validate:"gte=0"`
	Status ShotStatus `json:"status,omitempty" validate:"omitempty,oneof=draft approved fix"`
	Image  string     `json:"image,omitempty" validate:"omitempty,datauri"`
}

// Day is one shoot day on the schedule, referencing shots by id.
type Day struct {
	Title string `json:"title" validate:"max=200"`
	Shots []ID   `json:"shots"`
}

// TeamRole is a collaborator's role on a project.
type TeamRole string

const (
	TeamDirector TeamRole = "director"
	TeamWriter   TeamRole = "writer"
	TeamDP       TeamRole = "dp"
	TeamProducer TeamRole = "producer"
	TeamAD       TeamRole = "ad"
	TeamEditor   TeamRole = "editor"
	TeamViewer   TeamRole = "viewer"
)

// TeamMember is an entry in a project's roster.
type TeamMember struct {
	Email string   `json:"email" validate:"required,email"`
	Role  TeamRole `json:"role" validate:"required,oneof=director writer dp producer ad editor viewer"`
}

// NewProject creates a Project with initialized timestamps.
func NewProject(id, owner, title string) *Project {
	now := time.Now()
	return &Project{
		ID:        id,
		Owner:     owner,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
