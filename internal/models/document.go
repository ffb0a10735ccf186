package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// projectMeta is the dashboard part of a project's wire form.
type projectMeta struct {
	ID        ID        `json:"id"`
	Owner     string    `json:"owner"`
	Title     string    `json:"title"`
	Favorite  bool      `json:"favorite"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var metaKeys = []string{"id", "owner", "title", "favorite", "archived", "createdAt", "updatedAt"}

// productionAliases are the flat production keys older clients send at the
// top level instead of a nested "production" object.
var productionAliases = []string{
	"production_departments",
	"production_crew",
	"production_gear",
	"production_budget",
}

// UnmarshalJSON splits the dashboard metadata from the document keys.
// Numeric ids are accepted and held as strings.
func (p *Project) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var meta projectMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return err
	}

	*p = Project{
		ID:        meta.ID.String(),
		Owner:     meta.Owner,
		Title:     meta.Title,
		Favorite:  meta.Favorite,
		Archived:  meta.Archived,
		CreatedAt: meta.CreatedAt,
		UpdatedAt: meta.UpdatedAt,
	}
	for _, key := range metaKeys {
		delete(fields, key)
	}
	return p.Document.decode(fields)
}

// MarshalJSON writes the document keys with the metadata laid over them.
func (p Project) MarshalJSON() ([]byte, error) {
	fields, err := p.Document.encode()
	if err != nil {
		return nil, err
	}
	meta, err := json.Marshal(projectMeta{
		ID:        ID(p.ID),
		Owner:     p.Owner,
		Title:     p.Title,
		Favorite:  p.Favorite,
		Archived:  p.Archived,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}
	var metaFields map[string]json.RawMessage
	if err := json.Unmarshal(meta, &metaFields); err != nil {
		return nil, err
	}
	for k, v := range metaFields {
		fields[k] = v
	}
	return json.Marshal(fields)
}

// MarshalBlob encodes the document for storage.
func (d *Document) MarshalBlob() ([]byte, error) {
	fields, err := d.encode()
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// UnmarshalBlob decodes a stored document. An empty blob yields an empty document.
func (d *Document) UnmarshalBlob(data []byte) error {
	*d = Document{}
	if len(data) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := d.decode(fields); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

func (d *Document) typedTargets() map[string]any {
	return map[string]any{
		"scriptHtml": &d.ScriptHTML,
		"setups":     &d.Setups,
		"schedule":   &d.Schedule,
		"team":       &d.Team,
		"production": &d.Production,
	}
}

func (d *Document) aliasTargets() map[string]any {
	return map[string]any{
		"production_departments": &d.Production.Departments,
		"production_crew":        &d.Production.Crew,
		"production_gear":        &d.Production.Gear,
		"production_budget":      &d.Production.Budget,
	}
}

// decode fills the typed fields from the sent keys. A flat production key
// wins over the same list inside "production".
func (d *Document) decode(fields map[string]json.RawMessage) error {
	*d = Document{}
	for key, target := range d.typedTargets() {
		if raw, ok := fields[key]; ok {
			if err := json.Unmarshal(raw, target); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	for key, target := range d.aliasTargets() {
		if raw, ok := fields[key]; ok {
			if err := json.Unmarshal(raw, target); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}

	baseline, err := d.typedFields()
	if err != nil {
		return err
	}
	d.sent = fields
	d.baseline = baseline
	return nil
}

func (d *Document) typedFields() (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, 5)
	for key, target := range d.typedTargets() {
		data, err := json.Marshal(target)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = data
	}
	return out, nil
}

// encode returns the document's top-level keys: the sent form of every key
// whose typed value is unchanged since decoding, the typed form otherwise.
func (d *Document) encode() (map[string]json.RawMessage, error) {
	typed, err := d.typedFields()
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(d.sent)+len(typed))
	for k, v := range d.sent {
		out[k] = v
	}
	for key, data := range typed {
		if d.baseline != nil && bytes.Equal(data, d.baseline[key]) {
			continue
		}
		out[key] = data
		if key == "production" {
			for _, alias := range productionAliases {
				delete(out, alias)
			}
		}
	}
	return out, nil
}
