package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestProject_UnmarshalFlexibleFields(t *testing.T) {
	body := `{
		"id": null,
		"title": "Pilot",
		"setups": [{"title": "A", "shots": [{"id": 1, "type": "Wide", "desc": "intro", "time": 10}]}],
		"schedule": [{"title": "DAY 1", "shots": ["1"]}]
	}`

	var p Project
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if p.ID != "" {
		t.Errorf("ID = %q, want empty", p.ID)
	}
	if p.Title != "Pilot" {
		t.Errorf("Title = %q, want Pilot", p.Title)
	}
	if len(p.Setups) != 1 || len(p.Setups[0].Shots) != 1 {
		t.Fatalf("setups = %+v, want one setup with one shot", p.Setups)
	}
	shot := p.Setups[0].Shots[0]
	if shot.ID != "1" {
		t.Errorf("shot.ID = %q, want %q", shot.ID, "1")
	}
	if shot.Time != 10 {
		t.Errorf("shot.Time = %v, want 10", shot.Time)
	}
	if p.ScheduledShotCount() != 1 {
		t.Errorf("ScheduledShotCount() = %d, want 1", p.ScheduledShotCount())
	}
}

func compact(t *testing.T, raw []byte) string {
	t.Helper()
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		t.Fatalf("compact %s: %v", raw, err)
	}
	return buf.String()
}

func TestProject_MarshalKeepsClientEncoding(t *testing.T) {
	body := `{"id":7,"title":"Pilot","owner":"dir@example.com",
		"setups":[{"title":"A","shots":[{"id":1,"type":"Wide","time":"10","take":2}]}],
		"moodboard":["a.png"]}`

	var p Project
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if p.ID != "7" {
		t.Errorf("ID = %q, want 7", p.ID)
	}

	out, err := json.Marshal(&p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("decode output: %v", err)
	}

	if got := compact(t, fields["setups"]); got != `[{"title":"A","shots":[{"id":1,"type":"Wide","time":"10","take":2}]}]` {
		t.Errorf("setups = %s", got)
	}
	if got := compact(t, fields["moodboard"]); got != `["a.png"]` {
		t.Errorf("moodboard = %s", got)
	}
	if string(fields["id"]) != `"7"` {
		t.Errorf("id = %s, want the stored string id", fields["id"])
	}
	if _, ok := fields["team"]; ok {
		t.Error("keys the client never sent should stay absent")
	}
}

func TestProject_TypedEditReplacesSentForm(t *testing.T) {
	var p Project
	body := `{"title":"Pilot","setups":[{"title":"A","shots":[{"id":1}]}],"team":[{"email":"a@example.com","role":"writer"}]}`
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	p.Team = append(p.Team, TeamMember{Email: "b@example.com", Role: TeamDP})

	blob, err := p.MarshalBlob()
	if err != nil {
		t.Fatalf("MarshalBlob() error = %v", err)
	}
	var got Document
	if err := got.UnmarshalBlob(blob); err != nil {
		t.Fatalf("UnmarshalBlob() error = %v", err)
	}
	if len(got.Team) != 2 || got.Team[1].Email != "b@example.com" {
		t.Errorf("team = %+v, want the edit kept", got.Team)
	}
	if !strings.Contains(string(blob), `"shots":[{"id":1}]`) {
		t.Errorf("untouched setups lost their sent form: %s", blob)
	}
	if strings.Contains(string(blob), `"title":"Pilot"`) {
		t.Errorf("metadata leaked into the document blob: %s", blob)
	}
}

func TestProject_FlatProductionKeys(t *testing.T) {
	body := `{
		"production":{"crew":[{"id":"old","name":"Old"}],"gear":[{"id":"g1","name":"Dolly"}]},
		"production_crew":[{"id":"c1","name":"Ann","deptId":"d2","rate":"350"}],
		"production_budget":[{"id":"b1","desc":"Rental","estCost":"1000","actCost":800}],
		"production_departments":[{"id":"d2","title":"Camera"}]
	}`
	var p Project
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if len(p.Production.Crew) != 1 || p.Production.Crew[0].Name != "Ann" {
		t.Errorf("crew = %+v, want the flat list to win", p.Production.Crew)
	}
	if len(p.Production.Gear) != 1 {
		t.Errorf("gear = %+v, want the nested list kept", p.Production.Gear)
	}
	if got := p.Production.CrewInDepartment("d2"); len(got) != 1 {
		t.Errorf("CrewInDepartment(d2) = %+v", got)
	}
	if s := p.Production.BudgetSummary(); s.TotalEstimated != 1000 || s.TotalActual != 800 {
		t.Errorf("budget = %+v", s)
	}

	out, err := json.Marshal(&p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(out), `"production_crew":[{"id":"c1","name":"Ann","deptId":"d2","rate":"350"}]`) {
		t.Errorf("flat keys not returned as sent: %s", out)
	}

	// Once the typed production changes the flat copies would be stale.
	p.Production.Crew = nil
	out, err = json.Marshal(&p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(out), "production_crew") {
		t.Errorf("stale flat keys kept after an edit: %s", out)
	}
}

func TestNumber_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    Number
		wantErr bool
	}{
		{`10`, 10, false},
		{`10.5`, 10.5, false},
		{`"12"`, 12, false},
		{`" 3.25 "`, 3.25, false},
		{`""`, 0, false},
		{`null`, 0, false},
		{`"ten"`, 0, true},
		{`true`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var n Number
			err := json.Unmarshal([]byte(tt.in), &n)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && n != tt.want {
				t.Errorf("Unmarshal(%s) = %v, want %v", tt.in, n, tt.want)
			}
		})
	}
}

func TestID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    ID
		wantErr bool
	}{
		{`"s1"`, "s1", false},
		{`1700000000000`, "1700000000000", false},
		{`null`, "", false},
		{`{}`, "", true},
	}

	for _, tt := range tests {
		var id ID
		err := json.Unmarshal([]byte(tt.in), &id)
		if (err != nil) != tt.wantErr {
			t.Errorf("Unmarshal(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if id != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.in, id, tt.want)
		}
	}
}

func TestDocument_BlobRoundTrip(t *testing.T) {
	doc := Document{
		ScriptHTML: "<p>INT. HOUSE</p>",
		Setups:     []Setup{{Title: "A", Shots: []Shot{{ID: "1", Type: "Wide", Status: ShotApproved}}}},
		Team:       []TeamMember{{Email: "dir@example.com", Role: TeamDirector}},
	}

	blob, err := doc.MarshalBlob()
	if err != nil {
		t.Fatalf("MarshalBlob() error = %v", err)
	}

	var got Document
	if err := got.UnmarshalBlob(blob); err != nil {
		t.Fatalf("UnmarshalBlob() error = %v", err)
	}
	if got.ScriptHTML != doc.ScriptHTML || got.ShotCount() != 1 || got.Setups[0].Shots[0].Status != ShotApproved {
		t.Errorf("round trip mismatch: %+v", got)
	}

	var empty Document
	if err := empty.UnmarshalBlob(nil); err != nil {
		t.Errorf("UnmarshalBlob(nil) error = %v", err)
	}
}

func TestProject_Validate(t *testing.T) {
	valid := func() *Project {
		return &Project{
			Title: "Pilot",
			Document: Document{
				Setups: []Setup{{Title: "A", Shots: []Shot{{ID: "1", Status: ShotDraft, Image: "data:image/png;base64,iVBORw0KGgo="}}}},
				Team:   []TeamMember{{Email: "dp@example.com", Role: TeamDP}},
			},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Validate() on valid project error = %v", err)
	}
	for _, id := range []string{"1760000000000", "0190c7a4-6b1e-7c3d-9f2a-1b2c3d4e5f60", "pilot_v2.final"} {
		p := valid()
		p.ID = id
		if err := p.Validate(); err != nil {
			t.Errorf("Validate() with id %q error = %v", id, err)
		}
	}

	tests := []struct {
		name     string
		mutate   func(p *Project)
		wantPath string
	}{
		{"bad status", func(p *Project) { p.Setups[0].Shots[0].Status = "maybe" }, "setups[0].shots[0].status"},
		{"missing shot id", func(p *Project) { p.Setups[0].Shots[0].ID = "" }, "setups[0].shots[0].id"},
		{"image not data uri", func(p *Project) { p.Setups[0].Shots[0].Image = "http://example.com/a.png" }, "setups[0].shots[0].image"},
		{"bad team role", func(p *Project) { p.Team[0].Role = "caterer" }, "team[0].role"},
		{"bad team email", func(p *Project) { p.Team[0].Email = "not-an-email" }, "team[0].email"},
		{"negative time", func(p *Project) { p.Setups[0].Shots[0].Time = -1 }, "setups[0].shots[0].time"},
		{"title too long", func(p *Project) { p.Title = strings.Repeat("x", 201) }, "title"},
		{"id with slash", func(p *Project) { p.ID = "a/b" }, "id"},
		{"id with query", func(p *Project) { p.ID = "a?b" }, "id"},
		{"id too long", func(p *Project) { p.ID = strings.Repeat("x", 65) }, "id"},
		{"budget missing desc", func(p *Project) {
			p.Production.Budget = []BudgetLine{{ID: "b1"}}
		}, "production.budget[0].desc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)

			err := p.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			found := false
			for _, f := range verr.Fields {
				if f.Path == tt.wantPath {
					found = true
				}
			}
			if !found {
				t.Errorf("Validate() fields = %+v, want path %q", verr.Fields, tt.wantPath)
			}
		})
	}
}

func TestProject_HasMember(t *testing.T) {
	p := &Project{
		Owner:    "owner@example.com",
		Document: Document{Team: []TeamMember{{Email: "Writer@Example.com", Role: TeamWriter}}},
	}

	if !p.HasMember("owner@example.com") {
		t.Error("owner should be a member")
	}
	if !p.HasMember("writer@example.com") {
		t.Error("team member should match case-insensitively")
	}
	if p.HasMember("stranger@example.com") {
		t.Error("stranger should not be a member")
	}
	if p.HasMember("") {
		t.Error("empty email should not be a member")
	}
}

func TestProduction_BudgetSummary(t *testing.T) {
	prod := Production{Budget: []BudgetLine{
		{ID: "1", Desc: "Camera rental", Category: "Equipment", EstCost: 500, ActCost: 450},
		{ID: "2", Desc: "Lunch", Category: "Production", EstCost: 200, ActCost: 260},
		{ID: "3", Desc: "Misc", EstCost: 50},
	}}

	s := prod.BudgetSummary()
	if s.TotalEstimated != 750 {
		t.Errorf("TotalEstimated = %v, want 750", s.TotalEstimated)
	}
	if s.TotalActual != 710 {
		t.Errorf("TotalActual = %v, want 710", s.TotalActual)
	}
	if s.Remaining != 40 {
		t.Errorf("Remaining = %v, want 40", s.Remaining)
	}
	if s.ByCategory["Production"] != 260 {
		t.Errorf("ByCategory[Production] = %v, want 260", s.ByCategory["Production"])
	}
	if _, ok := s.ByCategory["Uncategorized"]; !ok {
		t.Error("uncategorized line should be grouped")
	}
	if s.Lines != 3 {
		t.Errorf("Lines = %d, want 3", s.Lines)
	}
}

func TestProduction_CrewInDepartment(t *testing.T) {
	prod := Production{Crew: []CrewMember{
		{ID: "c1", Name: "Ana", DeptID: "d2"},
		{ID: "c2", Name: "Ben", DeptID: "d1"},
		{ID: "c3", Name: "Cy", DeptID: "d2"},
	}}

	got := prod.CrewInDepartment("d2")
	if len(got) != 2 || got[0].Name != "Ana" || got[1].Name != "Cy" {
		t.Errorf("CrewInDepartment(d2) = %+v", got)
	}
}
