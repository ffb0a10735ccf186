// Package realtime implements the project room relay: connections join rooms
// keyed by project id, edits are fanned out to the other members, and the
// registry tracks who is present in each room.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/good-yellow-bee/slate/internal/models"
)

// Control events.
const (
	EventJoinProject     = "join-project"
	EventLeaveProject    = "leave-project"
	EventRoomUsersUpdate = "room-users-update"
	EventProjectUpdated  = "project-updated"
)

// Delivery selects who in a room receives a relayed event.
type Delivery int

const (
	// DeliverPeers sends to every member except the sender.
	DeliverPeers Delivery = iota
	// DeliverAll sends to every member including the sender.
	DeliverAll
)

func (d Delivery) String() string {
	if d == DeliverAll {
		return "all"
	}
	return "peers"
}

// Route maps an inbound event to the event peers receive.
type Route struct {
	Outbound string
	Delivery Delivery
}

var routes = map[string]Route{
	"script-change":    {Outbound: "script-changed", Delivery: DeliverPeers},
	"shot-data-change": {Outbound: "shot-data-changed", Delivery: DeliverPeers},
	"shot-update":      {Outbound: "shot-updated", Delivery: DeliverPeers},
	"new-shot":         {Outbound: "shot-created", Delivery: DeliverPeers},
	"delete-shot":      {Outbound: "shot-deleted", Delivery: DeliverPeers},
	"new-setup":        {Outbound: "setup-created", Delivery: DeliverPeers},
	"delete-setup":     {Outbound: "setup-deleted", Delivery: DeliverPeers},
	"schedule-update":  {Outbound: "schedule-updated", Delivery: DeliverPeers},
	"new-comment":      {Outbound: "comment-received", Delivery: DeliverAll},
}

// LookupRoute returns the route for an inbound relay event.
func LookupRoute(event string) (Route, bool) {
	r, ok := routes[event]
	return r, ok
}

var (
	// ErrMalformedFrame is returned for frames that are not a JSON envelope
	// with an object payload.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrMissingProjectID is returned when a payload names no project.
	ErrMissingProjectID = errors.New("payload has no projectId")
)

// Frame is the envelope used in both directions on the socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeFrame marshals an outbound frame.
func EncodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// DecodeFrame parses an inbound frame.
func DecodeFrame(msg []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Event == "" {
		return Frame{}, fmt.Errorf("%w: no event name", ErrMalformedFrame)
	}
	return f, nil
}

// SplitProjectID extracts projectId from an object payload and returns the
// remaining fields. The id may be a JSON string or number.
func SplitProjectID(data json.RawMessage) (string, json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return "", nil, ErrMalformedFrame
	}

	raw, ok := fields["projectId"]
	if !ok {
		return "", nil, ErrMissingProjectID
	}
	var id models.ID
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", nil, fmt.Errorf("%w: projectId: %v", ErrMalformedFrame, err)
	}
	if id == "" {
		return "", nil, ErrMissingProjectID
	}

	delete(fields, "projectId")
	rest, err := json.Marshal(fields)
	if err != nil {
		return "", nil, err
	}
	return id.String(), rest, nil
}

type joinPayload struct {
	ProjectID models.ID `json:"projectId"`
	UserEmail string    `json:"userEmail"`
}

// PresenceEntry is one line of a room-users-update broadcast.
type PresenceEntry struct {
	Email string `json:"email"`
	Color string `json:"color"`
}
