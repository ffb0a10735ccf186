package realtime

import (
	"context"
	"encoding/json"
	"time"
)

// Member is a presence entry: one connection's identity and color in a room.
type Member struct {
	ConnID   string    `json:"connId"`
	Email    string    `json:"email"`
	Color    string    `json:"color"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Message is a relay event addressed to a room. Exclude names a connection
// that must not receive it; it is empty for broadcast-to-all events.
type Message struct {
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	Exclude string          `json:"exclude,omitempty"`
}

// DeliverFunc hands a message to the connections held by this instance.
type DeliverFunc func(Message)

// Backend stores room presence and fans messages out to every server
// instance sharing it. Members are returned in join order.
type Backend interface {
	AddMember(ctx context.Context, room string, m Member) error
	// RemoveMember reports whether the connection was present. A room left
	// without members is deleted.
	RemoveMember(ctx context.Context, room, connID string) (bool, error)
	Members(ctx context.Context, room string) ([]Member, error)

	Publish(ctx context.Context, msg Message) error
	// Run delivers published messages to deliver until ctx is done.
	Run(ctx context.Context, deliver DeliverFunc) error
	// Ready is closed once Run is able to deliver.
	Ready() <-chan struct{}

	Ping(ctx context.Context) error
	Close() error
}
