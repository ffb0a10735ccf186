package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/slate/internal/logging"
	"github.com/good-yellow-bee/slate/internal/metrics"
)

// Conn is a connection held by this instance that the registry can deliver
// frames to. Send must not block; it reports false when the frame was
// dropped.
type Conn interface {
	ID() string
	Send(frame []byte) bool
}

// Registry owns room membership. Join, Leave and Broadcast are its only
// mutators; presence lives in the Backend, while the connections themselves
// are tracked locally.
type Registry struct {
	backend   Backend
	pickColor ColorPicker
	logger    logging.Logger

	mu sync.RWMutex
	// room -> conn id -> conn
	local map[string]map[string]Conn
	// conn id -> room -> member
	joined map[string]map[string]Member

	onUpdate func(room string, conns []Conn)
}

// Option configures a Registry.
type Option func(*Registry)

// WithColorPicker overrides how presence colors are chosen.
func WithColorPicker(p ColorPicker) Option {
	return func(r *Registry) { r.pickColor = p }
}

// NewRegistry creates a registry on the given backend.
func NewRegistry(backend Backend, opts ...Option) *Registry {
	r := &Registry{
		backend:   backend,
		pickColor: RandomColor,
		logger:    logging.New("realtime"),
		local:     make(map[string]map[string]Conn),
		joined:    make(map[string]map[string]Member),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnProjectUpdated registers fn to run after a project-updated event has
// been delivered to a room, with the room's local connections. fn runs on
// the delivery goroutine and must not block.
func (r *Registry) OnProjectUpdated(fn func(room string, conns []Conn)) {
	r.mu.Lock()
	r.onUpdate = fn
	r.mu.Unlock()
}

// Run delivers backend messages to local connections until ctx is done.
func (r *Registry) Run(ctx context.Context) error {
	return r.backend.Run(ctx, r.deliver)
}

// Ready is closed once Run can deliver messages.
func (r *Registry) Ready() <-chan struct{} {
	return r.backend.Ready()
}

// Ping checks the backend.
func (r *Registry) Ping(ctx context.Context) error {
	return r.backend.Ping(ctx)
}

// Join adds c to room under the given display identity and broadcasts the
// room's presence to every member, the joiner included. Joining a room
// twice keeps the original color.
func (r *Registry) Join(ctx context.Context, room string, c Conn, email string) (Member, error) {
	r.mu.RLock()
	m, rejoin := r.joined[c.ID()][room]
	r.mu.RUnlock()

	if !rejoin {
		m = Member{ConnID: c.ID(), Color: r.pickColor(), JoinedAt: time.Now()}
	}
	m.Email = email

	if err := r.backend.AddMember(ctx, room, m); err != nil {
		return Member{}, err
	}

	r.mu.Lock()
	conns, ok := r.local[room]
	if !ok {
		conns = make(map[string]Conn)
		r.local[room] = conns
	}
	conns[c.ID()] = c
	rooms, ok := r.joined[c.ID()]
	if !ok {
		rooms = make(map[string]Member)
		r.joined[c.ID()] = rooms
	}
	rooms[room] = m
	metrics.RealtimeRooms.Set(float64(len(r.local)))
	r.mu.Unlock()

	logging.From(ctx).Infow("joined room", "room", room, "conn", c.ID(), "email", email)

	if err := r.broadcastPresence(ctx, room); err != nil {
		return m, err
	}
	return m, nil
}

// Leave removes c from room and tells the remaining members. Leaving a room
// that c never joined is a no-op.
func (r *Registry) Leave(ctx context.Context, room string, c Conn) error {
	r.mu.Lock()
	if _, ok := r.joined[c.ID()][room]; !ok {
		r.mu.Unlock()
		return nil
	}
	r.forgetLocked(room, c.ID())
	r.mu.Unlock()

	if _, err := r.backend.RemoveMember(ctx, room, c.ID()); err != nil {
		return err
	}
	logging.From(ctx).Infow("left room", "room", room, "conn", c.ID())

	return r.broadcastPresence(ctx, room)
}

// LeaveAll removes c from every room it joined. Called on disconnect.
func (r *Registry) LeaveAll(ctx context.Context, c Conn) {
	for _, room := range r.Rooms(c.ID()) {
		if err := r.Leave(ctx, room, c); err != nil {
			r.logger.Warnw("leave on disconnect failed", "room", room, "conn", c.ID(), "error", err)
		}
	}
}

func (r *Registry) forgetLocked(room, connID string) {
	if conns, ok := r.local[room]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.local, room)
		}
	}
	if rooms, ok := r.joined[connID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.joined, connID)
		}
	}
	metrics.RealtimeRooms.Set(float64(len(r.local)))
}

// IsMember reports whether the connection has joined room.
func (r *Registry) IsMember(room, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.joined[connID][room]
	return ok
}

// Rooms lists the rooms a connection has joined.
func (r *Registry) Rooms(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]string, 0, len(r.joined[connID]))
	for room := range r.joined[connID] {
		rooms = append(rooms, room)
	}
	return rooms
}

// LocalRooms returns the number of rooms with a member on this instance.
func (r *Registry) LocalRooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.local)
}

// Presence returns the room's members in join order.
func (r *Registry) Presence(ctx context.Context, room string) ([]PresenceEntry, error) {
	members, err := r.backend.Members(ctx, room)
	if err != nil {
		return nil, err
	}
	entries := make([]PresenceEntry, len(members))
	for i, m := range members {
		entries[i] = PresenceEntry{Email: m.Email, Color: m.Color}
	}
	return entries, nil
}

func (r *Registry) broadcastPresence(ctx context.Context, room string) error {
	entries, err := r.Presence(ctx, room)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	return r.Broadcast(ctx, room, EventRoomUsersUpdate, entries, "")
}

// Broadcast sends event to every member of room except the connection named
// by exclude. Pass an empty exclude to reach everyone.
func (r *Registry) Broadcast(ctx context.Context, room, event string, data any, exclude string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	msg := Message{Room: room, Event: event, Data: raw, Exclude: exclude}
	if err := r.backend.Publish(ctx, msg); err != nil {
		return err
	}
	metrics.RealtimeEventsRelayed.WithLabelValues(event).Inc()
	return nil
}

func (r *Registry) deliver(msg Message) {
	frame, err := EncodeFrame(msg.Event, msg.Data)
	if err != nil {
		r.logger.Warnw("dropping unencodable message", "event", msg.Event, "error", err)
		return
	}

	r.mu.RLock()
	targets := make([]Conn, 0, len(r.local[msg.Room]))
	for id, c := range r.local[msg.Room] {
		if id != msg.Exclude {
			targets = append(targets, c)
		}
	}
	var members []Conn
	onUpdate := r.onUpdate
	if msg.Event == EventProjectUpdated && onUpdate != nil {
		for _, c := range r.local[msg.Room] {
			members = append(members, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range targets {
		if !c.Send(frame) {
			metrics.RealtimeEventsDropped.WithLabelValues("buffer_full").Inc()
			if logging.Enabled(zap.DebugLevel) {
				r.logger.Debugw("send buffer full", "room", msg.Room, "conn", c.ID(), "event", msg.Event)
			}
		}
	}

	if len(members) > 0 {
		onUpdate(msg.Room, members)
	}
}
