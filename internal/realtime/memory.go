package realtime

import (
	"context"
	"errors"
	"sync"
)

// ErrNotRunning is returned by Publish before the backend's Run loop started.
var ErrNotRunning = errors.New("realtime backend is not running")

// MemoryBackend keeps presence in process memory and delivers published
// messages synchronously. It serves a single server instance.
type MemoryBackend struct {
	mu      sync.Mutex
	rooms   map[string][]Member
	deliver DeliverFunc
	ready   chan struct{}
	once    sync.Once
}

// NewMemoryBackend creates an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		rooms: make(map[string][]Member),
		ready: make(chan struct{}),
	}
}

// AddMember appends m to the room, replacing an earlier entry for the same
// connection in place.
func (b *MemoryBackend) AddMember(_ context.Context, room string, m Member) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	members := b.rooms[room]
	for i := range members {
		if members[i].ConnID == m.ConnID {
			members[i] = m
			return nil
		}
	}
	b.rooms[room] = append(members, m)
	return nil
}

func (b *MemoryBackend) RemoveMember(_ context.Context, room, connID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	members, ok := b.rooms[room]
	if !ok {
		return false, nil
	}
	for i := range members {
		if members[i].ConnID != connID {
			continue
		}
		members = append(members[:i], members[i+1:]...)
		if len(members) == 0 {
			delete(b.rooms, room)
		} else {
			b.rooms[room] = members
		}
		return true, nil
	}
	return false, nil
}

func (b *MemoryBackend) Members(_ context.Context, room string) ([]Member, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	members := b.rooms[room]
	out := make([]Member, len(members))
	copy(out, members)
	return out, nil
}

// RoomCount returns the number of non-empty rooms.
func (b *MemoryBackend) RoomCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rooms)
}

func (b *MemoryBackend) Publish(_ context.Context, msg Message) error {
	b.mu.Lock()
	deliver := b.deliver
	b.mu.Unlock()

	if deliver == nil {
		return ErrNotRunning
	}
	deliver(msg)
	return nil
}

func (b *MemoryBackend) Run(ctx context.Context, deliver DeliverFunc) error {
	b.mu.Lock()
	b.deliver = deliver
	b.mu.Unlock()
	b.once.Do(func() { close(b.ready) })

	<-ctx.Done()

	b.mu.Lock()
	b.deliver = nil
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) Ready() <-chan struct{} {
	return b.ready
}

func (b *MemoryBackend) Ping(context.Context) error {
	return nil
}

func (b *MemoryBackend) Close() error {
	return nil
}
