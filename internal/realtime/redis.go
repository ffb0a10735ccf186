package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/good-yellow-bee/slate/internal/logging"
)

const (
	defaultRedisPrefix  = "slate"
	defaultPresenceTTL  = 24 * time.Hour
	redisCommandTimeout = 3 * time.Second
)

// RedisBackend shares presence between server instances in one hash per
// room and fans messages out over a single pub/sub channel. Every instance,
// the publisher included, receives each message and delivers it to its own
// connections.
type RedisBackend struct {
	client      *redis.Client
	prefix      string
	presenceTTL time.Duration
	logger      logging.Logger

	ready chan struct{}
	once  sync.Once
}

// NewRedisBackend creates a backend on an existing client. The client is
// owned by the caller.
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisBackend{
		client:      client,
		prefix:      prefix,
		presenceTTL: defaultPresenceTTL,
		logger:      logging.New("realtime.redis"),
		ready:       make(chan struct{}),
	}
}

func (b *RedisBackend) presenceKey(room string) string {
	return b.prefix + ":room:" + room + ":presence"
}

func (b *RedisBackend) channel() string {
	return b.prefix + ":relay"
}

// AddMember records m and refreshes the room's expiry, so presence left
// behind by a crashed instance eventually disappears.
func (b *RedisBackend) AddMember(ctx context.Context, room string, m Member) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, redisCommandTimeout)
	defer cancel()

	key := b.presenceKey(room)
	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, key, m.ConnID, payload)
	pipe.Expire(ctx, key, b.presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add member to %s: %w", room, err)
	}
	return nil
}

// RemoveMember deletes the connection's entry. Redis drops the hash itself
// once its last field is gone.
func (b *RedisBackend) RemoveMember(ctx context.Context, room, connID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisCommandTimeout)
	defer cancel()

	n, err := b.client.HDel(ctx, b.presenceKey(room), connID).Result()
	if err != nil {
		return false, fmt.Errorf("remove member from %s: %w", room, err)
	}
	return n > 0, nil
}

func (b *RedisBackend) Members(ctx context.Context, room string) ([]Member, error) {
	ctx, cancel := context.WithTimeout(ctx, redisCommandTimeout)
	defer cancel()

	fields, err := b.client.HGetAll(ctx, b.presenceKey(room)).Result()
	if err != nil {
		return nil, fmt.Errorf("members of %s: %w", room, err)
	}

	members := make([]Member, 0, len(fields))
	for connID, raw := range fields {
		var m Member
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			b.logger.Warnw("skipping corrupt presence entry", "room", room, "conn", connID, "error", err)
			continue
		}
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].ConnID < members[j].ConnID
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return members, nil
}

func (b *RedisBackend) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, redisCommandTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel(), payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.Room, err)
	}
	return nil
}

// Run subscribes to the relay channel and delivers until ctx is done.
func (b *RedisBackend) Run(ctx context.Context, deliver DeliverFunc) error {
	sub := b.client.Subscribe(ctx, b.channel())
	defer sub.Close()

	// Wait for the subscription confirmation so nothing published after
	// Ready is missed.
	if _, err := sub.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", b.channel(), err)
	}
	b.once.Do(func() { close(b.ready) })
	b.logger.Infof("subscribed to %s", b.channel())

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.logger.Warnw("dropping undecodable relay message", "error", err)
				continue
			}
			deliver(msg)
		}
	}
}

func (b *RedisBackend) Ready() <-chan struct{} {
	return b.ready
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Close() error {
	return nil
}
