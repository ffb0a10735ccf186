package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/slate/internal/logging"
	"github.com/good-yellow-bee/slate/internal/metrics"
	"github.com/good-yellow-bee/slate/internal/models"
)

// Authenticator resolves the caller of an upgrade request.
type Authenticator interface {
	AuthenticateRequest(r *http.Request) (models.Principal, bool)
}

// AccessChecker decides whether a principal may join a project's room.
type AccessChecker interface {
	CanAccess(ctx context.Context, p models.Principal, projectID string) (bool, error)
}

// Config tunes relay connections.
type Config struct {
	SendBuffer      int
	EventsPerSecond float64
	Burst           int
	PingInterval    time.Duration
	// TrustClientIdentity lets the userEmail sent with join-project replace
	// the authenticated email as the presence label.
	TrustClientIdentity bool
	// AllowedOrigins lists accepted Origin hosts. Empty means same host only;
	// "*" accepts any.
	AllowedOrigins []string
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.SendBuffer == 0 {
		c.SendBuffer = 64
	}
	if c.EventsPerSecond == 0 {
		c.EventsPerSecond = 20
	}
	if c.Burst == 0 {
		c.Burst = 40
	}
	if c.PingInterval == 0 {
		c.PingInterval = 30 * time.Second
	}
}

// Handler upgrades authenticated requests to relay connections.
type Handler struct {
	registry *Registry
	auth     Authenticator
	access   AccessChecker
	config   Config
	upgrader websocket.Upgrader
	logger   logging.Logger

	mu      sync.Mutex
	clients map[string]*client
	closed  bool
}

// NewHandler creates the relay endpoint.
func NewHandler(registry *Registry, auth Authenticator, access AccessChecker, cfg Config) *Handler {
	cfg.SetDefaults()
	h := &Handler{
		registry: registry,
		auth:     auth,
		access:   access,
		config:   cfg,
		logger:   logging.New("realtime.handler"),
		clients:  make(map[string]*client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	registry.OnProjectUpdated(h.revalidate)
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if len(h.config.AllowedOrigins) == 0 {
		return strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.auth.AuthenticateRequest(r)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"code":    "UNAUTHORIZED",
				"message": "authentication required",
			},
		})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered the request.
		h.logger.Debugw("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newClient(conn, principal, h.config)
	if !h.track(c) {
		conn.Close()
		return
	}
	metrics.RealtimeConnections.Inc()
	c.logger.Infow("connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(logging.With(context.Background(), c.logger))
	go c.writeLoop(ctx, h.config.PingInterval)

	c.readLoop(2*h.config.PingInterval, func(msg []byte) {
		h.handleMessage(ctx, c, msg)
	})

	leaveCtx, leaveCancel := context.WithTimeout(ctx, 5*time.Second)
	h.registry.LeaveAll(leaveCtx, c)
	leaveCancel()

	h.untrack(c)
	c.close()
	cancel()
	metrics.RealtimeConnections.Dec()
	c.logger.Infow("disconnected")
}

func (h *Handler) track(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	return true
}

func (h *Handler) untrack(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
}

// Close disconnects every client and refuses new ones. Hijacked
// connections are not closed by http.Server.Shutdown.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, c := range h.clients {
		c.conn.Close()
	}
	return nil
}

// ConnectionCount returns the number of open connections.
func (h *Handler) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Handler) handleMessage(ctx context.Context, c *client, msg []byte) {
	frame, err := DecodeFrame(msg)
	if err != nil {
		h.drop(c, "malformed", "", err)
		return
	}
	if !c.limiter.Allow() {
		h.drop(c, "rate_limited", frame.Event, nil)
		return
	}

	switch frame.Event {
	case EventJoinProject:
		h.join(ctx, c, frame.Data)
	case EventLeaveProject:
		projectID, _, err := SplitProjectID(frame.Data)
		if err != nil {
			h.drop(c, "malformed", frame.Event, err)
			return
		}
		if err := h.registry.Leave(ctx, projectID, c); err != nil {
			c.logger.Warnw("leave failed", "room", projectID, "error", err)
		}
	default:
		h.relay(ctx, c, frame)
	}
}

func (h *Handler) join(ctx context.Context, c *client, data json.RawMessage) {
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ProjectID == "" {
		h.drop(c, "malformed", EventJoinProject, err)
		return
	}
	room := p.ProjectID.String()

	allowed, err := h.access.CanAccess(ctx, c.principal, room)
	if err != nil {
		c.logger.Warnw("access check failed", "room", room, "error", err)
		h.drop(c, "forbidden", EventJoinProject, err)
		return
	}
	if !allowed {
		h.drop(c, "forbidden", EventJoinProject, nil)
		return
	}

	label := c.principal.Email
	if h.config.TrustClientIdentity && strings.TrimSpace(p.UserEmail) != "" {
		label = strings.TrimSpace(p.UserEmail)
	}
	if _, err := h.registry.Join(ctx, room, c, label); err != nil {
		c.logger.Warnw("join failed", "room", room, "error", err)
	}
}

// revalidate re-runs the access check for the room's local members after a
// save and removes those who lost access, so a member dropped from the team
// stops relaying and receiving. The save that removed them is still delivered.
func (h *Handler) revalidate(room string, conns []Conn) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		for _, conn := range conns {
			c, ok := conn.(*client)
			if !ok {
				continue
			}
			allowed, err := h.access.CanAccess(ctx, c.principal, room)
			if err != nil {
				c.logger.Warnw("access recheck failed", "room", room, "error", err)
				continue
			}
			if allowed {
				continue
			}
			c.logger.Infow("access revoked", "room", room)
			if err := h.registry.Leave(ctx, room, c); err != nil {
				c.logger.Warnw("leave after revoke failed", "room", room, "error", err)
			}
		}
	}()
}

func (h *Handler) relay(ctx context.Context, c *client, frame Frame) {
	route, ok := LookupRoute(frame.Event)
	if !ok {
		h.drop(c, "unknown_event", frame.Event, nil)
		return
	}

	room, payload, err := SplitProjectID(frame.Data)
	if err != nil {
		h.drop(c, "malformed", frame.Event, err)
		return
	}
	if !h.registry.IsMember(room, c.ID()) {
		h.drop(c, "not_member", frame.Event, nil)
		return
	}

	exclude := ""
	if route.Delivery == DeliverPeers {
		exclude = c.ID()
	}
	if err := h.registry.Broadcast(ctx, room, route.Outbound, payload, exclude); err != nil {
		c.logger.Warnw("relay failed", "room", room, "event", route.Outbound, "error", err)
	}
}

// drop discards an inbound frame without telling the sender.
func (h *Handler) drop(c *client, reason, event string, err error) {
	metrics.RealtimeEventsDropped.WithLabelValues(reason).Inc()
	if !logging.Enabled(zap.DebugLevel) {
		return
	}
	fields := []any{"reason", reason, "event", event}
	if err != nil && !errors.Is(err, context.Canceled) {
		fields = append(fields, "error", err)
	}
	c.logger.Debugw("dropped frame", fields...)
}
