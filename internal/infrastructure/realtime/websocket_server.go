package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
	"livegate/internal/core/services"
	"livegate/pkg/config"
	apperrors "livegate/pkg/errors"
	"livegate/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Server is the viewer-facing realtime transport. Every websocket
// connection gets a coordinator connection ID, a read loop and a single
// writer goroutine draining a buffered queue, so events enqueued by the
// coordinator reach the wire in enqueue order.
type Server struct {
	ids         ports.IdentityProvider
	coordinator *services.Coordinator
	registry    ports.SessionRegistry
	rooms       ports.RoomManager
	broadcaster ports.Broadcaster
	states      ports.StateMachine

	clients map[domain.ConnectionID]*client
	mu      sync.RWMutex

	cfg      config.RealtimeConfig
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
}

// Envelope is the client-to-server message frame. Responses mirror the
// request type with a "-result" suffix and echo request_id.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type result struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Success   bool   `json:"success"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
	Data      any    `json:"data,omitempty"`
}

type client struct {
	connID   domain.ConnectionID
	conn     *websocket.Conn
	send     chan []byte
	quit     chan struct{}
	once     sync.Once
	limiter  *rate.Limiter
	identity *domain.Identity

	cancel context.CancelFunc
}

func (c *client) close() {
	c.once.Do(func() { close(c.quit) })
}

func NewServer(
	ids ports.IdentityProvider,
	cfg config.RealtimeConfig,
	allowedOrigins []string,
	logger *zap.SugaredLogger,
) *Server {
	return &Server{
		ids:     ids,
		clients: make(map[domain.ConnectionID]*client),
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

// Bind wires the coordinator services. The server is the event sink those
// services fan out through, so it is constructed first and bound once the
// services exist. Must be called before serving connections.
func (s *Server) Bind(
	coordinator *services.Coordinator,
	registry ports.SessionRegistry,
	rooms ports.RoomManager,
	broadcaster ports.Broadcaster,
	states ports.StateMachine,
) {
	s.coordinator = coordinator
	s.registry = registry
	s.rooms = rooms
	s.broadcaster = broadcaster
	s.states = states
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

var _ ports.EventSink = (*Server)(nil)

func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		connID:  domain.ConnectionID(utils.GenerateConnectionID()),
		conn:    conn,
		send:    make(chan []byte, s.cfg.SendQueueSize),
		quit:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), s.cfg.MessageBurst),
		cancel:  cancel,
	}

	s.mu.Lock()
	s.clients[c.connID] = c
	s.mu.Unlock()

	s.logger.Infow("viewer connected", "connection_id", c.connID, "remote_addr", r.RemoteAddr)

	go s.writePump(c)
	s.readPump(ctx, c, r)

	// Cancel first so an in-flight authorization result gets discarded
	// rather than registered for a connection that no longer exists.
	cancel()
	s.mu.Lock()
	delete(s.clients, c.connID)
	s.mu.Unlock()
	c.close()
	conn.Close()

	s.coordinator.OnDisconnect(context.Background(), c.connID)
	s.logger.Infow("viewer disconnected", "connection_id", c.connID)
}

func (s *Server) readPump(ctx context.Context, c *client, r *http.Request) {
	c.conn.SetReadLimit(s.cfg.MaxMessageSizeBytes)
	c.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		return nil
	})

	meta := domain.ConnMeta{
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	}

	for {
		var msg Envelope
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("read error", "connection_id", c.connID, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))

		if err := s.handleMessage(ctx, c, meta, msg); err != nil {
			s.respondError(c, msg, err)
		}
	}
}

// writePump is the only goroutine writing to the connection. Ping frames
// interleave with queued events; either failing ends the connection.
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.conn.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		case <-c.quit:
			c.conn.Close()
			return
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, c *client, meta domain.ConnMeta, msg Envelope) error {
	if msg.Type == "" {
		return apperrors.NewInvalidInput("message type is required")
	}

	switch msg.Type {
	case "authenticate":
		return s.handleAuthenticate(ctx, c, msg)
	case "join-stream":
		return s.handleJoin(ctx, c, meta, msg)
	case "leave-stream":
		return s.handleLeave(ctx, c, msg)
	case "chat-message":
		return s.handleChat(ctx, c, msg)
	case "send-reaction":
		return s.handleReaction(ctx, c, msg)
	case "update-metadata":
		return s.handleMetadataUpdate(ctx, c, msg)
	default:
		return apperrors.NewInvalidInput(fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (s *Server) handleAuthenticate(ctx context.Context, c *client, msg Envelope) error {
	var payload struct {
		Credential string `json:"credential"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return apperrors.NewInvalidInput("invalid authenticate payload")
	}

	principal, err := s.ids.VerifyCredential(ctx, payload.Credential)
	if err != nil {
		return err
	}
	identity, err := s.ids.GetIdentity(ctx, principal.ID)
	if err != nil {
		return err
	}
	if identity.Username == "" {
		identity.Username = principal.Username
	}
	c.identity = identity

	s.respond(c, msg, map[string]any{
		"user_id":  identity.ID,
		"username": identity.Username,
		"role":     identity.Role,
	})
	return nil
}

func (s *Server) handleJoin(ctx context.Context, c *client, meta domain.ConnMeta, msg Envelope) error {
	var payload struct {
		StreamKey domain.StreamKey `json:"stream_key"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.StreamKey == "" {
		return apperrors.NewInvalidInput("stream_key is required")
	}

	// Access is checked inside Join, before any room state changes.
	countEvent, err := s.rooms.Join(ctx, c.connID, payload.StreamKey, c.identity)
	if err != nil {
		return err
	}

	// A late join result for a closed connection must not leave a session
	// behind.
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.registry.RegisterPlay(payload.StreamKey, c.identity, meta, c.connID)

	status := domain.StatusIdle
	if st, ok := s.states.Current(payload.StreamKey); ok {
		status = st.Status
	}
	s.respond(c, msg, map[string]any{
		"stream_key":   payload.StreamKey,
		"status":       status,
		"viewer_count": countEvent.Count,
	})
	return nil
}

func (s *Server) handleLeave(ctx context.Context, c *client, msg Envelope) error {
	var payload struct {
		StreamKey domain.StreamKey `json:"stream_key"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.StreamKey == "" {
		return apperrors.NewInvalidInput("stream_key is required")
	}

	if err := s.rooms.Leave(ctx, c.connID, payload.StreamKey); err != nil {
		return err
	}
	s.respond(c, msg, nil)
	return nil
}

func (s *Server) handleChat(ctx context.Context, c *client, msg Envelope) error {
	if !c.limiter.Allow() {
		return apperrors.NewRateLimit()
	}

	var payload struct {
		StreamKey domain.StreamKey `json:"stream_key"`
		Message   string           `json:"message"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.StreamKey == "" {
		return apperrors.NewInvalidInput("stream_key is required")
	}

	event, err := s.broadcaster.ChatMessage(ctx, c.connID, payload.StreamKey, payload.Message)
	if err != nil {
		return err
	}
	s.respond(c, msg, map[string]any{"sent_at": event.SentAt})
	return nil
}

func (s *Server) handleReaction(ctx context.Context, c *client, msg Envelope) error {
	if !c.limiter.Allow() {
		return apperrors.NewRateLimit()
	}

	var payload struct {
		StreamKey domain.StreamKey `json:"stream_key"`
		Kind      string           `json:"kind"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.StreamKey == "" {
		return apperrors.NewInvalidInput("stream_key is required")
	}

	if _, err := s.broadcaster.Reaction(ctx, c.connID, payload.StreamKey, payload.Kind); err != nil {
		return err
	}
	s.respond(c, msg, nil)
	return nil
}

func (s *Server) handleMetadataUpdate(ctx context.Context, c *client, msg Envelope) error {
	var payload struct {
		StreamKey domain.StreamKey `json:"stream_key"`
		Media     domain.MediaMeta `json:"media"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.StreamKey == "" {
		return apperrors.NewInvalidInput("stream_key is required")
	}

	if c.identity == nil || !c.identity.CanPublish(payload.StreamKey) {
		return fmt.Errorf("metadata update requires the stream owner: %w", domain.ErrNotAuthorized)
	}

	if err := s.coordinator.OnMetadataUpdate(ctx, payload.StreamKey, &payload.Media); err != nil {
		return err
	}
	s.respond(c, msg, nil)
	return nil
}

// SendTo enqueues an event for one connection. A connection whose queue is
// full is a slow consumer and gets closed; blocking here would stall a
// room-wide fan-out holding the room lock.
func (s *Server) SendTo(connID domain.ConnectionID, event any) {
	s.mu.RLock()
	c, ok := s.clients[connID]
	s.mu.RUnlock()
	if !ok {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Errorw("event marshal failed", "connection_id", connID, "error", err)
		return
	}

	select {
	case c.send <- data:
	default:
		s.logger.Warnw("send queue full, dropping slow consumer", "connection_id", connID)
		c.close()
	}
}

func (s *Server) SendAll(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Errorw("event marshal failed", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for connID, c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.logger.Warnw("send queue full, dropping slow consumer", "connection_id", connID)
			c.close()
		}
	}
}

func (s *Server) ConnectedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close terminates every client connection. Read loops then unwind through
// the normal disconnect path.
func (s *Server) Close() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		c.cancel()
		c.close()
	}
}

func (s *Server) respond(c *client, msg Envelope, data any) {
	s.enqueue(c, result{
		Type:      msg.Type + "-result",
		RequestID: msg.RequestID,
		Success:   true,
		Data:      data,
	})
}

func (s *Server) respondError(c *client, msg Envelope, err error) {
	appErr := toAppError(err)
	s.enqueue(c, result{
		Type:      msg.Type + "-result",
		RequestID: msg.RequestID,
		Success:   false,
		Code:      string(appErr.Code),
		Error:     appErr.Message,
	})
}

func (s *Server) enqueue(c *client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		c.close()
	}
}
