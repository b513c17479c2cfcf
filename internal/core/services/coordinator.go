package services

import (
	"context"
	"fmt"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"

	"go.uber.org/zap"
)

// Coordinator is the ingest-facing surface of the stream session
// coordinator. It reconciles publish/play lifecycle events from the ingest
// protocol layer with the session registry and state machine.
//
// Authorization happens before any session or state mutation, with no
// exclusion held during the identity I/O. Callers pass a connection-scoped
// context: when the connection closes while authorization is in flight, the
// late result is discarded and no session is registered.
type Coordinator struct {
	gate     ports.AuthGate
	registry ports.SessionRegistry
	states   ports.StateMachine
	rooms    ports.RoomManager
	recorder *RecordingCoordinator
	metrics  ports.Collector
	logger   *zap.SugaredLogger
}

func NewCoordinator(
	gate ports.AuthGate,
	registry ports.SessionRegistry,
	states ports.StateMachine,
	rooms ports.RoomManager,
	recorder *RecordingCoordinator,
	metrics ports.Collector,
	logger *zap.SugaredLogger,
) *Coordinator {
	return &Coordinator{
		gate:     gate,
		registry: registry,
		states:   states,
		rooms:    rooms,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger,
	}
}

// AuthorizePublish admits a publish connection. On success a publish session
// is registered and the stream transitions to Starting.
func (c *Coordinator) AuthorizePublish(ctx context.Context, connID domain.ConnectionID, key domain.StreamKey, credential string, conn domain.ConnMeta) error {
	identity, err := c.gate.AuthenticatePublish(ctx, key, credential)
	if err != nil {
		c.metrics.RecordAuthFailure("publish")
		c.logger.Warnw("publish authorization rejected", "stream_key", key, "connection_id", connID, "error", err)
		return err
	}

	// The identity lookup may have outlived the connection.
	if ctx.Err() != nil {
		c.logger.Infow("discarding authorization result for closed connection",
			"stream_key", key, "connection_id", connID)
		return fmt.Errorf("connection closed during authorization: %w", ctx.Err())
	}

	if _, err := c.registry.RegisterPublish(key, identity, conn, connID); err != nil {
		c.logger.Warnw("publish rejected", "stream_key", key, "connection_id", connID, "error", err)
		return err
	}

	if st := c.states.OnPublishBegin(ctx, key, identity); st.Status != domain.StatusStarting {
		// a racing publish won the state machine; roll the session back
		c.registry.Remove(connID)
		return fmt.Errorf("stream %s is %s: %w", key, st.Status, domain.ErrPublishConflict)
	}

	c.logger.Infow("publish authorized", "stream_key", key, "connection_id", connID, "owner", identity.ID)
	return nil
}

// AuthorizePlay admits a play connection on the ingest protocol.
func (c *Coordinator) AuthorizePlay(ctx context.Context, connID domain.ConnectionID, key domain.StreamKey, credential string, conn domain.ConnMeta) error {
	identity, err := c.gate.AuthenticatePlay(ctx, key, credential)
	if err != nil {
		c.metrics.RecordAuthFailure("play")
		c.logger.Warnw("play authorization rejected", "stream_key", key, "connection_id", connID, "error", err)
		return err
	}

	if ctx.Err() != nil {
		c.logger.Infow("discarding authorization result for closed connection",
			"stream_key", key, "connection_id", connID)
		return fmt.Errorf("connection closed during authorization: %w", ctx.Err())
	}

	c.registry.RegisterPlay(key, identity, conn, connID)
	return nil
}

// OnPublishConfirmed marks the stream Live once the ingest layer has seen
// actual media, and records the reported metadata.
func (c *Coordinator) OnPublishConfirmed(ctx context.Context, key domain.StreamKey, media *domain.MediaMeta) error {
	sess, ok := c.registry.FindPublish(key)
	if !ok {
		return fmt.Errorf("no publish session for %s: %w", key, domain.ErrSessionNotFound)
	}
	sess.Media = media

	if st := c.states.OnPublishConfirmed(ctx, key, media); st.Status != domain.StatusLive {
		return fmt.Errorf("stream %s not in starting state (now %s)", key, st.Status)
	}
	return nil
}

// OnPublishEnd ends the stream gracefully. Idempotent: a second call (or a
// racing disconnect) returns the same ended state and emits nothing.
func (c *Coordinator) OnPublishEnd(ctx context.Context, key domain.StreamKey) domain.StreamState {
	st := c.states.OnPublishEnd(ctx, key)
	if sess, ok := c.registry.FindPublish(key); ok {
		c.registry.Remove(sess.ConnectionID)
	}
	return st
}

// OnMetadataUpdate applies a mid-stream metadata change from the publisher.
func (c *Coordinator) OnMetadataUpdate(ctx context.Context, key domain.StreamKey, media *domain.MediaMeta) error {
	if st := c.states.OnMetadataUpdate(ctx, key, media); st.Status != domain.StatusLive {
		return fmt.Errorf("stream %s is not live: %w", key, domain.ErrStreamNotFound)
	}
	return nil
}

// OnDisconnect tears down whatever the connection owned. Safe to invoke
// concurrently with an in-flight explicit end or leave for the same
// connection; every step is idempotent.
func (c *Coordinator) OnDisconnect(ctx context.Context, connID domain.ConnectionID) {
	if sess, removed := c.registry.Remove(connID); removed && sess.IsPublish() {
		c.states.OnPublishEnd(ctx, sess.StreamKey)
	}
	c.rooms.LeaveAll(ctx, connID)
}

// Shutdown synchronously ends every stream with an active publish session
// and waits, bounded by ctx, for in-flight recording calls.
func (c *Coordinator) Shutdown(ctx context.Context) {
	for _, key := range c.registry.PublishKeys() {
		c.OnPublishEnd(ctx, key)
	}

	done := make(chan struct{})
	go func() {
		c.recorder.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Warnw("shutdown timed out waiting for recording calls")
	}
	c.logger.Infow("coordinator shut down")
}
