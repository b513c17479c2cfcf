package services

import (
	"context"
	"fmt"
	"time"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
	"livegate/pkg/validation"

	"go.uber.org/zap"
)

// BroadcastService fans chat, reaction and lifecycle events out to room
// members. Every fan-out for a room happens under that room's lock, so
// events are handed to the sink in the order the coordinator issued them;
// the sink preserves order per connection. No ordering holds across rooms.
type BroadcastService struct {
	rooms    ports.RoomRepository
	registry ports.SessionRegistry
	sink     ports.EventSink
	metrics  ports.Collector
	logger   *zap.SugaredLogger
	locks    *keyMutex
}

func NewBroadcaster(
	rooms ports.RoomRepository,
	registry ports.SessionRegistry,
	sink ports.EventSink,
	metrics ports.Collector,
	logger *zap.SugaredLogger,
) *BroadcastService {
	return &BroadcastService{
		rooms:    rooms,
		registry: registry,
		sink:     sink,
		metrics:  metrics,
		logger:   logger,
		locks:    newKeyMutex(),
	}
}

var _ ports.Broadcaster = (*BroadcastService)(nil)

func (b *BroadcastService) ChatMessage(ctx context.Context, connID domain.ConnectionID, key domain.StreamKey, text string) (*domain.ChatEvent, error) {
	trimmed, err := validation.ValidateChatMessage(text)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrEmptyMessage)
	}

	sender, err := b.sender(connID, key)
	if err != nil {
		return nil, err
	}

	event := &domain.ChatEvent{
		Type:      domain.EventChatMessage,
		StreamKey: key,
		UserID:    sender.ID,
		Username:  sender.Username,
		Message:   trimmed,
		SentAt:    time.Now(),
	}

	b.locked(key, func() {
		// sender included
		b.sendRoom(key, "", event)
	})
	b.metrics.RecordChatMessage(key)
	return event, nil
}

func (b *BroadcastService) Reaction(ctx context.Context, connID domain.ConnectionID, key domain.StreamKey, kind string) (*domain.ReactionEvent, error) {
	if err := validation.ValidateReactionKind(kind); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrEmptyMessage)
	}

	sender, err := b.sender(connID, key)
	if err != nil {
		return nil, err
	}

	event := &domain.ReactionEvent{
		Type:      domain.EventReaction,
		StreamKey: key,
		UserID:    sender.ID,
		Username:  sender.Username,
		Kind:      kind,
		SentAt:    time.Now(),
	}

	b.locked(key, func() {
		// sender excluded
		b.sendRoom(key, connID, event)
	})
	b.metrics.RecordReaction(key)
	return event, nil
}

func (b *BroadcastService) Lifecycle(ctx context.Context, key domain.StreamKey, event domain.LifecycleEvent) {
	b.locked(key, func() {
		b.sendRoom(key, "", event)
	})

	if event.Type == domain.EventStreamEnded {
		// discovery feeds learn about endings process-wide
		global := event
		global.Type = domain.EventStreamEndedGlobal
		b.sink.SendAll(global)
	}
}

// sender resolves the sending identity and enforces the room membership
// precondition. Anonymous connections have no identity to stamp on events
// and may not send.
func (b *BroadcastService) sender(connID domain.ConnectionID, key domain.StreamKey) (*domain.Identity, error) {
	if !b.rooms.IsMember(key, connID) {
		return nil, fmt.Errorf("connection %s: %w", connID, domain.ErrNotRoomMember)
	}

	sess, ok := b.registry.FindByConnection(connID)
	if !ok || sess.Identity == nil {
		return nil, fmt.Errorf("anonymous connection %s may not send: %w", connID, domain.ErrNotAuthorized)
	}
	return sess.Identity, nil
}

// locked runs fn under the room's fan-out lock. Room membership mutations
// route through here too, so a recomputed viewer count is always broadcast
// in the order the mutation happened.
func (b *BroadcastService) locked(key domain.StreamKey, fn func()) {
	b.locks.Lock(key)
	defer b.locks.Unlock(key)
	fn()
}

// sendRoom enqueues event to every room member except the excluded
// connection. Callers hold the room lock.
func (b *BroadcastService) sendRoom(key domain.StreamKey, except domain.ConnectionID, event any) {
	for _, member := range b.rooms.Members(key) {
		if member == except {
			continue
		}
		b.sink.SendTo(member, event)
	}
}
