package services

import (
	"context"
	"fmt"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
	"livegate/pkg/tracing"

	"go.uber.org/zap"
)

// roomService owns room membership and viewer-count derivation. The count
// broadcast after every join and leave is the member-set cardinality
// returned by the mutation itself, so it cannot drift from actual
// membership even under reordered or duplicate events.
type roomService struct {
	rooms       ports.RoomRepository
	gate        ports.AuthGate
	broadcaster *BroadcastService
	metrics     ports.Collector
	logger      *zap.SugaredLogger
}

func NewRoomManager(
	rooms ports.RoomRepository,
	gate ports.AuthGate,
	broadcaster *BroadcastService,
	metrics ports.Collector,
	logger *zap.SugaredLogger,
) ports.RoomManager {
	return &roomService{
		rooms:       rooms,
		gate:        gate,
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logger,
	}
}

func (r *roomService) Join(ctx context.Context, connID domain.ConnectionID, key domain.StreamKey, identity *domain.Identity) (*domain.ViewerCountEvent, error) {
	ctx, span := tracing.TraceRoomOperation(ctx, "join", string(key), string(connID))
	defer span.End()

	// Re-validate access before touching membership: clients may hold stale
	// state about a stream's privacy. The gate performs I/O, so no room lock
	// is held yet.
	if err := r.gate.AuthorizeView(ctx, key, identity); err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	var countEvent *domain.ViewerCountEvent
	r.broadcaster.locked(key, func() {
		added, count := r.rooms.Add(key, connID)
		if added {
			r.broadcaster.sendRoom(key, connID, &domain.PresenceEvent{
				Type:      domain.EventUserJoined,
				StreamKey: key,
				UserID:    identityID(identity),
				Username:  identityName(identity),
			})
		}
		countEvent = &domain.ViewerCountEvent{
			Type:      domain.EventViewerCount,
			StreamKey: key,
			Count:     count,
		}
		r.broadcaster.sendRoom(key, "", countEvent)
		r.metrics.SetViewerCount(key, count)
	})

	r.logger.Infow("viewer joined room", "stream_key", key, "connection_id", connID, "count", countEvent.Count)
	return countEvent, nil
}

func (r *roomService) Leave(ctx context.Context, connID domain.ConnectionID, key domain.StreamKey) error {
	_, span := tracing.TraceRoomOperation(ctx, "leave", string(key), string(connID))
	defer span.End()

	var wasMember bool
	r.broadcaster.locked(key, func() {
		wasMember = r.leaveLocked(connID, key)
	})
	if !wasMember {
		return fmt.Errorf("connection %s in room %s: %w", connID, key, domain.ErrNotRoomMember)
	}
	return nil
}

func (r *roomService) LeaveAll(ctx context.Context, connID domain.ConnectionID) {
	// A connection belongs to at most one room today, but the operation is
	// defined over all of them for correctness if that ever changes.
	for _, key := range r.rooms.RoomsOf(connID) {
		r.broadcaster.locked(key, func() {
			r.leaveLocked(connID, key)
		})
	}
}

// leaveLocked removes the member and broadcasts presence and the recomputed
// count to the remaining members. Empty rooms are pruned by the repository
// to bound memory. Callers hold the room lock.
func (r *roomService) leaveLocked(connID domain.ConnectionID, key domain.StreamKey) bool {
	removed, count, pruned := r.rooms.Remove(key, connID)
	if !removed {
		return false
	}

	if !pruned {
		r.broadcaster.sendRoom(key, "", &domain.PresenceEvent{
			Type:      domain.EventUserLeft,
			StreamKey: key,
		})
		r.broadcaster.sendRoom(key, "", &domain.ViewerCountEvent{
			Type:      domain.EventViewerCount,
			StreamKey: key,
			Count:     count,
		})
	}
	r.metrics.SetViewerCount(key, count)

	r.logger.Infow("viewer left room", "stream_key", key, "connection_id", connID, "count", count, "pruned", pruned)
	return true
}

func identityID(identity *domain.Identity) domain.UserID {
	if identity == nil {
		return ""
	}
	return identity.ID
}

func identityName(identity *domain.Identity) string {
	if identity == nil {
		return ""
	}
	return identity.Username
}
