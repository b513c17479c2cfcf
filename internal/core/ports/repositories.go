package ports

import (
	"livegate/internal/core/domain"
)

// SessionRegistry is the authoritative table of active publish and play
// sessions, indexed by stream key and by connection id. Both indexes are
// updated together so the two views can never disagree.
type SessionRegistry interface {
	// RegisterPublish atomically checks the exclusivity invariant and stores
	// the session. Returns domain.ErrPublishConflict when a publish session
	// already exists for the key.
	RegisterPublish(key domain.StreamKey, identity *domain.Identity, conn domain.ConnMeta, connID domain.ConnectionID) (*domain.Session, error)

	// RegisterPlay always succeeds once authorization has passed; identity is
	// nil for anonymous viewers of public streams.
	RegisterPlay(key domain.StreamKey, identity *domain.Identity, conn domain.ConnMeta, connID domain.ConnectionID) *domain.Session

	// Remove deletes and returns the session for the connection. Idempotent:
	// a second call returns (nil, false). Disconnect notifications may race
	// with explicit end calls, so both paths go through here.
	Remove(connID domain.ConnectionID) (*domain.Session, bool)

	FindPublish(key domain.StreamKey) (*domain.Session, bool)
	FindByConnection(connID domain.ConnectionID) (*domain.Session, bool)

	// PublishKeys lists keys that currently have a publish session. Used by
	// shutdown to end every live stream.
	PublishKeys() []domain.StreamKey
}

// RoomDeparture reports one room a connection was removed from.
type RoomDeparture struct {
	StreamKey domain.StreamKey
	Count     int
	Pruned    bool
}

// RoomRepository tracks room membership. The viewer count is the cardinality
// of the member set and is returned from every mutation so callers broadcast
// a value consistent with the change.
type RoomRepository interface {
	// Add inserts the connection into the room, creating it on first join.
	// Returns false when the connection was already a member.
	Add(key domain.StreamKey, connID domain.ConnectionID) (added bool, count int)

	// Remove deletes the connection from the room. Empty rooms are pruned to
	// bound memory; pruned reports that.
	Remove(key domain.StreamKey, connID domain.ConnectionID) (removed bool, count int, pruned bool)

	// RemoveAll removes the connection from every room it belongs to,
	// without per-room event sequencing. Used by shutdown.
	RemoveAll(connID domain.ConnectionID) []RoomDeparture

	// RoomsOf lists the rooms the connection is currently a member of.
	RoomsOf(connID domain.ConnectionID) []domain.StreamKey

	Members(key domain.StreamKey) []domain.ConnectionID
	IsMember(key domain.StreamKey, connID domain.ConnectionID) bool
	Count(key domain.StreamKey) int
}
