package ports

import (
	"context"

	"livegate/internal/core/domain"
)

// AuthGate validates credentials and authorization for publish, play and
// join actions. It performs identity lookups only and never mutates session
// or room state.
type AuthGate interface {
	// AuthenticatePublish authorizes a publish attempt. The identity must be
	// a streamer owning the key, or an admin.
	AuthenticatePublish(ctx context.Context, key domain.StreamKey, credential string) (*domain.Identity, error)

	// AuthenticatePlay authorizes a play attempt. Public streams accept an
	// empty credential and return a nil identity; private streams require the
	// owner, an admin, or a follower of the owner.
	AuthenticatePlay(ctx context.Context, key domain.StreamKey, credential string) (*domain.Identity, error)

	// AuthorizeView re-checks viewing access for an already-resolved identity.
	// Used by room join as defense in depth against stale client state.
	AuthorizeView(ctx context.Context, key domain.StreamKey, identity *domain.Identity) error
}

// StateMachine drives the per-stream lifecycle. Transitions whose source
// state does not match are no-ops returning the current state unchanged;
// callers must inspect the returned state rather than assume success.
type StateMachine interface {
	OnPublishBegin(ctx context.Context, key domain.StreamKey, owner *domain.Identity) domain.StreamState
	OnPublishConfirmed(ctx context.Context, key domain.StreamKey, media *domain.MediaMeta) domain.StreamState
	OnPublishEnd(ctx context.Context, key domain.StreamKey) domain.StreamState
	OnAuthFailure(ctx context.Context, key domain.StreamKey) domain.StreamState
	OnMetadataUpdate(ctx context.Context, key domain.StreamKey, media *domain.MediaMeta) domain.StreamState

	Current(key domain.StreamKey) (domain.StreamState, bool)
	LiveKeys() []domain.StreamKey
}

// RoomManager owns room membership and viewer-count derivation.
type RoomManager interface {
	Join(ctx context.Context, connID domain.ConnectionID, key domain.StreamKey, identity *domain.Identity) (*domain.ViewerCountEvent, error)
	Leave(ctx context.Context, connID domain.ConnectionID, key domain.StreamKey) error
	LeaveAll(ctx context.Context, connID domain.ConnectionID)
}

// Broadcaster fans out chat, reaction and lifecycle events to room members,
// ordered per room.
type Broadcaster interface {
	ChatMessage(ctx context.Context, connID domain.ConnectionID, key domain.StreamKey, text string) (*domain.ChatEvent, error)
	Reaction(ctx context.Context, connID domain.ConnectionID, key domain.StreamKey, kind string) (*domain.ReactionEvent, error)
	Lifecycle(ctx context.Context, key domain.StreamKey, event domain.LifecycleEvent)
}

// EventSink is the transport-side delivery primitive. Implementations must
// preserve the order in which events are handed to them per connection.
type EventSink interface {
	SendTo(connID domain.ConnectionID, event any)
	SendAll(event any)
}

// Collector receives coordinator metrics. Implementations live in
// infrastructure; a nil-safe no-op is used when monitoring is disabled.
type Collector interface {
	SetLiveStreams(n int)
	SetViewerCount(key domain.StreamKey, count int)
	RecordChatMessage(key domain.StreamKey)
	RecordReaction(key domain.StreamKey)
	RecordAuthFailure(kind string)
	RecordRecordingRetry(key domain.StreamKey)
}
