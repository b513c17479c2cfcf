package ports

import (
	"context"

	"livegate/internal/core/domain"
)

// Principal is the minimal result of credential verification.
type Principal struct {
	ID       domain.UserID
	Username string
	Role     domain.IdentityRole
}

// IdentityProvider resolves credentials and identities. Calls are remote I/O
// and must never be made while holding per-key or per-room exclusion.
type IdentityProvider interface {
	VerifyCredential(ctx context.Context, token string) (*Principal, error)
	GetIdentity(ctx context.Context, id domain.UserID) (*domain.Identity, error)
}

// StreamStore is the durable storage collaborator. The coordinator is the
// sole writer of status and timestamps during a stream's active lifetime.
type StreamStore interface {
	CreateStreamRecord(ctx context.Context, rec *domain.StreamRecord) error
	FindStreamByKey(ctx context.Context, key domain.StreamKey) (*domain.StreamRecord, error)
	UpdateStreamStatus(ctx context.Context, key domain.StreamKey, status domain.StreamStatus, startedAt, endedAt int64) error
	IsAuthorizedViewer(ctx context.Context, owner, viewer domain.UserID) (bool, error)
}

// RecordingService starts and stops stream recordings. Start is tolerant of
// an already-running recording for the same key.
type RecordingService interface {
	Start(ctx context.Context, key domain.StreamKey, owner domain.UserID) (bool, error)
	Stop(ctx context.Context, key domain.StreamKey) (bool, error)
}
