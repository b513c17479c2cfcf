package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
	"livegate/pkg/cache"
	"livegate/pkg/tracing"

	"go.uber.org/zap"
)

// authGate validates credentials and authorization for publish, play and
// join actions. It only performs identity lookups; session and room state
// are never touched here. Lookups run under a bounded timeout and no
// per-key or per-room exclusion is held while they are in flight.
type authGate struct {
	ids     ports.IdentityProvider
	store   ports.StreamStore
	idCache *cache.Cache
	timeout time.Duration
	logger  *zap.SugaredLogger
}

func NewAuthGate(
	ids ports.IdentityProvider,
	store ports.StreamStore,
	timeout time.Duration,
	identityTTL time.Duration,
	logger *zap.SugaredLogger,
) ports.AuthGate {
	return &authGate{
		ids:     ids,
		store:   store,
		idCache: cache.New(identityTTL),
		timeout: timeout,
		logger:  logger,
	}
}

func (g *authGate) AuthenticatePublish(ctx context.Context, key domain.StreamKey, credential string) (*domain.Identity, error) {
	ctx, span := tracing.TraceAuth(ctx, "publish", string(key))
	defer span.End()

	identity, err := g.resolve(ctx, credential)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	if identity.Role != domain.RoleStreamer && identity.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("role %s may not publish: %w", identity.Role, domain.ErrNotAuthorized)
	}
	if !identity.CanPublish(key) {
		return nil, fmt.Errorf("stream key not owned by %s: %w", identity.ID, domain.ErrNotAuthorized)
	}
	return identity, nil
}

func (g *authGate) AuthenticatePlay(ctx context.Context, key domain.StreamKey, credential string) (*domain.Identity, error) {
	ctx, span := tracing.TraceAuth(ctx, "play", string(key))
	defer span.End()

	rec, err := g.findStream(ctx, key)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	if !rec.IsPrivate {
		if credential == "" {
			// public streams admit anonymous viewers
			return nil, nil
		}
		identity, err := g.resolve(ctx, credential)
		if err != nil {
			tracing.RecordError(ctx, err)
			return nil, err
		}
		return identity, nil
	}

	if credential == "" {
		return nil, fmt.Errorf("private stream %s: %w", key, domain.ErrCredentialMissing)
	}
	identity, err := g.resolve(ctx, credential)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	if err := g.authorizePrivate(ctx, rec, identity); err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	return identity, nil
}

func (g *authGate) AuthorizeView(ctx context.Context, key domain.StreamKey, identity *domain.Identity) error {
	rec, err := g.findStream(ctx, key)
	if err != nil {
		return err
	}
	if !rec.IsPrivate {
		return nil
	}
	if identity == nil {
		return fmt.Errorf("private stream %s: %w", key, domain.ErrCredentialMissing)
	}
	return g.authorizePrivate(ctx, rec, identity)
}

// authorizePrivate admits the owner, admins, and followers of the owner.
func (g *authGate) authorizePrivate(ctx context.Context, rec *domain.StreamRecord, identity *domain.Identity) error {
	if identity.Role == domain.RoleAdmin || identity.ID == rec.Owner {
		return nil
	}

	ok, err := g.store.IsAuthorizedViewer(ctx, rec.Owner, identity.ID)
	if err != nil {
		// fall back to the follower list on the owner identity
		g.logger.Warnw("follower lookup failed, falling back to identity record",
			"owner", rec.Owner, "viewer", identity.ID, "error", err)
		owner, idErr := g.identity(ctx, rec.Owner)
		if idErr != nil {
			return fmt.Errorf("private stream access check failed: %w", domain.ErrNotAuthorized)
		}
		ok = owner.HasFollower(identity.ID)
	}
	if !ok {
		return fmt.Errorf("viewer %s may not watch private stream %s: %w", identity.ID, rec.StreamKey, domain.ErrNotAuthorized)
	}
	return nil
}

// resolve verifies the credential and loads the full identity, under the
// gate's timeout. A deadline expiry maps to an authentication error so the
// ingest layer rejects the connection rather than hanging it.
func (g *authGate) resolve(ctx context.Context, credential string) (*domain.Identity, error) {
	if credential == "" {
		return nil, domain.ErrCredentialMissing
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	principal, err := g.ids.VerifyCredential(ctx, credential)
	if err != nil {
		return nil, g.mapTimeout(ctx, err)
	}

	identity, err := g.identity(ctx, principal.ID)
	if err != nil {
		return nil, g.mapTimeout(ctx, err)
	}
	if identity.Username == "" {
		identity.Username = principal.Username
	}
	return identity, nil
}

func (g *authGate) identity(ctx context.Context, id domain.UserID) (*domain.Identity, error) {
	if cached, ok := g.idCache.Get(string(id)); ok {
		return cached.(*domain.Identity), nil
	}

	identity, err := g.ids.GetIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	g.idCache.Set(string(id), identity)
	return identity, nil
}

func (g *authGate) findStream(ctx context.Context, key domain.StreamKey) (*domain.StreamRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	rec, err := g.store.FindStreamByKey(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrStreamNotFound) {
			return nil, err
		}
		return nil, g.mapTimeout(ctx, err)
	}
	return rec, nil
}

func (g *authGate) mapTimeout(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ErrAuthTimeout
	}
	return err
}
