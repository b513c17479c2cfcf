package services

import (
	"context"
	"testing"
	"time"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
	"livegate/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestGate(ids ports.IdentityProvider, store ports.StreamStore) ports.AuthGate {
	return NewAuthGate(ids, store, 2*time.Second, time.Minute, logger.NewNop().Sugar())
}

func streamerIdentity(id domain.UserID, key domain.StreamKey) *domain.Identity {
	return &domain.Identity{
		ID:             id,
		Username:       string(id),
		Role:           domain.RoleStreamer,
		StreamKeyOwned: key,
	}
}

func TestAuthGate_AuthenticatePublish(t *testing.T) {
	ctx := context.Background()
	key := domain.StreamKey("alice-stream")

	t.Run("streamer publishing own key", func(t *testing.T) {
		ids := new(MockIdentityProvider)
		store := new(MockStreamStore)
		gate := newTestGate(ids, store)

		ids.On("VerifyCredential", mock.Anything, "token").
			Return(&ports.Principal{ID: "alice", Username: "alice", Role: domain.RoleStreamer}, nil)
		ids.On("GetIdentity", mock.Anything, domain.UserID("alice")).
			Return(streamerIdentity("alice", key), nil)

		identity, err := gate.AuthenticatePublish(ctx, key, "token")

		assert.NoError(t, err)
		assert.Equal(t, domain.UserID("alice"), identity.ID)
		ids.AssertExpectations(t)
	})

	t.Run("streamer publishing someone else's key", func(t *testing.T) {
		ids := new(MockIdentityProvider)
		store := new(MockStreamStore)
		gate := newTestGate(ids, store)

		ids.On("VerifyCredential", mock.Anything, "token").
			Return(&ports.Principal{ID: "mallory", Role: domain.RoleStreamer}, nil)
		ids.On("GetIdentity", mock.Anything, domain.UserID("mallory")).
			Return(streamerIdentity("mallory", "mallory-stream"), nil)

		_, err := gate.AuthenticatePublish(ctx, key, "token")

		assert.ErrorIs(t, err, domain.ErrNotAuthorized)
	})

	t.Run("admin publishing any key", func(t *testing.T) {
		ids := new(MockIdentityProvider)
		store := new(MockStreamStore)
		gate := newTestGate(ids, store)

		ids.On("VerifyCredential", mock.Anything, "token").
			Return(&ports.Principal{ID: "root", Role: domain.RoleAdmin}, nil)
		ids.On("GetIdentity", mock.Anything, domain.UserID("root")).
			Return(&domain.Identity{ID: "root", Role: domain.RoleAdmin}, nil)

		identity, err := gate.AuthenticatePublish(ctx, key, "token")

		assert.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, identity.Role)
	})

	t.Run("plain user may not publish", func(t *testing.T) {
		ids := new(MockIdentityProvider)
		store := new(MockStreamStore)
		gate := newTestGate(ids, store)

		ids.On("VerifyCredential", mock.Anything, "token").
			Return(&ports.Principal{ID: "bob", Role: domain.RoleUser}, nil)
		ids.On("GetIdentity", mock.Anything, domain.UserID("bob")).
			Return(&domain.Identity{ID: "bob", Role: domain.RoleUser}, nil)

		_, err := gate.AuthenticatePublish(ctx, key, "token")

		assert.ErrorIs(t, err, domain.ErrNotAuthorized)
	})

	t.Run("missing credential", func(t *testing.T) {
		gate := newTestGate(new(MockIdentityProvider), new(MockStreamStore))

		_, err := gate.AuthenticatePublish(ctx, key, "")

		assert.ErrorIs(t, err, domain.ErrCredentialMissing)
	})

	t.Run("invalid credential", func(t *testing.T) {
		ids := new(MockIdentityProvider)
		gate := newTestGate(ids, new(MockStreamStore))

		ids.On("VerifyCredential", mock.Anything, "garbage").
			Return(nil, domain.ErrCredentialInvalid)

		_, err := gate.AuthenticatePublish(ctx, key, "garbage")

		assert.ErrorIs(t, err, domain.ErrCredentialInvalid)
	})

	t.Run("identity lookup deadline maps to auth timeout", func(t *testing.T) {
		ids := new(MockIdentityProvider)
		gate := NewAuthGate(ids, new(MockStreamStore), 30*time.Millisecond, time.Minute, logger.NewNop().Sugar())

		ids.On("VerifyCredential", mock.Anything, "slow-token").
			Return(nil, context.DeadlineExceeded).
			Run(func(args mock.Arguments) {
				time.Sleep(50 * time.Millisecond)
			})

		_, err := gate.AuthenticatePublish(ctx, key, "slow-token")

		assert.ErrorIs(t, err, domain.ErrAuthTimeout)
		assert.True(t, domain.IsAuthenticationError(err))
	})
}

func TestAuthGate_AuthenticatePlay(t *testing.T) {
	ctx := context.Background()
	key := domain.StreamKey("alice-stream")
	publicRec := &domain.StreamRecord{StreamKey: key, Owner: "alice", IsPrivate: false}
	privateRec := &domain.StreamRecord{StreamKey: key, Owner: "alice", IsPrivate: true}

	t.Run("anonymous viewer on public stream", func(t *testing.T) {
		store := new(MockStreamStore)
		gate := newTestGate(new(MockIdentityProvider), store)

		store.On("FindStreamByKey", mock.Anything, key).Return(publicRec, nil)

		identity, err := gate.AuthenticatePlay(ctx, key, "")

		assert.NoError(t, err)
		assert.Nil(t, identity)
	})

	t.Run("invalid credential on public stream still fails", func(t *testing.T) {
		ids := new(MockIdentityProvider)
		store := new(MockStreamStore)
		gate := newTestGate(ids, store)

		store.On("FindStreamByKey", mock.Anything, key).Return(publicRec, nil)
		ids.On("VerifyCredential", mock.Anything, "garbage").
			Return(nil, domain.ErrCredentialInvalid)

		_, err := gate.AuthenticatePlay(ctx, key, "garbage")

		assert.ErrorIs(t, err, domain.ErrCredentialInvalid)
	})

	t.Run("anonymous viewer on private stream", func(t *testing.T) {
		store := new(MockStreamStore)
		gate := newTestGate(new(MockIdentityProvider), store)

		store.On("FindStreamByKey", mock.Anything, key).Return(privateRec, nil)

		_, err := gate.AuthenticatePlay(ctx, key, "")

		assert.ErrorIs(t, err, domain.ErrCredentialMissing)
	})

	t.Run("follower admitted to private stream", func(t *testing.T) {
		ids := new(MockIdentityProvider)
		store := new(MockStreamStore)
		gate := newTestGate(ids, store)

		store.On("FindStreamByKey", mock.Anything, key).Return(privateRec, nil)
		ids.On("VerifyCredential", mock.Anything, "bob-token").
			Return(&ports.Principal{ID: "bob", Role: domain.RoleUser}, nil)
		ids.On("GetIdentity", mock.Anything, domain.UserID("bob")).
			Return(&domain.Identity{ID: "bob", Role: domain.RoleUser}, nil)
		store.On("IsAuthorizedViewer", mock.Anything, domain.UserID("alice"), domain.UserID("bob")).
			Return(true, nil)

		identity, err := gate.AuthenticatePlay(ctx, key, "bob-token")

		assert.NoError(t, err)
		assert.Equal(t, domain.UserID("bob"), identity.ID)
	})

	t.Run("non-follower rejected from private stream", func(t *testing.T) {
		ids := new(MockIdentityProvider)
		store := new(MockStreamStore)
		gate := newTestGate(ids, store)

		store.On("FindStreamByKey", mock.Anything, key).Return(privateRec, nil)
		ids.On("VerifyCredential", mock.Anything, "eve-token").
			Return(&ports.Principal{ID: "eve", Role: domain.RoleUser}, nil)
		ids.On("GetIdentity", mock.Anything, domain.UserID("eve")).
			Return(&domain.Identity{ID: "eve", Role: domain.RoleUser}, nil)
		store.On("IsAuthorizedViewer", mock.Anything, domain.UserID("alice"), domain.UserID("eve")).
			Return(false, nil)

		_, err := gate.AuthenticatePlay(ctx, key, "eve-token")

		assert.ErrorIs(t, err, domain.ErrNotAuthorized)
		assert.True(t, domain.IsAuthorizationError(err))
	})

	t.Run("owner admitted to own private stream", func(t *testing.T) {
		ids := new(MockIdentityProvider)
		store := new(MockStreamStore)
		gate := newTestGate(ids, store)

		store.On("FindStreamByKey", mock.Anything, key).Return(privateRec, nil)
		ids.On("VerifyCredential", mock.Anything, "alice-token").
			Return(&ports.Principal{ID: "alice", Role: domain.RoleStreamer}, nil)
		ids.On("GetIdentity", mock.Anything, domain.UserID("alice")).
			Return(streamerIdentity("alice", key), nil)

		_, err := gate.AuthenticatePlay(ctx, key, "alice-token")

		assert.NoError(t, err)
		store.AssertNotCalled(t, "IsAuthorizedViewer", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("follower store failure falls back to identity record", func(t *testing.T) {
		ids := new(MockIdentityProvider)
		store := new(MockStreamStore)
		gate := newTestGate(ids, store)

		store.On("FindStreamByKey", mock.Anything, key).Return(privateRec, nil)
		ids.On("VerifyCredential", mock.Anything, "bob-token").
			Return(&ports.Principal{ID: "bob", Role: domain.RoleUser}, nil)
		ids.On("GetIdentity", mock.Anything, domain.UserID("bob")).
			Return(&domain.Identity{ID: "bob", Role: domain.RoleUser}, nil)
		store.On("IsAuthorizedViewer", mock.Anything, domain.UserID("alice"), domain.UserID("bob")).
			Return(false, assert.AnError)
		ids.On("GetIdentity", mock.Anything, domain.UserID("alice")).
			Return(&domain.Identity{
				ID: "alice", Role: domain.RoleStreamer, StreamKeyOwned: key,
				Followers: []domain.UserID{"bob"},
			}, nil)

		identity, err := gate.AuthenticatePlay(ctx, key, "bob-token")

		assert.NoError(t, err)
		assert.Equal(t, domain.UserID("bob"), identity.ID)
	})

	t.Run("unknown stream", func(t *testing.T) {
		store := new(MockStreamStore)
		gate := newTestGate(new(MockIdentityProvider), store)

		store.On("FindStreamByKey", mock.Anything, domain.StreamKey("ghost")).
			Return(nil, domain.ErrStreamNotFound)

		_, err := gate.AuthenticatePlay(ctx, "ghost", "")

		assert.ErrorIs(t, err, domain.ErrStreamNotFound)
	})
}

func TestAuthGate_AuthorizeView(t *testing.T) {
	ctx := context.Background()
	key := domain.StreamKey("alice-stream")

	t.Run("public stream admits nil identity", func(t *testing.T) {
		store := new(MockStreamStore)
		gate := newTestGate(new(MockIdentityProvider), store)
		store.On("FindStreamByKey", mock.Anything, key).
			Return(&domain.StreamRecord{StreamKey: key, Owner: "alice"}, nil)

		assert.NoError(t, gate.AuthorizeView(ctx, key, nil))
	})

	t.Run("private stream rejects nil identity", func(t *testing.T) {
		store := new(MockStreamStore)
		gate := newTestGate(new(MockIdentityProvider), store)
		store.On("FindStreamByKey", mock.Anything, key).
			Return(&domain.StreamRecord{StreamKey: key, Owner: "alice", IsPrivate: true}, nil)

		err := gate.AuthorizeView(ctx, key, nil)
		assert.ErrorIs(t, err, domain.ErrCredentialMissing)
	})
}

func TestAuthGate_IdentityCaching(t *testing.T) {
	ctx := context.Background()
	key := domain.StreamKey("alice-stream")
	ids := new(MockIdentityProvider)
	gate := newTestGate(ids, new(MockStreamStore))

	ids.On("VerifyCredential", mock.Anything, "token").
		Return(&ports.Principal{ID: "alice", Role: domain.RoleStreamer}, nil)
	ids.On("GetIdentity", mock.Anything, domain.UserID("alice")).
		Return(streamerIdentity("alice", key), nil).Once()

	_, err := gate.AuthenticatePublish(ctx, key, "token")
	assert.NoError(t, err)

	// second resolve hits the cache; GetIdentity is allowed only once
	_, err = gate.AuthenticatePublish(ctx, key, "token")
	assert.NoError(t, err)

	ids.AssertExpectations(t)
}
