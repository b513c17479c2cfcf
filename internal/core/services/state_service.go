package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"

	"go.uber.org/zap"
)

// stateService drives the per-stream lifecycle:
//
//	Idle -> Starting -> Live -> Ended
//
// with Error reachable from Starting or Live. Idle, Ended and Error are
// re-enterable starting points for a new publish attempt. Transitions whose
// source state does not match are no-ops returning the current state, so
// racing callers observe the outcome instead of a panic or error.
//
// Transitions are serialized per stream key; independent streams never
// contend. In-memory state is authoritative while a stream is active; the
// storage collaborator mirrors it and write failures only degrade
// durability, never the stream.
type stateService struct {
	mu     sync.RWMutex
	states map[domain.StreamKey]domain.StreamState
	locks  *keyMutex

	store       ports.StreamStore
	recorder    *RecordingCoordinator
	broadcaster ports.Broadcaster
	metrics     ports.Collector
	logger      *zap.SugaredLogger

	persistTimeout time.Duration
}

func NewStateMachine(
	store ports.StreamStore,
	recorder *RecordingCoordinator,
	broadcaster ports.Broadcaster,
	metrics ports.Collector,
	logger *zap.SugaredLogger,
) ports.StateMachine {
	return &stateService{
		states:         make(map[domain.StreamKey]domain.StreamState),
		locks:          newKeyMutex(),
		store:          store,
		recorder:       recorder,
		broadcaster:    broadcaster,
		metrics:        metrics,
		logger:         logger,
		persistTimeout: 3 * time.Second,
	}
}

func (s *stateService) OnPublishBegin(ctx context.Context, key domain.StreamKey, owner *domain.Identity) domain.StreamState {
	// Storage lookup is collaborator I/O; resolve privacy before taking the
	// per-key lock.
	isPrivate := s.lookupPrivacy(ctx, key, owner)

	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	cur := s.get(key)
	switch cur.Status {
	case domain.StatusIdle, domain.StatusEnded, domain.StatusError:
	default:
		return cur
	}

	next := domain.StreamState{
		StreamKey: key,
		Status:    domain.StatusStarting,
		Owner:     owner.ID,
		IsPrivate: isPrivate,
		StartedAt: time.Now(),
	}
	s.set(key, next)
	s.persist(key, next)

	s.logger.Infow("publish begin", "stream_key", key, "owner", owner.ID)
	return next
}

func (s *stateService) OnPublishConfirmed(ctx context.Context, key domain.StreamKey, media *domain.MediaMeta) domain.StreamState {
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	cur := s.get(key)
	if cur.Status != domain.StatusStarting {
		return cur
	}

	cur.Status = domain.StatusLive
	cur.Media = media
	s.set(key, cur)
	s.persist(key, cur)

	s.recorder.Start(key, cur.Owner)
	s.broadcaster.Lifecycle(ctx, key, domain.LifecycleEvent{
		Type:      domain.EventStreamStarted,
		StreamKey: key,
		Media:     media,
		StartedAt: cur.StartedAt,
	})
	s.metrics.SetLiveStreams(s.liveCount())

	s.logger.Infow("stream live", "stream_key", key, "owner", cur.Owner)
	return cur
}

func (s *stateService) OnPublishEnd(ctx context.Context, key domain.StreamKey) domain.StreamState {
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	cur := s.get(key)
	switch cur.Status {
	case domain.StatusEnded, domain.StatusError:
		// idempotent: a graceful end and a disconnect may race; the second
		// call returns the same endedAt and emits nothing
		return cur
	case domain.StatusStarting, domain.StatusLive:
	default:
		return cur
	}

	wasLive := cur.Status == domain.StatusLive
	cur.Status = domain.StatusEnded
	cur.EndedAt = time.Now()
	s.set(key, cur)
	s.persist(key, cur)

	s.recorder.Stop(key)
	if wasLive {
		s.broadcaster.Lifecycle(ctx, key, domain.LifecycleEvent{
			Type:            domain.EventStreamEnded,
			StreamKey:       key,
			StartedAt:       cur.StartedAt,
			EndedAt:         cur.EndedAt,
			DurationSeconds: cur.Duration().Seconds(),
		})
	}
	s.metrics.SetLiveStreams(s.liveCount())

	s.logger.Infow("stream ended",
		"stream_key", key, "duration", cur.Duration().String(), "was_live", wasLive)
	return cur
}

func (s *stateService) OnAuthFailure(ctx context.Context, key domain.StreamKey) domain.StreamState {
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	cur := s.get(key)
	if cur.Status != domain.StatusStarting && cur.Status != domain.StatusLive {
		return cur
	}

	wasLive := cur.Status == domain.StatusLive
	cur.Status = domain.StatusError
	cur.EndedAt = time.Now()
	s.set(key, cur)
	s.persist(key, cur)

	s.recorder.Stop(key)
	s.metrics.SetLiveStreams(s.liveCount())

	s.logger.Warnw("stream errored on auth failure", "stream_key", key, "was_live", wasLive)
	return cur
}

func (s *stateService) OnMetadataUpdate(ctx context.Context, key domain.StreamKey, media *domain.MediaMeta) domain.StreamState {
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	cur := s.get(key)
	if cur.Status != domain.StatusLive {
		return cur
	}

	cur.Media = media
	s.set(key, cur)

	s.broadcaster.Lifecycle(ctx, key, domain.LifecycleEvent{
		Type:      domain.EventMetadataUpdated,
		StreamKey: key,
		Media:     media,
	})
	return cur
}

func (s *stateService) Current(key domain.StreamKey) (domain.StreamState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[key]
	return st, ok
}

func (s *stateService) LiveKeys() []domain.StreamKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []domain.StreamKey
	for key, st := range s.states {
		if st.Status == domain.StatusLive {
			keys = append(keys, key)
		}
	}
	return keys
}

func (s *stateService) get(key domain.StreamKey) domain.StreamState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.states[key]; ok {
		return st
	}
	return domain.StreamState{StreamKey: key, Status: domain.StatusIdle}
}

func (s *stateService) set(key domain.StreamKey, st domain.StreamState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key] = st
}

func (s *stateService) liveCount() int {
	return len(s.LiveKeys())
}

// lookupPrivacy resolves the privacy flag from storage, provisioning a
// record for first-time keys. Storage failures default to public and are
// logged; privacy is still re-checked by the auth gate on every join.
func (s *stateService) lookupPrivacy(ctx context.Context, key domain.StreamKey, owner *domain.Identity) bool {
	ctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()

	rec, err := s.store.FindStreamByKey(ctx, key)
	if err == nil {
		return rec.IsPrivate
	}
	if errors.Is(err, domain.ErrStreamNotFound) {
		rec = &domain.StreamRecord{StreamKey: key, Owner: owner.ID, Status: domain.StatusStarting}
		if createErr := s.store.CreateStreamRecord(ctx, rec); createErr != nil {
			s.logger.Warnw("failed to provision stream record", "stream_key", key, "error", createErr)
		}
		return false
	}
	s.logger.Warnw("stream record lookup failed", "stream_key", key, "error", err)
	return false
}

func (s *stateService) persist(key domain.StreamKey, st domain.StreamState) {
	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()

	var started, ended int64
	if !st.StartedAt.IsZero() {
		started = st.StartedAt.Unix()
	}
	if !st.EndedAt.IsZero() {
		ended = st.EndedAt.Unix()
	}
	if err := s.store.UpdateStreamStatus(ctx, key, st.Status, started, ended); err != nil {
		s.logger.Warnw("failed to persist stream status",
			"stream_key", key, "status", st.Status, "error", err)
	}
}
