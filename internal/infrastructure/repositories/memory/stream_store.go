package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
)

// StreamStore is the in-memory persistence fallback used when Redis is
// disabled, and by tests.
type StreamStore struct {
	mu        sync.RWMutex
	records   map[domain.StreamKey]*domain.StreamRecord
	followers map[domain.UserID]map[domain.UserID]struct{} // owner -> viewers
}

func NewStreamStore() *StreamStore {
	return &StreamStore{
		records:   make(map[domain.StreamKey]*domain.StreamRecord),
		followers: make(map[domain.UserID]map[domain.UserID]struct{}),
	}
}

var _ ports.StreamStore = (*StreamStore)(nil)

func (s *StreamStore) CreateStreamRecord(ctx context.Context, rec *domain.StreamRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.StreamKey]; exists {
		return fmt.Errorf("stream record already exists: %s", rec.StreamKey)
	}
	cp := *rec
	s.records[rec.StreamKey] = &cp
	return nil
}

func (s *StreamStore) FindStreamByKey(ctx context.Context, key domain.StreamKey) (*domain.StreamRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[key]
	if !exists {
		return nil, domain.ErrStreamNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *StreamStore) UpdateStreamStatus(ctx context.Context, key domain.StreamKey, status domain.StreamStatus, startedAt, endedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[key]
	if !exists {
		return domain.ErrStreamNotFound
	}
	rec.Status = status
	if startedAt > 0 {
		rec.StartedAt = time.Unix(startedAt, 0)
	}
	if endedAt > 0 {
		rec.EndedAt = time.Unix(endedAt, 0)
	}
	return nil
}

func (s *StreamStore) IsAuthorizedViewer(ctx context.Context, owner, viewer domain.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	viewers, exists := s.followers[owner]
	if !exists {
		return false, nil
	}
	_, ok := viewers[viewer]
	return ok, nil
}

// AddFollower records viewer as a follower of owner. Provisioning helper for
// wiring and tests.
func (s *StreamStore) AddFollower(owner, viewer domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.followers[owner] == nil {
		s.followers[owner] = make(map[domain.UserID]struct{})
	}
	s.followers[owner][viewer] = struct{}{}
}
