package memory

import (
	"sync"
	"time"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
	"livegate/pkg/utils"
)

// SessionRegistry keeps one authoritative session table with a primary index
// by stream key (publish exclusivity) and a secondary index by connection id.
// Both indexes mutate under the same lock so they can never disagree. The
// lock guards map operations only and is never held across I/O.
type SessionRegistry struct {
	mu        sync.RWMutex
	byConn    map[domain.ConnectionID]*domain.Session
	publishes map[domain.StreamKey]*domain.Session
	plays     map[domain.StreamKey]map[domain.ConnectionID]*domain.Session
}

func NewSessionRegistry() ports.SessionRegistry {
	return &SessionRegistry{
		byConn:    make(map[domain.ConnectionID]*domain.Session),
		publishes: make(map[domain.StreamKey]*domain.Session),
		plays:     make(map[domain.StreamKey]map[domain.ConnectionID]*domain.Session),
	}
}

func (r *SessionRegistry) RegisterPublish(key domain.StreamKey, identity *domain.Identity, conn domain.ConnMeta, connID domain.ConnectionID) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.publishes[key]; exists {
		return nil, domain.ErrPublishConflict
	}

	sess := &domain.Session{
		ID:           domain.SessionID(utils.GenerateSessionID()),
		ConnectionID: connID,
		StreamKey:    key,
		Role:         domain.SessionPublish,
		Identity:     identity,
		StartedAt:    time.Now(),
		Conn:         conn,
	}

	r.publishes[key] = sess
	r.byConn[connID] = sess
	return sess, nil
}

func (r *SessionRegistry) RegisterPlay(key domain.StreamKey, identity *domain.Identity, conn domain.ConnMeta, connID domain.ConnectionID) *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess := &domain.Session{
		ID:           domain.SessionID(utils.GenerateSessionID()),
		ConnectionID: connID,
		StreamKey:    key,
		Role:         domain.SessionPlay,
		Identity:     identity,
		StartedAt:    time.Now(),
		Conn:         conn,
	}

	if r.plays[key] == nil {
		r.plays[key] = make(map[domain.ConnectionID]*domain.Session)
	}
	r.plays[key][connID] = sess
	r.byConn[connID] = sess
	return sess
}

func (r *SessionRegistry) Remove(connID domain.ConnectionID) (*domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.byConn[connID]
	if !exists {
		return nil, false
	}

	delete(r.byConn, connID)
	switch sess.Role {
	case domain.SessionPublish:
		if cur, ok := r.publishes[sess.StreamKey]; ok && cur.ConnectionID == connID {
			delete(r.publishes, sess.StreamKey)
		}
	case domain.SessionPlay:
		if m, ok := r.plays[sess.StreamKey]; ok {
			delete(m, connID)
			if len(m) == 0 {
				delete(r.plays, sess.StreamKey)
			}
		}
	}
	return sess, true
}

func (r *SessionRegistry) FindPublish(key domain.StreamKey) (*domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, exists := r.publishes[key]
	return sess, exists
}

func (r *SessionRegistry) FindByConnection(connID domain.ConnectionID) (*domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, exists := r.byConn[connID]
	return sess, exists
}

func (r *SessionRegistry) PublishKeys() []domain.StreamKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]domain.StreamKey, 0, len(r.publishes))
	for key := range r.publishes {
		keys = append(keys, key)
	}
	return keys
}
