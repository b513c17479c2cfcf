package memory

import (
	"sync"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
)

// RoomRepository tracks room membership as sets keyed by stream key, with a
// reverse index by connection for disconnect cleanup. Counts are always the
// cardinality of the member set at the time of the mutation.
type RoomRepository struct {
	mu     sync.RWMutex
	rooms  map[domain.StreamKey]map[domain.ConnectionID]struct{}
	byConn map[domain.ConnectionID]map[domain.StreamKey]struct{}
}

func NewRoomRepository() ports.RoomRepository {
	return &RoomRepository{
		rooms:  make(map[domain.StreamKey]map[domain.ConnectionID]struct{}),
		byConn: make(map[domain.ConnectionID]map[domain.StreamKey]struct{}),
	}
}

func (r *RoomRepository) Add(key domain.StreamKey, connID domain.ConnectionID) (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[key]
	if !exists {
		room = make(map[domain.ConnectionID]struct{})
		r.rooms[key] = room
	}

	if _, member := room[connID]; member {
		// re-joining is a no-op
		return false, len(room)
	}

	room[connID] = struct{}{}
	if r.byConn[connID] == nil {
		r.byConn[connID] = make(map[domain.StreamKey]struct{})
	}
	r.byConn[connID][key] = struct{}{}
	return true, len(room)
}

func (r *RoomRepository) Remove(key domain.StreamKey, connID domain.ConnectionID) (bool, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(key, connID)
}

func (r *RoomRepository) RemoveAll(connID domain.ConnectionID) []ports.RoomDeparture {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := r.byConn[connID]
	if len(keys) == 0 {
		return nil
	}

	departures := make([]ports.RoomDeparture, 0, len(keys))
	for key := range keys {
		if removed, count, pruned := r.removeLocked(key, connID); removed {
			departures = append(departures, ports.RoomDeparture{StreamKey: key, Count: count, Pruned: pruned})
		}
	}
	return departures
}

// removeLocked must be called with mu held.
func (r *RoomRepository) removeLocked(key domain.StreamKey, connID domain.ConnectionID) (bool, int, bool) {
	room, exists := r.rooms[key]
	if !exists {
		return false, 0, false
	}
	if _, member := room[connID]; !member {
		return false, len(room), false
	}

	delete(room, connID)
	if conns := r.byConn[connID]; conns != nil {
		delete(conns, key)
		if len(conns) == 0 {
			delete(r.byConn, connID)
		}
	}

	pruned := false
	if len(room) == 0 {
		delete(r.rooms, key)
		pruned = true
	}
	return true, len(room), pruned
}

func (r *RoomRepository) RoomsOf(connID domain.ConnectionID) []domain.StreamKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]domain.StreamKey, 0, len(r.byConn[connID]))
	for key := range r.byConn[connID] {
		keys = append(keys, key)
	}
	return keys
}

func (r *RoomRepository) Members(key domain.StreamKey) []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[key]
	members := make([]domain.ConnectionID, 0, len(room))
	for connID := range room {
		members = append(members, connID)
	}
	return members
}

func (r *RoomRepository) IsMember(key domain.StreamKey, connID domain.ConnectionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[key]
	if !exists {
		return false
	}
	_, member := room[connID]
	return member
}

func (r *RoomRepository) Count(key domain.StreamKey) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[key])
}
