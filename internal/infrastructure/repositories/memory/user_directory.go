package memory

import (
	"context"
	"sync"

	"livegate/internal/core/domain"
)

// UserDirectory is an in-memory identity backing store for the JWT identity
// provider. Production deployments replace it with a remote directory.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[domain.UserID]*domain.Identity
}

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{users: make(map[domain.UserID]*domain.Identity)}
}

// Put registers or replaces an identity.
func (d *UserDirectory) Put(identity *domain.Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[identity.ID] = identity
}

// GetIdentity returns the identity for id, or domain.ErrCredentialInvalid
// when the principal is unknown.
func (d *UserDirectory) GetIdentity(ctx context.Context, id domain.UserID) (*domain.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	identity, exists := d.users[id]
	if !exists {
		return nil, domain.ErrCredentialInvalid
	}
	cp := *identity
	return &cp, nil
}
