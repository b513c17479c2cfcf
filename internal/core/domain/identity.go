package domain

type UserID string

type IdentityRole string

const (
	RoleUser     IdentityRole = "user"
	RoleStreamer IdentityRole = "streamer"
	RoleAdmin    IdentityRole = "admin"
)

// Identity describes an authenticated principal. It is resolved once by the
// identity collaborator and treated as immutable for the lifetime of a session.
type Identity struct {
	ID             UserID
	Username       string
	Role           IdentityRole
	StreamKeyOwned StreamKey
	Followers      []UserID
	Following      []UserID
}

// CanPublish reports whether the identity may push media under the given key.
// Admins may publish to any key; streamers only to the key they own.
func (i *Identity) CanPublish(key StreamKey) bool {
	if i == nil {
		return false
	}
	switch i.Role {
	case RoleAdmin:
		return true
	case RoleStreamer:
		return i.StreamKeyOwned == key
	default:
		return false
	}
}

// HasFollower reports whether id is in the identity's follower list.
func (i *Identity) HasFollower(id UserID) bool {
	if i == nil {
		return false
	}
	for _, f := range i.Followers {
		if f == id {
			return true
		}
	}
	return false
}
