package domain

import "errors"

var (
	// Authentication failures (missing, invalid or expired credential).
	ErrCredentialMissing = errors.New("credential missing")
	ErrCredentialInvalid = errors.New("credential invalid")
	ErrCredentialExpired = errors.New("credential expired")
	ErrAuthTimeout       = errors.New("authorization timed out")

	// Authorization failures (role, ownership or privacy violation).
	ErrNotAuthorized = errors.New("not authorized")
	ErrNotRoomMember = errors.New("not a member of the stream room")

	ErrStreamNotFound  = errors.New("stream not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrRoomNotFound    = errors.New("room not found")

	// Exclusivity invariant: one publish session per stream key.
	ErrPublishConflict = errors.New("publish session already active for stream key")

	ErrEmptyMessage = errors.New("message text is empty")
)

// IsAuthenticationError reports whether err is a credential-level failure,
// as opposed to an authorization (permission) failure.
func IsAuthenticationError(err error) bool {
	return errors.Is(err, ErrCredentialMissing) ||
		errors.Is(err, ErrCredentialInvalid) ||
		errors.Is(err, ErrCredentialExpired) ||
		errors.Is(err, ErrAuthTimeout)
}

// IsAuthorizationError reports whether err is a permission failure.
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrNotAuthorized) || errors.Is(err, ErrNotRoomMember)
}
