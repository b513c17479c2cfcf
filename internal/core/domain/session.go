package domain

import "time"

type StreamKey string
type ConnectionID string
type SessionID string

type SessionRole string

const (
	SessionPublish SessionRole = "publish"
	SessionPlay    SessionRole = "play"
)

// MediaMeta carries the media parameters reported by the ingest layer when a
// publish is confirmed.
type MediaMeta struct {
	Codec   string `json:"codec"`
	Bitrate int    `json:"bitrate"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// ConnMeta describes the underlying connection a session rides on.
type ConnMeta struct {
	RemoteAddr string
	UserAgent  string
}

// Session is one active publish or play connection. At most one publish
// session exists per stream key at any time; play sessions are unbounded.
// Identity is nil for anonymous viewers of public streams.
type Session struct {
	ID           SessionID
	ConnectionID ConnectionID
	StreamKey    StreamKey
	Role         SessionRole
	Identity     *Identity
	StartedAt    time.Time
	Media        *MediaMeta
	Conn         ConnMeta
}

// IsPublish reports whether the session belongs to a content producer.
func (s *Session) IsPublish() bool {
	return s != nil && s.Role == SessionPublish
}
