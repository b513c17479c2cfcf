package domain

import "time"

type StreamStatus string

const (
	StatusIdle     StreamStatus = "idle"
	StatusStarting StreamStatus = "starting"
	StatusLive     StreamStatus = "live"
	StatusEnded    StreamStatus = "ended"
	StatusError    StreamStatus = "error"
)

// StreamState is the per-key lifecycle state owned by the state machine.
// EndedAt is set iff Status is Ended or Error. Status Live implies exactly
// one publish session exists for the key.
type StreamState struct {
	StreamKey StreamKey
	Status    StreamStatus
	Owner     UserID
	IsPrivate bool
	StartedAt time.Time
	EndedAt   time.Time
	Media     *MediaMeta
}

// Duration returns the stream length for an Ended stream, zero otherwise.
func (s StreamState) Duration() time.Duration {
	if s.Status != StatusEnded || s.StartedAt.IsZero() || s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// StreamRecord is the persisted view of a stream, owned by the storage
// collaborator. Owner and privacy come from provisioning; the coordinator is
// the sole writer of status and timestamps while a stream is active.
type StreamRecord struct {
	StreamKey StreamKey    `json:"stream_key"`
	Owner     UserID       `json:"owner"`
	IsPrivate bool         `json:"is_private"`
	Status    StreamStatus `json:"status"`
	StartedAt time.Time    `json:"started_at,omitempty"`
	EndedAt   time.Time    `json:"ended_at,omitempty"`
}
