package domain

import "time"

type EventType string

const (
	EventStreamStarted     EventType = "stream-started"
	EventStreamEnded       EventType = "stream-ended"
	EventStreamEndedGlobal EventType = "stream-ended-global"
	EventMetadataUpdated   EventType = "stream-metadata-updated"
	EventViewerCount       EventType = "viewer-count"
	EventUserJoined        EventType = "user-joined"
	EventUserLeft          EventType = "user-left"
	EventChatMessage       EventType = "chat-message"
	EventReaction          EventType = "reaction"
)

// LifecycleEvent announces a stream state change to room members.
type LifecycleEvent struct {
	Type            EventType  `json:"type"`
	StreamKey       StreamKey  `json:"stream_key"`
	Media           *MediaMeta `json:"media,omitempty"`
	StartedAt       time.Time  `json:"started_at,omitempty"`
	EndedAt         time.Time  `json:"ended_at,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
}

// ViewerCountEvent carries the room membership cardinality. The count is
// always derived from the member set, never tracked independently.
type ViewerCountEvent struct {
	Type      EventType `json:"type"`
	StreamKey StreamKey `json:"stream_key"`
	Count     int       `json:"count"`
}

// PresenceEvent announces a viewer joining or leaving a room.
type PresenceEvent struct {
	Type      EventType `json:"type"`
	StreamKey StreamKey `json:"stream_key"`
	UserID    UserID    `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
}

// ChatEvent is a chat message fanned out to every room member, sender included.
type ChatEvent struct {
	Type      EventType `json:"type"`
	StreamKey StreamKey `json:"stream_key"`
	UserID    UserID    `json:"user_id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sent_at"`
}

// ReactionEvent is a reaction fanned out to every room member except the sender.
type ReactionEvent struct {
	Type      EventType `json:"type"`
	StreamKey StreamKey `json:"stream_key"`
	UserID    UserID    `json:"user_id"`
	Username  string    `json:"username"`
	Kind      string    `json:"kind"`
	SentAt    time.Time `json:"sent_at"`
}
