package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// StreamKeyRegex validates stream key format
	StreamKeyRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

const (
	MaxStreamKeyLength   = 100
	MaxChatMessageLength = 500
	MaxReactionLength    = 32
)

// ValidateStreamKey validates stream key format.
func ValidateStreamKey(key string) error {
	if key == "" {
		return fmt.Errorf("stream key is required")
	}
	if len(key) > MaxStreamKeyLength {
		return fmt.Errorf("stream key is too long (max %d characters)", MaxStreamKeyLength)
	}
	if !StreamKeyRegex.MatchString(key) {
		return fmt.Errorf("invalid stream key format")
	}
	return nil
}

// ValidateChatMessage rejects empty or whitespace-only text and enforces the
// length cap. Returns the trimmed text.
func ValidateChatMessage(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("message text is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxChatMessageLength {
		return "", fmt.Errorf("message is too long (max %d characters)", MaxChatMessageLength)
	}
	return trimmed, nil
}

// ValidateReactionKind validates a reaction identifier.
func ValidateReactionKind(kind string) error {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return fmt.Errorf("reaction kind is required")
	}
	if len(kind) > MaxReactionLength {
		return fmt.Errorf("reaction kind is too long (max %d characters)", MaxReactionLength)
	}
	return nil
}
