package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateConnectionID generates a unique connection id.
func GenerateConnectionID() string {
	return fmt.Sprintf("conn_%s", uuid.NewString())
}

// GenerateSessionID generates a unique session id.
func GenerateSessionID() string {
	return fmt.Sprintf("session_%s", uuid.NewString())
}

// GenerateRequestID generates a unique request id for transport envelopes.
func GenerateRequestID() string {
	return fmt.Sprintf("req_%s", uuid.NewString())
}
