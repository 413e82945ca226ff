package util

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// generateRequestID returns a uuid-v4 string to use as request id
func generateRequestID() string {
	return uuid.NewString()
}

// NewID returns a new ULID string. ULIDs sort by creation time, which keeps
// ascending-id lock ordering aligned with arrival order.
func NewID() string {
	return ulid.Make().String()
}
