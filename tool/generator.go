package tool

import "github.com/google/uuid"

// NewID returns a random UUIDv4 string, used for queue item ids.
func NewID() string {
	return uuid.NewString()
}
