package realtime

import (
	"fmt"

	"github.com/google/uuid"
)

// NewPushKey returns a new unique key. Keys are UUIDv7 strings, so keys
// generated later sort after earlier ones, the way push keys order
// children chronologically in managed realtime databases.
func NewPushKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return id.String(), nil
}
