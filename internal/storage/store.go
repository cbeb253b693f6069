// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mmynk/groupchat/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Node is one keyed value inside a tree collection.
type Node struct {
	Key       string
	Value     json.RawMessage
	UpdatedAt int64
}

// TreeStore persists the realtime tree: named collections of JSON values
// keyed by opaque identifiers.
type TreeStore interface {
	// ListNodes returns every node of a collection ordered by key.
	// An unknown collection yields an empty slice, not an error.
	ListNodes(ctx context.Context, collection string) ([]Node, error)

	// PutNode replaces the value stored at collection/key.
	PutNode(ctx context.Context, collection, key string, value json.RawMessage) error

	// MergeNode merges top-level fields into the object stored at
	// collection/key, creating it when missing. A JSON null removes a field.
	MergeNode(ctx context.Context, collection, key string, fields map[string]json.RawMessage) error
}

// UserStore persists auth accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	// GetUserByEmail returns nil, nil when no account matches.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUserByID returns nil, nil when no account matches.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// SessionStore records signed-out sessions until their tokens expire.
type SessionStore interface {
	RevokeSession(ctx context.Context, sessionID string, expiresAt int64) error
	IsSessionRevoked(ctx context.Context, sessionID string) (bool, error)
}

// Store combines all storage interfaces.
// This abstraction allows swapping storage backends without changing the
// service layer.
type Store interface {
	TreeStore
	UserStore
	SessionStore

	// Close releases any resources held by the store.
	Close() error
}

// MergeFields overlays fields onto an existing JSON object. A missing or
// non-object existing value is treated as an empty object.
func MergeFields(existing json.RawMessage, fields map[string]json.RawMessage) (json.RawMessage, error) {
	obj := make(map[string]json.RawMessage)
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &obj); err != nil || obj == nil {
			obj = make(map[string]json.RawMessage)
		}
	}
	for name, value := range fields {
		if isNull(value) {
			delete(obj, name)
			continue
		}
		obj[name] = value
	}
	return json.Marshal(obj)
}

func isNull(v json.RawMessage) bool {
	return len(v) == 0 || string(v) == "null"
}
