// Package realtime implements the live key/value tree the screens are bound
// to: named collections of JSON records that can be read, written and
// subscribed to. Every change to a collection is pushed to its subscribers
// as a complete snapshot.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidName is returned for empty or malformed collection names and keys.
var ErrInvalidName = errors.New("invalid collection name or key")

// Child is one keyed record of a snapshot.
type Child struct {
	Key   string
	Value json.RawMessage
}

// Decode unmarshals the child's value into v.
func (c Child) Decode(v any) error {
	return json.Unmarshal(c.Value, v)
}

// Snapshot is a complete point-in-time copy of a collection.
// Children are ordered by key.
type Snapshot struct {
	Collection string
	Children   []Child
}

// Exists reports whether the collection holds any record.
func (s Snapshot) Exists() bool {
	return len(s.Children) > 0
}

// Child returns the record stored under key.
func (s Snapshot) Child(key string) (Child, bool) {
	i := sort.Search(len(s.Children), func(i int) bool { return s.Children[i].Key >= key })
	if i < len(s.Children) && s.Children[i].Key == key {
		return s.Children[i], true
	}
	return Child{}, false
}

// Keys returns the record keys in order.
func (s Snapshot) Keys() []string {
	keys := make([]string, len(s.Children))
	for i, c := range s.Children {
		keys[i] = c.Key
	}
	return keys
}

// Listener receives snapshots. It runs on a store-owned goroutine.
type Listener func(Snapshot)

// Subscription is a handle on a live listener. Release stops delivery; it is
// idempotent and safe to call after the owner is gone.
type Subscription interface {
	Release()
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*SubscribeOptions)

// SubscribeOptions holds the settings applied by SubscribeOption values.
type SubscribeOptions struct {
	// OnError is called once when the subscription stops delivering for
	// good, e.g. because the backend rejected it. It is not called after
	// Release or context cancellation.
	OnError func(error)
}

// WithErrorHandler reports a subscription that fails for good to fn.
func WithErrorHandler(fn func(error)) SubscribeOption {
	return func(o *SubscribeOptions) { o.OnError = fn }
}

// ApplySubscribeOptions collects opts. OnError is never nil.
func ApplySubscribeOptions(opts []SubscribeOption) SubscribeOptions {
	var o SubscribeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.OnError == nil {
		o.OnError = func(error) {}
	}
	return o
}

// Store is the storage collaborator the screens consume.
type Store interface {
	// Subscribe registers fn for collection. fn receives the current
	// snapshot right away and a new one after every change. The
	// subscription is released when ctx is done or Release is called.
	// Failures after Subscribe returns go to WithErrorHandler.
	Subscribe(ctx context.Context, collection string, fn Listener, opts ...SubscribeOption) (Subscription, error)

	// NewKey reserves a new server-assigned, chronologically ordered key
	// in collection. Nothing is written.
	NewKey(ctx context.Context, collection string) (string, error)

	// Set replaces the record at collection/key with value.
	Set(ctx context.Context, collection, key string, value any) error

	// Update merges fields into the record at collection/key without
	// clearing unspecified fields. A nil field value removes the field.
	Update(ctx context.Context, collection, key string, fields map[string]any) error

	// Get reads the current snapshot of collection once.
	Get(ctx context.Context, collection string) (Snapshot, error)
}

// ValidateName checks a collection name or record key. Names follow the
// managed realtime databases' key rules: non-empty, no path separators and
// none of . # $ [ ].
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, "/.#$[]") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// EncodeFields marshals each field of a partial update.
func EncodeFields(fields map[string]any) (map[string]json.RawMessage, error) {
	encoded := make(map[string]json.RawMessage, len(fields))
	for name, value := range fields {
		if err := ValidateName(name); err != nil {
			return nil, fmt.Errorf("field: %w", err)
		}
		raw, err := encodeValue(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field %q: %w", name, err)
		}
		encoded[name] = raw
	}
	return encoded, nil
}

func encodeValue(value any) (json.RawMessage, error) {
	if raw, ok := value.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, errors.New("invalid JSON")
		}
		return raw, nil
	}
	return json.Marshal(value)
}
