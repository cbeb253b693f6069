// Package fsstore implements realtime.Store on Cloud Firestore. Each tree
// collection is a Firestore collection and each record a document whose ID
// is the record key.
package fsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/mmynk/groupchat/internal/realtime"
)

// Ensure Store implements realtime.Store
var _ realtime.Store = (*Store)(nil)

// ErrNotObject is returned when a record value is not a JSON object.
// Firestore documents are always maps.
var ErrNotObject = errors.New("firestore records must be JSON objects")

// Store is a realtime.Store over a Firestore client.
type Store struct {
	client *firestore.Client
}

// New wraps an existing Firestore client. The caller keeps ownership of it.
func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

// Subscribe follows collection with a Firestore snapshot listener.
func (s *Store) Subscribe(ctx context.Context, collection string, fn realtime.Listener, opts ...realtime.SubscribeOption) (realtime.Subscription, error) {
	if err := realtime.ValidateName(collection); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("subscribe %s: nil listener", collection)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel}
	onError := realtime.ApplySubscribeOptions(opts).OnError
	it := s.client.Collection(collection).Snapshots(subCtx)

	go func() {
		defer it.Stop()
		for {
			qs, err := it.Next()
			if err != nil {
				if subCtx.Err() == nil && !sub.isReleased() {
					slog.Error("Firestore listener stopped", "collection", collection, "error", err)
					onError(fmt.Errorf("subscription to %s stopped: %w", collection, err))
				}
				return
			}
			docs, err := qs.Documents.GetAll()
			if err != nil {
				slog.Error("Failed to read Firestore snapshot", "collection", collection, "error", err)
				continue
			}
			snap, err := toSnapshot(collection, docs)
			if err != nil {
				slog.Error("Failed to encode Firestore snapshot", "collection", collection, "error", err)
				continue
			}
			if sub.isReleased() {
				return
			}
			fn(snap)
		}
	}()

	return sub, nil
}

// NewKey returns a chronologically ordered key. Firestore's own document IDs
// are random, so push keys are generated locally.
func (s *Store) NewKey(_ context.Context, collection string) (string, error) {
	if err := realtime.ValidateName(collection); err != nil {
		return "", err
	}
	return realtime.NewPushKey()
}

// Set replaces the document at collection/key.
func (s *Store) Set(ctx context.Context, collection, key string, value any) error {
	if err := validatePath(collection, key); err != nil {
		return err
	}
	data, err := toDocumentData(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, key, err)
	}
	if _, err := s.client.Collection(collection).Doc(key).Set(ctx, data); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", collection, key, err)
	}
	return nil
}

// Update merges fields into the document, creating it when missing. Nil
// fields are deleted.
func (s *Store) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	if err := validatePath(collection, key); err != nil {
		return err
	}
	data, err := toMergeData(fields)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, key, err)
	}
	if _, err := s.client.Collection(collection).Doc(key).Set(ctx, data, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, key, err)
	}
	return nil
}

// Get reads every document of the collection.
func (s *Store) Get(ctx context.Context, collection string) (realtime.Snapshot, error) {
	if err := realtime.ValidateName(collection); err != nil {
		return realtime.Snapshot{}, err
	}

	iter := s.client.Collection(collection).Documents(ctx)
	defer iter.Stop()

	var docs []*firestore.DocumentSnapshot
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return realtime.Snapshot{}, fmt.Errorf("while reading %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	return toSnapshot(collection, docs)
}

type subscription struct {
	cancel context.CancelFunc

	mu       sync.Mutex
	released bool
}

func (s *subscription) Release() {
	s.mu.Lock()
	s.released = true
	s.mu.Unlock()
	s.cancel()
}

func (s *subscription) isReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func validatePath(collection, key string) error {
	if err := realtime.ValidateName(collection); err != nil {
		return err
	}
	return realtime.ValidateName(key)
}

func toSnapshot(collection string, docs []*firestore.DocumentSnapshot) (realtime.Snapshot, error) {
	snap := realtime.Snapshot{Collection: collection, Children: make([]realtime.Child, 0, len(docs))}
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		raw, err := json.Marshal(doc.Data())
		if err != nil {
			return realtime.Snapshot{}, fmt.Errorf("document %s: %w", doc.Ref.ID, err)
		}
		snap.Children = append(snap.Children, realtime.Child{Key: doc.Ref.ID, Value: raw})
	}
	sort.Slice(snap.Children, func(i, j int) bool { return snap.Children[i].Key < snap.Children[j].Key })
	return snap, nil
}

// toDocumentData round-trips value through JSON so documents carry the
// same field names as every other backend.
func toDocumentData(value any) (map[string]any, error) {
	var raw []byte
	if r, ok := value.(json.RawMessage); ok {
		raw = r
	} else {
		var err error
		raw, err = json.Marshal(value)
		if err != nil {
			return nil, err
		}
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		return nil, ErrNotObject
	}
	return data, nil
}

func toMergeData(fields map[string]any) (map[string]any, error) {
	encoded, err := realtime.EncodeFields(fields)
	if err != nil {
		return nil, err
	}
	data := make(map[string]any, len(encoded))
	for name, raw := range encoded {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		if v == nil {
			data[name] = firestore.Delete
			continue
		}
		data[name] = v
	}
	return data, nil
}
