package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/groupchat/internal/realtime"
	"github.com/mmynk/groupchat/pkg/api"
	"github.com/mmynk/groupchat/pkg/api/apiconnect"
)

// Ensure Tree implements realtime.Store
var _ realtime.Store = (*Tree)(nil)

const (
	defaultMinReconnectDelay = 500 * time.Millisecond
	defaultMaxReconnectDelay = 30 * time.Second
)

// Tree is a realtime.Store backed by a remote tree service. Subscriptions
// reconnect with exponential back-off when their stream ends.
type Tree struct {
	client   apiconnect.TreeServiceClient
	minDelay time.Duration
	maxDelay time.Duration
}

// TreeOption configures a Tree.
type TreeOption func(*Tree)

// WithReconnectDelay bounds the pause between subscription reconnects.
func WithReconnectDelay(minDelay, maxDelay time.Duration) TreeOption {
	return func(t *Tree) {
		t.minDelay = minDelay
		t.maxDelay = maxDelay
	}
}

// NewTree creates a remote store at baseURL. Calls carry the bearer token
// of tokens.
func NewTree(httpClient connect.HTTPClient, baseURL string, tokens TokenSource, opts ...TreeOption) *Tree {
	t := &Tree{
		client: apiconnect.NewTreeServiceClient(httpClient, baseURL,
			connect.WithInterceptors(BearerInterceptor(tokens)),
		),
		minDelay: defaultMinReconnectDelay,
		maxDelay: defaultMaxReconnectDelay,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Subscribe streams snapshots of collection to fn until released. fn runs
// on the subscription's goroutine. A rejected subscription is not retried
// and is reported to the error handler.
func (t *Tree) Subscribe(ctx context.Context, collection string, fn realtime.Listener, opts ...realtime.SubscribeOption) (realtime.Subscription, error) {
	if err := realtime.ValidateName(collection); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("subscribe %s: nil listener", collection)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &remoteSubscription{cancel: cancel}
	onError := realtime.ApplySubscribeOptions(opts).OnError
	go t.follow(subCtx, collection, fn, sub, onError)
	return sub, nil
}

func (t *Tree) follow(ctx context.Context, collection string, fn realtime.Listener, sub *remoteSubscription, onError func(error)) {
	delay := t.minDelay
	for {
		received, err := t.stream(ctx, collection, fn, sub)
		if ctx.Err() != nil {
			return
		}
		if code := connect.CodeOf(err); code == connect.CodeUnauthenticated || code == connect.CodePermissionDenied || code == connect.CodeInvalidArgument {
			slog.Error("Subscription rejected", "collection", collection, "error", err)
			if !sub.isReleased() {
				onError(fmt.Errorf("subscription to %s rejected: %w", collection, err))
			}
			return
		}
		if received {
			delay = t.minDelay
		}
		slog.Warn("Subscription ended, reconnecting", "collection", collection, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay = min(delay*2, t.maxDelay)
	}
}

// stream runs one server stream and reports whether any snapshot arrived.
func (t *Tree) stream(ctx context.Context, collection string, fn realtime.Listener, sub *remoteSubscription) (bool, error) {
	stream, err := t.client.Subscribe(ctx, connect.NewRequest(&api.SubscribeRequest{Collection: collection}))
	if err != nil {
		return false, err
	}
	defer stream.Close()

	received := false
	for stream.Receive() {
		received = true
		if sub.isReleased() {
			return received, nil
		}
		fn(fromAPISnapshot(stream.Msg()))
	}
	if err := stream.Err(); err != nil {
		return received, err
	}
	return received, errors.New("stream closed by server")
}

// NewKey asks the server for a fresh push key.
func (t *Tree) NewKey(ctx context.Context, collection string) (string, error) {
	resp, err := t.client.NewKey(ctx, connect.NewRequest(&api.NewKeyRequest{Collection: collection}))
	if err != nil {
		return "", fmt.Errorf("failed to reserve key in %s: %w", collection, err)
	}
	return resp.Msg.Key, nil
}

// Set replaces a record.
func (t *Tree) Set(ctx context.Context, collection, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, key, err)
	}
	if _, err := t.client.Set(ctx, connect.NewRequest(&api.SetRequest{
		Collection: collection,
		Key:        key,
		Value:      raw,
	})); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", collection, key, err)
	}
	return nil
}

// Update merges fields into a record.
func (t *Tree) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	encoded, err := realtime.EncodeFields(fields)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, key, err)
	}
	if _, err := t.client.Update(ctx, connect.NewRequest(&api.UpdateRequest{
		Collection: collection,
		Key:        key,
		Fields:     encoded,
	})); err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, key, err)
	}
	return nil
}

// Get reads a collection once.
func (t *Tree) Get(ctx context.Context, collection string) (realtime.Snapshot, error) {
	resp, err := t.client.Get(ctx, connect.NewRequest(&api.GetRequest{Collection: collection}))
	if err != nil {
		return realtime.Snapshot{}, fmt.Errorf("failed to get %s: %w", collection, err)
	}
	return fromAPISnapshot(&resp.Msg.Snapshot), nil
}

type remoteSubscription struct {
	cancel context.CancelFunc

	mu       sync.Mutex
	released bool
}

// Release stops the stream. It does not wait for an in-flight listener
// call to return.
func (s *remoteSubscription) Release() {
	s.mu.Lock()
	s.released = true
	s.mu.Unlock()
	s.cancel()
}

func (s *remoteSubscription) isReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func fromAPISnapshot(snap *api.Snapshot) realtime.Snapshot {
	out := realtime.Snapshot{
		Collection: snap.Collection,
		Children:   make([]realtime.Child, len(snap.Children)),
	}
	for i, c := range snap.Children {
		out.Children[i] = realtime.Child{Key: c.Key, Value: c.Value}
	}
	return out
}
