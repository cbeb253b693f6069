package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mmynk/groupchat/internal/storage"
)

// Ensure Hub implements Store
var _ Store = (*Hub)(nil)

// Observer receives hub activity, e.g. for metrics.
type Observer interface {
	ObserveWrite(collection, op string, err error)
	SubscriptionOpened(collection string)
	SubscriptionClosed(collection string)
	ObserveFanout(collection string, subscribers int)
}

type nopObserver struct{}

func (nopObserver) ObserveWrite(string, string, error) {}
func (nopObserver) SubscriptionOpened(string)          {}
func (nopObserver) SubscriptionClosed(string)          {}
func (nopObserver) ObserveFanout(string, int)          {}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithObserver reports hub activity to o.
func WithObserver(o Observer) HubOption {
	return func(h *Hub) { h.observer = o }
}

// Hub is a Store over a storage.TreeStore that fans every committed write
// out to the collection's subscribers.
//
// Writes and snapshot loads of one collection are serialized, so
// subscribers always observe snapshots in commit order. Each subscriber
// drains a one-slot mailbox on its own goroutine: a slow listener skips
// intermediate snapshots but always ends on the newest one.
type Hub struct {
	backend  storage.TreeStore
	observer Observer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	subs  map[string]map[*subscriber]struct{}
}

// NewHub creates a hub persisting to backend.
func NewHub(backend storage.TreeStore, opts ...HubOption) *Hub {
	h := &Hub{
		backend:  backend,
		observer: nopObserver{},
		locks:    make(map[string]*sync.Mutex),
		subs:     make(map[string]map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers fn and delivers the current snapshot immediately.
func (h *Hub) Subscribe(ctx context.Context, collection string, fn Listener, opts ...SubscribeOption) (Subscription, error) {
	if err := ValidateName(collection); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("subscribe %s: nil listener", collection)
	}

	lock := h.collectionLock(collection)
	lock.Lock()
	defer lock.Unlock()

	snap, err := h.load(ctx, collection)
	if err != nil {
		return nil, err
	}

	s := &subscriber{
		hub:        h,
		collection: collection,
		fn:         fn,
		onError:    ApplySubscribeOptions(opts).OnError,
		mailbox:    make(chan Snapshot, 1),
		done:       make(chan struct{}),
	}
	h.mu.Lock()
	set, ok := h.subs[collection]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[collection] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()

	h.observer.SubscriptionOpened(collection)
	slog.Debug("Subscription opened", "collection", collection)

	s.offer(snap)
	go s.run()
	context.AfterFunc(ctx, s.Release)

	return s, nil
}

// NewKey returns a fresh push key; nothing is written.
func (h *Hub) NewKey(_ context.Context, collection string) (string, error) {
	if err := ValidateName(collection); err != nil {
		return "", err
	}
	return NewPushKey()
}

// Set replaces a record and notifies subscribers.
func (h *Hub) Set(ctx context.Context, collection, key string, value any) error {
	if err := validatePath(collection, key); err != nil {
		return err
	}
	raw, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, key, err)
	}
	return h.write(ctx, collection, "set", func() error {
		return h.backend.PutNode(ctx, collection, key, raw)
	})
}

// Update merges fields into a record and notifies subscribers.
func (h *Hub) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	if err := validatePath(collection, key); err != nil {
		return err
	}
	encoded, err := EncodeFields(fields)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, key, err)
	}
	return h.write(ctx, collection, "update", func() error {
		return h.backend.MergeNode(ctx, collection, key, encoded)
	})
}

// Get loads the current snapshot of a collection.
func (h *Hub) Get(ctx context.Context, collection string) (Snapshot, error) {
	if err := ValidateName(collection); err != nil {
		return Snapshot{}, err
	}
	return h.load(ctx, collection)
}

// Subscribers returns the number of live subscriptions on a collection.
func (h *Hub) Subscribers(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[collection])
}

func (h *Hub) write(ctx context.Context, collection, op string, apply func() error) error {
	lock := h.collectionLock(collection)
	lock.Lock()
	defer lock.Unlock()

	err := apply()
	h.observer.ObserveWrite(collection, op, err)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", op, collection, err)
	}

	snap, err := h.load(ctx, collection)
	if err != nil {
		// The write is committed but subscribers can no longer be trusted
		// to hold the newest state.
		slog.Error("Snapshot load after write failed", "collection", collection, "error", err)
		h.fail(collection, err)
		return nil
	}
	h.publish(snap)
	return nil
}

func (h *Hub) load(ctx context.Context, collection string) (Snapshot, error) {
	nodes, err := h.backend.ListNodes(ctx, collection)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load %s: %w", collection, err)
	}
	snap := Snapshot{Collection: collection, Children: make([]Child, len(nodes))}
	for i, n := range nodes {
		snap.Children[i] = Child{Key: n.Key, Value: n.Value}
	}
	return snap, nil
}

func (h *Hub) publish(snap Snapshot) {
	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs[snap.Collection]))
	for s := range h.subs[snap.Collection] {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		s.offer(snap)
	}
	h.observer.ObserveFanout(snap.Collection, len(targets))
}

// fail ends every subscription on collection and reports err to each.
func (h *Hub) fail(collection string, err error) {
	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs[collection]))
	for s := range h.subs[collection] {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		s.fail(fmt.Errorf("subscription to %s stopped: %w", collection, err))
	}
}

func (h *Hub) collectionLock(collection string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		h.locks[collection] = l
	}
	return l
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subs[s.collection], s)
	h.mu.Unlock()
	h.observer.SubscriptionClosed(s.collection)
	slog.Debug("Subscription released", "collection", s.collection)
}

func validatePath(collection, key string) error {
	if err := ValidateName(collection); err != nil {
		return err
	}
	return ValidateName(key)
}

type subscriber struct {
	hub        *Hub
	collection string
	fn         Listener
	onError    func(error)
	mailbox    chan Snapshot
	done       chan struct{}
	once       sync.Once
	released   atomic.Bool
}

// offer replaces any undelivered snapshot with snap. Callers hold the
// collection lock, so there is a single producer per subscriber.
func (s *subscriber) offer(snap Snapshot) {
	for {
		select {
		case s.mailbox <- snap:
			return
		default:
		}
		select {
		case <-s.mailbox:
		default:
		}
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case snap := <-s.mailbox:
			if s.released.Load() {
				return
			}
			s.fn(snap)
		}
	}
}

// fail releases s and reports err unless it was already released.
func (s *subscriber) fail(err error) {
	if s.stop() {
		go s.onError(err)
	}
}

// Release stops delivery. A listener already running finishes; no
// snapshot is started after Release returns.
func (s *subscriber) Release() {
	s.stop()
}

// stop reports whether this call was the one that released s.
func (s *subscriber) stop() bool {
	first := false
	s.once.Do(func() {
		first = true
		s.released.Store(true)
		close(s.done)
		s.hub.remove(s)
	})
	return first
}
