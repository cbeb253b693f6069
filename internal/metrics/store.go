package metrics

import (
	"context"
	"sync"

	"github.com/mmynk/groupchat/internal/realtime"
)

// Ensure ObservedStore implements realtime.Store
var _ realtime.Store = (*ObservedStore)(nil)

// ObservedStore reports the activity of a store that has no Observer hook
// of its own, such as the Firestore backend. Each delivered snapshot counts
// as one fan-out delivery.
type ObservedStore struct {
	next     realtime.Store
	observer realtime.Observer
}

// Observe wraps store so its writes and subscriptions are recorded in m.
func (m *Metrics) Observe(store realtime.Store) *ObservedStore {
	return &ObservedStore{next: store, observer: m}
}

func (s *ObservedStore) Subscribe(ctx context.Context, collection string, fn realtime.Listener, opts ...realtime.SubscribeOption) (realtime.Subscription, error) {
	o := realtime.ApplySubscribeOptions(opts)
	sub := &observedSubscription{collection: collection, observer: s.observer}

	inner, err := s.next.Subscribe(ctx, collection, func(snap realtime.Snapshot) {
		s.observer.ObserveFanout(collection, 1)
		fn(snap)
	}, realtime.WithErrorHandler(func(err error) {
		sub.Release()
		o.OnError(err)
	}))
	if err != nil {
		return nil, err
	}

	sub.mu.Lock()
	sub.inner = inner
	early := sub.released
	if !early {
		s.observer.SubscriptionOpened(collection)
	}
	sub.mu.Unlock()
	if early {
		inner.Release()
		return sub, nil
	}
	context.AfterFunc(ctx, sub.Release)
	return sub, nil
}

func (s *ObservedStore) NewKey(ctx context.Context, collection string) (string, error) {
	return s.next.NewKey(ctx, collection)
}

func (s *ObservedStore) Set(ctx context.Context, collection, key string, value any) error {
	err := s.next.Set(ctx, collection, key, value)
	s.observer.ObserveWrite(collection, "set", err)
	return err
}

func (s *ObservedStore) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	err := s.next.Update(ctx, collection, key, fields)
	s.observer.ObserveWrite(collection, "update", err)
	return err
}

func (s *ObservedStore) Get(ctx context.Context, collection string) (realtime.Snapshot, error) {
	return s.next.Get(ctx, collection)
}

type observedSubscription struct {
	collection string
	observer   realtime.Observer

	mu       sync.Mutex
	inner    realtime.Subscription
	released bool
}

// Release closes the inner subscription and counts it closed once. A
// release that races Subscribe is finished by Subscribe.
func (s *observedSubscription) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	inner := s.inner
	s.mu.Unlock()
	if inner == nil {
		return
	}

	inner.Release()
	s.observer.SubscriptionClosed(s.collection)
}
