package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/groupchat/internal/middleware"
	"github.com/mmynk/groupchat/internal/models"
	"github.com/mmynk/groupchat/internal/realtime"
	"github.com/mmynk/groupchat/pkg/api"
	"github.com/mmynk/groupchat/pkg/api/apiconnect"
)

// Ensure TreeService implements apiconnect.TreeServiceHandler
var _ apiconnect.TreeServiceHandler = (*TreeService)(nil)

var errNotOwner = errors.New("records in this collection can only be written by their owner")

// ownedCollections are keyed by user ID; only the owner may write them.
var ownedCollections = map[string]bool{
	models.CollectionUsers:    true,
	models.CollectionContacts: true,
	models.CollectionProfiles: true,
}

// TreeService implements the TreeService RPC interface on top of a
// realtime.Store.
type TreeService struct {
	tree realtime.Store
}

// NewTreeService creates a new tree service.
func NewTreeService(tree realtime.Store) *TreeService {
	return &TreeService{tree: tree}
}

// Subscribe streams a snapshot of the collection now and after every change
// until the client goes away.
func (s *TreeService) Subscribe(ctx context.Context, req *connect.Request[api.SubscribeRequest], stream *connect.ServerStream[api.Snapshot]) error {
	collection := req.Msg.Collection
	slog.Info("Subscribe request received", "collection", collection, "user_id", middleware.GetUserID(ctx))

	pending := make(chan realtime.Snapshot, 1)
	failed := make(chan error, 1)
	sub, err := s.tree.Subscribe(ctx, collection, func(snap realtime.Snapshot) {
		// Keep only the newest undelivered snapshot.
		for {
			select {
			case pending <- snap:
				return
			default:
			}
			select {
			case <-pending:
			default:
			}
		}
	}, realtime.WithErrorHandler(func(err error) {
		failed <- err
	}))
	if err != nil {
		slog.Error("Subscribe failed", "collection", collection, "error", err)
		return treeError(err)
	}
	defer sub.Release()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-failed:
			slog.Error("Subscription failed", "collection", collection, "error", err)
			return connect.NewError(connect.CodeUnavailable, err)
		case snap := <-pending:
			if err := stream.Send(toAPISnapshot(snap)); err != nil {
				slog.Debug("Subscribe stream closed", "collection", collection, "error", err)
				return nil
			}
		}
	}
}

// NewKey reserves a chronologically ordered key.
func (s *TreeService) NewKey(ctx context.Context, req *connect.Request[api.NewKeyRequest]) (*connect.Response[api.NewKeyResponse], error) {
	key, err := s.tree.NewKey(ctx, req.Msg.Collection)
	if err != nil {
		slog.Error("NewKey failed", "collection", req.Msg.Collection, "error", err)
		return nil, treeError(err)
	}
	return connect.NewResponse(&api.NewKeyResponse{Key: key}), nil
}

// Set replaces a record.
func (s *TreeService) Set(ctx context.Context, req *connect.Request[api.SetRequest]) (*connect.Response[api.SetResponse], error) {
	msg := req.Msg
	slog.Info("Set request received", "collection", msg.Collection, "key", msg.Key)

	if err := checkOwner(ctx, msg.Collection, msg.Key); err != nil {
		return nil, err
	}
	if len(msg.Value) == 0 || !json.Valid(msg.Value) {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("value must be valid JSON"))
	}

	if err := s.tree.Set(ctx, msg.Collection, msg.Key, msg.Value); err != nil {
		slog.Error("Set failed", "collection", msg.Collection, "key", msg.Key, "error", err)
		return nil, treeError(err)
	}
	return connect.NewResponse(&api.SetResponse{}), nil
}

// Update merges fields into a record.
func (s *TreeService) Update(ctx context.Context, req *connect.Request[api.UpdateRequest]) (*connect.Response[api.UpdateResponse], error) {
	msg := req.Msg
	slog.Info("Update request received", "collection", msg.Collection, "key", msg.Key, "fields", len(msg.Fields))

	if err := checkOwner(ctx, msg.Collection, msg.Key); err != nil {
		return nil, err
	}

	fields := make(map[string]any, len(msg.Fields))
	for name, raw := range msg.Fields {
		if len(raw) == 0 {
			raw = json.RawMessage("null")
		}
		fields[name] = raw
	}

	if err := s.tree.Update(ctx, msg.Collection, msg.Key, fields); err != nil {
		slog.Error("Update failed", "collection", msg.Collection, "key", msg.Key, "error", err)
		return nil, treeError(err)
	}
	return connect.NewResponse(&api.UpdateResponse{}), nil
}

// Get returns the current snapshot of a collection.
func (s *TreeService) Get(ctx context.Context, req *connect.Request[api.GetRequest]) (*connect.Response[api.GetResponse], error) {
	snap, err := s.tree.Get(ctx, req.Msg.Collection)
	if err != nil {
		slog.Error("Get failed", "collection", req.Msg.Collection, "error", err)
		return nil, treeError(err)
	}
	return connect.NewResponse(&api.GetResponse{Snapshot: *toAPISnapshot(snap)}), nil
}

func checkOwner(ctx context.Context, collection, key string) error {
	if !ownedCollections[collection] {
		return nil
	}
	if userID := middleware.GetUserID(ctx); userID != key {
		return connect.NewError(connect.CodePermissionDenied, fmt.Errorf("%w: %s/%s", errNotOwner, collection, key))
	}
	return nil
}

func treeError(err error) error {
	if errors.Is(err, realtime.ErrInvalidName) {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	if errors.Is(err, context.Canceled) {
		return connect.NewError(connect.CodeCanceled, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

func toAPISnapshot(snap realtime.Snapshot) *api.Snapshot {
	out := &api.Snapshot{
		Collection: snap.Collection,
		Children:   make([]api.Child, len(snap.Children)),
	}
	for i, c := range snap.Children {
		out.Children[i] = api.Child{Key: c.Key, Value: c.Value}
	}
	return out
}
