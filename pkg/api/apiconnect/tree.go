// Package apiconnect wires the api messages to Connect handlers and clients.
package apiconnect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/groupchat/pkg/api"
)

// Procedure paths of the tree service.
const (
	TreeServiceSubscribeProcedure = "/" + api.TreeServiceName + "/Subscribe"
	TreeServiceNewKeyProcedure    = "/" + api.TreeServiceName + "/NewKey"
	TreeServiceSetProcedure       = "/" + api.TreeServiceName + "/Set"
	TreeServiceUpdateProcedure    = "/" + api.TreeServiceName + "/Update"
	TreeServiceGetProcedure       = "/" + api.TreeServiceName + "/Get"
)

// TreeServiceHandler is implemented by the server side of the tree service.
type TreeServiceHandler interface {
	Subscribe(context.Context, *connect.Request[api.SubscribeRequest], *connect.ServerStream[api.Snapshot]) error
	NewKey(context.Context, *connect.Request[api.NewKeyRequest]) (*connect.Response[api.NewKeyResponse], error)
	Set(context.Context, *connect.Request[api.SetRequest]) (*connect.Response[api.SetResponse], error)
	Update(context.Context, *connect.Request[api.UpdateRequest]) (*connect.Response[api.UpdateResponse], error)
	Get(context.Context, *connect.Request[api.GetRequest]) (*connect.Response[api.GetResponse], error)
}

// NewTreeServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewTreeServiceHandler(svc TreeServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(api.Codec{})}, opts...)

	subscribe := connect.NewServerStreamHandler(TreeServiceSubscribeProcedure, svc.Subscribe, opts...)
	newKey := connect.NewUnaryHandler(TreeServiceNewKeyProcedure, svc.NewKey, opts...)
	set := connect.NewUnaryHandler(TreeServiceSetProcedure, svc.Set, opts...)
	update := connect.NewUnaryHandler(TreeServiceUpdateProcedure, svc.Update, opts...)
	get := connect.NewUnaryHandler(TreeServiceGetProcedure, svc.Get, opts...)

	return "/" + api.TreeServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case TreeServiceSubscribeProcedure:
			subscribe.ServeHTTP(w, r)
		case TreeServiceNewKeyProcedure:
			newKey.ServeHTTP(w, r)
		case TreeServiceSetProcedure:
			set.ServeHTTP(w, r)
		case TreeServiceUpdateProcedure:
			update.ServeHTTP(w, r)
		case TreeServiceGetProcedure:
			get.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// TreeServiceClient is a client for the tree service.
type TreeServiceClient interface {
	Subscribe(context.Context, *connect.Request[api.SubscribeRequest]) (*connect.ServerStreamForClient[api.Snapshot], error)
	NewKey(context.Context, *connect.Request[api.NewKeyRequest]) (*connect.Response[api.NewKeyResponse], error)
	Set(context.Context, *connect.Request[api.SetRequest]) (*connect.Response[api.SetResponse], error)
	Update(context.Context, *connect.Request[api.UpdateRequest]) (*connect.Response[api.UpdateResponse], error)
	Get(context.Context, *connect.Request[api.GetRequest]) (*connect.Response[api.GetResponse], error)
}

// NewTreeServiceClient constructs a client for the tree service at baseURL,
// e.g. http://localhost:8080.
func NewTreeServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) TreeServiceClient {
	opts = append([]connect.ClientOption{connect.WithCodec(api.Codec{})}, opts...)
	return &treeServiceClient{
		subscribe: connect.NewClient[api.SubscribeRequest, api.Snapshot](httpClient, baseURL+TreeServiceSubscribeProcedure, opts...),
		newKey:    connect.NewClient[api.NewKeyRequest, api.NewKeyResponse](httpClient, baseURL+TreeServiceNewKeyProcedure, opts...),
		set:       connect.NewClient[api.SetRequest, api.SetResponse](httpClient, baseURL+TreeServiceSetProcedure, opts...),
		update:    connect.NewClient[api.UpdateRequest, api.UpdateResponse](httpClient, baseURL+TreeServiceUpdateProcedure, opts...),
		get:       connect.NewClient[api.GetRequest, api.GetResponse](httpClient, baseURL+TreeServiceGetProcedure, opts...),
	}
}

type treeServiceClient struct {
	subscribe *connect.Client[api.SubscribeRequest, api.Snapshot]
	newKey    *connect.Client[api.NewKeyRequest, api.NewKeyResponse]
	set       *connect.Client[api.SetRequest, api.SetResponse]
	update    *connect.Client[api.UpdateRequest, api.UpdateResponse]
	get       *connect.Client[api.GetRequest, api.GetResponse]
}

func (c *treeServiceClient) Subscribe(ctx context.Context, req *connect.Request[api.SubscribeRequest]) (*connect.ServerStreamForClient[api.Snapshot], error) {
	return c.subscribe.CallServerStream(ctx, req)
}

func (c *treeServiceClient) NewKey(ctx context.Context, req *connect.Request[api.NewKeyRequest]) (*connect.Response[api.NewKeyResponse], error) {
	return c.newKey.CallUnary(ctx, req)
}

func (c *treeServiceClient) Set(ctx context.Context, req *connect.Request[api.SetRequest]) (*connect.Response[api.SetResponse], error) {
	return c.set.CallUnary(ctx, req)
}

func (c *treeServiceClient) Update(ctx context.Context, req *connect.Request[api.UpdateRequest]) (*connect.Response[api.UpdateResponse], error) {
	return c.update.CallUnary(ctx, req)
}

func (c *treeServiceClient) Get(ctx context.Context, req *connect.Request[api.GetRequest]) (*connect.Response[api.GetResponse], error) {
	return c.get.CallUnary(ctx, req)
}
