package client

import (
	"context"

	"connectrpc.com/connect"
)

// TokenSource yields the bearer token for outgoing calls. An empty token
// sends no Authorization header.
type TokenSource interface {
	Token() string
}

type bearerInterceptor struct {
	tokens TokenSource
}

// BearerInterceptor attaches the current session token to unary and
// streaming calls.
func BearerInterceptor(tokens TokenSource) connect.Interceptor {
	return bearerInterceptor{tokens: tokens}
}

func (b bearerInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if token := b.tokens.Token(); token != "" {
			req.Header().Set("Authorization", "Bearer "+token)
		}
		return next(ctx, req)
	}
}

func (b bearerInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		if token := b.tokens.Token(); token != "" {
			conn.RequestHeader().Set("Authorization", "Bearer "+token)
		}
		return conn
	}
}

func (b bearerInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
