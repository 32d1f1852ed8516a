// Package middleware wraps the server's dispatch handler.
//
// Middlewares compose like an onion: Chain(A, B, C)(h) is A(B(C(h))), so A
// sees the call first and the reply last.
package middleware

import (
	"context"
	"sync"

	"rest-rpc/message"
)

// HandlerFunc serves one decoded call. It always returns a reply; failures
// are expressed as a non-OK code, never as a Go error.
type HandlerFunc func(ctx context.Context, call *message.Call) *message.Reply

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines middlewares into one, the first being the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

type detachedKey struct{}

// WithDetached returns a copy of ctx carrying wg. A middleware that replies
// before its handler returns adds the still-running handler to wg, so the
// owner of wg can wait for it.
func WithDetached(ctx context.Context, wg *sync.WaitGroup) context.Context {
	return context.WithValue(ctx, detachedKey{}, wg)
}

func detached(ctx context.Context) *sync.WaitGroup {
	wg, _ := ctx.Value(detachedKey{}).(*sync.WaitGroup)
	return wg
}
