package middleware

import (
	"context"
	"time"

	"rest-rpc/message"
	"rest-rpc/metrics"
)

// Metrics records every call's result code and duration.
func Metrics(m *metrics.Server) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.Call) *message.Reply {
			start := time.Now()
			reply := next(ctx, call)
			m.Observe(call.Endpoint, reply.Code, time.Since(start))
			return reply
		}
	}
}
