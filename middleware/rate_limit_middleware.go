package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"rest-rpc/message"
)

const RateLimitText = "rate limit exceeded"

// RateLimit admits r calls per second with bursts of up to burst, using a
// token bucket shared by all connections. Rejected calls get FAIL.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.Call) *message.Reply {
			if !limiter.Allow() {
				return message.Failed(message.CodeFail, RateLimitText)
			}
			return next(ctx, call)
		}
	}
}
