package middleware

import (
	"context"
	"time"

	"rest-rpc/message"
)

const TimeoutText = "request timed out"

// Timeout fails a call with FAIL once d has passed. The handler keeps running
// in the background with a cancelled context and its reply is discarded. It
// stays counted in the WaitGroup from WithDetached, if any, until it returns.
func Timeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.Call) *message.Reply {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			wg := detached(ctx)
			if wg != nil {
				wg.Add(1)
			}
			done := make(chan *message.Reply, 1)
			go func() {
				if wg != nil {
					defer wg.Done()
				}
				done <- next(ctx, call)
			}()

			select {
			case reply := <-done:
				return reply
			case <-ctx.Done():
				return message.Failed(message.CodeFail, TimeoutText)
			}
		}
	}
}
