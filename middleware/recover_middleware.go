package middleware

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"rest-rpc/message"
)

// Recover turns a handler panic into an EXCEPTION reply.
func Recover(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.Call) (reply *message.Reply) {
			defer func() {
				if p := recover(); p != nil {
					logger.Error("handler panicked",
						zap.String("endpoint", call.Endpoint),
						zap.Any("panic", p),
						zap.StackSkip("stack", 1))
					reply = message.Failed(message.CodeException, fmt.Sprint(p))
				}
			}()
			return next(ctx, call)
		}
	}
}
