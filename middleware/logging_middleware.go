package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"rest-rpc/message"
)

// Logging logs every call with its result code and duration. Failed calls are
// logged at warn level together with the error text.
func Logging(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.Call) *message.Reply {
			start := time.Now()
			reply := next(ctx, call)

			fields := []zap.Field{
				zap.String("endpoint", call.Endpoint),
				zap.Bool("tagged", call.Tagged),
				zap.Stringer("code", reply.Code),
				zap.Duration("took", time.Since(start)),
			}
			if reply.Code == message.CodeOK {
				logger.Info("call served", fields...)
			} else {
				logger.Warn("call failed", append(fields, zap.Any("error", reply.Result))...)
			}
			return reply
		}
	}
}
