package middleware

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"rest-rpc/message"
	"rest-rpc/metrics"
)

func okHandler(ctx context.Context, call *message.Call) *message.Reply {
	return &message.Reply{Code: message.CodeOK, Result: "ok"}
}

func slowHandler(ctx context.Context, call *message.Call) *message.Reply {
	select {
	case <-time.After(200 * time.Millisecond):
	case <-ctx.Done():
	}
	return &message.Reply{Code: message.CodeOK, Result: "ok"}
}

func failHandler(ctx context.Context, call *message.Call) *message.Reply {
	return message.Failed(message.CodeFail, "no such endpoint")
}

func panicHandler(ctx context.Context, call *message.Call) *message.Reply {
	panic("boom")
}

var addCall = &message.Call{Endpoint: "add", Params: []byte(`[2,3]`)}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	reply := Logging(logger)(okHandler)(context.Background(), addCall)
	assert.Equal(t, message.CodeOK, reply.Code)

	reply = Logging(logger)(failHandler)(context.Background(), addCall)
	assert.Equal(t, message.CodeFail, reply.Code)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "add", entries[0].ContextMap()["endpoint"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "no such endpoint", entries[1].ContextMap()["error"])
}

func TestRecover(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)

	reply := Recover(zap.New(core))(panicHandler)(context.Background(), addCall)
	assert.Equal(t, message.CodeException, reply.Code)
	assert.Equal(t, "boom", reply.Result)
	assert.Equal(t, 1, logs.FilterMessage("handler panicked").Len())

	reply = Recover(zap.New(core))(okHandler)(context.Background(), addCall)
	assert.Equal(t, message.CodeOK, reply.Code)
}

func TestTimeoutPass(t *testing.T) {
	reply := Timeout(500*time.Millisecond)(okHandler)(context.Background(), addCall)
	assert.Equal(t, message.CodeOK, reply.Code)
}

func TestTimeoutExceeded(t *testing.T) {
	reply := Timeout(20*time.Millisecond)(slowHandler)(context.Background(), addCall)
	assert.Equal(t, message.CodeFail, reply.Code)
	assert.Equal(t, TimeoutText, reply.Result)
}

func TestTimeoutTracksDetachedHandler(t *testing.T) {
	var wg sync.WaitGroup
	var finished atomic.Bool
	stubborn := func(ctx context.Context, call *message.Call) *message.Reply {
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
		return &message.Reply{Code: message.CodeOK, Result: "late"}
	}

	ctx := WithDetached(context.Background(), &wg)
	reply := Timeout(10*time.Millisecond)(stubborn)(ctx, addCall)
	assert.Equal(t, TimeoutText, reply.Result)
	assert.False(t, finished.Load())

	wg.Wait()
	assert.True(t, finished.Load())
}

func TestRateLimit(t *testing.T) {
	// One token per second with a burst of two: the third call is refused.
	handler := RateLimit(1, 2)(okHandler)
	for i := 0; i < 2; i++ {
		assert.Equal(t, message.CodeOK, handler(context.Background(), addCall).Code, "call %d", i)
	}
	reply := handler(context.Background(), addCall)
	assert.Equal(t, message.CodeFail, reply.Code)
	assert.Equal(t, RateLimitText, reply.Result)
}

func TestMetrics(t *testing.T) {
	m := metrics.NewServer(prometheus.NewRegistry())
	Metrics(m)(okHandler)(context.Background(), addCall)
	Metrics(m)(failHandler)(context.Background(), addCall)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("add", "0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("add", "1")))
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, call *message.Call) *message.Reply {
				order = append(order, name+" in")
				reply := next(ctx, call)
				order = append(order, name+" out")
				return reply
			}
		}
	}

	handler := Chain(mark("a"), mark("b"), Recover(zap.NewNop()))(panicHandler)
	reply := handler(context.Background(), addCall)

	assert.Equal(t, message.CodeException, reply.Code)
	assert.Equal(t, []string{"a in", "b in", "b out", "a out"}, order)
}
