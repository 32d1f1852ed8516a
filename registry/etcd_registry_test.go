package registry

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// The etcd tests need a running cluster, e.g. RESTRPC_ETCD_ENDPOINTS=localhost:2379.
func etcdEndpoints(t *testing.T) []string {
	t.Helper()
	env := os.Getenv("RESTRPC_ETCD_ENDPOINTS")
	if env == "" {
		t.Skip("RESTRPC_ETCD_ENDPOINTS not set")
	}
	return strings.Split(env, ",")
}

func TestEtcdRegisterAndDiscover(t *testing.T) {
	reg, err := NewEtcdRegistry(etcdEndpoints(t), 5*time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer reg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	service := "arith-test-" + time.Now().Format("150405.000")
	inst1 := ServiceInstance{Addr: "127.0.0.1:8001", Weight: 10, Version: "1.0.0"}
	inst2 := ServiceInstance{Addr: "127.0.0.1:8002", Weight: 5, Version: "1.0.0"}

	watch := reg.Watch(ctx, service)

	require.NoError(t, reg.Register(ctx, service, inst1, 10))
	require.NoError(t, reg.Register(ctx, service, inst2, 10))

	instances, err := reg.Discover(ctx, service)
	require.NoError(t, err)
	assert.ElementsMatch(t, []ServiceInstance{inst1, inst2}, instances)

	require.NoError(t, reg.Deregister(ctx, service, inst1.Addr))
	instances, err = reg.Discover(ctx, service)
	require.NoError(t, err)
	assert.Equal(t, []ServiceInstance{inst2}, instances)

	select {
	case <-watch:
	case <-ctx.Done():
		t.Fatal("no watch event")
	}

	require.NoError(t, reg.Deregister(ctx, service, inst2.Addr))
}
