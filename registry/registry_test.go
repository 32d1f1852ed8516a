package registry

import (
	"context"
	"testing"
	"time"

	"github.com/coreos/go-semver/semver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addrs(instances []ServiceInstance) []string {
	out := make([]string, 0, len(instances))
	for _, inst := range instances {
		out = append(out, inst.Addr)
	}
	return out
}

func TestStaticRegisterAndDiscover(t *testing.T) {
	ctx := context.Background()
	reg := NewStatic()

	require.NoError(t, reg.Register(ctx, "arith", ServiceInstance{Addr: "127.0.0.1:8002", Weight: 5}, 10))
	require.NoError(t, reg.Register(ctx, "arith", ServiceInstance{Addr: "127.0.0.1:8001", Weight: 10}, 10))
	require.NoError(t, reg.Register(ctx, "other", ServiceInstance{Addr: "127.0.0.1:9000"}, 10))

	instances, err := reg.Discover(ctx, "arith")
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1:8001", "127.0.0.1:8002"}, addrs(instances))

	require.NoError(t, reg.Deregister(ctx, "arith", "127.0.0.1:8001"))
	instances, err = reg.Discover(ctx, "arith")
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1:8002"}, addrs(instances))

	instances, err = reg.Discover(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestStaticWatch(t *testing.T) {
	reg := StaticFor("arith", ServiceInstance{Addr: "a:1"})
	ctx, cancel := context.WithCancel(context.Background())
	ch := reg.Watch(ctx, "arith")

	require.NoError(t, reg.Register(ctx, "arith", ServiceInstance{Addr: "b:2"}, 0))
	require.NoError(t, reg.Deregister(ctx, "arith", "a:1"))

	// Only the latest snapshot is kept for a slow watcher.
	select {
	case got := <-ch:
		assert.Equal(t, []string{"b:2"}, addrs(got))
	case <-time.After(time.Second):
		t.Fatal("no watch update")
	}

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed")
	}
}

func TestCompatible(t *testing.T) {
	instances := []ServiceInstance{
		{Addr: "old", Version: "1.1.0"},
		{Addr: "same", Version: "1.2.0"},
		{Addr: "newer", Version: "1.4.3"},
		{Addr: "major", Version: "2.2.0"},
		{Addr: "none"},
		{Addr: "bad", Version: "v1"},
	}

	got := Compatible(instances, semver.New("1.2.0"))
	assert.Equal(t, []string{"same", "newer"}, addrs(got))

	assert.Len(t, Compatible(instances, nil), len(instances))
}
