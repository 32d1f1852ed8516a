package loadbalance

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rest-rpc/registry"
)

var testInstances = []registry.ServiceInstance{
	{Addr: ":8001", Weight: 10, Version: "1.0.0"},
	{Addr: ":8002", Weight: 5, Version: "1.0.0"},
	{Addr: ":8003", Weight: 10, Version: "1.0.0"},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	var got []string
	for i := 0; i < 4; i++ {
		inst, err := b.Pick("", testInstances)
		require.NoError(t, err)
		got = append(got, inst.Addr)
	}
	assert.Equal(t, []string{":8001", ":8002", ":8003", ":8001"}, got)
}

func TestEmptyInstances(t *testing.T) {
	for _, name := range []string{RoundRobin, WeightedRandom, ConsistentHash} {
		b, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, b.Name())

		_, err = b.Pick("k", nil)
		assert.ErrorIs(t, err, ErrNoInstances, name)
	}

	_, err := New("random")
	assert.Error(t, err)
}

func TestWeightedRandom(t *testing.T) {
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	for i := 0; i < 10000; i++ {
		inst, err := b.Pick("", testInstances)
		require.NoError(t, err)
		counts[inst.Addr]++
	}

	// Weights are 10:5:10, so :8001 should be picked about twice as often as :8002.
	ratio := float64(counts[":8001"]) / float64(counts[":8002"])
	assert.InDelta(t, 2.0, ratio, 0.5)
}

func TestWeightedRandomZeroWeights(t *testing.T) {
	b := &WeightedRandomBalancer{}
	instances := []registry.ServiceInstance{{Addr: "a"}, {Addr: "b"}}

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		inst, err := b.Pick("", instances)
		require.NoError(t, err)
		seen[inst.Addr] = true
	}
	assert.Len(t, seen, 2)

	mixed := []registry.ServiceInstance{{Addr: "zero"}, {Addr: "one", Weight: 1}}
	for i := 0; i < 100; i++ {
		inst, err := b.Pick("", mixed)
		require.NoError(t, err)
		assert.Equal(t, "one", inst.Addr)
	}
}

func TestConsistentHash(t *testing.T) {
	b := NewConsistentHashBalancer()

	first, err := b.Pick("user-123", testInstances)
	require.NoError(t, err)
	again, err := b.Pick("user-123", testInstances)
	require.NoError(t, err)
	assert.Equal(t, first.Addr, again.Addr)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		inst, err := b.Pick(fmt.Sprintf("key-%d", i), testInstances)
		require.NoError(t, err)
		seen[inst.Addr] = true
	}
	assert.GreaterOrEqual(t, len(seen), 2)
}

func TestConsistentHashRebuildsOnChange(t *testing.T) {
	b := NewConsistentHashBalancer()

	before := map[string]string{}
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("key-%d", i)
		inst, err := b.Pick(key, testInstances)
		require.NoError(t, err)
		before[key] = inst.Addr
	}

	// Removing one instance moves only the keys that lived on it.
	remaining := testInstances[:2]
	for key, addr := range before {
		inst, err := b.Pick(key, remaining)
		require.NoError(t, err)
		assert.NotEqual(t, ":8003", inst.Addr)
		if addr != ":8003" {
			assert.Equal(t, addr, inst.Addr, key)
		}
	}
}

func TestConsistentHashReturnsCurrentInstance(t *testing.T) {
	b := NewConsistentHashBalancer()

	inst, err := b.Pick("user-1", testInstances[:1])
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", inst.Version)

	upgraded := []registry.ServiceInstance{{Addr: ":8001", Weight: 3, Version: "1.2.0"}}
	inst, err = b.Pick("user-1", upgraded)
	require.NoError(t, err)
	assert.Equal(t, upgraded[0], *inst)
}

func TestBalancersConcurrent(t *testing.T) {
	for _, name := range []string{RoundRobin, WeightedRandom, ConsistentHash} {
		b, err := New(name)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				set := testInstances
				if i%2 == 0 {
					set = testInstances[:2]
				}
				_, err := b.Pick(fmt.Sprint(i), set)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()
	}
}
