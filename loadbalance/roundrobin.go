package loadbalance

import (
	"sync/atomic"

	"rest-rpc/registry"
)

// RoundRobinBalancer cycles through the instances in order using an atomic
// counter.
type RoundRobinBalancer struct {
	counter atomic.Uint64
}

func (b *RoundRobinBalancer) Pick(_ string, instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}
	i := (b.counter.Add(1) - 1) % uint64(len(instances))
	return &instances[i], nil
}

func (b *RoundRobinBalancer) Name() string {
	return RoundRobin
}
