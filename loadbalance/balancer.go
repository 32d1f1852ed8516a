// Package loadbalance picks the instance a call is sent to.
//
// Three strategies are implemented:
//   - RoundRobin:      stateless services, equal-capacity instances
//   - WeightedRandom:  instances of different capacity
//   - ConsistentHash:  calls that should stick to one instance per key
package loadbalance

import (
	"errors"
	"fmt"

	"rest-rpc/registry"
)

var ErrNoInstances = errors.New("loadbalance: no instances available")

// Balancer is consulted before every call and must be safe for concurrent
// use. key identifies the call for strategies with affinity; others ignore it.
type Balancer interface {
	Pick(key string, instances []registry.ServiceInstance) (*registry.ServiceInstance, error)
	Name() string
}

const (
	RoundRobin     = "round_robin"
	WeightedRandom = "weighted_random"
	ConsistentHash = "consistent_hash"
)

// New returns the balancer registered under name.
func New(name string) (Balancer, error) {
	switch name {
	case RoundRobin, "":
		return &RoundRobinBalancer{}, nil
	case WeightedRandom:
		return &WeightedRandomBalancer{}, nil
	case ConsistentHash:
		return NewConsistentHashBalancer(), nil
	default:
		return nil, fmt.Errorf("loadbalance: unknown balancer %q", name)
	}
}
