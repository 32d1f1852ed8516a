package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
	"strings"
	"sync"

	"rest-rpc/registry"
)

const defaultReplicas = 100

// ConsistentHashBalancer maps a call key to an instance on a hash ring, so
// the same key keeps landing on the same instance while the instance set is
// stable. Each instance is placed on the ring as many virtual nodes to even
// out the distribution.
//
//	                  0
//	                ╱   ╲
//	         B ●               ● A
//	           │    key ◆──►   │   (clockwise to the nearest node → A)
//	         C ●               ● A'
//	                ╲   ╱
//
// The ring is rebuilt whenever Pick sees a different instance set.
type ConsistentHashBalancer struct {
	replicas int

	mu        sync.Mutex
	signature string
	ring      []uint32
	nodes     map[uint32]registry.ServiceInstance
}

func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{replicas: defaultReplicas}
}

func (b *ConsistentHashBalancer) Pick(key string, instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if sig := signature(instances); sig != b.signature {
		b.rebuild(instances)
		b.signature = sig
	}

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}
	inst := b.nodes[b.ring[idx]]
	return &inst, nil
}

func (b *ConsistentHashBalancer) Name() string {
	return ConsistentHash
}

func (b *ConsistentHashBalancer) rebuild(instances []registry.ServiceInstance) {
	b.ring = make([]uint32, 0, len(instances)*b.replicas)
	b.nodes = make(map[uint32]registry.ServiceInstance, len(instances)*b.replicas)
	for _, inst := range instances {
		for i := 0; i < b.replicas; i++ {
			hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", inst.Addr, i)))
			if _, taken := b.nodes[hash]; taken {
				continue
			}
			b.ring = append(b.ring, hash)
			b.nodes[hash] = inst
		}
	}
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
}

// signature identifies an instance set. It covers every field handed back by
// Pick, so a changed weight or version at the same address rebuilds the ring.
func signature(instances []registry.ServiceInstance) string {
	entries := make([]string, len(instances))
	for i, inst := range instances {
		entries[i] = fmt.Sprintf("%s|%d|%s", inst.Addr, inst.Weight, inst.Version)
	}
	sort.Strings(entries)
	return strings.Join(entries, ",")
}
