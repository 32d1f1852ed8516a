package loadbalance

import (
	"math/rand"

	"rest-rpc/registry"
)

// WeightedRandomBalancer picks an instance with probability proportional to
// its weight. Instances with a non-positive weight are never picked, unless
// no instance has a positive weight, in which case the pick is uniform.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(_ string, instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	total := 0
	for _, inst := range instances {
		if inst.Weight > 0 {
			total += inst.Weight
		}
	}
	if total == 0 {
		return &instances[rand.Intn(len(instances))], nil
	}

	r := rand.Intn(total)
	for i := range instances {
		if instances[i].Weight <= 0 {
			continue
		}
		r -= instances[i].Weight
		if r < 0 {
			return &instances[i], nil
		}
	}
	return &instances[len(instances)-1], nil
}

func (b *WeightedRandomBalancer) Name() string {
	return WeightedRandom
}
