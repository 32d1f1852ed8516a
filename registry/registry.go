// Package registry locates the servers that implement a service.
//
// A server registers one ServiceInstance per service it exposes; clients
// discover the live instances and pick one with a load balancer. Instances
// carry a semantic version so a client can restrict itself to servers whose
// endpoint set it understands.
package registry

import (
	"context"

	"github.com/coreos/go-semver/semver"
)

type ServiceInstance struct {
	Addr    string `json:"addr"`
	Weight  int    `json:"weight,omitempty"` // relative share for weighted balancing
	Version string `json:"version,omitempty"`
}

type Registry interface {
	// Register announces instance under service. ttl is in seconds; a
	// registry that expires entries keeps this one alive until Deregister.
	Register(ctx context.Context, service string, instance ServiceInstance, ttl int64) error
	Deregister(ctx context.Context, service, addr string) error
	Discover(ctx context.Context, service string) ([]ServiceInstance, error)
	// Watch emits the full instance list whenever it changes. The channel is
	// closed when ctx is done.
	Watch(ctx context.Context, service string) <-chan []ServiceInstance
}

// Compatible keeps the instances that can serve a client built against want:
// same major version and a minor version at least as new. Instances without a
// parseable version are dropped. A nil want keeps everything.
func Compatible(instances []ServiceInstance, want *semver.Version) []ServiceInstance {
	if want == nil {
		return instances
	}
	out := make([]ServiceInstance, 0, len(instances))
	for _, inst := range instances {
		have, err := semver.NewVersion(inst.Version)
		if err != nil {
			continue
		}
		if have.Major == want.Major && have.Minor >= want.Minor {
			out = append(out, inst)
		}
	}
	return out
}
