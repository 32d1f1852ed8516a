package registry

import (
	"context"
	"sort"
	"sync"
)

// Static is an in-memory Registry. Entries never expire. It serves fixed
// deployments where the server addresses are known up front, and tests.
type Static struct {
	mu       sync.Mutex
	services map[string]map[string]ServiceInstance
	watchers map[string][]chan []ServiceInstance
}

func NewStatic() *Static {
	return &Static{
		services: make(map[string]map[string]ServiceInstance),
		watchers: make(map[string][]chan []ServiceInstance),
	}
}

// StaticFor returns a Static registry already holding instances for service.
func StaticFor(service string, instances ...ServiceInstance) *Static {
	s := NewStatic()
	for _, inst := range instances {
		_ = s.Register(context.Background(), service, inst, 0)
	}
	return s
}

func (s *Static) Register(_ context.Context, service string, instance ServiceInstance, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.services[service] == nil {
		s.services[service] = make(map[string]ServiceInstance)
	}
	s.services[service][instance.Addr] = instance
	s.notify(service)
	return nil
}

func (s *Static) Deregister(_ context.Context, service, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.services[service], addr)
	s.notify(service)
	return nil
}

func (s *Static) Discover(_ context.Context, service string) ([]ServiceInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(service), nil
}

func (s *Static) Watch(ctx context.Context, service string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)

	s.mu.Lock()
	s.watchers[service] = append(s.watchers[service], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		ws := s.watchers[service]
		for i, w := range ws {
			if w == ch {
				s.watchers[service] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

// notify replaces whatever snapshot a watcher has not consumed yet with the
// current one. Callers hold s.mu.
func (s *Static) notify(service string) {
	snap := s.snapshot(service)
	for _, ch := range s.watchers[service] {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (s *Static) snapshot(service string) []ServiceInstance {
	out := make([]ServiceInstance, 0, len(s.services[service]))
	for _, inst := range s.services[service] {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}
