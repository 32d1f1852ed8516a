package transport

import (
	"context"
	"sync"
	"sync/atomic"
)

const DefaultPoolSize = 4

// Pool keeps up to size multiplexed transports per address and hands them
// out round robin. Transports are shared, not borrowed: any number of calls
// may use the one returned by Get at the same time. Connections are dialed
// lazily and redialed once they close.
type Pool struct {
	size int
	opts Options

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

type entry struct {
	next  atomic.Uint32
	mu    sync.Mutex
	slots []*ClientTransport
}

func NewPool(size int, opts Options) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{
		size:    size,
		opts:    opts,
		entries: make(map[string]*entry),
	}
}

// Get returns a live transport to addr, dialing one if its slot is empty.
func (p *Pool) Get(ctx context.Context, addr string) (*ClientTransport, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	e, ok := p.entries[addr]
	if !ok {
		e = &entry{slots: make([]*ClientTransport, p.size)}
		p.entries[addr] = e
	}
	p.mu.Unlock()

	i := int((e.next.Add(1) - 1) % uint32(len(e.slots)))

	e.mu.Lock()
	defer e.mu.Unlock()
	if t := e.slots[i]; t != nil && !t.Closed() {
		return t, nil
	}
	t, err := Dial(ctx, addr, p.opts)
	if err != nil {
		return nil, err
	}
	e.slots[i] = t
	return t, nil
}

// Close closes every transport. Later calls to Get fail with ErrClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	entries := p.entries
	p.entries = make(map[string]*entry)
	p.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		for i, t := range e.slots {
			if t != nil {
				_ = t.Close()
				e.slots[i] = nil
			}
		}
		e.mu.Unlock()
	}
	return nil
}
