// Package client performs typed calls against the instances of a service.
//
// A call picks an instance from the registry with the load balancer, sends
// the request built by the endpoint's protocol definition over a pooled
// multiplexed transport and hands the response body back to the definition
// to parse:
//
//	sum, err := client.Call(ctx, c, arith.Add, protocol.Arg2(2, 3))
//	ok, err := client.CallTagged(ctx, c, protocol.WithTag(arith.Ping, 7), protocol.Args0{})
//	msg, err := client.Roundtrip(ctx, c, arith.Greet, protocol.Arg1("bob"))
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-semver/semver"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rest-rpc/codec"
	"rest-rpc/loadbalance"
	"rest-rpc/metrics"
	"rest-rpc/protocol"
	"rest-rpc/registry"
	"rest-rpc/transport"
)

var ErrNoInstances = errors.New("client: no instances available")

type Client struct {
	service  string
	registry registry.Registry
	balancer loadbalance.Balancer
	logger   *zap.Logger
	metrics  *metrics.Client

	version     *semver.Version
	versionText string
	callTimeout time.Duration

	pool     *transport.Pool
	ownsPool bool
	poolSize int

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	instances []registry.ServiceInstance
	known     bool // instances holds a discovery result
}

type Option func(*Client)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Client) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithVersion restricts calls to instances compatible with the semantic
// version v: same major version, same or newer minor.
func WithVersion(v string) Option {
	return func(c *Client) {
		c.versionText = v
	}
}

// WithPool shares an existing transport pool. The client does not close it.
func WithPool(p *transport.Pool) Option {
	return func(c *Client) {
		c.pool = p
	}
}

// WithPoolSize sets the connections per instance of the client's own pool.
func WithPoolSize(n int) Option {
	return func(c *Client) {
		c.poolSize = n
	}
}

// WithCallTimeout bounds calls whose context has no deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.callTimeout = d
	}
}

// NewClient returns a client for service. It watches reg for instance changes
// until Close.
func NewClient(service string, reg registry.Registry, bal loadbalance.Balancer, opts ...Option) (*Client, error) {
	c := &Client{
		service:  service,
		registry: reg,
		balancer: bal,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.balancer == nil {
		c.balancer = &loadbalance.RoundRobinBalancer{}
	}
	if c.versionText != "" {
		v, err := semver.NewVersion(c.versionText)
		if err != nil {
			return nil, fmt.Errorf("client: version %q: %w", c.versionText, err)
		}
		c.version = v
	}
	if c.pool == nil {
		c.pool = transport.NewPool(c.poolSize, transport.Options{Logger: c.logger})
		c.ownsPool = true
	}
	c.logger = c.logger.With(zap.String("service", service))

	c.ctx, c.cancel = context.WithCancel(context.Background())
	go c.watch(reg.Watch(c.ctx, service))
	return c, nil
}

// Close stops watching the registry and closes the client's own pool.
func (c *Client) Close() error {
	c.cancel()
	if c.ownsPool {
		return c.pool.Close()
	}
	return nil
}

// Call performs an untagged call of def.
func Call[In protocol.Arguments, Out any](ctx context.Context, c *Client, def *protocol.Definition[In, Out], args In) (Out, error) {
	return invoke[In, Out](ctx, c, def, def.Name(), args)
}

// CallTagged performs a tagged call. The response is only accepted when it
// echoes a tag the definition's policy matches. The tag also serves as the
// balancing key.
func CallTagged[In protocol.Arguments, Out, T any](ctx context.Context, c *Client, t *protocol.Tagged[In, Out, T], args In) (Out, error) {
	return invoke[In, Out](ctx, c, t, fmt.Sprint(t.Tag()), args)
}

// Roundtrip performs a tagged call of def under a fresh random tag.
func Roundtrip[In protocol.Arguments, Out any](ctx context.Context, c *Client, def *protocol.Definition[In, Out], args In) (Out, error) {
	return CallTagged(ctx, c, protocol.WithTag(def, uuid.NewString()), args)
}

func invoke[In protocol.Arguments, Out any](ctx context.Context, c *Client, ep protocol.Endpoint[In, Out], key string, args In) (out Out, err error) {
	if c.metrics != nil {
		start := time.Now()
		defer func() {
			c.metrics.Observe(ep.Name(), ep.Kind(), err, time.Since(start))
		}()
	}
	if _, ok := ctx.Deadline(); !ok && c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	req, err := ep.MakeRequest(args)
	if err != nil {
		return out, err
	}
	body, err := c.exchange(ctx, ep.Codec().Type(), key, req)
	if err != nil {
		return out, fmt.Errorf("client: %s: %w", ep.Name(), err)
	}
	return ep.ParseResponse(body)
}

// exchange sends one request body to an instance and waits for its response
// body or for ctx to end.
func (c *Client) exchange(ctx context.Context, ct codec.CodecType, key string, req []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inst, err := c.pick(ctx, key)
	if err != nil {
		return nil, err
	}
	t, err := c.pool.Get(ctx, inst.Addr)
	if err != nil {
		return nil, err
	}
	seq, ch, err := t.Send(ct, req)
	if err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, fmt.Errorf("%s: %w", inst.Addr, r.Err)
		}
		return r.Body, nil
	case <-ctx.Done():
		t.Forget(seq)
		return nil, ctx.Err()
	}
}

func (c *Client) pick(ctx context.Context, key string) (*registry.ServiceInstance, error) {
	instances, err := c.discover(ctx)
	if err != nil {
		return nil, err
	}
	instances = registry.Compatible(instances, c.version)
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoInstances, c.service)
	}
	return c.balancer.Pick(key, instances)
}

// discover returns the known instances, asking the registry on first use.
// Later changes arrive through watch.
func (c *Client) discover(ctx context.Context) ([]registry.ServiceInstance, error) {
	c.mu.Lock()
	if c.known {
		instances := c.instances
		c.mu.Unlock()
		return instances, nil
	}
	c.mu.Unlock()

	instances, err := c.registry.Discover(ctx, c.service)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.known {
		c.instances, c.known = instances, true
	}
	return c.instances, nil
}

func (c *Client) watch(ch <-chan []registry.ServiceInstance) {
	for instances := range ch {
		c.mu.Lock()
		c.instances, c.known = instances, true
		c.mu.Unlock()
		c.logger.Debug("instances changed", zap.Int("count", len(instances)))
	}
}
