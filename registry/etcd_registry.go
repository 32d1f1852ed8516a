package registry

// The etcd layout is one key per instance:
//
//	Key:   /rest-rpc/{service}/{addr}
//	Value: JSON-encoded ServiceInstance
//
// Keys are attached to a lease that the registry keeps alive, so the entry of
// a server that dies disappears once its TTL runs out.

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const keyPrefix = "/rest-rpc/"

func serviceKey(service string) string {
	return keyPrefix + service + "/"
}

type EtcdRegistry struct {
	client *clientv3.Client
	logger *zap.Logger

	// ctx bounds the lease keepalives; it is cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	leases map[string]clientv3.LeaseID
}

// NewEtcdRegistry connects to etcd. logger may be nil.
func NewEtcdRegistry(endpoints []string, dialTimeout time.Duration, logger *zap.Logger) (*EtcdRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
		Logger:      logger.Named("etcd"),
	})
	if err != nil {
		return nil, fmt.Errorf("registry: connect etcd: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &EtcdRegistry{
		client: c,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		leases: make(map[string]clientv3.LeaseID),
	}, nil
}

func (r *EtcdRegistry) Register(ctx context.Context, service string, instance ServiceInstance, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("registry: grant lease: %w", err)
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}
	key := serviceKey(service) + instance.Addr
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("registry: put %s: %w", key, err)
	}

	// The keepalive outlives the request context; it stops on Close or
	// Deregister.
	ch, err := r.client.KeepAlive(r.ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("registry: keepalive: %w", err)
	}
	go func() {
		for range ch {
		}
		r.logger.Debug("lease keepalive stopped", zap.String("key", key))
	}()

	r.mu.Lock()
	r.leases[key] = lease.ID
	r.mu.Unlock()

	r.logger.Info("registered instance",
		zap.String("service", service),
		zap.String("addr", instance.Addr),
		zap.String("version", instance.Version),
		zap.Int64("ttl", ttl))
	return nil
}

func (r *EtcdRegistry) Deregister(ctx context.Context, service, addr string) error {
	key := serviceKey(service) + addr
	if _, err := r.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("registry: delete %s: %w", key, err)
	}

	r.mu.Lock()
	id, ok := r.leases[key]
	delete(r.leases, key)
	r.mu.Unlock()
	if ok {
		if _, err := r.client.Revoke(ctx, id); err != nil {
			r.logger.Warn("revoke lease", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func (r *EtcdRegistry) Discover(ctx context.Context, service string) ([]ServiceInstance, error) {
	resp, err := r.client.Get(ctx, serviceKey(service), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("registry: discover %s: %w", service, err)
	}

	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var inst ServiceInstance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			r.logger.Warn("skipping malformed instance", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Watch re-reads the full list on every change under the service prefix
// rather than applying individual events.
func (r *EtcdRegistry) Watch(ctx context.Context, service string) <-chan []ServiceInstance {
	out := make(chan []ServiceInstance, 1)

	go func() {
		defer close(out)
		wch := r.client.Watch(ctx, serviceKey(service), clientv3.WithPrefix())
		for resp := range wch {
			if err := resp.Err(); err != nil {
				r.logger.Warn("watch error", zap.String("service", service), zap.Error(err))
				continue
			}
			instances, err := r.Discover(ctx, service)
			if err != nil {
				r.logger.Warn("refresh after watch event", zap.String("service", service), zap.Error(err))
				continue
			}
			select {
			case out <- instances:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Close stops all lease keepalives and closes the etcd client. Registered
// entries expire once their TTL runs out.
func (r *EtcdRegistry) Close() error {
	r.cancel()
	return r.client.Close()
}
