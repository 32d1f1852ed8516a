package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rest-rpc/client"
	"rest-rpc/codec"
	"rest-rpc/internal/arith"
	"rest-rpc/loadbalance"
	"rest-rpc/protocol"
	"rest-rpc/registry"
	"rest-rpc/transport"
)

type callOpts struct {
	*rootOpts
	addr      string
	tag       string
	roundtrip bool
	repeat    int
}

func newCall(parent *rootOpts) *callOpts {
	return &callOpts{rootOpts: parent}
}

func (opts *callOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Call an arith endpoint.",
	}
	cmd.PersistentFlags().StringVar(&opts.addr, "addr", "", "call this server directly instead of discovering one in etcd")
	cmd.PersistentFlags().StringVar(&opts.tag, "tag", "", "send a tagged request with this correlation tag")
	cmd.PersistentFlags().BoolVar(&opts.roundtrip, "roundtrip", false, "send a tagged request with a random tag")
	cmd.PersistentFlags().IntVar(&opts.repeat, "repeat", 1, "number of concurrent calls")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add A B",
			Short: "Add two integers.",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := strconv.Atoi(args[0])
				if err != nil {
					return newUsageError("A must be an integer")
				}
				b, err := strconv.Atoi(args[1])
				if err != nil {
					return newUsageError("B must be an integer")
				}
				return runCall(cmd, opts, func(p *arith.Protocol) *protocol.Definition[protocol.Args2[int, int], int] { return p.Add }, protocol.Arg2(a, b))
			},
		},
		&cobra.Command{
			Use:   "ping",
			Short: "Check that a server is alive.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runCall(cmd, opts, func(p *arith.Protocol) *protocol.Definition[protocol.Args0, bool] { return p.Ping }, protocol.Args0{})
			},
		},
		&cobra.Command{
			Use:   "greet NAME",
			Short: "Greet someone.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCall(cmd, opts, func(p *arith.Protocol) *protocol.Definition[protocol.Args1[string], string] { return p.Greet }, protocol.Arg1(args[0]))
			},
		},
	)
	return cmd
}

func (opts *callOpts) newClient() (*client.Client, func(), error) {
	cfg := opts.cfg
	bal, err := loadbalance.New(cfg.Client.Balancer)
	if err != nil {
		return nil, nil, err
	}

	var reg registry.Registry
	cleanup := func() {}
	switch {
	case opts.addr != "":
		// The address is trusted as given, so it advertises the version the
		// client pins.
		reg = registry.StaticFor(cfg.Service, registry.ServiceInstance{Addr: opts.addr, Weight: 1, Version: cfg.Version})
	default:
		etcd, err := opts.etcdRegistry()
		if err != nil {
			return nil, nil, err
		}
		if etcd == nil {
			return nil, nil, newUsageError("no etcd endpoints configured; pass --addr or set [etcd] endpoints")
		}
		reg = etcd
		cleanup = func() { _ = etcd.Close() }
	}

	pool := transport.NewPool(cfg.Client.PoolSize, transport.Options{
		HeartbeatInterval: cfg.Client.HeartbeatInterval,
		Logger:            opts.logger,
	})
	c, err := client.NewClient(cfg.Service, reg, bal,
		client.WithLogger(opts.logger),
		client.WithVersion(cfg.Version),
		client.WithPool(pool),
		client.WithCallTimeout(cfg.Client.CallTimeout))
	if err != nil {
		_ = pool.Close()
		cleanup()
		return nil, nil, err
	}
	return c, func() {
		_ = c.Close()
		_ = pool.Close()
		cleanup()
	}, nil
}

// runCall performs opts.repeat concurrent calls of the endpoint chosen by
// pick and prints each result on its own line.
func runCall[In protocol.Arguments, Out any](cmd *cobra.Command, opts *callOpts, pick func(*arith.Protocol) *protocol.Definition[In, Out], args In) error {
	if opts.tag != "" && opts.roundtrip {
		return newUsageError("--tag and --roundtrip are mutually exclusive")
	}
	if opts.repeat < 1 {
		return newUsageError("--repeat must be at least 1")
	}

	cd, err := codec.GetCodec(opts.cfg.Codec)
	if err != nil {
		return err
	}
	def := pick(arith.New(protocol.WithCodec(cd)))

	c, done, err := opts.newClient()
	if err != nil {
		return err
	}
	defer done()

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(cmd.Context())
	for i := 0; i < opts.repeat; i++ {
		g.Go(func() error {
			out, err := callOnce(ctx, c, opts, def, args)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		})
	}
	return g.Wait()
}

func callOnce[In protocol.Arguments, Out any](ctx context.Context, c *client.Client, opts *callOpts, def *protocol.Definition[In, Out], args In) (Out, error) {
	switch {
	case opts.tag != "":
		return client.CallTagged(ctx, c, protocol.WithTag(def, opts.tag), args)
	case opts.roundtrip:
		return client.Roundtrip(ctx, c, def, args)
	default:
		return client.Call(ctx, c, def, args)
	}
}
