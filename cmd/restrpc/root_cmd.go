package main

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rest-rpc/codec"
	"rest-rpc/config"
	"rest-rpc/logging"
	"rest-rpc/registry"
)

type rootOpts struct {
	configPath string
	codec      string

	cfg    config.Config
	logger *zap.Logger
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

var rootLongHelp = strings.TrimSpace(`
restrpc serves and calls the arith demo service.

Workflow:
  restrpc serve -c restrpc.toml                     # Serve add, ping and greet.
  restrpc call add 2 3 --addr 127.0.0.1:8080        # Call a known server directly.
  restrpc call ping --tag 7                         # Tagged call through etcd discovery.
  restrpc call greet bob --roundtrip --repeat 10    # Ten concurrent calls, each with a fresh tag.
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "restrpc",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		PersistentPreRunE: opts.PersistentPreRunE,
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a TOML config file; defaults are used when empty")
	cmd.PersistentFlags().StringVar(&opts.codec, "codec", "", "override the configured codec (json or msgpack)")

	cmd.AddCommand(
		newServe(opts).Command(),
		newCall(opts).Command(),
	)
	return cmd
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("codec") {
		ct, err := codec.ParseType(opts.codec)
		if err != nil {
			return err
		}
		cfg.Codec = ct
	}
	opts.cfg = cfg

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	opts.logger = logger
	return nil
}

// etcdRegistry connects to the configured etcd cluster, or returns nil when
// none is configured.
func (opts *rootOpts) etcdRegistry() (*registry.EtcdRegistry, error) {
	if len(opts.cfg.Etcd.Endpoints) == 0 {
		return nil, nil
	}
	return registry.NewEtcdRegistry(opts.cfg.Etcd.Endpoints, opts.cfg.Etcd.DialTimeout, opts.logger)
}
