package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rest-rpc/internal/arith"
	"rest-rpc/metrics"
	"rest-rpc/middleware"
	"rest-rpc/registry"
	"rest-rpc/server"
)

type serveOpts struct {
	*rootOpts
	listen string

	// ready, if set, receives the bound address once the server listens.
	ready chan<- net.Addr
}

func newServe(parent *rootOpts) *serveOpts {
	return &serveOpts{rootOpts: parent}
}

func (opts *serveOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the arith endpoints until interrupted.",
		Args:  cobra.NoArgs,
		RunE:  opts.RunE,
	}
	cmd.Flags().StringVar(&opts.listen, "listen", "", "override the configured listen address")
	return cmd
}

func (opts *serveOpts) RunE(cmd *cobra.Command, _ []string) error {
	cfg := opts.cfg
	if opts.listen != "" {
		cfg.Server.Listen = opts.listen
	}
	logger := opts.logger

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	serverOpts := []server.Option{server.WithLogger(logger)}
	etcd, err := opts.etcdRegistry()
	if err != nil {
		return err
	}
	if etcd != nil {
		defer etcd.Close()
		inst := registry.ServiceInstance{Addr: cfg.Server.AdvertiseAddr(), Weight: 1, Version: cfg.Version}
		serverOpts = append(serverOpts, server.WithRegistry(etcd, inst, cfg.Etcd.LeaseTTL))
	}

	s := server.NewServer(cfg.Service, serverOpts...)
	if err := arith.New().Register(s); err != nil {
		return err
	}
	s.Use(middleware.Logging(logger))
	s.Use(middleware.Metrics(metrics.NewServer(promReg)))
	if cfg.Server.RateLimit > 0 {
		s.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.Burst))
	}
	if cfg.Server.HandlerTimeout > 0 {
		s.Use(middleware.Timeout(cfg.Server.HandlerTimeout))
	}

	l, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return err
	}
	if opts.ready != nil {
		opts.ready <- l.Addr()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.Serve(l)
	})

	var metricsSrv *http.Server
	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		g.Go(func() error {
			logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Listen))
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
