// Package config loads restrpc settings from a TOML file laid over built-in
// defaults. Only keys present in the file override a default.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"rest-rpc/codec"
	"rest-rpc/loadbalance"
)

type Config struct {
	Service string
	Version string
	Codec   codec.CodecType
	Etcd    Etcd
	Client  Client
	Server  Server
	Log     Log
	Metrics Metrics
}

type Etcd struct {
	// Endpoints is empty when discovery goes through a static address.
	Endpoints   []string
	DialTimeout time.Duration
	LeaseTTL    int64 // seconds
}

type Client struct {
	PoolSize          int
	Balancer          string
	HeartbeatInterval time.Duration
	CallTimeout       time.Duration
}

type Server struct {
	Listen          string
	Advertise       string
	RateLimit       float64 // requests per second, 0 disables
	Burst           int
	HandlerTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type Log struct {
	Level       string
	Development bool
}

type Metrics struct {
	Listen string // empty disables the /metrics endpoint
}

func Default() Config {
	return Config{
		Service: "arith",
		Version: "1.0.0",
		Codec:   codec.CodecTypeJSON,
		Etcd: Etcd{
			DialTimeout: 5 * time.Second,
			LeaseTTL:    10,
		},
		Client: Client{
			PoolSize:          4,
			Balancer:          loadbalance.RoundRobin,
			HeartbeatInterval: 30 * time.Second,
			CallTimeout:       5 * time.Second,
		},
		Server: Server{
			Listen:          "127.0.0.1:8080",
			Burst:           100,
			HandlerTimeout:  10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// restrpc.toml key mapping.
type fileConfig struct {
	Service string `toml:"service"`
	Version string `toml:"version"`
	Codec   string `toml:"codec"`
	Etcd    struct {
		Endpoints   []string `toml:"endpoints"`
		DialTimeout string   `toml:"dial_timeout"`
		LeaseTTL    int64    `toml:"lease_ttl"`
	} `toml:"etcd"`
	Client struct {
		PoolSize          int    `toml:"pool_size"`
		Balancer          string `toml:"balancer"`
		HeartbeatInterval string `toml:"heartbeat_interval"`
		CallTimeout       string `toml:"call_timeout"`
	} `toml:"client"`
	Server struct {
		Listen          string  `toml:"listen"`
		Advertise       string  `toml:"advertise"`
		RateLimit       float64 `toml:"rate_limit"`
		Burst           int     `toml:"burst"`
		HandlerTimeout  string  `toml:"handler_timeout"`
		ShutdownTimeout string  `toml:"shutdown_timeout"`
	} `toml:"server"`
	Log struct {
		Level       string `toml:"level"`
		Development bool   `toml:"development"`
	} `toml:"log"`
	Metrics struct {
		Listen string `toml:"listen"`
	} `toml:"metrics"`
}

// Load reads the TOML file at path.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return apply(raw, meta)
}

// Parse reads TOML text.
func Parse(text string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(text, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return apply(raw, meta)
}

func apply(raw fileConfig, meta toml.MetaData) (Config, error) {
	cfg := Default()

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("service") {
		cfg.Service = strings.TrimSpace(raw.Service)
	}
	if meta.IsDefined("version") {
		cfg.Version = strings.TrimSpace(raw.Version)
	}
	if meta.IsDefined("codec") {
		ct, err := codec.ParseType(strings.TrimSpace(raw.Codec))
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		cfg.Codec = ct
	}

	if meta.IsDefined("etcd", "endpoints") {
		cfg.Etcd.Endpoints = raw.Etcd.Endpoints
	}
	if meta.IsDefined("etcd", "lease_ttl") {
		cfg.Etcd.LeaseTTL = raw.Etcd.LeaseTTL
	}

	if meta.IsDefined("client", "pool_size") {
		cfg.Client.PoolSize = raw.Client.PoolSize
	}
	if meta.IsDefined("client", "balancer") {
		cfg.Client.Balancer = strings.TrimSpace(raw.Client.Balancer)
	}

	if meta.IsDefined("server", "listen") {
		cfg.Server.Listen = strings.TrimSpace(raw.Server.Listen)
	}
	if meta.IsDefined("server", "advertise") {
		cfg.Server.Advertise = strings.TrimSpace(raw.Server.Advertise)
	}
	if meta.IsDefined("server", "rate_limit") {
		cfg.Server.RateLimit = raw.Server.RateLimit
	}
	if meta.IsDefined("server", "burst") {
		cfg.Server.Burst = raw.Server.Burst
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "development") {
		cfg.Log.Development = raw.Log.Development
	}
	if meta.IsDefined("metrics", "listen") {
		cfg.Metrics.Listen = strings.TrimSpace(raw.Metrics.Listen)
	}

	durations := []struct {
		key  []string
		text string
		dst  *time.Duration
	}{
		{[]string{"etcd", "dial_timeout"}, raw.Etcd.DialTimeout, &cfg.Etcd.DialTimeout},
		{[]string{"client", "heartbeat_interval"}, raw.Client.HeartbeatInterval, &cfg.Client.HeartbeatInterval},
		{[]string{"client", "call_timeout"}, raw.Client.CallTimeout, &cfg.Client.CallTimeout},
		{[]string{"server", "handler_timeout"}, raw.Server.HandlerTimeout, &cfg.Server.HandlerTimeout},
		{[]string{"server", "shutdown_timeout"}, raw.Server.ShutdownTimeout, &cfg.Server.ShutdownTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.text))
		if err != nil {
			return Config{}, fmt.Errorf("load config: %s: %w", strings.Join(d.key, "."), err)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable fallback.
func (c Config) Validate() error {
	if c.Service == "" {
		return fmt.Errorf("load config: service is required")
	}
	if c.Client.PoolSize <= 0 {
		return fmt.Errorf("load config: client.pool_size must be positive, got %d", c.Client.PoolSize)
	}
	if _, err := loadbalance.New(c.Client.Balancer); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("load config: server.rate_limit must not be negative")
	}
	return nil
}

// AdvertiseAddr is the address the server registers for discovery: the
// configured advertise address, or the listen address when none is set.
func (s Server) AdvertiseAddr() string {
	if s.Advertise != "" {
		return s.Advertise
	}
	return s.Listen
}
