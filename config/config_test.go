package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rest-rpc/codec"
)

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse(`
service = "calc"
codec = "msgpack"

[etcd]
endpoints = ["10.0.0.1:2379", "10.0.0.2:2379"]
dial_timeout = "2s"

[client]
balancer = "consistent_hash"
call_timeout = "750ms"

[server]
listen = ":9000"
rate_limit = 50.5

[log]
level = "debug"
`)
	require.NoError(t, err)

	assert.Equal(t, "calc", cfg.Service)
	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Equal(t, codec.CodecTypeMsgpack, cfg.Codec)
	assert.Equal(t, []string{"10.0.0.1:2379", "10.0.0.2:2379"}, cfg.Etcd.Endpoints)
	assert.Equal(t, 2*time.Second, cfg.Etcd.DialTimeout)
	assert.Equal(t, int64(10), cfg.Etcd.LeaseTTL)
	assert.Equal(t, "consistent_hash", cfg.Client.Balancer)
	assert.Equal(t, 750*time.Millisecond, cfg.Client.CallTimeout)
	assert.Equal(t, 4, cfg.Client.PoolSize)
	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, ":9000", cfg.Server.AdvertiseAddr())
	assert.Equal(t, 50.5, cfg.Server.RateLimit)
	assert.Equal(t, 100, cfg.Server.Burst)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestParseEmptyIsDefault(t *testing.T) {
	cfg, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"bad codec":     `codec = "xml"`,
		"bad duration":  "[client]\ncall_timeout = \"soon\"",
		"bad balancer":  "[client]\nbalancer = \"random\"",
		"zero pool":     "[client]\npool_size = 0",
		"empty service": `service = ""`,
		"unknown key":   `colour = "blue"`,
		"not toml":      `service = `,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(text)
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restrpc.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nadvertise = \"10.1.2.3:8080\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3:8080", cfg.Server.AdvertiseAddr())

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
