package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, ":5000", cfg.ListenAddr)
	require.Equal(t, 10*time.Second, cfg.SweepInterval)
	require.Equal(t, 120*time.Second, cfg.SessionTimeout)
}

func TestLoadConfigLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mustangchat.yaml")
	yaml := []byte("listen_addr: \":6000\"\nwire: json\nworkers: 8\nsession_timeout: 30s\n")
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	// Environment wins over the file.
	t.Setenv("MUSTANG_WORKERS", "2")
	t.Setenv("MUSTANG_SWEEP_INTERVAL", "3s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":6000", cfg.ListenAddr)
	require.Equal(t, "json", cfg.Wire)
	require.Equal(t, 2, cfg.Workers)
	require.Equal(t, 30*time.Second, cfg.SessionTimeout)
	require.Equal(t, 3*time.Second, cfg.SweepInterval)
	// Untouched by either layer.
	require.Equal(t, 256, cfg.QueueSize)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("workers: [1, 2"), 0o600))
	_, err = LoadConfig(bad)
	require.ErrorContains(t, err, "parse config")
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JournalPath = "/var/lib/mustangchat/journal.db"
	data, err := cfg.YAML()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	got, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty listen", func(c *Config) { c.ListenAddr = "" }, "listen address"},
		{"bad wire", func(c *Config) { c.Wire = "protobuf" }, "protobuf"},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers"},
		{"negative queue", func(c *Config) { c.QueueSize = -1 }, "queue size"},
		{"zero sweep", func(c *Config) { c.SweepInterval = 0 }, "sweep interval"},
		{"zero timeout", func(c *Config) { c.SessionTimeout = 0 }, "session timeout"},
		{"negative log interval", func(c *Config) { c.MetricsLogInterval = -time.Second }, "metrics log interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}

	cfg := DefaultConfig()
	cfg.Workers = 0
	require.NoError(t, cfg.Validate())
	require.Equal(t, 1, cfg.Workers)
}
