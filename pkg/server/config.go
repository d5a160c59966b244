package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	env "github.com/Netflix/go-env"
	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/mustangchat/pkg/protocol"
)

// Config holds server configuration.
//
// Values are layered: DefaultConfig, then an optional YAML file, then
// MUSTANG_* environment variables, then command-line flags (applied by the
// caller).
type Config struct {
	ListenAddr         string        `yaml:"listen_addr"          env:"MUSTANG_LISTEN_ADDR"`          // UDP bind address (e.g. ":5000")
	Wire               string        `yaml:"wire"                 env:"MUSTANG_WIRE"`                 // "binary" or "json"
	Workers            int           `yaml:"workers"              env:"MUSTANG_WORKERS"`              // dispatch goroutines, sharded by endpoint
	QueueSize          int           `yaml:"queue_size"           env:"MUSTANG_QUEUE_SIZE"`           // per-worker datagram queue
	ReadBuffer         int           `yaml:"read_buffer"          env:"MUSTANG_READ_BUFFER"`          // socket receive buffer in bytes (0 = OS default)
	SweepInterval      time.Duration `yaml:"sweep_interval"       env:"MUSTANG_SWEEP_INTERVAL"`       // how often idle sessions are checked
	SessionTimeout     time.Duration `yaml:"session_timeout"      env:"MUSTANG_SESSION_TIMEOUT"`      // silence after which a session is evicted
	MetricsAddr        string        `yaml:"metrics_addr"         env:"MUSTANG_METRICS_ADDR"`         // HTTP bind address for /metrics (empty = disabled)
	MetricsLogInterval time.Duration `yaml:"metrics_log_interval" env:"MUSTANG_METRICS_LOG_INTERVAL"` // periodic metrics log (0 = disabled)
	JournalPath        string        `yaml:"journal_path"         env:"MUSTANG_JOURNAL_PATH"`         // SQLite session journal (empty = disabled)
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:         ":5000",
		Wire:               protocol.WireBinary,
		Workers:            4,
		QueueSize:          256,
		ReadBuffer:         1024 * 1024,
		SweepInterval:      10 * time.Second,
		SessionTimeout:     120 * time.Second,
		MetricsAddr:        ":9702",
		MetricsLogInterval: 60 * time.Second,
	}
}

// LoadConfig builds a config from the defaults, the YAML file at path (if
// path is not empty) and the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path from CLI flag
		if err != nil {
			return cfg, fmt.Errorf("server: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("server: parse config: %w", err)
		}
	}
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return cfg, fmt.Errorf("server: config from environment: %w", err)
	}
	return cfg, nil
}

// YAML renders the config in the file format LoadConfig reads.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks the config and normalises Workers.
func (c *Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address must not be empty"))
	}
	if _, err := protocol.NewCodec(c.Wire); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative (got %d)", c.Workers))
	} else if c.Workers == 0 {
		c.Workers = 1
	}
	if c.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("queue size must not be negative (got %d)", c.QueueSize))
	}
	if c.ReadBuffer < 0 {
		errs = append(errs, fmt.Errorf("read buffer must not be negative (got %d)", c.ReadBuffer))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("sweep interval must be positive (got %s)", c.SweepInterval))
	}
	if c.SessionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("session timeout must be positive (got %s)", c.SessionTimeout))
	}
	if c.MetricsLogInterval < 0 {
		errs = append(errs, fmt.Errorf("metrics log interval must not be negative (got %s)", c.MetricsLogInterval))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("server: invalid config: %w", err)
	}
	return nil
}
