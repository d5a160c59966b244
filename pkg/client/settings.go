package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/mustangchat/pkg/protocol"
)

// Settings stores the last-used connection, persisted as YAML next to the
// binary.
type Settings struct {
	Server    string        `yaml:"server"`
	Username  string        `yaml:"username,omitempty"`
	Wire      string        `yaml:"wire"`
	KeepAlive time.Duration `yaml:"keepalive"`
}

// DefaultSettings returns default settings.
func DefaultSettings() *Settings {
	return &Settings{
		Server:    "127.0.0.1:5000",
		Wire:      protocol.WireBinary,
		KeepAlive: DefaultKeepAliveInterval,
	}
}

// DefaultSettingsPath returns settings.yaml next to the executable.
func DefaultSettingsPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "settings.yaml"
	}
	return filepath.Join(filepath.Dir(exe), "settings.yaml")
}

// LoadSettings reads settings from path. A missing file yields defaults.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path) //nolint:gosec // path from CLI flag
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("client: read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return DefaultSettings(), fmt.Errorf("client: parse settings: %w", err)
	}
	return s, nil
}

// Save writes settings to path.
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
