package common

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAddr is the address both binaries use when neither a config
// file nor a flag overrides it.
const DefaultAddr = "127.0.0.1:8080"

// Duration is a time.Duration that unmarshals from YAML duration
// strings such as "90s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds the settings shared by the client and server binaries.
type Config struct {
	// Addr is the server listen address, and the address the client
	// dials.
	Addr string `yaml:"addr"`
	// SessionTimeout bounds each channel operation. Zero disables
	// deadlines.
	SessionTimeout Duration `yaml:"session_timeout"`
	// Quiet suppresses progress output.
	Quiet bool `yaml:"quiet"`
}

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() *Config {
	return &Config{Addr: DefaultAddr}
}

// LoadConfig reads a YAML config file. Missing keys keep their defaults.
func LoadConfig(path string) (*Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(body, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return cfg, nil
}
