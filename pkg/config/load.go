package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file, fills defaults, and
// validates. A missing file yields the default configuration.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("read config %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// LoadWithEnvOverrides loads configuration and applies environment
// variable overrides. ARATTA_HOST and ARATTA_PORT take precedence over
// the file; ARATTA_HOME is consumed by ApplyDefaults.
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation after env overrides: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ARATTA_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ARATTA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ARATTA_DEFAULT_PROVIDER"); v != "" {
		cfg.Behavior.DefaultProvider = v
	}
	if v := os.Getenv("ARATTA_LOG_LEVEL"); v != "" {
		cfg.Telemetry.Logging.Level = v
	}
}

// DefaultPath returns the conventional config file location under the
// runtime home.
func DefaultPath() string {
	return DefaultHome() + "/config.yaml"
}
