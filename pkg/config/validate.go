package config

import (
	"fmt"
	"strings"
)

// Validate checks a configuration for internal consistency.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", cfg.Server.Port)
	}
	if len(cfg.Providers) == 0 {
		return fmt.Errorf("no providers configured")
	}

	for name, p := range cfg.Providers {
		if p.BaseURL == "" {
			return fmt.Errorf("provider %q: base_url is required", name)
		}
		if p.DefaultModel == "" {
			return fmt.Errorf("provider %q: default_model is required", name)
		}
		if p.Priority < 0 {
			return fmt.Errorf("provider %q: priority must be non-negative", name)
		}
		if p.Timeout <= 0 {
			return fmt.Errorf("provider %q: timeout must be positive", name)
		}
	}

	if _, ok := cfg.Providers[cfg.Behavior.DefaultProvider]; !ok {
		return fmt.Errorf("default provider %q is not configured", cfg.Behavior.DefaultProvider)
	}

	// Alias targets like "llama3.1:8b" carry model tags, so a colon
	// prefix is not necessarily a provider name; only empty mappings
	// are rejected here and the resolver handles the rest.
	for alias, target := range cfg.Aliases {
		if strings.TrimSpace(alias) == "" || strings.TrimSpace(target) == "" {
			return fmt.Errorf("empty alias mapping %q -> %q", alias, target)
		}
	}

	if cfg.Resilience.FailureThreshold < 1 {
		return fmt.Errorf("resilience failure_threshold must be at least 1")
	}
	if cfg.Resilience.SuccessThreshold < 1 {
		return fmt.Errorf("resilience success_threshold must be at least 1")
	}
	if cfg.Healing.ErrorThreshold < 1 {
		return fmt.Errorf("healing error_threshold must be at least 1")
	}
	if cfg.Audit.RetentionDays < 1 {
		return fmt.Errorf("audit retention_days must be at least 1")
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.Telemetry.Logging.Level)
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", cfg.Telemetry.Logging.Format)
	}
	return nil
}
