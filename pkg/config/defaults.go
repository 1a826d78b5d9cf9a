package config

import (
	"os"
	"path/filepath"
	"time"

	"aratta-hq/aratta/pkg/providers"
)

// Provider priorities. Lower is preferred; local upstreams come first
// because they never leave the machine.
const (
	PriorityLocal     = 0
	PriorityPrimary   = 1
	PrioritySecondary = 2
	PriorityTertiary  = 3
	PriorityFallback  = 4
)

func boolPtr(b bool) *bool { return &b }

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// DefaultHome returns the runtime state directory, honoring
// ARATTA_HOME.
func DefaultHome() string {
	if home := os.Getenv("ARATTA_HOME"); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".aratta"
	}
	return filepath.Join(userHome, ".aratta")
}

// defaultProviders seeds the provider table. vLLM and llama.cpp are
// opt-in.
func defaultProviders() map[string]*ProviderConfig {
	return map[string]*ProviderConfig{
		"anthropic": {
			BaseURL:      "https://api.anthropic.com",
			APIKeyEnv:    "ANTHROPIC_API_KEY",
			DefaultModel: "claude-sonnet-4-5",
			Priority:     PriorityPrimary,
			Timeout:      30 * time.Second,
		},
		"openai": {
			BaseURL:      "https://api.openai.com/v1",
			APIKeyEnv:    "OPENAI_API_KEY",
			DefaultModel: "gpt-5",
			Priority:     PrioritySecondary,
			Timeout:      30 * time.Second,
		},
		"google": {
			BaseURL:      "https://generativelanguage.googleapis.com",
			APIKeyEnv:    "GOOGLE_API_KEY",
			DefaultModel: "gemini-2.5-pro",
			Priority:     PriorityTertiary,
			Timeout:      30 * time.Second,
		},
		"xai": {
			BaseURL:      "https://api.x.ai/v1",
			APIKeyEnv:    "XAI_API_KEY",
			DefaultModel: "grok-4",
			Priority:     PriorityFallback,
			Timeout:      30 * time.Second,
		},
		"ollama": {
			BaseURL:      envOr("OLLAMA_URL", "http://localhost:11434"),
			DefaultModel: "llama3.1:8b",
			Priority:     PriorityLocal,
			Timeout:      120 * time.Second,
		},
		"vllm": {
			BaseURL:      envOr("VLLM_URL", "http://localhost:8000"),
			DefaultModel: "meta-llama/Llama-3.1-8B-Instruct",
			Priority:     PriorityLocal,
			Timeout:      120 * time.Second,
			Enabled:      boolPtr(false),
		},
		"llamacpp": {
			BaseURL:      envOr("LLAMACPP_URL", "http://localhost:8080"),
			DefaultModel: "default",
			Priority:     PriorityLocal,
			Timeout:      120 * time.Second,
			Enabled:      boolPtr(false),
		},
	}
}

// DefaultConfig returns a fully populated configuration.
func DefaultConfig() *Config {
	home := DefaultHome()
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8084,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  2 * time.Minute,
		},
		Providers: defaultProviders(),
		Aliases:   providers.DefaultAliases(),
		Behavior: BehaviorConfig{
			DefaultProvider: "ollama",
		},
		Resilience: ResilienceConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  60 * time.Second,
			SuccessThreshold: 3,
		},
		Healing: HealingConfig{
			HealModel:      "local",
			ResearchModel:  "grok",
			ErrorThreshold: 3,
			ErrorWindow:    300 * time.Second,
			Cooldown:       600 * time.Second,
			BackupDir:      filepath.Join(home, "adapter_backups"),
		},
		Audit: AuditConfig{
			SQLitePath:    filepath.Join(home, "audit.db"),
			RetentionDays: 30,
			PruneSchedule: "0 3 * * *",
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{Level: "info", Format: "json"},
			Metrics: MetricsConfig{Path: "/metrics"},
		},
		Home: home,
	}
}

// ApplyDefaults fills unset fields in a loaded configuration.
func ApplyDefaults(cfg *Config) {
	def := DefaultConfig()

	if cfg.Home == "" {
		cfg.Home = def.Home
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = def.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = def.Server.IdleTimeout
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]*ProviderConfig)
	}
	for name, seed := range def.Providers {
		p, ok := cfg.Providers[name]
		if !ok {
			cfg.Providers[name] = seed
			continue
		}
		if p.BaseURL == "" {
			p.BaseURL = seed.BaseURL
		}
		if p.APIKeyEnv == "" {
			p.APIKeyEnv = seed.APIKeyEnv
		}
		if p.DefaultModel == "" {
			p.DefaultModel = seed.DefaultModel
		}
		if p.Priority == 0 {
			p.Priority = seed.Priority
		}
		if p.Timeout == 0 {
			p.Timeout = seed.Timeout
		}
		if p.Enabled == nil {
			p.Enabled = seed.Enabled
		}
	}
	for _, p := range cfg.Providers {
		if p.Timeout == 0 {
			p.Timeout = 30 * time.Second
		}
	}

	if cfg.Aliases == nil {
		cfg.Aliases = def.Aliases
	} else {
		for alias, target := range def.Aliases {
			if _, ok := cfg.Aliases[alias]; !ok {
				cfg.Aliases[alias] = target
			}
		}
	}

	if cfg.Behavior.DefaultProvider == "" {
		cfg.Behavior.DefaultProvider = def.Behavior.DefaultProvider
	}
	if cfg.Resilience.FailureThreshold == 0 {
		cfg.Resilience.FailureThreshold = def.Resilience.FailureThreshold
	}
	if cfg.Resilience.RecoveryTimeout == 0 {
		cfg.Resilience.RecoveryTimeout = def.Resilience.RecoveryTimeout
	}
	if cfg.Resilience.SuccessThreshold == 0 {
		cfg.Resilience.SuccessThreshold = def.Resilience.SuccessThreshold
	}

	if cfg.Healing.HealModel == "" {
		cfg.Healing.HealModel = def.Healing.HealModel
	}
	if cfg.Healing.ResearchModel == "" {
		cfg.Healing.ResearchModel = def.Healing.ResearchModel
	}
	if cfg.Healing.ErrorThreshold == 0 {
		cfg.Healing.ErrorThreshold = def.Healing.ErrorThreshold
	}
	if cfg.Healing.ErrorWindow == 0 {
		cfg.Healing.ErrorWindow = def.Healing.ErrorWindow
	}
	if cfg.Healing.Cooldown == 0 {
		cfg.Healing.Cooldown = def.Healing.Cooldown
	}
	if cfg.Healing.BackupDir == "" {
		cfg.Healing.BackupDir = filepath.Join(cfg.Home, "adapter_backups")
	}

	if cfg.Audit.SQLitePath == "" {
		cfg.Audit.SQLitePath = filepath.Join(cfg.Home, "audit.db")
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = def.Audit.RetentionDays
	}
	if cfg.Audit.PruneSchedule == "" {
		cfg.Audit.PruneSchedule = def.Audit.PruneSchedule
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = def.Telemetry.Logging.Level
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = def.Telemetry.Logging.Format
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = def.Telemetry.Metrics.Path
	}
}
