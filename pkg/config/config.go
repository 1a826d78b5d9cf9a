package config

import (
	"os"
	"sort"
	"time"

	"aratta-hq/aratta/pkg/providers"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// ProviderConfig configures one upstream provider. API keys are never
// stored in the file; APIKeyEnv names the environment variable holding
// the credential.
type ProviderConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIKeyEnv    string        `yaml:"api_key_env,omitempty"`
	DefaultModel string        `yaml:"default_model"`
	Priority     int           `yaml:"priority"`
	Timeout      time.Duration `yaml:"timeout"`
	Enabled      *bool         `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the provider is switched on. Unset means
// enabled.
func (p *ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// APIKey reads the provider's credential from the environment.
func (p *ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// IsAvailable reports whether the provider can take traffic: enabled,
// and either keyless or with its key present in the environment.
func (p *ProviderConfig) IsAvailable() bool {
	if !p.IsEnabled() {
		return false
	}
	if p.APIKeyEnv != "" {
		return p.APIKey() != ""
	}
	return true
}

// BehaviorConfig holds routing behavior toggles.
type BehaviorConfig struct {
	DefaultProvider string `yaml:"default_provider"`
	EnableFallback  *bool  `yaml:"enable_fallback,omitempty"`
	PreferLocal     *bool  `yaml:"prefer_local,omitempty"`
}

// FallbackEnabled reports whether cross-provider fallback is on.
// Unset means enabled.
func (b *BehaviorConfig) FallbackEnabled() bool {
	return b.EnableFallback == nil || *b.EnableFallback
}

// PreferLocalEnabled reports whether unqualified model strings prefer
// a local provider. Unset means enabled.
func (b *BehaviorConfig) PreferLocalEnabled() bool {
	return b.PreferLocal == nil || *b.PreferLocal
}

// ResilienceConfig tunes the circuit breaker.
type ResilienceConfig struct {
	CircuitBreakerEnabled *bool         `yaml:"circuit_breaker_enabled,omitempty"`
	FailureThreshold      int           `yaml:"failure_threshold"`
	RecoveryTimeout       time.Duration `yaml:"recovery_timeout"`
	SuccessThreshold      int           `yaml:"success_threshold"`
}

// BreakerEnabled reports whether the circuit breaker is on. Unset
// means enabled.
func (r *ResilienceConfig) BreakerEnabled() bool {
	return r.CircuitBreakerEnabled == nil || *r.CircuitBreakerEnabled
}

// HealingConfig tunes the self-healing stack.
type HealingConfig struct {
	Enabled        *bool         `yaml:"enabled,omitempty"`
	AutoApply      bool          `yaml:"auto_apply"`
	HealModel      string        `yaml:"heal_model"`
	ResearchModel  string        `yaml:"research_model"`
	ErrorThreshold int           `yaml:"error_threshold"`
	ErrorWindow    time.Duration `yaml:"error_window"`
	Cooldown       time.Duration `yaml:"cooldown"`
	BackupDir      string        `yaml:"backup_dir"`
}

// HealingEnabled reports whether self-healing is on. Unset means
// enabled.
func (h *HealingConfig) HealingEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

// AuditConfig configures the request/heal audit trail.
type AuditConfig struct {
	Enabled       *bool  `yaml:"enabled,omitempty"`
	SQLitePath    string `yaml:"sqlite_path"`
	RetentionDays int    `yaml:"retention_days"`
	PruneSchedule string `yaml:"prune_schedule"`
}

// AuditEnabled reports whether the audit trail is on. Unset means
// enabled.
func (a *AuditConfig) AuditEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path"`
}

// MetricsEnabled reports whether the Prometheus endpoint is on. Unset
// means enabled.
func (m *MetricsConfig) MetricsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// TelemetryConfig groups observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// Config is the top-level gateway configuration.
type Config struct {
	Server     ServerConfig               `yaml:"server"`
	Providers  map[string]*ProviderConfig `yaml:"providers"`
	Aliases    map[string]string          `yaml:"aliases"`
	Behavior   BehaviorConfig             `yaml:"behavior"`
	Resilience ResilienceConfig           `yaml:"resilience"`
	Healing    HealingConfig              `yaml:"healing"`
	Audit      AuditConfig                `yaml:"audit"`
	Telemetry  TelemetryConfig            `yaml:"telemetry"`

	// Home is the runtime state directory, resolved at load time and
	// not read from the file.
	Home string `yaml:"-"`
}

// Provider returns the configuration for a named provider, or nil.
func (c *Config) Provider(name string) *ProviderConfig {
	return c.Providers[name]
}

// AvailableProviders lists providers that can take traffic, ordered by
// priority (lower first), name-sorted within a priority.
func (c *Config) AvailableProviders() []string {
	names := make([]string, 0, len(c.Providers))
	for name, p := range c.Providers {
		if p.IsAvailable() {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := c.Providers[names[i]].Priority, c.Providers[names[j]].Priority
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})
	return names
}

// ResolutionDefault returns the provider an unqualified model string
// resolves to when no alias, prefix, or substring rule matches. With
// prefer_local on, an available priority-zero provider wins over the
// configured default. The fallback walk keeps the plain priority order
// either way.
func (c *Config) ResolutionDefault() string {
	if c.Behavior.PreferLocalEnabled() {
		for _, name := range c.AvailableProviders() {
			if c.Providers[name].Priority == 0 {
				return name
			}
		}
	}
	return c.Behavior.DefaultProvider
}

// ProviderNames lists all configured providers, sorted.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Runtime converts a provider's configuration to the adapter runtime
// form, resolving the API key from the environment.
func (c *Config) Runtime(name string) providers.Config {
	p := c.Providers[name]
	if p == nil {
		return providers.Config{Name: name}
	}
	return providers.Config{
		Name:         name,
		BaseURL:      p.BaseURL,
		APIKey:       p.APIKey(),
		DefaultModel: p.DefaultModel,
		Timeout:      p.Timeout,
		Priority:     p.Priority,
	}
}
