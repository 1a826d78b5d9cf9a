package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"aratta-hq/aratta/pkg/audit"
	"aratta-hq/aratta/pkg/config"
	"aratta-hq/aratta/pkg/providers"
	"aratta-hq/aratta/pkg/providers/anthropic"
	"aratta-hq/aratta/pkg/providers/google"
	"aratta-hq/aratta/pkg/providers/local"
	"aratta-hq/aratta/pkg/providers/openai"
	"aratta-hq/aratta/pkg/providers/xai"
	"aratta-hq/aratta/pkg/resilience"
	"aratta-hq/aratta/pkg/routing"
	"aratta-hq/aratta/pkg/server"
	"aratta-hq/aratta/pkg/telemetry/logging"
	"aratta-hq/aratta/pkg/telemetry/metrics"
)

var runFlags struct {
	host     string
	port     int
	logLevel string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway server",
	Long: `Start the gateway server with the specified configuration.

Examples:
  # Start with default config
  aratta run

  # Start with a custom config
  aratta run --config /etc/aratta/config.yaml

  # Override the listen port
  aratta run --port 9090`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.host, "host", "", "override listen host")
	runCmd.Flags().IntVar(&runFlags.port, "port", 0, "override listen port")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

// factories maps a provider name to its adapter constructor. Unlisted
// names get the OpenAI-compatible local adapter, which covers Ollama,
// vLLM, and llama.cpp.
var factories = map[string]providers.Factory{
	"anthropic": func(c providers.Config) (providers.Provider, error) { return anthropic.New(c) },
	"openai":    func(c providers.Config) (providers.Provider, error) { return openai.New(c) },
	"google":    func(c providers.Config) (providers.Provider, error) { return google.New(c) },
	"xai":       func(c providers.Config) (providers.Provider, error) { return xai.New(c) },
}

func factoryFor(name string) providers.Factory {
	if f, ok := factories[name]; ok {
		return f
	}
	return func(c providers.Config) (providers.Provider, error) { return local.New(c) }
}

func runServer(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	if err := config.Initialize(path); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.Get()

	if runFlags.host != "" {
		cfg.Server.Host = runFlags.host
	}
	if runFlags.port != 0 {
		cfg.Server.Port = runFlags.port
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logging.Setup(logging.Config{
		Level:  cfg.Telemetry.Logging.Level,
		Format: logging.Format(cfg.Telemetry.Logging.Format),
	})
	slog.Info("aratta starting",
		"version", Version,
		"default_provider", cfg.Behavior.DefaultProvider,
		"providers", cfg.AvailableProviders(),
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Providers.
	registry := providers.NewRegistry()
	for _, name := range cfg.ProviderNames() {
		registry.Register(name, cfg.Runtime(name), factoryFor(name))
	}
	resolver := providers.NewResolver(cfg.Aliases, cfg.ProviderNames(), cfg.ResolutionDefault())

	// Telemetry.
	var m *metrics.Metrics
	if cfg.Telemetry.Metrics.MetricsEnabled() {
		m = metrics.New()
	}

	// Resilience.
	var breaker *resilience.CircuitBreaker
	if cfg.Resilience.BreakerEnabled() {
		breaker = resilience.NewCircuitBreaker()
		breaker.SetThresholds(
			cfg.Resilience.FailureThreshold,
			cfg.Resilience.RecoveryTimeout,
			cfg.Resilience.SuccessThreshold,
		)
	}

	var monitor *resilience.HealthMonitor
	var reloader *resilience.ReloadManager
	var healer *resilience.HealWorker
	if cfg.Healing.HealingEnabled() {
		monitor = resilience.NewHealthMonitor()
		monitor.SetThresholds(
			cfg.Healing.ErrorThreshold,
			cfg.Healing.ErrorWindow,
			cfg.Healing.Cooldown,
		)

		var err error
		reloader, err = resilience.NewReloadManager(cfg.Healing.BackupDir, cfg.Healing.AutoApply)
		if err != nil {
			return fmt.Errorf("failed to initialize reload manager: %w", err)
		}
		reloader.OnInvalidate(registry.Invalidate)
		if err := registerAdapterDefinitions(cfg, reloader); err != nil {
			slog.Warn("adapter definitions unavailable", "error", err)
		}

		healer = resilience.NewHealWorker(
			registry.Get,
			resolver.Resolve,
			cfg.Healing.HealModel,
			cfg.Healing.ResearchModel,
		)
		slog.Info("self-healing enabled",
			"heal_model", cfg.Healing.HealModel,
			"research_model", cfg.Healing.ResearchModel,
		)
	}

	// Audit trail.
	var store *audit.Store
	if cfg.Audit.AuditEnabled() {
		var err error
		store, err = audit.NewStore(audit.StoreConfig{Path: cfg.Audit.SQLitePath})
		if err != nil {
			return fmt.Errorf("failed to initialize audit store: %w", err)
		}
		pruner := audit.NewPruner(store, audit.PrunerConfig{
			RetentionDays: cfg.Audit.RetentionDays,
			Schedule:      cfg.Audit.PruneSchedule,
		})
		if err := pruner.Start(ctx); err != nil {
			slog.Warn("failed to start retention pruner", "error", err)
		}
	}

	// Routing.
	router := routing.NewRouter(routing.Options{
		Registry:           registry,
		Resolver:           resolver,
		Breaker:            breaker,
		Monitor:            monitor,
		Metrics:            m,
		FallbackEnabled:    cfg.Behavior.FallbackEnabled(),
		AvailableProviders: func() []string { return config.Get().AvailableProviders() },
		DefaultModel: func(name string) string {
			if p := config.Get().Provider(name); p != nil {
				return p.DefaultModel
			}
			return ""
		},
	})

	// Config hot reload: fallback ordering and provider defaults read
	// through the singleton and take effect on the next request.
	if watcher, err := config.NewWatcher(path); err == nil {
		go watcher.Watch(ctx, func() error {
			return config.Reload(path)
		})
	} else {
		slog.Debug("config watcher unavailable", "error", err)
	}

	srv := server.NewServer(cfg, server.Deps{
		Registry: registry,
		Resolver: resolver,
		Router:   router,
		Breaker:  breaker,
		Monitor:  monitor,
		Reloader: reloader,
		Healer:   healer,
		Metrics:  m,
		Audit:    store,
	})
	server.Version = Version
	return srv.Start(ctx)
}

// registerAdapterDefinitions seeds one definition file per provider
// under <home>/adapters and registers it with the reload manager. The
// definition is the unit the manager backs up, versions, and rolls
// back; credentials stay in the environment and never land in it.
func registerAdapterDefinitions(cfg *config.Config, reloader *resilience.ReloadManager) error {
	dir := filepath.Join(cfg.Home, "adapters")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, name := range cfg.ProviderNames() {
		path := filepath.Join(dir, name+".json")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			rt := cfg.Runtime(name)
			rt.APIKey = ""
			raw, err := json.MarshalIndent(rt, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, raw, 0o644); err != nil {
				return err
			}
		}
		reloader.SetAdapterPath(name, path)
	}
	return nil
}
