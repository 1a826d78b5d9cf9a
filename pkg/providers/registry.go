package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory constructs a provider instance from its configuration.
type Factory func(Config) (Provider, error)

// Registry lazily constructs and caches provider instances. Construction
// is deferred until the first request targets a provider, so a gateway
// configured with five providers only pays for the ones actually used.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	configs   map[string]Config
	instances map[string]Provider
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		configs:   make(map[string]Config),
		instances: make(map[string]Provider),
	}
}

// Register wires a provider name to its factory and configuration. The
// instance is not constructed until the first Get.
func (r *Registry) Register(name string, config Config, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	config.Name = name
	r.factories[name] = factory
	r.configs[name] = config
}

// Get returns the provider instance for name, constructing it on first
// use. Concurrent callers racing on first use observe exactly one
// constructed instance.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	if p, ok := r.instances[name]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.instances[name]; ok {
		return p, nil
	}

	factory, ok := r.factories[name]
	if !ok {
		return nil, &ConfigError{Message: fmt.Sprintf("unknown provider: %s", name)}
	}

	p, err := factory(r.configs[name])
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider %s: %w", name, err)
	}

	slog.Info("provider initialized", "provider", name)
	r.instances[name] = p
	return p, nil
}

// Has reports whether name is registered, constructed or not.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Config returns the configuration registered for name.
func (r *Registry) Config(name string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	return cfg, ok
}

// Active returns the names of providers that have been constructed.
func (r *Registry) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invalidate closes and discards a constructed instance so the next Get
// rebuilds it from configuration. Used after a configuration change or
// an applied fix.
func (r *Registry) Invalidate(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.instances[name]; ok {
		if err := p.Close(); err != nil {
			slog.Warn("error closing provider during invalidation", "provider", name, "error", err)
		}
		delete(r.instances, name)
		slog.Info("provider invalidated", "provider", name)
	}
}

// Close shuts down every constructed instance. The registry can still
// construct fresh instances afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for name, p := range r.instances {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close provider %s: %w", name, err)
		}
		delete(r.instances, name)
	}
	return firstErr
}
