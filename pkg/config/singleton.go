package config

import (
	"fmt"
	"sync"
)

var (
	globalConfig *Config
	configMutex  sync.RWMutex
	initOnce     sync.Once
)

// Initialize loads configuration from path with environment overrides
// and stores it as the process-wide singleton. Subsequent calls are
// no-ops.
func Initialize(path string) error {
	var initErr error
	initOnce.Do(func() {
		cfg, err := LoadWithEnvOverrides(path)
		if err != nil {
			initErr = err
			return
		}
		configMutex.Lock()
		globalConfig = cfg
		configMutex.Unlock()
	})
	return initErr
}

// Get returns the singleton configuration, or nil before Initialize.
func Get() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// Set replaces the singleton. Intended for tests.
func Set(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = cfg
}

// Reload re-reads the configuration from path and swaps the singleton.
// The existing configuration is kept when loading fails.
func Reload(path string) error {
	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	configMutex.Lock()
	globalConfig = cfg
	configMutex.Unlock()
	return nil
}
