// Package config loads and validates the gateway configuration.
//
// Configuration comes from three layers, highest precedence last
// applied wins: built-in defaults, a YAML file (by convention
// ~/.aratta/config.yaml), and ARATTA_* environment variables. API keys
// are never stored in the file; each provider names the environment
// variable that holds its credential.
//
// A Watcher built on fsnotify reloads the file on change so alias and
// behavior edits take effect without a restart.
package config
