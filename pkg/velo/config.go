package velo

import (
	"errors"
	"os"
	"strconv"
	"sync"
	"time"
)

// Config carries the tunables of the template engine.
type Config struct {
	// CacheMaxSize is the maximum number of parsed templates to cache.
	// 0 disables caching.
	CacheMaxSize int
	// CacheTTL is the time-to-live for cached templates. 0 means no
	// expiration.
	CacheTTL time.Duration
	// LogLevel controls logging verbosity (debug, info, warn, error, off).
	LogLevel string
	// MaxEvalDepth bounds nested macro invocation during evaluation.
	MaxEvalDepth int
}

var (
	globalConfig      *Config
	globalConfigMutex sync.RWMutex
	configOnce        sync.Once
)

func init() {
	configOnce.Do(func() {
		globalConfig = ConfigFromEnvironment()
	})
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		CacheMaxSize: 100,
		CacheTTL:     0,
		LogLevel:     "info",
		MaxEvalDepth: 100,
	}
}

// ConfigFromEnvironment builds a configuration from VELO_* environment
// variables, falling back to defaults for anything unset or malformed.
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()

	if val := os.Getenv("VELO_CACHE_MAX_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			config.CacheMaxSize = size
		}
	}

	if val := os.Getenv("VELO_CACHE_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.CacheTTL = duration
		}
	}

	if val := os.Getenv("VELO_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	if val := os.Getenv("VELO_MAX_EVAL_DEPTH"); val != "" {
		if depth, err := strconv.Atoi(val); err == nil {
			config.MaxEvalDepth = depth
		}
	}

	return config
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.CacheMaxSize < 0 {
		return errors.New("cache max size cannot be negative")
	}

	if c.CacheTTL < 0 {
		return errors.New("cache TTL cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"off":   true,
	}

	if !validLogLevels[c.LogLevel] {
		return errors.New("invalid log level: " + c.LogLevel)
	}

	if c.MaxEvalDepth <= 0 {
		return errors.New("max eval depth must be positive")
	}

	return nil
}

// GetGlobalConfig returns a copy of the global configuration. Before
// the global is populated (package variable initializers run ahead of
// init, so DefaultEngine observes this window) it falls back to the
// environment-derived configuration.
func GetGlobalConfig() *Config {
	globalConfigMutex.RLock()
	defer globalConfigMutex.RUnlock()

	if globalConfig == nil {
		return ConfigFromEnvironment()
	}

	configCopy := *globalConfig
	return &configCopy
}

// SetGlobalConfig replaces the global configuration.
func SetGlobalConfig(config *Config) {
	globalConfigMutex.Lock()
	globalConfig = config
	globalConfigMutex.Unlock()

	// Update the logger outside the lock to avoid deadlock.
	UpdateLoggerFromConfig()
}
