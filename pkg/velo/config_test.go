package velo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, 100, c.CacheMaxSize)
	assert.Equal(t, time.Duration(0), c.CacheTTL)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 100, c.MaxEvalDepth)
	assert.NoError(t, c.Validate())
}

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv("VELO_CACHE_MAX_SIZE", "5")
	t.Setenv("VELO_CACHE_TTL", "30s")
	t.Setenv("VELO_LOG_LEVEL", "debug")
	t.Setenv("VELO_MAX_EVAL_DEPTH", "7")

	c := ConfigFromEnvironment()
	assert.Equal(t, 5, c.CacheMaxSize)
	assert.Equal(t, 30*time.Second, c.CacheTTL)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 7, c.MaxEvalDepth)
}

func TestConfigFromEnvironmentIgnoresMalformed(t *testing.T) {
	t.Setenv("VELO_CACHE_MAX_SIZE", "lots")
	t.Setenv("VELO_CACHE_TTL", "soon")
	t.Setenv("VELO_MAX_EVAL_DEPTH", "")

	c := ConfigFromEnvironment()
	assert.Equal(t, 100, c.CacheMaxSize)
	assert.Equal(t, time.Duration(0), c.CacheTTL)
	assert.Equal(t, 100, c.MaxEvalDepth)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "default is valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "negative cache size",
			mutate:  func(c *Config) { c.CacheMaxSize = -1 },
			wantErr: "cache max size cannot be negative",
		},
		{
			name:    "negative TTL",
			mutate:  func(c *Config) { c.CacheTTL = -time.Second },
			wantErr: "cache TTL cannot be negative",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.LogLevel = "chatty" },
			wantErr: "invalid log level",
		},
		{
			name:    "zero eval depth",
			mutate:  func(c *Config) { c.MaxEvalDepth = 0 },
			wantErr: "max eval depth must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewBeforeGlobalConfigReadsEnvironment(t *testing.T) {
	// Package variable initializers (DefaultEngine among them) run
	// before init populates the global config; engines built in that
	// window must still see VELO_* settings.
	t.Setenv("VELO_CACHE_MAX_SIZE", "3")

	globalConfigMutex.Lock()
	saved := globalConfig
	globalConfig = nil
	globalConfigMutex.Unlock()
	defer func() {
		globalConfigMutex.Lock()
		globalConfig = saved
		globalConfigMutex.Unlock()
	}()

	assert.Equal(t, 3, New().Config().CacheMaxSize)
}

func TestGlobalConfigReturnsCopy(t *testing.T) {
	c := GetGlobalConfig()
	c.CacheMaxSize = -999
	assert.NotEqual(t, -999, GetGlobalConfig().CacheMaxSize)
}

func TestMaxEvalDepthBoundsRecursion(t *testing.T) {
	engine := NewWithConfig(&Config{CacheMaxSize: 0, LogLevel: "info", MaxEvalDepth: 3})
	tmpl, err := engine.ParseString("#macro(down $n)#if($n > 0)#down($n - 1)#end#end#down(10)", "deep")
	assert.NoError(t, err)

	_, err = tmpl.Evaluate(nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "evaluation depth 3 exceeded")

	_, err = tmpl.Evaluate(nil)
	assert.Error(t, err, "depth counter resets between evaluations")
}
