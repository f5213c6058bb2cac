package velo

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Engine is the main entry point for parsing templates. Use New() or
// NewWithOptions() to create one; the zero value is not usable.
type Engine struct {
	config   *Config
	cache    *TemplateCache
	resolver ResourceResolver
}

// New creates an engine with the global configuration.
func New() *Engine {
	config := GetGlobalConfig()
	return &Engine{
		config: config,
		cache:  NewTemplateCacheWithConfig(CacheConfig{MaxSize: config.CacheMaxSize, TTL: config.CacheTTL}),
	}
}

// NewWithConfig creates an engine with a custom configuration.
func NewWithConfig(config *Config) *Engine {
	return &Engine{
		config: config,
		cache:  NewTemplateCacheWithConfig(CacheConfig{MaxSize: config.CacheMaxSize, TTL: config.CacheTTL}),
	}
}

// Option configures an engine created by NewWithOptions.
type Option func(*Engine)

// WithConfig sets the engine configuration.
func WithConfig(config *Config) Option {
	return func(e *Engine) {
		e.config = config
	}
}

// WithResolver sets the resolver used for #parse directives.
func WithResolver(resolver ResourceResolver) Option {
	return func(e *Engine) {
		e.resolver = resolver
	}
}

// WithCache sets the template cache size. 0 disables caching.
func WithCache(maxSize int) Option {
	return func(e *Engine) {
		e.config.CacheMaxSize = maxSize
	}
}

// NewWithOptions creates an engine with the specified options applied
// over the global configuration.
func NewWithOptions(opts ...Option) *Engine {
	engine := New()
	for _, opt := range opts {
		opt(engine)
	}
	engine.cache = NewTemplateCacheWithConfig(CacheConfig{
		MaxSize: engine.config.CacheMaxSize,
		TTL:     engine.config.CacheTTL,
	})
	return engine
}

// ParseString parses template source held in a string. name labels the
// template in errors and logs.
func (e *Engine) ParseString(src, name string) (*Template, error) {
	return parseTemplate(src, name, e.resolver, e.maxEvalDepth())
}

// Parse reads all of r and parses it as a template.
func (e *Engine) Parse(r io.Reader, name string) (*Template, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", name, err)
	}
	return e.ParseString(string(data), name)
}

// ParseFile parses the template at path, consulting the cache first.
// When the engine has no resolver configured, #parse resources resolve
// against the template's own directory.
func (e *Engine) ParseFile(path string) (*Template, error) {
	return e.cache.GetOrParse(path, func() (*Template, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read template file: %w", err)
		}
		resolver := e.resolver
		if resolver == nil {
			resolver = FileResolver(filepath.Dir(path))
		}
		return parseTemplate(string(data), filepath.Base(path), resolver, e.maxEvalDepth())
	})
}

// RenderString parses src and evaluates it against vars in one step.
func (e *Engine) RenderString(src string, vars map[string]any) (string, error) {
	t, err := e.ParseString(src, "inline")
	if err != nil {
		return "", err
	}
	return t.Evaluate(vars)
}

// Config returns the engine's configuration.
func (e *Engine) Config() *Config {
	return e.config
}

// ClearCache removes all templates from the engine's cache.
func (e *Engine) ClearCache() {
	if e.cache != nil {
		e.cache.Clear()
	}
}

func (e *Engine) maxEvalDepth() int {
	if e.config != nil && e.config.MaxEvalDepth > 0 {
		return e.config.MaxEvalDepth
	}
	return DefaultConfig().MaxEvalDepth
}

// DefaultEngine is the global default engine instance.
var DefaultEngine = New()

// Module-level convenience functions that use the default engine.

// ParseString parses template source using the default engine.
func ParseString(src, name string) (*Template, error) {
	return DefaultEngine.ParseString(src, name)
}

// Parse reads and parses a template using the default engine.
func Parse(r io.Reader, name string) (*Template, error) {
	return DefaultEngine.Parse(r, name)
}

// ParseFile parses a template file using the default engine.
func ParseFile(path string) (*Template, error) {
	return DefaultEngine.ParseFile(path)
}

// RenderString parses and evaluates src using the default engine.
func RenderString(src string, vars map[string]any) (string, error) {
	return DefaultEngine.RenderString(src, vars)
}
