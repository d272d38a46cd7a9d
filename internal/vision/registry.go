package vision

import (
	"fmt"
	"log/slog"
	"sync"
)

// Registry holds the configured vision extractors. It supports config-driven
// instantiation and hot-reload, and is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	extractors  map[string]Extractor
	defaultName string
	logger      *slog.Logger
}

// NewRegistry creates a registry with providers based on configuration.
// Only enabled providers with a resolved API key are registered.
func NewRegistry(cfg RegistryConfig) *Registry {
	r := &Registry{
		extractors: make(map[string]Extractor),
		logger:     slog.Default(),
	}
	r.apply(cfg)
	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds an extractor by name, replacing any existing one.
func (r *Registry) Register(name string, e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[name] = e
	if r.defaultName == "" {
		r.defaultName = name
	}
}

// Get returns an extractor by name.
func (r *Registry) Get(name string) (Extractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[name]
	if !ok {
		return nil, fmt.Errorf("vision provider not found: %s", name)
	}
	return e, nil
}

// Default returns the configured default extractor.
func (r *Registry) Default() (Extractor, error) {
	r.mu.RLock()
	name := r.defaultName
	r.mu.RUnlock()
	if name == "" {
		return nil, fmt.Errorf("no default vision provider configured")
	}
	return r.Get(name)
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.extractors))
	for name := range r.extractors {
		names = append(names, name)
	}
	return names
}

// Reload replaces the registered providers based on new configuration.
// Providers no longer configured are dropped; changed ones are recreated.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool)
	for name, provCfg := range cfg.Providers {
		if !provCfg.Enabled || provCfg.APIKey == "" {
			continue
		}
		want[name] = true

		existing, hasExisting := r.extractors[name]
		if hasExisting && !needsUpdate(existing, provCfg) {
			continue
		}
		e := createExtractor(provCfg)
		if e == nil {
			continue
		}
		r.extractors[name] = e
		if hasExisting {
			r.logger.Info("updated vision provider", "name", name, "type", provCfg.Type, "model", provCfg.Model)
		} else {
			r.logger.Info("registered vision provider", "name", name, "type", provCfg.Type, "model", provCfg.Model)
		}
	}

	for name := range r.extractors {
		if !want[name] {
			delete(r.extractors, name)
			r.logger.Info("unregistered vision provider", "name", name)
		}
	}

	r.defaultName = cfg.DefaultProvider
}

// apply registers providers without logging (used during init).
func (r *Registry) apply(cfg RegistryConfig) {
	for name, provCfg := range cfg.Providers {
		if !provCfg.Enabled || provCfg.APIKey == "" {
			continue
		}
		if e := createExtractor(provCfg); e != nil {
			r.extractors[name] = e
		}
	}
	r.defaultName = cfg.DefaultProvider
}

// createExtractor creates an extractor based on provider type.
func createExtractor(cfg ProviderConfig) Extractor {
	switch cfg.Type {
	case "openai":
		return NewOpenAIExtractor(OpenAIConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			RateLimit: cfg.RateLimit,
		})
	default:
		return nil
	}
}

// needsUpdate checks whether a provider must be recreated for new settings.
func needsUpdate(e Extractor, cfg ProviderConfig) bool {
	switch c := e.(type) {
	case *OpenAIExtractor:
		return c.apiKey != cfg.APIKey ||
			c.model != cfg.Model ||
			c.rateLimit != cfg.RateLimit
	default:
		return true
	}
}
