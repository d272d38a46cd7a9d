package config

// Config holds pillscan configuration.
// Stored at: {home}/config.yaml
type Config struct {
	VisionProviders map[string]VisionProviderCfg `mapstructure:"vision_providers" yaml:"vision_providers"`
	Defaults        DefaultsCfg                  `mapstructure:"defaults" yaml:"defaults"`
	Server          ServerCfg                    `mapstructure:"server" yaml:"server"`
}

// VisionProviderCfg configures a vision extraction provider.
type VisionProviderCfg struct {
	Type      string  `mapstructure:"type" yaml:"type"`             // "openai"
	Model     string  `mapstructure:"model" yaml:"model"`           // Model name
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"`       // API key (supports ${ENV_VAR} syntax)
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default selections for scan requests.
type DefaultsCfg struct {
	VisionProvider string `mapstructure:"vision_provider" yaml:"vision_provider"` // Default vision provider
	MaxShots       int    `mapstructure:"max_shots" yaml:"max_shots"`             // Max shots accepted per scan
	MaxWorkers     int    `mapstructure:"max_workers" yaml:"max_workers"`         // Max concurrent vision calls
}

// ServerCfg holds HTTP server settings.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		VisionProviders: map[string]VisionProviderCfg{
			"openai": {
				Type:      "openai",
				Model:     "gpt-4o",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 60.0,
				Enabled:   true,
			},
		},
		Defaults: DefaultsCfg{
			VisionProvider: "openai",
			MaxShots:       9,
			MaxWorkers:     3,
		},
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
	}
}

// GetVisionProvider returns a vision provider config by name.
func (c *Config) GetVisionProvider(name string) (VisionProviderCfg, bool) {
	cfg, ok := c.VisionProviders[name]
	return cfg, ok
}

// EnabledVisionProviders returns all enabled vision providers.
func (c *Config) EnabledVisionProviders() map[string]VisionProviderCfg {
	result := make(map[string]VisionProviderCfg)
	for name, cfg := range c.VisionProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// MaxShots returns the per-scan shot cap, falling back to 9 when unset.
func (c *Config) MaxShots() int {
	if c.Defaults.MaxShots <= 0 {
		return 9
	}
	return c.Defaults.MaxShots
}

// MaxWorkers returns the concurrent vision call limit, falling back to 3.
func (c *Config) MaxWorkers() int {
	if c.Defaults.MaxWorkers <= 0 {
		return 3
	}
	return c.Defaults.MaxWorkers
}
