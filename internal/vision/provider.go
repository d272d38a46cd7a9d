// Package vision turns envelope photos into raw model text using
// config-driven, hot-reloadable vision providers.
package vision

import "context"

// Extractor is a vision model that reads one medication envelope photo and
// returns the model's raw text response. Callers parse the response
// themselves; an Extractor makes no promise that the text is valid JSON.
type Extractor interface {
	// Name returns the provider identifier (e.g., "openai").
	Name() string

	// Model returns the configured model name.
	Model() string

	// ExtractEnvelope analyzes a single JPEG-encoded envelope photo.
	ExtractEnvelope(ctx context.Context, imageJPEG []byte) (string, error)
}

// ProviderConfig is one provider's settings with the API key already
// resolved from the environment.
type ProviderConfig struct {
	Type      string  // "openai"
	Model     string  // Model name (e.g., "gpt-4o")
	APIKey    string  // Resolved API key
	RateLimit float64 // Requests per minute
	Enabled   bool
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	Providers       map[string]ProviderConfig
	DefaultProvider string
}
