package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o"

	// Extraction wants determinism over creativity.
	openAITemperature = 0.1
	openAIMaxTokens   = 1000
)

// OpenAIConfig holds configuration for the OpenAI vision client.
type OpenAIConfig struct {
	APIKey     string
	Model      string        // "gpt-4o" (default)
	RateLimit  float64       // Requests per minute
	MaxRetries int           // Retry attempts on transient failures
	RetryDelay time.Duration // Base retry delay
	Timeout    time.Duration // HTTP timeout
	BaseURL    string        // Optional (tests)
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAIExtractor implements Extractor using the official OpenAI SDK.
type OpenAIExtractor struct {
	apiKey     string
	model      string
	rateLimit  float64
	maxRetries int
	retryDelay time.Duration
	limiter    *RateLimiter
	client     openai.Client
}

// NewOpenAIExtractor creates a new OpenAI vision client.
func NewOpenAIExtractor(cfg OpenAIConfig) *OpenAIExtractor {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 60
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0), // retries handled here, around the limiter
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIExtractor{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		rateLimit:  cfg.RateLimit,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		limiter:    NewRateLimiter(cfg.RateLimit),
		client:     openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIExtractor) Name() string { return OpenAIName }

// Model returns the configured model name.
func (c *OpenAIExtractor) Model() string { return c.model }

// ExtractEnvelope sends one photo through the chat completions vision API
// and returns the model's raw text. Transient failures and 429s are retried
// with backoff; each attempt consumes a rate limiter token.
func (c *OpenAIExtractor) ExtractEnvelope(ctx context.Context, imageJPEG []byte) (string, error) {
	if len(imageJPEG) == 0 {
		return "", fmt.Errorf("image is required")
	}

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageJPEG)
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(envelopePrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL:    dataURL,
					Detail: "high",
				}),
			}),
		},
		MaxTokens:   openai.Int(openAIMaxTokens),
		Temperature: openai.Float(openAITemperature),
	}

	var content string
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := c.client.Chat.Completions.New(ctx, params)
			if err != nil {
				return c.classifyError(err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("openai returned no choices")
			}
			content = resp.Choices[0].Message.Content
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", fmt.Errorf("openai envelope extraction: %w", err)
	}
	return content, nil
}

// classifyError maps SDK errors, draining the limiter on 429s and marking
// client-side errors unrecoverable so they fail fast.
func (c *OpenAIExtractor) classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			c.limiter.Record429()
			return fmt.Errorf("openai rate limited: %s", apiErr.Message)
		case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
			return retry.Unrecoverable(fmt.Errorf("openai error (status %d): %s", apiErr.StatusCode, apiErr.Message))
		}
	}
	return err
}

var _ Extractor = (*OpenAIExtractor)(nil)
