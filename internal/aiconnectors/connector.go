package aiconnectors

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// Provider represents an AI provider type
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderClaude Provider = "claude"
	ProviderOllama Provider = "ollama"
)

// ModelConfig contains the configuration for a specific model
type ModelConfig struct {
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	Model       string  `json:"model,omitempty"`
}

// ConnectorOptions contains options for creating a connector
type ConnectorOptions struct {
	Provider    Provider    `json:"provider"`
	APIKey      string      `json:"api_key"`
	BaseURL     string      `json:"base_url,omitempty"`
	ModelConfig ModelConfig `json:"model_config,omitempty"`
	// RateLimit is the sustained number of calls per second; 0 disables limiting
	RateLimit float64 `json:"rate_limit,omitempty"`
	Burst     int     `json:"burst,omitempty"`
}

// Connector represents a connection to an AI provider. It is safe for
// concurrent use.
type Connector struct {
	provider Provider
	llm      llms.Model
	options  ConnectorOptions
	limiter  *rate.Limiter
}

// NewConnector creates a new connector for the specified provider
func NewConnector(ctx context.Context, options ConnectorOptions) (*Connector, error) {
	var model llms.Model
	var err error

	log.Debug().
		Str("provider", string(options.Provider)).
		Str("model", options.ModelConfig.Model).
		Float64("rate_limit", options.RateLimit).
		Msg("Creating new connector")

	switch options.Provider {
	case ProviderOpenAI:
		model, err = createOpenAIModel(options)
	case ProviderGemini:
		model, err = createGeminiModel(ctx, options)
	case ProviderClaude:
		model, err = createAnthropicModel(options)
	case ProviderOllama:
		model, err = createOllamaModel(options)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", options.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create model for provider %s: %w", options.Provider, err)
	}

	return newConnector(model, options), nil
}

// NewConnectorWithModel wraps an existing langchaingo model
func NewConnectorWithModel(model llms.Model, options ConnectorOptions) *Connector {
	return newConnector(model, options)
}

func newConnector(model llms.Model, options ConnectorOptions) *Connector {
	c := &Connector{
		provider: options.Provider,
		llm:      model,
		options:  options,
	}
	if options.RateLimit > 0 {
		burst := options.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(options.RateLimit), burst)
	}
	return c
}

func createOpenAIModel(options ConnectorOptions) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(options.ModelConfig.Model),
		openai.WithToken(options.APIKey),
	}

	if options.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(options.BaseURL))
	}

	return openai.New(opts...)
}

func createGeminiModel(ctx context.Context, options ConnectorOptions) (llms.Model, error) {
	opts := []googleai.Option{
		googleai.WithAPIKey(options.APIKey),
	}
	if options.ModelConfig.Model != "" {
		opts = append(opts, googleai.WithDefaultModel(options.ModelConfig.Model))
	}

	model, err := googleai.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini model: %w", err)
	}
	return model, nil
}

func createAnthropicModel(options ConnectorOptions) (llms.Model, error) {
	opts := []anthropic.Option{
		anthropic.WithToken(options.APIKey),
		anthropic.WithModel(options.ModelConfig.Model),
	}
	if options.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(options.BaseURL))
	}

	return anthropic.New(opts...)
}

func createOllamaModel(options ConnectorOptions) (llms.Model, error) {
	if options.BaseURL == "" {
		options.BaseURL = "http://localhost:11434"
	}

	return ollama.New(
		ollama.WithServerURL(options.BaseURL),
		ollama.WithModel(options.ModelConfig.Model),
	)
}

// callOptions merges the connector defaults with a per-call temperature
func (c *Connector) callOptions(temperature float64, extra ...llms.CallOption) []llms.CallOption {
	opts := []llms.CallOption{
		llms.WithTemperature(temperature),
	}
	if c.options.ModelConfig.Model != "" {
		opts = append(opts, llms.WithModel(c.options.ModelConfig.Model))
	}
	if c.options.ModelConfig.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.options.ModelConfig.MaxTokens))
	}
	if c.options.ModelConfig.TopP > 0 {
		opts = append(opts, llms.WithTopP(c.options.ModelConfig.TopP))
	}
	return append(opts, extra...)
}

func (c *Connector) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

func (c *Connector) generate(ctx context.Context, kind string, messages []llms.MessageContent, opts []llms.CallOption) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		log.Error().Err(err).
			Str("provider", string(c.provider)).
			Str("kind", kind).
			Dur("elapsed", time.Since(start)).
			Msg("Model call failed")
		return "", fmt.Errorf("%s call to %s failed: %w", kind, c.provider, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		log.Debug().
			Str("provider", string(c.provider)).
			Str("kind", kind).
			Dur("elapsed", time.Since(start)).
			Msg("Model returned no content")
		return "", nil
	}

	log.Debug().
		Str("provider", string(c.provider)).
		Str("kind", kind).
		Dur("elapsed", time.Since(start)).
		Int("content_bytes", len(resp.Choices[0].Content)).
		Msg("Model call completed")
	return resp.Choices[0].Content, nil
}

// DescribeImage sends one image URL with an instruction to a vision-capable
// model and returns the text answer.
func (c *Connector) DescribeImage(ctx context.Context, instruction, imageURL string, temperature float64) (string, error) {
	messages := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(instruction),
				llms.ImageURLPart(imageURL),
			},
		},
	}
	return c.generate(ctx, "vision", messages, c.callOptions(temperature))
}

// GenerateJSON sends a prompt in structured-output mode and returns the raw
// content without parsing it.
func (c *Connector) GenerateJSON(ctx context.Context, prompt string, temperature float64) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	return c.generate(ctx, "generation", messages, c.callOptions(temperature, llms.WithJSONMode()))
}

// GetProvider returns the provider of this connector
func (c *Connector) GetProvider() Provider {
	return c.provider
}

// GetModel returns the model name from the config
func (c *Connector) GetModel() string {
	return c.options.ModelConfig.Model
}
