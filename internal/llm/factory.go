package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/helixir/openalex-analyzer/internal/domain"
)

// Supported provider names.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	defaultTimeout     = 120 * time.Second
	defaultTemperature = 0.2
)

// Options are the settings shared by every provider.
type Options struct {
	// Temperature is the sampling temperature. Zero means the default.
	Temperature float64
	// Timeout is the timeout for one API call.
	Timeout time.Duration
	// MaxRetries is the maximum number of retries for transient failures.
	MaxRetries int
	// MaxCorpusBytes bounds the corpus sent per request.
	MaxCorpusBytes int
}

func (o *Options) applyDefaults() {
	if o.Temperature <= 0 {
		o.Temperature = defaultTemperature
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.MaxCorpusBytes <= 0 {
		o.MaxCorpusBytes = DefaultMaxCorpusBytes
	}
}

func newProviderHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// FactoryConfig holds the parameters needed to create a Chatter.
// This is defined in the llm package to avoid importing the config package,
// keeping the llm package free of infrastructure dependencies.
type FactoryConfig struct {
	// Provider is the LLM provider name ("gemini", "openai" or "anthropic").
	Provider string
	// Options apply to whichever provider is chosen.
	Options Options
	// Gemini contains Gemini-specific settings.
	Gemini GeminiConfig
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig
}

// NewChatter creates a Chatter for the configured provider. An empty provider
// selects Gemini. A missing API key returns a MissingCredentialError.
func NewChatter(ctx context.Context, cfg FactoryConfig) (Chatter, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderGemini
	}

	switch provider {
	case ProviderGemini:
		return NewGeminiProvider(ctx, cfg.Gemini, cfg.Options)
	case ProviderOpenAI:
		if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
			return nil, domain.NewMissingCredentialError("OPENAI_API_KEY")
		}
		return NewOpenAIProvider(cfg.OpenAI, cfg.Options), nil
	case ProviderAnthropic:
		if strings.TrimSpace(cfg.Anthropic.APIKey) == "" {
			return nil, domain.NewMissingCredentialError("ANTHROPIC_API_KEY")
		}
		return NewAnthropicProvider(cfg.Anthropic, cfg.Options), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
