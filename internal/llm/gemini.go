package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/helixir/openalex-analyzer/internal/domain"
)

const (
	defaultGeminiModel      = "gemini-2.0-flash"
	defaultGeminiRetryDelay = 2 * time.Second

	// GeminiKeyName is the credential the Gemini provider requires.
	GeminiKeyName = "GEMINI_API_KEY"
)

// generator is the subset of *genai.Models used by the provider.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig holds the parameters needed to create a Gemini provider.
type GeminiConfig struct {
	// APIKey is the Gemini API key.
	APIKey string
	// Model is the model identifier.
	Model string
}

// GeminiProvider implements Chatter using the Gemini API.
type GeminiProvider struct {
	models         generator
	model          string
	temperature    float32
	maxRetries     int
	retryDelay     time.Duration
	maxCorpusBytes int
}

// NewGeminiProvider creates a Gemini provider. A missing API key is reported
// as a MissingCredentialError before any client is built.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig, opts Options) (*GeminiProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, domain.NewMissingCredentialError(GeminiKeyName)
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newGeminiProvider(cli.Models, cfg.Model, opts), nil
}

func newGeminiProvider(models generator, model string, opts Options) *GeminiProvider {
	opts.applyDefaults()
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{
		models:         models,
		model:          model,
		temperature:    float32(opts.Temperature),
		maxRetries:     opts.MaxRetries,
		retryDelay:     defaultGeminiRetryDelay,
		maxCorpusBytes: opts.MaxCorpusBytes,
	}
}

// Chat sends the corpus and question as one user turn with the instructions
// as the system instruction.
func (p *GeminiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	system, user, truncated := BuildPrompt(req, p.maxCorpusBytes)

	temperature := p.temperature
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		Temperature:       &temperature,
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: user}}}}

	resp, err := withRetries(ctx, "gemini", p.maxRetries, p.retryDelay, func() (*genai.GenerateContentResponse, error) {
		resp, err := p.models.GenerateContent(ctx, p.model, contents, cfg)
		if err != nil {
			return nil, wrapGeminiError(err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	answer := geminiText(resp)
	if answer == "" {
		return nil, fmt.Errorf("gemini: response contains no text")
	}

	out := &ChatResponse{
		Answer:    answer,
		Model:     p.model,
		Truncated: truncated,
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

// Provider returns the provider name.
func (p *GeminiProvider) Provider() string {
	return "gemini"
}

// Model returns the model identifier being used.
func (p *GeminiProvider) Model() string {
	return p.model
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var parts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			parts = append(parts, part.Text)
		}
	}
	return strings.Join(parts, "")
}

// wrapGeminiError maps genai API errors onto APIError so the retry loop can
// classify them. Other errors are returned wrapped and are not retried.
func wrapGeminiError(err error) error {
	var gerr genai.APIError
	if errors.As(err, &gerr) {
		return &APIError{
			Provider:   "gemini",
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			Type:       gerr.Status,
		}
	}
	return fmt.Errorf("gemini: %w", err)
}
