package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
)

const (
	// anthropicAPIVersion is the Anthropic API version header value.
	anthropicAPIVersion = "2023-06-01"

	defaultAnthropicBaseURL   = "https://api.anthropic.com"
	defaultAnthropicModel     = "claude-3-5-haiku-latest"
	defaultAnthropicMaxTokens = 2048
)

type messagesRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicErrorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// AnthropicConfig holds the parameters needed to create an Anthropic provider.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key.
	APIKey string
	// Model is the model identifier.
	Model string
	// BaseURL is the API base URL.
	BaseURL string
}

// AnthropicProvider implements Chatter using the Anthropic Messages API.
type AnthropicProvider struct {
	httpClient     *http.Client
	apiKey         string
	model          string
	baseURL        string
	temperature    float64
	maxRetries     int
	retryDelay     time.Duration
	maxCorpusBytes int
}

// NewAnthropicProvider creates a new AnthropicProvider with the given configuration.
func NewAnthropicProvider(cfg AnthropicConfig, opts Options) *AnthropicProvider {
	opts.applyDefaults()

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	return &AnthropicProvider{
		httpClient:     newProviderHTTPClient(opts.Timeout),
		apiKey:         cfg.APIKey,
		model:          model,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		temperature:    opts.Temperature,
		maxRetries:     opts.MaxRetries,
		retryDelay:     time.Second,
		maxCorpusBytes: opts.MaxCorpusBytes,
	}
}

// Chat sends the corpus and question as a single user turn with the
// instructions in the system prompt.
func (p *AnthropicProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	system, user, truncated := BuildPrompt(req, p.maxCorpusBytes)

	apiReq := messagesRequest{
		Model:       p.model,
		MaxTokens:   defaultAnthropicMaxTokens,
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: user}},
		Temperature: p.temperature,
	}

	resp, err := withRetries(ctx, "anthropic", p.maxRetries, p.retryDelay, func() (*messagesResponse, error) {
		return p.sendRequest(ctx, apiReq)
	})
	if err != nil {
		return nil, err
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("anthropic: response contains no text content blocks")
	}

	return &ChatResponse{
		Answer:       strings.Join(parts, "\n"),
		Model:        resp.Model,
		Truncated:    truncated,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// Provider returns the provider name.
func (p *AnthropicProvider) Provider() string {
	return "anthropic"
}

// Model returns the model identifier being used.
func (p *AnthropicProvider) Model() string {
	return p.model
}

func (p *AnthropicProvider) sendRequest(ctx context.Context, apiReq messagesRequest) (*messagesResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{Provider: "anthropic", Message: fmt.Sprintf("request failed: %v", err), Type: "network_error"}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return nil, &APIError{Provider: "anthropic", Message: fmt.Sprintf("failed to read response body: %v", err), Type: "network_error"}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseAnthropicAPIError(httpResp.StatusCode, respBody)
	}

	var resp messagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("anthropic: failed to unmarshal response: %w", err)
	}
	return &resp, nil
}

func parseAnthropicAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   "anthropic",
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp anthropicErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
	}
	return apiErr
}
