package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/segmentio/encoding/json"
)

// Default values for the OpenAI provider.
const (
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultOpenAIMaxTokens  = 2048
	defaultOpenAIRetryDelay = 2 * time.Second
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// OpenAIConfig holds the parameters needed to create an OpenAI provider.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the model identifier.
	Model string
	// BaseURL is the API base URL (empty means default).
	BaseURL string
}

// OpenAIProvider implements Chatter using the OpenAI Chat Completions API.
type OpenAIProvider struct {
	httpClient     *http.Client
	apiKey         string
	model          string
	baseURL        string
	temperature    float64
	maxRetries     int
	retryDelay     time.Duration
	maxCorpusBytes int
}

// NewOpenAIProvider creates a new OpenAI chat provider.
func NewOpenAIProvider(cfg OpenAIConfig, opts Options) *OpenAIProvider {
	opts.applyDefaults()

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	return &OpenAIProvider{
		httpClient:     newProviderHTTPClient(opts.Timeout),
		apiKey:         cfg.APIKey,
		model:          model,
		baseURL:        baseURL,
		temperature:    opts.Temperature,
		maxRetries:     opts.MaxRetries,
		retryDelay:     defaultOpenAIRetryDelay,
		maxCorpusBytes: opts.MaxCorpusBytes,
	}
}

// Chat sends the question and corpus as one system and one user message.
// Transient errors (5xx and 429) are retried up to maxRetries times.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	system, user, truncated := BuildPrompt(req, p.maxCorpusBytes)

	apiReq := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: p.temperature,
		MaxTokens:   defaultOpenAIMaxTokens,
	}

	resp, err := withRetries(ctx, "openai", p.maxRetries, p.retryDelay, func() (*ChatResponse, error) {
		return p.doRequest(ctx, apiReq)
	})
	if err != nil {
		return nil, err
	}
	resp.Truncated = truncated
	return resp, nil
}

// Provider returns the name of the LLM provider.
func (p *OpenAIProvider) Provider() string {
	return "openai"
}

// Model returns the model identifier being used.
func (p *OpenAIProvider) Model() string {
	return p.model
}

func (p *OpenAIProvider) doRequest(ctx context.Context, apiReq chatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("openai: failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{Provider: "openai", Message: fmt.Sprintf("request failed: %v", err), Type: "network_error"}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &APIError{Provider: "openai", Message: fmt.Sprintf("failed to read response body: %v", err), Type: "network_error"}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseOpenAIAPIError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("openai: failed to unmarshal response: %w", err)
	}
	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("openai: empty choices in response")
	}

	model := chatResp.Model
	if model == "" {
		model = p.model
	}
	return &ChatResponse{
		Answer:       chatResp.Choices[0].Message.Content,
		Model:        model,
		InputTokens:  chatResp.Usage.PromptTokens,
		OutputTokens: chatResp.Usage.CompletionTokens,
	}, nil
}

func parseOpenAIAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   "openai",
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp openAIErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
		apiErr.Code = errResp.Error.Code
	}
	return apiErr
}
