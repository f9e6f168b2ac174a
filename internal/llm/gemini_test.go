package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/helixir/openalex-analyzer/internal/domain"
)

// Compile-time check that GeminiProvider implements Chatter.
var _ Chatter = (*GeminiProvider)(nil)

type fakeGenerator struct {
	responses []*genai.GenerateContentResponse
	errs      []error

	calls    int
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	i := f.calls
	f.calls++
	f.model, f.contents, f.config = model, contents, config
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return f.responses[len(f.responses)-1], nil
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: "model"}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestGeminiProvider_Chat(t *testing.T) {
	gen := &fakeGenerator{responses: []*genai.GenerateContentResponse{textResponse("Graphene ", "wins.")}}
	p := newGeminiProvider(gen, "", Options{Temperature: 0.5})

	resp, err := p.Chat(context.Background(), ChatRequest{Question: "Which anode?", Corpus: testCorpus})
	require.NoError(t, err)

	assert.Equal(t, "Graphene wins.", resp.Answer)
	assert.Equal(t, defaultGeminiModel, resp.Model)
	assert.Equal(t, defaultGeminiModel, gen.model)

	require.Len(t, gen.contents, 1)
	assert.Contains(t, gen.contents[0].Parts[0].Text, "Question: Which anode?")
	require.NotNil(t, gen.config.SystemInstruction)
	assert.Contains(t, gen.config.SystemInstruction.Parts[0].Text, "research assistant")
	require.NotNil(t, gen.config.Temperature)
	assert.InDelta(t, 0.5, *gen.config.Temperature, 1e-6)
}

func TestGeminiProvider_Chat_EmptyCandidates(t *testing.T) {
	gen := &fakeGenerator{responses: []*genai.GenerateContentResponse{{}}}
	p := newGeminiProvider(gen, "gemini-test", Options{})

	_, err := p.Chat(context.Background(), ChatRequest{Question: "q", Corpus: testCorpus})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text")
}

func TestGeminiProvider_Chat_PlainErrorNotRetried(t *testing.T) {
	gen := &fakeGenerator{
		errs:      []error{errors.New("boom")},
		responses: []*genai.GenerateContentResponse{textResponse("late")},
	}
	p := newGeminiProvider(gen, "gemini-test", Options{MaxRetries: 3})
	p.retryDelay = time.Millisecond

	_, err := p.Chat(context.Background(), ChatRequest{Question: "q", Corpus: testCorpus})
	require.Error(t, err)
	assert.Equal(t, 1, gen.calls)
}

func TestNewGeminiProvider_MissingKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), GeminiConfig{APIKey: "  "}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestGeminiProvider_Identity(t *testing.T) {
	p := newGeminiProvider(&fakeGenerator{}, "gemini-x", Options{})
	assert.Equal(t, "gemini", p.Provider())
	assert.Equal(t, "gemini-x", p.Model())
}
