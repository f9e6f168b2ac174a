package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/openalex-analyzer/internal/domain"
	"github.com/helixir/openalex-analyzer/internal/export"
	"github.com/helixir/openalex-analyzer/internal/llm"
)

// ChatMetrics receives language model measurements.
type ChatMetrics interface {
	RecordLLMRequest(provider, model string, duration time.Duration, inputTokens, outputTokens int)
	RecordLLMRequestFailed(provider, model string)
}

type nopChatMetrics struct{}

func (nopChatMetrics) RecordLLMRequest(string, string, time.Duration, int, int) {}
func (nopChatMetrics) RecordLLMRequestFailed(string, string)                    {}

// Asker answers questions about a snapshot's corpus.
type Asker struct {
	chatter llm.Chatter
	metrics ChatMetrics
	logger  zerolog.Logger
}

// NewAsker creates an Asker. A nil metrics disables measurement.
func NewAsker(chatter llm.Chatter, metrics ChatMetrics, logger zerolog.Logger) *Asker {
	if metrics == nil {
		metrics = nopChatMetrics{}
	}
	return &Asker{
		chatter: chatter,
		metrics: metrics,
		logger: logger.With().
			Str("component", "chat").
			Str("provider", chatter.Provider()).
			Str("model", chatter.Model()).
			Logger(),
	}
}

// Ask sends question and the corpus of snapshot to the chat collaborator.
// An empty snapshot yields ErrNoData without a request.
func (a *Asker) Ask(ctx context.Context, snapshot *domain.CorpusSnapshot, question string) (*llm.ChatResponse, error) {
	if snapshot.IsEmpty() {
		return nil, ErrNoData
	}

	provider, model := a.chatter.Provider(), a.chatter.Model()
	start := time.Now()
	resp, err := a.chatter.Chat(ctx, llm.ChatRequest{
		Question: question,
		Corpus:   export.BuildCorpus(snapshot.Digests),
	})
	if err != nil {
		a.metrics.RecordLLMRequestFailed(provider, model)
		return nil, fmt.Errorf("chat: %w", err)
	}
	elapsed := time.Since(start)
	a.metrics.RecordLLMRequest(provider, model, elapsed, resp.InputTokens, resp.OutputTokens)

	a.logger.Info().
		Int("records", snapshot.Len()).
		Bool("truncated", resp.Truncated).
		Int("input_tokens", resp.InputTokens).
		Int("output_tokens", resp.OutputTokens).
		Dur("duration", elapsed).
		Msg("question answered")
	return resp, nil
}
