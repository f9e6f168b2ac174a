// Package llm answers questions about a fetched corpus with a hosted
// language model.
//
// The model is an opaque text service: it receives a question and the corpus
// built from the record digests and returns free text. Providers are Gemini
// (through google.golang.org/genai), OpenAI and Anthropic. Size limits of the
// provider are applied here, at the boundary, by trimming the corpus to
// whole digests.
//
// Example usage:
//
//	chatter, err := llm.NewChatter(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	resp, err := chatter.Chat(ctx, llm.ChatRequest{
//		Question: "Which groups publish most on solid-state anodes?",
//		Corpus:   export.BuildCorpus(snapshot.Digests),
//	})
package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/helixir/openalex-analyzer/internal/domain"
)

// DefaultMaxCorpusBytes bounds the corpus sent in one request.
const DefaultMaxCorpusBytes = 1 << 20

// corpusSeparator is the digest separator line with its line breaks.
const corpusSeparator = "\n" + domain.DigestSeparator + "\n"

const systemPrompt = `You are a research assistant answering questions about a set of academic papers.
Each paper is given as a block with an ID, a title, a metadata line and an abstract; blocks are separated by lines of dashes.
Answer only from these papers. Cite the IDs of the papers you rely on. If the papers do not contain the answer, say so.`

// ChatRequest is one question about a corpus.
type ChatRequest struct {
	// Question is the user's question.
	Question string

	// Corpus is the text built from the record digests.
	Corpus string
}

// ChatResponse is the model's answer.
type ChatResponse struct {
	Answer string

	// Model is the model that produced the answer.
	Model string

	// Truncated reports whether the corpus was cut to fit the request.
	Truncated bool

	InputTokens  int
	OutputTokens int
}

// Chatter sends a question and a corpus to a language model.
type Chatter interface {
	// Chat returns the model's answer to req.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Provider returns the provider name.
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}

// BuildPrompt returns the system and user prompts for req. The corpus is cut
// to at most maxCorpusBytes, at a digest boundary when one exists.
func BuildPrompt(req ChatRequest, maxCorpusBytes int) (system, user string, truncated bool) {
	corpus, truncated := TruncateCorpus(req.Corpus, maxCorpusBytes)

	var b strings.Builder
	b.WriteString("Papers:\n\n")
	b.WriteString(corpus)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Question: %s", strings.TrimSpace(req.Question))
	return systemPrompt, b.String(), truncated
}

// TruncateCorpus cuts corpus to at most maxBytes. It prefers to end at the
// last complete digest and never splits a UTF-8 sequence. A non-positive
// maxBytes leaves the corpus untouched.
func TruncateCorpus(corpus string, maxBytes int) (string, bool) {
	if maxBytes <= 0 || len(corpus) <= maxBytes {
		return corpus, false
	}

	cut := corpus[:maxBytes]
	if i := strings.LastIndex(cut, corpusSeparator); i > 0 {
		return cut[:i], true
	}
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut, true
}

func validateRequest(req ChatRequest) error {
	if strings.TrimSpace(req.Question) == "" {
		return fmt.Errorf("question is required")
	}
	return nil
}
