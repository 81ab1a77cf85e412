package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const (
	defaultGroqModel   = "llama-3.3-70b-versatile"
	defaultGroqBaseURL = "https://api.groq.com/openai/v1"
)

// Groq refines through Groq's OpenAI-compatible chat API.
type Groq struct {
	llm   llms.Model // nil when no API key is configured
	model string
	opts  Options
	log   *zap.Logger
}

func NewGroq(opts Options) (*Groq, error) {
	opts.withDefaults()
	if opts.Model == "" {
		opts.Model = defaultGroqModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultGroqBaseURL
	}
	g := &Groq{model: opts.Model, opts: opts, log: opts.Logger}
	if opts.APIKey == "" {
		return g, nil
	}

	llm, err := openai.New(
		openai.WithToken(opts.APIKey),
		openai.WithBaseURL(opts.BaseURL),
		openai.WithModel(opts.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create groq client: %w", err)
	}
	g.llm = llm
	return g, nil
}

func (g *Groq) Refine(ctx context.Context, content string, history []Turn) (string, error) {
	if g.llm == nil {
		return "", fmt.Errorf("%w: GROQ_API_KEY is not set", ErrNotConfigured)
	}
	ctx, cancel := withTimeout(ctx, g.opts.Timeout)
	defer cancel()

	msgs := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeSystem, SystemPrompt)}
	for _, t := range conversation(content, history) {
		role := llms.ChatMessageTypeHuman
		if t.Role == "assistant" {
			role = llms.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(role, t.Content))
	}

	start := time.Now()
	resp, err := g.llm.GenerateContent(ctx, msgs,
		llms.WithTemperature(*g.opts.Temperature),
		llms.WithMaxTokens(g.opts.MaxTokens),
	)
	if err != nil {
		g.log.Warn("groq request failed", zap.String("model", g.model), zap.Error(err))
		return "", fmt.Errorf("groq completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("groq returned no choices")
	}

	out := strings.TrimSpace(resp.Choices[0].Content)
	g.log.Debug("groq refined",
		zap.String("model", g.model),
		zap.Int("turns", len(msgs)-1),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}
