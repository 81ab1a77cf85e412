// Package refine turns lazy prompts into structured ones with an LLM.
package refine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrNotConfigured is returned when the provider has no API key.
var ErrNotConfigured = errors.New("refiner not configured")

// Turn is one prior message of a conversation.
type Turn struct {
	Role    string // user or assistant
	Content string
}

// Refiner produces the refined prompt for content. When history is not
// empty it already ends with content as the last user turn.
type Refiner interface {
	Refine(ctx context.Context, content string, history []Turn) (string, error)
}

// SystemPrompt instructs the model to rewrite, never to answer.
const SystemPrompt = `You are a Senior Prompt Engineer. You rewrite short, vague requests into precise, information-dense prompts for large language models.

RULES:
1. Do not fulfil the request yourself.
2. Reply with the rewritten prompt only. No introduction, no commentary.
3. Infer a fitting expert role, realistic constraints and a concrete deliverable.
4. Prefer architectural and quality requirements over generic tutorial steps.
5. Use code fences only when the prompt itself needs one.

Organise the prompt around these parts, or an equivalent flow:
- PERSONA: the professional identity the model should adopt.
- OBJECTIVE: exactly what must be produced.
- CONTEXT/CONSTRAINTS: technologies (inferred if missing), rules and edge cases.
- FORMAT: the shape of the answer.

Input: "todo app react"
Output: "Act as a senior frontend architect. Build an accessible, fast todo application in React with Tailwind CSS. Manage state with the Context API, persist tasks to localStorage and keep task entry friction-free. Deliver a single-file component with clear naming and idiomatic hooks."`

const (
	DefaultTemperature = 0.6
	DefaultMaxTokens   = 2048
)

// Options selects and configures a refiner.
type Options struct {
	Provider    string // groq, gemini, mock
	APIKey      string
	Model       string
	BaseURL     string
	Temperature *float64 // nil uses DefaultTemperature
	MaxTokens   int
	Timeout     time.Duration
	Logger      *zap.Logger
}

func (o *Options) withDefaults() {
	if o.Temperature == nil {
		t := DefaultTemperature
		o.Temperature = &t
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// New builds the refiner for opts.Provider. A missing API key is not an
// error here; Refine reports ErrNotConfigured instead so the backend can
// still serve history.
func New(ctx context.Context, opts Options) (Refiner, error) {
	opts.withDefaults()
	switch opts.Provider {
	case "groq", "":
		return NewGroq(opts)
	case "gemini":
		return NewGemini(ctx, opts)
	case "mock":
		return &Mock{}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", opts.Provider)
	}
}

// withTimeout applies the refiner timeout when ctx has no deadline.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// conversation returns the turns sent to the model after the system prompt.
func conversation(content string, history []Turn) []Turn {
	if len(history) > 0 {
		return history
	}
	return []Turn{{Role: "user", Content: content}}
}
