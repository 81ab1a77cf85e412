package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// Gemini refines through the Gemini API.
type Gemini struct {
	client *genai.Client // nil when no API key is configured
	model  string
	opts   Options
	log    *zap.Logger
}

func NewGemini(ctx context.Context, opts Options) (*Gemini, error) {
	opts.withDefaults()
	if opts.Model == "" {
		opts.Model = defaultGeminiModel
	}
	g := &Gemini{model: opts.Model, opts: opts, log: opts.Logger}
	if opts.APIKey == "" {
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *Gemini) Refine(ctx context.Context, content string, history []Turn) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrNotConfigured)
	}
	ctx, cancel := withTimeout(ctx, g.opts.Timeout)
	defer cancel()

	var contents []*genai.Content
	for _, t := range conversation(content, history) {
		role := genai.Role(genai.RoleUser)
		if t.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Content, role))
	}

	temp := float32(*g.opts.Temperature)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		Temperature:       &temp,
		MaxOutputTokens:   int32(g.opts.MaxTokens),
	}

	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		g.log.Warn("gemini request failed", zap.String("model", g.model), zap.Error(err))
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := strings.TrimSpace(res.Text())
	if text == "" {
		return "", errors.New("gemini returned empty text")
	}
	return text, nil
}
