// Package gemini implements ports.TextGenerator on the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"esie/internal/ports"
)

const DefaultModel = "gemini-2.5-flash"

var (
	ErrMissingAPIKey = errors.New("gemini API key is not configured")
	ErrEmptyResponse = errors.New("gemini returned an empty response")
)

// Config controls the Gemini client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// Timeout bounds one generation call. Zero leaves it to the caller's context.
	Timeout time.Duration
}

// Generator requests JSON-typed completions from a Gemini model.
type Generator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGenerator binds the credential. It returns ErrMissingAPIKey when the
// key is blank so callers can treat that as a configuration state.
func NewGenerator(ctx context.Context, cfg Config) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Generator{client: client, model: cfg.Model, timeout: cfg.Timeout}, nil
}

func (g *Generator) Name() string {
	return "gemini:" + g.model
}

// GenerateJSON sends one generateContent request in JSON response mode.
func (g *Generator) GenerateJSON(ctx context.Context, req ports.GenerationRequest) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
