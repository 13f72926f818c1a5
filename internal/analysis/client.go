// Package analysis turns feedback text into a normalized sentiment result
// using an external JSON-mode text generator.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"esie/internal/domain"
	"esie/internal/logging"
	"esie/internal/ports"
)

// MaxThemes bounds the number of themes kept from a model response.
const MaxThemes = 5

const (
	notConfiguredMessage = "Error: API Key not configured."
	failureMessage       = "Failed to analyze sentiment."
)

// Client analyzes feedback with a bound generator. A Client built with a nil
// generator is valid and reports the missing credential on every call.
type Client struct {
	generator ports.TextGenerator
	logger    *slog.Logger
}

func NewClient(generator ports.TextGenerator, logger *slog.Logger) *Client {
	return &Client{generator: generator, logger: logging.OrDefault(logger)}
}

// Configured reports whether a generator is bound.
func (c *Client) Configured() bool {
	return c.generator != nil
}

// Analyze classifies text. It always returns a result whose OriginalText is
// text, converting every failure into an Unknown result.
func (c *Client) Analyze(ctx context.Context, text string) (result domain.SentimentAnalysisResult) {
	if c.generator == nil {
		return domain.SentimentAnalysisResult{
			Sentiment:    domain.SentimentUnknown,
			Themes:       []string{},
			Emotions:     []string{notConfiguredMessage},
			OriginalText: text,
		}
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("sentiment generator panicked", slog.Any("panic", r))
			result = failureResult(text, fmt.Errorf("%v", r))
		}
	}()

	raw, err := c.generator.GenerateJSON(ctx, ports.GenerationRequest{
		Prompt: BuildPrompt(text),
		Input:  text,
	})
	if err != nil {
		c.logger.Error("error analyzing sentiment",
			slog.String("generator", c.generator.Name()),
			slog.Any("error", err))
		return failureResult(text, err)
	}

	result, err = c.normalize(raw, text)
	if err != nil {
		c.logger.Error("error parsing sentiment response",
			slog.String("generator", c.generator.Name()),
			slog.Any("error", err))
		return failureResult(text, err)
	}
	return result
}

// modelPayload mirrors the JSON object the prompt asks for. Sentiment is
// left untyped so an unexpected value downgrades instead of failing decode.
type modelPayload struct {
	Sentiment any      `json:"sentiment"`
	Themes    []string `json:"themes"`
	Emotions  []string `json:"emotions"`
}

func (c *Client) normalize(raw string, text string) (domain.SentimentAnalysisResult, error) {
	payload, err := decodePayload(ExtractJSON(raw))
	if err != nil {
		return domain.SentimentAnalysisResult{}, err
	}

	sentiment := domain.SentimentUnknown
	if value, ok := payload.Sentiment.(string); ok {
		if parsed, valid := domain.ParsePolarity(value); valid {
			sentiment = parsed
		}
	}
	if sentiment == domain.SentimentUnknown && payload.Sentiment != string(domain.SentimentUnknown) {
		c.logger.Warn("received unknown sentiment value, defaulting to Unknown",
			slog.Any("sentiment", payload.Sentiment))
	}

	themes := payload.Themes
	if themes == nil {
		themes = []string{}
	}
	if len(themes) > MaxThemes {
		c.logger.Debug("truncating themes", slog.Int("received", len(themes)), slog.Int("kept", MaxThemes))
		themes = themes[:MaxThemes]
	}
	emotions := payload.Emotions
	if emotions == nil {
		emotions = []string{}
	}

	return domain.SentimentAnalysisResult{
		Sentiment:    sentiment,
		Themes:       themes,
		Emotions:     emotions,
		OriginalText: text,
	}, nil
}

var errNotObject = errors.New("response is not a JSON object")

func decodePayload(payload string) (modelPayload, error) {
	var probe any
	if err := json.Unmarshal([]byte(payload), &probe); err != nil {
		return modelPayload{}, fmt.Errorf("invalid JSON response: %w", err)
	}
	if _, ok := probe.(map[string]any); !ok {
		return modelPayload{}, errNotObject
	}

	var parsed modelPayload
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return modelPayload{}, fmt.Errorf("unexpected response shape: %w", err)
	}
	return parsed, nil
}

func failureResult(text string, err error) domain.SentimentAnalysisResult {
	message := failureMessage
	if err != nil && err.Error() != "" {
		message += " Details: " + err.Error()
	}
	return domain.SentimentAnalysisResult{
		Sentiment:    domain.SentimentUnknown,
		Themes:       []string{},
		Emotions:     []string{message},
		OriginalText: text,
	}
}
