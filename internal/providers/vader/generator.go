// Package vader is an offline ports.TextGenerator that scores polarity with
// the VADER lexicon and answers in the same JSON shape a model would.
package vader

import (
	"context"
	"encoding/json"
	"html"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/russross/blackfriday/v2"

	"esie/internal/domain"
	"esie/internal/ports"
)

// DefaultThreshold is the compound score magnitude treated as non-neutral.
const DefaultThreshold = 0.20

var (
	linkPattern = regexp.MustCompile(`\[(.*?)\]\((https?://[^\s)]+)\)`)
	urlPattern  = regexp.MustCompile(`https?://\S+|www\.\S+`)
	tagPattern  = regexp.MustCompile(`<[^>]*>`)
)

// Generator classifies the raw feedback and ignores the prompt.
type Generator struct {
	analyzer  *govader.SentimentIntensityAnalyzer
	threshold float64
}

func NewGenerator(threshold float64) *Generator {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	return &Generator{analyzer: govader.NewSentimentIntensityAnalyzer(), threshold: threshold}
}

func (g *Generator) Name() string {
	return "vader"
}

type response struct {
	Sentiment domain.SentimentPolarity `json:"sentiment"`
	Themes    []string                 `json:"themes"`
	Emotions  []string                 `json:"emotions"`
}

func (g *Generator) GenerateJSON(ctx context.Context, req ports.GenerationRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	score := g.analyzer.PolarityScores(PlainText(req.Input)).Compound
	out, err := json.Marshal(response{
		Sentiment: g.label(score),
		Themes:    []string{},
		Emotions:  []string{},
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (g *Generator) label(score float64) domain.SentimentPolarity {
	switch {
	case score >= g.threshold:
		return domain.SentimentPositive
	case score <= -g.threshold:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

// PlainText renders markdown, drops markup and links, and collapses whitespace.
func PlainText(input string) string {
	rendered := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	text := html.UnescapeString(tagPattern.ReplaceAllString(string(rendered), " "))
	text = linkPattern.ReplaceAllString(text, "$1")
	text = urlPattern.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}
