package usecase

import (
	"log/slog"
	"strings"

	"esie/internal/ports"
)

// utteranceNormalizer rewrites spoken phrases in a finalized utterance.
type utteranceNormalizer struct {
	rules  ports.RulesEngine
	logger *slog.Logger
}

func newUtteranceNormalizer(rules ports.RulesEngine, logger *slog.Logger) utteranceNormalizer {
	return utteranceNormalizer{rules: rules, logger: logger}
}

// Normalize never fails: a rules error keeps the raw utterance.
func (n utteranceNormalizer) Normalize(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" || n.rules == nil {
		return text
	}

	transformed, err := n.rules.Apply(text)
	if err != nil {
		n.logger.Warn("dictation rules failed, keeping raw utterance", slog.Any("error", err))
		return text
	}
	return strings.TrimSpace(transformed)
}
