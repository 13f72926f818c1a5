package usecase

import (
	"strings"
	"unicode/utf8"
)

// transcript holds the feedback text under a hard character budget.
// It is owned by the dictation loop and is not safe for concurrent use.
type transcript struct {
	text  string
	limit int
}

func newTranscript(limit int) *transcript {
	return &transcript{limit: limit}
}

func (t *transcript) String() string {
	return t.text
}

// Len counts characters, not bytes.
func (t *transcript) Len() int {
	return utf8.RuneCountInString(t.text)
}

// setTyped replaces the text with a typed edit. Edits over the limit are
// rejected and leave the text unchanged.
func (t *transcript) setTyped(text string) bool {
	if utf8.RuneCountInString(text) > t.limit {
		return false
	}
	t.text = text
	return true
}

// appendDictated merges a finalized utterance, separating it from existing
// text with one space. Overflow past the limit is cut off; text accepted
// earlier is never dropped.
func (t *transcript) appendDictated(utterance string) (changed bool, truncated bool) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return false, false
	}

	merged := t.text
	if merged != "" {
		merged += " "
	}
	merged = strings.TrimSpace(merged + utterance)

	if utf8.RuneCountInString(merged) > t.limit {
		merged = truncateRunes(merged, t.limit)
		truncated = true
	}

	changed = merged != t.text
	t.text = merged
	return changed, truncated
}

func (t *transcript) clear() {
	t.text = ""
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
