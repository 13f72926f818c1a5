// Package rules applies spoken-phrase substitutions to dictated utterances,
// e.g. "comma" to "," or "new paragraph" to a blank line.
//
// A rules file holds one rule per line. Blank lines and lines starting with
// '#' are skipped.
//
//	spoken phrase => replacement        literal, case-insensitive
//	s/pattern/replacement/flags         regex; flags i, g, m, s
//
// Replacements understand the escapes \n and \t.
package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

const defaultPassLimit = 30

var ErrNoConvergence = errors.New("substitution rules did not converge")

type rule interface {
	apply(input string) (string, bool)
}

// Engine rewrites utterances until no rule changes them.
type Engine struct {
	rules     []rule
	passLimit int
}

// NewEngine loads rules from path. A blank path or a missing file yields an
// engine that returns its input unchanged.
func NewEngine(path string, passLimit int) (*Engine, error) {
	if passLimit <= 0 {
		passLimit = defaultPassLimit
	}
	if strings.TrimSpace(path) == "" {
		return &Engine{passLimit: passLimit}, nil
	}

	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Engine{passLimit: passLimit}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
	}

	engine, err := Parse(string(contents), passLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %q: %w", path, err)
	}
	return engine, nil
}

// Parse compiles rules from text.
func Parse(contents string, passLimit int) (*Engine, error) {
	if passLimit <= 0 {
		passLimit = defaultPassLimit
	}

	var compiled []rule
	for number, raw := range strings.Split(contents, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var (
			r   rule
			err error
		)
		switch {
		case isRegexRule(line):
			r, err = compileRegexRule(line)
		case strings.Contains(line, "=>"):
			r, err = compileLiteralRule(line)
		default:
			err = errors.New("unsupported rule format")
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", number+1, err)
		}
		compiled = append(compiled, r)
	}

	return &Engine{rules: compiled, passLimit: passLimit}, nil
}

// Len returns the number of compiled rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Apply runs every rule in order, repeating full passes until the text is
// stable. It fails with ErrNoConvergence when the pass limit is exhausted.
func (e *Engine) Apply(text string) (string, error) {
	if len(e.rules) == 0 {
		return text, nil
	}

	current := text
	for pass := 0; pass < e.passLimit; pass++ {
		dirty := false
		for _, r := range e.rules {
			if next, changed := r.apply(current); changed {
				current = next
				dirty = true
			}
		}
		if !dirty {
			return current, nil
		}
	}
	return "", fmt.Errorf("%w after %d passes", ErrNoConvergence, e.passLimit)
}

type literalRule struct {
	re          *regexp.Regexp
	replacement string
}

func compileLiteralRule(line string) (rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, errors.New("literal rule source cannot be empty")
	}
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(from))
	if err != nil {
		return nil, fmt.Errorf("invalid literal source: %w", err)
	}
	return literalRule{re: re, replacement: unescape(strings.TrimSpace(to))}, nil
}

func (r literalRule) apply(input string) (string, bool) {
	output := r.re.ReplaceAllLiteralString(input, r.replacement)
	return output, output != input
}

type regexRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

// isRegexRule recognizes sed-style rules: 's' followed by a punctuation delimiter.
func isRegexRule(line string) bool {
	return len(line) > 2 && line[0] == 's' && isDelimiter(line[1])
}

func compileRegexRule(line string) (rule, error) {
	delim := line[1]
	parts, rest, err := splitDelimited(line[2:], delim, 2)
	if err != nil {
		return nil, err
	}

	flags := "i"
	global := false
	for _, flag := range strings.TrimSpace(rest) {
		switch flag {
		case 'g':
			global = true
		case 'i':
		case 'm', 's':
			flags += string(flag)
		case ' ':
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + flags + ")" + parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return regexRule{re: re, replacement: unescape(parts[1]), global: global}, nil
}

func (r regexRule) apply(input string) (string, bool) {
	if r.global {
		output := r.re.ReplaceAllString(input, r.replacement)
		return output, output != input
	}

	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input, false
	}
	expanded := r.re.ExpandString(nil, r.replacement, input, loc)
	output := input[:loc[0]] + string(expanded) + input[loc[1]:]
	return output, output != input
}

// splitDelimited reads count fields terminated by delim. A backslash keeps
// the next byte; an escaped delimiter is unescaped, anything else is kept
// verbatim for the regex compiler.
func splitDelimited(input string, delim byte, count int) ([]string, string, error) {
	fields := make([]string, 0, count)
	var current strings.Builder
	for i := 0; i < len(input); i++ {
		c := input[i]
		if c == '\\' && i+1 < len(input) {
			next := input[i+1]
			if next != delim {
				current.WriteByte(c)
			}
			current.WriteByte(next)
			i++
			continue
		}
		if c != delim {
			current.WriteByte(c)
			continue
		}
		fields = append(fields, current.String())
		current.Reset()
		if len(fields) == count {
			return fields, input[i+1:], nil
		}
	}
	return nil, "", errors.New("unterminated expression")
}

func unescape(value string) string {
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t").Replace(value)
}

func isDelimiter(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return false
	case c == ' ', c == '\t', c == '\\':
		return false
	default:
		return true
	}
}
