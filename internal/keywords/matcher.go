// Package keywords matches configured keywords against entry text.
package keywords

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// The boundaries match text edges or any character that cannot be part of a word.
const (
	leftBoundary  = `(?:^|[^\p{L}\p{N}_])`
	rightBoundary = `(?:$|[^\p{L}\p{N}_])`
)

type keyword struct {
	text    string
	pattern *regexp.Regexp
}

// Matcher tests text for whole-word, case-insensitive keyword presence.
type Matcher struct {
	keywords []keyword
}

// New compiles a matcher for words. Blank keywords are rejected.
func New(words []string) (*Matcher, error) {
	if len(words) == 0 {
		return nil, errors.New("no keywords configured")
	}

	m := &Matcher{keywords: make([]keyword, 0, len(words))}
	for _, w := range words {
		fields := strings.Fields(w)
		if len(fields) == 0 {
			return nil, fmt.Errorf("blank keyword at position %d", len(m.keywords))
		}

		quoted := make([]string, len(fields))
		for i, f := range fields {
			quoted[i] = regexp.QuoteMeta(f)
		}

		expr := `(?i)` + leftBoundary + strings.Join(quoted, `\s+`) + rightBoundary
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compiling keyword %q: %w", w, err)
		}
		m.keywords = append(m.keywords, keyword{text: w, pattern: re})
	}

	return m, nil
}

// Match returns the keywords present in any of texts, in configured order.
// The result is nil when nothing matches.
func (m *Matcher) Match(texts ...string) []string {
	var matched []string
	for _, kw := range m.keywords {
		for _, text := range texts {
			if kw.pattern.MatchString(text) {
				matched = append(matched, kw.text)
				break
			}
		}
	}
	return matched
}

// Keywords returns the configured keywords.
func (m *Matcher) Keywords() []string {
	out := make([]string, len(m.keywords))
	for i, kw := range m.keywords {
		out[i] = kw.text
	}
	return out
}
