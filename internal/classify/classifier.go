package classify

import (
	"regexp"
	"strings"
	"sync/atomic"
)

// Matcher reports whether text contains any of a compiled set of terms.
type Matcher struct {
	re *regexp.Regexp
}

// NewMatcher compiles terms into a single case-insensitive alternation.
func NewMatcher(terms []Term) *Matcher {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		quoted := regexp.QuoteMeta(text)
		if t.WholeWord {
			quoted = `\b` + quoted + `\b`
		}
		parts = append(parts, quoted)
	}
	if len(parts) == 0 {
		return &Matcher{}
	}
	return &Matcher{re: regexp.MustCompile(`(?i)(?:` + strings.Join(parts, "|") + `)`)}
}

// Match reports whether text contains a term. Empty text never matches.
func (m *Matcher) Match(text string) bool {
	if m == nil || m.re == nil || text == "" {
		return false
	}
	return m.re.MatchString(text)
}

type matchers struct {
	domain  *Matcher
	anomaly *Matcher
}

// Classifier answers vocabulary questions. It can be reloaded while in use.
type Classifier struct {
	current atomic.Pointer[matchers]
}

// New builds a classifier from v.
func New(v Vocabulary) *Classifier {
	c := &Classifier{}
	c.Reload(v)
	return c
}

// Reload swaps in a new vocabulary.
func (c *Classifier) Reload(v Vocabulary) {
	c.current.Store(&matchers{
		domain:  NewMatcher(v.Domain),
		anomaly: NewMatcher(v.Anomaly),
	})
}

// IsDomainQuestion reports whether the question mentions flight telemetry.
func (c *Classifier) IsDomainQuestion(question string) bool {
	return c.current.Load().domain.Match(question)
}

// IsAnomalyQuestion reports whether the question asks about faults or unusual behaviour.
func (c *Classifier) IsAnomalyQuestion(question string) bool {
	return c.current.Load().anomaly.Match(question)
}
