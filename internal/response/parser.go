// Package response splits raw LLM output into an answer and suggested follow-up questions.
package response

import (
	"regexp"
	"strings"
)

const (
	answerOpen       = "<answer>"
	answerClose      = "</answer>"
	suggestionsOpen  = "<suggested_questions>"
	suggestionsClose = "</suggested_questions>"
)

// Fallback reasons reported by Extract.
const (
	ReasonMissingAnswer      = "missing answer block"
	ReasonUnclosedAnswer     = "unclosed answer block"
	ReasonEmptyAnswer        = "empty answer block"
	ReasonUnclosedSuggestion = "unclosed suggested_questions block"
)

var listPrefix = regexp.MustCompile(`^(?:\d+[.)]|[-*•])\s*`)

// Parsed is the uniform shape returned to callers.
type Parsed struct {
	Answer             string   `json:"answer"`
	SuggestedQuestions []string `json:"suggested_questions"`
}

// Result carries the parsed output and whether the structured blocks were found.
// When Structured is false, Reason names the defect and Parsed holds the fallback.
type Result struct {
	Parsed
	Structured bool
	Reason     string
}

// Parse never fails: malformed output becomes the whole trimmed text with no suggestions.
func Parse(raw string) Parsed {
	return Extract(raw).Parsed
}

// Extract attempts structured extraction and reports whether it had to fall back.
func Extract(raw string) Result {
	answer, reason := block(raw, answerOpen, answerClose)
	switch {
	case reason != "":
		return fallback(raw, reason)
	case answer == "":
		return fallback(raw, ReasonEmptyAnswer)
	}

	suggestions := []string{}
	if strings.Contains(raw, suggestionsOpen) {
		body, reason := block(raw, suggestionsOpen, suggestionsClose)
		if reason != "" {
			return fallback(raw, ReasonUnclosedSuggestion)
		}
		suggestions = splitSuggestions(body)
	}

	return Result{
		Parsed:     Parsed{Answer: answer, SuggestedQuestions: suggestions},
		Structured: true,
	}
}

func block(raw, open, close string) (string, string) {
	start := strings.Index(raw, open)
	if start < 0 {
		return "", ReasonMissingAnswer
	}
	rest := raw[start+len(open):]
	end := strings.Index(rest, close)
	if end < 0 {
		return "", ReasonUnclosedAnswer
	}
	return strings.TrimSpace(rest[:end]), ""
}

func splitSuggestions(body string) []string {
	out := []string{}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(listPrefix.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func fallback(raw, reason string) Result {
	return Result{
		Parsed:     Parsed{Answer: strings.TrimSpace(raw), SuggestedQuestions: []string{}},
		Structured: false,
		Reason:     reason,
	}
}
