package prompt

import (
	"strings"

	"github.com/miradorstack/flightchat/internal/conversation"
)

// HistoryTurns is how many recent turns are injected into a prompt.
const HistoryTurns = 3

// HistoryHeader opens the injected history block.
const HistoryHeader = "## Recent conversation (last 3 turns):"

// InjectHistory inserts the rendered history right before the trailing question
// marker, the last one that starts a paragraph. Empty history returns the prompt
// unchanged; a prompt without the marker gets the block prepended.
func InjectHistory(prompt string, history []conversation.Turn) string {
	if len(history) == 0 {
		return prompt
	}
	if len(history) > HistoryTurns {
		history = history[len(history)-HistoryTurns:]
	}

	var b strings.Builder
	b.WriteString(HistoryHeader)
	b.WriteString("\n")
	for _, turn := range history {
		b.WriteString(roleLabel(turn.Role))
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	block := b.String()

	idx := strings.LastIndex(prompt, "\n\n"+QuestionMarker)
	if idx < 0 {
		return block + prompt
	}
	idx += 2
	return prompt[:idx] + block + prompt[idx:]
}

func roleLabel(r conversation.Role) string {
	s := string(r)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
