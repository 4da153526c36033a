// Package prompt assembles the instruction texts sent to the LLM.
//
// Every template ends with a "User question:" line. The LLM is asked to answer with an
// <answer> block followed by a <suggested_questions> block.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionMarker introduces the user's question in every template.
const QuestionMarker = "User question:"

// Truncation limits for embedded JSON context.
const (
	MetricsMaxLen   = 600
	ExtractedMaxLen = 800
	FlagsMaxLen     = 400

	anomalyMetricsMaxLen = 500
)

const truncationMark = "\n… (truncated) …\n"

const metricInstructions = `You are an expert UAV telemetry analyst. If the question is ambiguous or a single token (e.g., "max"), **ask a concise clarification before proceeding**. Your tasks:
1. Use the *metrics* and *raw field excerpts* below to answer the user.
2. If a value is relevant, quote it (units included).
3. Explain calculations only briefly when asked.
4. If data is missing, say so and suggest what additional log fields are needed.
5. Keep answers concise and technically precise.

If, after inspecting the *metrics* and *extracted fields*, you **cannot confidently answer** (because the question is too vague or the requested signal is missing) then *do not guess*. Instead, politely ask the user to clarify what specific metric, time window, or field they need.

Use this exact output format:
<answer>
Your response here…
</answer>

<suggested_questions>
1. Another meaningful follow-up
2. Deeper analysis request
3. Potential anomaly check
</suggested_questions>

Inside <suggested_questions> generate THREE concise follow-up questions, phrased from the USER'S point of view, **and ensure each can be answered using the telemetry data already provided** (e.g., "What is the max altitude?").`

const generalInstructions = `You are a helpful assistant. If the user's question is too vague (e.g., single word like "max") or could mean multiple things, politely request clarification before answering. The user may or may not have uploaded a UAV log.
• If the question is unrelated to UAV telemetry, answer normally.
• If the user might benefit from uploading a flight log, gently mention that.

Answer inside <answer> … </answer> and then list follow-ups inside <suggested_questions> … </suggested_questions>, one per line.
Inside <suggested_questions> generate THREE UAV telemetry follow-up questions, phrased from the USER'S point of view, even for greetings like 'Hi'.`

const anomalyInstructions = `You are an expert UAV telemetry analyst. If the question is ambiguous or the data is insufficient, ask a concise clarification before proceeding.

Instructions:
• Decide whether any value or pattern constitutes an anomaly.
• Derive or cite a reasonable threshold from UAV best practice or the data distribution itself.
• Quote timestamps (seconds since boot) and offending values.
• If nothing is abnormal, state "No anomalies detected."
• After answering, return THREE first-person follow-up questions that can be answered with the data below.

Output format:
<answer>
…
</answer>

<suggested_questions>
1. …
2. …
3. …
</suggested_questions>`

// BuildMetricPrompt assembles the prompt used when telemetry context is available.
func BuildMetricPrompt(question string, extracted, metrics map[string]any) string {
	var b strings.Builder
	b.WriteString(metricInstructions)
	b.WriteString("\n\n## Pre-computed Metrics (key = value):\n")
	b.WriteString(JSONShort(metrics, MetricsMaxLen))
	b.WriteString("\n\n## Extracted Field Samples:\n")
	b.WriteString(JSONShort(extracted, ExtractedMaxLen))
	b.WriteString("\n\n")
	b.WriteString(QuestionMarker)
	b.WriteString(" ")
	b.WriteString(question)
	return b.String()
}

// BuildGeneralPrompt assembles the prompt used without telemetry context.
func BuildGeneralPrompt(question string) string {
	return fmt.Sprintf("%s\n\n%s %s", generalInstructions, QuestionMarker, question)
}

// BuildAnomalyPrompt assembles the prompt used by the anomaly engine. flags may be nil.
func BuildAnomalyPrompt(question string, extracted, metrics map[string]any, flags any) string {
	var b strings.Builder
	b.WriteString(anomalyInstructions)
	b.WriteString("\n\n## Flight-level metrics\n")
	b.WriteString(JSONShort(metrics, anomalyMetricsMaxLen))
	b.WriteString("\n\n## Primitive anomaly flags (hints)\n")
	if isEmpty(flags) {
		b.WriteString("None\n")
	} else {
		b.WriteString(JSONShort(flags, FlagsMaxLen))
	}
	b.WriteString("\n\n## Extracted field samples\n")
	b.WriteString(JSONShort(extracted, ExtractedMaxLen))
	b.WriteString("\n\n")
	b.WriteString(QuestionMarker)
	b.WriteString(" ")
	b.WriteString(question)
	return b.String()
}

// JSONShort renders v as indented JSON, cutting the middle out when it exceeds maxLen characters.
func JSONShort(v any, maxLen int) string {
	data, err := json.MarshalIndent(v, "", "  ")
	text := string(data)
	if err != nil {
		text = fmt.Sprintf("%v", v)
	}

	runes := []rune(text)
	if maxLen <= 0 || len(runes) <= maxLen {
		return text
	}
	half := maxLen / 2
	return string(runes[:half]) + truncationMark + string(runes[len(runes)-half:])
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case []any:
		return len(t) == 0
	case []map[string]any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	s := string(data)
	return s == "null" || s == "[]" || s == "{}"
}
