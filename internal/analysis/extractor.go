package analysis

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/miradorstack/flightchat/internal/models"
)

// DefaultThreshold is the minimum cosine similarity for a field to be considered.
const DefaultThreshold = 0.1

// Extractor selects the telemetry fields most relevant to a question.
type Extractor struct {
	embedder  Embedder
	threshold float64
}

// NewExtractor builds an extractor. A nil embedder uses a HashingEmbedder.
func NewExtractor(embedder Embedder, threshold float64) *Extractor {
	if embedder == nil {
		embedder = NewHashingEmbedder(DefaultDimensions)
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Extractor{embedder: embedder, threshold: threshold}
}

type scoredPath struct {
	path  string
	score float64
}

// ExtractRelevantData returns the top-K fields of telemetry for question, keeping
// the original hierarchy. With rerank a wider candidate set is re-scored lexically.
func (e *Extractor) ExtractRelevantData(ctx context.Context, telemetry models.Telemetry, question string, topK int, rerank bool) (models.Telemetry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}
	paths := DiscoverFields(telemetry)
	if len(paths) == 0 || strings.TrimSpace(question) == "" {
		return models.Telemetry{}, nil
	}
	if topK > len(paths) {
		topK = len(paths)
	}

	ranked := e.topMatches(question, paths, topK*3)
	if rerank {
		ranked = lexicalRerank(question, ranked)
	}
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	selected := models.Telemetry{}
	for _, sp := range ranked {
		value, ok := lookup(telemetry, sp.path)
		if !ok {
			continue
		}
		insert(selected, sp.path, value)
	}
	return selected, nil
}

func (e *Extractor) topMatches(question string, paths []string, k int) []scoredPath {
	texts := make([]string, 0, len(paths)+1)
	texts = append(texts, question)
	texts = append(texts, paths...)
	vecs := e.embedder.Embed(texts)

	scored := make([]scoredPath, 0, len(paths))
	for i, p := range paths {
		if s := Cosine(vecs[0], vecs[i+1]); s >= e.threshold {
			scored = append(scored, scoredPath{path: p, score: s})
		}
	}
	sortScored(scored)
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// lexicalRerank boosts candidates whose path shares literal tokens with the question.
func lexicalRerank(question string, candidates []scoredPath) []scoredPath {
	qTokens := make(map[string]struct{})
	for _, tok := range Tokens(question) {
		qTokens[tok] = struct{}{}
		for _, alias := range aliases[tok] {
			qTokens[alias] = struct{}{}
		}
	}

	out := make([]scoredPath, len(candidates))
	for i, c := range candidates {
		pTokens := Tokens(c.path)
		hits := 0
		for _, tok := range pTokens {
			if _, ok := qTokens[tok]; ok {
				hits++
			}
		}
		overlap := 0.0
		if len(pTokens) > 0 {
			overlap = float64(hits) / float64(len(pTokens))
		}
		out[i] = scoredPath{path: c.path, score: 0.5*c.score + 0.5*overlap}
	}
	sortScored(out)
	return out
}

func sortScored(s []scoredPath) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].score != s[j].score {
			return s[i].score > s[j].score
		}
		return s[i].path < s[j].path
	})
}

// DiscoverFields returns the dot-separated paths of every leaf in telemetry, sorted.
// Maps keyed only by sample indices count as leaves.
func DiscoverFields(telemetry models.Telemetry) []string {
	var out []string
	var walk func(node map[string]any, prefix string)
	walk = func(node map[string]any, prefix string) {
		for k, v := range node {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok && len(child) > 0 && !indexKeyed(child) {
				walk(child, p)
				continue
			}
			out = append(out, p)
		}
	}
	walk(telemetry, "")
	sort.Strings(out)
	return out
}

func indexKeyed(m map[string]any) bool {
	for k := range m {
		if _, err := strconv.Atoi(k); err != nil {
			return false
		}
	}
	return true
}

func lookup(root map[string]any, path string) (any, bool) {
	var current any = root
	for _, key := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return current, current != nil
}

func insert(root map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	node := root
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[part] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = value
}
