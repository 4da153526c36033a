package analysis

import (
	"hash/fnv"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/floats"
)

// DefaultDimensions is the width of hashed embeddings.
const DefaultDimensions = 512

// Embedder turns texts into fixed-width vectors.
type Embedder interface {
	Embed(texts []string) [][]float64
}

// aliases map question vocabulary onto MAVLink field naming.
var aliases = map[string][]string{
	"altitude":    {"alt", "relative_alt"},
	"height":      {"alt", "relative_alt"},
	"satellite":   {"satellites_visible", "gps_raw_int"},
	"satellites":  {"satellites_visible", "gps_raw_int"},
	"gps":         {"gps_raw_int", "satellites_visible", "lat", "lon"},
	"battery":     {"battery_status", "voltages", "current_battery"},
	"voltage":     {"voltages"},
	"current":     {"current_battery"},
	"speed":       {"vx", "vy", "vz", "groundspeed"},
	"groundspeed": {"vx", "vy", "vfr_hud"},
	"climb":       {"vz", "alt"},
	"descent":     {"vz", "alt"},
	"attitude":    {"roll", "pitch", "yaw"},
	"vibration":   {"vibration_x", "vibration_y", "vibration_z"},
	"time":        {"time_boot_ms", "system_time"},
	"duration":    {"time_boot_ms", "system_time"},
	"rc":          {"rc_channels", "rssi"},
	"radio":       {"rc_channels", "rssi"},
}

// HashingEmbedder is a deterministic bag-of-words embedder using feature hashing
// over word tokens, their aliases and character trigrams.
type HashingEmbedder struct {
	Dimensions int
}

// NewHashingEmbedder returns an embedder with dims buckets.
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashingEmbedder{Dimensions: dims}
}

// Embed returns one L2-normalised vector per text.
func (h *HashingEmbedder) Embed(texts []string) [][]float64 {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = h.embed(text)
	}
	return out
}

func (h *HashingEmbedder) embed(text string) []float64 {
	vec := make([]float64, h.Dimensions)
	for _, tok := range Tokens(text) {
		h.add(vec, "w:"+tok, 1)
		for _, alias := range aliases[tok] {
			h.add(vec, "w:"+alias, 0.8)
			for _, part := range strings.Split(alias, "_") {
				h.add(vec, "w:"+part, 0.4)
			}
		}
		padded := "#" + tok + "#"
		runes := []rune(padded)
		for j := 0; j+3 <= len(runes); j++ {
			h.add(vec, "g:"+string(runes[j:j+3]), 0.3)
		}
	}
	if norm := floats.Norm(vec, 2); norm > 0 {
		floats.Scale(1/norm, vec)
	}
	return vec
}

func (h *HashingEmbedder) add(vec []float64, feature string, weight float64) {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(feature))
	vec[int(hasher.Sum32()%uint32(len(vec)))] += weight
}

// Tokens lower-cases text and splits it on punctuation, dots and underscores.
// Whole underscore-joined identifiers are kept as an extra token.
func Tokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	out := make([]string, 0, len(fields)*2)
	for _, f := range fields {
		f = strings.Trim(f, "_")
		if f == "" {
			continue
		}
		out = append(out, f)
		if strings.Contains(f, "_") {
			for _, part := range strings.Split(f, "_") {
				if part != "" {
					out = append(out, part)
				}
			}
		}
	}
	return out
}

// Cosine returns the cosine similarity of a and b, or zero when either is empty.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}
