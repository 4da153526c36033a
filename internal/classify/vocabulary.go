// Package classify decides whether a question concerns flight telemetry or asks about anomalies.
package classify

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Term is a single vocabulary entry. WholeWord terms only match on word boundaries.
type Term struct {
	Text      string `yaml:"term"`
	WholeWord bool   `yaml:"whole_word"`
}

// Vocabulary holds the term lists used by the classifier.
type Vocabulary struct {
	Domain  []Term `yaml:"domain"`
	Anomaly []Term `yaml:"anomaly"`
}

// DefaultVocabulary returns the built-in term lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Domain: []Term{
			{Text: "altitude"},
			{Text: "alt", WholeWord: true},
			{Text: "pitch"},
			{Text: "roll"},
			{Text: "yaw"},
			{Text: "gps"},
			{Text: "rc", WholeWord: true},
			{Text: "flight"},
			{Text: "telemetry"},
			{Text: "mavlink"},
			{Text: "battery"},
			{Text: "groundspeed"},
			{Text: "descent"},
			{Text: "climb"},
			{Text: "satellite"},
		},
		Anomaly: []Term{
			{Text: "anomal"},
			{Text: "issue"},
			{Text: "problem"},
			{Text: "error"},
			{Text: "fail"},
			{Text: "fault"},
			{Text: "lost"},
			{Text: "loss"},
			{Text: "glitch"},
			{Text: "drop"},
			{Text: "inconsisten"},
			{Text: "weird"},
			{Text: "abnormal"},
			{Text: "irregular"},
			{Text: "off-nominal"},
		},
	}
}

// LoadVocabulary reads a YAML vocabulary file. A missing file yields the defaults, and
// a list omitted from the file keeps its default.
func LoadVocabulary(path string) (Vocabulary, error) {
	v := DefaultVocabulary()
	if path == "" {
		return v, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		return Vocabulary{}, fmt.Errorf("read vocabulary: %w", err)
	}

	var file Vocabulary
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary: %w", err)
	}
	if len(file.Domain) > 0 {
		v.Domain = file.Domain
	}
	if len(file.Anomaly) > 0 {
		v.Anomaly = file.Anomaly
	}
	return v, v.Validate()
}

// Validate rejects blank terms.
func (v Vocabulary) Validate() error {
	for _, list := range [][]Term{v.Domain, v.Anomaly} {
		for i, t := range list {
			if strings.TrimSpace(t.Text) == "" {
				return fmt.Errorf("vocabulary term %d is empty", i)
			}
		}
	}
	return nil
}
