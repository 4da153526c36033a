package models

// AnomalyFlag is a primitive rule hit handed to the LLM as a hint.
type AnomalyFlag struct {
	Feature string  `json:"feature"`
	Index   int     `json:"index"`
	Value   float64 `json:"value"`
	Pattern string  `json:"pattern"`
	Hint    string  `json:"hint"`
}
