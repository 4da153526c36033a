package llm

import (
	"os"
	"strings"
	"time"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Defaults for the OpenAI-compatible provider.
const (
	DefaultBaseURL        = "https://api.groq.com/openai/v1"
	DefaultModel          = "llama3-70b-8192"
	DefaultAnthropicModel = "claude-sonnet-4-0"
	DefaultTimeout        = 30 * time.Second
)

// Environment variables holding credentials.
const (
	EnvOpenAIKey    = "GROQ_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
)

// Settings select and configure the provider.
type Settings struct {
	Provider          string
	BaseURL           string
	Model             string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

func (s Settings) withDefaults() Settings {
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	if s.Provider == "" {
		s.Provider = ProviderOpenAI
	}
	if s.Model == "" {
		if s.Provider == ProviderAnthropic {
			s.Model = DefaultAnthropicModel
		} else {
			s.Model = DefaultModel
		}
	}
	if s.BaseURL == "" && s.Provider == ProviderOpenAI {
		s.BaseURL = DefaultBaseURL
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.Burst <= 0 {
		s.Burst = 1
	}
	return s
}

// KeyEnv names the environment variable holding the credential for the provider.
func (s Settings) KeyEnv() string {
	if strings.EqualFold(s.Provider, ProviderAnthropic) {
		return EnvAnthropicKey
	}
	return EnvOpenAIKey
}

// EnvCredentials resolves the key from settings first, then from the provider's env var.
func EnvCredentials(s Settings) (string, error) {
	if key := strings.TrimSpace(s.APIKey); key != "" {
		return key, nil
	}
	if key := strings.TrimSpace(os.Getenv(s.KeyEnv())); key != "" {
		return key, nil
	}
	return "", &ConfigError{Setting: s.KeyEnv(), Err: ErrMissingCredential}
}
