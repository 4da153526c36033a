package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures every setting required to boot flightchat.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	LLM        LLMConfig        `yaml:"llm"`
	Anomaly    AnomalyConfig    `yaml:"anomaly"`
	Chat       ChatConfig       `yaml:"chat"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Cache      CacheConfig      `yaml:"cache"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// ServerConfig controls the gRPC, REST and metrics listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	HTTPAddress     string        `yaml:"httpAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
}

// LLMConfig selects the completion provider.
type LLMConfig struct {
	Provider          string        `yaml:"provider"`
	BaseURL           string        `yaml:"baseURL"`
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"apiKey"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
}

// AnomalyConfig tunes the default anomaly engine.
type AnomalyConfig struct {
	Enabled     bool    `yaml:"enabled"`
	TopK        int     `yaml:"topK"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"maxTokens"`
}

// ChatConfig tunes the metric and general paths and conversation memory.
type ChatConfig struct {
	Temperature         float64       `yaml:"temperature"`
	MaxTokens           int           `yaml:"maxTokens"`
	MetricTopK          int           `yaml:"metricTopK"`
	Rerank              bool          `yaml:"rerank"`
	HistoryCapacity     int           `yaml:"historyCapacity"`
	SessionIdleTTL      time.Duration `yaml:"sessionIdleTTL"`
	SweepInterval       time.Duration `yaml:"sweepInterval"`
	CollaboratorTimeout time.Duration `yaml:"collaboratorTimeout"`
	ExtractorThreshold  float64       `yaml:"extractorThreshold"`
}

// ClassifierConfig points at the vocabulary file.
type ClassifierConfig struct {
	VocabularyPath string `yaml:"vocabularyPath"`
	Watch          bool   `yaml:"watch"`
}

// CacheConfig controls memoization of metric computations.
type CacheConfig struct {
	Provider   string        `yaml:"provider"`
	MetricsTTL time.Duration `yaml:"metricsTTL"`
	MaxEntries int           `yaml:"maxEntries"`
}

// ArchiveConfig controls the SQLite transcript archive.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// TracingConfig controls OTLP span export.
type TracingConfig struct {
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"samplingRate"`
	ServiceName  string  `yaml:"serviceName"`
}

// Load initialises Config from a YAML file and environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("FLIGHTCHAT_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(&cfg)
	return &cfg
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			HTTPAddress:     ":8000",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
			MaxBodyBytes:    64 << 20,
		},
		// BaseURL and Model stay empty so the provider's own defaults apply.
		LLM: LLMConfig{
			Provider: "openai",
			Timeout:  30 * time.Second,
			Burst:    1,
		},
		Anomaly: AnomalyConfig{
			Enabled:     true,
			TopK:        25,
			Temperature: 0.2,
			MaxTokens:   512,
		},
		Chat: ChatConfig{
			Temperature:         0.7,
			MaxTokens:           1000,
			MetricTopK:          5,
			Rerank:              true,
			HistoryCapacity:     15,
			SessionIdleTTL:      30 * time.Minute,
			SweepInterval:       time.Minute,
			CollaboratorTimeout: 20 * time.Second,
			ExtractorThreshold:  0.1,
		},
		Classifier: ClassifierConfig{VocabularyPath: "configs/vocabulary.yaml", Watch: true},
		Cache:      CacheConfig{Provider: "memory", MetricsTTL: 10 * time.Minute, MaxEntries: 1024},
		Archive:    ArchiveConfig{Enabled: false, Path: "data/transcripts.db"},
		Logging: LoggingConfig{
			Level:      "info",
			JSON:       false,
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Tracing: TracingConfig{Insecure: true, SamplingRate: 1, ServiceName: "flightchat"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FLIGHTCHAT_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("FLIGHTCHAT_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("FLIGHTCHAT_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("FLIGHTCHAT_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("FLIGHTCHAT_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("GROQ_API_BASE"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("GROQ_DEFAULT_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("FLIGHTCHAT_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLM.Timeout = d
		}
	}
	if v := os.Getenv("FLIGHTCHAT_LLM_RPS"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.LLM.RequestsPerSecond = rps
		}
	}
	if v := os.Getenv("FLIGHTCHAT_ANOMALY_ENABLED"); v != "" {
		cfg.Anomaly.Enabled = parseBool(v)
	}
	if v := os.Getenv("FLIGHTCHAT_CHAT_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Chat.Temperature = f
		}
	}
	if v := os.Getenv("FLIGHTCHAT_CHAT_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chat.MaxTokens = n
		}
	}
	if v := os.Getenv("FLIGHTCHAT_SESSION_IDLE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Chat.SessionIdleTTL = d
		}
	}
	if v := os.Getenv("FLIGHTCHAT_VOCABULARY_PATH"); v != "" {
		cfg.Classifier.VocabularyPath = v
	}
	if v := os.Getenv("FLIGHTCHAT_CACHE_PROVIDER"); v != "" {
		cfg.Cache.Provider = v
	}
	if v := os.Getenv("FLIGHTCHAT_ARCHIVE_PATH"); v != "" {
		cfg.Archive.Path = v
		cfg.Archive.Enabled = true
	}
	if v := os.Getenv("FLIGHTCHAT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FLIGHTCHAT_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("FLIGHTCHAT_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = stripScheme(v)
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Address == "" && c.Server.HTTPAddress == "" {
		errs = append(errs, errors.New("server: at least one of address or httpAddress is required"))
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, errors.New("llm.timeout must be positive"))
	}
	if c.Chat.MaxTokens <= 0 {
		errs = append(errs, errors.New("chat.maxTokens must be positive"))
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		errs = append(errs, errors.New("chat.temperature must be within [0, 2]"))
	}
	if c.Chat.HistoryCapacity <= 0 {
		errs = append(errs, errors.New("chat.historyCapacity must be positive"))
	}
	if c.Chat.CollaboratorTimeout <= 0 {
		errs = append(errs, errors.New("chat.collaboratorTimeout must be positive"))
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, errors.New("cache.maxEntries must not be negative"))
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		errs = append(errs, errors.New("archive.path is required when the archive is enabled"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func stripScheme(endpoint string) string {
	for _, scheme := range []string{"http://", "https://"} {
		if strings.HasPrefix(endpoint, scheme) {
			return strings.TrimSuffix(strings.TrimPrefix(endpoint, scheme), "/")
		}
	}
	return endpoint
}
