// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingCredentials is returned when the Boards connection settings are incomplete.
var ErrMissingCredentials = errors.New("missing Azure DevOps configuration")

// Config holds all application configuration.
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	GRPCHealthAddr string
	// StatusDelay is how long after connect the cache status messages are sent.
	StatusDelay time.Duration
	// SessionIdleTimeout evicts HTTP chat sessions that stopped sending messages.
	SessionIdleTimeout time.Duration
	Boards             BoardsConfig
	LLM                LLMConfig
	Sprints            SprintConfig
	Transcript         TranscriptConfig
}

// BoardsConfig holds the Azure DevOps connection settings.
type BoardsConfig struct {
	OrgURL         string
	Project        string
	PAT            string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// LLMConfig controls the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Enabled reports whether an API key was configured.
func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

// SprintConfig controls sprint cache loading.
type SprintConfig struct {
	RefreshInterval time.Duration
	MaxBuckets      int
	FallbackItems   int
}

// TranscriptConfig controls the SQLite conversation transcript.
type TranscriptConfig struct {
	Enabled   bool
	DBPath    string
	Retention time.Duration
}

// NewSource returns a viper instance reading from the process environment.
func NewSource() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	return v
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return LoadFrom(NewSource())
}

// LoadFrom reads configuration from v. Bound command-line flags take precedence over the environment.
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:               getString(v, "PORT", "3001"),
		AllowedOrigins:     splitList(getString(v, "ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001")),
		LogLevel:           strings.ToLower(getString(v, "LOG_LEVEL", "info")),
		GRPCHealthAddr:     getString(v, "GRPC_HEALTH_ADDR", ":50051"),
		StatusDelay:        getDuration(v, "STATUS_DELAY", 1500*time.Millisecond),
		SessionIdleTimeout: getDuration(v, "SESSION_IDLE_TIMEOUT", 2*time.Hour),
		Boards: BoardsConfig{
			OrgURL:         strings.TrimRight(getString(v, "AZURE_ORG_URL", ""), "/"),
			Project:        getString(v, "AZURE_PROJECT", ""),
			PAT:            getString(v, "AZURE_PAT", ""),
			Timeout:        getDuration(v, "BOARDS_TIMEOUT", 15*time.Second),
			MaxRetries:     getInt(v, "BOARDS_MAX_RETRIES", 2),
			RetryBaseDelay: getDuration(v, "BOARDS_RETRY_BASE_DELAY", 1200*time.Millisecond),
		},
		LLM: LLMConfig{
			APIKey:      getString(v, "OPENROUTER_API_KEY", ""),
			Model:       getString(v, "OPENROUTER_MODEL", "openai/gpt-4o-mini"),
			BaseURL:     strings.TrimRight(getString(v, "OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"), "/"),
			MaxTokens:   getInt(v, "OPENROUTER_MAX_TOKENS", 400),
			Temperature: getFloat(v, "OPENROUTER_TEMPERATURE", 0.3),
			Timeout:     getDuration(v, "OPENROUTER_TIMEOUT", 30*time.Second),
		},
		Sprints: SprintConfig{
			RefreshInterval: getDuration(v, "SPRINT_REFRESH_INTERVAL", 15*time.Minute),
			MaxBuckets:      getInt(v, "SPRINT_MAX_BUCKETS", 5),
			FallbackItems:   getInt(v, "SPRINT_FALLBACK_ITEMS", 200),
		},
		Transcript: TranscriptConfig{
			Enabled:   getBool(v, "TRANSCRIPT_ENABLED", true),
			DBPath:    getString(v, "DB_PATH", "./data/transcripts.db"),
			Retention: getDuration(v, "TRANSCRIPT_RETENTION", 30*24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	var missing []string
	if c.Boards.OrgURL == "" {
		missing = append(missing, "AZURE_ORG_URL")
	}
	if c.Boards.Project == "" {
		missing = append(missing, "AZURE_PROJECT")
	}
	if c.Boards.PAT == "" {
		missing = append(missing, "AZURE_PAT")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Sprints.RefreshInterval <= 0 {
		return fmt.Errorf("SPRINT_REFRESH_INTERVAL must be > 0")
	}
	if c.Sprints.MaxBuckets <= 0 {
		return fmt.Errorf("SPRINT_MAX_BUCKETS must be > 0")
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be > 0")
	}
	if c.Boards.MaxRetries < 0 {
		return fmt.Errorf("BOARDS_MAX_RETRIES cannot be negative")
	}
	if c.Transcript.Enabled && c.Transcript.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty when transcripts are enabled")
	}
	return nil
}

// IsDevelopment returns true if every allowed origin is local.
func (c *Config) IsDevelopment() bool {
	for _, o := range c.AllowedOrigins {
		if !strings.Contains(o, "localhost") && !strings.Contains(o, "127.0.0.1") {
			return false
		}
	}
	return true
}

// OriginHosts returns the host[:port] part of each allowed origin, as websocket origin patterns expect.
func (c *Config) OriginHosts() []string {
	hosts := make([]string, 0, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			hosts = append(hosts, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			hosts = append(hosts, o)
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}

// SlogLevel maps LogLevel onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getString(v *viper.Viper, key, fallback string) string {
	if v.IsSet(key) {
		return strings.TrimSpace(v.GetString(key))
	}
	return fallback
}

func getBool(v *viper.Viper, key string, fallback bool) bool {
	if !v.IsSet(key) {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v.GetString(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getInt(v *viper.Viper, key string, fallback int) int {
	if !v.IsSet(key) {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return fallback
	}
	return n
}

func getFloat(v *viper.Viper, key string, fallback float64) float64 {
	if !v.IsSet(key) {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.GetString(key)), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getDuration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	if !v.IsSet(key) {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
