package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"textrefine/internal/models"
)

const (
	DefaultPort         = 8080
	DefaultEndpoint     = "https://api.openai.com/v1"
	DefaultModel        = "gpt-4o-mini"
	DefaultAPIKeyEnv    = "OPENAI_API_KEY"
	DefaultProfileName  = "default"
	DefaultLanguage     = "English"
	DefaultRetries      = 2
	DefaultRetryDelay   = 300 * time.Millisecond
	DefaultContinuation = 3
	DefaultTimeout      = 120 * time.Second
)

// DefaultSystemPrompt frames the text-polishing task and the JSON reply shape.
const DefaultSystemPrompt = `You are a professional writing assistant. Your task is to help the user polish and improve their text.

When the user provides text:
1. Analyse its content and intent.
2. Offer 3-4 concise refinement directions for the user to choose from.
3. If the user picks "Other", ask how exactly they want the text adjusted.

Reply in JSON with this shape:
{
  "analysis": "a short analysis of the user's text",
  "optimized_text": "a preview of the improved text, if there is enough information",
  "options": [
    { "id": "1", "label": "More formal", "description": "Use a more professional and formal tone" },
    { "id": "2", "label": "More concise", "description": "Tighten the wording and remove redundancy" },
    { "id": "3", "label": "More persuasive", "description": "Strengthen the argument" },
    { "id": "other", "label": "Other (type your own)", "description": "Describe the adjustment you want" }
  ],
  "need_more_info": false
}

If the user's choice is already clear enough, return the improved text directly and set "need_more_info" to false.`

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server         ServerConfig    `yaml:"server"`
	Log            LogConfig       `yaml:"log"`
	Tracing        TracingConfig   `yaml:"tracing"`
	Chat           ChatConfig      `yaml:"chat"`
	Profiles       []ProfileConfig `yaml:"profiles"`
	DefaultProfile string          `yaml:"default_profile"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port      int             `yaml:"port"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds requests per client IP. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracingConfig toggles OpenTelemetry tracing.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// ChatConfig tunes the orchestration layer shared by every profile.
type ChatConfig struct {
	Timeout               time.Duration        `yaml:"timeout"`
	MaxRetries            *int                 `yaml:"max_retries"`
	RetryBaseDelay        time.Duration        `yaml:"retry_base_delay"`
	MaxContinuationRounds *int                 `yaml:"max_continuation_rounds"`
	TranslateLanguage     string               `yaml:"translate_language"`
	CircuitBreaker        CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig configures the optional breakers, one per endpoint.
type CircuitBreakerConfig struct {
	Enabled bool `yaml:"enabled"`
	// MaxFailures is the number of consecutive transient failures that opens the circuit.
	MaxFailures uint32 `yaml:"max_failures"`
	// Timeout is how long the circuit stays open before a half-open probe.
	Timeout time.Duration `yaml:"timeout"`
	// Interval clears failure counts while closed; 0 never clears.
	Interval time.Duration `yaml:"interval"`
}

// ProfileConfig captures one endpoint, credential and prompt combination.
type ProfileConfig struct {
	Name         string `yaml:"name"`
	Endpoint     string `yaml:"endpoint"`
	APIKey       string `yaml:"api_key"`
	APIKeyEnv    string `yaml:"api_key_env"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
}

// ChatConfig resolves the profile into per-call settings. The API key falls
// back to the environment variable named by APIKeyEnv.
func (p ProfileConfig) ChatConfig() models.ChatConfig {
	key := strings.TrimSpace(p.APIKey)
	if key == "" && p.APIKeyEnv != "" {
		key = strings.TrimSpace(os.Getenv(p.APIKeyEnv))
	}
	return models.ChatConfig{
		Endpoint:     strings.TrimRight(strings.TrimSpace(p.Endpoint), "/"),
		APIKey:       key,
		Model:        p.Model,
		SystemPrompt: p.SystemPrompt,
	}
}

// Load reads YAML configuration from disk, applies defaults and validates the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config file %q: %w", absPath, err)
	}
	return cfg, nil
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns a configuration with a single default profile.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields in place.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Chat.Timeout == 0 {
		c.Chat.Timeout = DefaultTimeout
	}
	if c.Chat.MaxRetries == nil {
		c.Chat.MaxRetries = intPtr(DefaultRetries)
	}
	if c.Chat.RetryBaseDelay == 0 {
		c.Chat.RetryBaseDelay = DefaultRetryDelay
	}
	if c.Chat.MaxContinuationRounds == nil {
		c.Chat.MaxContinuationRounds = intPtr(DefaultContinuation)
	}
	if strings.TrimSpace(c.Chat.TranslateLanguage) == "" {
		c.Chat.TranslateLanguage = DefaultLanguage
	}

	if len(c.Profiles) == 0 {
		c.Profiles = []ProfileConfig{{Name: DefaultProfileName}}
	}
	for i := range c.Profiles {
		p := &c.Profiles[i]
		if p.Endpoint == "" {
			p.Endpoint = DefaultEndpoint
		}
		if p.Model == "" {
			p.Model = DefaultModel
		}
		if p.APIKey == "" && p.APIKeyEnv == "" {
			p.APIKeyEnv = DefaultAPIKeyEnv
		}
		if strings.TrimSpace(p.SystemPrompt) == "" {
			p.SystemPrompt = DefaultSystemPrompt
		}
	}
	if c.DefaultProfile == "" {
		c.DefaultProfile = c.Profiles[0].Name
	}
}

// Validate performs strict sanity checks on the configuration. A missing API
// key is not a validation error; calls fail their precondition instead.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must not be negative")
	}
	if c.Server.RateLimit.Burst < 0 {
		return fmt.Errorf("server.rate_limit.burst must not be negative")
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be one of %q or %q, got %q", "text", "json", c.Log.Format)
	}

	if c.Chat.Timeout < 0 {
		return fmt.Errorf("chat.timeout must not be negative")
	}
	if c.Chat.RetryBaseDelay < 0 {
		return fmt.Errorf("chat.retry_base_delay must not be negative")
	}
	if c.Chat.MaxRetries != nil && *c.Chat.MaxRetries < 0 {
		return fmt.Errorf("chat.max_retries must not be negative")
	}
	if c.Chat.MaxContinuationRounds != nil && *c.Chat.MaxContinuationRounds < 0 {
		return fmt.Errorf("chat.max_continuation_rounds must not be negative")
	}
	if cb := c.Chat.CircuitBreaker; cb.Timeout < 0 || cb.Interval < 0 {
		return fmt.Errorf("chat.circuit_breaker durations must not be negative")
	}

	seen := make(map[string]struct{}, len(c.Profiles))
	for _, profile := range c.Profiles {
		if err := validateProfile(profile); err != nil {
			return err
		}
		if _, dup := seen[profile.Name]; dup {
			return fmt.Errorf("profile %q is defined more than once", profile.Name)
		}
		seen[profile.Name] = struct{}{}
	}

	if _, ok := seen[c.DefaultProfile]; !ok {
		return fmt.Errorf("default_profile %q does not name a configured profile", c.DefaultProfile)
	}
	return nil
}

func validateProfile(p ProfileConfig) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("profile name must not be empty")
	}
	if strings.TrimSpace(p.Model) == "" {
		return fmt.Errorf("profile %s: model must not be empty", p.Name)
	}

	u, err := url.Parse(strings.TrimSpace(p.Endpoint))
	if err != nil {
		return fmt.Errorf("profile %s: endpoint: %w", p.Name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("profile %s: endpoint %q must be an absolute http(s) URL", p.Name, p.Endpoint)
	}
	return nil
}

func intPtr(v int) *int {
	return &v
}
