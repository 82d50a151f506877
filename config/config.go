// Package config provides YAML-based configuration loading for meshbot.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/meshbot/health"
	"github.com/hupe1980/meshbot/roster"
)

// Provider kinds.
const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindMock      = "mock"
)

// Config is the top-level configuration, loaded from meshbot.yaml.
type Config struct {
	AppName       string              `yaml:"app_name"`
	Server        ServerConfig        `yaml:"server"`
	Telegram      TelegramConfig      `yaml:"telegram"`
	Providers     map[string]Provider `yaml:"providers"`
	Roster        RosterConfig        `yaml:"roster"`
	Agent         AgentConfig         `yaml:"agent"`
	Dispatch      DispatchConfig      `yaml:"dispatch"`
	Runner        RunnerConfig        `yaml:"runner"`
	Portfolio     PortfolioConfig     `yaml:"portfolio"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Health        HealthConfig        `yaml:"health"`
	Console       ConsoleConfig       `yaml:"console"`
	Log           LogConfig           `yaml:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelegramConfig holds Bot API settings.
type TelegramConfig struct {
	Token         string `yaml:"token"`
	WebhookSecret string `yaml:"webhook_secret"`
	WebhookPath   string `yaml:"webhook_path"`
	PublicBaseURL string `yaml:"public_base_url"`
	APIBaseURL    string `yaml:"api_base_url"`
	// OwnerChatID receives contact form notifications (0 = none).
	OwnerChatID int64 `yaml:"owner_chat_id"`
}

// Provider describes how to reach one model provider.
type Provider struct {
	Kind    string `yaml:"kind"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// APIKeyEnv names an environment variable holding the key.
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature"`
}

// RosterConfig lists the responders in preference order.
type RosterConfig struct {
	Primary   roster.Descriptor   `yaml:"primary"`
	Fallbacks []roster.Descriptor `yaml:"fallbacks"`
}

// Build returns the roster described by the config.
func (r RosterConfig) Build() (*roster.Roster, error) {
	return roster.New(r.Primary, r.Fallbacks...)
}

// AgentConfig shapes the responder.
type AgentConfig struct {
	// Owner fills the {{.owner}} placeholder of the instruction.
	Owner           string `yaml:"owner"`
	Instruction     string `yaml:"instruction"`
	MaxHistoryTurns int    `yaml:"max_history_turns"`
	MaxModelCalls   int    `yaml:"max_model_calls"`
}

// DispatchConfig controls retries.
type DispatchConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffUnit time.Duration `yaml:"backoff_unit"`
	BackoffCap  int           `yaml:"backoff_cap"`
}

// RunnerConfig bounds background work.
type RunnerConfig struct {
	MaxConcurrent int           `yaml:"max_concurrent"`
	Timeout       time.Duration `yaml:"timeout"`
}

// PortfolioConfig configures the content source.
type PortfolioConfig struct {
	// DSN of the sqlite database served under /api (empty = don't serve).
	DSN string `yaml:"dsn"`
	// APIBaseURL is where the tools fetch content from; empty disables them.
	APIBaseURL string        `yaml:"api_base_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// TranscriptionConfig configures voice notes.
type TranscriptionConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

// HealthConfig configures the upstream probe.
type HealthConfig struct {
	Enabled  bool            `yaml:"enabled"`
	Schedule string          `yaml:"schedule"`
	Targets  []health.Target `yaml:"targets"`
}

// ConsoleConfig configures the websocket console.
type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file from path and returns a validated Config.
// An empty path yields the defaults plus environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	return parse(data, os.Getenv)
}

func parse(data []byte, getenv func(string) string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv(getenv)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in the values of the reference deployment: Groq
// primary llama-3.3-70b-versatile with two smaller fallbacks.
func (c *Config) applyDefaults() {
	if c.AppName == "" {
		c.AppName = "blog_assistant_app"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Telegram.WebhookPath == "" {
		c.Telegram.WebhookPath = "/webhook"
	}
	if c.Telegram.APIBaseURL == "" {
		c.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if len(c.Providers) == 0 {
		c.Providers = map[string]Provider{
			"groq": {Kind: KindOpenAI, BaseURL: "https://api.groq.com/openai/v1/", APIKeyEnv: "GROQ_API_KEY"},
		}
	}
	for name, p := range c.Providers {
		if p.Kind == "" {
			p.Kind = KindOpenAI
		}
		if p.Kind == KindAnthropic && p.APIKeyEnv == "" {
			p.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
		c.Providers[name] = p
	}
	if c.Roster.Primary.Name == "" {
		c.Roster.Primary = roster.Descriptor{Name: "llama-3.3-70b-versatile", Provider: "groq"}
		if c.Roster.Fallbacks == nil {
			c.Roster.Fallbacks = []roster.Descriptor{
				{Name: "llama3-8b-8192", Provider: "groq"},
				{Name: "gemma2-9b-it", Provider: "groq"},
			}
		}
	}
	defaultDescriptor(&c.Roster.Primary)
	for i := range c.Roster.Fallbacks {
		defaultDescriptor(&c.Roster.Fallbacks[i])
	}
	if c.Agent.MaxModelCalls == 0 {
		c.Agent.MaxModelCalls = 8
	}
	if c.Dispatch.MaxAttempts == 0 {
		c.Dispatch.MaxAttempts = 6
	}
	if c.Dispatch.BackoffUnit == 0 {
		c.Dispatch.BackoffUnit = time.Second
	}
	if c.Dispatch.BackoffCap == 0 {
		c.Dispatch.BackoffCap = 20
	}
	if c.Runner.MaxConcurrent == 0 {
		c.Runner.MaxConcurrent = 16
	}
	if c.Portfolio.Timeout == 0 {
		c.Portfolio.Timeout = 30 * time.Second
	}
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = "groq"
	}
	if c.Transcription.Model == "" {
		c.Transcription.Model = "whisper-large-v3"
	}
	if c.Health.Schedule == "" {
		c.Health.Schedule = health.DefaultSchedule
	}
	if c.Health.Targets == nil {
		c.Health.Targets = health.DefaultTargets
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func defaultDescriptor(d *roster.Descriptor) {
	if d.MaxOutputTokens == 0 {
		d.MaxOutputTokens = 256
	}
	if d.Timeout == 0 {
		d.Timeout = 30 * time.Second
	}
}

// applyEnv lets the environment override secrets and deployment URLs.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	set(&c.Telegram.WebhookSecret, "WEBHOOK_SECRET")
	set(&c.Telegram.PublicBaseURL, "PUBLIC_BASE_URL")
	set(&c.Server.Addr, "MESHBOT_ADDR")
	set(&c.Log.Level, "LOG_LEVEL")

	if v := strings.TrimSpace(getenv("TELEGRAM_OWNER_CHAT_ID")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.OwnerChatID = id
		}
	}

	for name, p := range c.Providers {
		if p.APIKey == "" && p.APIKeyEnv != "" {
			p.APIKey = strings.TrimSpace(getenv(p.APIKeyEnv))
		}
		c.Providers[name] = p
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string

	for name, p := range c.Providers {
		switch p.Kind {
		case KindOpenAI, KindAnthropic, KindMock:
		default:
			errs = append(errs, fmt.Sprintf("providers.%s.kind %q is not one of openai, anthropic, mock", name, p.Kind))
		}
	}

	descriptors := append([]roster.Descriptor{c.Roster.Primary}, c.Roster.Fallbacks...)
	seen := make(map[string]bool, len(descriptors))
	for i, d := range descriptors {
		field := "roster.primary"
		if i > 0 {
			field = fmt.Sprintf("roster.fallbacks[%d]", i-1)
		}
		if d.Name == "" {
			errs = append(errs, field+".name is required")
			continue
		}
		if seen[d.Name] {
			errs = append(errs, fmt.Sprintf("%s.name %q is duplicated", field, d.Name))
		}
		seen[d.Name] = true
		if _, ok := c.Providers[d.Provider]; !ok {
			errs = append(errs, fmt.Sprintf("%s.provider %q is not configured", field, d.Provider))
		}
		if d.Timeout < 0 {
			errs = append(errs, field+".timeout must not be negative")
		}
	}

	if c.Dispatch.MaxAttempts < 0 {
		errs = append(errs, "dispatch.max_attempts must not be negative")
	}
	if c.Dispatch.BackoffUnit < 0 {
		errs = append(errs, "dispatch.backoff_unit must not be negative")
	}
	if c.Runner.MaxConcurrent < 0 {
		errs = append(errs, "runner.max_concurrent must not be negative")
	}
	if c.Telegram.WebhookSecret != "" && !validSecret(c.Telegram.WebhookSecret) {
		errs = append(errs, "telegram.webhook_secret may only contain A-Z, a-z, 0-9, _ and - (1-256 chars)")
	}
	if !strings.HasPrefix(c.Telegram.WebhookPath, "/") {
		errs = append(errs, "telegram.webhook_path must start with /")
	}
	if c.Transcription.Enabled {
		if p, ok := c.Providers[c.Transcription.Provider]; !ok || p.Kind != KindOpenAI {
			errs = append(errs, fmt.Sprintf("transcription.provider %q must be a configured openai provider", c.Transcription.Provider))
		}
	}
	if c.Health.Enabled {
		if err := health.ValidateSchedule(c.Health.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("health.schedule %q: %v", c.Health.Schedule, err))
		}
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is not one of json, text", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validSecret mirrors the character set Telegram accepts for secret_token.
func validSecret(s string) bool {
	if len(s) > 256 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// RequireTelegram reports missing settings needed to serve the webhook.
func (c *Config) RequireTelegram() error {
	var errs []string
	if c.Telegram.Token == "" {
		errs = append(errs, "telegram.token (or TELEGRAM_BOT_TOKEN) is required")
	}
	if c.Telegram.WebhookSecret == "" {
		errs = append(errs, "telegram.webhook_secret (or WEBHOOK_SECRET) is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
