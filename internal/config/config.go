// Package config provides configuration types and loading for majordomo.
package config

import (
	"path/filepath"
	"time"
)

// Config is the root configuration struct.
// Top-level groups: Paths, Model, Providers, Gateway, Notify, Trace, Calendar.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Model     ModelConfig     `json:"model"`
	Providers ProvidersConfig `json:"providers"`
	Gateway   GatewayConfig   `json:"gateway"`
	Notify    NotifyConfig    `json:"notify"`
	Trace     TraceConfig     `json:"trace"`
	Calendar  CalendarConfig  `json:"calendar"`
	Approval  ApprovalConfig  `json:"approval"`
}

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	Home         string `json:"home" envconfig:"HOME"`
	DatabasePath string `json:"databasePath" envconfig:"DATABASE_PATH"`
	OutboxDir    string `json:"outboxDir" envconfig:"OUTBOX_DIR"`
}

// ModelConfig groups LLM model settings for the deep-mode planner and the
// conversational responder.
type ModelConfig struct {
	Name        string  `json:"name" envconfig:"MODEL"`
	MaxTokens   int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
}

// ProvidersConfig contains LLM provider configurations.
type ProvidersConfig struct {
	OpenAI ProviderConfig `json:"openai"`
}

// ProviderConfig contains settings for a single LLM provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// GatewayConfig contains HTTP server settings.
type GatewayConfig struct {
	Host      string `json:"host" envconfig:"HOST"`
	Port      int    `json:"port" envconfig:"PORT"`
	AuthToken string `json:"authToken" envconfig:"AUTH_TOKEN"`
}

// NotifyConfig configures the Slack approval notifier.
type NotifyConfig struct {
	Enabled      bool   `json:"enabled" envconfig:"ENABLED"`
	SlackToken   string `json:"slackToken" envconfig:"SLACK_TOKEN"`
	SlackChannel string `json:"slackChannel" envconfig:"SLACK_CHANNEL"`
}

// TraceConfig configures the optional Kafka trace mirror.
type TraceConfig struct {
	MirrorEnabled bool   `json:"mirrorEnabled" envconfig:"MIRROR_ENABLED"`
	KafkaBrokers  string `json:"kafkaBrokers" envconfig:"KAFKA_BROKERS"`
	Topic         string `json:"topic" envconfig:"TOPIC"`
}

// CalendarConfig contains working-hours defaults for availability queries.
type CalendarConfig struct {
	Timezone          string `json:"timezone" envconfig:"TIMEZONE"`
	WorkingHoursStart string `json:"workingHoursStart" envconfig:"WORKING_HOURS_START"`
	WorkingHoursEnd   string `json:"workingHoursEnd" envconfig:"WORKING_HOURS_END"`
}

// ApprovalConfig contains approval lifecycle settings.
type ApprovalConfig struct {
	StalenessWindow time.Duration `json:"stalenessWindow" envconfig:"STALENESS_WINDOW"`
}

// DefaultConfig returns a Config with sensible defaults. Paths are resolved
// relative to the majordomo home at load time.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Home:         "~/" + ConfigDir,
			DatabasePath: filepath.Join("~/"+ConfigDir, "majordomo.db"),
			OutboxDir:    filepath.Join("~/"+ConfigDir, "outbox"),
		},
		Model: ModelConfig{
			Name:        "gpt-4o-mini",
			MaxTokens:   2048,
			Temperature: 0.3,
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1", // Secure default
			Port: 18890,
		},
		Trace: TraceConfig{
			Topic: "majordomo.traces",
		},
		Calendar: CalendarConfig{
			Timezone:          "Local",
			WorkingHoursStart: "09:00",
			WorkingHoursEnd:   "17:00",
		},
		Approval: ApprovalConfig{
			StalenessWindow: 7 * 24 * time.Hour,
		},
	}
}
