package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds application configuration.
// Values come from baseDir/config.yaml when present; environment variables
// always take precedence over the file.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	LLM         LLMConfig         `yaml:"llm"`
	Redis       RedisConfig       `yaml:"redis"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         LogConfig         `yaml:"log"`
	Progression ProgressionConfig `yaml:"progression"`
	Insights    InsightsConfig    `yaml:"insights"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `yaml:"disabled_tools" env:"GROVE_DISABLED_TOOLS" env-separator:","`

	// DisabledTypes is a list of type names to disable entirely.
	// All tools belonging to disabled types are excluded from registration.
	DisabledTypes []string `yaml:"disabled_types" env:"GROVE_DISABLED_TYPES" env-separator:","`
}

// DatabaseConfig selects and tunes the relational store.
type DatabaseConfig struct {
	// Driver is "sqlite" (file under the base directory) or "postgres".
	Driver string `yaml:"driver" env:"GROVE_DB_DRIVER" env-default:"sqlite"`
	// URL is the postgres connection string. Ignored for sqlite.
	URL string `yaml:"url" env:"DATABASE_URL"`

	// MaxOpenConns limits open connections. 0 means use the sql.DB default.
	MaxOpenConns int `yaml:"max_open_conns" env:"GROVE_DB_MAX_OPEN_CONNS"`
	// MaxIdleConns limits idle connections. 0 means use the sql.DB default.
	MaxIdleConns int `yaml:"max_idle_conns" env:"GROVE_DB_MAX_IDLE_CONNS"`
}

// LLMConfig configures the model behind the classifier, quest writer and narrator.
type LLMConfig struct {
	// Provider is "anthropic", "openai" or "none". With "none" every
	// model-backed step uses its deterministic fallback.
	Provider  string        `yaml:"provider" env:"GROVE_LLM_PROVIDER" env-default:"none"`
	Model     string        `yaml:"model" env:"GROVE_LLM_MODEL"`
	Endpoint  string        `yaml:"endpoint" env:"GROVE_LLM_ENDPOINT"`
	APIKey    string        `yaml:"-" env:"GROVE_LLM_API_KEY"`
	Timeout   time.Duration `yaml:"timeout" env:"GROVE_LLM_TIMEOUT" env-default:"30s"`
	MaxTokens int           `yaml:"max_tokens" env:"GROVE_LLM_MAX_TOKENS" env-default:"1024"`
}

// RedisConfig configures the projection cache. An empty Addr selects the
// in-process cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"GROVE_REDIS_ADDR"`
	Password string        `yaml:"-" env:"GROVE_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"GROVE_REDIS_DB"`
	TTL      time.Duration `yaml:"ttl" env:"GROVE_CACHE_TTL" env-default:"10m"`
}

// MetricsConfig configures the Prometheus listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"GROVE_METRICS_ADDR"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `yaml:"level" env:"GROVE_LOG_LEVEL" env-default:"info"`
}

// ProgressionConfig tunes XP awards and quest selection.
type ProgressionConfig struct {
	// QuestPriority orders categories when choosing a milestone quest template.
	QuestPriority []string `yaml:"quest_priority" env:"GROVE_QUEST_PRIORITY" env-separator:"," env-default:"Romantic,Mentor,Emotional Support,Friend,Business,Intellectual"`
	// CASMaxRetries bounds the compare-and-set retry loop for XP awards.
	CASMaxRetries int `yaml:"cas_max_retries" env:"GROVE_CAS_MAX_RETRIES" env-default:"5"`
	// QuestRewardXP is awarded for completing a regular quest.
	QuestRewardXP int `yaml:"quest_reward_xp" env:"GROVE_QUEST_REWARD_XP" env-default:"2"`
	// MilestoneQuestRewardXP is awarded for completing a milestone quest.
	MilestoneQuestRewardXP int `yaml:"milestone_quest_reward_xp" env:"GROVE_MILESTONE_QUEST_REWARD_XP" env-default:"3"`
}

// InsightsConfig configures stored insight snapshots.
type InsightsConfig struct {
	// MaxAge is how long a snapshot is served before it is reported stale.
	MaxAge time.Duration `yaml:"max_age" env:"GROVE_INSIGHTS_MAX_AGE" env-default:"24h"`
}

// DefaultConfig returns the default configuration.
// Keep in sync with the env-default tags above.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: "sqlite"},
		LLM: LLMConfig{
			Provider:  "none",
			Timeout:   30 * time.Second,
			MaxTokens: 1024,
		},
		Redis: RedisConfig{TTL: 10 * time.Minute},
		Log:   LogConfig{Level: "info"},
		Progression: ProgressionConfig{
			QuestPriority:          []string{"Romantic", "Mentor", "Emotional Support", "Friend", "Business", "Intellectual"},
			CASMaxRetries:          5,
			QuestRewardXP:          2,
			MilestoneQuestRewardXP: 3,
		},
		Insights: InsightsConfig{MaxAge: 24 * time.Hour},
	}
}

// Load loads configuration from baseDir/config.yaml and the environment.
// A missing file is not an error: environment and defaults still apply.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.grove.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.yaml"))
}

// loadFile reads configPath (if it exists) and then the environment.
func loadFile(configPath string) (*Config, error) {
	cfg := &Config{}

	_, statErr := os.Stat(configPath)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(configPath, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	case errors.Is(statErr, os.ErrNotExist):
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read config from environment: %w", err)
		}
	default:
		return nil, statErr
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerAPIKey(cfg.LLM.Provider)
	}
	cfg.DisabledTools = cleanStringSlice(cfg.DisabledTools)
	cfg.DisabledTypes = cleanStringSlice(cfg.DisabledTypes)
	cfg.Progression.QuestPriority = cleanStringSlice(cfg.Progression.QuestPriority)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot be served.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url (DATABASE_URL) is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q (want sqlite or postgres)", c.Database.Driver)
	}

	switch c.LLM.Provider {
	case "anthropic", "openai", "none":
	default:
		return fmt.Errorf("unknown llm provider %q (want anthropic, openai or none)", c.LLM.Provider)
	}

	if c.Progression.CASMaxRetries < 0 {
		return fmt.Errorf("progression.cas_max_retries must be non-negative")
	}
	if c.Progression.QuestRewardXP < 0 || c.Progression.MilestoneQuestRewardXP < 0 {
		return fmt.Errorf("quest rewards must be non-negative")
	}
	return nil
}

// providerAPIKey falls back to the vendor's conventional key variable.
func providerAPIKey(provider string) string {
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

// cleanStringSlice trims whitespace and removes empty and duplicate entries.
func cleanStringSlice(a []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
