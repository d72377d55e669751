package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := DefaultConfig()
	if cfg.Database.Driver != want.Database.Driver {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, want.Database.Driver)
	}
	if cfg.LLM.Provider != want.LLM.Provider {
		t.Errorf("LLM.Provider = %q, want %q", cfg.LLM.Provider, want.LLM.Provider)
	}
	if cfg.LLM.Timeout != want.LLM.Timeout {
		t.Errorf("LLM.Timeout = %v, want %v", cfg.LLM.Timeout, want.LLM.Timeout)
	}
	if cfg.Redis.TTL != want.Redis.TTL {
		t.Errorf("Redis.TTL = %v, want %v", cfg.Redis.TTL, want.Redis.TTL)
	}
	if cfg.Insights.MaxAge != want.Insights.MaxAge {
		t.Errorf("Insights.MaxAge = %v, want %v", cfg.Insights.MaxAge, want.Insights.MaxAge)
	}
	if !reflect.DeepEqual(cfg.Progression, want.Progression) {
		t.Errorf("Progression = %+v, want %+v", cfg.Progression, want.Progression)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `
progression:
  cas_max_retries: 2
  quest_priority: [Friend, " Mentor ", Friend]
insights:
  max_age: 12h
`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Progression.CASMaxRetries != 2 {
		t.Errorf("CASMaxRetries = %d, want 2", cfg.Progression.CASMaxRetries)
	}
	if got, want := cfg.Progression.QuestPriority, []string{"Friend", "Mentor"}; !reflect.DeepEqual(got, want) {
		t.Errorf("QuestPriority = %v, want %v", got, want)
	}
	if cfg.Insights.MaxAge != 12*time.Hour {
		t.Errorf("Insights.MaxAge = %v, want 12h", cfg.Insights.MaxAge)
	}
	// Fields absent from the file still get their defaults.
	if cfg.Progression.QuestRewardXP != 2 {
		t.Errorf("QuestRewardXP = %d, want 2", cfg.Progression.QuestRewardXP)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, "log:\n  level: debug\n")
	t.Setenv("GROVE_LOG_LEVEL", "warn")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, "progression: [not: a map")

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, "disabled_tools: [relationship_delete, \"\", interaction_delete]\n")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"relationship_delete", "interaction_delete"}
	if !reflect.DeepEqual(cfg.DisabledTools, want) {
		t.Errorf("DisabledTools = %v, want %v", cfg.DisabledTools, want)
	}
}

func TestLoad_ProviderAPIKeyFallback(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("GROVE_LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("LLM.APIKey = %q, want %q", cfg.LLM.APIKey, "sk-test")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"postgres without url", func(c *Config) { c.Database.Driver = "postgres" }, true},
		{"postgres with url", func(c *Config) {
			c.Database.Driver = "postgres"
			c.Database.URL = "postgres://localhost/grove"
		}, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "gemini" }, true},
		{"negative retries", func(c *Config) { c.Progression.CASMaxRetries = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCleanStringSlice(t *testing.T) {
	if got := cleanStringSlice([]string{" ", ""}); got != nil {
		t.Errorf("cleanStringSlice(blank) = %v, want nil", got)
	}
	got := cleanStringSlice([]string{"a", " b ", "a"})
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("cleanStringSlice() = %v", got)
	}
}
