package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MAJORDOMO_CONFIG", path)
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("MAJORDOMO_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateway.Host != "127.0.0.1" || cfg.Gateway.Port != 18890 {
		t.Fatalf("gateway defaults = %+v", cfg.Gateway)
	}
	if cfg.Approval.StalenessWindow != 7*24*time.Hour {
		t.Fatalf("staleness window = %v", cfg.Approval.StalenessWindow)
	}
	if cfg.Calendar.WorkingHoursStart != "09:00" {
		t.Fatalf("working hours = %+v", cfg.Calendar)
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	writeConfig(t, `{"gateway":{"port":9999,"authToken":"tok"},"model":{"name":"local-llm"}}`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateway.Port != 9999 || cfg.Gateway.AuthToken != "tok" {
		t.Fatalf("gateway = %+v", cfg.Gateway)
	}
	if cfg.Model.Name != "local-llm" {
		t.Fatalf("model = %+v", cfg.Model)
	}
	// Untouched groups keep their defaults.
	if cfg.Gateway.Host != "127.0.0.1" {
		t.Fatalf("host = %s", cfg.Gateway.Host)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	writeConfig(t, `{"gateway":{"port":9999}}`)
	t.Setenv("MAJORDOMO_GATEWAY_PORT", "7777")
	t.Setenv("MAJORDOMO_MODEL_MODEL", "env-model")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateway.Port != 7777 {
		t.Fatalf("port = %d, want env override", cfg.Gateway.Port)
	}
	if cfg.Model.Name != "env-model" {
		t.Fatalf("model = %s", cfg.Model.Name)
	}
}

func TestEnvSubstitutionInFile(t *testing.T) {
	t.Setenv("TEST_SLACK_TOKEN", "xoxb-123")
	writeConfig(t, `{"notify":{"enabled":true,"slackToken":"${TEST_SLACK_TOKEN}"}}`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Notify.SlackToken != "xoxb-123" {
		t.Fatalf("token = %q", cfg.Notify.SlackToken)
	}

	// Unknown variables are left as-is.
	writeConfig(t, `{"notify":{"slackToken":"${TEST_UNSET_VAR_XYZ}"}}`)
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Notify.SlackToken != "${TEST_UNSET_VAR_XYZ}" {
		t.Fatalf("token = %q", cfg.Notify.SlackToken)
	}
}

func TestOpenAIKeyFallback(t *testing.T) {
	t.Setenv("MAJORDOMO_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Providers.OpenAI.APIKey != "sk-test" {
		t.Fatalf("api key = %q", cfg.Providers.OpenAI.APIKey)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("MAJORDOMO_CONFIG", path)

	cfg := DefaultConfig()
	cfg.Gateway.Port = 4242
	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var onDisk Config
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if onDisk.Gateway.Port != 4242 {
		t.Fatalf("port = %d", onDisk.Gateway.Port)
	}
}
