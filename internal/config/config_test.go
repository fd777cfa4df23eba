package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// clearEnv blanks every env var the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func writeTempConfig(t *testing.T, content string) *fileBackend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return newFileBackend(path)
}

// TestDefaults verifies all default values are applied when loading an empty config file.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{}`)

	cfg, err := loadWith(b, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.LLM.BaseURL != "https://api.groq.com/openai/v1" {
		t.Errorf("LLM.BaseURL = %q", cfg.LLM.BaseURL)
	}
	if cfg.LLM.Model != "llama-3.3-70b-versatile" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.Storage.DSN != cfg.Storage.DataDir {
		t.Errorf("Storage.DSN = %q, want data dir %q", cfg.Storage.DSN, cfg.Storage.DataDir)
	}
	wantLog := filepath.Join(cfg.Storage.DataDir, "server_error.log")
	if cfg.Log.FailureFile != wantLog {
		t.Errorf("Log.FailureFile = %q, want %q", cfg.Log.FailureFile, wantLog)
	}
}

// TestMissingAPIKeyIsNotFatal verifies that startup is not refused without a key.
func TestMissingAPIKeyIsNotFatal(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{}`)

	cfg, err := loadWith(b, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HasAPIKey() {
		t.Error("HasAPIKey() = true, want false")
	}
}

// TestFileValues verifies that keys are read from the JSON config file.
func TestFileValues(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{
		"server.port": 7000,
		"server.host": "0.0.0.0",
		"llm.model": "mixtral-8x7b-32768",
		"storage.data_dir": "/tmp/uigen-test",
		"log.level": "debug"
	}`)

	cfg, err := loadWith(b, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Addr() != "0.0.0.0:7000" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if cfg.LLM.Model != "mixtral-8x7b-32768" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.Storage.DataDir != "/tmp/uigen-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

// TestSecretsIgnoredInFile verifies the API key is never taken from the config file.
func TestSecretsIgnoredInFile(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{"llm.api_key": "file-key"}`)

	cfg, err := loadWith(b, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.APIKey != "" {
		t.Errorf("LLM.APIKey = %q, want empty", cfg.LLM.APIKey)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{"server.port": 7000, "llm.model": "file-model"}`)

	t.Setenv("PORT", "8080")
	t.Setenv("UIGEN_LLM_MODEL", "env-model")
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("UIGEN_STORAGE_DSN", "postgres://localhost/uigen")

	cfg, err := loadWith(b, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.LLM.Model != "env-model" {
		t.Errorf("LLM.Model = %q, want env-model", cfg.LLM.Model)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("LLM.APIKey = %q, want env-key", cfg.LLM.APIKey)
	}
	if cfg.Storage.DSN != "postgres://localhost/uigen" {
		t.Errorf("Storage.DSN = %q", cfg.Storage.DSN)
	}
}

// TestInvalidEnvIntKeepsDefault verifies unparsable integers fall back.
func TestInvalidEnvIntKeepsDefault(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{}`)
	t.Setenv("PORT", "not-a-number")

	cfg, err := loadWith(b, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
}

func TestInvalidPort(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{"server.port": 70000}`)

	if _, err := loadWith(b, ""); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

// TestDotEnv verifies .env values apply but never beat the real environment.
func TestDotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv only fills variables that are absent, so unset the ones the
	// file provides and restore afterwards.
	for _, k := range []string{"UIGEN_LLM_MODEL", "OPENAI_API_KEY"} {
		os.Unsetenv(k)
		k := k
		t.Cleanup(func() { os.Unsetenv(k) })
	}
	t.Setenv("UIGEN_LLM_BASE_URL", "http://from-env")

	envFile := filepath.Join(t.TempDir(), ".env")
	content := "OPENAI_API_KEY=dotenv-key\nUIGEN_LLM_MODEL=dotenv-model\nUIGEN_LLM_BASE_URL=http://from-dotenv\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadWith(writeTempConfig(t, `{}`), envFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.APIKey != "dotenv-key" {
		t.Errorf("LLM.APIKey = %q, want dotenv-key", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "dotenv-model" {
		t.Errorf("LLM.Model = %q, want dotenv-model", cfg.LLM.Model)
	}
	if cfg.LLM.BaseURL != "http://from-env" {
		t.Errorf("LLM.BaseURL = %q, want http://from-env", cfg.LLM.BaseURL)
	}
}

func TestMissingDotEnvIsIgnored(t *testing.T) {
	clearEnv(t)
	if _, err := loadWith(writeTempConfig(t, `{}`), filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.LLM.APIKey = "super-secret"

	for _, k := range ShowAll(cfg) {
		if k.Key == "llm.api_key" || k.Key == "storage.dsn" {
			t.Errorf("ShowAll exposed secret key %q", k.Key)
		}
		if strings.Contains(k.Value, "super-secret") {
			t.Errorf("ShowAll exposed secret value under %q", k.Key)
		}
	}
}

func TestSetKey(t *testing.T) {
	b := newFileBackend(filepath.Join(t.TempDir(), "uigen", "config.json"))

	if err := setKeyWith(b, "server.port", "6000"); err != nil {
		t.Fatalf("setKeyWith: %v", err)
	}
	if err := setKeyWith(b, "llm.model", "other"); err != nil {
		t.Fatalf("setKeyWith: %v", err)
	}

	reloaded := newFileBackend(b.path)
	port, ok, err := reloaded.GetInt("server.port")
	if err != nil || !ok || port != 6000 {
		t.Errorf("server.port = %d (ok=%v, err=%v), want 6000", port, ok, err)
	}
	model, ok, err := reloaded.GetString("llm.model")
	if err != nil || !ok || model != "other" {
		t.Errorf("llm.model = %q (ok=%v, err=%v), want other", model, ok, err)
	}
}

func TestSetKeyErrors(t *testing.T) {
	b := newFileBackend(filepath.Join(t.TempDir(), "config.json"))

	tests := []struct {
		key, value, want string
	}{
		{"llm.api_key", "x", "cannot set secret"},
		{"server.port", "abc", "invalid integer"},
		{"nope.key", "x", "unknown config key"},
	}
	for _, tt := range tests {
		err := setKeyWith(b, tt.key, tt.value)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("setKeyWith(%q) error = %v, want it to contain %q", tt.key, err, tt.want)
		}
	}
}

func TestValidKeysExcludesSecrets(t *testing.T) {
	for _, k := range ValidKeys() {
		if k == "llm.api_key" || k == "storage.dsn" {
			t.Errorf("ValidKeys contains secret %q", k)
		}
	}
}
