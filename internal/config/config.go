package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins string // comma-separated; "*" allows any origin
}

type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout string
}

type StorageConfig struct {
	DataDir string
	DSN     string // postgres:// URL or SQLite data dir; defaults to DataDir
}

type LogConfig struct {
	Level       string
	FailureFile string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           5000,
			AllowedOrigins: "*",
		},
		LLM: LLMConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.3-70b-versatile",
			Timeout: "60s",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON config file, a .env file in the
// working directory, and environment variables, in increasing priority.
// Variables already present in the environment are never overwritten by
// .env entries.
//
// A missing API key is not an error: the server still starts and every
// generation fails upstream. Use HasAPIKey to warn about it.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), ".env")
}

func loadWith(b ConfigBackend, envFile string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "[WARN] could not load %s: %v\n", envFile, err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = cfg.Storage.DataDir
	}
	if cfg.Log.FailureFile == "" {
		cfg.Log.FailureFile = filepath.Join(cfg.Storage.DataDir, "server_error.log")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("invalid server.port %d", cfg.Server.Port)
	}

	return cfg, nil
}

// HasAPIKey reports whether a completion service API key is configured.
func (c Config) HasAPIKey() bool {
	return c.LLM.APIKey != ""
}

// Addr returns the host:port the HTTP server listens on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
