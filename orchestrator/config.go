package orchestrator

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the process-level configuration for a forge orchestrator
// deployment: which provider backs which model tier, where durable state
// lives, and scheduler/observability toggles. Grounded on
// internal/config/config.go's nested-TOML-plus-env-override pattern,
// generalized from Oasis's single-bot config to the orchestrator's
// large/small model split (§6 `environment()`).
type Config struct {
	Provider ProviderConfig `toml:"provider"`
	Database DatabaseConfig `toml:"database"`
	Brain    BrainConfig    `toml:"brain"`
	Observer ObserverConfig `toml:"observer"`
}

type ProviderConfig struct {
	Name         string `toml:"name"` // "openai", "gemini", or any OpenAI-compatible name
	APIKey       string `toml:"api_key"`
	BaseURL      string `toml:"base_url"`
	LargeModelID string `toml:"large_model_id"`
	SmallModelID string `toml:"small_model_id"`
}

type DatabaseConfig struct {
	DumpPath string `toml:"dump_path"`
}

type BrainConfig struct {
	TimezoneOffset int    `toml:"timezone_offset"`
	WorkspacePath  string `toml:"workspace_path"`
	MaxIterations  int    `toml:"max_iterations"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with sensible defaults applied.
func Default() Config {
	return Config{
		Provider: ProviderConfig{Name: "openai", BaseURL: "https://api.openai.com/v1", LargeModelID: "gpt-4.1", SmallModelID: "gpt-4.1-mini"},
		Database: DatabaseConfig{DumpPath: "forge-orchestrator.db"},
		Brain:    BrainConfig{TimezoneOffset: 0, WorkspacePath: "."},
	}
}

// LoadConfig reads config: defaults -> TOML file at path -> env vars
// (env wins), mirroring internal/config.Load's precedence.
func LoadConfig(path string) Config {
	cfg := Default()
	if path == "" {
		path = "forge-orchestrator.toml"
	}
	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}
	if v := os.Getenv("FORGE_PROVIDER_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("FORGE_PROVIDER_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("FORGE_LARGE_MODEL_ID"); v != "" {
		cfg.Provider.LargeModelID = v
	}
	if v := os.Getenv("FORGE_SMALL_MODEL_ID"); v != "" {
		cfg.Provider.SmallModelID = v
	}
	if v := os.Getenv("FORGE_DUMP_PATH"); v != "" {
		cfg.Database.DumpPath = v
	}
	if os.Getenv("FORGE_OBSERVER_ENABLED") == "true" || os.Getenv("FORGE_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}
	return cfg
}
