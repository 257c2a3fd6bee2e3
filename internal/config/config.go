// Package config holds diagrambot configuration: file-backed preferences,
// the embedded system prompt, and the token price tables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ErrMissingAPIKey is returned when no OpenAI API key can be found anywhere.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set (export it, add it to .env, or run `diagrambot setup`)")

// Config holds all diagrambot configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	OpenAI     OpenAIConfig     `toml:"openai"`
	Chat       ChatConfig       `toml:"chat"`
	Voice      VoiceConfig      `toml:"voice"`
	Server     ServerConfig     `toml:"server"`
	Appearance AppearanceConfig `toml:"appearance"`
	Pricing    PricingOverrides `toml:"pricing"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	Debug      bool   `toml:"debug"`
	PromptFile string `toml:"prompt_file,omitempty"`
}

// OpenAIConfig holds API credentials and endpoint overrides.
type OpenAIConfig struct {
	APIKey  string `toml:"api_key,omitempty"`
	BaseURL string `toml:"base_url,omitempty"`
}

// ChatConfig holds settings for the text chat pipeline.
type ChatConfig struct {
	Model string `toml:"model"`
}

// VoiceConfig holds settings for the realtime voice pipeline.
type VoiceConfig struct {
	Model      string  `toml:"model"`
	Voice      string  `toml:"voice"`
	Speed      float64 `toml:"speed"`
	PriceTable string  `toml:"price_table"`
}

// ServerConfig holds the browser-facing server settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// AppearanceConfig holds TUI theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// PricingOverrides allows user-defined per-category prices for a table.
// Keys are table names, values map token categories to USD per million tokens.
type PricingOverrides struct {
	Overrides map[string]map[string]float64 `toml:"overrides,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Chat: ChatConfig{
			Model: "gpt-4o",
		},
		Voice: VoiceConfig{
			Model:      "gpt-realtime",
			Voice:      "cedar",
			Speed:      1.1,
			PriceTable: TableGPT4Realtime,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8410",
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// Dir returns the XDG-compliant config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "diagrambot")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "diagrambot")
}

// Path returns the full path to the config file.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
// TOML pricing overrides are applied to the in-process price tables here,
// once; tables are read-only afterwards.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	applyPricingOverrides(cfg.Pricing)
	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	if err := os.MkdirAll(Dir(), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(Path(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

// GetAPIKey returns the OpenAI API key from env var or config, in that order.
func GetAPIKey(cfg Config) string {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	return cfg.OpenAI.APIKey
}

// RequireAPIKey returns the API key or ErrMissingAPIKey.
// Called before any UI is served; a missing credential is fatal at startup.
func RequireAPIKey(cfg Config) (string, error) {
	key := GetAPIKey(cfg)
	if key == "" {
		return "", ErrMissingAPIKey
	}
	return key, nil
}

// DataDir returns the directory for the sqlite history database.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "diagrambot")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "diagrambot")
}
