package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const appName = "vibe-llm"

type Config struct {
	Provider     string           `mapstructure:"provider" yaml:"provider"`
	Vibe         VibeConfig       `mapstructure:"vibe" yaml:"vibe"`
	Normalize    NormalizeConfig  `mapstructure:"normalize" yaml:"normalize"`
	Serve        ServeConfig      `mapstructure:"serve" yaml:"serve"`
	Theme        ThemeConfig      `mapstructure:"theme" yaml:"theme"`
	Log          LogConfig        `mapstructure:"log" yaml:"log"`
	Speech       SpeechConfig     `mapstructure:"speech" yaml:"speech"`
	Session      SessionConfig    `mapstructure:"session" yaml:"session"`
	Anthropic    ProviderConfig   `mapstructure:"anthropic" yaml:"anthropic"`
	OpenAI       ProviderConfig   `mapstructure:"openai" yaml:"openai"`
	Gemini       ProviderConfig   `mapstructure:"gemini" yaml:"gemini"`
	Groq         ProviderConfig   `mapstructure:"groq" yaml:"groq"`
	OpenRouter   OpenRouterConfig `mapstructure:"openrouter" yaml:"openrouter"`
	Ollama       ProviderConfig   `mapstructure:"ollama" yaml:"ollama"`
	OpenAICompat ProviderConfig   `mapstructure:"openai-compat" yaml:"openai-compat"`
}

// ProviderConfig holds the connection settings shared by every provider.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model   string `mapstructure:"model" yaml:"model,omitempty"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

type OpenRouterConfig struct {
	ProviderConfig `mapstructure:",squash" yaml:",inline"`

	AppURL   string `mapstructure:"app_url" yaml:"app_url,omitempty"`
	AppTitle string `mapstructure:"app_title" yaml:"app_title,omitempty"`
}

// VibeConfig configures a conversation turn.
type VibeConfig struct {
	Instructions    string        `mapstructure:"instructions" yaml:"instructions,omitempty"` // replaces the built-in system prompt
	Debounce        time.Duration `mapstructure:"debounce" yaml:"debounce"`                   // quiet period before a reply is normalized
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`                     // per-turn deadline
	Apology         string        `mapstructure:"apology" yaml:"apology,omitempty"`           // assistant turn shown when a turn fails
	Temperature     float32       `mapstructure:"temperature" yaml:"temperature,omitempty"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens" yaml:"max_output_tokens,omitempty"`
}

// NormalizeConfig sets the reasoning delimiters stripped from replies.
type NormalizeConfig struct {
	ReasoningOpen  string `mapstructure:"reasoning_open" yaml:"reasoning_open"`
	ReasoningClose string `mapstructure:"reasoning_close" yaml:"reasoning_close"`
}

// ServeConfig configures the local web front-end.
type ServeConfig struct {
	Host  string `mapstructure:"host" yaml:"host"`
	Port  int    `mapstructure:"port" yaml:"port"`
	Token string `mapstructure:"token" yaml:"token,omitempty"` // optional bearer token for the API
}

// ThemeConfig allows customization of UI colors
// Colors can be ANSI color numbers (0-255) or hex codes (#RRGGBB)
type ThemeConfig struct {
	Preset    string `mapstructure:"preset" yaml:"preset,omitempty"` // named palette; fields below override it
	Primary   string `mapstructure:"primary" yaml:"primary,omitempty"`
	Secondary string `mapstructure:"secondary" yaml:"secondary,omitempty"`
	Success   string `mapstructure:"success" yaml:"success,omitempty"`
	Error     string `mapstructure:"error" yaml:"error,omitempty"`
	Muted     string `mapstructure:"muted" yaml:"muted,omitempty"`
	Text      string `mapstructure:"text" yaml:"text,omitempty"`
	Code      string `mapstructure:"code" yaml:"code,omitempty"` // chroma style name
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file,omitempty"`
}

// SpeechConfig configures read-aloud. An empty command picks the first available TTS tool.
type SpeechConfig struct {
	Command string  `mapstructure:"command" yaml:"command,omitempty"`
	Rate    float64 `mapstructure:"rate" yaml:"rate"`
	Lang    string  `mapstructure:"lang" yaml:"lang"`
}

// SessionConfig controls the in-memory transcript index behind /search.
type SessionConfig struct {
	Search bool `mapstructure:"search" yaml:"search"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "groq")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("openai.model", "gpt-4.1-mini")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("groq.model", "qwen-qwq-32b")
	v.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("openrouter.model", "qwen/qwq-32b")
	v.SetDefault("openrouter.app_url", "https://github.com/samsaffron/vibe-llm")
	v.SetDefault("openrouter.app_title", appName)
	v.SetDefault("ollama.base_url", "http://localhost:11434/v1")

	v.SetDefault("vibe.debounce", 500*time.Millisecond)
	v.SetDefault("vibe.timeout", 30*time.Second)
	v.SetDefault("vibe.apology", "Oops! Something went wrong with vibe coding...")

	v.SetDefault("normalize.reasoning_open", "<think>")
	v.SetDefault("normalize.reasoning_close", "</think>")

	v.SetDefault("serve.host", "127.0.0.1")
	v.SetDefault("serve.port", 8787)

	v.SetDefault("log.level", "info")

	v.SetDefault("speech.rate", 1.2)
	v.SetDefault("speech.lang", "en-US")

	v.SetDefault("session.search", true)
}

// Load reads the config file (if any), VIBE_* environment overrides and defaults.
func Load() (*Config, error) {
	configPath, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}
	return LoadFrom(configPath)
}

// LoadFrom is Load with an explicit config directory.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AddConfigPath(".")
	v.SetEnvPrefix("VIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.resolveCredentials()
	return &cfg, nil
}

// Default returns the built-in configuration without reading any file or environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults alone always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// resolveCredentials expands ${VAR} references and falls back to the providers'
// conventional environment variables.
func (c *Config) resolveCredentials() {
	resolveProvider(&c.Anthropic, "ANTHROPIC_API_KEY")
	resolveProvider(&c.OpenAI, "OPENAI_API_KEY")
	resolveProvider(&c.Gemini, "GEMINI_API_KEY")
	resolveProvider(&c.Groq, "GROQ_API_KEY")
	resolveProvider(&c.OpenRouter.ProviderConfig, "OPENROUTER_API_KEY")
	resolveProvider(&c.Ollama, "OLLAMA_API_KEY")
	resolveProvider(&c.OpenAICompat, "")
	c.OpenRouter.AppURL = expandEnv(c.OpenRouter.AppURL)
	c.OpenRouter.AppTitle = expandEnv(c.OpenRouter.AppTitle)
	c.Serve.Token = expandEnv(c.Serve.Token)
}

func resolveProvider(cfg *ProviderConfig, envKey string) {
	cfg.APIKey = expandEnv(cfg.APIKey)
	if cfg.APIKey == "" && envKey != "" {
		cfg.APIKey = os.Getenv(envKey)
	}
	cfg.BaseURL = expandEnv(cfg.BaseURL)
}

// ProviderSettings returns the connection settings for a provider name.
func (c *Config) ProviderSettings(name string) (ProviderConfig, bool) {
	switch name {
	case "anthropic":
		return c.Anthropic, true
	case "openai":
		return c.OpenAI, true
	case "gemini":
		return c.Gemini, true
	case "groq":
		return c.Groq, true
	case "openrouter":
		return c.OpenRouter.ProviderConfig, true
	case "ollama":
		return c.Ollama, true
	case "openai-compat":
		return c.OpenAICompat, true
	case "mock":
		return ProviderConfig{}, true
	}
	return ProviderConfig{}, false
}

// ProviderNames lists the providers the factory understands.
func ProviderNames() []string {
	return []string{"anthropic", "openai", "gemini", "groq", "openrouter", "ollama", "openai-compat", "mock"}
}

// ApplyOverrides applies provider and model overrides to the config.
// If provider is non-empty, it overrides the global provider.
// If model is non-empty, it overrides the model for the active provider.
func (c *Config) ApplyOverrides(provider, model string) {
	if provider != "" {
		c.Provider = provider
	}
	if model != "" {
		switch c.Provider {
		case "anthropic":
			c.Anthropic.Model = model
		case "openai":
			c.OpenAI.Model = model
		case "gemini":
			c.Gemini.Model = model
		case "groq":
			c.Groq.Model = model
		case "openrouter":
			c.OpenRouter.Model = model
		case "ollama":
			c.Ollama.Model = model
		case "openai-compat":
			c.OpenAICompat.Model = model
		}
	}
}

// Save writes cfg as YAML to path, creating the directory if needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// Redacted returns a copy of cfg with API keys and tokens masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	for _, p := range []*ProviderConfig{&out.Anthropic, &out.OpenAI, &out.Gemini, &out.Groq, &out.OpenRouter.ProviderConfig, &out.Ollama, &out.OpenAICompat} {
		p.APIKey = mask(p.APIKey)
	}
	out.Serve.Token = mask(out.Serve.Token)
	return &out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// GetConfigDir returns the XDG config directory for vibe-llm.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config
func GetConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, appName), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", appName), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// GetStateDir returns the XDG state directory for vibe-llm, where logs go.
// Uses $XDG_STATE_HOME if set, otherwise ~/.local/state
func GetStateDir() string {
	if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
		return filepath.Join(xdgState, appName)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(homeDir, ".local", "state", appName)
}

// Exists returns true if a config file exists
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
