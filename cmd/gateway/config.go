// In file: cmd/gateway/config.go
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/dileep-u-k/tool-router/internal/llm"
	"github.com/dileep-u-k/tool-router/internal/logger"
	"github.com/dileep-u-k/tool-router/internal/sandbox"
	"github.com/dileep-u-k/tool-router/internal/tools"
)

const defaultConfigPath = "config.yaml"

// AppConfig holds all configuration for the gateway, loaded from config.yaml and the environment.
type AppConfig struct {
	Port              string               `yaml:"port"`
	Logging           logger.Config        `yaml:"logging"`
	SelectionProvider string               `yaml:"selection_provider"`
	Providers         []llm.ProviderConfig `yaml:"providers"`
	Bindings          BindingConfig        `yaml:"bindings"`
	Router            RouterConfig         `yaml:"router"`
	Sandbox           sandbox.Config       `yaml:"sandbox"`
	Files             tools.FileConfig     `yaml:"files"`
	Database          tools.DatabaseConfig `yaml:"database"`
	APICall           tools.APICallConfig  `yaml:"api_call"`
	ActionTimeout     time.Duration        `yaml:"action_timeout"`
	TextGeneration    TextGenerationConfig `yaml:"text_generation"`
	Redis             RedisConfig          `yaml:"redis"`
	HealthCheck       HealthCheckConfig    `yaml:"health_check"`
}

// BindingConfig maps tools and categories to the provider that confirms them.
type BindingConfig struct {
	Tools      map[string]string `yaml:"tools"`
	Categories map[string]string `yaml:"categories"`
}

// RouterConfig is the YAML form of dispatch.Config.
type RouterConfig struct {
	SystemPrompt   string        `yaml:"system_prompt"`
	SelectTimeout  time.Duration `yaml:"select_timeout"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	RequireTool    bool          `yaml:"require_tool"`
}

// TextGenerationConfig names the provider that backs TextGenerationTool.
// An empty Provider falls back to the selection provider.
type TextGenerationConfig struct {
	Provider string `yaml:"provider"`
}

// RedisConfig points at the Redis instance backing the provider profiler.
// An empty Addr disables profiling.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// HealthCheckConfig controls the background provider probes.
type HealthCheckConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Schedule    string        `yaml:"schedule"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
	Prompt      string        `yaml:"prompt"`
}

func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Port:    "8080",
		Logging: logger.DefaultConfig(),
		Router: RouterConfig{
			SelectTimeout:  30 * time.Second,
			ConfirmTimeout: 30 * time.Second,
			RequireTool:    true,
		},
		Sandbox: sandbox.DefaultConfig(),
		Files:   tools.FileConfig{Root: "./data/files"},
		Database: tools.DatabaseConfig{
			AllowedDrivers: []string{tools.DriverSQLite},
			MaxRows:        50,
			Root:           "./data/db",
		},
		APICall:       tools.APICallConfig{Timeout: 15 * time.Second},
		ActionTimeout: 60 * time.Second,
		Redis:         RedisConfig{Prefix: "toolrouter"},
		HealthCheck: HealthCheckConfig{
			Enabled:     true,
			Schedule:    "@every 5m",
			Timeout:     30 * time.Second,
			Concurrency: 4,
			Prompt:      "What is the capital of India?",
		},
	}
}

// LoadConfig loads all configuration from a .env file, environment variables, and config.yaml.
func LoadConfig() (*AppConfig, error) {
	// In release mode the environment is provided directly by the container runtime.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Warn().Msg("No .env file found for local development.")
		}
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	cfg, err := parseConfig(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseConfig decodes YAML over the defaults.
func parseConfig(raw []byte) (*AppConfig, error) {
	cfg := defaultAppConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills secrets and deployment overrides from the environment.
func applyEnv(cfg *AppConfig) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if p := os.Getenv("SELECTION_PROVIDER"); p != "" {
		cfg.SelectionProvider = p
	}

	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.APIKeyEnv == "" {
			p.APIKeyEnv = strings.ToUpper(p.KindOrName()) + "_API_KEY"
		}
		p.APIKey = os.Getenv(p.APIKeyEnv)
	}
}

func (c *AppConfig) validate() error {
	if len(c.Providers) == 0 {
		return errors.New("config: at least one provider is required")
	}
	if c.SelectionProvider == "" {
		return errors.New("config: selection_provider is required")
	}
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			return errors.New("config: every provider needs a name")
		}
		if seen[p.Name] {
			return fmt.Errorf("config: provider %q is declared twice", p.Name)
		}
		seen[p.Name] = true
	}
	if !seen[c.SelectionProvider] {
		return fmt.Errorf("config: selection_provider %q is not a declared provider", c.SelectionProvider)
	}
	if c.TextGeneration.Provider != "" && !seen[c.TextGeneration.Provider] {
		return fmt.Errorf("config: text_generation provider %q is not a declared provider", c.TextGeneration.Provider)
	}
	return nil
}

// textGenerationProvider returns the provider that backs TextGenerationTool.
func (c *AppConfig) textGenerationProvider() string {
	if c.TextGeneration.Provider != "" {
		return c.TextGeneration.Provider
	}
	return c.SelectionProvider
}
