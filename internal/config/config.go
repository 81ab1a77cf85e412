// Package config loads and saves the refinery configuration.
//
// The file lives at ~/.refinery/config.yaml. Environment variables override
// file values, and a .env file in the working directory is read first.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all refinery configuration.
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	LLM     LLMConfig     `yaml:"llm"`
	Logging LoggingConfig `yaml:"logging"`
}

// ClientConfig configures the terminal client.
type ClientConfig struct {
	BaseURL  string `yaml:"base_url"`
	UserID   string `yaml:"user_id"`
	Timeout  string `yaml:"timeout"`
	Theme    string `yaml:"theme"` // auto, dark, light
	WordWrap int    `yaml:"word_wrap"`
}

// ServerConfig configures the reference backend.
type ServerConfig struct {
	Addr              string `yaml:"addr"`
	UserRatePerMinute int    `yaml:"user_rate_per_minute"` // 0 disables limiting
}

// StorageConfig selects the backend store.
type StorageConfig struct {
	Driver string `yaml:"driver"` // memory, sqlite, postgres, mysql
	DSN    string `yaml:"dsn"`
}

// LLMConfig configures the refiner used by the backend.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // groq, gemini, mock
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     string  `yaml:"timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			BaseURL:  "http://localhost:8000",
			Timeout:  "60s",
			Theme:    "auto",
			WordWrap: 80,
		},
		Server: ServerConfig{
			Addr:              ":8000",
			UserRatePerMinute: 30,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(defaultDir(), "refinery.db"),
		},
		LLM: LLMConfig{
			Provider:    "groq",
			Temperature: 0.6,
			MaxTokens:   2048,
			Timeout:     "60s",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   filepath.Join(defaultDir(), "logs"),
		},
	}
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".refinery"
	}
	return filepath.Join(home, ".refinery")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(defaultDir(), "config.yaml")
}

// LoadDotEnv reads KEY=value pairs from the given files into the process
// environment. Missing files are skipped; existing variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// PersistUserID stores id in the file at path. Only file values are written
// back; environment overrides such as API keys never reach the file.
func PersistUserID(path, id string) error {
	cfg, err := loadFile(path)
	if err != nil {
		return err
	}
	cfg.Client.UserID = id
	return cfg.Save(path)
}

func loadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("REFINERY_API_URL"); v != "" {
		c.Client.BaseURL = v
	}
	if v := os.Getenv("REFINERY_USER_ID"); v != "" {
		c.Client.UserID = v
	}
	if v := os.Getenv("REFINERY_ADDR"); v != "" {
		c.Server.Addr = v
	}

	if v := os.Getenv("REFINERY_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	// Provider keys only apply to their own provider.
	switch c.LLM.Provider {
	case "groq":
		if key := os.Getenv("GROQ_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
	case "gemini":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
	}

	if v := os.Getenv("REFINERY_DB_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("REFINERY_DB_DSN"); v != "" {
		c.Storage.DSN = v
	}
}

// EnsureUserID assigns a random user id when none is configured. It reports
// whether the config changed and should be saved.
func (c *Config) EnsureUserID() bool {
	if c.Client.UserID != "" {
		return false
	}
	c.Client.UserID = uuid.NewString()
	return true
}

// GetClientTimeout returns the client request timeout as a duration.
func (c *Config) GetClientTimeout() time.Duration {
	d, err := time.ParseDuration(c.Client.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"groq", "gemini", "mock"}

// ValidDrivers lists all supported storage drivers.
var ValidDrivers = []string{"memory", "sqlite", "postgres", "mysql"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Client.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid client base_url: %q", c.Client.BaseURL)
	}
	if c.Client.WordWrap < 0 {
		return fmt.Errorf("client word_wrap must not be negative: %d", c.Client.WordWrap)
	}
	if !slices.Contains(ValidProviders, c.LLM.Provider) {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}
	if !slices.Contains(ValidDrivers, c.Storage.Driver) {
		return fmt.Errorf("invalid storage driver: %s (valid: %v)", c.Storage.Driver, ValidDrivers)
	}
	if c.Storage.Driver != "memory" && c.Storage.DSN == "" {
		return fmt.Errorf("storage driver %s requires a dsn", c.Storage.Driver)
	}
	if c.Server.UserRatePerMinute < 0 {
		return fmt.Errorf("server user_rate_per_minute must not be negative: %d", c.Server.UserRatePerMinute)
	}
	return nil
}
