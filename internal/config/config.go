// Package config loads the tendex YAML configuration by environment name.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the tendex service configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Cache       CacheConfig       `yaml:"cache"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Interpreter InterpreterConfig `yaml:"interpreter"`
	Search      SearchConfig      `yaml:"search"`
	Vectorize   VectorizeConfig   `yaml:"vectorize"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the SQLite tender database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig holds the optional Redis embedding cache settings.
// An empty address list disables the cache.
type CacheConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	TTLHours int      `yaml:"ttl_hours"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider string       `yaml:"provider"` // openai, ollama (default: openai)
	OpenAI   OpenAIConfig `yaml:"openai"`
	Ollama   OllamaConfig `yaml:"ollama"`
}

// OpenAIConfig holds settings for an OpenAI-compatible embedding API.
type OpenAIConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// OllamaConfig holds settings for a locally hosted model.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// InterpreterConfig holds the LLM query interpreter settings.
// Disabled means every query runs as an unfiltered raw-text search.
type InterpreterConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
}

// SearchConfig holds ranking settings.
type SearchConfig struct {
	DefaultTopK int    `yaml:"default_top_k"`
	MaxTopK     int    `yaml:"max_top_k"`
	Strategy    string `yaml:"strategy"` // brute, annoy (default: brute)
	AnnoyTrees  int    `yaml:"annoy_trees"`
	Fusion      string `yaml:"fusion"` // rrf, simple (default: rrf)
}

// VectorizeConfig holds the batch vectorization job settings.
type VectorizeConfig struct {
	BatchSize        int     `yaml:"batch_size"`
	BatchesPerSecond float64 `yaml:"batches_per_second"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Load reads configuration from config/<env>.yaml with ${VAR} expansion.
func Load(env string) (Config, error) {
	path := filepath.Join("config", env+".yaml")
	return LoadFile(path)
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// GetEnv returns the current environment from ENV, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Search waits on the embedding provider; leave headroom.
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join("resources", "tenders.db")
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = 24 * 7
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Ollama.BaseURL == "" {
		c.Embedding.Ollama.BaseURL = "http://localhost:11434"
	}
	if c.Search.DefaultTopK <= 0 {
		c.Search.DefaultTopK = 10
	}
	if c.Search.MaxTopK <= 0 {
		c.Search.MaxTopK = 100
	}
	if c.Search.Strategy == "" {
		c.Search.Strategy = "brute"
	}
	if c.Search.AnnoyTrees <= 0 {
		c.Search.AnnoyTrees = 10
	}
	if c.Search.Fusion == "" {
		c.Search.Fusion = "rrf"
	}
	if c.Vectorize.BatchSize <= 0 {
		c.Vectorize.BatchSize = 128
	}
	if c.Vectorize.BatchesPerSecond <= 0 {
		c.Vectorize.BatchesPerSecond = 2
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.OpenAI.Model == "" {
			return fmt.Errorf("embedding.openai.model is required")
		}
	case "ollama":
		if c.Embedding.Ollama.Model == "" {
			return fmt.Errorf("embedding.ollama.model is required")
		}
	default:
		return fmt.Errorf("embedding.provider must be \"openai\" or \"ollama\", got %q", c.Embedding.Provider)
	}
	switch c.Search.Strategy {
	case "brute", "annoy":
	default:
		return fmt.Errorf("search.strategy must be \"brute\" or \"annoy\", got %q", c.Search.Strategy)
	}
	switch c.Search.Fusion {
	case "rrf", "simple":
	default:
		return fmt.Errorf("search.fusion must be \"rrf\" or \"simple\", got %q", c.Search.Fusion)
	}
	if c.Search.DefaultTopK > c.Search.MaxTopK {
		return fmt.Errorf("search.default_top_k %d exceeds max_top_k %d", c.Search.DefaultTopK, c.Search.MaxTopK)
	}
	if c.Interpreter.Enabled && c.Interpreter.Model == "" {
		return fmt.Errorf("interpreter.model is required when the interpreter is enabled")
	}
	return nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
