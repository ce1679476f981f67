package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"plandraft/internal/plan"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AI         AIConfig         `yaml:"ai"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Rules      plan.RuleSet     `yaml:"rules"`
	Corpus     struct {
		Path string `yaml:"path"` // empty uses the embedded seed corpus
	} `yaml:"corpus"`
	HTTP HTTPConfig `yaml:"http"`
	Log  struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
}

type AIConfig struct {
	Provider        string        `yaml:"provider"` // gemini | openai | github | ollama | offline
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	Temperature     float64       `yaml:"temperature"`
	FallbackOffline bool          `yaml:"fallback_offline"`
}

// EmbeddingConfig enables semantic example retrieval when Provider is set.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
}

type GenerationConfig struct {
	MaxAttempts int  `yaml:"max_attempts"`
	Examples    int  `yaml:"examples"`
	EnableAB    bool `yaml:"enable_ab"`
}

type HTTPConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins       []string      `yaml:"cors_origins"`
}

func Default() *Config {
	cfg := &Config{
		AI: AIConfig{
			Provider:        "gemini",
			Model:           "gemini-2.5-flash",
			Timeout:         30 * time.Second,
			FallbackOffline: true,
		},
		Generation: GenerationConfig{
			MaxAttempts: 3,
			Examples:    3,
			EnableAB:    true,
		},
		Rules: plan.DefaultRules(),
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			CORSOrigins:       []string{"http://localhost:3000"},
		},
	}
	cfg.Log.Mode = "development"
	return cfg
}

// LoadConfig reads .env, then the YAML file at path (a missing file keeps the
// defaults), then environment overrides.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if apiKey := os.Getenv("PLANDRAFT_API_KEY"); apiKey != "" {
		cfg.AI.APIKey = apiKey
	}
	if provider := os.Getenv("PLANDRAFT_AI_PROVIDER"); provider != "" {
		cfg.AI.Provider = provider
	}
	if model := os.Getenv("PLANDRAFT_AI_MODEL"); model != "" {
		cfg.AI.Model = model
	}
	if baseURL := os.Getenv("PLANDRAFT_AI_BASE_URL"); baseURL != "" {
		cfg.AI.BaseURL = baseURL
	}
	// GitHub Models reads the usual GitHub token variables.
	if strings.EqualFold(cfg.AI.Provider, "github") && cfg.AI.APIKey == "" {
		if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
			cfg.AI.APIKey = tok
		} else if tok := os.Getenv("GH_TOKEN"); tok != "" {
			cfg.AI.APIKey = tok
		}
	}
	if addr := os.Getenv("PLANDRAFT_HTTP_ADDR"); addr != "" {
		cfg.HTTP.Addr = addr
	}
	if mode := os.Getenv("PLANDRAFT_LOG_MODE"); mode != "" {
		cfg.Log.Mode = mode
	}
	if v := os.Getenv("PLANDRAFT_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PLANDRAFT_MAX_ATTEMPTS: %w", err)
		}
		cfg.Generation.MaxAttempts = n
	}
	if v := os.Getenv("PLANDRAFT_ENABLE_AB"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PLANDRAFT_ENABLE_AB: %w", err)
		}
		cfg.Generation.EnableAB = b
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Generation.MaxAttempts < 1 || c.Generation.MaxAttempts > 6 {
		return fmt.Errorf("generation.max_attempts must be between 1 and 6, got %d", c.Generation.MaxAttempts)
	}
	if c.Generation.Examples < 0 {
		return fmt.Errorf("generation.examples must not be negative")
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("ai.timeout must be positive")
	}
	if err := c.Rules.Check(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	return nil
}
