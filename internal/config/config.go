package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	MaxUploadBytes   int    `yaml:"maxUploadBytes"`
	RequestTimeoutMs int    `yaml:"requestTimeoutMs"`
	WebUI            bool   `yaml:"webUI"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"perMinute"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

type AnthropicConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

type GoogleLLMConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// LLMConfig selects the remote model provider and controls the retry
// behaviour of the gateway in front of it.
type LLMConfig struct {
	Provider      string          `yaml:"provider"`
	MaxAttempts   int             `yaml:"maxAttempts"`
	BackoffUnitMs int             `yaml:"backoffUnitMs"`
	TimeoutMs     int             `yaml:"timeoutMs"`
	OpenAI        OpenAIConfig    `yaml:"openai"`
	Anthropic     AnthropicConfig `yaml:"anthropic"`
	Google        GoogleLLMConfig `yaml:"google"`
}

// CategoryConfig is one row of the extractor's category table.
type CategoryConfig struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type ExtractorConfig struct {
	Categories []CategoryConfig `yaml:"categories"`
}

// IntakeConfig holds settings for reading uploaded documents.
type IntakeConfig struct {
	PDFLicenseKey string `yaml:"pdfLicenseKey"`
}

type AnalysisConfig struct {
	MaxConditions int `yaml:"maxConditions"`
}

// RetentionConfig controls deletion of old audit rows so the table does
// not grow without bound.
type RetentionConfig struct {
	Enabled                bool `yaml:"enabled"`
	CleanupIntervalMinutes int  `yaml:"cleanupIntervalMinutes"`
	AuditDays              int  `yaml:"auditDays"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	LLM       LLMConfig       `yaml:"llm"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Intake    IntakeConfig    `yaml:"intake"`
	Retention RetentionConfig `yaml:"retention"`
}

// Default returns a Config with every field set to its built-in default.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			MaxUploadBytes:   20 << 20,
			RequestTimeoutMs: 90000,
			WebUI:            true,
		},
		LLM: LLMConfig{
			Provider:      "google",
			MaxAttempts:   3,
			BackoffUnitMs: 1000,
			TimeoutMs:     30000,
			Google:        GoogleLLMConfig{Model: "gemini-2.5-flash-lite"},
			OpenAI:        OpenAIConfig{Model: "gpt-4o-mini"},
			Anthropic:     AnthropicConfig{Model: "claude-3-5-haiku-latest"},
		},
		Analysis: AnalysisConfig{MaxConditions: 3},
		Retention: RetentionConfig{
			CleanupIntervalMinutes: 60,
			AuditDays:              30,
		},
	}
}

// Parse decodes YAML on top of the defaults and applies environment
// overrides. An empty reader yields the defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if r != nil {
		if err := yaml.NewDecoder(r).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// Load reads the config file at path (skipped when path is empty), loads
// .env if present, and exits the process on any error.
func Load(path string) *Config {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	var r io.Reader
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("failed to open config file: %v", err)
		}
		defer f.Close()
		r = f
	}

	cfg, err := Parse(r)
	if err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}
	return cfg
}

func (c *Config) applyEnv() {
	setFromEnv(&c.LLM.Google.APIKey, "GEMINI_API_KEY")
	setFromEnv(&c.LLM.OpenAI.APIKey, "OPENAI_API_KEY")
	setFromEnv(&c.LLM.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setFromEnv(&c.LLM.Provider, "MEDASSIST_LLM_PROVIDER")
	setFromEnv(&c.Database.DSN, "MEDASSIST_DATABASE_DSN")
	setFromEnv(&c.Redis.URL, "MEDASSIST_REDIS_URL")
	setFromEnv(&c.Intake.PDFLicenseKey, "UNIDOC_LICENSE_API_KEY")
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate reports configuration that must stop the process at startup,
// most importantly a missing credential for the selected provider.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "google":
		if c.LLM.Google.APIKey == "" {
			return errors.New("GEMINI_API_KEY (llm.google.apiKey) is required")
		}
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return errors.New("OPENAI_API_KEY (llm.openai.apiKey) is required")
		}
	case "anthropic":
		if c.LLM.Anthropic.APIKey == "" {
			return errors.New("ANTHROPIC_API_KEY (llm.anthropic.apiKey) is required")
		}
	default:
		return fmt.Errorf("unsupported llm provider: %q", c.LLM.Provider)
	}

	if c.LLM.MaxAttempts <= 0 {
		return errors.New("llm.maxAttempts must be positive")
	}
	if c.Server.Port <= 0 {
		return errors.New("server.port must be positive")
	}
	for i, cat := range c.Extractor.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			return fmt.Errorf("extractor.categories[%d]: name is required", i)
		}
		if len(cat.Keywords) == 0 {
			return fmt.Errorf("extractor.categories[%d] (%s): at least one keyword is required", i, cat.Name)
		}
	}
	return nil
}
