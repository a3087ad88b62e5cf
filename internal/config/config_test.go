package config_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"medassist/internal/config"
)

func clearCredentials(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
		"MEDASSIST_LLM_PROVIDER", "MEDASSIST_DATABASE_DSN", "MEDASSIST_REDIS_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestParseDefaults(t *testing.T) {
	clearCredentials(t)

	cfg, err := config.Parse(strings.NewReader(""))
	require.NoError(t, err)

	require.Equal(t, "google", cfg.LLM.Provider)
	require.Equal(t, 3, cfg.LLM.MaxAttempts)
	require.Equal(t, 1000, cfg.LLM.BackoffUnitMs)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 3, cfg.Analysis.MaxConditions)
	require.Empty(t, cfg.Extractor.Categories)
}

func TestParseYAMLAndEnvOverrides(t *testing.T) {
	clearCredentials(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("MEDASSIST_REDIS_URL", "redis://cache:6379/0")

	raw := `
server:
  port: 9090
llm:
  provider: openai
  maxAttempts: 5
  openai:
    apiKey: sk-file
    model: gpt-test
extractor:
  categories:
    - name: vitals
      keywords: [temperature, pulse]
`
	cfg, err := config.Parse(strings.NewReader(raw))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "openai", cfg.LLM.Provider)
	require.Equal(t, 5, cfg.LLM.MaxAttempts)
	require.Equal(t, "sk-env", cfg.LLM.OpenAI.APIKey)
	require.Equal(t, "gpt-test", cfg.LLM.OpenAI.Model)
	require.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
	require.Len(t, cfg.Extractor.Categories, 1)
	require.Equal(t, []string{"temperature", "pulse"}, cfg.Extractor.Categories[0].Keywords)
	// Defaults not present in the file survive.
	require.Equal(t, 1000, cfg.LLM.BackoffUnitMs)

	require.NoError(t, cfg.Validate())
}

func TestValidateRequiresCredential(t *testing.T) {
	clearCredentials(t)

	cfg, err := config.Parse(nil)
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "GEMINI_API_KEY")

	cfg.LLM.Google.APIKey = "key"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	clearCredentials(t)

	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{name: "unknown provider", mutate: func(c *config.Config) { c.LLM.Provider = "bard" }},
		{name: "zero attempts", mutate: func(c *config.Config) { c.LLM.MaxAttempts = 0 }},
		{name: "empty category name", mutate: func(c *config.Config) {
			c.Extractor.Categories = []config.CategoryConfig{{Keywords: []string{"x"}}}
		}},
		{name: "category without keywords", mutate: func(c *config.Config) {
			c.Extractor.Categories = []config.CategoryConfig{{Name: "labs"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.LLM.Google.APIKey = "key"
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
