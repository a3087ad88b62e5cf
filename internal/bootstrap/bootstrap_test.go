package bootstrap

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"medassist/internal/config"
	"medassist/internal/llm"
	"medassist/internal/session"
)

func TestExtractorTableDefault(t *testing.T) {
	table, err := ExtractorTable(config.Default())
	require.NoError(t, err)

	cats := table.Categories()
	require.Len(t, cats, 3)
	require.Equal(t, "vitals", cats[0].Name)
}

func TestExtractorTableFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Extractor.Categories = []config.CategoryConfig{
		{Name: "lipids", Keywords: []string{"LDL", "HDL"}},
	}

	table, err := ExtractorTable(cfg)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"ldl": "130 mg/dL"}, table.Extract("LDL: 130 mg/dL")["lipids"])
}

func TestExtractorTableRejectsDuplicates(t *testing.T) {
	cfg := config.Default()
	cfg.Extractor.Categories = []config.CategoryConfig{
		{Name: "a", Keywords: []string{"x"}},
		{Name: "a", Keywords: []string{"y"}},
	}

	_, err := ExtractorTable(cfg)
	require.Error(t, err)
}

func TestRunWithoutBackends(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Provider = "openai"
	cfg.LLM.OpenAI.APIKey = "sk-test"
	cfg.LLM.MaxAttempts = 5

	app, err := Run(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer app.Close()

	require.Nil(t, app.Store)
	require.Nil(t, app.Redis)
	require.IsType(t, &session.MemoryGuard{}, app.Guard)
	require.Equal(t, llm.ProviderOpenAI, app.Gateway.Provider())
	require.Equal(t, "gpt-4o-mini", app.Gateway.Model())
	require.NotNil(t, app.Analysis)
}

func TestRunLogsMissingPDFLicense(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Provider = "openai"
	cfg.LLM.OpenAI.APIKey = "sk-test"

	var logs bytes.Buffer
	app, err := Run(context.Background(), cfg, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)
	defer app.Close()

	require.Contains(t, logs.String(), "level=ERROR")
	require.Contains(t, logs.String(), "pdf_license_missing")
}

func TestRunRejectsBadRedisURL(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Provider = "openai"
	cfg.LLM.OpenAI.APIKey = "sk-test"
	cfg.Redis.URL = "not-a-redis-url"

	_, err := Run(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}
