// Package bootstrap assembles the long-lived collaborators shared by the
// serve and extract commands from a validated configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"medassist/internal/analysis"
	"medassist/internal/config"
	"medassist/internal/extractor"
	"medassist/internal/intake"
	"medassist/internal/llm"
	"medassist/internal/migrate"
	"medassist/internal/session"
	"medassist/internal/store"
)

// App holds everything a process role needs. Store and Redis are nil when
// not configured.
type App struct {
	Config   *config.Config
	Analysis *analysis.Service
	Gateway  *llm.Gateway
	Store    *store.Store
	Redis    *redis.Client
	Guard    session.Guard
}

// ExtractorTable builds the category table from extractor.categories,
// falling back to the built-in vitals/blood_tests/imaging table.
func ExtractorTable(cfg *config.Config) (*extractor.Table, error) {
	if len(cfg.Extractor.Categories) == 0 {
		return extractor.MustDefault(), nil
	}
	cats := make([]extractor.Category, 0, len(cfg.Extractor.Categories))
	for _, c := range cfg.Extractor.Categories {
		cats = append(cats, extractor.Category{Name: c.Name, Keywords: c.Keywords})
	}
	return extractor.NewTable(cats)
}

// Run builds the App. migrations are applied first when a database is
// configured.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Intake.PDFLicenseKey == "" {
		logger.Error("pdf_license_missing",
			"detail", "PDF uploads will be rejected as unreadable until intake.pdfLicenseKey (UNIDOC_LICENSE_API_KEY) is set",
		)
	} else if err := intake.SetPDFLicense(cfg.Intake.PDFLicenseKey); err != nil {
		return nil, err
	}

	table, err := ExtractorTable(cfg)
	if err != nil {
		return nil, err
	}

	gen, provider, model, err := llm.NewGeneratorFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	gw := llm.NewGateway(gen, llm.GatewayOptions{
		Provider:    provider,
		Model:       model,
		MaxAttempts: cfg.LLM.MaxAttempts,
		BackoffUnit: time.Duration(cfg.LLM.BackoffUnitMs) * time.Millisecond,
		Logger:      logger,
	})

	app := &App{
		Config: cfg,
		Analysis: analysis.NewService(gw, table, analysis.Options{
			MaxConditions: cfg.Analysis.MaxConditions,
			Logger:        logger,
		}),
		Gateway: gw,
	}

	if cfg.Database.DSN != "" {
		// Run migrations on a short-lived connection
		if err := migrate.Run(cfg.Database.DSN); err != nil {
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		st, err := store.Open(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open db failed: %w", err)
		}
		app.Store = st
	} else {
		logger.Info("audit log disabled", "reason", "no database.dsn")
	}

	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		app.Redis = redis.NewClient(opt)
		ttl := time.Duration(cfg.Server.RequestTimeoutMs) * time.Millisecond
		app.Guard = session.NewRedisGuard(app.Redis, ttl)
	} else {
		app.Guard = session.NewMemoryGuard()
	}

	logger.Info("bootstrap complete",
		"llm_provider", provider,
		"llm_model", model,
		"audit", app.Store != nil,
		"redis", app.Redis != nil,
	)
	return app, nil
}

// Close releases database and Redis connections.
func (a *App) Close() {
	if a.Store != nil {
		_ = a.Store.DB.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}
