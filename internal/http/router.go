package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"medassist/internal/analysis"
	"medassist/internal/config"
	"medassist/internal/metrics"
	"medassist/internal/session"
	"medassist/internal/store"
)

// Deps are the collaborators the HTTP layer needs. Store and Redis are
// optional; Guard defaults to an in-process guard.
type Deps struct {
	Analysis *analysis.Service
	Store    *store.Store
	Redis    *redis.Client
	Guard    session.Guard
	Provider string
	Model    string
}

type Server struct {
	app    *fiber.App
	config *config.Config
	logger *slog.Logger
}

func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Guard == nil {
		deps.Guard = session.NewMemoryGuard()
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.Server.MaxUploadBytes,
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})

	// Inject config and collaborators into context for handlers
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("analysis", deps.Analysis)
		c.Locals("store", deps.Store)
		c.Locals("llm_provider_name", deps.Provider)
		c.Locals("llm_model_name", deps.Model)
		return c.Next()
	})

	// Request logging + metrics middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		// Ensure a request ID exists
		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			if id, err := uuid.NewV7(); err == nil {
				reqID = id.String()
			} else {
				reqID = uuid.NewString()
			}
		}
		c.Locals("request_id", reqID)
		c.Locals("logger", logger)
		c.Set("X-Request-Id", reqID)

		err := c.Next()
		if err != nil {
			// Render the error now so the logged status is the one sent.
			if herr := errorHandler(c, err); herr != nil {
				return herr
			}
			err = nil
		}

		latency := time.Since(start)
		status := c.Response().StatusCode()
		method := c.Method()
		path := c.Route().Path

		metrics.RecordRequest(method, path, status, latency.Milliseconds())

		attrs := []any{
			"request_id", reqID,
			"method", method,
			"path", c.Path(),
			"status", status,
			"latency_ms", latency.Milliseconds(),
		}
		if provVal := c.Locals("llm_provider"); provVal != nil {
			attrs = append(attrs, "llm_provider", provVal)
		}
		if modelVal := c.Locals("llm_model"); modelVal != nil {
			attrs = append(attrs, "llm_model", modelVal)
		}
		logger.Info("request", attrs...)

		return err
	})

	// Health endpoints
	app.Get("/healthz", func(c *fiber.Ctx) error {
		// Shallow health: process is up
		if c.Query("deep") != "true" {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		// Deep health: check DB and Redis connectivity when configured.
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "disabled"
		if deps.Store != nil {
			dbStatus = "ok"
			if err := deps.Store.DB.PingContext(ctx); err != nil {
				dbStatus = "error"
			}
		}

		redisStatus := "disabled"
		if deps.Redis != nil {
			redisStatus = "ok"
			if err := deps.Redis.Ping(ctx).Err(); err != nil {
				redisStatus = "error"
			}
		}

		status := "ok"
		code := fiber.StatusOK
		if dbStatus == "error" || redisStatus == "error" {
			status = "error"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status":   status,
			"db":       dbStatus,
			"redis":    redisStatus,
			"provider": deps.Provider,
			"model":    deps.Model,
		})
	})

	// Prometheus-style metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	var rateMw fiber.Handler
	if deps.Redis != nil {
		rateMw = rateLimitMiddleware(cfg, deps.Redis, logger)
	} else {
		rateMw = func(c *fiber.Ctx) error { return c.Next() }
	}

	v1 := app.Group("/v1")
	v1.Get("/categories", categoriesHandler)

	registerAnalysisRoutes(v1, rateMw, sessionGuardMiddleware(deps.Guard, logger))

	if cfg.Server.WebUI {
		if err := registerWebUIRoutes(app); err != nil {
			logger.Error("webui_disabled", "error", err)
		}
	}

	return &Server{
		app:    app,
		config: cfg,
		logger: logger,
	}
}

// App exposes the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.logger.Info("http listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func registerAnalysisRoutes(group fiber.Router, mw ...fiber.Handler) {
	with := func(h fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, mw...), h)
	}
	group.Post("/symptoms", with(symptomsHandler)...)
	group.Post("/medications", with(medicationsHandler)...)
	group.Post("/reports", with(reportsHandler)...)
	group.Post("/documents/summary", with(documentSummaryHandler)...)
}
