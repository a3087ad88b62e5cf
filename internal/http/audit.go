package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"medassist/internal/metrics"
	"medassist/internal/store"
)

// Analysis kinds as recorded in metrics and the audit log.
const (
	kindSymptom    = "symptom"
	kindMedication = "medication"
	kindReport     = "report"
	kindDocument   = "document"
)

type auditEventOptions struct {
	Kind      string
	Status    store.AuditStatus
	ErrorCode string
	Start     time.Time
	// Metadata must never contain user text or extracted values; counts
	// and category names only.
	Metadata any
}

// recordAuditEvent counts the outcome and, when a database is configured,
// appends a row to the audit log. Failures to write are logged only.
func recordAuditEvent(c *fiber.Ctx, opts auditEventOptions) {
	metrics.RecordAnalysis(opts.Kind, string(opts.Status))

	st, _ := c.Locals("store").(*store.Store)
	if st == nil {
		return
	}

	reqID, _ := c.Locals("request_id").(string)
	provider, _ := c.Locals("llm_provider").(string)
	model, _ := c.Locals("llm_model").(string)

	ev := store.AuditEvent{
		Kind:      opts.Kind,
		Status:    opts.Status,
		ErrorCode: opts.ErrorCode,
		Provider:  provider,
		Model:     model,
		RequestID: reqID,
		Metadata:  opts.Metadata,
	}
	if !opts.Start.IsZero() {
		ev.LatencyMs = time.Since(opts.Start).Milliseconds()
	}

	if err := st.InsertAuditEvent(c.Context(), ev); err != nil {
		if logger := requestLogger(c); logger != nil {
			logger.Warn("audit_insert_failed", "request_id", reqID, "kind", opts.Kind, "error", err)
		}
	}
}

func requestLogger(c *fiber.Ctx) *slog.Logger {
	logger, _ := c.Locals("logger").(*slog.Logger)
	return logger
}
