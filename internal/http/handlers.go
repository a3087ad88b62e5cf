package http

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"medassist/internal/analysis"
	"medassist/internal/config"
	"medassist/internal/intake"
	"medassist/internal/store"
)

func analysisService(c *fiber.Ctx) *analysis.Service {
	svc, _ := c.Locals("analysis").(*analysis.Service)
	return svc
}

// requestContext bounds a model-backed request by server.requestTimeoutMs.
func requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	cfg, _ := c.Locals("config").(*config.Config)
	if cfg == nil || cfg.Server.RequestTimeoutMs <= 0 {
		return context.WithCancel(c.Context())
	}
	return context.WithTimeout(c.Context(), time.Duration(cfg.Server.RequestTimeoutMs)*time.Millisecond)
}

// markModelCall exposes provider/model to the request log line.
func markModelCall(c *fiber.Ctx) {
	if v, _ := c.Locals("llm_provider_name").(string); v != "" {
		c.Locals("llm_provider", v)
	}
	if v, _ := c.Locals("llm_model_name").(string); v != "" {
		c.Locals("llm_model", v)
	}
}

// failAnalysis writes the error envelope and records the failed outcome.
func failAnalysis(c *fiber.Ctx, kind string, start time.Time, err error, meta any) error {
	status, code, werr := writeError(c, err)
	outcome := store.AuditStatusFailed
	if status < fiber.StatusInternalServerError {
		outcome = store.AuditStatusRejected
	}
	if status == fiber.StatusInternalServerError {
		if logger := requestLogger(c); logger != nil {
			reqID, _ := c.Locals("request_id").(string)
			logger.Error("analysis_failed", "request_id", reqID, "kind", kind, "error", err)
		}
	}
	recordAuditEvent(c, auditEventOptions{
		Kind:      kind,
		Status:    outcome,
		ErrorCode: code,
		Start:     start,
		Metadata:  meta,
	})
	return werr
}

func badRequest(c *fiber.Ctx, code, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Success: false,
		Code:    code,
		Error:   msg,
	})
}

func categoriesHandler(c *fiber.Ctx) error {
	svc := analysisService(c)
	if svc == nil {
		return fiber.ErrServiceUnavailable
	}
	return c.JSON(CategoriesResponse{
		Success:    true,
		Categories: svc.Table().Categories(),
		Formats:    intake.SupportedExtensions(),
	})
}

func symptomsHandler(c *fiber.Ctx) error {
	start := time.Now()

	var req SymptomsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "BAD_REQUEST_INVALID_JSON", "Invalid request body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	markModelCall(c)

	res, err := analysisService(c).CheckSymptoms(ctx, req.Symptoms)
	if err != nil {
		return failAnalysis(c, kindSymptom, start, err, nil)
	}

	recordAuditEvent(c, auditEventOptions{
		Kind:   kindSymptom,
		Status: store.AuditStatusCompleted,
		Start:  start,
		Metadata: fiber.Map{
			"conditions":     len(res.PossibleConditions),
			"emergencySigns": len(res.EmergencySigns),
		},
	})
	return c.JSON(SymptomsResponse{Success: true, Data: res})
}

func medicationsHandler(c *fiber.Ctx) error {
	start := time.Now()

	var req MedicationsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "BAD_REQUEST_INVALID_JSON", "Invalid request body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	markModelCall(c)

	res, err := analysisService(c).AnalyzeMedications(ctx, req.Medications)
	if err != nil {
		return failAnalysis(c, kindMedication, start, err, nil)
	}

	recordAuditEvent(c, auditEventOptions{
		Kind:   kindMedication,
		Status: store.AuditStatusCompleted,
		Start:  start,
		Metadata: fiber.Map{
			"medications":  len(res.Medications),
			"interactions": len(res.Interactions),
		},
	})
	return c.JSON(MedicationsResponse{Success: true, Data: res})
}

func reportsHandler(c *fiber.Ctx) error {
	start := time.Now()

	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "MISSING_FILE", "A report file is required in the 'file' form field")
	}
	meta := fiber.Map{"format": strings.ToLower(filepath.Ext(fh.Filename))}

	f, err := fh.Open()
	if err != nil {
		return failAnalysis(c, kindReport, start, err, meta)
	}
	defer f.Close()

	ctx, cancel := requestContext(c)
	defer cancel()
	markModelCall(c)

	res, err := analysisService(c).AnalyzeReport(ctx, fh.Filename, f)
	if err != nil {
		return failAnalysis(c, kindReport, start, err, meta)
	}

	counts := make(map[string]int, len(res.Findings))
	for category, values := range res.Findings {
		counts[category] = len(values)
	}
	meta["findings"] = counts

	recordAuditEvent(c, auditEventOptions{
		Kind:     kindReport,
		Status:   store.AuditStatusCompleted,
		Start:    start,
		Metadata: meta,
	})
	return c.JSON(ReportResponse{Success: true, Data: res})
}

func documentSummaryHandler(c *fiber.Ctx) error {
	start := time.Now()

	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "MISSING_FILE", "A document is required in the 'file' form field")
	}
	meta := fiber.Map{"format": strings.ToLower(filepath.Ext(fh.Filename))}

	f, err := fh.Open()
	if err != nil {
		return failAnalysis(c, kindDocument, start, err, meta)
	}
	defer f.Close()

	ctx, cancel := requestContext(c)
	defer cancel()
	markModelCall(c)

	res, err := analysisService(c).SummarizeDocument(ctx, fh.Filename, f)
	if err != nil {
		return failAnalysis(c, kindDocument, start, err, meta)
	}

	meta["keyClauses"] = len(res.KeyClauses)
	meta["risks"] = len(res.Risks)
	recordAuditEvent(c, auditEventOptions{
		Kind:     kindDocument,
		Status:   store.AuditStatusCompleted,
		Start:    start,
		Metadata: meta,
	})
	return c.JSON(DocumentSummaryResponse{Success: true, Data: res})
}
