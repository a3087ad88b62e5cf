package http

import (
	"medassist/internal/analysis"
	"medassist/internal/extractor"
)

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// ParseErrorDetails carries the unparsable model output back to the
// caller so the UI can show what the model actually said.
type ParseErrorDetails struct {
	Kind string `json:"kind"`
	Raw  string `json:"raw"`
}

// GatewayErrorDetails reports how far the retry loop got.
type GatewayErrorDetails struct {
	Provider string `json:"provider"`
	Attempts int    `json:"attempts"`
}

type SymptomsRequest struct {
	Symptoms string `json:"symptoms"`
}

type SymptomsResponse struct {
	Success bool                      `json:"success"`
	Data    *analysis.SymptomAnalysis `json:"data"`
}

type MedicationsRequest struct {
	Medications string `json:"medications"`
}

type MedicationsResponse struct {
	Success bool                         `json:"success"`
	Data    *analysis.MedicationAnalysis `json:"data"`
}

type ReportResponse struct {
	Success bool                     `json:"success"`
	Data    *analysis.ReportAnalysis `json:"data"`
}

type DocumentSummaryResponse struct {
	Success bool                      `json:"success"`
	Data    *analysis.DocumentSummary `json:"data"`
}

// CategoriesResponse lists the extractor categories and accepted upload
// extensions.
type CategoriesResponse struct {
	Success    bool                 `json:"success"`
	Categories []extractor.Category `json:"categories"`
	Formats    []string             `json:"formats"`
}
