// Package analysis wires the field extractor, the model gateway and the
// response normalizer into the four user-facing operations.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"medassist/internal/extractor"
	"medassist/internal/intake"
	"medassist/internal/metrics"
	"medassist/internal/normalize"
)

var (
	// ErrEmptyInput is returned for blank symptom or medication input.
	ErrEmptyInput = errors.New("input is empty")
	// ErrInputTooLong is returned when free text exceeds MaxInputChars.
	ErrInputTooLong = errors.New("input is too long")
)

const (
	// MaxInputChars caps free-text symptom and medication input.
	MaxInputChars = 8000
	// maxDocumentChars caps how much document text is forwarded to the model.
	maxDocumentChars = 24000
)

// Invoker is the model gateway as seen by this package.
type Invoker interface {
	Invoke(ctx context.Context, payload, instruction string) (string, error)
}

// SymptomAnalysis is the symptom checker result.
type SymptomAnalysis struct {
	PossibleConditions []any  `json:"possible_conditions"`
	RecommendedActions []any  `json:"recommended_actions"`
	EmergencySigns     []any  `json:"emergency_signs"`
	Disclaimer         string `json:"disclaimer"`
}

// MedicationAnalysis is the medication interaction result.
type MedicationAnalysis struct {
	Medications  []string `json:"medications"`
	Interactions []any    `json:"interactions"`
	SideEffects  []any    `json:"side_effects"`
	Guidelines   []any    `json:"guidelines"`
	Disclaimer   string   `json:"disclaimer"`
}

// ReportAnalysis is the uploaded-report result. Summary is the model's
// markdown, passed through verbatim.
type ReportAnalysis struct {
	FileName   string           `json:"file_name"`
	Findings   extractor.Result `json:"findings"`
	Summary    string           `json:"summary"`
	Disclaimer string           `json:"disclaimer"`
}

// DocumentSummary is the clinical/legal document summary result.
type DocumentSummary struct {
	FileName   string `json:"file_name"`
	Summary    string `json:"summary"`
	KeyClauses []any  `json:"key_clauses"`
	Risks      []any  `json:"risks"`
	Disclaimer string `json:"disclaimer"`
}

// Options configures a Service.
type Options struct {
	// MaxConditions caps PossibleConditions; zero means no cap.
	MaxConditions int
	Logger        *slog.Logger
}

// Service is stateless apart from its collaborators and is safe for
// concurrent use.
type Service struct {
	gw            Invoker
	table         *extractor.Table
	maxConditions int
	logger        *slog.Logger
}

func NewService(gw Invoker, table *extractor.Table, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		gw:            gw,
		table:         table,
		maxConditions: opts.MaxConditions,
		logger:        logger,
	}
}

// Table returns the extractor table the service uses.
func (s *Service) Table() *extractor.Table { return s.table }

// CheckSymptoms asks the model for conditions, actions and emergency
// signs for a free-text symptom description.
func (s *Service) CheckSymptoms(ctx context.Context, symptoms string) (*SymptomAnalysis, error) {
	symptoms, err := cleanInput(symptoms)
	if err != nil {
		return nil, err
	}

	raw, err := s.gw.Invoke(ctx, symptoms, symptomInstruction)
	if err != nil {
		return nil, err
	}

	var out SymptomAnalysis
	if err := s.decode(raw, normalize.KindSymptom, &out); err != nil {
		return nil, err
	}
	if s.maxConditions > 0 && len(out.PossibleConditions) > s.maxConditions {
		out.PossibleConditions = out.PossibleConditions[:s.maxConditions]
	}
	out.PossibleConditions = nonNil(out.PossibleConditions)
	out.RecommendedActions = nonNil(out.RecommendedActions)
	out.EmergencySigns = nonNil(out.EmergencySigns)
	out.Disclaimer = Disclaimer
	return &out, nil
}

// AnalyzeMedications checks a comma-separated medication list for
// interactions, side effects and guidelines.
func (s *Service) AnalyzeMedications(ctx context.Context, medications string) (*MedicationAnalysis, error) {
	medications, err := cleanInput(medications)
	if err != nil {
		return nil, err
	}
	meds := SplitMedications(medications)
	if len(meds) == 0 {
		return nil, ErrEmptyInput
	}

	raw, err := s.gw.Invoke(ctx, strings.Join(meds, ", "), medicationInstruction)
	if err != nil {
		return nil, err
	}

	var out MedicationAnalysis
	if err := s.decode(raw, normalize.KindMedication, &out); err != nil {
		return nil, err
	}
	out.Medications = meds
	out.Interactions = nonNil(out.Interactions)
	out.SideEffects = nonNil(out.SideEffects)
	out.Guidelines = nonNil(out.Guidelines)
	out.Disclaimer = Disclaimer
	return &out, nil
}

// ExtractFindings runs document intake and the field extractor without
// calling the model.
func (s *Service) ExtractFindings(name string, r io.Reader) (string, extractor.Result, error) {
	text, err := intake.ExtractText(name, r)
	if err != nil {
		return "", nil, err
	}
	findings := s.table.Extract(text)
	for category, values := range findings {
		metrics.RecordExtraction(category, len(values))
	}
	return text, findings, nil
}

// AnalyzeReport extracts vitals/labs/imaging values from an uploaded
// report and asks the model to summarise them. When nothing matched, the
// (truncated) report text is sent instead so the summary is not empty.
func (s *Service) AnalyzeReport(ctx context.Context, name string, r io.Reader) (*ReportAnalysis, error) {
	text, findings, err := s.ExtractFindings(name, r)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	payload := truncate(text, maxDocumentChars)
	if len(findings) > 0 {
		b, err := json.Marshal(findings)
		if err != nil {
			return nil, fmt.Errorf("encode findings: %w", err)
		}
		payload = string(b)
	}

	summary, err := s.gw.Invoke(ctx, payload, reportInstruction)
	if err != nil {
		return nil, err
	}

	return &ReportAnalysis{
		FileName:   name,
		Findings:   findings,
		Summary:    strings.TrimSpace(summary),
		Disclaimer: Disclaimer,
	}, nil
}

// SummarizeDocument returns a plain-language summary, key clauses and
// risks for an uploaded clinical or legal document.
func (s *Service) SummarizeDocument(ctx context.Context, name string, r io.Reader) (*DocumentSummary, error) {
	text, err := intake.ExtractText(name, r)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	raw, err := s.gw.Invoke(ctx, truncate(text, maxDocumentChars), documentInstruction)
	if err != nil {
		return nil, err
	}

	var out DocumentSummary
	if err := s.decode(raw, normalize.KindDocument, &out); err != nil {
		return nil, err
	}
	out.FileName = name
	out.KeyClauses = nonNil(out.KeyClauses)
	out.Risks = nonNil(out.Risks)
	out.Disclaimer = Disclaimer
	return &out, nil
}

func (s *Service) decode(raw string, kind normalize.Kind, v any) error {
	if err := normalize.Decode(raw, kind, v); err != nil {
		metrics.RecordParseFailure(string(kind))
		s.logger.Warn("model_response_unparsable", "kind", kind, "raw_len", len(raw))
		return err
	}
	return nil
}

// SplitMedications splits on commas and newlines, trims entries, drops
// blanks and removes case-insensitive duplicates, keeping first spelling.
func SplitMedications(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' || r == ';' })
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Join(strings.Fields(f), " ")
		if f == "" {
			continue
		}
		key := strings.ToLower(f)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}

func cleanInput(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyInput
	}
	if utf8.RuneCountInString(s) > MaxInputChars {
		return "", ErrInputTooLong
	}
	return s, nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func nonNil(v []any) []any {
	if v == nil {
		return []any{}
	}
	return v
}
