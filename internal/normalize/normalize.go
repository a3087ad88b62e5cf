// Package normalize turns raw model output into JSON values: it strips
// markdown code fences and parses what is left, reporting failures as
// *ParseError with the raw text kept for display.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Kind names the analysis a response belongs to.
type Kind string

const (
	KindSymptom    Kind = "symptom"
	KindMedication Kind = "medication"
	KindDocument   Kind = "document"
)

// Message is the user-facing text for a parse failure of this kind.
func (k Kind) Message() string {
	switch k {
	case KindSymptom:
		return "Failed to parse medical analysis"
	case KindMedication:
		return "Failed to parse medication analysis"
	case KindDocument:
		return "Failed to parse document analysis"
	default:
		return "Failed to parse model response"
	}
}

// ParseError reports a model response that was not valid JSON.
type ParseError struct {
	Kind Kind
	Raw  string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind.Message(), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var errEmpty = errors.New("empty response")

const fence = "```"

// StripFences removes a markdown code fence around the JSON body. Text
// before the opening fence and after the closing one is dropped, as is a
// language tag such as "json" right after the opening fence.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	open := strings.Index(s, fence)
	if open < 0 {
		return s
	}

	body := s[open+len(fence):]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && isLangTag(body[:nl]) {
		body = body[nl+1:]
	} else if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func isLangTag(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// Normalize parses raw as JSON. Raw text that is not JSON as a whole is
// retried with fences stripped, then on the outermost {...} block.
func Normalize(raw string, kind Kind) (any, error) {
	var v any
	if err := Decode(raw, kind, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Decode is Normalize into a caller-provided value.
func Decode(raw string, kind Kind, v any) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return &ParseError{Kind: kind, Raw: raw, Err: errEmpty}
	}
	if json.Unmarshal([]byte(trimmed), v) == nil {
		return nil
	}

	body := StripFences(trimmed)
	if body == "" {
		return &ParseError{Kind: kind, Raw: raw, Err: errEmpty}
	}

	err := json.Unmarshal([]byte(body), v)
	if err == nil {
		return nil
	}

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start >= 0 && end > start {
		if err2 := json.Unmarshal([]byte(body[start:end+1]), v); err2 == nil {
			return nil
		}
	}
	return &ParseError{Kind: kind, Raw: raw, Err: err}
}
