// Package extractor pulls vital-sign, lab and imaging values out of free
// report text by matching a fixed table of keywords followed by a number.
package extractor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// valuePattern captures an integer or decimal, an optional "/n" pair (blood
// pressure) and an optional unit from a closed vocabulary.
const valuePattern = `([\d.]+(?:/\d+)?(?:\s*(?:mmHg|°F|°C|mg/dL|bpm))?)`

// Category is one row of the category table.
type Category struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// Result maps category name to lower-cased keyword to captured value.
// Categories without any match are absent.
type Result map[string]map[string]string

// Count returns the total number of keyword/value pairs.
func (r Result) Count() int {
	n := 0
	for _, values := range r {
		n += len(values)
	}
	return n
}

// Match is a single keyword hit, in document order.
type Match struct {
	Category string `json:"category"`
	Keyword  string `json:"keyword"`
	Value    string `json:"value"`
	Offset   int    `json:"offset"`
}

type compiledCategory struct {
	Category
	re *regexp.Regexp
}

// Table is an immutable, compiled category table. It is safe for
// concurrent use.
type Table struct {
	categories []compiledCategory
}

// DefaultCategories returns the built-in category table.
func DefaultCategories() []Category {
	return []Category{
		{Name: "vitals", Keywords: []string{"temperature", "blood pressure", "heart rate", "respiratory rate"}},
		{Name: "blood_tests", Keywords: []string{"hemoglobin", "wbc", "rbc", "platelets", "glucose"}},
		{Name: "imaging", Keywords: []string{"x-ray", "mri", "ct scan", "ultrasound"}},
	}
}

// NewTable compiles one case-insensitive pattern per category. The input
// slice is copied; later changes to it do not affect the table.
func NewTable(categories []Category) (*Table, error) {
	if len(categories) == 0 {
		return nil, errors.New("extractor: category table is empty")
	}

	t := &Table{categories: make([]compiledCategory, 0, len(categories))}
	seen := make(map[string]struct{}, len(categories))
	for _, cat := range categories {
		name := strings.TrimSpace(cat.Name)
		if name == "" {
			return nil, errors.New("extractor: category name is required")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("extractor: duplicate category %q", name)
		}
		seen[name] = struct{}{}

		keywords := make([]string, 0, len(cat.Keywords))
		quoted := make([]string, 0, len(cat.Keywords))
		for _, kw := range cat.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			keywords = append(keywords, kw)
			quoted = append(quoted, regexp.QuoteMeta(kw))
		}
		if len(keywords) == 0 {
			return nil, fmt.Errorf("extractor: category %q has no keywords", name)
		}

		re, err := regexp.Compile(`(?i)(` + strings.Join(quoted, "|") + `):?\s*` + valuePattern)
		if err != nil {
			return nil, fmt.Errorf("extractor: compile %q: %w", name, err)
		}
		t.categories = append(t.categories, compiledCategory{
			Category: Category{Name: name, Keywords: keywords},
			re:       re,
		})
	}
	return t, nil
}

// MustDefault returns the compiled default table.
func MustDefault() *Table {
	t, err := NewTable(DefaultCategories())
	if err != nil {
		panic(err)
	}
	return t
}

// Categories returns a copy of the table rows in definition order.
func (t *Table) Categories() []Category {
	out := make([]Category, len(t.categories))
	for i, c := range t.categories {
		out[i] = Category{Name: c.Name, Keywords: append([]string(nil), c.Keywords...)}
	}
	return out
}

// Extract scans text once per category. When a keyword occurs more than
// once, the last occurrence wins.
func (t *Table) Extract(text string) Result {
	res := make(Result)
	for _, m := range t.ExtractAll(text) {
		values, ok := res[m.Category]
		if !ok {
			values = make(map[string]string)
			res[m.Category] = values
		}
		values[m.Keyword] = m.Value
	}
	return res
}

// ExtractAll returns every non-overlapping match, grouped by category in
// table order and by position within a category.
func (t *Table) ExtractAll(text string) []Match {
	var out []Match
	for _, c := range t.categories {
		for _, loc := range c.re.FindAllStringSubmatchIndex(text, -1) {
			out = append(out, Match{
				Category: c.Name,
				Keyword:  strings.ToLower(text[loc[2]:loc[3]]),
				Value:    text[loc[4]:loc[5]],
				Offset:   loc[0],
			})
		}
	}
	return out
}
