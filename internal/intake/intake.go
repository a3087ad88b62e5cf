// Package intake turns uploaded report files into plain text.
package intake

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat matches every *UnsupportedFormatError via errors.Is.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrUnreadable wraps failures to read an accepted file: empty uploads,
	// corrupt containers, unreadable PDFs.
	ErrUnreadable = errors.New("document could not be read")
)

// UnsupportedFormatError is returned for file extensions other than the
// supported set.
type UnsupportedFormatError struct {
	Name string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return fmt.Sprintf("unsupported file format for %q: only %s are supported", e.Name, strings.Join(SupportedExtensions(), ", "))
	}
	return fmt.Sprintf("unsupported file format %q: only %s are supported", e.Ext, strings.Join(SupportedExtensions(), ", "))
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

type extractFunc func(data []byte) (string, error)

var extractors = map[string]extractFunc{
	".pdf":  extractPDF,
	".docx": extractDOCX,
}

// SupportedExtensions lists accepted extensions in a stable order.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx"}
}

// Supported reports whether name has an accepted extension.
func Supported(name string) bool {
	_, ok := extractors[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ExtractText reads r fully and extracts its text according to the
// extension of name. The extension check happens before r is read.
func ExtractText(name string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	fn, ok := extractors[ext]
	if !ok {
		return "", &UnsupportedFormatError{Name: name, Ext: ext}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	if buf.Len() == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrUnreadable, name)
	}

	text, err := fn(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("%w: extract %s: %w", ErrUnreadable, name, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s contains no extractable text", ErrUnreadable, name)
	}
	return text, nil
}
