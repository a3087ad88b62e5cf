package intake

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// SetPDFLicense registers a UniDoc metered license key. It is a no-op for
// an empty key.
func SetPDFLicense(key string) error {
	if key == "" {
		return nil
	}
	if err := license.SetMeteredKey(key); err != nil {
		return fmt.Errorf("set unipdf license: %w", err)
	}
	return nil
}

// extractPDF joins the text of every readable page with newlines.
// Encrypted files are tried with the empty password only. Without a
// license key unipdf refuses to extract and every page fails.
func extractPDF(data []byte) (string, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	enc, err := pdfReader.IsEncrypted()
	if err != nil {
		return "", fmt.Errorf("failed checking encryption: %w", err)
	}
	if enc {
		ok, err := pdfReader.Decrypt([]byte(""))
		if err != nil {
			return "", fmt.Errorf("failed to decrypt PDF (empty password): %w", err)
		}
		if !ok {
			return "", fmt.Errorf("PDF appears to be password-protected and cannot be read")
		}
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("failed to get page count: %w", err)
	}

	return joinPages(numPages, func(i int) (string, error) {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return "", err
		}
		ex, err := extractor.New(page)
		if err != nil {
			return "", err
		}
		return ex.ExtractText()
	})
}

// joinPages collects pages 1..n, skipping pages that fail. If no page
// yields text, the first page error is returned.
func joinPages(n int, pageText func(i int) (string, error)) (string, error) {
	var firstErr error
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		text, err := pageText(i)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("page %d: %w", i, err)
			}
			continue
		}
		pages = append(pages, text)
	}

	out := strings.Join(pages, "\n")
	if strings.TrimSpace(out) == "" && firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
