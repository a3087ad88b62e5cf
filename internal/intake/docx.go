package intake

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBody = "word/document.xml"

// maxDocxXMLBytes caps the decompressed size of word/document.xml.
var maxDocxXMLBytes int64 = 64 << 20

var errDocxTooLarge = errors.New(docxBody + " exceeds the decompressed size limit")

// extractDOCX reads word/document.xml from the OOXML container and emits
// the text runs, one line per paragraph.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx container: %w", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return "", errors.New("docx container has no " + docxBody)
	}

	if body.UncompressedSize64 > uint64(maxDocxXMLBytes) {
		return "", errDocxTooLarge
	}

	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", docxBody, err)
	}
	defer rc.Close()

	return wordprocessingText(&capReader{r: rc, left: maxDocxXMLBytes + 1})
}

// capReader fails with errDocxTooLarge once more than the cap has been
// read. The zip header size is not trusted.
type capReader struct {
	r    io.Reader
	left int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.left <= 0 {
		return 0, errDocxTooLarge
	}
	if int64(len(p)) > c.left {
		p = p[:c.left]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	if c.left <= 0 {
		return n, errDocxTooLarge
	}
	return n, err
}

// wordprocessingText walks WordprocessingML tokens. Only w:t character
// data is kept; w:tab and w:br become whitespace and each w:p ends a line.
func wordprocessingText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		sb     strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", docxBody, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return strings.TrimRight(sb.String(), "\n"), nil
}
