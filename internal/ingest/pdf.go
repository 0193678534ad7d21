package ingest

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	rpdf "rsc.io/pdf"
)

// maxPDFBytes bounds what ReadPDFText will buffer.
const maxPDFBytes = 32 << 20

// ExtractPDFText returns the text of every page, one line per page. The
// parser panics on some malformed files; that is reported as an error.
func ExtractPDFText(content []byte) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pdf parser panic: %v", recovered)
			text = ""
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, fragment := range page.Content().Text {
			b.WriteString(fragment.S)
			b.WriteByte(' ')
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// ReadPDFText reads a whole PDF from r and extracts its text.
func ReadPDFText(r io.Reader) (string, error) {
	content, err := io.ReadAll(io.LimitReader(r, maxPDFBytes+1))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	if len(content) > maxPDFBytes {
		return "", fmt.Errorf("pdf larger than %d bytes", maxPDFBytes)
	}
	return ExtractPDFText(content)
}
