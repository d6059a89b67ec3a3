package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxExtractBytes caps how much of a file is read for extraction.
const MaxExtractBytes = 32 << 20

// ErrUnreadable marks content that will never yield text; such jobs are not
// retried.
var ErrUnreadable = errors.New("unreadable document")

// Extractor turns a stored file into plain text.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader) (string, error)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxExtractBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if len(data) > MaxExtractBytes {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrUnreadable, MaxExtractBytes)
	}
	return data, nil
}

// PDFExtractor extracts the text layer of a PDF, page by page, inside the
// calling process. A parser panic is reported as ErrUnreadable, but runaway
// allocation is not containable here; servers use ProcessExtractor.
type PDFExtractor struct{}

func (PDFExtractor) Extract(_ context.Context, r io.Reader) (text string, err error) {
	data, err := readLimited(r)
	if err != nil {
		return "", err
	}
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("%w: parser panic: %v", ErrUnreadable, p)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			// Pages that fail to decode are skipped; the rest still count.
			continue
		}
		if pageText = strings.TrimSpace(pageText); pageText != "" {
			pages = append(pages, pageText)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
