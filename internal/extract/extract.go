// Package extract pulls plain text out of source documents before chunking.
//
// Extraction is format-dispatched on file extension. PDF files yield one Page
// per physical page with 1-based page numbers; plain-text formats yield a
// single Page with number 0, meaning pagination does not apply. Unknown
// extensions fail with types.ErrUnsupportedInput so callers can distinguish
// "we do not handle this" from a corrupt or unreadable file.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/dshills/docsearch-mcp/pkg/logger"
	"github.com/dshills/docsearch-mcp/pkg/types"
)

// Page is one extracted unit of document text.
type Page struct {
	Number int // 1-based page number, 0 when the format has no pages
	Text   string
}

// plainTextExts are extensions handled by direct file reads.
var plainTextExts = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
}

// Supported reports whether the file's extension maps to a known extractor.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".pdf" || plainTextExts[ext]
}

// File extracts the text content of the document at path. The returned pages
// are in document order. Extraction never normalizes: downstream chunking owns
// whitespace and unicode cleanup.
func File(ctx context.Context, path string) ([]Page, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return pdfFile(ctx, path)
	case plainTextExts[ext]:
		return textFile(path)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedInput, ext)
	}
}

func textFile(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	return []Page{{Number: 0, Text: string(data)}}, nil
}

func pdfFile(ctx context.Context, path string) ([]Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	log := logger.FromContext(ctx)
	total := reader.NumPage()
	pages := make([]Page, 0, total)
	for num := 1; num <= total; num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not fail the document; the page is
			// recorded empty so chunk indexing stays aligned with page numbers.
			log.Warn("failed to extract pdf page", "path", path, "page", num, "error", err)
			text = ""
		}
		pages = append(pages, Page{Number: num, Text: text})
	}
	return pages, nil
}
