package chunker

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"pdfrag/internal/domain"
)

// PDF reads a directory of PDF files and emits one chunk per page, in
// document order. Non-PDF entries are skipped with a notice; a file the
// PDF reader cannot open aborts the whole run.
type PDF struct {
	logger *log.Logger
}

// NewPDF creates a PDF chunker. A nil logger falls back to the default logger.
func NewPDF(logger *log.Logger) *PDF {
	if logger == nil {
		logger = log.Default()
	}
	return &PDF{logger: logger}
}

func (c *PDF) Chunk(dir string) ([]domain.Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &domain.ExtractionError{File: dir, Err: err}
	}
	var chunks []domain.Chunk
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".pdf") {
			c.logger.Printf("skipping %s: not a PDF file", name)
			continue
		}
		pages, err := extractPages(filepath.Join(dir, name))
		if err != nil {
			return nil, &domain.ExtractionError{File: name, Err: err}
		}
		for i, text := range pages {
			chunks = append(chunks, domain.Chunk{Source: name, Sequence: i + 1, Text: text})
		}
	}
	return chunks, nil
}

func extractPages(path string) ([]string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Image-only or undecodable page content: pass through as empty
			// text so page numbering stays aligned with the document.
			text = ""
		}
		pages = append(pages, text)
	}
	return pages, nil
}
