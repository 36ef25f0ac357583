package parser

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPDFText pulls plain text out of a PDF menu, one string per
// page, for feeding into Parse. Pages that fail text extraction are
// skipped; an all-empty result means the document carries no native
// text layer (scanned menus must go through OCR instead).
func ExtractPDFText(path string) ([]string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var texts []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		texts = append(texts, text)
	}

	if len(texts) == 0 {
		return nil, fmt.Errorf("no extractable text in %s", path)
	}
	return texts, nil
}
