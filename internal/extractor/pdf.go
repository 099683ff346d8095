// Package extractor inspects binary statement formats that the parser hands
// off to an external extraction provider.
package extractor

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDFInfo describes a PDF document's structure.
type PDFInfo struct {
	Pages int
}

// InspectPDF opens a PDF held in memory and reports its page count. Text is
// never extracted. Malformed documents return an error; the pdf library's
// panics on corrupt input are recovered.
func InspectPDF(content []byte) (info PDFInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return PDFInfo{}, fmt.Errorf("opening PDF: %w", err)
	}

	pages := r.NumPage()
	if pages == 0 {
		return PDFInfo{}, fmt.Errorf("PDF has no pages")
	}
	return PDFInfo{Pages: pages}, nil
}
