package extractor

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/satriahrh/white-fusion/domain"
	"github.com/satriahrh/white-fusion/utils/log"
)

// Recognizer turns an image or scanned document into text.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Extractor implements domain.TextExtractor. PDFs are read from their text
// layer; documents without one fall back to OCR.
type Extractor struct {
	ocr Recognizer
}

func New(ocr Recognizer) *Extractor {
	return &Extractor{ocr: ocr}
}

// ExtractPDF returns the text of each page.
func (e *Extractor) ExtractPDF(ctx context.Context, data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", domain.ErrUnreadableDocument, err)
	}

	pages := make([]string, 0, reader.NumPage())
	scanned := true
	for i := 1; i <= reader.NumPage(); i++ {
		text := pageText(ctx, reader.Page(i), i)
		if text != "" {
			scanned = false
		}
		pages = append(pages, text)
	}
	if !scanned || len(pages) == 0 {
		return pages, nil
	}

	log.WithCtx(ctx).Info("PDF has no text layer, running OCR", zap.Int("pages", len(pages)))
	text, err := e.ocr.Recognize(ctx, data, pdfMIMEType)
	if err != nil {
		return nil, err
	}
	ocrPages := strings.Split(text, pageSeparator)
	for i := range ocrPages {
		ocrPages[i] = strings.TrimSpace(ocrPages[i])
	}
	return ocrPages, nil
}

func pageText(ctx context.Context, page pdf.Page, n int) string {
	if page.V.IsNull() {
		return ""
	}
	fonts := make(map[string]*pdf.Font)
	for _, name := range page.Fonts() {
		f := page.Font(name)
		fonts[name] = &f
	}
	text, err := page.GetPlainText(fonts)
	if err != nil {
		log.WithCtx(ctx).Warn("Failed to read pdf page", zap.Int("page", n), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}

// ExtractImage OCRs an image. An empty mimeType is sniffed from the data.
func (e *Extractor) ExtractImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("%w: unsupported image type %q", domain.ErrUnreadableDocument, mimeType)
	}
	return e.ocr.Recognize(ctx, data, mimeType)
}
