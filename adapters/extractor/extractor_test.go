package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/white-fusion/domain"
)

type fakeOCR struct {
	text      string
	err       error
	mimeTypes []string
}

func (f *fakeOCR) Recognize(_ context.Context, _ []byte, mimeType string) (string, error) {
	f.mimeTypes = append(f.mimeTypes, mimeType)
	return f.text, f.err
}

// buildPDF writes a single-page PDF whose content stream is content.
func buildPDF(content string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractPDF_TextLayer(t *testing.T) {
	ocr := &fakeOCR{}
	pages, err := New(ocr).ExtractPDF(context.Background(), buildPDF("BT /F1 12 Tf 72 712 Td (Hello PDF) Tj ET"))
	require.NoError(t, err)

	require.Len(t, pages, 1)
	assert.Contains(t, pages[0], "Hello PDF")
	assert.Empty(t, ocr.mimeTypes)
}

func TestExtractPDF_ScannedFallsBackToOCR(t *testing.T) {
	ocr := &fakeOCR{text: "page one\fpage two "}
	pages, err := New(ocr).ExtractPDF(context.Background(), buildPDF(""))
	require.NoError(t, err)

	assert.Equal(t, []string{"page one", "page two"}, pages)
	assert.Equal(t, []string{"application/pdf"}, ocr.mimeTypes)
}

func TestExtractPDF_OCRFailure(t *testing.T) {
	ocr := &fakeOCR{err: errors.New("quota")}
	_, err := New(ocr).ExtractPDF(context.Background(), buildPDF(""))
	assert.EqualError(t, err, "quota")
	assert.NotErrorIs(t, err, domain.ErrUnreadableDocument)
}

func TestExtractPDF_NotAPDF(t *testing.T) {
	_, err := New(&fakeOCR{}).ExtractPDF(context.Background(), []byte("definitely not a pdf"))
	assert.ErrorIs(t, err, domain.ErrUnreadableDocument)
}

func TestExtractImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	ocr := &fakeOCR{text: "receipt total 42"}
	text, err := New(ocr).ExtractImage(context.Background(), png, "")
	require.NoError(t, err)
	assert.Equal(t, "receipt total 42", text)
	assert.Equal(t, []string{"image/png"}, ocr.mimeTypes)

	_, err = New(ocr).ExtractImage(context.Background(), []byte("plain text"), "text/plain")
	assert.ErrorIs(t, err, domain.ErrUnreadableDocument)
}
