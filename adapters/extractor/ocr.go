package extractor

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	pdfMIMEType = "application/pdf"

	// pageSeparator splits OCR output of multi-page documents.
	pageSeparator = "\f"

	imagePrompt = "Transcribe all text visible in this image. Respond only with the text, without commentary."
	pdfPrompt   = "Transcribe the text of every page of this document. Respond only with the text, without commentary. Separate pages with a form feed character."
)

// GeminiOCR reads text out of images and scanned documents with a Gemini
// vision model.
type GeminiOCR struct {
	client *genai.Client
	model  string
}

func NewGeminiOCR(client *genai.Client, model string) *GeminiOCR {
	return &GeminiOCR{client: client, model: model}
}

func (g *GeminiOCR) Recognize(ctx context.Context, data []byte, mimeType string) (string, error) {
	prompt := imagePrompt
	if mimeType == pdfMIMEType {
		prompt = pdfPrompt
	}

	contents := []*genai.Content{{
		Role: string(genai.RoleUser),
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
			{Text: prompt},
		},
	}}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("ocr %s: %w", mimeType, err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
