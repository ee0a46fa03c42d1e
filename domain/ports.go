package domain

import "context"

// Mailer delivers transactional email.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string) error
}

// TextExtractor pulls readable text out of uploaded documents.
type TextExtractor interface {
	// ExtractPDF returns one entry per page.
	ExtractPDF(ctx context.Context, data []byte) ([]string, error)
	ExtractImage(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Transcriber turns recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer turns text into MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
