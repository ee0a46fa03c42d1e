package speech

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/satriahrh/white-fusion/config"
)

// GoogleSpeech implements domain.Transcriber with Cloud Speech-to-Text.
type GoogleSpeech struct {
	client *speech.Client
	cfg    config.Speech
}

func NewGoogleSpeech(ctx context.Context, cfg config.Speech) (*GoogleSpeech, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating Google speech client: %w", err)
	}
	return &GoogleSpeech{client: client, cfg: cfg}, nil
}

func (g *GoogleSpeech) Close() error {
	return g.client.Close()
}

// Transcribe recognizes a short recording and joins the best alternatives.
func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte) (string, error) {
	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig(audio, g.cfg),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", fmt.Errorf("recognizing speech: %w", err)
	}

	parts := make([]string, 0, len(resp.GetResults()))
	for _, result := range resp.GetResults() {
		if alts := result.GetAlternatives(); len(alts) > 0 {
			parts = append(parts, strings.TrimSpace(alts[0].GetTranscript()))
		}
	}
	return strings.Join(parts, " "), nil
}

// recognitionConfig lets the service read WAV and FLAC headers; anything
// else is treated as raw 16-bit PCM at the configured rate.
func recognitionConfig(audio []byte, cfg config.Speech) *speechpb.RecognitionConfig {
	rc := &speechpb.RecognitionConfig{
		LanguageCode:               cfg.LanguageCode,
		EnableAutomaticPunctuation: true,
	}
	switch {
	case bytes.HasPrefix(audio, []byte("RIFF")), bytes.HasPrefix(audio, []byte("fLaC")):
		rc.Encoding = speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	default:
		rc.Encoding = speechpb.RecognitionConfig_LINEAR16
		rc.SampleRateHertz = int32(cfg.SampleRate)
	}
	return rc
}
