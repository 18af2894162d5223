package processor

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"text-extraction-service/pkg/deepgram"
	"text-extraction-service/pkg/whisper"
)

// Transcriber turns audio bytes into text.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, filename string) (string, error)
}

// Transcription claims every audio/* and video/* file.
type Transcription struct {
	backend Transcriber
}

func NewTranscription(backend Transcriber) *Transcription {
	return &Transcription{backend: backend}
}

func (t *Transcription) Name() string { return "transcription" }

func (t *Transcription) CanHandle(mime, ext string) bool {
	return strings.HasPrefix(mime, "audio/") || strings.HasPrefix(mime, "video/")
}

func (t *Transcription) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return t.backend.Transcribe(ctx, data, filepath.Base(path))
}

func (t *Transcription) Postprocess(text string) Result {
	segments := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "[") {
			segments++
		}
	}
	return Result{Text: text, Metadata: map[string]any{"segments": segments}}
}

// DeepgramTranscriber adapts the Deepgram client, which wants a content type.
type DeepgramTranscriber struct {
	Client *deepgram.Client
}

func (d DeepgramTranscriber) Transcribe(ctx context.Context, data []byte, filename string) (string, error) {
	ct := mime.TypeByExtension(filepath.Ext(filename))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return d.Client.Transcribe(ctx, data, ct)
}

var (
	_ Transcriber = DeepgramTranscriber{}
	_ Transcriber = (*whisper.Client)(nil)
)
