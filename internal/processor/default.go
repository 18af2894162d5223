package processor

import (
	"log/slog"

	"text-extraction-service/internal/config"
	"text-extraction-service/pkg/deepgram"
	"text-extraction-service/pkg/kreuzberg"
	"text-extraction-service/pkg/whisper"
)

// Default builds the production registry. Order is priority: transcription
// must precede anything that might also claim audio or video.
func Default(cfg *config.Config, log *slog.Logger) *Registry {
	var caps []Capability

	switch cfg.Transcriber {
	case "deepgram":
		caps = append(caps, NewTranscription(DeepgramTranscriber{Client: deepgram.NewClient(deepgram.Config{
			APIKey:   cfg.Deepgram.APIKey,
			BaseURL:  cfg.Deepgram.BaseURL,
			Model:    cfg.Deepgram.Model,
			Language: cfg.Deepgram.Language,
			Timeout:  cfg.Deepgram.Timeout,
		}, log)}))
	case "whisper":
		caps = append(caps, NewTranscription(whisper.NewClient(whisper.Config{
			ServiceURL: cfg.Whisper.ServiceURL,
			Language:   cfg.Whisper.Language,
			Timeout:    cfg.Whisper.Timeout,
		}, log)))
	}

	caps = append(caps, Plaintext{}, Spreadsheet{})

	if cfg.Kreuzberg.Enabled {
		caps = append(caps, NewDocument(kreuzberg.NewClient(kreuzberg.Config{
			ServiceURL: cfg.Kreuzberg.ServiceURL,
			Timeout:    cfg.Kreuzberg.Timeout,
		}, log)))
	}

	return NewRegistry(log, caps...)
}
