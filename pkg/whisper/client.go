// Package whisper provides an HTTP client for a self-hosted Whisper ASR webservice.
//
// The service accepts multipart audio uploads and returns plaintext transcripts.
// See: https://github.com/ahmetoner/whisper-asr-webservice
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	ServiceURL string
	Language   string
	Timeout    time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	language   string
	timeout    time.Duration
	log        *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimSuffix(cfg.ServiceURL, "/"),
		language:   cfg.Language,
		timeout:    cfg.Timeout,
		log:        log.With("component", "whisper"),
	}
}

// Transcribe uploads audio as field "audio_file" to POST /asr?output=txt&task=transcribe.
func (c *Client) Transcribe(ctx context.Context, data []byte, filename string) (string, error) {
	start := time.Now()
	c.log.Debug("transcribing audio file", "filename", filename, "size_bytes", len(data))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio_file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write audio content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	endpoint, err := url.Parse(c.baseURL + "/asr")
	if err != nil {
		return "", fmt.Errorf("parse service URL: %w", err)
	}
	q := endpoint.Query()
	q.Set("output", "txt")
	q.Set("task", "transcribe")
	if c.language != "" {
		q.Set("language", c.language)
	}
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("whisper transcription timed out for %s after %s", filename, c.timeout)
		}
		return "", fmt.Errorf("whisper service unavailable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		excerpt := string(body)
		if len(excerpt) > 200 {
			excerpt = excerpt[:200] + "..."
		}
		return "", fmt.Errorf("whisper service returned %d for %s: %s", resp.StatusCode, filename, strings.TrimSpace(excerpt))
	}

	transcript := strings.TrimSpace(string(body))
	c.log.Info("transcription completed",
		"filename", filename,
		"transcript_length", len(transcript),
		"duration", time.Since(start),
	)
	return transcript, nil
}
