// Package deepgram calls the Deepgram pre-recorded transcription REST API
// and renders diarized paragraphs as timestamped speaker lines.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Timeout  time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	language   string
	timeout    time.Duration
	log        *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepgram.com"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		language:   cfg.Language,
		timeout:    cfg.Timeout,
		log:        log.With("component", "deepgram"),
	}
}

type Sentence struct {
	Text string `json:"text"`
}

type Paragraph struct {
	Speaker   int        `json:"speaker"`
	Start     float64    `json:"start"`
	End       float64    `json:"end"`
	Sentences []Sentence `json:"sentences"`
}

type Response struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
				Paragraphs *struct {
					Paragraphs []Paragraph `json:"paragraphs"`
				} `json:"paragraphs"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe posts the raw media bytes and returns one line per speaker paragraph.
func (c *Client) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint, err := url.Parse(c.baseURL + "/v1/listen")
	if err != nil {
		return "", fmt.Errorf("parse service URL: %w", err)
	}
	q := endpoint.Query()
	q.Set("model", c.model)
	if c.language != "" {
		q.Set("language", c.language)
	}
	q.Set("diarize", "true")
	q.Set("paragraphs", "true")
	q.Set("punctuate", "true")
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	if mimeType != "" {
		req.Header.Set("Content-Type", mimeType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("deepgram transcription timed out after %s", c.timeout)
		}
		return "", fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		excerpt := strings.TrimSpace(string(body))
		if len(excerpt) > 200 {
			excerpt = excerpt[:200] + "..."
		}
		return "", fmt.Errorf("deepgram returned %d: %s", resp.StatusCode, excerpt)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	text, err := Format(&out)
	if err != nil {
		return "", err
	}

	c.log.Info("transcription completed",
		"model", c.model,
		"transcript_length", len(text),
		"duration", time.Since(start),
	)
	return text, nil
}

// Format renders paragraphs as "[start→end] Speaker N: text" lines. Responses
// without paragraph data fall back to the plain transcript.
func Format(resp *Response) (string, error) {
	if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return "", errors.New("deepgram response has no alternatives")
	}
	alt := resp.Results.Channels[0].Alternatives[0]
	if alt.Paragraphs == nil || len(alt.Paragraphs.Paragraphs) == 0 {
		return strings.TrimSpace(alt.Transcript), nil
	}

	lines := make([]string, 0, len(alt.Paragraphs.Paragraphs))
	for _, p := range alt.Paragraphs.Paragraphs {
		parts := make([]string, 0, len(p.Sentences))
		for _, s := range p.Sentences {
			parts = append(parts, s.Text)
		}
		lines = append(lines, fmt.Sprintf("[%.2fs→%.2fs] Speaker %d: %s",
			p.Start, p.End, p.Speaker, strings.Join(parts, " ")))
	}
	return strings.Join(lines, "\n"), nil
}
