// Package kreuzberg provides an HTTP client for the Kreuzberg document extraction service,
// which turns PDF, Office and similar documents into plain text.
// See: https://github.com/Goldziher/kreuzberg
package kreuzberg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	ServiceURL string
	Timeout    time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
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
		timeout:    cfg.Timeout,
		log:        log.With("component", "kreuzberg"),
	}
}

type ExtractResult struct {
	Content  string           `json:"content"`
	Metadata *ExtractMetadata `json:"metadata,omitempty"`
}

type ExtractMetadata struct {
	PageCount *int   `json:"page_count,omitempty"`
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
}

// Error is returned for non-2xx responses and transport failures.
type Error struct {
	Message    string
	Detail     string
	StatusCode int
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

// ExtractText posts content as multipart field "file" to POST /extract.
func (c *Client) ExtractText(ctx context.Context, content []byte, filename, mimeType string) (*ExtractResult, error) {
	start := time.Now()
	c.log.Debug("extracting text from document",
		"filename", filename,
		"mime_type", mimeType,
		"size_bytes", len(content),
	)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("write file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &Error{
				Message:    fmt.Sprintf("kreuzberg request timed out for %s", filename),
				StatusCode: http.StatusRequestTimeout,
			}
		}
		return nil, &Error{
			Message:    fmt.Sprintf("kreuzberg service unavailable at %s", c.baseURL),
			Detail:     err.Error(),
			StatusCode: http.StatusServiceUnavailable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, c.errorFromResponse(resp.StatusCode, body, filename)
	}

	// Older releases answer with a one-element array.
	var result ExtractResult
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var results []ExtractResult
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if len(results) == 0 {
			return nil, &Error{Message: "kreuzberg returned no results", StatusCode: resp.StatusCode}
		}
		result = results[0]
	} else if err := json.Unmarshal(trimmed, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.log.Info("extraction completed",
		"filename", filename,
		"content_length", len(result.Content),
		"duration", time.Since(start),
	)
	return &result, nil
}

func (c *Client) errorFromResponse(statusCode int, body []byte, filename string) *Error {
	var errResp struct {
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}

	var message, detail string
	if err := json.Unmarshal(body, &errResp); err == nil {
		message = errResp.Error
		if message == "" {
			message = errResp.Message
		}
		detail = errResp.Detail
	} else {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = fmt.Sprintf("kreuzberg error for %s", filename)
	}

	c.log.Warn("kreuzberg error",
		"filename", filename,
		"status_code", statusCode,
		"message", message,
	)
	return &Error{Message: message, Detail: detail, StatusCode: statusCode}
}
