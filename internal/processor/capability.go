// Package processor holds the extraction capabilities and the registry that
// picks one of them for a file's (MIME type, extension) pair.
package processor

import (
	"context"
	"mime"
	"strings"
)

// Capability turns one class of files into text. Implementations are created
// once at startup and shared by every worker goroutine, so Extract must be
// safe for concurrent use.
type Capability interface {
	Name() string
	// CanHandle must depend on mime and ext only. Both arrive normalized:
	// lower-cased, MIME parameters stripped, no leading dot on ext.
	CanHandle(mime, ext string) bool
	Extract(ctx context.Context, path string) (string, error)
}

// Postprocessor is implemented by capabilities that enrich their raw text.
type Postprocessor interface {
	Postprocess(text string) Result
}

// Result is the structured output of a capability. Text is what gets stored.
type Result struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func postprocess(c Capability, text string) Result {
	if pp, ok := c.(Postprocessor); ok {
		return pp.Postprocess(text)
	}
	return Result{Text: text}
}

// NormalizeMime lower-cases a content type and drops its parameters.
func NormalizeMime(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(v); err == nil {
		return mt
	}
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = v[:i]
	}
	return strings.ToLower(strings.TrimSpace(v))
}

// NormalizeExt lower-cases an extension and drops a leading dot.
func NormalizeExt(v string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(v), "."))
}
