package processor

import (
	"context"
	"os"
	"strings"
)

// Plaintext reads text and markdown files as UTF-8. A leading BOM is kept as U+FEFF.
type Plaintext struct{}

func (Plaintext) Name() string { return "plaintext" }

func (Plaintext) CanHandle(mime, ext string) bool {
	switch ext {
	case "txt", "md", "markdown":
		return true
	}
	return mime == "text/plain" || mime == "text/markdown"
}

func (Plaintext) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}
