package processor

import (
	"context"
	"mime"
	"os"
	"path/filepath"

	"text-extraction-service/pkg/kreuzberg"
)

// DocumentExtractor is satisfied by *kreuzberg.Client.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, content []byte, filename, mimeType string) (*kreuzberg.ExtractResult, error)
}

var documentExts = map[string]bool{
	"pdf":  true,
	"docx": true,
	"doc":  true,
	"pptx": true,
	"odt":  true,
	"rtf":  true,
	"html": true,
	"htm":  true,
}

// Document delegates PDF and office formats to a remote extraction service.
type Document struct {
	extractor DocumentExtractor
}

func NewDocument(extractor DocumentExtractor) *Document {
	return &Document{extractor: extractor}
}

func (d *Document) Name() string { return "document" }

func (d *Document) CanHandle(mime, ext string) bool {
	if documentExts[ext] {
		return true
	}
	return mime == "application/pdf"
}

func (d *Document) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	filename := filepath.Base(path)
	res, err := d.extractor.ExtractText(ctx, data, filename, mime.TypeByExtension(filepath.Ext(filename)))
	if err != nil {
		return "", err
	}
	return res.Content, nil
}
