package entity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyPayload     = errors.New("empty file")
	ErrStorage          = errors.New("storage error")
	ErrQueue            = errors.New("queue error")
	ErrUnsupportedMedia = errors.New("unsupported media")
	ErrProcessor        = errors.New("processor error")
	ErrInvalidJobID     = errors.New("invalid job id")
	ErrNotFound         = errors.New("not found")
	ErrOutcomeRecorded  = errors.New("outcome already recorded")
)

// UnsupportedMediaError means no registered capability claims the file type.
type UnsupportedMediaError struct {
	Mime      string
	Extension string
}

func (e *UnsupportedMediaError) Error() string {
	return fmt.Sprintf("no processor for %s/%s", e.Mime, e.Extension)
}

func (e *UnsupportedMediaError) Is(target error) bool {
	return target == ErrUnsupportedMedia
}

// ProcessorError wraps a failure raised by a capability during extraction.
type ProcessorError struct {
	Capability string
	Err        error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("processor %s: %v", e.Capability, e.Err)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

func (e *ProcessorError) Is(target error) bool {
	return target == ErrProcessor
}

const maxErrorDetail = 1024

// TruncateDetail bounds error text stored in an outcome.
func TruncateDetail(msg string) string {
	if len(msg) > maxErrorDetail {
		return strings.ToValidUTF8(msg[:maxErrorDetail], "")
	}
	return msg
}
