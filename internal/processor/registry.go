package processor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"text-extraction-service/internal/entity"
)

// Registry resolves files to capabilities by scanning them in registration
// order; the first capability that claims a file wins.
type Registry struct {
	mu   sync.RWMutex
	caps []Capability
	log  *slog.Logger
}

func NewRegistry(log *slog.Logger, caps ...Capability) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{log: log.With("component", "registry")}
	for _, c := range caps {
		r.Register(c)
	}
	return r
}

// Register appends c. A capability whose name is already registered is ignored,
// so registering twice never changes resolution.
func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.caps {
		if existing.Name() == c.Name() {
			r.log.Warn("capability already registered", "capability", c.Name())
			return
		}
	}
	r.caps = append(r.caps, c)
	r.log.Info("capability registered", "capability", c.Name(), "priority", len(r.caps))
}

// Names lists registered capabilities in priority order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.caps))
	for i, c := range r.caps {
		names[i] = c.Name()
	}
	return names
}

// Resolve returns the first capability claiming the pair, or an
// *entity.UnsupportedMediaError.
func (r *Registry) Resolve(mime, ext string) (Capability, error) {
	mime, ext = NormalizeMime(mime), NormalizeExt(ext)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.caps {
		if c.CanHandle(mime, ext) {
			return c, nil
		}
	}
	return nil, &entity.UnsupportedMediaError{Mime: mime, Extension: ext}
}

// Run resolves a capability, extracts the file at path and postprocesses the text.
// Capability failures, panics included, come back as *entity.ProcessorError.
func (r *Registry) Run(ctx context.Context, mime, ext, path string) (string, Result, error) {
	c, err := r.Resolve(mime, ext)
	if err != nil {
		return "", Result{}, err
	}

	res, err := invoke(ctx, c, path)
	if err != nil {
		return c.Name(), Result{}, &entity.ProcessorError{Capability: c.Name(), Err: err}
	}
	return c.Name(), res, nil
}

func invoke(ctx context.Context, c Capability, path string) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	text, err := c.Extract(ctx, path)
	if err != nil {
		return Result{}, err
	}
	return postprocess(c, text), nil
}
