package report

import (
	"fmt"
	"sort"
	"sync"
)

// RendererRegistry stores renderers by format.
type RendererRegistry struct {
	mu        sync.RWMutex
	renderers map[Format]Renderer
}

// NewRendererRegistry creates a registry.
func NewRendererRegistry() *RendererRegistry {
	return &RendererRegistry{renderers: make(map[Format]Renderer)}
}

// Register adds a renderer for a format.
func (r *RendererRegistry) Register(format Format, renderer Renderer) error {
	if format == "" {
		return NewError(KindValidation, "renderer format is required", nil)
	}
	if renderer == nil {
		return NewError(KindValidation, "renderer is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.renderers[format]; exists {
		return NewError(KindValidation, fmt.Sprintf("renderer for %q already registered", format), nil)
	}
	r.renderers[format] = renderer
	return nil
}

// Replace sets the renderer for a format, overriding any existing one.
func (r *RendererRegistry) Replace(format Format, renderer Renderer) error {
	if format == "" || renderer == nil {
		return NewError(KindValidation, "renderer format and renderer are required", nil)
	}
	r.mu.Lock()
	r.renderers[format] = renderer
	r.mu.Unlock()
	return nil
}

// Resolve returns the renderer for the format.
func (r *RendererRegistry) Resolve(format Format) (Renderer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	renderer, ok := r.renderers[format]
	return renderer, ok
}

// Formats lists registered formats in sorted order.
func (r *RendererRegistry) Formats() []Format {
	r.mu.RLock()
	formats := make([]Format, 0, len(r.renderers))
	for format := range r.renderers {
		formats = append(formats, format)
	}
	r.mu.RUnlock()
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}
