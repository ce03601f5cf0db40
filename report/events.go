package report

import (
	"context"
	"time"
)

// Lifecycle event names.
const (
	EventPublished  = "report.published"
	EventDownloaded = "report.downloaded"
	EventExpired    = "report.expired"
)

// ChangeEvent describes a change to a published document.
type ChangeEvent struct {
	Name        string
	Handle      string
	Filename    string
	ContentType string
	Size        int64
	Timestamp   time.Time
	Metadata    map[string]any
}

// ChangeEmitter receives lifecycle events. Emit errors are logged and never
// fail the operation that produced the event.
type ChangeEmitter interface {
	Emit(ctx context.Context, evt ChangeEvent) error
}

// ChangeEmitterFunc adapts a function to a ChangeEmitter.
type ChangeEmitterFunc func(ctx context.Context, evt ChangeEvent) error

func (f ChangeEmitterFunc) Emit(ctx context.Context, evt ChangeEvent) error {
	return f(ctx, evt)
}

func eventFor(name, handle string, meta ArtifactMeta, at time.Time) ChangeEvent {
	return ChangeEvent{
		Name:        name,
		Handle:      handle,
		Filename:    meta.Filename,
		ContentType: meta.ContentType,
		Size:        meta.Size,
		Timestamp:   at,
	}
}
