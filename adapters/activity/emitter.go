package reportactivity

import (
	"context"
	"strings"

	"github.com/goliatone/go-report/report"
	"github.com/goliatone/go-users/activity"
	"github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Config configures the activity emitter adapter.
type Config struct {
	Sink       types.ActivitySink
	Channel    string
	ObjectType string
	// ActorID resolves the acting user for an event. Events without an actor
	// are logged against the nil UUID.
	ActorID func(ctx context.Context) string
}

// Emitter adapts report lifecycle events into go-users activity records.
type Emitter struct {
	sink       types.ActivitySink
	channel    string
	objectType string
	actorID    func(ctx context.Context) string
}

var _ report.ChangeEmitter = (*Emitter)(nil)

// NewEmitter creates a new activity emitter.
func NewEmitter(cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = "report"
	}
	objectType := strings.TrimSpace(cfg.ObjectType)
	if objectType == "" {
		objectType = "report"
	}
	return &Emitter{
		sink:       cfg.Sink,
		channel:    channel,
		objectType: objectType,
		actorID:    cfg.ActorID,
	}
}

// Emit logs a report lifecycle event to the configured ActivitySink.
func (e *Emitter) Emit(ctx context.Context, evt report.ChangeEvent) error {
	if e == nil {
		return report.NewError(report.KindInternal, "activity emitter is nil", nil)
	}
	if e.sink == nil {
		return report.NewError(report.KindInternal, "activity sink not configured", nil)
	}
	verb := strings.TrimSpace(evt.Name)
	if verb == "" {
		return report.NewError(report.KindValidation, "activity verb is required", nil)
	}
	objectID := strings.TrimSpace(evt.Handle)
	if objectID == "" {
		return report.NewError(report.KindValidation, "activity object ID is required", nil)
	}

	actor := ""
	if e.actorID != nil {
		actor = e.actorID(ctx)
	}
	record, err := activity.BuildRecordFromUUID(
		parseUUID(actor),
		verb,
		e.objectType,
		objectID,
		buildMetadata(evt),
		activity.WithChannel(e.channel),
		activity.WithOccurredAt(evt.Timestamp),
	)
	if err != nil {
		return err
	}
	return e.sink.Log(ctx, record)
}

func buildMetadata(evt report.ChangeEvent) map[string]any {
	meta := make(map[string]any, 3+len(evt.Metadata))
	if evt.Filename != "" {
		meta["filename"] = evt.Filename
	}
	if evt.ContentType != "" {
		meta["content_type"] = evt.ContentType
	}
	if evt.Size > 0 {
		meta["size"] = evt.Size
	}
	for k, v := range evt.Metadata {
		meta[k] = v
	}
	return meta
}

func parseUUID(value string) uuid.UUID {
	value = strings.TrimSpace(value)
	if value == "" {
		return uuid.Nil
	}
	parsed, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
