package reportactivity

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-report/report"
	"github.com/google/uuid"
)

func TestEmitter_Validation(t *testing.T) {
	ctx := context.Background()
	evt := report.ChangeEvent{Name: report.EventPublished, Handle: "h-1", Timestamp: time.Now()}

	var nilEmitter *Emitter
	if err := nilEmitter.Emit(ctx, evt); report.KindFromError(err) != report.KindInternal {
		t.Fatalf("expected internal error for nil emitter, got %v", err)
	}
	if err := NewEmitter(Config{}).Emit(ctx, evt); report.KindFromError(err) != report.KindInternal {
		t.Fatalf("expected internal error without sink, got %v", err)
	}
}

func TestNewEmitter_Defaults(t *testing.T) {
	e := NewEmitter(Config{Channel: "  ", ObjectType: ""})
	if e.channel != "report" || e.objectType != "report" {
		t.Fatalf("unexpected defaults %q %q", e.channel, e.objectType)
	}
}

func TestBuildMetadata(t *testing.T) {
	meta := buildMetadata(report.ChangeEvent{
		Filename:    "q3.pdf",
		ContentType: "application/pdf",
		Size:        42,
		Metadata:    map[string]any{"format": "pdf"},
	})
	if meta["filename"] != "q3.pdf" || meta["size"] != int64(42) || meta["format"] != "pdf" {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if _, ok := buildMetadata(report.ChangeEvent{})["size"]; ok {
		t.Fatalf("expected zero size to be omitted")
	}
}

func TestParseUUID(t *testing.T) {
	id := uuid.New()
	cases := []struct {
		in   string
		want uuid.UUID
	}{
		{in: "", want: uuid.Nil},
		{in: "not-a-uuid", want: uuid.Nil},
		{in: id.String(), want: id},
		{in: " " + id.String(), want: id},
	}
	for _, tc := range cases {
		if got := parseUUID(tc.in); got != tc.want {
			t.Fatalf("parseUUID(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
