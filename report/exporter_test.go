package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

var fixedTime = time.Date(2026, 10, 19, 15, 4, 5, 0, time.UTC)

type recordingRenderer struct {
	calls int
	last  RenderRequest
	data  []byte
	err   error
}

func (r *recordingRenderer) Render(ctx context.Context, req RenderRequest) (Rendition, error) {
	_ = ctx
	r.calls++
	r.last = req
	if r.err != nil {
		return Rendition{}, r.err
	}
	data := r.data
	if data == nil {
		data = []byte("%PDF-1.3\n1 0 obj\nendobj\n%%EOF\n")
	}
	return Rendition{Data: data, Pages: 1}, nil
}

type capturingLogger struct {
	lines []string
}

func (l *capturingLogger) Debugf(format string, args ...any) { l.add(format) }
func (l *capturingLogger) Infof(format string, args ...any)  { l.add(format) }
func (l *capturingLogger) Errorf(format string, args ...any) { l.add(format) }
func (l *capturingLogger) add(format string)                 { l.lines = append(l.lines, format) }

func newTestExporter(renderer Renderer) *Exporter {
	return NewExporter(ExporterConfig{
		Renderers: map[Format]Renderer{FormatPDF: renderer},
		Now:       func() time.Time { return fixedTime },
	})
}

func TestExporter_Success(t *testing.T) {
	renderer := &recordingRenderer{}
	exp := newTestExporter(renderer)

	result := exp.Export(context.Background(), Report{
		Title:       "NVDA Summary",
		Body:        "# NVDA Summary\n\n| Metric | Value |\n|---|---|\n| Price | 120 |\n",
		GeneratedAt: fixedTime,
	}, DefaultRenderOptions())

	if !result.OK() {
		t.Fatalf("expected success, got %+v", result.Failure)
	}
	if result.Success.SuggestedFilename != "NVDA_Summary_20261019T150405Z.pdf" {
		t.Fatalf("unexpected filename %q", result.Success.SuggestedFilename)
	}
	if result.Success.ContentType != "application/pdf" {
		t.Fatalf("unexpected content type %q", result.Success.ContentType)
	}
	if result.Success.Fallback {
		t.Fatalf("expected markdown translation, got fallback")
	}
	tables := renderer.last.Translation.Document.Tables()
	if len(tables) != 1 || len(tables[0].Rows) != 1 {
		t.Fatalf("expected one single-row table, got %+v", tables)
	}
	if renderer.last.Geometry.Width != 612 || renderer.last.Geometry.Margin != 40 {
		t.Fatalf("unexpected geometry %+v", renderer.last.Geometry)
	}
}

func TestExporter_GeometryFailures(t *testing.T) {
	cases := []struct {
		name   string
		margin int
	}{
		{name: "huge margin", margin: 2000},
		{name: "half page height", margin: 396},
		{name: "negative", margin: -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			renderer := &recordingRenderer{}
			exp := newTestExporter(renderer)
			opts := DefaultRenderOptions()
			opts.MarginPx = tc.margin

			result := exp.Export(context.Background(), Report{Title: "x", Body: "hello"}, opts)
			if result.OK() {
				t.Fatalf("expected failure")
			}
			if result.Failure.Kind != KindGeometry {
				t.Fatalf("expected geometry failure, got %s", result.Failure.Kind)
			}
			if renderer.calls != 0 {
				t.Fatalf("renderer should not run on geometry failure")
			}
		})
	}
}

func TestExporter_ValidationFailures(t *testing.T) {
	exp := newTestExporter(&recordingRenderer{})

	opts := DefaultRenderOptions()
	opts.PageSize = "Tabloid"
	if result := exp.Export(context.Background(), Report{Body: "x"}, opts); result.OK() || result.Failure.Kind != KindValidation {
		t.Fatalf("expected validation failure for page size, got %+v", result)
	}

	opts = DefaultRenderOptions()
	opts.FontFamily = "Comic Sans"
	if result := exp.Export(context.Background(), Report{Body: "x"}, opts); result.OK() || result.Failure.Kind != KindValidation {
		t.Fatalf("expected validation failure for font, got %+v", result)
	}

	if result := exp.ExportAs(context.Background(), FormatXLSX, Report{Body: "x"}, DefaultRenderOptions()); result.OK() || result.Failure.Kind != KindValidation {
		t.Fatalf("expected validation failure for missing renderer, got %+v", result)
	}
}

func TestExporter_EmptyOptionsUseDefaults(t *testing.T) {
	renderer := &recordingRenderer{}
	exp := newTestExporter(renderer)

	result := exp.Export(context.Background(), Report{Body: "x"}, RenderOptions{MarginPx: 20})
	if !result.OK() {
		t.Fatalf("expected success, got %+v", result.Failure)
	}
	if renderer.last.Options.PageSize != PageLetter || renderer.last.Options.FontFamily != "Helvetica" {
		t.Fatalf("expected defaults, got %+v", renderer.last.Options)
	}
	if renderer.last.Report.GeneratedAt != fixedTime {
		t.Fatalf("expected clock time for zero GeneratedAt, got %s", renderer.last.Report.GeneratedAt)
	}
	if result.Success.SuggestedFilename != "report_20261019T150405Z.pdf" {
		t.Fatalf("unexpected filename %q", result.Success.SuggestedFilename)
	}
}

func TestNewExporter_LogsRejectedRenderers(t *testing.T) {
	logger := &capturingLogger{}
	exp := NewExporter(ExporterConfig{
		Renderers: map[Format]Renderer{FormatPDF: &recordingRenderer{}, FormatHTML: nil},
		Logger:    logger,
	})
	if _, ok := exp.Renderers.Resolve(FormatHTML); ok {
		t.Fatalf("expected nil renderer to be rejected")
	}
	if _, ok := exp.Renderers.Resolve(FormatPDF); !ok {
		t.Fatalf("expected pdf renderer registered")
	}
	if len(logger.lines) != 1 || !strings.Contains(logger.lines[0], "skipped") {
		t.Fatalf("expected one skipped renderer logged, got %v", logger.lines)
	}
}

func TestExporter_InvalidUTF8FallsBackToPlainText(t *testing.T) {
	renderer := &recordingRenderer{}
	logger := &capturingLogger{}
	exp := newTestExporter(renderer)
	exp.Logger = logger

	result := exp.Export(context.Background(), Report{Title: "bad", Body: "ok line\n\xff\xfe broken"}, DefaultRenderOptions())
	if !result.OK() {
		t.Fatalf("expected success, got %+v", result.Failure)
	}
	if !result.Success.Fallback {
		t.Fatalf("expected fallback flag")
	}
	blocks := renderer.last.Translation.Document.Blocks
	if len(blocks) != 2 || blocks[0].Text != "ok line" {
		t.Fatalf("unexpected fallback blocks %+v", blocks)
	}
	if len(logger.lines) == 0 {
		t.Fatalf("expected fallback to be logged")
	}
}

func TestExporter_TranslationFailureWhenPlainTextImpossible(t *testing.T) {
	exp := newTestExporter(&recordingRenderer{})
	exp.Translator = TranslatorFunc(func(body string, opts RenderOptions) (Translation, error) {
		return Translation{}, NewError(KindTranslation, "boom", nil)
	})

	result := exp.Export(context.Background(), Report{Body: "\x01\x02"}, DefaultRenderOptions())
	if result.OK() {
		t.Fatalf("expected failure")
	}
	if result.Failure.Kind != KindTranslation {
		t.Fatalf("expected translation failure, got %s", result.Failure.Kind)
	}
	if result.Failure.Message == "" {
		t.Fatalf("expected user message")
	}
}

func TestExporter_RendererErrors(t *testing.T) {
	cases := []struct {
		name     string
		renderer Renderer
		kind     ErrorKind
	}{
		{name: "plain error", renderer: &recordingRenderer{err: errors.New("disk full")}, kind: KindSerialization},
		{name: "typed error", renderer: &recordingRenderer{err: NewError(KindGeometry, "too tall", nil)}, kind: KindGeometry},
		{name: "missing trailer", renderer: &recordingRenderer{data: []byte("%PDF-1.3\n")}, kind: KindSerialization},
		{name: "missing header", renderer: &recordingRenderer{data: []byte("hello %%EOF")}, kind: KindSerialization},
		{name: "empty output", renderer: &recordingRenderer{data: []byte{}}, kind: KindSerialization},
		{name: "panic", renderer: RendererFunc(func(ctx context.Context, req RenderRequest) (Rendition, error) {
			panic("layout bug")
		}), kind: KindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exp := newTestExporter(tc.renderer)
			result := exp.Export(context.Background(), Report{Body: "x"}, DefaultRenderOptions())
			if result.OK() {
				t.Fatalf("expected failure")
			}
			if result.Failure.Kind != tc.kind {
				t.Fatalf("expected %s, got %s", tc.kind, result.Failure.Kind)
			}
			if strings.Contains(result.Failure.Message, "goroutine") {
				t.Fatalf("failure message leaks stack: %q", result.Failure.Message)
			}
		})
	}
}

func TestExporter_CanceledContext(t *testing.T) {
	renderer := &recordingRenderer{}
	exp := newTestExporter(renderer)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := exp.Export(ctx, Report{Body: "x"}, DefaultRenderOptions())
	if result.OK() || result.Failure.Kind != KindCanceled {
		t.Fatalf("expected canceled failure, got %+v", result)
	}
	if renderer.calls != 0 {
		t.Fatalf("renderer should not run after cancel")
	}
}

func TestExporter_FilenameTemplate(t *testing.T) {
	exp := newTestExporter(&recordingRenderer{})
	exp.FilenameTemplate = "{{.Date}}-{{.Title}}"

	result := exp.Export(context.Background(), Report{Title: "Q3 memo", GeneratedAt: fixedTime}, DefaultRenderOptions())
	if !result.OK() {
		t.Fatalf("expected success, got %+v", result.Failure)
	}
	if result.Success.SuggestedFilename != "20261019-Q3_memo.pdf" {
		t.Fatalf("unexpected filename %q", result.Success.SuggestedFilename)
	}
}

func TestExportResult_Err(t *testing.T) {
	result := Failed(NewError(KindGeometry, "nope", nil))
	err := result.Err()
	if KindFromError(err) != KindGeometry {
		t.Fatalf("expected geometry kind, got %s", KindFromError(err))
	}
	if Succeeded(Success{Document: []byte("x")}).Err() != nil {
		t.Fatalf("expected nil error for success")
	}
}
