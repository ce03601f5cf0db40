package report

import (
	"context"
	"io"
	"strings"
	"time"
)

// Format is the export output format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
	FormatXLSX Format = "xlsx"
)

// PageSize names a supported paper size.
type PageSize string

const (
	PageLetter PageSize = "Letter"
	PageA4     PageSize = "A4"
)

// Report is the markdown text and metadata to be exported.
type Report struct {
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	GeneratedAt time.Time `json:"generated_at"`
}

// DefaultTitle is shown when a report has no title.
const DefaultTitle = "Report"

// DisplayTitle returns the trimmed title, or DefaultTitle when it is blank.
func (r Report) DisplayTitle() string {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return DefaultTitle
	}
	return title
}

// GeneratedLabel formats GeneratedAt for the title block. It is empty when
// the timestamp is unset.
func (r Report) GeneratedLabel() string {
	if r.GeneratedAt.IsZero() {
		return ""
	}
	return r.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC")
}

// RenderOptions controls page geometry and which markdown constructs are honored.
// Empty PageSize and FontFamily fall back to the exporter defaults.
type RenderOptions struct {
	PageSize          PageSize `json:"page_size"`
	MarginPx          int      `json:"margin_px"`
	IncludeTables     bool     `json:"include_tables"`
	IncludeFencedCode bool     `json:"include_fenced_code"`
	FontFamily        string   `json:"font_family"`
}

// ResultStatus tags an ExportResult.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusFailure ResultStatus = "failure"
)

// Success carries a finished document.
type Success struct {
	Document          []byte
	SuggestedFilename string
	ContentType       string
	Pages             int
	Fallback          bool
	// Substituted counts characters the renderer could not draw and
	// replaced with a marker.
	Substituted int
}

// Failure describes why an export did not produce a document.
type Failure struct {
	Kind    ErrorKind
	Message string
	Err     error `json:"-"`
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	return f.Message
}

func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Err
}

// ExportResult is the typed outcome of one export call.
type ExportResult struct {
	Status  ResultStatus
	Success *Success
	Failure *Failure
}

// Succeeded wraps a success value.
func Succeeded(s Success) ExportResult {
	return ExportResult{Status: StatusSuccess, Success: &s}
}

// Failed builds a failure result from an error, classifying it by kind.
func Failed(err error) ExportResult {
	kind := KindFromError(err)
	if kind == "" {
		kind = KindInternal
	}
	return ExportResult{
		Status: StatusFailure,
		Failure: &Failure{
			Kind:    kind,
			Message: UserMessage(kind),
			Err:     err,
		},
	}
}

// OK reports whether the result carries a document.
func (r ExportResult) OK() bool {
	return r.Status == StatusSuccess && r.Success != nil
}

// Err returns the failure as a ReportError, or nil on success.
func (r ExportResult) Err() error {
	if r.OK() {
		return nil
	}
	if r.Failure == nil {
		return NewError(KindInternal, "export produced no result", nil)
	}
	return NewError(r.Failure.Kind, r.Failure.Message, r.Failure.Err)
}

// Translation is the structured form of a report body.
type Translation struct {
	Document Document
	HTML     []byte
	Fallback bool
}

// Translator converts a markdown body into structured markup.
type Translator interface {
	Translate(body string, opts RenderOptions) (Translation, error)
}

// TranslatorFunc adapts a function to a Translator.
type TranslatorFunc func(body string, opts RenderOptions) (Translation, error)

func (f TranslatorFunc) Translate(body string, opts RenderOptions) (Translation, error) {
	if f == nil {
		return Translation{}, NewError(KindInternal, "translator func is nil", nil)
	}
	return f(body, opts)
}

// RenderRequest is passed to renderers.
type RenderRequest struct {
	Report      Report
	Translation Translation
	Options     RenderOptions
	Geometry    Geometry
}

// Rendition is renderer output.
type Rendition struct {
	Data        []byte
	Pages       int
	Substituted int
}

// Renderer lays out and serializes a translated report.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (Rendition, error)
}

// RendererFunc adapts a function to a Renderer.
type RendererFunc func(ctx context.Context, req RenderRequest) (Rendition, error)

func (f RendererFunc) Render(ctx context.Context, req RenderRequest) (Rendition, error) {
	if f == nil {
		return Rendition{}, NewError(KindInternal, "renderer func is nil", nil)
	}
	return f(ctx, req)
}

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}

// ArtifactMeta captures stored artifact metadata.
type ArtifactMeta struct {
	ContentType string
	Size        int64
	Filename    string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// ArtifactRef references a stored artifact.
type ArtifactRef struct {
	Key  string
	Meta ArtifactMeta
}

// ArtifactStore stores published documents.
type ArtifactStore interface {
	Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error)
	Open(ctx context.Context, key string) (io.ReadCloser, ArtifactMeta, error)
	Delete(ctx context.Context, key string) error
}
