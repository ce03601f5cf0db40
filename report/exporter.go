package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"
)

// ExporterConfig configures an Exporter. Zero values fall back to defaults.
type ExporterConfig struct {
	Defaults         RenderOptions
	Translator       Translator
	Fallback         Translator
	Renderers        map[Format]Renderer
	FilenameTemplate string
	Logger           Logger
	Now              func() time.Time
}

// Exporter converts a markdown report into a downloadable document.
type Exporter struct {
	Defaults         RenderOptions
	Translator       Translator
	Fallback         Translator
	Renderers        *RendererRegistry
	FilenameTemplate string
	Logger           Logger
	Now              func() time.Time
}

// NewExporter creates an exporter. Renderers are registered by the caller;
// see adapters/pdf for the default PDF renderer.
func NewExporter(cfg ExporterConfig) *Exporter {
	defaults := cfg.Defaults
	if defaults == (RenderOptions{}) {
		defaults = DefaultRenderOptions()
	}
	if defaults.PageSize == "" {
		defaults.PageSize = DefaultPageSize
	}
	if defaults.FontFamily == "" {
		defaults.FontFamily = DefaultFontFamily
	}

	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	renderers := NewRendererRegistry()
	for format, renderer := range cfg.Renderers {
		if err := renderers.Register(format, renderer); err != nil {
			logger.Errorf("report renderer %q skipped: %v", format, err)
		}
	}

	exp := &Exporter{
		Defaults:         defaults,
		Translator:       cfg.Translator,
		Fallback:         cfg.Fallback,
		Renderers:        renderers,
		FilenameTemplate: cfg.FilenameTemplate,
		Logger:           logger,
		Now:              cfg.Now,
	}
	if exp.Translator == nil {
		exp.Translator = MarkdownTranslator{}
	}
	if exp.Fallback == nil {
		exp.Fallback = PlainTextTranslator{}
	}
	if exp.Now == nil {
		exp.Now = time.Now
	}
	return exp
}

// Export renders the report as PDF.
func (e *Exporter) Export(ctx context.Context, rep Report, opts RenderOptions) ExportResult {
	return e.ExportAs(ctx, FormatPDF, rep, opts)
}

// ExportAs renders the report in the given format. It always returns exactly
// one result and never panics.
func (e *Exporter) ExportAs(ctx context.Context, format Format, rep Report, opts RenderOptions) (result ExportResult) {
	if e == nil {
		return Failed(NewError(KindInternal, "exporter is nil", nil))
	}
	logger := e.logger()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("report export panic: %v", rec)
			result = Failed(NewError(KindInternal, "export failed unexpectedly", fmt.Errorf("panic: %v", rec)))
		}
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}
	if format == "" {
		format = FormatPDF
	}

	opts = e.resolveOptions(opts)
	geometry, err := ResolveGeometry(opts)
	if err != nil {
		logger.Infof("report export rejected: %v", err)
		return Failed(err)
	}
	family, err := ResolveFontFamily(opts.FontFamily)
	if err != nil {
		return Failed(err)
	}
	opts.PageSize = geometry.PageSize
	opts.FontFamily = family

	if e.Renderers == nil {
		return Failed(NewError(KindInternal, "renderer registry is not configured", nil))
	}
	renderer, ok := e.Renderers.Resolve(format)
	if !ok {
		return Failed(NewError(KindValidation, fmt.Sprintf("no renderer registered for %q", format), nil))
	}

	if rep.GeneratedAt.IsZero() {
		rep.GeneratedAt = e.now()
	}

	translation, err := e.translate(rep.Body, opts)
	if err != nil {
		logger.Errorf("report translation failed: %v", err)
		return Failed(err)
	}
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}

	rendition, err := renderer.Render(ctx, RenderRequest{
		Report:      rep,
		Translation: translation,
		Options:     opts,
		Geometry:    geometry,
	})
	if err != nil {
		err = classifyRenderError(err)
		logger.Errorf("report render failed: %v", err)
		return Failed(err)
	}
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}
	if err := checkRendition(format, rendition.Data); err != nil {
		logger.Errorf("report render produced invalid output: %v", err)
		return Failed(err)
	}

	filename, err := renderFilename(e.FilenameTemplate, rep, format, rep.GeneratedAt)
	if err != nil {
		logger.Errorf("report filename template failed: %v", err)
		filename, _ = renderFilename(DefaultFilenameTemplate, rep, format, rep.GeneratedAt)
	}

	if rendition.Substituted > 0 {
		logger.Infof("report export replaced %d undrawable character(s)", rendition.Substituted)
	}
	logger.Debugf("report exported: format=%s bytes=%d pages=%d fallback=%t", format, len(rendition.Data), rendition.Pages, translation.Fallback)

	return Succeeded(Success{
		Document:          rendition.Data,
		SuggestedFilename: filename,
		ContentType:       ContentTypeFor(format),
		Pages:             rendition.Pages,
		Fallback:          translation.Fallback,
		Substituted:       rendition.Substituted,
	})
}

// Translate runs the configured translator with the plain-text fallback. It
// is exposed for previews that do not need a renderer.
func (e *Exporter) Translate(body string, opts RenderOptions) (Translation, error) {
	if e == nil {
		return Translation{}, NewError(KindInternal, "exporter is nil", nil)
	}
	return e.translate(body, e.resolveOptions(opts))
}

// ResolveOptions fills empty page size and font family from the defaults.
func (e *Exporter) ResolveOptions(opts RenderOptions) RenderOptions {
	if e == nil {
		return opts
	}
	return e.resolveOptions(opts)
}

func (e *Exporter) resolveOptions(opts RenderOptions) RenderOptions {
	if opts.PageSize == "" {
		opts.PageSize = e.Defaults.PageSize
	}
	if opts.FontFamily == "" {
		opts.FontFamily = e.Defaults.FontFamily
	}
	return opts
}

func (e *Exporter) translate(body string, opts RenderOptions) (Translation, error) {
	primary := e.Translator
	if primary == nil {
		primary = MarkdownTranslator{}
	}
	translation, err := primary.Translate(body, opts)
	if err == nil {
		return translation, nil
	}

	e.logger().Infof("markdown translation failed, using plain text: %v", err)
	fallback := e.Fallback
	if fallback == nil {
		fallback = PlainTextTranslator{}
	}
	translation, fbErr := fallback.Translate(body, opts)
	if fbErr != nil {
		return Translation{}, NewError(KindTranslation, "report body could not be translated", fbErr)
	}
	translation.Fallback = true
	return translation, nil
}

func (e *Exporter) logger() Logger {
	if e.Logger == nil {
		return NopLogger{}
	}
	return e.Logger
}

func (e *Exporter) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// classifyRenderError keeps typed and context errors and treats anything else
// as a serialization failure.
func classifyRenderError(err error) error {
	switch KindFromError(err) {
	case KindInternal:
		var reportErr *ReportError
		if errors.As(err, &reportErr) {
			return err
		}
		return NewError(KindSerialization, "document rendering failed", err)
	default:
		return err
	}
}

func checkRendition(format Format, data []byte) error {
	if len(data) == 0 {
		return NewError(KindSerialization, "renderer produced no output", nil)
	}
	if format != FormatPDF {
		return nil
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return NewError(KindSerialization, "output is missing the PDF header", nil)
	}
	tail := data
	if len(tail) > 1024 {
		tail = tail[len(tail)-1024:]
	}
	if !bytes.Contains(tail, []byte("%%EOF")) {
		return NewError(KindSerialization, "output is missing the PDF trailer", nil)
	}
	return nil
}
