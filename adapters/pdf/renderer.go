package reportpdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/goliatone/go-report/report"
)

// DefaultMaxHTMLBytes guards in-memory HTML buffering before PDF conversion.
const DefaultMaxHTMLBytes int64 = 8 * 1024 * 1024

// RenderRequest contains HTML input and page geometry for PDF engines.
type RenderRequest struct {
	HTML     []byte
	Options  report.RenderOptions
	Geometry report.Geometry
}

// Engine renders HTML content into PDF bytes.
type Engine interface {
	Render(ctx context.Context, req RenderRequest) ([]byte, error)
}

// EngineFunc adapts a function to an Engine.
type EngineFunc func(ctx context.Context, req RenderRequest) ([]byte, error)

func (f EngineFunc) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if f == nil {
		return nil, errors.New("pdf engine func is nil")
	}
	return f(ctx, req)
}

// Styler writes a complete styled HTML page for a report.
type Styler interface {
	Style(ctx context.Context, req report.RenderRequest, w io.Writer) error
}

// Renderer converts styled HTML pages into PDF output through an Engine.
type Renderer struct {
	Styler       Styler
	Engine       Engine
	MaxHTMLBytes int64
}

// Render implements report.Renderer.
func (r Renderer) Render(ctx context.Context, req report.RenderRequest) (report.Rendition, error) {
	if r.Styler == nil {
		return report.Rendition{}, report.NewError(report.KindValidation, "pdf renderer requires a styler", nil)
	}
	if r.Engine == nil {
		return report.Rendition{}, report.NewError(report.KindValidation, "pdf renderer requires an engine", nil)
	}

	buffer := newLimitedBuffer(r.MaxHTMLBytes)
	if err := r.Styler.Style(ctx, req, buffer); err != nil {
		return report.Rendition{}, err
	}

	pdf, err := r.Engine.Render(ctx, RenderRequest{
		HTML:     buffer.Bytes(),
		Options:  req.Options,
		Geometry: req.Geometry,
	})
	if err != nil {
		return report.Rendition{}, err
	}

	return report.Rendition{Data: pdf, Pages: countPages(pdf)}, nil
}

var pageObjectPattern = regexp.MustCompile(`/Type\s*/Page[^s]`)

func countPages(pdf []byte) int {
	return len(pageObjectPattern.FindAllIndex(pdf, -1))
}

// WKHTMLTOPDFEngine invokes wkhtmltopdf for HTML-to-PDF conversion. HTML is
// piped on stdin and the PDF is written to a temp file that is always removed.
type WKHTMLTOPDFEngine struct {
	Command string
	Args    []string
	Env     []string
	Timeout time.Duration
	TempDir string
}

// Render executes wkhtmltopdf.
func (e WKHTMLTOPDFEngine) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	cmdPath := strings.TrimSpace(e.Command)
	if cmdPath == "" {
		cmdPath = "wkhtmltopdf"
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cmdCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	out, err := os.CreateTemp(e.TempDir, "report-*.pdf")
	if err != nil {
		return nil, report.NewError(report.KindInternal, "wkhtmltopdf temp file", err)
	}
	outPath := out.Name()
	_ = out.Close()
	defer os.Remove(outPath)

	args := append([]string{}, geometryArgs(req.Geometry)...)
	args = append(args, e.Args...)
	args = append(args, "--quiet", "-", filepath.Clean(outPath))
	cmd := exec.CommandContext(cmdCtx, cmdPath, args...)
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	cmd.Stdin = bytes.NewReader(req.HTML)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := cmdCtx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = "wkhtmltopdf failed"
		}
		return nil, report.NewError(report.KindSerialization, message, err)
	}

	pdf, err := os.ReadFile(outPath)
	if err != nil {
		return nil, report.NewError(report.KindSerialization, "wkhtmltopdf output unreadable", err)
	}
	return pdf, nil
}

func geometryArgs(geo report.Geometry) []string {
	if geo.Width <= 0 || geo.Height <= 0 {
		return nil
	}
	mm := func(pt float64) string {
		return fmt.Sprintf("%.2fmm", pt*25.4/72)
	}
	return []string{
		"--page-width", mm(geo.Width),
		"--page-height", mm(geo.Height),
		"--margin-top", mm(geo.Margin),
		"--margin-bottom", mm(geo.Margin),
		"--margin-left", mm(geo.Margin),
		"--margin-right", mm(geo.Margin),
		"--encoding", "utf-8",
	}
}

type limitedBuffer struct {
	buf     bytes.Buffer
	maxSize int64
}

func newLimitedBuffer(maxSize int64) *limitedBuffer {
	if maxSize <= 0 {
		maxSize = DefaultMaxHTMLBytes
	}
	return &limitedBuffer{maxSize: maxSize}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.maxSize > 0 && int64(b.buf.Len()+len(p)) > b.maxSize {
		return 0, report.NewError(report.KindSerialization, "pdf renderer max html bytes exceeded", nil)
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}

func inches(pt float64) float64 {
	return pt / 72
}
