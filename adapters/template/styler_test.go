package reporttemplate

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	reportpdf "github.com/goliatone/go-report/adapters/pdf"
	"github.com/goliatone/go-report/report"
)

var fixedTime = time.Date(2026, 10, 19, 15, 4, 5, 0, time.UTC)

func nvdaRequest(t *testing.T) report.RenderRequest {
	t.Helper()
	opts := report.DefaultRenderOptions()
	translation, err := report.MarkdownTranslator{}.Translate("# NVDA Summary\n\n| Metric | Value |\n|---|---|\n| Price | 120 |\n", opts)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	geo, err := report.ResolveGeometry(opts)
	if err != nil {
		t.Fatalf("geometry: %v", err)
	}
	return report.RenderRequest{
		Report:      report.Report{Title: "NVDA Summary", GeneratedAt: fixedTime},
		Translation: translation,
		Options:     opts,
		Geometry:    geo,
	}
}

func TestStyler_DefaultTemplate(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (Styler{}).Style(context.Background(), nvdaRequest(t), buf); err != nil {
		t.Fatalf("style: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"<title>NVDA Summary</title>",
		"@page { size: 612pt 792pt; margin: 40pt; }",
		"font-family: Helvetica, Arial, sans-serif;",
		"<p>Generated 2026-10-19 15:04 UTC</p>",
		"<th>Metric</th>",
		"<td>120</td>",
		"th { background: #f2f2f2;",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestStyler_EscapesTitleAndUsesOptions(t *testing.T) {
	req := nvdaRequest(t)
	req.Report.Title = "<b>Q3</b> & more"
	req.Report.GeneratedAt = time.Time{}
	req.Options.PageSize = report.PageA4
	req.Options.FontFamily = "times"
	req.Geometry = report.Geometry{}

	buf := &bytes.Buffer{}
	if err := (Styler{}).Style(context.Background(), req, buf); err != nil {
		t.Fatalf("style: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "&lt;b&gt;Q3&lt;/b&gt; &amp; more") {
		t.Fatalf("expected escaped title in output:\n%s", out)
	}
	if !strings.Contains(out, "size: 595.28pt 841.89pt") {
		t.Fatalf("expected A4 page size in output")
	}
	if !strings.Contains(out, `font-family: "Times New Roman", Times, serif;`) {
		t.Fatalf("expected times font stack in output")
	}
	if strings.Contains(out, "Generated") {
		t.Fatalf("expected no generated line without a timestamp")
	}
}

func TestStyler_DefaultTitle(t *testing.T) {
	req := nvdaRequest(t)
	req.Report.Title = ""
	buf := &bytes.Buffer{}
	if err := (Styler{}).Style(context.Background(), req, buf); err != nil {
		t.Fatalf("style: %v", err)
	}
	if !strings.Contains(buf.String(), "<title>Report</title>") {
		t.Fatalf("expected default title")
	}
}

func TestStyler_CustomExecutor(t *testing.T) {
	tmpl := template.Must(template.New("custom").Parse("{{.title}}|{{.margin}}"))
	styler := Styler{Templates: tmpl, TemplateName: "custom"}

	buf := &bytes.Buffer{}
	if err := styler.Style(context.Background(), nvdaRequest(t), buf); err != nil {
		t.Fatalf("style: %v", err)
	}
	if got := buf.String(); got != "NVDA Summary|40pt" {
		t.Fatalf("unexpected output %q", got)
	}
}

type failingExecutor struct{}

func (failingExecutor) ExecuteTemplate(w io.Writer, name string, data any) error {
	_, _, _ = w, name, data
	return errors.New("template exploded")
}

func TestStyler_Errors(t *testing.T) {
	err := Styler{Templates: failingExecutor{}}.Style(context.Background(), nvdaRequest(t), io.Discard)
	if report.KindFromError(err) != report.KindSerialization {
		t.Fatalf("expected serialization error, got %v", err)
	}

	err = Styler{TemplateName: "missing.html"}.Style(context.Background(), nvdaRequest(t), io.Discard)
	if report.KindFromError(err) != report.KindSerialization {
		t.Fatalf("expected serialization error for missing template, got %v", err)
	}

	req := nvdaRequest(t)
	req.Options.FontFamily = "comic sans"
	err = Styler{}.Style(context.Background(), req, io.Discard)
	if report.KindFromError(err) != report.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Styler{}.Style(ctx, nvdaRequest(t), io.Discard)
	if report.KindFromError(err) != report.KindCanceled {
		t.Fatalf("expected canceled error, got %v", err)
	}
}

func TestNewDirExecutor(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "brief.html"), []byte("<h1>{{ title }}</h1>{{ body|safe }}"), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	executor, err := NewDirExecutor(dir)
	if err != nil {
		t.Fatalf("executor: %v", err)
	}

	buf := &bytes.Buffer{}
	styler := Styler{Templates: executor, TemplateName: "brief.html"}
	if err := styler.Style(context.Background(), nvdaRequest(t), buf); err != nil {
		t.Fatalf("style: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "<h1>NVDA Summary</h1><h1>NVDA Summary</h1>") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestRenderer_HTMLFormat(t *testing.T) {
	exp := report.NewExporter(report.ExporterConfig{
		Renderers: map[report.Format]report.Renderer{report.FormatHTML: Renderer{}},
		Now:       func() time.Time { return fixedTime },
	})

	result := exp.ExportAs(context.Background(), report.FormatHTML, report.Report{Title: "Q3 memo", Body: "- one\n- two\n"}, report.DefaultRenderOptions())
	if !result.OK() {
		t.Fatalf("expected success, got %+v", result.Failure)
	}
	if result.Success.SuggestedFilename != "Q3_memo_20261019T150405Z.html" {
		t.Fatalf("unexpected filename %q", result.Success.SuggestedFilename)
	}
	if !strings.HasPrefix(result.Success.ContentType, "text/html") {
		t.Fatalf("unexpected content type %q", result.Success.ContentType)
	}
	if !bytes.Contains(result.Success.Document, []byte("<li>two</li>")) {
		t.Fatalf("expected list markup in output")
	}
}

func TestStyler_FeedsPDFPipeline(t *testing.T) {
	var html []byte
	renderer := reportpdf.Renderer{
		Styler: Styler{},
		Engine: reportpdf.EngineFunc(func(ctx context.Context, req reportpdf.RenderRequest) ([]byte, error) {
			_ = ctx
			html = append([]byte{}, req.HTML...)
			return []byte("%PDF-1.4\n/Type /Page\n%%EOF\n"), nil
		}),
	}
	exp := report.NewExporter(report.ExporterConfig{
		Renderers: map[report.Format]report.Renderer{report.FormatPDF: renderer},
		Now:       func() time.Time { return fixedTime },
	})

	result := exp.Export(context.Background(), report.Report{Title: "Brief", Body: "Hello **world**"}, report.DefaultRenderOptions())
	if !result.OK() {
		t.Fatalf("expected success, got %+v", result.Failure)
	}
	if result.Success.Pages != 1 {
		t.Fatalf("expected one page, got %d", result.Success.Pages)
	}
	if !bytes.Contains(html, []byte("<strong>world</strong>")) {
		t.Fatalf("expected styled body in engine input, got %s", html)
	}
}
