package reportpdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-report/report"
)

var fixedTime = time.Date(2026, 10, 19, 15, 4, 5, 0, time.UTC)

func newNativeExporter(renderer NativeRenderer) *report.Exporter {
	return report.NewExporter(report.ExporterConfig{
		Renderers: map[report.Format]report.Renderer{report.FormatPDF: renderer},
		Now:       func() time.Time { return fixedTime },
	})
}

func nvdaReport() report.Report {
	return report.Report{
		Title: "NVDA Summary",
		Body: strings.Join([]string{
			"# NVDA Summary",
			"",
			"Quarterly results at a glance.",
			"",
			"| Metric | Value |",
			"|---|---|",
			"| Price | 120 |",
			"| Volume | 41M |",
			"",
		}, "\n"),
		GeneratedAt: fixedTime,
	}
}

func TestNativeRenderer_NVDASummaryFitsOnePage(t *testing.T) {
	exp := newNativeExporter(NativeRenderer{})

	result := exp.Export(context.Background(), nvdaReport(), report.DefaultRenderOptions())
	if !result.OK() {
		t.Fatalf("expected success, got %+v", result.Failure)
	}
	doc := result.Success
	if !bytes.HasPrefix(doc.Document, []byte("%PDF-")) {
		t.Fatalf("expected pdf header, got %q", doc.Document[:8])
	}
	if doc.Pages != 1 {
		t.Fatalf("expected one page, got %d", doc.Pages)
	}
	if got := countPages(doc.Document); got != doc.Pages {
		t.Fatalf("expected %d page objects, got %d", doc.Pages, got)
	}
	if doc.SuggestedFilename != "NVDA_Summary_20261019T150405Z.pdf" {
		t.Fatalf("unexpected filename %q", doc.SuggestedFilename)
	}
}

func TestNativeRenderer_NVDAScenario(t *testing.T) {
	exp := newNativeExporter(NativeRenderer{})
	rep := report.Report{
		Title:       "NVDA Summary",
		Body:        "# NVDA\n\n| Metric | Value |\n|---|---|\n| Price | 500 |\n",
		GeneratedAt: fixedTime,
	}

	result := exp.Export(context.Background(), rep, report.DefaultRenderOptions())
	if !result.OK() {
		t.Fatalf("expected success, got %+v", result.Failure)
	}
	if result.Success.Pages != 1 {
		t.Fatalf("expected a single page, got %d", result.Success.Pages)
	}
	for _, op := range []string{"(NVDA) Tj", "(Metric) Tj", "(Value) Tj", "(Price) Tj", "(500) Tj"} {
		if !bytes.Contains(result.Success.Document, []byte(op)) {
			t.Fatalf("expected text operator %q in output", op)
		}
	}

	translation, err := exp.Translate(rep.Body, exp.Defaults)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	geo, err := report.ResolveGeometry(exp.Defaults)
	if err != nil {
		t.Fatalf("geometry: %v", err)
	}
	layout, err := Plan(translation.Document, TitleFor(rep), geo, DefaultTheme(), fixedMeasurer)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(layout.Tables) != 1 || layout.Tables[0].Columns != 2 || layout.Tables[0].Rows != 1 {
		t.Fatalf("expected one 2x1 table region, got %+v", layout.Tables)
	}
}

func TestNativeRenderer_IsDeterministic(t *testing.T) {
	exp := newNativeExporter(NativeRenderer{})

	first := exp.Export(context.Background(), nvdaReport(), report.DefaultRenderOptions())
	second := exp.Export(context.Background(), nvdaReport(), report.DefaultRenderOptions())
	if !first.OK() || !second.OK() {
		t.Fatalf("expected both exports to succeed")
	}
	if !bytes.Equal(first.Success.Document, second.Success.Document) {
		t.Fatalf("expected identical output for identical input")
	}

	compressed := newNativeExporter(NativeRenderer{Compress: true})
	a := compressed.Export(context.Background(), nvdaReport(), report.DefaultRenderOptions())
	b := compressed.Export(context.Background(), nvdaReport(), report.DefaultRenderOptions())
	if !a.OK() || !b.OK() || !bytes.Equal(a.Success.Document, b.Success.Document) {
		t.Fatalf("expected identical compressed output")
	}
}

func TestNativeRenderer_EveryTableCellIsDrawn(t *testing.T) {
	exp := newNativeExporter(NativeRenderer{})
	rep := report.Report{
		Title: "Grid",
		Body: strings.Join([]string{
			"| a | b | c |",
			"|---|:-:|--:|",
			"| a1 | b1 | c1 |",
			"| a2 | b2 | c2 |",
		}, "\n"),
	}

	result := exp.Export(context.Background(), rep, report.DefaultRenderOptions())
	if !result.OK() {
		t.Fatalf("expected success, got %+v", result.Failure)
	}
	for _, cell := range []string{"a", "b", "c", "a1", "b1", "c1", "a2", "b2", "c2"} {
		op := fmt.Sprintf("(%s) Tj", cell)
		if !bytes.Contains(result.Success.Document, []byte(op)) {
			t.Fatalf("expected text operator %q in output", op)
		}
	}
}

func TestNativeRenderer_LongBodyPaginates(t *testing.T) {
	exp := newNativeExporter(NativeRenderer{})
	var body strings.Builder
	for i := 1; i <= 150; i++ {
		fmt.Fprintf(&body, "Paragraph %d of a long report body that keeps going.\n\n", i)
	}

	result := exp.Export(context.Background(), report.Report{Title: "Long", Body: body.String()}, report.DefaultRenderOptions())
	if !result.OK() {
		t.Fatalf("expected success, got %+v", result.Failure)
	}
	if result.Success.Pages < 2 {
		t.Fatalf("expected multiple pages, got %d", result.Success.Pages)
	}
	if got := countPages(result.Success.Document); got != result.Success.Pages {
		t.Fatalf("expected %d page objects, got %d", result.Success.Pages, got)
	}
	if !bytes.Contains(result.Success.Document, []byte("(Paragraph 150 of a long report body that keeps going.) Tj")) {
		t.Fatalf("expected final paragraph in output")
	}
}

func TestNativeRenderer_EmptyBodyRendersTitlePage(t *testing.T) {
	exp := newNativeExporter(NativeRenderer{})

	result := exp.Export(context.Background(), report.Report{}, report.DefaultRenderOptions())
	if !result.OK() {
		t.Fatalf("expected success, got %+v", result.Failure)
	}
	if result.Success.Pages != 1 {
		t.Fatalf("expected one page, got %d", result.Success.Pages)
	}
	if !bytes.Contains(result.Success.Document, []byte("(Report) Tj")) {
		t.Fatalf("expected default title in output")
	}
	if result.Success.SuggestedFilename != "report_20261019T150405Z.pdf" {
		t.Fatalf("unexpected filename %q", result.Success.SuggestedFilename)
	}
}

func TestNativeRenderer_GeometryFailures(t *testing.T) {
	exp := newNativeExporter(NativeRenderer{})

	opts := report.DefaultRenderOptions()
	opts.MarginPx = 2000
	result := exp.Export(context.Background(), nvdaReport(), opts)
	if result.OK() {
		t.Fatalf("expected failure for oversized margin")
	}
	if result.Failure.Kind != report.KindGeometry {
		t.Fatalf("expected geometry failure, got %s", result.Failure.Kind)
	}
}

func wideTableBody(cols int) string {
	var header, sep, row []string
	for i := 0; i < cols; i++ {
		header = append(header, fmt.Sprintf("c%d", i))
		sep = append(sep, "---")
		row = append(row, fmt.Sprintf("v%d", i))
	}
	return strings.Join([]string{
		"|" + strings.Join(header, "|") + "|",
		"|" + strings.Join(sep, "|") + "|",
		"|" + strings.Join(row, "|") + "|",
	}, "\n")
}

func TestNativeRenderer_WideTablesStillRender(t *testing.T) {
	exp := newNativeExporter(NativeRenderer{})

	cases := []struct {
		cols    int
		literal bool
	}{
		{cols: 40},
		{cols: 80, literal: true},
		{cols: 200, literal: true},
	}
	for _, tc := range cases {
		result := exp.Export(context.Background(), report.Report{Title: "Wide", Body: wideTableBody(tc.cols)}, report.DefaultRenderOptions())
		if !result.OK() {
			t.Fatalf("%d columns: expected success, got %+v", tc.cols, result.Failure)
		}
		literal := bytes.Contains(result.Success.Document, []byte("(| c0 | c1 | c2 |"))
		if literal != tc.literal {
			t.Fatalf("%d columns: expected literal=%t, got %t", tc.cols, tc.literal, literal)
		}
	}
}

func TestNativeRenderer_InvalidUTF8FallsBackToPlainText(t *testing.T) {
	exp := newNativeExporter(NativeRenderer{})

	result := exp.Export(context.Background(), report.Report{
		Title: "Broken",
		Body:  "line one \xff\xfe\nline two",
	}, report.DefaultRenderOptions())
	if !result.OK() {
		t.Fatalf("expected success, got %+v", result.Failure)
	}
	if !result.Success.Fallback {
		t.Fatalf("expected plain-text fallback")
	}
	if !bytes.Contains(result.Success.Document, []byte("(line two) Tj")) {
		t.Fatalf("expected fallback text in output")
	}
}

func TestNativeRenderer_TranslatesWesternText(t *testing.T) {
	exp := newNativeExporter(NativeRenderer{})

	result := exp.Export(context.Background(), report.Report{Body: "café €"}, report.DefaultRenderOptions())
	if !result.OK() {
		t.Fatalf("expected success, got %+v", result.Failure)
	}
	if !bytes.Contains(result.Success.Document, []byte("(caf\xe9 \x80) Tj")) {
		t.Fatalf("expected cp1252 encoded text in output")
	}
}

func TestNativeRenderer_EmbedsUnicodeFontForNonLatinText(t *testing.T) {
	exp := newNativeExporter(NativeRenderer{})

	result := exp.Export(context.Background(), report.Report{Title: "Δ watch", Body: "Price → up 📈 日本"}, report.DefaultRenderOptions())
	if !result.OK() {
		t.Fatalf("expected success, got %+v", result.Failure)
	}
	if !bytes.Contains(result.Success.Document, []byte("/Subtype /CIDFontType2")) {
		t.Fatalf("expected an embedded unicode font")
	}
	if bytes.Contains(result.Success.Document, []byte("(Price . up")) {
		t.Fatalf("expected arrow to be drawn, not replaced")
	}
	if result.Success.Substituted != 3 {
		t.Fatalf("expected 3 undrawable characters reported, got %d", result.Success.Substituted)
	}
}

func TestScanText(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		unicode bool
		missing int
	}{
		{name: "ascii", text: "plain"},
		{name: "cp1252", text: "café € – “quoted”"},
		{name: "replacement char", text: "bad \uFFFD byte"},
		{name: "greek and arrows", text: "Δ → ←", unicode: true},
		{name: "emoji and cjk", text: "📈 日本", unicode: true, missing: 3},
	}
	for _, tc := range cases {
		doc := report.Document{Blocks: []report.Block{{Kind: report.BlockParagraph, Text: tc.text}}}
		scan := scanText(doc, TitleBlock{Title: "Report"})
		if scan.unicode != tc.unicode || scan.missing != tc.missing {
			t.Fatalf("%s: unexpected scan %+v", tc.name, scan)
		}
	}
	if got := replaceMissing("a → 日"); got != "a → ?" {
		t.Fatalf("unexpected replacement %q", got)
	}
}

func TestNativeRenderer_UsesRequestedFontFamily(t *testing.T) {
	exp := newNativeExporter(NativeRenderer{})
	opts := report.DefaultRenderOptions()
	opts.FontFamily = "times"

	result := exp.Export(context.Background(), report.Report{Body: "serif text"}, opts)
	if !result.OK() {
		t.Fatalf("expected success, got %+v", result.Failure)
	}
	if !bytes.Contains(result.Success.Document, []byte("/BaseFont /Times-Roman")) {
		t.Fatalf("expected times font resource in output")
	}
}

func TestNativeRenderer_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NativeRenderer{}.Render(ctx, report.RenderRequest{
		Report:   nvdaReport(),
		Options:  report.DefaultRenderOptions(),
		Geometry: report.Geometry{PageSize: report.PageLetter, Width: 612, Height: 792, Margin: 40},
	})
	if err == nil {
		t.Fatalf("expected canceled error")
	}
	if report.KindFromError(err) != report.KindCanceled {
		t.Fatalf("expected canceled kind, got %s", report.KindFromError(err))
	}
}

func TestTitleFor(t *testing.T) {
	block := TitleFor(report.Report{Title: "  ", GeneratedAt: fixedTime})
	if block.Title != "Report" {
		t.Fatalf("expected default title, got %q", block.Title)
	}
	if block.Subtitle != "Generated 2026-10-19 15:04 UTC" {
		t.Fatalf("unexpected subtitle %q", block.Subtitle)
	}
	if TitleFor(report.Report{Title: "Q3"}).Subtitle != "" {
		t.Fatalf("expected no subtitle without a timestamp")
	}
}
