package query

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/goliatone/go-report/report"
)

var fixedTime = time.Date(2026, 10, 19, 15, 4, 5, 0, time.UTC)

type pdfStub struct{}

func (pdfStub) Render(ctx context.Context, req report.RenderRequest) (report.Rendition, error) {
	_, _ = ctx, req
	return report.Rendition{Data: []byte("%PDF-1.4\n/Type /Page\n%%EOF\n"), Pages: 1}, nil
}

func TestDownloadReportHandler_SingleUse(t *testing.T) {
	svc := report.NewService(report.ServiceConfig{
		Exporter: report.NewExporter(report.ExporterConfig{
			Renderers: map[report.Format]report.Renderer{report.FormatPDF: pdfStub{}},
			Now:       func() time.Time { return fixedTime },
		}),
		Now:         func() time.Time { return fixedTime },
		IDGenerator: func() string { return "h-1" },
	})
	ctx := context.Background()
	result := svc.Export(ctx, report.FormatPDF, report.Report{Title: "memo", Body: "hi"}, report.DefaultRenderOptions())
	if !result.OK() {
		t.Fatalf("export: %+v", result.Failure)
	}
	if _, err := svc.Publish(ctx, *result.Success); err != nil {
		t.Fatalf("publish: %v", err)
	}

	handler := NewDownloadReportHandler(svc)
	download, err := handler.Query(ctx, DownloadReport{Handle: "h-1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	data, err := io.ReadAll(download.Reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := download.Reader.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(data[:5]) != "%PDF-" || download.Meta.Filename != "memo_20261019T150405Z.pdf" {
		t.Fatalf("unexpected download %q %+v", data[:5], download.Meta)
	}

	if _, err := handler.Query(ctx, DownloadReport{Handle: "h-1"}); report.KindFromError(err) != report.KindNotFound {
		t.Fatalf("expected not found on reuse, got %v", err)
	}
}

func TestDownloadReportHandler_Validation(t *testing.T) {
	handler := NewDownloadReportHandler(report.NewService(report.ServiceConfig{}))
	if _, err := handler.Query(context.Background(), DownloadReport{Handle: " "}); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := (&DownloadReportHandler{}).Query(context.Background(), DownloadReport{Handle: "x"}); err == nil {
		t.Fatalf("expected service error")
	}
}
