package command

import (
	"context"
	"errors"
	"testing"
	"time"

	gcmd "github.com/goliatone/go-command"
	errorslib "github.com/goliatone/go-errors"
	"github.com/goliatone/go-report/report"
)

type stubService struct {
	export   func(ctx context.Context, format report.Format, rep report.Report, opts report.RenderOptions) report.ExportResult
	publish  func(ctx context.Context, doc report.Success) (report.Receipt, error)
	download func(ctx context.Context, handle string) (report.Download, error)
	cleanup  func(ctx context.Context, now time.Time) (int, error)
}

func (s *stubService) Export(ctx context.Context, format report.Format, rep report.Report, opts report.RenderOptions) report.ExportResult {
	if s.export != nil {
		return s.export(ctx, format, rep, opts)
	}
	return report.Succeeded(report.Success{Document: []byte("%PDF-1.4"), SuggestedFilename: "report.pdf"})
}

func (s *stubService) Publish(ctx context.Context, doc report.Success) (report.Receipt, error) {
	if s.publish != nil {
		return s.publish(ctx, doc)
	}
	return report.Receipt{}, nil
}

func (s *stubService) Download(ctx context.Context, handle string) (report.Download, error) {
	if s.download != nil {
		return s.download(ctx, handle)
	}
	return report.Download{}, nil
}

func (s *stubService) Cleanup(ctx context.Context, now time.Time) (int, error) {
	if s.cleanup != nil {
		return s.cleanup(ctx, now)
	}
	return 0, nil
}

func TestExportReportHandler_StoresResults(t *testing.T) {
	var gotOpts report.RenderOptions
	svc := &stubService{
		export: func(ctx context.Context, format report.Format, rep report.Report, opts report.RenderOptions) report.ExportResult {
			_, _, _ = ctx, format, rep
			gotOpts = opts
			return report.Succeeded(report.Success{Document: []byte("%PDF-1.4"), SuggestedFilename: "memo.pdf", Pages: 1})
		},
		publish: func(ctx context.Context, doc report.Success) (report.Receipt, error) {
			_ = ctx
			return report.Receipt{Handle: "h-1", Filename: doc.SuggestedFilename}, nil
		},
	}

	handler := NewExportReportHandler(svc)
	var got report.ExportResult
	var receipt report.Receipt
	result := gcmd.NewResult[report.ExportResult]()
	ctx := gcmd.ContextWithResult(context.Background(), result)

	err := handler.Execute(ctx, ExportReport{
		Report:  report.Report{Title: "memo", Body: "hello"},
		Publish: true,
		Result:  &got,
		Receipt: &receipt,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !got.OK() || got.Success.SuggestedFilename != "memo.pdf" {
		t.Fatalf("expected result pointer, got %+v", got)
	}
	if receipt.Handle != "h-1" || receipt.Filename != "memo.pdf" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if gotOpts != report.DefaultRenderOptions() {
		t.Fatalf("expected default options for a zero value, got %+v", gotOpts)
	}

	stored, ok := result.Load()
	if !ok || !stored.OK() {
		t.Fatalf("expected context result")
	}
}

func TestExportReportHandler_Failure(t *testing.T) {
	published := false
	svc := &stubService{
		export: func(ctx context.Context, format report.Format, rep report.Report, opts report.RenderOptions) report.ExportResult {
			_, _, _, _ = ctx, format, rep, opts
			return report.Failed(report.NewError(report.KindGeometry, "margins exceed page", nil))
		},
		publish: func(ctx context.Context, doc report.Success) (report.Receipt, error) {
			_, _ = ctx, doc
			published = true
			return report.Receipt{}, nil
		},
	}

	var got report.ExportResult
	err := NewExportReportHandler(svc).Execute(context.Background(), ExportReport{Publish: true, Result: &got})
	if err == nil {
		t.Fatalf("expected error")
	}
	if report.KindFromError(err) != report.KindGeometry {
		t.Fatalf("expected geometry error, got %v", err)
	}
	if got.Failure == nil || got.Failure.Kind != report.KindGeometry {
		t.Fatalf("expected failure in result, got %+v", got)
	}
	if published {
		t.Fatalf("expected no publish after failure")
	}
}

func TestExportReport_Validate(t *testing.T) {
	cases := []struct {
		name string
		msg  ExportReport
		code string
	}{
		{"default", ExportReport{}, ""},
		{"xlsx", ExportReport{Format: report.FormatXLSX}, ""},
		{"docx", ExportReport{Format: "docx"}, "FORMAT_UNSUPPORTED"},
		{"negative margin", ExportReport{Options: report.RenderOptions{MarginPx: -1}}, "MARGIN_INVALID"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.code == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			var ge *errorslib.Error
			if !errors.As(err, &ge) || ge.TextCode != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestCleanupReportsHandler_UsesClock(t *testing.T) {
	now := time.Date(2026, 10, 19, 15, 4, 5, 0, time.UTC)
	var gotNow time.Time
	svc := &stubService{
		cleanup: func(ctx context.Context, at time.Time) (int, error) {
			_ = ctx
			gotNow = at
			return 3, nil
		},
	}
	handler := NewCleanupReportsHandler(svc)
	handler.Clock = func() time.Time { return now }

	var count int
	if err := handler.Execute(context.Background(), CleanupReports{Result: &count}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if count != 3 || !gotNow.Equal(now) {
		t.Fatalf("unexpected cleanup %d at %s", count, gotNow)
	}
	if err := handler.CronHandler()(); err != nil {
		t.Fatalf("cron: %v", err)
	}
}

func TestHandlers_RequireService(t *testing.T) {
	if err := (&ExportReportHandler{}).Execute(context.Background(), ExportReport{}); err == nil {
		t.Fatalf("expected error without service")
	}
	if err := (&CleanupReportsHandler{}).Execute(context.Background(), CleanupReports{}); err == nil {
		t.Fatalf("expected error without service")
	}
}
