package command

import (
	"context"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-report/report"
)

// ExportReportHandler handles report export commands.
type ExportReportHandler struct {
	Service report.Service
}

func NewExportReportHandler(svc report.Service) *ExportReportHandler {
	return &ExportReportHandler{Service: svc}
}

// Execute renders the report. Failures are stored in the result before the
// error is returned so callers can show Failure.Message.
func (h *ExportReportHandler) Execute(ctx context.Context, msg ExportReport) error {
	if h == nil || h.Service == nil {
		return errors.New("report service is required", errors.CategoryInternal).
			WithTextCode("SERVICE_REQUIRED")
	}
	opts := msg.Options
	if opts == (report.RenderOptions{}) {
		opts = report.DefaultRenderOptions()
	}

	result := h.Service.Export(ctx, msg.Format, msg.Report, opts)
	if msg.Result != nil {
		*msg.Result = result
	}
	if res := gcmd.ResultFromContext[report.ExportResult](ctx); res != nil {
		res.Store(result)
	}
	if !result.OK() {
		return report.AsGoError(result.Err())
	}
	if !msg.Publish {
		return nil
	}

	receipt, err := h.Service.Publish(ctx, *result.Success)
	if err != nil {
		return err
	}
	if msg.Receipt != nil {
		*msg.Receipt = receipt
	}
	if res := gcmd.ResultFromContext[report.Receipt](ctx); res != nil {
		res.Store(receipt)
	}
	return nil
}

// CleanupReportsHandler removes expired published documents.
type CleanupReportsHandler struct {
	Service report.Service
	Config  gcmd.HandlerConfig
	Clock   func() time.Time
}

func NewCleanupReportsHandler(svc report.Service) *CleanupReportsHandler {
	return &CleanupReportsHandler{Service: svc}
}

func (h *CleanupReportsHandler) Execute(ctx context.Context, msg CleanupReports) error {
	if h == nil || h.Service == nil {
		return errors.New("report service is required", errors.CategoryInternal).
			WithTextCode("SERVICE_REQUIRED")
	}
	now := msg.Now
	if now.IsZero() && h.Clock != nil {
		now = h.Clock()
	}
	count, err := h.Service.Cleanup(ctx, now)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = count
	}
	if res := gcmd.ResultFromContext[int](ctx); res != nil {
		res.Store(count)
	}
	return nil
}

func (h *CleanupReportsHandler) CronHandler() func() error {
	return func() error {
		return h.Execute(context.Background(), CleanupReports{})
	}
}

func (h *CleanupReportsHandler) CronOptions() gcmd.HandlerConfig {
	return h.Config
}
