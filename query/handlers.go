package query

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-report/report"
)

// Downloader opens published documents.
type Downloader interface {
	Download(ctx context.Context, handle string) (report.Download, error)
}

// DownloadReportHandler returns an opened, single-use document.
type DownloadReportHandler struct {
	Service Downloader
}

func NewDownloadReportHandler(svc Downloader) *DownloadReportHandler {
	return &DownloadReportHandler{Service: svc}
}

func (h *DownloadReportHandler) Query(ctx context.Context, msg DownloadReport) (report.Download, error) {
	if h == nil || h.Service == nil {
		return report.Download{}, errors.New("report service is required", errors.CategoryInternal).
			WithTextCode("SERVICE_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return report.Download{}, err
	}
	return h.Service.Download(ctx, msg.Handle)
}
