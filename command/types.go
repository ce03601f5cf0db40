package command

import (
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-report/report"
)

// ExportReport renders a report and optionally publishes it for download.
// A zero Options value means the exporter defaults.
type ExportReport struct {
	Report  report.Report
	Options report.RenderOptions
	Format  report.Format
	Publish bool
	Result  *report.ExportResult
	Receipt *report.Receipt
}

func (ExportReport) Type() string { return "report:export" }

func (msg ExportReport) Validate() error {
	switch msg.Format {
	case "", report.FormatPDF, report.FormatHTML, report.FormatXLSX:
	default:
		return errors.New("unsupported report format", errors.CategoryValidation).
			WithTextCode("FORMAT_UNSUPPORTED")
	}
	if msg.Options.MarginPx < 0 {
		return errors.New("margin must not be negative", errors.CategoryValidation).
			WithTextCode("MARGIN_INVALID")
	}
	return nil
}

// CleanupReports removes expired published documents.
type CleanupReports struct {
	Now    time.Time
	Result *int
}

func (CleanupReports) Type() string { return "report:cleanup" }

func (CleanupReports) Validate() error { return nil }
