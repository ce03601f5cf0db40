package query

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// DownloadReport opens a published document by handle. The returned reader
// must be closed, which also retires the handle.
type DownloadReport struct {
	Handle string
}

func (DownloadReport) Type() string { return "report:download" }

func (msg DownloadReport) Validate() error {
	if strings.TrimSpace(msg.Handle) == "" {
		return errors.New("download handle is required", errors.CategoryValidation).
			WithTextCode("HANDLE_REQUIRED")
	}
	return nil
}
