package reportapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/goliatone/go-report/report"
)

// DefaultMaxBodyBytes bounds decoded request bodies.
const DefaultMaxBodyBytes int64 = 2 * 1024 * 1024

// DeliveryMode selects how a finished document reaches the caller.
type DeliveryMode string

const (
	// DeliverySync streams the document in the response.
	DeliverySync DeliveryMode = "sync"
	// DeliveryHandle publishes the document and returns a one-time handle.
	DeliveryHandle DeliveryMode = "handle"
)

// Request provides minimal request access for transport adapters.
type Request interface {
	Context() context.Context
	Method() string
	Path() string
	Header(name string) string
	Query(name string) string
	Body() io.ReadCloser
}

// ExportRequest is a decoded export call.
type ExportRequest struct {
	Report         report.Report
	Options        report.RenderOptions
	Format         report.Format
	Delivery       DeliveryMode
	IdempotencyKey string
}

// RequestDecoder parses an HTTP request into an export request.
type RequestDecoder interface {
	Decode(req Request, defaults report.RenderOptions) (ExportRequest, error)
}

// JSONRequestDecoder decodes JSON bodies into export requests.
type JSONRequestDecoder struct {
	MaxBodyBytes int64
}

// Decode decodes a JSON request body into an export request. Options in the
// body override defaults field by field.
func (d JSONRequestDecoder) Decode(req Request, defaults report.RenderOptions) (ExportRequest, error) {
	if req == nil {
		return ExportRequest{}, report.NewError(report.KindInternal, "request is nil", nil)
	}
	body := req.Body()
	if body == nil {
		return ExportRequest{}, report.NewError(report.KindValidation, "request body is required", nil)
	}
	defer body.Close()

	limit := d.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	payload, err := decodePayload(io.LimitReader(body, limit+1), limit)
	if err != nil {
		return ExportRequest{}, err
	}

	delivery, err := normalizeDelivery(payload.Delivery)
	if err != nil {
		return ExportRequest{}, err
	}

	options := report.MergeOptions(defaults, payload.Options)
	if options.PageSize != "" {
		if options.PageSize, err = report.NormalizePageSize(options.PageSize); err != nil {
			return ExportRequest{}, err
		}
	}

	return ExportRequest{
		Report: report.Report{
			Title:       payload.Title,
			Body:        payload.Body,
			GeneratedAt: payload.GeneratedAt,
		},
		Options:  options,
		Format:   normalizeFormat(payload.Format),
		Delivery: delivery,
	}, nil
}

func normalizeFormat(format report.Format) report.Format {
	normalized := strings.ToLower(strings.TrimSpace(string(format)))
	switch normalized {
	case "":
		return report.FormatPDF
	case "excel", "xls":
		return report.FormatXLSX
	case "htm":
		return report.FormatHTML
	default:
		return report.Format(normalized)
	}
}

func normalizeDelivery(mode DeliveryMode) (DeliveryMode, error) {
	switch DeliveryMode(strings.ToLower(strings.TrimSpace(string(mode)))) {
	case "", DeliverySync:
		return DeliverySync, nil
	case DeliveryHandle:
		return DeliveryHandle, nil
	default:
		return "", report.NewError(report.KindValidation, "unknown delivery mode", nil)
	}
}

type requestPayload struct {
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	GeneratedAt time.Time              `json:"generated_at,omitempty"`
	Options     report.OptionsOverride `json:"options,omitempty"`
	Format      report.Format          `json:"format,omitempty"`
	Delivery    DeliveryMode           `json:"delivery,omitempty"`
}

type countingReader struct {
	r     io.Reader
	count int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.count += int64(n)
	return n, err
}

func decodePayload(body io.Reader, limit int64) (requestPayload, error) {
	counter := &countingReader{r: body}
	var payload requestPayload
	decoder := json.NewDecoder(counter)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(&payload)
	if counter.count > limit {
		return requestPayload{}, report.NewError(report.KindValidation, "request payload too large", nil)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return requestPayload{}, report.NewError(report.KindValidation, "request body is required", err)
		}
		return requestPayload{}, report.NewError(report.KindValidation, "invalid request payload", err)
	}
	return payload, nil
}
