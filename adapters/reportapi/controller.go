package reportapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	errorslib "github.com/goliatone/go-errors"
	"github.com/goliatone/go-report/report"
)

// DefaultMaxBufferBytes is the fallback buffer limit when streaming is unavailable.
const DefaultMaxBufferBytes int64 = 16 * 1024 * 1024

// DefaultBasePath is where report routes are mounted.
const DefaultBasePath = "/reports"

// StatusClientClosedRequest is reported when the caller canceled the export.
const StatusClientClosedRequest = 499

// Config configures the shared report API controller.
type Config struct {
	Service          report.Service
	BasePath         string
	Defaults         *report.RenderOptions
	IdempotencyStore IdempotencyStore
	IdempotencyTTL   time.Duration
	Logger           report.Logger
	RequestDecoder   RequestDecoder
	MaxBufferBytes   int64
}

// Controller exposes report API handlers for multiple transports.
type Controller struct {
	service          report.Service
	basePath         string
	defaults         report.RenderOptions
	idempotencyStore IdempotencyStore
	idempotencyTTL   time.Duration
	logger           report.Logger
	requestDecoder   RequestDecoder
	maxBufferBytes   int64
}

// NewController creates a shared report API controller.
func NewController(cfg Config) *Controller {
	basePath := strings.TrimRight(cfg.BasePath, "/")
	if basePath == "" {
		basePath = DefaultBasePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = report.NopLogger{}
	}
	decoder := cfg.RequestDecoder
	if decoder == nil {
		decoder = JSONRequestDecoder{}
	}
	maxBuffer := cfg.MaxBufferBytes
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBufferBytes
	}
	defaults := report.DefaultRenderOptions()
	if cfg.Defaults != nil {
		defaults = *cfg.Defaults
	}
	return &Controller{
		service:          cfg.Service,
		basePath:         basePath,
		defaults:         defaults,
		idempotencyStore: cfg.IdempotencyStore,
		idempotencyTTL:   cfg.IdempotencyTTL,
		logger:           logger,
		requestDecoder:   decoder,
		maxBufferBytes:   maxBuffer,
	}
}

// BasePath returns the configured base path.
func (c *Controller) BasePath() string {
	if c == nil {
		return ""
	}
	return c.basePath
}

// DownloadURL returns the download path for a handle.
func (c *Controller) DownloadURL(handle string) string {
	return fmt.Sprintf("%s/%s/download", c.basePath, handle)
}

// Serve routes report endpoints using the shared controller.
func (c *Controller) Serve(req Request, res Response) {
	if res == nil {
		return
	}
	if c == nil {
		WriteError(res, report.NewError(report.KindInternal, "handler is nil", nil))
		return
	}
	if req == nil {
		WriteError(res, report.NewError(report.KindInternal, "request is nil", nil))
		return
	}
	if !strings.HasPrefix(req.Path(), c.basePath) {
		writeNotFound(res)
		return
	}

	pathSuffix := strings.TrimPrefix(req.Path(), c.basePath)
	if pathSuffix != "" && !strings.HasPrefix(pathSuffix, "/") {
		writeNotFound(res)
		return
	}
	pathSuffix = strings.Trim(pathSuffix, "/")
	parts := []string{}
	if pathSuffix != "" {
		parts = strings.Split(pathSuffix, "/")
	}

	switch req.Method() {
	case http.MethodPost:
		switch {
		case len(parts) == 0:
			c.HandleExport(req, res)
		case len(parts) == 1 && parts[0] == "preview":
			c.HandlePreview(req, res)
		default:
			writeNotFound(res)
		}
	case http.MethodGet:
		if len(parts) == 2 && parts[1] == "download" {
			c.HandleDownload(req, res, parts[0])
			return
		}
		writeNotFound(res)
	default:
		res.SetHeader("Allow", "GET,POST")
		res.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// HandleExport renders a report and either streams it or publishes it behind
// a one-time handle.
func (c *Controller) HandleExport(req Request, res Response) {
	if c.service == nil {
		WriteError(res, report.NewError(report.KindInternal, "report service not configured", nil))
		return
	}
	decoded, err := c.decode(req)
	if err != nil {
		WriteError(res, err)
		return
	}

	if decoded.Delivery == DeliveryHandle {
		c.handlePublish(req, res, decoded)
		return
	}

	result := c.service.Export(req.Context(), decoded.Format, decoded.Report, decoded.Options)
	if !result.OK() {
		c.writeFailure(res, result)
		return
	}
	doc := result.Success
	setDownloadHeaders(res, sanitizeFilename(doc.SuggestedFilename, decoded.Format), doc.ContentType)
	res.SetHeader("Content-Length", strconv.Itoa(len(doc.Document)))
	res.SetHeader("X-Report-Pages", strconv.Itoa(doc.Pages))
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write(doc.Document); err != nil {
		c.logger.Errorf("report write failed: %v", err)
	}
}

func (c *Controller) handlePublish(req Request, res Response, decoded ExportRequest) {
	ctx := req.Context()
	var signature string
	if c.idempotencyStore != nil && decoded.IdempotencyKey != "" {
		signature = buildIdempotencyKey(decoded.IdempotencyKey, decoded)
		receipt, ok, err := c.idempotencyStore.Get(ctx, signature)
		if err != nil {
			WriteError(res, err)
			return
		}
		if ok {
			writeJSON(res, http.StatusOK, c.handleResponse(receipt))
			return
		}
	}

	result := c.service.Export(ctx, decoded.Format, decoded.Report, decoded.Options)
	if !result.OK() {
		c.writeFailure(res, result)
		return
	}
	receipt, err := c.service.Publish(ctx, *result.Success)
	if err != nil {
		WriteError(res, err)
		return
	}
	if signature != "" {
		if err := c.idempotencyStore.Set(ctx, signature, receipt, c.idempotencyTTL); err != nil {
			c.logger.Errorf("idempotency store failed for %s: %v", receipt.Handle, err)
		}
	}
	writeJSON(res, http.StatusCreated, c.handleResponse(receipt))
}

// HandlePreview renders the styled HTML page for inline display.
func (c *Controller) HandlePreview(req Request, res Response) {
	if c.service == nil {
		WriteError(res, report.NewError(report.KindInternal, "report service not configured", nil))
		return
	}
	decoded, err := c.decode(req)
	if err != nil {
		WriteError(res, err)
		return
	}

	result := c.service.Export(req.Context(), report.FormatHTML, decoded.Report, decoded.Options)
	if !result.OK() {
		c.writeFailure(res, result)
		return
	}
	doc := result.Success
	res.SetHeader("Content-Type", report.ContentTypeFor(report.FormatHTML))
	res.SetHeader("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", sanitizeFilename(doc.SuggestedFilename, report.FormatHTML)))
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write(doc.Document); err != nil {
		c.logger.Errorf("preview write failed: %v", err)
	}
}

// HandleDownload serves a published document once.
func (c *Controller) HandleDownload(req Request, res Response, handle string) {
	if c.service == nil {
		WriteError(res, report.NewError(report.KindInternal, "report service not configured", nil))
		return
	}
	if strings.TrimSpace(handle) == "" {
		WriteError(res, report.NewError(report.KindValidation, "handle is required", nil))
		return
	}

	download, err := c.service.Download(req.Context(), handle)
	if err != nil {
		WriteError(res, err)
		return
	}
	defer func() {
		if err := download.Reader.Close(); err != nil {
			c.logger.Errorf("release handle %s: %v", handle, err)
		}
	}()

	meta := download.Meta
	setDownloadHeaders(res, sanitizeFilename(meta.Filename, ""), meta.ContentType)
	if meta.Size > 0 {
		res.SetHeader("Content-Length", strconv.FormatInt(meta.Size, 10))
	}

	if writer, ok := res.Writer(); ok {
		res.WriteHeader(http.StatusOK)
		if _, err := io.Copy(writer, download.Reader); err != nil {
			c.logger.Errorf("download copy failed: %v", err)
		}
		return
	}

	buffer := newLimitedBuffer(c.maxBufferBytes)
	if _, err := io.Copy(buffer, download.Reader); err != nil {
		clearDownloadHeaders(res)
		WriteError(res, err)
		return
	}
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write(buffer.Bytes()); err != nil {
		c.logger.Errorf("download buffer write failed: %v", err)
	}
}

func (c *Controller) decode(req Request) (ExportRequest, error) {
	if c.requestDecoder == nil {
		return ExportRequest{}, report.NewError(report.KindInternal, "request decoder not configured", nil)
	}
	decoded, err := c.requestDecoder.Decode(req, c.defaults)
	if err != nil {
		return ExportRequest{}, err
	}
	if key := req.Header("Idempotency-Key"); key != "" {
		decoded.IdempotencyKey = key
	}
	return decoded, nil
}

func (c *Controller) writeFailure(res Response, result report.ExportResult) {
	if result.Failure != nil {
		c.logger.Errorf("report export failed (%s): %v", result.Failure.Kind, result.Failure.Err)
	}
	WriteError(res, result.Err())
}

func (c *Controller) handleResponse(receipt report.Receipt) HandleResponse {
	return HandleResponse{
		Handle:      receipt.Handle,
		Filename:    receipt.Filename,
		ContentType: receipt.ContentType,
		Size:        receipt.Size,
		DownloadURL: c.DownloadURL(receipt.Handle),
		ExpiresAt:   receipt.ExpiresAt,
	}
}

func writeNotFound(res Response) {
	WriteError(res, report.NewError(report.KindNotFound, "route not found", nil))
}

// WriteError writes a JSON error payload with a status derived from the
// error kind.
func WriteError(res Response, err error) {
	if err == nil {
		res.WriteHeader(http.StatusNoContent)
		return
	}
	ge := report.AsGoError(err)
	writeJSON(res, statusForError(ge), ErrorResponse{
		Error: ErrorBody{
			Message: ge.Message,
			Code:    ge.TextCode,
		},
	})
}

func writeJSON(res Response, status int, payload any) {
	_ = res.WriteJSON(status, payload)
}

func statusForError(err *errorslib.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	switch err.Category {
	case errorslib.CategoryValidation:
		return http.StatusUnprocessableEntity
	case errorslib.CategoryNotFound:
		return http.StatusNotFound
	case errorslib.CategoryOperation:
		if err.TextCode == string(report.KindCanceled) {
			return StatusClientClosedRequest
		}
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func sanitizeFilename(filename string, format report.Format) string {
	name := strings.TrimSpace(filename)
	name = strings.ReplaceAll(name, "\"", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" {
		if format != "" {
			name = fmt.Sprintf("report.%s", format)
		} else {
			name = "report"
		}
	}
	return name
}

func setDownloadHeaders(res Response, filename, contentType string) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	res.SetHeader("Content-Type", contentType)
	res.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
}

func clearDownloadHeaders(res Response) {
	res.DelHeader("Content-Disposition")
	res.DelHeader("Content-Type")
	res.DelHeader("Content-Length")
}

type limitedBuffer struct {
	buf     bytes.Buffer
	maxSize int64
}

func newLimitedBuffer(maxSize int64) *limitedBuffer {
	if maxSize <= 0 {
		maxSize = DefaultMaxBufferBytes
	}
	return &limitedBuffer{maxSize: maxSize}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if int64(b.buf.Len()+len(p)) > b.maxSize {
		return 0, report.NewError(report.KindInternal, "buffer limit exceeded", nil)
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}
