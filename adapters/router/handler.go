package reportrouter

import (
	"github.com/goliatone/go-report/adapters/reportapi"
	"github.com/goliatone/go-report/report"
	"github.com/goliatone/go-router"
)

// Config configures the go-router adapter.
type Config = reportapi.Config

// Handler exposes report routes for go-router.
type Handler struct {
	controller *reportapi.Controller
}

// NewHandler creates a go-router handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{controller: reportapi.NewController(cfg)}
}

// RegisterRoutes registers routes on a compatible go-router router.
func (h *Handler) RegisterRoutes(router any) {
	r, ok := router.(routeRegistrar)
	if !ok {
		return
	}
	base := h.basePath()

	r.Post(base, h.Handle)
	r.Post(base+"/", h.Handle)
	r.Post(base+"/preview", h.Handle)
	r.Get(base+"/:handle/download", h.Handle)
}

// Handle executes the shared report workflow.
func (h *Handler) Handle(c router.Context) error {
	if c == nil {
		return nil
	}
	if h == nil || h.controller == nil {
		reportapi.WriteError(routerResponse{ctx: c}, report.NewError(report.KindInternal, "handler is nil", nil))
		return nil
	}
	h.controller.Serve(routerRequest{ctx: c}, routerResponse{ctx: c})
	return nil
}

func (h *Handler) basePath() string {
	if h == nil || h.controller == nil {
		return reportapi.DefaultBasePath
	}
	return h.controller.BasePath()
}

type routeRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}
