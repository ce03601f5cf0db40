package reportrouter

import (
	"bytes"
	"context"
	"io"

	"github.com/goliatone/go-report/adapters/reportapi"
	"github.com/goliatone/go-router"
)

var (
	_ reportapi.Request  = routerRequest{}
	_ reportapi.Response = routerResponse{}
)

type routerRequest struct {
	ctx router.Context
}

func (req routerRequest) Context() context.Context {
	if req.ctx == nil {
		return context.Background()
	}
	return req.ctx.Context()
}

func (req routerRequest) Method() string {
	if req.ctx == nil {
		return ""
	}
	return req.ctx.Method()
}

func (req routerRequest) Path() string {
	if req.ctx == nil {
		return ""
	}
	return req.ctx.Path()
}

func (req routerRequest) Header(name string) string {
	if req.ctx == nil {
		return ""
	}
	return req.ctx.Header(name)
}

func (req routerRequest) Query(name string) string {
	if req.ctx == nil {
		return ""
	}
	return req.ctx.Query(name)
}

func (req routerRequest) Body() io.ReadCloser {
	if req.ctx == nil {
		return nil
	}
	return io.NopCloser(bytes.NewReader(req.ctx.Body()))
}

type routerResponse struct {
	ctx router.Context
}

func (res routerResponse) SetHeader(name, value string) {
	if res.ctx == nil {
		return
	}
	res.ctx.SetHeader(name, value)
}

// DelHeader blanks the header; router.Context has no delete.
func (res routerResponse) DelHeader(name string) {
	if res.ctx == nil {
		return
	}
	res.ctx.SetHeader(name, "")
}

func (res routerResponse) WriteHeader(status int) {
	if res.ctx == nil {
		return
	}
	res.ctx.Status(status)
}

func (res routerResponse) Write(data []byte) (int, error) {
	if res.ctx == nil {
		return 0, nil
	}
	if err := res.ctx.Send(data); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (res routerResponse) WriteJSON(status int, payload any) error {
	if res.ctx == nil {
		return nil
	}
	return res.ctx.JSON(status, payload)
}

// Writer streams through the underlying http.ResponseWriter when the router
// runs on net/http. Fiber contexts fall back to buffered Send.
func (res routerResponse) Writer() (io.Writer, bool) {
	if res.ctx == nil {
		return nil, false
	}
	httpCtx, ok := router.AsHTTPContext(res.ctx)
	if !ok || httpCtx.Response() == nil {
		return nil, false
	}
	return httpCtx.Response(), true
}
