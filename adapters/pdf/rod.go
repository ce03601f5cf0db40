package reportpdf

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/goliatone/go-report/report"
)

// RodEngine renders PDF output through a go-rod managed Chromium.
type RodEngine struct {
	BrowserPath string
	Headless    bool
	Timeout     time.Duration
	Args        []string

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// Render loads the HTML into a fresh page and prints it.
func (e *RodEngine) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if e == nil {
		return nil, report.NewError(report.KindInternal, "rod engine is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Geometry.Width <= 0 || req.Geometry.Height <= 0 {
		return nil, report.NewError(report.KindGeometry, "rod engine requires page geometry", nil)
	}

	browser, err := e.ensureBrowser()
	if err != nil {
		return nil, report.NewError(report.KindInternal, "rod engine init failed", err)
	}

	pg, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, e.renderError(ctx, "rod page create failed", err)
	}
	defer pg.Close()
	if e.Timeout > 0 {
		pg = pg.Timeout(e.Timeout)
	}

	if err := pg.SetDocumentContent(string(req.HTML)); err != nil {
		return nil, e.renderError(ctx, "rod set content failed", err)
	}
	if err := pg.WaitLoad(); err != nil {
		return nil, e.renderError(ctx, "rod page load failed", err)
	}

	f := func(x float64) *float64 { return &x }
	margin := inches(req.Geometry.Margin)
	stream, err := pg.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: false,
		PaperWidth:        f(inches(req.Geometry.Width)),
		PaperHeight:       f(inches(req.Geometry.Height)),
		MarginTop:         f(margin),
		MarginBottom:      f(margin),
		MarginLeft:        f(margin),
		MarginRight:       f(margin),
		Scale:             f(defaultPDFScale),
	})
	if err != nil {
		return nil, e.renderError(ctx, "rod pdf print failed", err)
	}

	pdf, err := io.ReadAll(stream)
	if err != nil {
		return nil, e.renderError(ctx, "rod pdf stream failed", err)
	}
	return pdf, nil
}

// Close shuts the browser down and removes its profile directory.
func (e *RodEngine) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	if e.browser != nil {
		err = e.browser.Close()
		e.browser = nil
	}
	if e.launcher != nil {
		e.launcher.Cleanup()
		e.launcher = nil
	}
	return err
}

func (e *RodEngine) ensureBrowser() (*rod.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser != nil {
		return e.browser, nil
	}

	l := launcher.New()
	if e.BrowserPath != "" {
		l = l.Bin(e.BrowserPath)
	}
	l = l.Headless(e.Headless)
	for _, arg := range e.Args {
		name, value, ok := splitFlag(arg)
		if !ok {
			continue
		}
		if value != "" {
			l = l.Set(flags.Flag(name), value)
			continue
		}
		l = l.Set(flags.Flag(name))
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, err
	}

	e.launcher = l
	e.browser = browser
	return browser, nil
}

func (e *RodEngine) renderError(ctx context.Context, msg string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return report.NewError(report.KindTimeout, msg, err)
	}
	return report.NewError(report.KindSerialization, msg, err)
}
