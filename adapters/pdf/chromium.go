package reportpdf

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/goliatone/go-report/report"
)

const defaultPDFScale = 1.0

// ChromiumEngine renders PDF output using a shared headless Chromium instance
// driven over the DevTools protocol.
type ChromiumEngine struct {
	BrowserPath         string
	Headless            bool
	Timeout             time.Duration
	Args                []string
	Scale               float64
	BaseURL             string
	BlockExternalAssets bool

	initOnce      sync.Once
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// Render executes Chromium-based HTML-to-PDF rendering.
func (e *ChromiumEngine) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if e == nil {
		return nil, report.NewError(report.KindInternal, "chromium engine is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := e.ensureBrowser(); err != nil {
		return nil, report.NewError(report.KindInternal, "chromium engine init failed", err)
	}

	tabCtx, cancel := chromedp.NewContext(e.browserCtx)
	defer cancel()

	reqCtx, cancelReq := context.WithCancel(tabCtx)
	defer cancelReq()
	go func() {
		select {
		case <-ctx.Done():
			cancelReq()
		case <-reqCtx.Done():
		}
	}()

	execCtx := reqCtx
	if e.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		execCtx, cancelTimeout = context.WithTimeout(execCtx, e.Timeout)
		defer cancelTimeout()
	}

	params, err := buildPrintToPDFParams(req.Geometry, e.Scale)
	if err != nil {
		return nil, err
	}
	htmlInput := injectBaseURL(req.HTML, e.BaseURL)

	var pdf []byte
	actions := []chromedp.Action{}
	if e.BlockExternalAssets {
		actions = append(actions,
			network.Enable(),
			network.SetBlockedURLs([]string{"http://*", "https://*"}),
		)
	}

	actions = append(actions,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(htmlInput)).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = params.Do(ctx)
			return err
		}),
	)

	if err := chromedp.Run(execCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, report.NewError(report.KindTimeout, "chromium pdf render timed out", err)
		}
		return nil, report.NewError(report.KindSerialization, "chromium pdf render failed", err)
	}
	return pdf, nil
}

// Close releases Chromium resources if they have been initialized.
func (e *ChromiumEngine) Close() error {
	if e == nil {
		return nil
	}
	if e.browserCancel != nil {
		e.browserCancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	return nil
}

func (e *ChromiumEngine) ensureBrowser() error {
	e.initOnce.Do(func() {
		options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if e.BrowserPath != "" {
			options = append(options, chromedp.ExecPath(e.BrowserPath))
		}
		options = append(options, chromedp.Flag("headless", e.Headless))
		options = append(options, allocatorOptionsFromArgs(e.Args)...)

		e.allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), options...)
		e.browserCtx, e.browserCancel = chromedp.NewContext(e.allocCtx)
	})
	if e.allocCtx == nil || e.browserCtx == nil {
		return errors.New("chromium allocator unavailable")
	}
	return nil
}

func buildPrintToPDFParams(geo report.Geometry, scale float64) (*page.PrintToPDFParams, error) {
	if scale == 0 {
		scale = defaultPDFScale
	}
	if scale < 0.1 || scale > 2.0 {
		return nil, report.NewError(report.KindValidation, "pdf scale must be between 0.1 and 2.0", nil)
	}
	if geo.Width <= 0 || geo.Height <= 0 {
		return nil, report.NewError(report.KindGeometry, fmt.Sprintf("invalid page size %.2fx%.2f", geo.Width, geo.Height), nil)
	}

	margin := inches(geo.Margin)
	return page.PrintToPDF().
		WithScale(scale).
		WithPrintBackground(true).
		WithPaperWidth(inches(geo.Width)).
		WithPaperHeight(inches(geo.Height)).
		WithMarginTop(margin).
		WithMarginBottom(margin).
		WithMarginLeft(margin).
		WithMarginRight(margin), nil
}

func injectBaseURL(htmlInput []byte, baseURL string) []byte {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return htmlInput
	}

	lower := strings.ToLower(string(htmlInput))
	if strings.Contains(lower, "<base") {
		return htmlInput
	}

	baseTag := fmt.Sprintf(`<base href="%s">`, html.EscapeString(baseURL))
	if headIdx := strings.Index(lower, "<head"); headIdx >= 0 {
		if end := strings.Index(lower[headIdx:], ">"); end >= 0 {
			insertPos := headIdx + end + 1
			return append(append([]byte{}, htmlInput[:insertPos]...), append([]byte(baseTag), htmlInput[insertPos:]...)...)
		}
	}

	return append([]byte(baseTag), htmlInput...)
}

func allocatorOptionsFromArgs(args []string) []chromedp.ExecAllocatorOption {
	options := make([]chromedp.ExecAllocatorOption, 0, len(args))
	for _, arg := range args {
		name, value, ok := splitFlag(arg)
		if !ok {
			continue
		}
		if value != "" {
			options = append(options, chromedp.Flag(name, value))
			continue
		}
		options = append(options, chromedp.Flag(name, true))
	}
	return options
}

// splitFlag parses "--name=value" or "name" into its parts.
func splitFlag(arg string) (string, string, bool) {
	arg = strings.TrimPrefix(strings.TrimSpace(arg), "--")
	if arg == "" {
		return "", "", false
	}
	name, value, _ := strings.Cut(arg, "=")
	return name, value, name != ""
}
