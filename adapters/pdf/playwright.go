package reportpdf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-report/report"
	"github.com/playwright-community/playwright-go"
)

// PlaywrightEngine renders PDF output through playwright's Chromium.
type PlaywrightEngine struct {
	BrowserPath string
	Headless    bool
	Timeout     time.Duration
	Args        []string

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

type playwrightResult struct {
	pdf []byte
	err error
}

// Render sets the HTML as page content and prints it. Playwright calls are
// not context aware, so cancellation closes the page to unblock them.
func (e *PlaywrightEngine) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if e == nil {
		return nil, report.NewError(report.KindInternal, "playwright engine is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Geometry.Width <= 0 || req.Geometry.Height <= 0 {
		return nil, report.NewError(report.KindGeometry, "playwright engine requires page geometry", nil)
	}

	browser, err := e.ensureBrowser()
	if err != nil {
		return nil, report.NewError(report.KindInternal, "playwright engine init failed", err)
	}

	pg, err := browser.NewPage()
	if err != nil {
		return nil, report.NewError(report.KindSerialization, "playwright page create failed", err)
	}
	defer pg.Close()
	if e.Timeout > 0 {
		pg.SetDefaultTimeout(float64(e.Timeout.Milliseconds()))
	}

	done := make(chan playwrightResult, 1)
	go func() {
		if err := pg.SetContent(string(req.HTML)); err != nil {
			done <- playwrightResult{err: err}
			return
		}
		margin := fmt.Sprintf("%.4fin", inches(req.Geometry.Margin))
		pdf, err := pg.PDF(playwright.PagePdfOptions{
			PrintBackground:   playwright.Bool(true),
			PreferCSSPageSize: playwright.Bool(false),
			Width:             playwright.String(fmt.Sprintf("%.4fin", inches(req.Geometry.Width))),
			Height:            playwright.String(fmt.Sprintf("%.4fin", inches(req.Geometry.Height))),
			Margin: &playwright.Margin{
				Top:    playwright.String(margin),
				Bottom: playwright.String(margin),
				Left:   playwright.String(margin),
				Right:  playwright.String(margin),
			},
			Scale: playwright.Float(defaultPDFScale),
		})
		done <- playwrightResult{pdf: pdf, err: err}
	}()

	select {
	case <-ctx.Done():
		_ = pg.Close()
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, report.NewError(report.KindSerialization, "playwright pdf render failed", res.err)
		}
		return res.pdf, nil
	}
}

// Close stops the browser and the playwright driver.
func (e *PlaywrightEngine) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser != nil {
		if err := e.browser.Close(); err != nil {
			return err
		}
		e.browser = nil
	}
	if e.pw != nil {
		if err := e.pw.Stop(); err != nil {
			return err
		}
		e.pw = nil
	}
	return nil
}

func (e *PlaywrightEngine) ensureBrowser() (playwright.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser != nil {
		return e.browser, nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, err
	}
	options := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(e.Headless),
		Args:     append([]string{}, e.Args...),
	}
	if e.BrowserPath != "" {
		options.ExecutablePath = playwright.String(e.BrowserPath)
	}
	browser, err := pw.Chromium.Launch(options)
	if err != nil {
		_ = pw.Stop()
		return nil, err
	}

	e.pw = pw
	e.browser = browser
	return browser, nil
}
