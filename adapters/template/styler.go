package reporttemplate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/goliatone/go-report/report"
)

var fontStacks = map[string]string{
	"Helvetica": `Helvetica, Arial, sans-serif`,
	"Times":     `"Times New Roman", Times, serif`,
	"Courier":   `"Courier New", Courier, monospace`,
}

// Styler wraps translated report HTML in the styled page template.
type Styler struct {
	Templates    TemplateExecutor
	TemplateName string
}

// Style writes a complete HTML page for req to w.
func (s Styler) Style(ctx context.Context, req report.RenderRequest, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := PageData(req)
	if err != nil {
		return err
	}

	templates := s.Templates
	if templates == nil {
		templates = defaultExecutor
	}
	name := s.TemplateName
	if name == "" {
		name = DefaultTemplateName
	}

	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		var reportErr *report.ReportError
		if errors.As(err, &reportErr) {
			return err
		}
		return report.NewError(report.KindSerialization, fmt.Sprintf("page template %q failed", name), err)
	}
	return nil
}

// PageData builds the template context for a render request.
func PageData(req report.RenderRequest) (map[string]any, error) {
	geo := req.Geometry
	if geo.Width <= 0 || geo.Height <= 0 {
		resolved, err := report.ResolveGeometry(req.Options)
		if err != nil {
			return nil, err
		}
		geo = resolved
	}

	family := req.Options.FontFamily
	if family == "" {
		family = report.DefaultFontFamily
	}
	family, err := report.ResolveFontFamily(family)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"title":       req.Report.DisplayTitle(),
		"generated":   req.Report.GeneratedLabel(),
		"body":        string(req.Translation.HTML),
		"fallback":    req.Translation.Fallback,
		"page_size":   string(geo.PageSize),
		"page_width":  points(geo.Width),
		"page_height": points(geo.Height),
		"margin":      points(geo.Margin),
		"font_stack":  fontStacks[family],
	}, nil
}

func points(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "pt"
}

// Renderer exposes the styled page as an export format. HTML output is one
// continuous page.
type Renderer struct {
	Styler Styler
}

// Render implements report.Renderer.
func (r Renderer) Render(ctx context.Context, req report.RenderRequest) (report.Rendition, error) {
	var buf bytes.Buffer
	if err := r.Styler.Style(ctx, req, &buf); err != nil {
		return report.Rendition{}, err
	}
	return report.Rendition{Data: buf.Bytes(), Pages: 1}, nil
}
