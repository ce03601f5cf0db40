package reportpdf

import (
	"bytes"
	"context"
	"strings"

	"github.com/goliatone/go-report/report"
	"github.com/jung-kurt/gofpdf"
)

// NativeRenderer lays out and serializes reports in-process with gofpdf.
// Output is deterministic for equal inputs.
type NativeRenderer struct {
	Theme    *Theme
	Compress bool
	Creator  string
	Logger   report.Logger
}

// Render implements report.Renderer.
func (r NativeRenderer) Render(ctx context.Context, req report.RenderRequest) (report.Rendition, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := r.Logger
	if logger == nil {
		logger = report.NopLogger{}
	}

	theme := DefaultTheme()
	if r.Theme != nil {
		theme = r.Theme.withDefaults()
	}
	if family := strings.TrimSpace(req.Options.FontFamily); family != "" {
		resolved, err := report.ResolveFontFamily(family)
		if err != nil {
			return report.Rendition{}, err
		}
		theme.Family = resolved
	}

	pdf := r.newDocument(req)
	title := TitleFor(req.Report)
	scan := scanText(req.Translation.Document, title)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if scan.unicode {
		registerUnicodeFonts(pdf)
		theme.Family = UnicodeFamily
		theme.CodeFamily = UnicodeCodeFamily
		tr = replaceMissing
		if scan.missing > 0 {
			logger.Infof("report text has %d character(s) without a glyph in the embedded font; drawn as %q", scan.missing, string(missingGlyph))
		}
	}
	measurer := MeasurerFunc(func(font Font, text string) float64 {
		pdf.SetFont(font.Family, font.Style, font.Size)
		return pdf.GetStringWidth(tr(text))
	})

	layout, err := Plan(req.Translation.Document, title, req.Geometry, theme, measurer)
	if err != nil {
		return report.Rendition{}, err
	}
	if layout.Truncated > 0 {
		logger.Infof("report layout truncated %d oversize table row(s) to fit the page", layout.Truncated)
	}
	if layout.Shrunk > 0 || layout.Literal > 0 {
		logger.Infof("report layout narrowed %d wide table(s) and drew %d as text", layout.Shrunk, layout.Literal)
	}
	if err := ctx.Err(); err != nil {
		return report.Rendition{}, err
	}

	for i, page := range layout.Pages {
		if i > 0 && i%16 == 0 {
			if err := ctx.Err(); err != nil {
				return report.Rendition{}, err
			}
		}
		pdf.AddPage()
		for _, item := range page.Items {
			drawItem(pdf, tr, item)
		}
	}

	if pdf.Err() {
		return report.Rendition{}, report.NewError(report.KindSerialization, "pdf document construction failed", pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return report.Rendition{}, report.NewError(report.KindSerialization, "pdf output failed", err)
	}

	return report.Rendition{Data: buf.Bytes(), Pages: len(layout.Pages), Substituted: scan.missing}, nil
}

func (r NativeRenderer) newDocument(req report.RenderRequest) *gofpdf.Fpdf {
	geo := req.Geometry
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: geo.Width, Ht: geo.Height},
	})
	pdf.SetMargins(geo.Margin, geo.Margin, geo.Margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(r.Compress)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(req.Report.GeneratedAt.UTC())
	pdf.SetTitle(TitleFor(req.Report).Title, true)
	creator := r.Creator
	if creator == "" {
		creator = "go-report"
	}
	pdf.SetCreator(creator, true)
	return pdf
}

// TitleFor builds the title block for a report.
func TitleFor(rep report.Report) TitleBlock {
	block := TitleBlock{Title: rep.DisplayTitle()}
	if label := rep.GeneratedLabel(); label != "" {
		block.Subtitle = "Generated " + label
	}
	return block
}

func drawItem(pdf *gofpdf.Fpdf, tr func(string) string, item Item) {
	switch item.Kind {
	case ItemText:
		pdf.SetFont(item.Font.Family, item.Font.Style, item.Font.Size)
		pdf.SetTextColor(item.Color.R, item.Color.G, item.Color.B)
		pdf.Text(item.X, item.Y, tr(item.Text))
	case ItemBox:
		if item.LineWidth > 0 {
			pdf.SetLineWidth(item.LineWidth)
		}
		pdf.SetDrawColor(item.Color.R, item.Color.G, item.Color.B)
		pdf.SetFillColor(item.Fill.R, item.Fill.G, item.Fill.B)
		style := item.Style
		if style == "" {
			style = "D"
		}
		pdf.Rect(item.X, item.Y, item.W, item.H, style)
	case ItemLine:
		if item.LineWidth > 0 {
			pdf.SetLineWidth(item.LineWidth)
		}
		pdf.SetDrawColor(item.Color.R, item.Color.G, item.Color.B)
		pdf.Line(item.X, item.Y, item.X+item.W, item.Y+item.H)
	}
}
