package report

import (
	"fmt"
	"strings"
)

const (
	DefaultPageSize   = PageLetter
	DefaultMarginPx   = 40
	DefaultFontFamily = "Helvetica"
)

// DefaultRenderOptions returns the options used when a caller supplies none.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		PageSize:          DefaultPageSize,
		MarginPx:          DefaultMarginPx,
		IncludeTables:     true,
		IncludeFencedCode: true,
		FontFamily:        DefaultFontFamily,
	}
}

// OptionsOverride carries a partial set of render options.
type OptionsOverride struct {
	PageSize          *PageSize `json:"page_size,omitempty"`
	MarginPx          *int      `json:"margin_px,omitempty"`
	IncludeTables     *bool     `json:"include_tables,omitempty"`
	IncludeFencedCode *bool     `json:"include_fenced_code,omitempty"`
	FontFamily        *string   `json:"font_family,omitempty"`
}

// MergeOptions applies override on top of base.
func MergeOptions(base RenderOptions, override OptionsOverride) RenderOptions {
	merged := base
	if override.PageSize != nil {
		merged.PageSize = *override.PageSize
	}
	if override.MarginPx != nil {
		merged.MarginPx = *override.MarginPx
	}
	if override.IncludeTables != nil {
		merged.IncludeTables = *override.IncludeTables
	}
	if override.IncludeFencedCode != nil {
		merged.IncludeFencedCode = *override.IncludeFencedCode
	}
	if override.FontFamily != nil {
		merged.FontFamily = *override.FontFamily
	}
	return merged
}

// NormalizePageSize coerces page size names into known values.
func NormalizePageSize(size PageSize) (PageSize, error) {
	switch strings.ToLower(strings.TrimSpace(string(size))) {
	case "letter", "us-letter", "us_letter":
		return PageLetter, nil
	case "a4":
		return PageA4, nil
	default:
		return "", NewError(KindValidation, fmt.Sprintf("unsupported page size: %q", size), nil)
	}
}

var pageSizesPt = map[PageSize]struct {
	width  float64
	height float64
}{
	PageLetter: {width: 612, height: 792},
	PageA4:     {width: 595.28, height: 841.89},
}

// Geometry is a resolved page layout in PDF points.
type Geometry struct {
	PageSize PageSize
	Width    float64
	Height   float64
	Margin   float64
}

// ContentWidth is the usable width between margins.
func (g Geometry) ContentWidth() float64 { return g.Width - 2*g.Margin }

// ContentHeight is the usable height between margins.
func (g Geometry) ContentHeight() float64 { return g.Height - 2*g.Margin }

// Bottom is the lowest y coordinate content may reach, measured from the top edge.
func (g Geometry) Bottom() float64 { return g.Height - g.Margin }

// ResolveGeometry validates page size and margins. Impossible layouts are
// reported, never clamped.
func ResolveGeometry(opts RenderOptions) (Geometry, error) {
	size, err := NormalizePageSize(opts.PageSize)
	if err != nil {
		return Geometry{}, err
	}
	dims := pageSizesPt[size]
	geo := Geometry{
		PageSize: size,
		Width:    dims.width,
		Height:   dims.height,
		Margin:   float64(opts.MarginPx),
	}
	if opts.MarginPx < 0 {
		return Geometry{}, NewError(KindGeometry, fmt.Sprintf("margin %dpx must not be negative", opts.MarginPx), nil)
	}
	if geo.ContentHeight() <= 0 {
		return Geometry{}, NewError(KindGeometry, fmt.Sprintf("margin %dpx leaves no vertical space on %s (height %.0fpx)", opts.MarginPx, size, geo.Height), nil)
	}
	if geo.ContentWidth() <= 0 {
		return Geometry{}, NewError(KindGeometry, fmt.Sprintf("margin %dpx leaves no horizontal space on %s (width %.0fpx)", opts.MarginPx, size, geo.Width), nil)
	}
	return geo, nil
}

var coreFontFamilies = map[string]string{
	"helvetica":   "Helvetica",
	"arial":       "Helvetica",
	"sans-serif":  "Helvetica",
	"times":       "Times",
	"times-roman": "Times",
	"serif":       "Times",
	"courier":     "Courier",
	"monospace":   "Courier",
}

// ResolveFontFamily maps a font family name to a PDF core family.
func ResolveFontFamily(name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if family, ok := coreFontFamilies[key]; ok {
		return family, nil
	}
	return "", NewError(KindValidation, fmt.Sprintf("unsupported font family: %q", name), nil)
}
