package reportpdf

// Color is an RGB color.
type Color struct {
	R, G, B int
}

// Theme holds the fixed visual style of the native renderer.
type Theme struct {
	Family       string
	CodeFamily   string
	BaseSize     float64
	TitleSize    float64
	HeadingSizes []float64
	LineHeight   float64

	TextColor    Color
	HeadingColor Color
	MutedColor   Color
	BorderColor  Color
	HeaderFill   Color
	CodeFill     Color
	QuoteBar     Color

	CellPadding  float64
	BlockSpacing float64
	ListIndent   float64
	QuoteIndent  float64
	CodePadding  float64
}

// DefaultTheme mirrors the HTML page template.
func DefaultTheme() Theme {
	return Theme{
		Family:       "Helvetica",
		CodeFamily:   "Courier",
		BaseSize:     11,
		TitleSize:    22,
		HeadingSizes: []float64{20, 16, 14, 12},
		LineHeight:   1.5,

		TextColor:    Color{R: 34, G: 34, B: 34},
		HeadingColor: Color{R: 51, G: 51, B: 51},
		MutedColor:   Color{R: 102, G: 102, B: 102},
		BorderColor:  Color{R: 221, G: 221, B: 221},
		HeaderFill:   Color{R: 242, G: 242, B: 242},
		CodeFill:     Color{R: 246, G: 248, B: 250},
		QuoteBar:     Color{R: 204, G: 204, B: 204},

		CellPadding:  6,
		BlockSpacing: 8,
		ListIndent:   14,
		QuoteIndent:  12,
		CodePadding:  6,
	}
}

// HeadingSize returns the font size for a heading level; deep levels use the last size.
func (t Theme) HeadingSize(level int) float64 {
	if len(t.HeadingSizes) == 0 {
		return t.BaseSize
	}
	if level < 1 {
		level = 1
	}
	if level > len(t.HeadingSizes) {
		level = len(t.HeadingSizes)
	}
	return t.HeadingSizes[level-1]
}

// CodeSize is the monospace font size.
func (t Theme) CodeSize() float64 {
	return t.BaseSize - 1
}

func (t Theme) lineHeight(size float64) float64 {
	lh := t.LineHeight
	if lh <= 0 {
		lh = 1.5
	}
	return size * lh
}

func (t Theme) withDefaults() Theme {
	def := DefaultTheme()
	if t.Family == "" {
		t.Family = def.Family
	}
	if t.CodeFamily == "" {
		t.CodeFamily = def.CodeFamily
	}
	if t.BaseSize <= 0 {
		t.BaseSize = def.BaseSize
	}
	if t.TitleSize <= 0 {
		t.TitleSize = def.TitleSize
	}
	if len(t.HeadingSizes) == 0 {
		t.HeadingSizes = def.HeadingSizes
	}
	if t.LineHeight <= 0 {
		t.LineHeight = def.LineHeight
	}
	return t
}
