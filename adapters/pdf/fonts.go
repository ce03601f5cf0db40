package reportpdf

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/goliatone/go-report/report"
	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/text/encoding/charmap"
)

// Embedded UTF-8 families used when a report has text the core fonts cannot
// encode.
const (
	UnicodeFamily     = "GoSans"
	UnicodeCodeFamily = "GoMono"

	missingGlyph = '?'
)

var glyphs struct {
	once sync.Once
	font *sfnt.Font
}

// drawable reports whether the embedded fonts have a glyph for r.
func drawable(r rune) bool {
	glyphs.once.Do(func() {
		glyphs.font, _ = sfnt.Parse(goregular.TTF)
	})
	if glyphs.font == nil {
		return r < utf8.RuneSelf
	}
	var buf sfnt.Buffer
	idx, err := glyphs.font.GlyphIndex(&buf, r)
	return err == nil && idx != 0
}

// coreEncodable reports whether the cp1252 core fonts can draw r. The
// replacement character stands for bytes the translator already dropped.
func coreEncodable(r rune) bool {
	if r == '\n' || r == '\t' || r == utf8.RuneError {
		return true
	}
	_, ok := charmap.Windows1252.EncodeRune(r)
	return ok
}

// textScan summarizes the characters a layout will draw.
type textScan struct {
	unicode bool
	missing int
}

func scanText(doc report.Document, title TitleBlock) textScan {
	var scan textScan
	visit := func(s string) {
		for _, r := range s {
			if coreEncodable(r) {
				continue
			}
			scan.unicode = true
			if !drawable(r) {
				scan.missing++
			}
		}
	}

	visit(title.Title)
	visit(title.Subtitle)
	for _, block := range doc.Blocks {
		visit(block.Text)
		for _, item := range block.Items {
			visit(item.Marker)
			visit(item.Text)
		}
		if block.Table != nil {
			for _, cell := range block.Table.Header {
				visit(cell)
			}
			for _, row := range block.Table.Rows {
				for _, cell := range row {
					visit(cell)
				}
			}
		}
	}
	return scan
}

func registerUnicodeFonts(pdf *gofpdf.Fpdf) {
	pdf.AddUTF8FontFromBytes(UnicodeFamily, "", goregular.TTF)
	pdf.AddUTF8FontFromBytes(UnicodeFamily, "B", gobold.TTF)
	pdf.AddUTF8FontFromBytes(UnicodeFamily, "I", goitalic.TTF)
	pdf.AddUTF8FontFromBytes(UnicodeCodeFamily, "", gomono.TTF)
}

// replaceMissing swaps characters without a glyph for a visible marker.
func replaceMissing(s string) string {
	return strings.Map(func(r rune) rune {
		if r < utf8.RuneSelf || drawable(r) {
			return r
		}
		return missingGlyph
	}, s)
}
