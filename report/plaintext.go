package report

import (
	"bytes"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"
)

// PlainTextTranslator renders a body as literal text, one paragraph per line.
// It is the fallback when markdown translation fails.
type PlainTextTranslator struct{}

// Translate implements Translator.
func (PlainTextTranslator) Translate(body string, opts RenderOptions) (Translation, error) {
	_ = opts
	clean := sanitizeText(body)
	if strings.TrimSpace(body) != "" && !hasPrintable(clean) {
		return Translation{}, NewError(KindTranslation, "body contains no printable text", nil)
	}

	doc := Document{}
	var out bytes.Buffer
	for _, line := range strings.Split(clean, "\n") {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		doc.Blocks = append(doc.Blocks, Block{Kind: BlockParagraph, Text: line})
		out.WriteString("<p>")
		out.WriteString(html.EscapeString(line))
		out.WriteString("</p>\n")
	}
	return Translation{Document: doc, HTML: out.Bytes(), Fallback: true}, nil
}

// sanitizeText repairs invalid UTF-8 and drops control characters other than
// newlines and tabs.
func sanitizeText(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func hasPrintable(s string) bool {
	for _, r := range s {
		if r == utf8.RuneError {
			continue
		}
		if unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}
