package report

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const bulletMarker = "•"

// MarkdownTranslator translates CommonMark (plus GFM tables) into structured
// markup and an HTML fragment. Constructs it cannot honor degrade to literal
// text.
type MarkdownTranslator struct{}

// Translate implements Translator.
func (MarkdownTranslator) Translate(body string, opts RenderOptions) (Translation, error) {
	if !utf8.ValidString(body) {
		return Translation{}, NewError(KindTranslation, "body is not valid UTF-8", nil)
	}
	source := []byte(sanitizeText(body))

	md := newMarkdown(opts)
	root := md.Parser().Parse(text.NewReader(source))

	doc := Document{}
	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		doc.Blocks = appendBlocks(doc.Blocks, node, source, 0)
	}

	var out bytes.Buffer
	if err := md.Renderer().Render(&out, source, root); err != nil {
		return Translation{}, NewError(KindTranslation, "markdown html rendering failed", err)
	}

	return Translation{Document: doc, HTML: out.Bytes()}, nil
}

func newMarkdown(opts RenderOptions) goldmark.Markdown {
	extensions := []goldmark.Extender{extension.Strikethrough}
	if opts.IncludeTables {
		extensions = append(extensions, extension.Table)
	}

	parserOpts := []parser.Option{}
	if !opts.IncludeFencedCode {
		parserOpts = append(parserOpts, parser.WithASTTransformers(
			util.Prioritized(literalCodeTransformer{}, 100),
		))
	}

	return goldmark.New(
		goldmark.WithExtensions(extensions...),
		goldmark.WithParserOptions(parserOpts...),
	)
}

// literalCodeTransformer replaces code blocks with paragraphs holding their
// literal source lines, fences included.
type literalCodeTransformer struct{}

func (literalCodeTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	_ = pc
	source := reader.Source()

	var targets []ast.Node
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			targets = append(targets, n)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	for _, node := range targets {
		parent := node.Parent()
		if parent == nil {
			continue
		}
		para := ast.NewParagraph()
		fenced, isFenced := node.(*ast.FencedCodeBlock)
		if isFenced {
			appendLiteralLine(para, ast.NewString([]byte("```"+string(fenced.Language(source)))))
		}
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			value := seg.Value(source)
			if len(value) > 0 && value[len(value)-1] == '\n' {
				seg = text.NewSegment(seg.Start, seg.Stop-1)
			}
			line := ast.NewTextSegment(seg)
			line.SetHardLineBreak(isFenced || i < lines.Len()-1)
			para.AppendChild(para, line)
		}
		if isFenced {
			para.AppendChild(para, ast.NewString([]byte("```")))
		}
		parent.ReplaceChild(parent, node, para)
	}
}

func appendLiteralLine(para *ast.Paragraph, value ast.Node) {
	para.AppendChild(para, value)
	br := ast.NewTextSegment(text.NewSegment(0, 0))
	br.SetHardLineBreak(true)
	para.AppendChild(para, br)
}

func appendBlocks(blocks []Block, node ast.Node, source []byte, depth int) []Block {
	switch n := node.(type) {
	case *ast.Heading:
		return append(blocks, Block{Kind: BlockHeading, Level: n.Level, Text: inlineText(n, source)})
	case *ast.Paragraph, *ast.TextBlock:
		if txt := inlineText(n, source); txt != "" {
			return append(blocks, Block{Kind: BlockParagraph, Text: txt})
		}
		return blocks
	case *ast.List:
		items := listItems(nil, n, source, depth)
		if len(items) == 0 {
			return blocks
		}
		return append(blocks, Block{Kind: BlockList, Items: items})
	case *ast.FencedCodeBlock:
		return append(blocks, Block{Kind: BlockCode, Text: linesText(n, source), Language: string(n.Language(source))})
	case *ast.CodeBlock:
		return append(blocks, Block{Kind: BlockCode, Text: linesText(n, source)})
	case *ast.Blockquote:
		var parts []string
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			if txt := blockText(child, source); txt != "" {
				parts = append(parts, txt)
			}
		}
		if len(parts) == 0 {
			return blocks
		}
		return append(blocks, Block{Kind: BlockQuote, Text: strings.Join(parts, "\n")})
	case *ast.ThematicBreak:
		return append(blocks, Block{Kind: BlockRule})
	case *east.Table:
		return append(blocks, Block{Kind: BlockTable, Table: tableFromNode(n, source)})
	default:
		if txt := blockText(node, source); txt != "" {
			return append(blocks, Block{Kind: BlockParagraph, Text: txt})
		}
		return blocks
	}
}

func listItems(items []ListItem, list *ast.List, source []byte, depth int) []ListItem {
	index := list.Start
	if index == 0 && list.IsOrdered() {
		index = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := bulletMarker
		if list.IsOrdered() {
			marker = strconv.Itoa(index) + "."
			index++
		}
		var parts []string
		var nested []ast.Node
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			if sub, ok := child.(*ast.List); ok {
				nested = append(nested, sub)
				continue
			}
			if txt := blockText(child, source); txt != "" {
				parts = append(parts, txt)
			}
		}
		items = append(items, ListItem{Marker: marker, Text: strings.Join(parts, " "), Depth: depth})
		for _, sub := range nested {
			items = listItems(items, sub.(*ast.List), source, depth+1)
		}
	}
	return items
}

func tableFromNode(node *east.Table, source []byte) *Table {
	table := &Table{}
	for _, align := range node.Alignments {
		table.Align = append(table.Align, alignmentOf(align))
	}
	for row := node.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, inlineText(cell, source))
		}
		if _, ok := row.(*east.TableHeader); ok {
			table.Header = cells
			continue
		}
		table.Rows = append(table.Rows, cells)
	}
	table.Normalize()
	return table
}

func alignmentOf(align east.Alignment) Alignment {
	switch align {
	case east.AlignLeft:
		return AlignLeft
	case east.AlignCenter:
		return AlignCenter
	case east.AlignRight:
		return AlignRight
	default:
		return AlignNone
	}
}

// blockText flattens any block to text; unknown constructs keep their source lines.
func blockText(node ast.Node, source []byte) string {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock, *ast.Heading:
		return inlineText(n, source)
	case *ast.List:
		var parts []string
		for _, item := range listItems(nil, n, source, 0) {
			parts = append(parts, item.Marker+" "+item.Text)
		}
		return strings.Join(parts, "\n")
	}
	if node.Type() == ast.TypeBlock && node.Lines().Len() > 0 {
		return strings.TrimRight(linesText(node, source), "\n")
	}
	var parts []string
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if txt := blockText(child, source); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, "\n")
}

func linesText(node ast.Node, source []byte) string {
	var b strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return strings.TrimRight(b.String(), "\n")
}

func inlineText(node ast.Node, source []byte) string {
	var b strings.Builder
	writeInline(&b, node, source)
	return strings.TrimSpace(b.String())
}

func writeInline(b *strings.Builder, node ast.Node, source []byte) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.Text:
			b.Write(n.Segment.Value(source))
			if n.HardLineBreak() {
				b.WriteByte('\n')
			} else if n.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(n.Value)
		case *ast.AutoLink:
			b.Write(n.Label(source))
		case *ast.RawHTML:
			for i := 0; i < n.Segments.Len(); i++ {
				seg := n.Segments.At(i)
				b.Write(seg.Value(source))
			}
		default:
			writeInline(b, child, source)
		}
	}
}
