package reportpdf

import (
	"fmt"
	"math"
	"strings"

	"github.com/goliatone/go-report/report"
)

const (
	ellipsis = "…"
	epsilon  = 0.01
	tabWidth = 4

	// MinTableFontSize is the smallest size a wide table is shrunk to before
	// it is drawn as literal text.
	MinTableFontSize = 6
)

// Font selects a core font face.
type Font struct {
	Family string
	Style  string
	Size   float64
}

// Measurer reports the rendered width of text in points.
type Measurer interface {
	StringWidth(font Font, text string) float64
}

// MeasurerFunc adapts a function to a Measurer.
type MeasurerFunc func(font Font, text string) float64

func (f MeasurerFunc) StringWidth(font Font, text string) float64 {
	return f(font, text)
}

// ItemKind identifies a drawing primitive.
type ItemKind string

const (
	ItemText ItemKind = "text"
	ItemBox  ItemKind = "box"
	ItemLine ItemKind = "line"
)

// Item is one positioned drawing primitive. Coordinates are points from the
// top-left page corner. Text items use Y as the baseline; lines run from
// (X, Y) to (X+W, Y+H).
type Item struct {
	Kind      ItemKind
	X, Y      float64
	W, H      float64
	Text      string
	Font      Font
	Color     Color
	Fill      Color
	Style     string
	LineWidth float64
}

// Page holds the items placed on one page.
type Page struct {
	Items []Item
}

// RowSpan records where a table row was placed.
type RowSpan struct {
	Page int
	Y    float64
	H    float64
}

// TableRegion describes a placed table. A Literal table was too wide for
// the page at MinTableFontSize and is drawn as its pipe-delimited source.
type TableRegion struct {
	Columns       int
	Rows          int
	FontSize      float64
	Widths        []float64
	RowSpans      []RowSpan
	HeaderRepeats int
	Truncated     int
	Literal       bool
}

// Pages returns the distinct page indexes the table occupies.
func (t TableRegion) Pages() []int {
	var pages []int
	for _, span := range t.RowSpans {
		if len(pages) == 0 || pages[len(pages)-1] != span.Page {
			pages = append(pages, span.Page)
		}
	}
	return pages
}

// Layout is a fully paginated report.
type Layout struct {
	Pages     []Page
	Tables    []TableRegion
	Truncated int
	// Shrunk and Literal count tables drawn below the base font size and
	// tables drawn as text.
	Shrunk  int
	Literal int
}

// TitleBlock is drawn at the top of the first page.
type TitleBlock struct {
	Title    string
	Subtitle string
}

// Plan paginates a document onto pages of the given geometry. It does not
// draw anything; the result is deterministic for equal inputs.
func Plan(doc report.Document, title TitleBlock, geo report.Geometry, theme Theme, m Measurer) (Layout, error) {
	if m == nil {
		return Layout{}, report.NewError(report.KindInternal, "layout measurer is required", nil)
	}
	theme = theme.withDefaults()
	if geo.ContentWidth() <= 0 || geo.ContentHeight() <= 0 {
		return Layout{}, report.NewError(report.KindGeometry, "page has no content area", nil)
	}
	minHeight := math.Max(theme.lineHeight(theme.TitleSize), 2*(theme.lineHeight(theme.BaseSize)+2*theme.CellPadding))
	if geo.ContentHeight() < minHeight {
		return Layout{}, report.NewError(report.KindGeometry, fmt.Sprintf("content height %.0fpt is too small to lay out text (needs %.0fpt)", geo.ContentHeight(), minHeight), nil)
	}

	p := &planner{
		geo:    geo,
		theme:  theme,
		m:      m,
		tables: make(map[*report.Table]*tablePlan),
	}
	p.newPage()
	p.titleBlock(title)

	blocks := doc.Blocks
	for i, block := range blocks {
		var next *report.Block
		if i+1 < len(blocks) {
			next = &blocks[i+1]
		}
		p.block(block, next)
	}
	return p.layout, nil
}

type planner struct {
	geo    report.Geometry
	theme  Theme
	m      Measurer
	layout Layout
	page   int
	y      float64
	tables map[*report.Table]*tablePlan
}

func (p *planner) newPage() {
	p.layout.Pages = append(p.layout.Pages, Page{})
	p.page = len(p.layout.Pages) - 1
	p.y = p.geo.Margin
}

func (p *planner) fits(h float64) bool {
	return p.y+h <= p.geo.Bottom()+epsilon
}

func (p *planner) atTop() bool {
	return p.y <= p.geo.Margin+epsilon
}

// ensure starts a new page unless h fits in the remaining space.
func (p *planner) ensure(h float64) {
	if !p.fits(h) && !p.atTop() {
		p.newPage()
	}
}

func (p *planner) gap(h float64) {
	if p.atTop() {
		return
	}
	p.y += h
}

func (p *planner) add(item Item) {
	p.layout.Pages[p.page].Items = append(p.layout.Pages[p.page].Items, item)
}

func (p *planner) width(font Font, text string) float64 {
	if text == "" {
		return 0
	}
	return p.m.StringWidth(font, text)
}

func (p *planner) font(style string, size float64) Font {
	return Font{Family: p.theme.Family, Style: style, Size: size}
}

func (p *planner) baseline(top, lineHeight, size float64) float64 {
	return top + (lineHeight-size)/2 + size*0.8
}

func (p *planner) textLine(x float64, font Font, color Color, text string) {
	h := p.theme.lineHeight(font.Size)
	p.ensure(h)
	if text != "" {
		p.add(Item{Kind: ItemText, X: x, Y: p.baseline(p.y, h, font.Size), Text: text, Font: font, Color: color})
	}
	p.y += h
}

func (p *planner) titleBlock(title TitleBlock) {
	left := p.geo.Margin
	cw := p.geo.ContentWidth()

	titleFont := p.font("B", p.theme.TitleSize)
	for _, line := range p.wrap(titleFont, title.Title, cw) {
		x := left + (cw-p.width(titleFont, line))/2
		p.textLine(x, titleFont, p.theme.HeadingColor, line)
	}
	if title.Subtitle != "" {
		subFont := p.font("", p.theme.BaseSize-1)
		for _, line := range p.wrap(subFont, title.Subtitle, cw) {
			x := left + (cw-p.width(subFont, line))/2
			p.textLine(x, subFont, p.theme.MutedColor, line)
		}
	}
	p.y += p.theme.BlockSpacing / 2
	p.ensure(1)
	p.add(Item{Kind: ItemLine, X: left, Y: p.y, W: cw, Color: p.theme.BorderColor, LineWidth: 1})
	p.y += p.theme.BlockSpacing * 1.5
}

func (p *planner) block(block report.Block, next *report.Block) {
	switch block.Kind {
	case report.BlockHeading:
		p.heading(block, next)
	case report.BlockParagraph:
		p.paragraph(block.Text)
	case report.BlockList:
		p.list(block.Items)
	case report.BlockCode:
		p.code(block.Text)
	case report.BlockQuote:
		p.quote(block.Text)
	case report.BlockRule:
		p.rule()
	case report.BlockTable:
		p.table(block.Table)
	default:
		if block.Text != "" {
			p.paragraph(block.Text)
		}
	}
}

func (p *planner) heading(block report.Block, next *report.Block) {
	size := p.theme.HeadingSize(block.Level)
	font := p.font("B", size)
	lines := p.wrap(font, block.Text, p.geo.ContentWidth())
	lh := p.theme.lineHeight(size)

	after := size * 0.25

	p.gap(size * 0.5)
	// keep the heading with the first line of what follows
	need := float64(len(lines))*lh + after + p.firstLineHeight(next)
	if need <= p.geo.ContentHeight() {
		p.ensure(need)
	}
	for _, line := range lines {
		p.textLine(p.geo.Margin, font, p.theme.HeadingColor, line)
	}
	p.y += after
}

func (p *planner) firstLineHeight(block *report.Block) float64 {
	if block == nil {
		return 0
	}
	switch block.Kind {
	case report.BlockHeading:
		return p.theme.lineHeight(p.theme.HeadingSize(block.Level))
	case report.BlockCode:
		return p.theme.lineHeight(p.theme.CodeSize()) + p.theme.CodePadding
	case report.BlockTable:
		plan := p.planTable(block.Table)
		if plan == nil {
			return 0
		}
		if plan.literal {
			return p.theme.lineHeight(p.theme.CodeSize()) + p.theme.CodePadding
		}
		if len(plan.rows) == 0 {
			return plan.headerH
		}
		return plan.headerH + math.Min(plan.rows[0].h, plan.maxRowH)
	case report.BlockRule:
		return 1
	default:
		return p.theme.lineHeight(p.theme.BaseSize)
	}
}

func (p *planner) paragraph(text string) {
	font := p.font("", p.theme.BaseSize)
	for _, line := range p.wrap(font, text, p.geo.ContentWidth()) {
		p.textLine(p.geo.Margin, font, p.theme.TextColor, line)
	}
	p.y += p.theme.BlockSpacing
}

func (p *planner) list(items []report.ListItem) {
	font := p.font("", p.theme.BaseSize)
	cw := p.geo.ContentWidth()
	lh := p.theme.lineHeight(font.Size)

	for _, item := range items {
		indent := float64(item.Depth) * p.theme.ListIndent
		if indent > cw/2 {
			indent = cw / 2
		}
		markerW := math.Max(p.width(font, item.Marker)+4, p.theme.ListIndent)
		textX := p.geo.Margin + indent + markerW
		lines := p.wrap(font, item.Text, cw-indent-markerW)

		p.ensure(lh)
		p.add(Item{Kind: ItemText, X: p.geo.Margin + indent, Y: p.baseline(p.y, lh, font.Size), Text: item.Marker, Font: font, Color: p.theme.TextColor})
		for _, line := range lines {
			p.textLine(textX, font, p.theme.TextColor, line)
		}
	}
	p.y += p.theme.BlockSpacing
}

func (p *planner) code(text string) {
	font := Font{Family: p.theme.CodeFamily, Size: p.theme.CodeSize()}
	cw := p.geo.ContentWidth()
	pad := p.theme.CodePadding
	lh := p.theme.lineHeight(font.Size)
	left := p.geo.Margin

	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.ReplaceAll(raw, "\t", strings.Repeat(" ", tabWidth))
		lines = append(lines, p.breakWord(font, raw, cw-2*pad)...)
	}

	p.ensure(pad + lh)
	p.add(Item{Kind: ItemBox, X: left, Y: p.y, W: cw, H: pad, Fill: p.theme.CodeFill, Style: "F"})
	p.y += pad
	for _, line := range lines {
		p.ensure(lh)
		p.add(Item{Kind: ItemBox, X: left, Y: p.y, W: cw, H: lh, Fill: p.theme.CodeFill, Style: "F"})
		if line != "" {
			p.add(Item{Kind: ItemText, X: left + pad, Y: p.baseline(p.y, lh, font.Size), Text: line, Font: font, Color: p.theme.TextColor})
		}
		p.y += lh
	}
	if p.fits(pad) {
		p.add(Item{Kind: ItemBox, X: left, Y: p.y, W: cw, H: pad, Fill: p.theme.CodeFill, Style: "F"})
		p.y += pad
	}
	p.y += p.theme.BlockSpacing
}

func (p *planner) quote(text string) {
	font := p.font("I", p.theme.BaseSize)
	indent := p.theme.QuoteIndent
	lh := p.theme.lineHeight(font.Size)
	for _, line := range p.wrap(font, text, p.geo.ContentWidth()-indent) {
		p.ensure(lh)
		p.add(Item{Kind: ItemLine, X: p.geo.Margin + 2, Y: p.y, H: lh, Color: p.theme.QuoteBar, LineWidth: 2})
		p.textLine(p.geo.Margin+indent, font, p.theme.MutedColor, line)
	}
	p.y += p.theme.BlockSpacing
}

func (p *planner) rule() {
	p.gap(p.theme.BlockSpacing / 2)
	p.ensure(1)
	p.add(Item{Kind: ItemLine, X: p.geo.Margin, Y: p.y, W: p.geo.ContentWidth(), Color: p.theme.BorderColor, LineWidth: 1})
	p.y += p.theme.BlockSpacing
}

type rowPlan struct {
	cells [][]string
	h     float64
}

type tablePlan struct {
	columns    int
	size       float64
	literal    bool
	widths     []float64
	align      []report.Alignment
	pad        float64
	lh         float64
	headerFont Font
	bodyFont   Font
	header     rowPlan
	headerH    float64
	rows       []rowPlan
	maxRowH    float64
	truncated  bool
}

func (p *planner) planTable(table *report.Table) *tablePlan {
	if table == nil || table.Columns() == 0 {
		return nil
	}
	if plan, ok := p.tables[table]; ok {
		return plan
	}

	cols := table.Columns()
	share := p.geo.ContentWidth() / float64(cols)
	minCol := func(size, pad float64) float64 {
		return p.width(p.font("", size), "W") + 2*pad
	}

	size, pad := p.theme.BaseSize, p.theme.CellPadding
	if share < minCol(size, pad) {
		pad = 2
	}
	for share < minCol(size, pad) && size-1 >= MinTableFontSize {
		size--
	}
	plan := &tablePlan{columns: cols, size: size}
	p.tables[table] = plan
	if share < minCol(size, pad) {
		plan.literal = true
		return plan
	}

	plan.align = table.Align
	plan.pad = pad
	plan.lh = p.theme.lineHeight(size)
	plan.headerFont = p.font("B", size)
	plan.bodyFont = p.font("", size)

	least := minCol(size, pad)
	natural := make([]float64, cols)
	for j := 0; j < cols; j++ {
		natural[j] = p.width(plan.headerFont, table.Header[j]) + 2*plan.pad
		for _, row := range table.Rows {
			natural[j] = math.Max(natural[j], p.width(plan.bodyFont, row[j])+2*plan.pad)
		}
		natural[j] = math.Max(natural[j], least)
	}
	plan.widths = columnWidths(natural, p.geo.ContentWidth())

	plan.header = p.planRow(plan, plan.headerFont, table.Header)
	maxHeader := p.geo.ContentHeight() / 2
	if plan.header.h > maxHeader {
		plan.header = p.truncateRow(plan, plan.headerFont, plan.header, maxHeader)
		plan.truncated = true
	}
	plan.headerH = plan.header.h
	plan.maxRowH = p.geo.ContentHeight() - plan.headerH

	for _, cells := range table.Rows {
		plan.rows = append(plan.rows, p.planRow(plan, plan.bodyFont, cells))
	}
	return plan
}

// literalTable renders a table back to pipe-delimited rows.
func literalTable(table *report.Table) string {
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("| ")
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
	}
	writeRow(table.Header)
	rule := make([]string, table.Columns())
	for i := range rule {
		rule[i] = "---"
	}
	writeRow(rule)
	for _, row := range table.Rows {
		writeRow(row)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// columnWidths keeps natural widths when they fit. Otherwise columns narrower
// than a fair share keep their width and the rest split what remains equally.
func columnWidths(natural []float64, total float64) []float64 {
	widths := append([]float64{}, natural...)
	sum := 0.0
	for _, w := range natural {
		sum += w
	}
	if sum <= total {
		return widths
	}

	flexible := make([]bool, len(natural))
	for i := range flexible {
		flexible[i] = true
	}
	remaining := total
	count := len(natural)
	for changed := true; changed && count > 0; {
		changed = false
		fair := remaining / float64(count)
		for i, w := range natural {
			if flexible[i] && w <= fair {
				flexible[i] = false
				remaining -= w
				count--
				changed = true
			}
		}
	}
	for i := range widths {
		if flexible[i] {
			widths[i] = remaining / float64(count)
		}
	}
	return widths
}

func (p *planner) planRow(plan *tablePlan, font Font, cells []string) rowPlan {
	row := rowPlan{cells: make([][]string, len(cells))}
	maxLines := 1
	for j, cell := range cells {
		row.cells[j] = p.wrap(font, cell, plan.widths[j]-2*plan.pad)
		if len(row.cells[j]) > maxLines {
			maxLines = len(row.cells[j])
		}
	}
	row.h = float64(maxLines)*plan.lh + 2*plan.pad
	return row
}

// truncateRow cuts every cell to the lines that fit in maxH and marks the cut
// with an ellipsis.
func (p *planner) truncateRow(plan *tablePlan, font Font, row rowPlan, maxH float64) rowPlan {
	limit := int((maxH - 2*plan.pad) / plan.lh)
	if limit < 1 {
		limit = 1
	}
	out := rowPlan{cells: make([][]string, len(row.cells))}
	for j, lines := range row.cells {
		if len(lines) <= limit {
			out.cells[j] = lines
			continue
		}
		kept := append([]string{}, lines[:limit]...)
		kept[limit-1] = p.ellipsize(font, kept[limit-1], plan.widths[j]-2*plan.pad)
		out.cells[j] = kept
	}
	out.h = float64(limit)*plan.lh + 2*plan.pad
	return out
}

func (p *planner) ellipsize(font Font, line string, width float64) string {
	runes := []rune(strings.TrimRight(line, " "))
	for len(runes) > 0 && p.width(font, string(runes)+ellipsis) > width {
		runes = runes[:len(runes)-1]
	}
	return strings.TrimRight(string(runes), " ") + ellipsis
}

func (p *planner) table(table *report.Table) {
	plan := p.planTable(table)
	if plan == nil {
		return
	}
	if plan.literal {
		p.layout.Tables = append(p.layout.Tables, TableRegion{Columns: plan.columns, Rows: len(table.Rows), Literal: true})
		p.layout.Literal++
		p.code(literalTable(table))
		return
	}
	if plan.size < p.theme.BaseSize {
		p.layout.Shrunk++
	}

	region := TableRegion{
		Columns:  plan.columns,
		Rows:     len(plan.rows),
		FontSize: plan.size,
		Widths:   append([]float64{}, plan.widths...),
	}
	if plan.truncated {
		region.Truncated++
		p.layout.Truncated++
	}

	p.gap(p.theme.BlockSpacing / 2)
	if len(plan.rows) == 0 {
		p.ensure(plan.headerH)
		p.drawRow(plan, plan.header, plan.headerFont, true)
	}

	for i, row := range plan.rows {
		if row.h > plan.maxRowH {
			row = p.truncateRow(plan, plan.bodyFont, row, plan.maxRowH)
			region.Truncated++
			p.layout.Truncated++
		}
		switch {
		case i == 0:
			p.ensure(plan.headerH + row.h)
			p.drawRow(plan, plan.header, plan.headerFont, true)
		case !p.fits(row.h):
			p.newPage()
			p.drawRow(plan, plan.header, plan.headerFont, true)
			region.HeaderRepeats++
		}
		region.RowSpans = append(region.RowSpans, RowSpan{Page: p.page, Y: p.y, H: row.h})
		p.drawRow(plan, row, plan.bodyFont, false)
	}

	p.layout.Tables = append(p.layout.Tables, region)
	p.y += p.theme.BlockSpacing
}

func (p *planner) drawRow(plan *tablePlan, row rowPlan, font Font, header bool) {
	x := p.geo.Margin
	for j, lines := range row.cells {
		w := plan.widths[j]
		box := Item{Kind: ItemBox, X: x, Y: p.y, W: w, H: row.h, Color: p.theme.BorderColor, Style: "D", LineWidth: 0.75}
		if header {
			box.Fill = p.theme.HeaderFill
			box.Style = "FD"
		}
		p.add(box)

		for k, line := range lines {
			if line == "" {
				continue
			}
			top := p.y + plan.pad + float64(k)*plan.lh
			tx := x + plan.pad
			switch alignAt(plan.align, j) {
			case report.AlignRight:
				tx = x + w - plan.pad - p.width(font, line)
			case report.AlignCenter:
				tx = x + (w-p.width(font, line))/2
			}
			p.add(Item{Kind: ItemText, X: tx, Y: p.baseline(top, plan.lh, font.Size), Text: line, Font: font, Color: p.theme.TextColor})
		}
		x += w
	}
	p.y += row.h
}

func alignAt(align []report.Alignment, i int) report.Alignment {
	if i < len(align) {
		return align[i]
	}
	return report.AlignNone
}

// wrap splits text on newlines and then greedily on spaces; words wider than
// the line are broken between runes.
func (p *planner) wrap(font Font, text string, width float64) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		lines = append(lines, p.wrapLine(font, para, width)...)
	}
	return lines
}

func (p *planner) wrapLine(font Font, text string, width float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	current := ""
	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if p.width(font, candidate) <= width {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
			current = ""
		}
		if p.width(font, word) <= width {
			current = word
			continue
		}
		chunks := p.breakWord(font, word, width)
		lines = append(lines, chunks[:len(chunks)-1]...)
		current = chunks[len(chunks)-1]
	}
	return append(lines, current)
}

// breakWord splits text into chunks no wider than width, keeping at least one
// rune per chunk.
func (p *planner) breakWord(font Font, text string, width float64) []string {
	if text == "" {
		return []string{""}
	}
	var chunks []string
	var current []rune
	for _, r := range text {
		if len(current) > 0 && p.width(font, string(append(current, r))) > width {
			chunks = append(chunks, string(current))
			current = current[:0:0]
		}
		current = append(current, r)
	}
	return append(chunks, string(current))
}
