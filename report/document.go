package report

// BlockKind identifies a structured markup block.
type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockParagraph BlockKind = "paragraph"
	BlockList      BlockKind = "list"
	BlockTable     BlockKind = "table"
	BlockCode      BlockKind = "code"
	BlockQuote     BlockKind = "quote"
	BlockRule      BlockKind = "rule"
)

// Alignment is a table column alignment.
type Alignment string

const (
	AlignNone   Alignment = ""
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// Document is the structured markup produced by translation.
type Document struct {
	Blocks []Block
}

// Block is one top-level construct of a document.
type Block struct {
	Kind     BlockKind
	Level    int
	Text     string
	Language string
	Items    []ListItem
	Table    *Table
}

// ListItem is a flattened list entry; Depth starts at zero.
type ListItem struct {
	Marker string
	Text   string
	Depth  int
}

// Table holds a rectangular table.
type Table struct {
	Header []string
	Rows   [][]string
	Align  []Alignment
}

// Columns returns the table column count.
func (t *Table) Columns() int {
	if t == nil {
		return 0
	}
	return len(t.Header)
}

// Normalize pads or trims rows and alignments to the header width.
func (t *Table) Normalize() {
	if t == nil {
		return
	}
	cols := len(t.Header)
	for _, row := range t.Rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	t.Header = padCells(t.Header, cols)
	for i, row := range t.Rows {
		t.Rows[i] = padCells(row, cols)
	}
	align := make([]Alignment, cols)
	copy(align, t.Align)
	t.Align = align
}

func padCells(cells []string, cols int) []string {
	if len(cells) == cols {
		return cells
	}
	out := make([]string, cols)
	copy(out, cells)
	return out
}

// Tables returns every table block in document order.
func (d Document) Tables() []*Table {
	var tables []*Table
	for _, block := range d.Blocks {
		if block.Kind == BlockTable && block.Table != nil {
			tables = append(tables, block.Table)
		}
	}
	return tables
}

// Empty reports whether the document has no blocks.
func (d Document) Empty() bool {
	return len(d.Blocks) == 0
}
