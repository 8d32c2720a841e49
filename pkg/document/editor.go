package document

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	// Registered decoders for the image formats accepted on paste/drop.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Table dimension bounds for InsertTable.
const (
	MinTableDim = 1
	MaxTableDim = 20
)

// MinImageWidth is the smallest display width an image can be resized
// to.
const MinImageWidth = 100

// Editor is the content-editing capability a note workspace needs. The
// underlying engine can be swapped without touching the stores, which
// only ever see the serialized string.
type Editor interface {
	// Load replaces the editor content unless the incoming value is
	// structurally equal to the current content, so reloading the note
	// being edited does not reset cursor state mid-typing.
	Load(serialized string) error
	// Serialize returns the current content in canonical form.
	Serialize() string
	// OnChange registers the callback invoked with the new serialized
	// content after every mutation.
	OnChange(fn func(serialized string))

	SetCursor(block int) error
	SetCursorInTable(block, row, col int) error
	SetTextSelection(active bool)
	ToolbarVisible() bool

	SetBlockType(t BlockType, headingLevel int) error
	ToggleBold() error
	ToggleItalic() error

	BeginLink() error
	ConfirmLink(url string) error
	CancelLink()
	LinkMode() bool

	InsertImage(data []byte) error
	ResizeImage(width int) error

	InsertTable(rows, cols int) error
	AddRowAfter() error
	AddColumnAfter() error
	DeleteRow() error
	DeleteColumn() error
	MergeRight() error
	SplitCell() error
	ToggleHeaderRow() error
}

// cursor is the insertion point. When InTable is set, Row and Col locate
// the cell inside the table block.
type cursor struct {
	Block   int
	InTable bool
	Row     int
	Col     int
}

// TextEditor is the built-in Editor implementation.
type TextEditor struct {
	doc           Document
	cursor        cursor
	textSelection bool
	linkMode      bool
	onChange      func(string)
}

var _ Editor = (*TextEditor)(nil)

// NewEditor returns an editor holding the placeholder document.
func NewEditor() *TextEditor {
	return &TextEditor{doc: *Placeholder()}
}

func (e *TextEditor) emitChange() {
	if e.onChange != nil {
		e.onChange(e.Serialize())
	}
}

func (e *TextEditor) OnChange(fn func(string)) {
	e.onChange = fn
}

func (e *TextEditor) Serialize() string {
	return e.doc.Serialize()
}

// Load replaces the content only when it differs structurally from the
// current content. Loading never fires OnChange; only edits do.
func (e *TextEditor) Load(serialized string) error {
	doc, err := Parse(serialized)
	if err != nil {
		return err
	}
	if doc.Serialize() == e.doc.Serialize() {
		return nil
	}
	e.doc = *doc
	e.cursor = cursor{}
	e.textSelection = false
	e.linkMode = false
	return nil
}

// Cursor and selection

func (e *TextEditor) SetCursor(block int) error {
	if block < 0 || block >= len(e.doc.Blocks) {
		return fmt.Errorf("block index %d out of range", block)
	}
	e.cursor = cursor{Block: block}
	return nil
}

func (e *TextEditor) SetCursorInTable(block, row, col int) error {
	if block < 0 || block >= len(e.doc.Blocks) {
		return fmt.Errorf("block index %d out of range", block)
	}
	t := e.doc.Blocks[block].Table
	if t == nil {
		return fmt.Errorf("block %d is not a table", block)
	}
	if row < 0 || row >= len(t.Rows) {
		return fmt.Errorf("row index %d out of range", row)
	}
	if col < 0 || col >= len(t.Rows[row].Cells) {
		return fmt.Errorf("column index %d out of range", col)
	}
	e.cursor = cursor{Block: block, InTable: true, Row: row, Col: col}
	return nil
}

func (e *TextEditor) SetTextSelection(active bool) {
	e.textSelection = active
	if !active && e.linkMode {
		e.linkMode = false
	}
}

// ToolbarVisible reports whether formatting actions apply: there is a
// non-empty text selection or the cursor is inside a table.
func (e *TextEditor) ToolbarVisible() bool {
	return e.textSelection || e.cursor.InTable
}

// Block and mark operations

func (e *TextEditor) currentBlock() (*Block, error) {
	if e.cursor.Block < 0 || e.cursor.Block >= len(e.doc.Blocks) {
		return nil, fmt.Errorf("no block at cursor")
	}
	return &e.doc.Blocks[e.cursor.Block], nil
}

// SetBlockType converts the cursor block between paragraph, heading, and
// list types. headingLevel is only consulted for headings and must be
// 1 through 3.
func (e *TextEditor) SetBlockType(t BlockType, headingLevel int) error {
	b, err := e.currentBlock()
	if err != nil {
		return err
	}
	switch t {
	case BlockParagraph:
		b.Type = BlockParagraph
		b.Level = 0
		b.Items = nil
	case BlockHeading:
		if headingLevel < 1 || headingLevel > 3 {
			return fmt.Errorf("heading level must be 1 through 3, got %d", headingLevel)
		}
		b.Type = BlockHeading
		b.Level = headingLevel
		b.Items = nil
	case BlockBulletList, BlockOrderedList:
		b.Type = t
		b.Level = 0
		if b.Items == nil {
			b.Items = [][]Inline{b.Inlines}
			b.Inlines = nil
		}
	default:
		return fmt.Errorf("cannot convert block to %s", t)
	}
	e.emitChange()
	return nil
}

func (e *TextEditor) toggleMark(apply func(*Inline)) error {
	if !e.textSelection {
		return fmt.Errorf("no text selected")
	}
	b, err := e.currentBlock()
	if err != nil {
		return err
	}
	for i := range b.Inlines {
		apply(&b.Inlines[i])
	}
	for r := range b.Items {
		for i := range b.Items[r] {
			apply(&b.Items[r][i])
		}
	}
	if b.Table != nil && e.cursor.InTable {
		cell := &b.Table.Rows[e.cursor.Row].Cells[e.cursor.Col]
		for i := range cell.Inlines {
			apply(&cell.Inlines[i])
		}
	}
	e.emitChange()
	return nil
}

func (e *TextEditor) ToggleBold() error {
	return e.toggleMark(func(in *Inline) { in.Bold = !in.Bold })
}

func (e *TextEditor) ToggleItalic() error {
	return e.toggleMark(func(in *Inline) { in.Italic = !in.Italic })
}

// Link sub-mode

// BeginLink enters the link sub-mode. It requires a text selection; the
// link is only applied once ConfirmLink provides a URL.
func (e *TextEditor) BeginLink() error {
	if !e.textSelection {
		return fmt.Errorf("no text selected")
	}
	e.linkMode = true
	return nil
}

func (e *TextEditor) ConfirmLink(url string) error {
	if !e.linkMode {
		return fmt.Errorf("not in link mode")
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("link URL must not be blank")
	}
	e.linkMode = false
	return e.toggleMark(func(in *Inline) { in.Link = url })
}

func (e *TextEditor) CancelLink() {
	e.linkMode = false
}

func (e *TextEditor) LinkMode() bool {
	return e.linkMode
}

// Images

// InsertImage decodes raw image bytes from a paste or drop, embeds them
// as a data URL, and inserts an image block after the cursor block. The
// display size defaults to the image's natural dimensions.
func (e *TextEditor) InsertImage(data []byte) error {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("unsupported image: %w", err)
	}

	src := fmt.Sprintf("data:image/%s;base64,%s", format, base64.StdEncoding.EncodeToString(data))
	block := Block{
		Type: BlockImage,
		Image: &ImageAttrs{
			Src:           src,
			Width:         cfg.Width,
			Height:        cfg.Height,
			NaturalWidth:  cfg.Width,
			NaturalHeight: cfg.Height,
		},
	}

	at := e.cursor.Block + 1
	if at > len(e.doc.Blocks) {
		at = len(e.doc.Blocks)
	}
	e.doc.Blocks = append(e.doc.Blocks[:at:at], append([]Block{block}, e.doc.Blocks[at:]...)...)
	e.cursor = cursor{Block: at}
	e.emitChange()
	return nil
}

// ResizeImage sets the display width of the image at the cursor,
// clamped to MinImageWidth, scaling the height to keep the natural
// aspect ratio.
func (e *TextEditor) ResizeImage(width int) error {
	b, err := e.currentBlock()
	if err != nil {
		return err
	}
	if b.Type != BlockImage || b.Image == nil {
		return fmt.Errorf("cursor is not on an image")
	}
	if width < MinImageWidth {
		width = MinImageWidth
	}
	b.Image.Width = width
	if b.Image.NaturalWidth > 0 {
		b.Image.Height = width * b.Image.NaturalHeight / b.Image.NaturalWidth
	}
	e.emitChange()
	return nil
}

// Tables

// InsertTable inserts a rows-by-cols grid after the cursor block, rows
// and cols both bounded 1 through 20. The first row is the header row.
// The cursor moves into the first cell.
func (e *TextEditor) InsertTable(rows, cols int) error {
	if rows < MinTableDim || rows > MaxTableDim {
		return fmt.Errorf("table rows must be %d through %d, got %d", MinTableDim, MaxTableDim, rows)
	}
	if cols < MinTableDim || cols > MaxTableDim {
		return fmt.Errorf("table columns must be %d through %d, got %d", MinTableDim, MaxTableDim, cols)
	}

	t := &Table{HeaderRow: true, Rows: make([]TableRow, rows)}
	for r := range t.Rows {
		t.Rows[r].Cells = make([]TableCell, cols)
		for c := range t.Rows[r].Cells {
			t.Rows[r].Cells[c] = TableCell{Inlines: []Inline{}}
		}
	}

	at := e.cursor.Block + 1
	if at > len(e.doc.Blocks) {
		at = len(e.doc.Blocks)
	}
	e.doc.Blocks = append(e.doc.Blocks[:at:at], append([]Block{{Type: BlockTable, Table: t}}, e.doc.Blocks[at:]...)...)
	e.cursor = cursor{Block: at, InTable: true}
	e.emitChange()
	return nil
}

// currentTable gates every table operation on the cursor being inside a
// table.
func (e *TextEditor) currentTable() (*Table, error) {
	if !e.cursor.InTable {
		return nil, fmt.Errorf("cursor is not inside a table")
	}
	b, err := e.currentBlock()
	if err != nil {
		return nil, err
	}
	if b.Type != BlockTable || b.Table == nil {
		return nil, fmt.Errorf("cursor is not inside a table")
	}
	return b.Table, nil
}

func (e *TextEditor) AddRowAfter() error {
	t, err := e.currentTable()
	if err != nil {
		return err
	}
	cols := t.Cols()
	row := TableRow{Cells: make([]TableCell, cols)}
	for c := range row.Cells {
		row.Cells[c] = TableCell{Inlines: []Inline{}}
	}
	at := e.cursor.Row + 1
	t.Rows = append(t.Rows[:at:at], append([]TableRow{row}, t.Rows[at:]...)...)
	e.cursor.Row = at
	e.cursor.Col = 0
	e.emitChange()
	return nil
}

func (e *TextEditor) AddColumnAfter() error {
	t, err := e.currentTable()
	if err != nil {
		return err
	}
	at := e.cursor.Col + 1
	for r := range t.Rows {
		cells := t.Rows[r].Cells
		if at > len(cells) {
			cells = append(cells, TableCell{Inlines: []Inline{}})
		} else {
			cells = append(cells[:at:at], append([]TableCell{{Inlines: []Inline{}}}, cells[at:]...)...)
		}
		t.Rows[r].Cells = cells
	}
	e.cursor.Col = at
	e.emitChange()
	return nil
}

// DeleteRow removes the cursor row. Removing the last row removes the
// whole table block.
func (e *TextEditor) DeleteRow() error {
	t, err := e.currentTable()
	if err != nil {
		return err
	}
	if len(t.Rows) == 1 {
		return e.removeTableBlock()
	}
	at := e.cursor.Row
	t.Rows = append(t.Rows[:at:at], t.Rows[at+1:]...)
	if e.cursor.Row >= len(t.Rows) {
		e.cursor.Row = len(t.Rows) - 1
	}
	e.cursor.Col = 0
	e.emitChange()
	return nil
}

// DeleteColumn removes the cursor column from every row. Removing the
// last column removes the whole table block.
func (e *TextEditor) DeleteColumn() error {
	t, err := e.currentTable()
	if err != nil {
		return err
	}
	if t.Cols() == 1 {
		return e.removeTableBlock()
	}
	at := e.cursor.Col
	for r := range t.Rows {
		cells := t.Rows[r].Cells
		if at < len(cells) {
			t.Rows[r].Cells = append(cells[:at:at], cells[at+1:]...)
		}
	}
	if len(t.Rows[e.cursor.Row].Cells) == 0 {
		e.cursor.Col = 0
	} else if e.cursor.Col >= len(t.Rows[e.cursor.Row].Cells) {
		e.cursor.Col = len(t.Rows[e.cursor.Row].Cells) - 1
	}
	e.emitChange()
	return nil
}

func (e *TextEditor) removeTableBlock() error {
	at := e.cursor.Block
	e.doc.Blocks = append(e.doc.Blocks[:at:at], e.doc.Blocks[at+1:]...)
	if at >= len(e.doc.Blocks) {
		at = len(e.doc.Blocks) - 1
	}
	if at < 0 {
		at = 0
	}
	e.cursor = cursor{Block: at}
	e.emitChange()
	return nil
}

// MergeRight merges the cursor cell with its right neighbor. The
// neighbor's content is appended and its span absorbed.
func (e *TextEditor) MergeRight() error {
	t, err := e.currentTable()
	if err != nil {
		return err
	}
	cells := t.Rows[e.cursor.Row].Cells
	if e.cursor.Col+1 >= len(cells) {
		return fmt.Errorf("no cell to the right to merge with")
	}
	left := &cells[e.cursor.Col]
	right := cells[e.cursor.Col+1]
	left.Inlines = append(left.Inlines, right.Inlines...)
	left.ColSpan = cellSpan(*left) + cellSpan(right)
	t.Rows[e.cursor.Row].Cells = append(cells[:e.cursor.Col+1:e.cursor.Col+1], cells[e.cursor.Col+2:]...)
	e.emitChange()
	return nil
}

// SplitCell splits a previously merged cell back into span-one cells.
// The content stays in the leftmost cell.
func (e *TextEditor) SplitCell() error {
	t, err := e.currentTable()
	if err != nil {
		return err
	}
	cells := t.Rows[e.cursor.Row].Cells
	cell := cells[e.cursor.Col]
	span := cellSpan(cell)
	if span == 1 {
		return fmt.Errorf("cell is not merged")
	}
	cells[e.cursor.Col].ColSpan = 0
	extras := make([]TableCell, span-1)
	for i := range extras {
		extras[i] = TableCell{Inlines: []Inline{}}
	}
	at := e.cursor.Col + 1
	t.Rows[e.cursor.Row].Cells = append(cells[:at:at], append(extras, cells[at:]...)...)
	e.emitChange()
	return nil
}

func (e *TextEditor) ToggleHeaderRow() error {
	t, err := e.currentTable()
	if err != nil {
		return err
	}
	t.HeaderRow = !t.HeaderRow
	e.emitChange()
	return nil
}
