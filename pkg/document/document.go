// Package document models the rich-text content of a note as a block
// structure with a stable serialized form.
//
// The stores treat note content as an opaque string; only this package
// knows its shape. Serialization is plain JSON with fixed field order, so
// two structurally equal documents always serialize identically and a
// string comparison doubles as a structural comparison.
package document

import (
	"encoding/json"
	"fmt"
)

// BlockType enumerates the top-level node kinds.
type BlockType string

const (
	BlockParagraph   BlockType = "paragraph"
	BlockHeading     BlockType = "heading"
	BlockBulletList  BlockType = "bullet_list"
	BlockOrderedList BlockType = "ordered_list"
	BlockImage       BlockType = "image"
	BlockTable       BlockType = "table"
)

// Inline is a text run with optional marks.
type Inline struct {
	Text   string `json:"text"`
	Bold   bool   `json:"bold,omitempty"`
	Italic bool   `json:"italic,omitempty"`
	Link   string `json:"link,omitempty"`
}

// ImageAttrs describes an embedded image. Src is a data URL, so the
// document is self-contained. Width and Height are the display size;
// the natural dimensions are kept so resizing can preserve the aspect
// ratio.
type ImageAttrs struct {
	Src           string `json:"src"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	NaturalWidth  int    `json:"natural_width"`
	NaturalHeight int    `json:"natural_height"`
}

// TableCell is one grid cell. ColSpan zero means one.
type TableCell struct {
	Inlines []Inline `json:"inlines"`
	ColSpan int      `json:"col_span,omitempty"`
}

// TableRow is one grid row.
type TableRow struct {
	Cells []TableCell `json:"cells"`
}

// Table is a structured grid node. When HeaderRow is set the first row
// renders as the header.
type Table struct {
	HeaderRow bool       `json:"header_row"`
	Rows      []TableRow `json:"rows"`
}

// Cols returns the column count of the widest row, counting spans.
func (t *Table) Cols() int {
	cols := 0
	for _, row := range t.Rows {
		n := 0
		for _, c := range row.Cells {
			n += cellSpan(c)
		}
		if n > cols {
			cols = n
		}
	}
	return cols
}

func cellSpan(c TableCell) int {
	if c.ColSpan > 1 {
		return c.ColSpan
	}
	return 1
}

// Block is one top-level node. Exactly one of the payload fields is
// populated depending on Type.
type Block struct {
	Type    BlockType   `json:"type"`
	Level   int         `json:"level,omitempty"`
	Inlines []Inline    `json:"inlines,omitempty"`
	Items   [][]Inline  `json:"items,omitempty"`
	Image   *ImageAttrs `json:"image,omitempty"`
	Table   *Table      `json:"table,omitempty"`
}

// Document is an ordered sequence of blocks.
type Document struct {
	Blocks []Block `json:"blocks"`
}

// Parse decodes a serialized document.
func Parse(serialized string) (*Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(serialized), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &doc, nil
}

// Serialize encodes the document to its canonical string form.
func (d *Document) Serialize() string {
	data, err := json.Marshal(d)
	if err != nil {
		// Document contains only marshalable types; this cannot fail.
		panic(err)
	}
	return string(data)
}

// placeholderText is the text every new note starts with.
const placeholderText = "Escribe aquí..."

// Placeholder returns the document a new note starts with: a single
// paragraph of placeholder text.
func Placeholder() *Document {
	return &Document{
		Blocks: []Block{{
			Type:    BlockParagraph,
			Inlines: []Inline{{Text: placeholderText}},
		}},
	}
}

// PlaceholderContent returns the serialized placeholder document.
func PlaceholderContent() string {
	return Placeholder().Serialize()
}
