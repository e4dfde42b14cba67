// Package layout models the immutable, server-generated structure of a draft:
// blocks of static text grouped into pages. Nothing in this package mutates a
// block; field values live in a separate overlay (see package draft).
package layout

import "sort"

type BlockType string

const (
	BlockParagraph BlockType = "paragraph"
	BlockHeading   BlockType = "heading"
	BlockSignature BlockType = "signature"
	BlockLabel     BlockType = "label"
	BlockField     BlockType = "field"
)

// Meta is purely presentational.
type Meta struct {
	Align       string `json:"align,omitempty"`
	Bold        bool   `json:"bold,omitempty"`
	Italic      bool   `json:"italic,omitempty"`
	Underline   bool   `json:"underline,omitempty"`
	Indent      int    `json:"indent,omitempty"`
	SpaceBefore int    `json:"spaceBefore,omitempty"`
	SpaceAfter  int    `json:"spaceAfter,omitempty"`
}

// Block is one unit of document structure. PageNo 0 means the server did not
// assign a page; such blocks belong to page 1.
type Block struct {
	Key      string    `json:"key"`
	Text     string    `json:"text"`
	Type     BlockType `json:"type"`
	PageNo   int       `json:"pageNo,omitempty"`
	Editable bool      `json:"editable,omitempty"`
	Meta     Meta      `json:"meta,omitempty"`
}

type Page struct {
	PageNo int     `json:"pageNo"`
	Blocks []Block `json:"blocks"`
}

func (b Block) page() int {
	if b.PageNo <= 0 {
		return 1
	}
	return b.PageNo
}

// GroupBlocksByPage buckets blocks by page number. Pages come back in
// ascending order and blocks keep their input order within a page, so the
// same input always yields the same output.
func GroupBlocksByPage(blocks []Block) []Page {
	if len(blocks) == 0 {
		return []Page{}
	}
	byPage := make(map[int][]Block)
	order := make([]int, 0)
	for _, block := range blocks {
		pageNo := block.page()
		if _, ok := byPage[pageNo]; !ok {
			order = append(order, pageNo)
		}
		byPage[pageNo] = append(byPage[pageNo], block)
	}
	sort.Ints(order)

	pages := make([]Page, 0, len(order))
	for _, pageNo := range order {
		pages = append(pages, Page{PageNo: pageNo, Blocks: byPage[pageNo]})
	}
	return pages
}

// PageCount returns the highest page number among blocks, or 0 when there
// are none.
func PageCount(blocks []Block) int {
	count := 0
	for _, block := range blocks {
		if pageNo := block.page(); pageNo > count {
			count = pageNo
		}
	}
	return count
}

// FindBlockByKey scans blocks in order. It is O(n) per call and callers that
// look up on every keystroke pay that each time; at draft sizes (a few
// hundred blocks) no index is kept.
func FindBlockByKey(blocks []Block, key string) (Block, bool) {
	for _, block := range blocks {
		if block.Key == key {
			return block, true
		}
	}
	return Block{}, false
}

// Flatten returns the blocks of all pages in page order.
func Flatten(pages []Page) []Block {
	total := 0
	for _, page := range pages {
		total += len(page.Blocks)
	}
	blocks := make([]Block, 0, total)
	for _, page := range pages {
		blocks = append(blocks, page.Blocks...)
	}
	return blocks
}

// ClonePages deep-copies pages so callers can hand them out without sharing
// backing arrays.
func ClonePages(pages []Page) []Page {
	if pages == nil {
		return nil
	}
	cloned := make([]Page, len(pages))
	for i, page := range pages {
		cloned[i] = Page{PageNo: page.PageNo, Blocks: append([]Block(nil), page.Blocks...)}
	}
	return cloned
}
