package layout

import (
	"regexp"
	"strings"
)

// BlankWidth is the rendered width, in character cells, of a blank-line
// placeholder regardless of how many underscores the source text used.
const BlankWidth = 24

var blankRun = regexp.MustCompile(`_{3,}`)

type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentBlank
)

type Segment struct {
	Kind SegmentKind
	Text string
}

// Segments splits static layout text into literal runs and blank-line
// placeholders (three or more underscores).
func Segments(text string) []Segment {
	if text == "" {
		return nil
	}
	matches := blankRun.FindAllStringIndex(text, -1)
	segments := make([]Segment, 0, 2*len(matches)+1)
	cursor := 0
	for _, match := range matches {
		if match[0] > cursor {
			segments = append(segments, Segment{Kind: SegmentText, Text: text[cursor:match[0]]})
		}
		segments = append(segments, Segment{Kind: SegmentBlank})
		cursor = match[1]
	}
	if cursor < len(text) {
		segments = append(segments, Segment{Kind: SegmentText, Text: text[cursor:]})
	}
	return segments
}

// RenderedBlock is a block ready for display: its static segments plus the
// overlay value shown next to them.
type RenderedBlock struct {
	Block      Block
	Segments   []Segment
	Overlay    string
	HasOverlay bool
}

// Render pairs a block with its overlay value. The overlay never replaces the
// static text.
func Render(block Block, overlay string, hasOverlay bool) RenderedBlock {
	return RenderedBlock{
		Block:      block,
		Segments:   Segments(block.Text),
		Overlay:    overlay,
		HasOverlay: hasOverlay,
	}
}

// PlainText renders the block for a terminal: placeholders become a fixed
// underline and the overlay follows in brackets.
func (r RenderedBlock) PlainText() string {
	var b strings.Builder
	for _, segment := range r.Segments {
		if segment.Kind == SegmentBlank {
			b.WriteString(strings.Repeat("_", BlankWidth))
			continue
		}
		b.WriteString(segment.Text)
	}
	if r.HasOverlay {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("[")
		b.WriteString(r.Overlay)
		b.WriteString("]")
	}
	return b.String()
}
