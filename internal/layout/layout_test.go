package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupBlocksByPage_Empty(t *testing.T) {
	pages := GroupBlocksByPage([]Block{})
	require.NotNil(t, pages)
	assert.Empty(t, pages)

	assert.Empty(t, GroupBlocksByPage(nil))
}

func TestGroupBlocksByPage_DefaultsToPageOne(t *testing.T) {
	pages := GroupBlocksByPage([]Block{
		{Key: "title", Text: "AGREEMENT"},
		{Key: "intro", Text: "This agreement", PageNo: 1},
	})

	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].PageNo)
	assert.Equal(t, []string{"title", "intro"}, keys(pages[0].Blocks))
}

func TestGroupBlocksByPage_AscendingAndStable(t *testing.T) {
	input := []Block{
		{Key: "c", PageNo: 3},
		{Key: "a", PageNo: 1},
		{Key: "d", PageNo: 3},
		{Key: "b", PageNo: 2},
		{Key: "e"},
	}

	first := GroupBlocksByPage(input)
	second := GroupBlocksByPage(input)
	assert.Equal(t, first, second)

	require.Len(t, first, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{first[0].PageNo, first[1].PageNo, first[2].PageNo})
	assert.Equal(t, []string{"a", "e"}, keys(first[0].Blocks))
	assert.Equal(t, []string{"c", "d"}, keys(first[2].Blocks))
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 0, PageCount(nil))
	assert.Equal(t, 1, PageCount([]Block{{Key: "a"}}))
	assert.Equal(t, 3, PageCount([]Block{{Key: "a", PageNo: 1}, {Key: "b", PageNo: 3}}))
}

func TestFindBlockByKey(t *testing.T) {
	blocks := []Block{{Key: "a", Text: "first"}, {Key: "b", Text: "second"}}

	block, ok := FindBlockByKey(blocks, "b")
	require.True(t, ok)
	assert.Equal(t, "second", block.Text)

	_, ok = FindBlockByKey(blocks, "missing")
	assert.False(t, ok)
}

func TestFlattenRoundTripsGrouping(t *testing.T) {
	blocks := []Block{{Key: "a", PageNo: 1}, {Key: "b", PageNo: 2}, {Key: "c", PageNo: 2}}
	assert.Equal(t, blocks, Flatten(GroupBlocksByPage(blocks)))
}

func TestClonePagesDoesNotShareBlocks(t *testing.T) {
	pages := []Page{{PageNo: 1, Blocks: []Block{{Key: "a", Text: "x"}}}}
	cloned := ClonePages(pages)
	cloned[0].Blocks[0].Text = "changed"
	assert.Equal(t, "x", pages[0].Blocks[0].Text)
	assert.Nil(t, ClonePages(nil))
}

func TestSegments(t *testing.T) {
	segments := Segments("Name: _____ Date: __ and ___")
	require.Len(t, segments, 4)
	assert.Equal(t, Segment{Kind: SegmentText, Text: "Name: "}, segments[0])
	assert.Equal(t, SegmentBlank, segments[1].Kind)
	assert.Equal(t, Segment{Kind: SegmentText, Text: " Date: __ and "}, segments[2])
	assert.Equal(t, SegmentBlank, segments[3].Kind)

	assert.Nil(t, Segments(""))
}

func TestRenderKeepsStaticTextNextToOverlay(t *testing.T) {
	block := Block{Key: "partyName", Text: "Party: ________"}

	rendered := Render(block, "Acme Corp", true)
	text := rendered.PlainText()
	assert.Equal(t, "Party: "+strings.Repeat("_", BlankWidth)+" [Acme Corp]", text)

	bare := Render(block, "", false).PlainText()
	assert.Equal(t, "Party: "+strings.Repeat("_", BlankWidth), bare)
}

func keys(blocks []Block) []string {
	out := make([]string, 0, len(blocks))
	for _, block := range blocks {
		out = append(out, block.Key)
	}
	return out
}
