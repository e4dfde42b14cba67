package export

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draftline/internal/draft"
	"draftline/internal/layout"
)

func sampleDocument() Document {
	return Document{
		Title:     "Services Agreement",
		Status:    draft.StatusDraft,
		VersionID: "abc123",
		Pages: []layout.Page{
			{PageNo: 1, Blocks: []layout.Block{
				{Key: "title", Text: "SERVICES AGREEMENT", Type: layout.BlockHeading, Meta: layout.Meta{Align: "center", Bold: true}},
				{Key: "partyName", Text: "Made with ______ (the Client).", Type: layout.BlockField, Editable: true},
				{Key: "fee", Text: "Fee: ____", Type: layout.BlockField, Editable: true},
			}},
			{PageNo: 2, Blocks: []layout.Block{
				{Key: "sign", Text: "Signed: ________", Type: layout.BlockSignature},
			}},
		},
		Fields: draft.Fields{
			"partyName": draft.String("<Acme & Co>"),
			"fee":       draft.Null(),
		},
	}
}

func TestRenderHTMLOverlaysFieldsWithoutReplacingText(t *testing.T) {
	html, err := RenderHTML(sampleDocument())
	require.NoError(t, err)

	for _, want := range []string{
		"<title>Services Agreement</title>",
		`data-page="1"`,
		`data-page="2"`,
		"Made with ",
		`<span class="blank" style="min-width:24ch"></span>`,
		` (the Client). <span class="field" data-key="partyName">&lt;Acme &amp; Co&gt;</span>`,
		"text-align:center;font-weight:bold",
		"version abc123",
	} {
		assert.Contains(t, html, want)
	}
	assert.NotContains(t, html, `data-key="fee"`, "null fields must not render an overlay")
	assert.NotContains(t, html, "______", "underscore runs should render as blank spans")
}

func TestRenderHTMLFallback(t *testing.T) {
	html, err := RenderHTML(Document{Title: "Legacy", FallbackHTML: "<h1>Legacy body</h1>"})
	require.NoError(t, err)
	assert.Contains(t, html, `<div class="fallback"><h1>Legacy body</h1></div>`)
}

func TestServiceExportHTML(t *testing.T) {
	result, err := NewService().Export(context.Background(), sampleDocument(), FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, "Services-Agreement.html", result.Filename)
	assert.True(t, strings.HasPrefix(result.MimeType, "text/html"), result.MimeType)
}

func TestServiceExportPDFUsesPrinter(t *testing.T) {
	svc := &Service{pdf: func(_ context.Context, html, title string) (*Result, error) {
		assert.Contains(t, html, "SERVICES AGREEMENT")
		return &Result{Data: []byte("%PDF"), Filename: sanitizeFilename(title) + ".pdf", MimeType: "application/pdf"}, nil
	}}
	result, err := svc.Export(context.Background(), sampleDocument(), FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(result.Data))
}

func TestServiceExportUnknownFormat(t *testing.T) {
	_, err := NewService().Export(context.Background(), sampleDocument(), Format("docx"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatHTML, f)

	f, err = ParseFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	_, err = ParseFormat("rtf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestPercentEncodeForDataURL(t *testing.T) {
	assert.Equal(t, "a%20b%3C%C3%A9", percentEncodeForDataURL("a b<é"))
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Services Agreement": "Services-Agreement",
		"NDA / v2!":          "NDA--v2",
		"":                   "draft",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
	assert.Len(t, sanitizeFilename(strings.Repeat("x", 60)), 50)
}

func TestExportPDFWithoutChromium(t *testing.T) {
	if chromiumAvailable() {
		t.Skip("chromium installed")
	}
	_, err := exportPDF(context.Background(), "<p>x</p>", "x")
	assert.ErrorIs(t, err, ErrPDFDependencyMissing)
}
