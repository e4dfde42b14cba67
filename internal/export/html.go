package export

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"draftline/internal/layout"
)

var documentTemplate = template.Must(template.New("document").Funcs(template.FuncMap{
	"lower": strings.ToLower,
}).Parse(documentHTML))

type templateData struct {
	Title     string
	Status    string
	VersionID string
	Pages     []templatePage
	Fallback  template.HTML
}

type templatePage struct {
	PageNo int
	Blocks []templateBlock
}

type templateBlock struct {
	Type    string
	Style   template.CSS
	Content template.HTML
}

// RenderHTML renders a standalone HTML document. Drafts without a layout use
// their fallback HTML as the body.
func RenderHTML(doc Document) (string, error) {
	data := templateData{
		Title:     doc.Title,
		Status:    string(doc.Status),
		VersionID: doc.VersionID,
	}
	if len(doc.Pages) == 0 {
		// The fallback markup is produced server-side from the template
		// and is trusted.
		data.Fallback = template.HTML(doc.FallbackHTML)
	}
	for _, page := range doc.Pages {
		out := templatePage{PageNo: page.PageNo}
		for _, block := range page.Blocks {
			value, ok := doc.Fields[block.Key]
			hasOverlay := ok && block.Editable && !value.IsNull()
			rendered := layout.Render(block, value.Text(), hasOverlay)
			out.Blocks = append(out.Blocks, templateBlock{
				Type:    string(block.Type),
				Style:   blockStyle(block.Meta),
				Content: blockHTML(rendered),
			})
		}
		data.Pages = append(data.Pages, out)
	}

	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

func blockHTML(r layout.RenderedBlock) template.HTML {
	var b strings.Builder
	for _, segment := range r.Segments {
		if segment.Kind == layout.SegmentBlank {
			fmt.Fprintf(&b, `<span class="blank" style="min-width:%dch"></span>`, layout.BlankWidth)
			continue
		}
		b.WriteString(template.HTMLEscapeString(segment.Text))
	}
	if r.HasOverlay {
		fmt.Fprintf(&b, ` <span class="field" data-key="%s">%s</span>`,
			template.HTMLEscapeString(r.Block.Key), template.HTMLEscapeString(r.Overlay))
	}
	return template.HTML(b.String())
}

func blockStyle(meta layout.Meta) template.CSS {
	rules := make([]string, 0, 6)
	switch meta.Align {
	case "left", "right", "center", "justify":
		rules = append(rules, "text-align:"+meta.Align)
	}
	if meta.Bold {
		rules = append(rules, "font-weight:bold")
	}
	if meta.Italic {
		rules = append(rules, "font-style:italic")
	}
	if meta.Underline {
		rules = append(rules, "text-decoration:underline")
	}
	if meta.Indent > 0 {
		rules = append(rules, fmt.Sprintf("margin-left:%dem", meta.Indent))
	}
	if meta.SpaceBefore > 0 {
		rules = append(rules, fmt.Sprintf("margin-top:%dpt", meta.SpaceBefore))
	}
	if meta.SpaceAfter > 0 {
		rules = append(rules, fmt.Sprintf("margin-bottom:%dpt", meta.SpaceAfter))
	}
	return template.CSS(strings.Join(rules, ";"))
}

const documentHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    .page { page-break-after: always; padding-bottom: 2rem; }
    .page:last-child { page-break-after: auto; }
    .blank { display: inline-block; border-bottom: 1px solid #000; }
    .field { font-weight: 600; }
    .heading { font-size: 1.3em; font-weight: bold; }
    .signature { margin-top: 3rem; }
    .meta { color: #666; font-size: 0.8em; }
  </style>
</head>
<body>
  <div class="meta">{{.Status}}{{if .VersionID}} | version {{.VersionID}}{{end}}</div>
  {{if .Pages}}{{range .Pages}}
  <section class="page" data-page="{{.PageNo}}">
    {{range .Blocks}}<p class="{{lower .Type}}" style="{{.Style}}">{{.Content}}</p>
    {{end}}
  </section>{{end}}{{else}}
  <div class="fallback">{{.Fallback}}</div>{{end}}
</body>
</html>`
