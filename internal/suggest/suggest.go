// Package suggest produces proposed values for draft fields.
package suggest

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"draftline/internal/draft"
)

// Excerpt is the readable head of one evidence file.
type Excerpt struct {
	Name string
	Text string
}

type Request struct {
	DraftTitle   string
	TargetBlock  string
	Label        string
	BlockText    string
	CurrentValue string
	Instruction  string
	// Fields is the rest of the draft, sent only for state-aware requests.
	Fields   map[string]string
	Evidence []Excerpt
	Size     draft.ResponseSize
}

type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

func lengthHint(size draft.ResponseSize) string {
	switch size {
	case draft.ResponseShort:
		return "Answer with a short phrase only."
	case draft.ResponseLong:
		return "Answer with a short paragraph."
	default:
		return "Answer with one sentence at most."
	}
}

// BuildPrompt renders the request as a single instruction for a text model.
func BuildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are filling in the field %q of the document %q.\n", req.label(), req.DraftTitle)
	if req.BlockText != "" {
		fmt.Fprintf(&b, "The field appears in this text: %s\n", req.BlockText)
	}
	if req.CurrentValue != "" {
		fmt.Fprintf(&b, "Its current value is: %s\n", req.CurrentValue)
	}
	if len(req.Fields) > 0 {
		b.WriteString("Other fields already filled in:\n")
		keys := make([]string, 0, len(req.Fields))
		for key := range req.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", key, req.Fields[key])
		}
	}
	for _, excerpt := range req.Evidence {
		fmt.Fprintf(&b, "Supporting file %s:\n%s\n", excerpt.Name, excerpt.Text)
	}
	if req.Instruction != "" {
		fmt.Fprintf(&b, "Instruction: %s\n", req.Instruction)
	}
	b.WriteString("Reply with the value only, no quotes or explanation. ")
	b.WriteString(lengthHint(req.Size))
	return b.String()
}

func (r Request) label() string {
	if r.Label != "" {
		return r.Label
	}
	return r.TargetBlock
}

// Template is the offline generator used when no model is configured. It
// looks for "label: value" lines in the evidence and otherwise echoes a
// placeholder.
type Template struct{}

func (Template) Generate(_ context.Context, req Request) (string, error) {
	if quoted := quotedPhrase(req.Instruction); quoted != "" {
		return quoted, nil
	}
	needles := []string{strings.ToLower(req.TargetBlock)}
	if req.Label != "" {
		needles = append(needles, strings.ToLower(req.Label))
	}
	for _, excerpt := range req.Evidence {
		for _, line := range strings.Split(excerpt.Text, "\n") {
			name, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			name = strings.ToLower(strings.TrimSpace(name))
			for _, needle := range needles {
				if name == needle && strings.TrimSpace(value) != "" {
					return strings.TrimSpace(value), nil
				}
			}
		}
	}
	if req.CurrentValue != "" {
		return req.CurrentValue, nil
	}
	return fmt.Sprintf("[%s]", req.label()), nil
}

func quotedPhrase(text string) string {
	start := strings.IndexByte(text, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(text[start+1:], '"')
	if end <= 0 {
		return ""
	}
	return text[start+1 : start+1+end]
}
