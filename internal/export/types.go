// Package export renders a draft, layout plus field overlay, to HTML or PDF.
package export

import (
	"errors"

	"draftline/internal/draft"
	"draftline/internal/layout"
)

// Format represents the export output format
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", ErrUnsupportedFormat
}

// Document is everything the renderer needs from a draft version.
type Document struct {
	Title        string
	Status       draft.Status
	VersionID    string
	Pages        []layout.Page
	Fields       draft.Fields
	FallbackHTML string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
