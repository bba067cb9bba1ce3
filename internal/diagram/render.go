package diagram

import (
	"context"
	"fmt"
	"strings"
)

// Format is an output format of a rendered diagram.
type Format string

const (
	FormatASCII   Format = "ascii"
	FormatMermaid Format = "mermaid"
	FormatPNG     Format = "png"
	FormatSVG     Format = "svg"
	FormatPDF     Format = "pdf"
)

// Formats lists every supported format.
var Formats = []Format{FormatASCII, FormatMermaid, FormatPNG, FormatSVG, FormatPDF}

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	switch f {
	case "txt", "":
		return FormatASCII, nil
	case "mmd":
		return FormatMermaid, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown diagram format %q", s)
}

// Ext is the file extension used when saving f.
func (f Format) Ext() string {
	switch f {
	case FormatASCII:
		return "txt"
	case FormatMermaid:
		return "mmd"
	}
	return string(f)
}

// Render dispatches to the renderer of f.
func Render(ctx context.Context, l *Layout, f Format) ([]byte, error) {
	switch f {
	case FormatASCII:
		return []byte(RenderASCII(l)), nil
	case FormatMermaid:
		return []byte(RenderMermaid(l)), nil
	case FormatPNG:
		return RenderImage(ctx, l)
	case FormatSVG:
		return RenderSVG(ctx, l)
	case FormatPDF:
		return RenderPDF(l)
	}
	return nil, fmt.Errorf("unknown diagram format %q", f)
}
