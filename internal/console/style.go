// Package console is the interactive front end: a menu loop, prompts and
// colored status lines.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/stationflow/internal/diagram"
	"github.com/rendis/stationflow/pkg/schema"
)

// Palette.
var (
	ColorWater   = lipgloss.Color(diagram.WaterColor)
	ColorSuccess = lipgloss.Color("#2ca02c")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = lipgloss.Color("#7f7f7f")
)

// Styles are the shared lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorWater),
	Header:  lipgloss.NewStyle().Bold(true).Underline(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorMuted),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError).Bold(true),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWater).
		Padding(0, 1),
}

// Printer writes status lines.
type Printer struct {
	w io.Writer
}

// NewPrinter returns a Printer on w.
func NewPrinter(w io.Writer) Printer { return Printer{w: w} }

func (p Printer) line(style lipgloss.Style, icon, format string, args ...any) {
	fmt.Fprintln(p.w, style.Render(icon+" "+fmt.Sprintf(format, args...)))
}

func (p Printer) Success(format string, args ...any) { p.line(Styles.Success, "✅", format, args...) }
func (p Printer) Warn(format string, args ...any) { p.line(Styles.Warning, "⚠️", format, args...) }
func (p Printer) Error(format string, args ...any) { p.line(Styles.Error, "❌", format, args...) }
func (p Printer) Info(format string, args ...any) { p.line(Styles.Muted, "ℹ", format, args...) }

// Title prints a boxed heading.
func (p Printer) Title(text string) {
	fmt.Fprintln(p.w, Styles.Box.Render(Styles.Title.Render(text)))
}

// Text prints raw text.
func (p Printer) Text(s string) {
	fmt.Fprint(p.w, s)
	if !strings.HasSuffix(s, "\n") {
		fmt.Fprintln(p.w)
	}
}

// StateBadge renders a state label on its diagram color.
func StateBadge(s schema.OperatingState) string {
	return lipgloss.NewStyle().
		Background(lipgloss.Color(diagram.StateColor(s))).
		Foreground(lipgloss.Color("#000000")).
		Padding(0, 1).
		Render(s.Label())
}

// StationTable renders stations as aligned columns.
func StationTable(stations []schema.Station) string {
	header := []string{"#", "Nom", "Localisation", "Débit (m³/j)", "Procédé", "Destination", "Créée le"}
	rows := make([][]string, 0, len(stations))
	for i, st := range stations {
		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			st.Name,
			st.Location,
			fmt.Sprintf("%.0f", st.NominalFlow),
			st.ProcessType,
			string(st.Destination),
			st.CreatedAt,
		})
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, c := range r {
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}

	var b strings.Builder
	render := func(cells []string, style lipgloss.Style) {
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = style.Width(widths[i]).Render(c)
		}
		b.WriteString(strings.TrimRight(strings.Join(parts, "  "), " "))
		b.WriteByte('\n')
	}
	render(header, Styles.Header)
	for _, r := range rows {
		render(r, lipgloss.NewStyle())
	}
	return b.String()
}
