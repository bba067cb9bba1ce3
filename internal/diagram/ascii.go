package diagram

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/stationflow/pkg/schema"
)

// stateTag returns a short ASCII indicator for a state.
func stateTag(s schema.OperatingState) string {
	switch s {
	case schema.StateInService:
		return "[OK]"
	case schema.StateFailed:
		return "[PANNE]"
	case schema.StateDegraded:
		return "[DYSF]"
	case schema.StateMaintenance:
		return "[MAINT]"
	case schema.StateDecommissioned:
		return "[HS]"
	case schema.StateNotBuilt:
		return "[--]"
	case schema.StateStopped:
		return "[ARRET]"
	case schema.StateOverloaded:
		return "[SAT]"
	case schema.StateNew:
		return "[NEUF]"
	default:
		return "[?]"
	}
}

// RenderASCII renders a Layout as text: one row of boxes per filière, water
// connectors between rows, then sludge routes and the legend.
func RenderASCII(l *Layout) string {
	var b strings.Builder

	if l.Title != "" {
		for _, line := range strings.Split(l.Title, "\n") {
			b.WriteString(fmt.Sprintf("=== %s ===\n", line))
		}
		b.WriteByte('\n')
	}

	rows := l.Rows()
	if len(rows) == 0 {
		b.WriteString("(aucun ouvrage)\n")
		return b.String()
	}

	b.WriteString("  Eaux usées\n       │\n       ▼\n")
	for i, row := range rows {
		b.WriteString(fmt.Sprintf("[%s]\n", FiliereTitle(row.Filiere)))
		boxes := make([]asciiBox, 0, len(row.Blocks))
		for _, blk := range row.Blocks {
			boxes = append(boxes, makeBox(blk))
		}
		sep := "  "
		if !strings.Contains(string(row.Filiere), "boue") {
			sep = " → "
		}
		renderBoxRow(&b, boxes, sep)

		if i < len(rows)-1 && isWater(row.Filiere) && isWater(rows[i+1].Filiere) {
			b.WriteString("       │\n       ▼\n")
		}
	}

	for _, lbl := range l.Labels {
		if lbl.Kind == LabelOutbound {
			b.WriteString(fmt.Sprintf("\n  → %s", lbl.Text))
		}
		if lbl.Kind == LabelDestination {
			b.WriteString(fmt.Sprintf(" → %s %s", lbl.Icon, lbl.Text))
		}
	}
	b.WriteByte('\n')

	var sludge []string
	for _, a := range l.Arrows {
		if a.Kind == ArrowSludge || a.Kind == ArrowSludgeLine {
			sludge = append(sludge, fmt.Sprintf("    %s ┄┄▶ %s", DisplayName(a.From), DisplayName(a.To)))
		}
	}
	if len(sludge) > 0 {
		b.WriteString("\n--- Filière boues ---\n")
		b.WriteString(strings.Join(sludge, "\n"))
		b.WriteByte('\n')
	}

	b.WriteString("\n--- Légende ---\n")
	for _, s := range schema.OperatingStates {
		b.WriteString(fmt.Sprintf("  %-8s %s\n", stateTag(s), s.Label()))
	}
	return b.String()
}

func isWater(f Filiere) bool {
	for _, w := range waterLine {
		if w == f {
			return true
		}
	}
	return false
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

// makeBox draws a block with its name and state tag.
func makeBox(blk Block) asciiBox {
	content := []string{DisplayName(blk.Name), stateTag(blk.State)}

	maxLen := 0
	for _, line := range content {
		maxLen = max(maxLen, lipgloss.Width(line))
	}
	width := maxLen + 4 // 2 border + 2 padding

	lines := make([]string, 0, len(content)+2)
	lines = append(lines, "┌"+strings.Repeat("─", width-2)+"┐")
	for _, c := range content {
		lines = append(lines, "│ "+c+strings.Repeat(" ", maxLen-lipgloss.Width(c))+" │")
	}
	lines = append(lines, "└"+strings.Repeat("─", width-2)+"┘")
	return asciiBox{lines: lines, width: width}
}

// renderBoxRow writes boxes side by side, sep on the middle line between them.
func renderBoxRow(b *strings.Builder, boxes []asciiBox, sep string) {
	if len(boxes) == 0 {
		return
	}
	height := 0
	for _, box := range boxes {
		height = max(height, len(box.lines))
	}
	blank := strings.Repeat(" ", lipgloss.Width(sep))
	for row := 0; row < height; row++ {
		for i, box := range boxes {
			if i > 0 {
				if row == height/2 {
					b.WriteString(sep)
				} else {
					b.WriteString(blank)
				}
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}
