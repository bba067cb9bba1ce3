package diagram

import (
	"fmt"
	"strings"

	"github.com/rendis/stationflow/pkg/schema"
)

// RenderMermaid renders a Layout as a Mermaid flowchart with one subgraph per
// filière and one class per operating state.
func RenderMermaid(l *Layout) string {
	var b strings.Builder

	b.WriteString("graph TD\n")
	for _, line := range strings.Split(l.Title, "\n") {
		if line != "" {
			b.WriteString(fmt.Sprintf("    %%%% %s\n", line))
		}
	}

	ids := make(map[string]string, len(l.Blocks))
	for i, blk := range l.Blocks {
		if _, ok := ids[blk.Name]; !ok {
			ids[blk.Name] = fmt.Sprintf("n%d", i+1)
		}
	}

	for _, row := range l.Rows() {
		b.WriteString(fmt.Sprintf("    subgraph %s[\"%s\"]\n", mermaidSafeID(string(row.Filiere)), FiliereTitle(row.Filiere)))
		for _, blk := range row.Blocks {
			b.WriteString(fmt.Sprintf("        %s[%q]\n", ids[blk.Name], DisplayName(blk.Name)))
		}
		b.WriteString("    end\n")
	}

	if len(l.Blocks) > 0 {
		b.WriteString("    in_([\"Eaux usées\"])\n")
		b.WriteString("    out_([\"Eaux épurées\"])\n")
	}
	for _, a := range l.Arrows {
		switch a.Kind {
		case ArrowWater:
			b.WriteString(fmt.Sprintf("    %s --> %s\n", ids[a.From], ids[a.To]))
		case ArrowSludge:
			b.WriteString(fmt.Sprintf("    %s -.->|%s| %s\n", ids[a.From], sludgeLabel(l, a), ids[a.To]))
		case ArrowSludgeLine:
			b.WriteString(fmt.Sprintf("    %s -.-> %s\n", ids[a.From], ids[a.To]))
		case ArrowInbound:
			b.WriteString(fmt.Sprintf("    in_ --> %s\n", ids[a.To]))
		case ArrowOutbound:
			b.WriteString(fmt.Sprintf("    %s --> out_\n", ids[a.From]))
		}
	}
	for _, lbl := range l.Labels {
		if lbl.Kind == LabelDestination {
			b.WriteString(fmt.Sprintf("    dest_[%q]\n    out_ --> dest_\n", strings.TrimSpace(lbl.Icon+" "+lbl.Text)))
		}
	}

	b.WriteString("\n")
	for _, s := range schema.OperatingStates {
		b.WriteString(fmt.Sprintf("    classDef %s fill:%s,stroke:#333333,color:%s\n", s, StateColor(s), textColor(s)))
	}
	b.WriteString(fmt.Sprintf("    linkStyle default stroke:%s\n", WaterColor))

	for _, blk := range l.Blocks {
		if blk.State.Valid() {
			b.WriteString(fmt.Sprintf("    class %s %s\n", ids[blk.Name], blk.State))
		}
	}
	return b.String()
}

// sludgeLabel finds the text placed under the branch source.
func sludgeLabel(l *Layout, a Arrow) string {
	for _, lbl := range l.Labels {
		if lbl.Kind == LabelSludge && lbl.At.X == a.Start.X && lbl.At.Y == a.Start.Y-sludgeLabelDrop {
			return mermaidEscapeLabel(lbl.Text)
		}
	}
	return "Boues"
}

func textColor(s schema.OperatingState) string {
	switch s {
	case schema.StateNotBuilt, schema.StateDegraded:
		return "#000"
	default:
		return "#fff"
	}
}

// mermaidSafeID converts a name to a Mermaid-safe identifier.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_", "/", "_", "'", "_")
	return r.Replace(id)
}

// mermaidEscapeLabel escapes characters Mermaid treats as syntax in edge labels.
func mermaidEscapeLabel(s string) string {
	return strings.NewReplacer("|", "/", "\"", "'").Replace(s)
}
