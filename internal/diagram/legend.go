package diagram

import "github.com/rendis/stationflow/pkg/schema"

// Line colors.
const (
	WaterColor  = "#3498db"
	SludgeColor = "#8B4513"
)

var stateColors = map[schema.OperatingState]string{
	schema.StateInService:      "#4CAF50",
	schema.StateFailed:         "#F44336",
	schema.StateDegraded:       "#FFC107",
	schema.StateMaintenance:    "#FF9800",
	schema.StateDecommissioned: "#9E9E9E",
	schema.StateNotBuilt:       "#FFFFFF",
	schema.StateStopped:        "#B22222",
	schema.StateOverloaded:     "#9C27B0",
	schema.StateNew:            "#03A9F4",
}

// StateColor returns the fill color of a state; unknown states are white.
func StateColor(s schema.OperatingState) string {
	if c, ok := stateColors[s]; ok {
		return c
	}
	return "#FFFFFF"
}

// LegendEntry is one legend swatch. Line entries describe arrow styles.
type LegendEntry struct {
	Label  string
	Color  string
	Line   bool
	Dashed bool
}

// Legend returns the fixed legend: nine states then the two flow lines.
func Legend() []LegendEntry {
	out := make([]LegendEntry, 0, len(schema.OperatingStates)+2)
	for _, s := range schema.OperatingStates {
		out = append(out, LegendEntry{Label: s.Label(), Color: StateColor(s)})
	}
	return append(out,
		LegendEntry{Label: "Filière Eau", Color: WaterColor, Line: true},
		LegendEntry{Label: "Filière Boues", Color: SludgeColor, Line: true, Dashed: true},
	)
}

// DestinationStyle is how the destination annotation is drawn.
type DestinationStyle struct {
	Icon      string
	Color     string
	IconColor string
	Italic    bool
}

// StyleFor returns the annotation style of a destination.
func StyleFor(d schema.Destination) DestinationStyle {
	switch {
	case d == schema.DestinationDischarge:
		return DestinationStyle{Icon: "🌊", Color: "#1f77b4", IconColor: "#1f77b4"}
	case d == schema.DestinationNaturalEnv:
		return DestinationStyle{Icon: "🌳", Color: "#1f77b4", IconColor: "#2ca02c"}
	case d.Category() == schema.CategoryReuse:
		return DestinationStyle{Icon: "♻️", Color: "#2ca02c", IconColor: "#2ca02c", Italic: true}
	case d.Category() == schema.CategoryIrrigation:
		return DestinationStyle{Icon: "🌱", Color: "#8c564b", IconColor: "#8c564b"}
	default:
		return DestinationStyle{Icon: "➡️", Color: "#666666", IconColor: "#666666"}
	}
}
