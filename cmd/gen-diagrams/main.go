// gen-diagrams generates sample diagram outputs for README documentation.
// Run: go run ./cmd/gen-diagrams
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rendis/stationflow/internal/diagram"
	"github.com/rendis/stationflow/pkg/schema"
)

func main() {
	// Activated sludge plant with one failed screen and a thickener under maintenance.
	states := schema.NewEquipmentStates(
		schema.StatePair{Name: "Dégrillage", State: schema.StateFailed},
		schema.StatePair{Name: "Dessablage/Dégraissage", State: schema.StateInService},
		schema.StatePair{Name: "Décanteur primaire", State: schema.StateInService},
		schema.StatePair{Name: "Bassin aération", State: schema.StateDegraded},
		schema.StatePair{Name: "Décanteur secondaire", State: schema.StateInService},
		schema.StatePair{Name: "Désinfection UV", State: schema.StateNew},
		schema.StatePair{Name: "Epaississeur", State: schema.StateMaintenance},
		schema.StatePair{Name: "Lits de séchage", State: schema.StateInService},
		schema.StatePair{Name: "Bassin d'orage", State: schema.StateNotBuilt},
	)

	l := diagram.Build(diagram.RecordsFromStates(states), diagram.Options{
		Title:       diagram.Title("Démo", "boues_activees", "2024-03-01 08:30:00"),
		Destination: schema.DestinationIrrigationFarm,
		Branches: []diagram.Branch{
			{Source: "Décanteur primaire", Destination: "Epaississeur", Label: "Boues primaires"},
			{Source: "Décanteur secondaire", Destination: "Epaississeur", Label: "Boues secondaires"},
		},
		SludgeLine: []string{"Epaississeur", "Lits de séchage"},
	})

	outDir := filepath.Join("docs", "assets")
	os.MkdirAll(outDir, 0o755)

	ctx := context.Background()
	for _, f := range diagram.Formats {
		data, err := diagram.Render(ctx, l, f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s error: %v\n", f, err)
			continue
		}
		path := filepath.Join(outDir, "diagram-sample."+f.Ext())
		os.WriteFile(path, data, 0o644)
		if f == diagram.FormatASCII || f == diagram.FormatMermaid {
			fmt.Printf("=== %s ===\n%s\n", f, data)
			continue
		}
		fmt.Printf("=== %s ===\nWritten: %s (%d bytes)\n", f, path, len(data))
	}
}
