package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMermaid(t *testing.T) {
	output := RenderMermaid(Build(activatedSludgeItems(), activatedSludgeOptions()))

	assert.Contains(t, output, "graph TD")
	assert.Contains(t, output, "%% STEP Nord")

	// One subgraph per populated row.
	assert.Contains(t, output, `subgraph pretraitement["Pretraitement"]`)
	assert.Contains(t, output, `subgraph traitement_boues["Traitement Boues"]`)
	assert.NotContains(t, output, "traitement_tertiaire")

	assert.Contains(t, output, `n1["Dégrillage"]`)
	assert.Contains(t, output, "n1 --> n2")
	assert.Contains(t, output, "n3 -.->|Boues primaires| n6")
	assert.Contains(t, output, "n6 -.-> n7")
	assert.Contains(t, output, "in_ --> n1")
	assert.Contains(t, output, "n5 --> out_")
	assert.Contains(t, output, `dest_["🌳 Milieu naturel"]`)

	assert.Contains(t, output, "classDef en_panne fill:#F44336")
	assert.Contains(t, output, "class n2 en_panne")
	assert.Contains(t, output, "class n4 en_maintenance")
}

func TestRenderMermaid_Empty(t *testing.T) {
	output := RenderMermaid(Build(nil, Options{}))
	assert.Contains(t, output, "graph TD")
	assert.NotContains(t, output, "subgraph")
	assert.NotContains(t, output, "in_")
}

func TestMermaidSafeID(t *testing.T) {
	assert.Equal(t, "Dessablage_D_graissage", mermaidSafeID("Dessablage/D'graissage"))
}
