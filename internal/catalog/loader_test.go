package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rendis/stationflow/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "boues_activees": {
    "nom": "Boues activées",
    "filiere_boue": ["Épaississement des boues", "Déshydratation mécanique"],
    "filiere_eau": {
      "traitement_secondaire": ["Bassins d'aération", "Clarificateur"],
      "pretraitement": ["Dégrillage", "Dessablage/Dégraissage"],
      "boues_secondaires": {
        "source": "Clarificateur",
        "destination": "Épaississement des boues",
        "etiquette": "Boues secondaires"
      }
    },
    "traitement_tertiaire": ["Désinfection UV"]
  },
  "lagunage": {
    "filiere_eau": {
      "pretraitement": {"Dégrillage": "en_service", "Dessablage/Dégraissage": "en_service"},
      "traitement_secondaire": {"Lagune aérée": "en_service"}
    }
  }
}`

const sampleYAML = `
boues_activees:
  nom: Boues activées
  filiere_boue: [Épaississement des boues, Déshydratation mécanique]
  filiere_eau:
    traitement_secondaire:
      - Bassins d'aération
      - Clarificateur
    pretraitement:
      - Dégrillage
      - Dessablage/Dégraissage
    boues_secondaires:
      source: Clarificateur
      destination: Épaississement des boues
      etiquette: Boues secondaires
  traitement_tertiaire:
    - Désinfection UV
lagunage:
  filiere_eau:
    pretraitement:
      Dégrillage: en_service
      Dessablage/Dégraissage: en_service
    traitement_secondaire:
      Lagune aérée: en_service
`

func newLoader(t *testing.T) *Loader {
	t.Helper()
	v, err := validation.NewJSONSchemaValidator()
	require.NoError(t, err)
	return &Loader{Validator: v}
}

func TestParse_JSON(t *testing.T) {
	cat, res, err := newLoader(t).Parse([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, res.Issues)
	assert.Equal(t, 2, cat.Len())
	assert.Equal(t, []string{"boues_activees", "lagunage"}, cat.IDs())

	pt, ok := cat.Lookup("boues_activees")
	require.True(t, ok)
	assert.Equal(t, "Boues activées", pt.DisplayName())
	assert.Equal(t, []string{"Dégrillage", "Dessablage/Dégraissage"}, pt.StageNames(StagePretreatment))
	assert.Equal(t, []string{"Bassins d'aération", "Clarificateur"}, pt.StageNames(StageSecondary))
	assert.Equal(t, []string{"Désinfection UV"}, pt.StageNames(StageTertiary))
	assert.Equal(t, []string{"Épaississement des boues", "Déshydratation mécanique"}, pt.SludgeLine())
	assert.Nil(t, pt.PrimarySludge)
	require.Len(t, pt.SludgeBranches(), 1)
	assert.Equal(t, SludgeBranch{
		Source:      "Clarificateur",
		Destination: "Épaississement des boues",
		Label:       "Boues secondaires",
	}, pt.SludgeBranches()[0])
}

func TestParse_LegacyMappingKeepsOrder(t *testing.T) {
	cat, _, err := newLoader(t).Parse([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)

	pt, ok := cat.Lookup("lagunage")
	require.True(t, ok)
	_, isLegacy := pt.Water[StagePretreatment].(NamedDefaults)
	assert.True(t, isLegacy)
	assert.Equal(t, []string{"Dégrillage", "Dessablage/Dégraissage"}, pt.StageNames(StagePretreatment))
	assert.Equal(t, "LAGUNAGE", pt.DisplayName())
}

func TestParse_YAMLMatchesJSON(t *testing.T) {
	fromJSON, _, err := newLoader(t).Parse([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)
	fromYAML, res, err := newLoader(t).Parse([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, res.Issues)

	for _, id := range fromJSON.IDs() {
		a, _ := fromJSON.Lookup(id)
		b, ok := fromYAML.Lookup(id)
		require.True(t, ok, id)
		for _, s := range StageOrder {
			assert.Equal(t, a.StageNames(s), b.StageNames(s), "%s/%s", id, s)
		}
		assert.Equal(t, a.SludgeBranches(), b.SludgeBranches())
	}
}

func TestParse_MalformedStageSkipped(t *testing.T) {
	doc := `{"mbr": {"filiere_eau": {"pretraitement": ["Dégrillage", 7, "  "], "traitement_primaire": "Décanteur primaire"}, "filiere_boue": 3}}`
	cat, res, err := newLoader(t).Parse([]byte(doc), FormatJSON)
	require.NoError(t, err)

	pt, ok := cat.Lookup("MBR")
	require.True(t, ok)
	assert.Equal(t, []string{"Dégrillage"}, pt.StageNames(StagePretreatment))
	assert.Empty(t, pt.StageNames(StagePrimary))
	assert.Empty(t, pt.SludgeLine())
	assert.NotEmpty(t, res.Issues)
}

func TestParse_WrongTopLevelType(t *testing.T) {
	cat, res, err := (&Loader{}).Parse([]byte(`["boues_activees"]`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 0, cat.Len())
	require.Len(t, res.Issues, 1)
	assert.Contains(t, res.Issues[0].Message, "got list")
}

func TestParse_InvalidJSON(t *testing.T) {
	_, _, err := (&Loader{}).Parse([]byte(`{"a": [`), FormatJSON)
	assert.Error(t, err)

	_, _, err = (&Loader{}).Parse([]byte(`{} {}`), FormatJSON)
	assert.Error(t, err)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "types.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cat, _, err := newLoader(t).Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())

	_, _, err = newLoader(t).Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
