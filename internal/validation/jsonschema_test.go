package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, src string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(src), &v))
	return v
}

func TestNewJSONSchemaValidator(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	assert.NotNil(t, v.catalogSchema)
	assert.NotNil(t, v.stationsSchema)
}

func TestValidateCatalog_ListAndMappingStages(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	doc := decode(t, `{
	  "boues_activees": {
	    "filiere_eau": {
	      "pretraitement": ["Dégrillage", "Dessablage/Dégraissage"],
	      "traitement_secondaire": {"Bassins d'aération": "en_service", "Clarificateur": "en_service"},
	      "boues_secondaires": {"source": "Clarificateur", "destination": "Épaississement des boues", "etiquette": "Boues secondaires"}
	    },
	    "filiere_boue": ["Épaississement des boues", "Lits de séchage"]
	  }
	}`)

	res := v.ValidateCatalog(doc)
	assert.Empty(t, res.Issues)
}

func TestValidateCatalog_MalformedStageIsWarning(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	res := v.ValidateCatalog(decode(t, `{"x": {"filiere_boue": 42}}`))
	assert.False(t, res.Clean())
	require.NotEmpty(t, res.Issues)
	assert.Contains(t, res.Issues[0].Path, "/x")
}

func TestValidateStations(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	ok := v.ValidateStations(decode(t, `[{"id":"a","nom":"STEP A","type_procede":"lagunage","debit_nominal":120,"date_creation":"2024-03-01"}]`))
	assert.Empty(t, ok.Issues)

	bad := v.ValidateStations(decode(t, `[{"id":"a","nom":"STEP A","type_procede":"lagunage","debit_nominal":0}]`))
	require.NotEmpty(t, bad.Issues)
	assert.Equal(t, "/0/debit_nominal", bad.Issues[0].Path)

	notArray := v.ValidateStations(decode(t, `{"id":"a"}`))
	assert.NotEmpty(t, notArray.Issues)
}
