package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rendis/stationflow/pkg/schema"
)

func TestBuildXLSX(t *testing.T) {
	stations := []schema.Station{
		{ID: "S1", Name: "STEP Nord", Location: "Agadir", NominalFlow: 2500, ProcessType: "boues_activees",
			Destination: schema.DestinationReuse, CreatedAt: "2024-01-01"},
		{ID: "S2", Name: "STEP Sud", Location: "Fès", NominalFlow: 800, ProcessType: "lagunage",
			Destination: schema.DestinationDischarge, CreatedAt: "2024-02-01"},
	}
	histories := map[string][]schema.Snapshot{
		"S1": {
			{StationID: "S1", Date: "2024-03-02", UpdatedAt: "2024-03-02 09:00:00", States: schema.NewEquipmentStates(
				schema.StatePair{Name: "Dégrillage", State: schema.StateFailed},
				schema.StatePair{Name: "Clarificateur", State: schema.StateInService},
			)},
			{StationID: "S1", Date: "2024-03-01", UpdatedAt: "2024-03-01 08:00:00", States: schema.NewEquipmentStates(
				schema.StatePair{Name: "Dégrillage", State: schema.StateInService},
			)},
		},
	}

	data, err := BuildXLSX(stations, func(id string) []schema.Snapshot { return histories[id] })
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{StationsSheet, HistorySheet}, f.GetSheetList())

	rows, err := f.GetRows(StationsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "debit_nominal", rows[0][3])
	assert.Equal(t, []string{"S1", "STEP Nord", "Agadir", "2500", "boues_activees",
		"Réutilisation", "2024-01-01", "2024-03-02 09:00:00", "2", "1"}, rows[1])
	assert.Equal(t, "S2", rows[2][0])
	assert.Equal(t, "", rows[2][7])

	hist, err := f.GetRows(HistorySheet)
	require.NoError(t, err)
	require.Len(t, hist, 4, "header plus one row per equipment per snapshot")
	assert.Equal(t, []string{"S1", "STEP Nord", "2024-03-02", "2024-03-02 09:00:00", "Dégrillage", "en_panne", "En panne"}, hist[1])
}

func TestBuildXLSX_Empty(t *testing.T) {
	data, err := BuildXLSX(nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(StationsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
