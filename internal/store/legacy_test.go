package store

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/rendis/stationflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var parseNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestParseStates_Canonical(t *testing.T) {
	res, err := parseStates([]byte(`{"S2": [], "S1": [{"station_id":"S1","date":"2024-01-01","date_maj":"2024-01-01 10:00:00","etat_ouvrages":{"B":"en_service","A":"en_panne"}}]}`), parseNow)
	require.NoError(t, err)
	assert.Equal(t, shapeCanonical, res.shape)
	assert.False(t, res.needsRewrite())
	assert.Equal(t, []string{"S2", "S1"}, res.histories.StationIDs())

	snaps := res.histories.Get("S1")
	require.Len(t, snaps, 1)
	assert.Equal(t, []string{"B", "A"}, snaps[0].States.Names())
}

func TestParseStates_SingleObjectPerStation(t *testing.T) {
	res, err := parseStates([]byte(`{"S1": {"station_id":"S1","date":"2024-01-01","etat":{"A":"en_panne"}}}`), parseNow)
	require.NoError(t, err)
	assert.Equal(t, shapeSingle, res.shape)
	assert.True(t, res.needsRewrite())

	snaps := res.histories.Get("S1")
	require.Len(t, snaps, 1)
	assert.Equal(t, "2024-01-01 00:00:00", snaps[0].UpdatedAt)
	s, _ := snaps[0].States.Get("A")
	assert.Equal(t, schema.StateFailed, s)
}

func TestParseStates_FlatList(t *testing.T) {
	res, err := parseStates([]byte(`[
	  {"station_id":"S1","date_maj":"2024-01-01 10:00:00","etat_ouvrages":{"A":"en_service"}},
	  {"station_id":"S2","date":"2024-01-02","etat":{"B":"Hors service"}},
	  {"date":"2024-01-03","etat":{"C":"en_service"}},
	  {"station_id":"S1","etat_ouvrages":{"A":"en_panne"}}
	]`), parseNow)
	require.NoError(t, err)
	assert.Equal(t, shapeFlat, res.shape)
	assert.Equal(t, []string{"S1", "S2"}, res.histories.StationIDs())
	assert.NotEmpty(t, res.issues, "snapshot without station_id is reported")

	s1 := res.histories.Get("S1")
	require.Len(t, s1, 2)
	assert.Equal(t, "2024-06-01 12:00:00", s1[1].UpdatedAt, "missing timestamps come from now")
	assert.Equal(t, "2024-06-01", s1[1].Date)

	s2 := res.histories.Get("S2")
	b, _ := s2[0].States.Get("B")
	assert.Equal(t, schema.StateDecommissioned, b)
}

func TestParseStates_NumericStationIDInFlatList(t *testing.T) {
	res, err := parseStates([]byte(`[{"station_id": 42, "date_maj":"2024-01-01 10:00:00"}]`), parseNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, res.histories.StationIDs())
	assert.Equal(t, 0, res.histories.Get("42")[0].States.Len())
}

func TestParseStates_SpecificFieldWins(t *testing.T) {
	res, err := parseStates([]byte(`{"S1":[{"station_id":"S1","date":"2023-01-01","date_maj":"2024-01-01 10:00:00","etat":{"A":"en_panne"},"etat_ouvrages":{"A":"en_service"}}]}`), parseNow)
	require.NoError(t, err)
	snap := res.histories.Get("S1")[0]
	assert.Equal(t, "2024-01-01 10:00:00", snap.UpdatedAt)
	s, _ := snap.States.Get("A")
	assert.Equal(t, schema.StateInService, s)
}

func TestParseStates_UnknownAndEmpty(t *testing.T) {
	res, err := parseStates([]byte(`"nope"`), parseNow)
	require.NoError(t, err)
	assert.Equal(t, shapeUnknown, res.shape)
	assert.Equal(t, 0, res.histories.Len())

	res, err = parseStates([]byte("  "), parseNow)
	require.NoError(t, err)
	assert.Equal(t, shapeEmpty, res.shape)

	_, err = parseStates([]byte(`[{`), parseNow)
	assert.Error(t, err)
}

func TestParseStates_BadEntriesSkipped(t *testing.T) {
	res, err := parseStates([]byte(`{"S1": 3, "S2": [{"etat_ouvrages": 5}, {"date_maj":"2024-01-01 00:00:00"}]}`), parseNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"S2"}, res.histories.StationIDs())
	assert.Len(t, res.histories.Get("S2"), 1)
	assert.Len(t, res.issues, 2)
}

func TestNormalize_RewritesLegacyLayout(t *testing.T) {
	r := newTestStates(t)
	ctx := context.Background()
	writeFile(t, r.Path(), `[{"station_id":"S1","date":"2024-01-01","etat":{"A":"en_panne"}}]`)

	rep, err := r.Normalize(ctx)
	require.NoError(t, err)
	assert.True(t, rep.Rewritten)
	assert.Equal(t, "flat-list", rep.Shape)
	assert.Equal(t, 1, rep.Stations)
	assert.Equal(t, 1, rep.Snapshots)

	data, err := os.ReadFile(r.Path())
	require.NoError(t, err)
	var doc map[string][]map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc["S1"], 1)
	assert.Equal(t, "2024-01-01 00:00:00", doc["S1"][0]["date_maj"])
	assert.Equal(t, map[string]any{"A": "en_panne"}, doc["S1"][0]["etat_ouvrages"])
	assert.NotContains(t, doc["S1"][0], "etat")

	rep, err = r.Normalize(ctx)
	require.NoError(t, err)
	assert.False(t, rep.Rewritten, "canonical file is left alone")
}
