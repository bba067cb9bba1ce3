package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperatingStates_AllValid(t *testing.T) {
	require.Len(t, OperatingStates, 9)
	for _, s := range OperatingStates {
		assert.True(t, s.Valid(), s)
		assert.NotEqual(t, string(s), s.Label())
	}
	assert.False(t, OperatingState("cassé").Valid())
}

func TestParseOperatingState(t *testing.T) {
	tests := []struct {
		raw  string
		want OperatingState
		ok   bool
	}{
		{"en_panne", StateFailed, true},
		{"  surcharge_sature ", StateOverloaded, true},
		{"Fonctionnel", StateInService, true},
		{"En maintenance", StateMaintenance, true},
		{"Hors service", StateDecommissioned, true},
		{"cassé", OperatingState("cassé"), false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseOperatingState(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestOperatingState_UnmarshalLegacyLabel(t *testing.T) {
	var s OperatingState
	require.NoError(t, json.Unmarshal([]byte(`"Fonctionnel"`), &s))
	assert.Equal(t, StateInService, s)

	require.NoError(t, json.Unmarshal([]byte(`"something_else"`), &s))
	assert.Equal(t, OperatingState("something_else"), s)
}

func TestDestination_Category(t *testing.T) {
	assert.Equal(t, CategoryDischarge, DestinationNaturalEnv.Category())
	assert.Equal(t, CategoryDischarge, DestinationDischarge.Category())
	assert.Equal(t, CategoryIrrigation, DestinationIrrigationFarm.Category())
	assert.Equal(t, CategoryIrrigation, DestinationIrrigationGreen.Category())
	assert.Equal(t, CategoryReuse, DestinationReuse.Category())
	assert.Equal(t, CategoryIndustry, DestinationIndustry.Category())
	assert.Equal(t, CategoryOther, Destination("Lac").Category())

	assert.True(t, DestinationDischarge.Valid())
	assert.False(t, Destination("Lac").Valid())
}
