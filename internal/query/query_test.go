package query

import (
	"context"
	"testing"

	"github.com/rendis/stationflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(id, name string, flow float64, dest schema.Destination, pairs ...schema.StatePair) Row {
	r := Row{Station: schema.Station{
		ID:          id,
		Name:        name,
		NominalFlow: flow,
		ProcessType: "boues_activees",
		Destination: dest,
		CreatedAt:   "2024-01-01",
	}}
	if len(pairs) > 0 {
		r.Latest = &schema.Snapshot{
			StationID: id,
			UpdatedAt: "2024-03-01 08:30:00",
			States:    schema.NewEquipmentStates(pairs...),
		}
	}
	return r
}

func sampleRows() []Row {
	return []Row{
		row("S1", "STEP Nord", 2500, schema.DestinationReuse,
			schema.StatePair{Name: "Dégrillage", State: schema.StateFailed},
			schema.StatePair{Name: "Clarificateur", State: schema.StateInService},
			schema.StatePair{Name: "Filtre à sable", State: schema.StateNotBuilt},
		),
		row("S2", "STEP Sud", 800, schema.DestinationIrrigationFarm,
			schema.StatePair{Name: "Dégrillage", State: schema.StateInService},
		),
		row("S3", "STEP Est", 120, schema.DestinationDischarge),
	}
}

func ids(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Station.ID)
	}
	return out
}

func TestEnv_Counts(t *testing.T) {
	env := Env(sampleRows()[0])
	assert.Equal(t, 3, env["ouvrages"])
	assert.Equal(t, 1, env["en_service"])
	assert.Equal(t, 1, env["hors_service"])
	assert.Equal(t, "reuse", env["categorie"])
	assert.Equal(t, "2024-03-01 08:30:00", env["date_maj"])

	empty := Env(sampleRows()[2])
	assert.Equal(t, 0, empty["ouvrages"])
	assert.Equal(t, "", empty["date_maj"])
}

func TestFilter_Apply(t *testing.T) {
	f := NewFilter()
	rows := sampleRows()

	cases := []struct {
		expr string
		want []string
	}{
		{"", []string{"S1", "S2", "S3"}},
		{`debit_nominal > 500`, []string{"S1", "S2"}},
		{`categorie == "irrigation"`, []string{"S2"}},
		{`hors_service > 0`, []string{"S1"}},
		{`etats["Dégrillage"] == "en_service"`, []string{"S2"}},
		{`nom startsWith "STEP" && ouvrages == 0`, []string{"S3"}},
		{`"Clarificateur" in keys(etats)`, []string{"S1"}},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := f.Apply(tc.expr, rows)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(got))
		})
	}
}

func TestFilter_CompileErrors(t *testing.T) {
	f := NewFilter()

	_, err := f.Apply(`debit_nominal >`, sampleRows())
	assert.True(t, schema.HasCode(err, schema.ErrCodeExpression))

	_, err = f.Apply(`nom`, sampleRows())
	assert.True(t, schema.HasCode(err, schema.ErrCodeExpression), "non-boolean result")
}

func TestFilter_CachesPrograms(t *testing.T) {
	f := NewFilter()
	_, err := f.Match(`debit_nominal > 1`, sampleRows()[0])
	require.NoError(t, err)
	_, err = f.Match(`debit_nominal > 1`, sampleRows()[1])
	require.NoError(t, err)
	assert.Len(t, f.cache, 1)
}

func TestProjector_Project(t *testing.T) {
	p := NewProjector()
	history := []schema.Snapshot{
		{StationID: "S1", UpdatedAt: "2024-03-01 08:00:00", States: schema.NewEquipmentStates(
			schema.StatePair{Name: "Dégrillage", State: schema.StateInService},
		)},
		{StationID: "S1", UpdatedAt: "2024-03-02 09:00:00", States: schema.NewEquipmentStates(
			schema.StatePair{Name: "Dégrillage", State: schema.StateFailed},
			schema.StatePair{Name: "Clarificateur", State: schema.StateFailed},
		)},
	}
	ctx := context.Background()

	out, err := p.Project(ctx, `map(.date_maj)`, history)
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{"2024-03-01 08:00:00", "2024-03-02 09:00:00"}}, out)

	out, err = p.Project(ctx, `.[-1].etat_ouvrages | to_entries[] | select(.value == "en_panne") | .key`, history)
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"Dégrillage", "Clarificateur"}, out)

	out, err = p.Project(ctx, `length`, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{0}, out)
}

func TestProjector_Errors(t *testing.T) {
	p := NewProjector()
	ctx := context.Background()

	_, err := p.Project(ctx, ``, nil)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	_, err = p.Project(ctx, `map(`, nil)
	assert.True(t, schema.HasCode(err, schema.ErrCodeExpression))

	_, err = p.Project(ctx, `error("boom")`, nil)
	assert.True(t, schema.HasCode(err, schema.ErrCodeExpression))

	_, err = p.Project(ctx, `$ENV.HOME`, nil)
	require.NoError(t, err)
}
