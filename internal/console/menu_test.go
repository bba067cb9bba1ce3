package console

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/stationflow/internal/diagram"
	"github.com/rendis/stationflow/internal/station"
	"github.com/rendis/stationflow/pkg/schema"
)

type fakeService struct {
	stations []schema.Station
	states   map[string]*schema.EquipmentStates
	updates  []*schema.EquipmentStates
	deleted  []string
	listErr  error
	panicOn  string
}

func (f *fakeService) Create(_ context.Context, in station.NewStation) (schema.Station, schema.Snapshot, error) {
	if in.NominalFlow <= 0 {
		return schema.Station{}, schema.Snapshot{}, schema.NewError(schema.ErrCodeValidation, "debit_nominal failed \"gt\"")
	}
	st := schema.Station{ID: "id-" + in.Name, Name: in.Name, ProcessType: in.ProcessType, Destination: in.Destination}
	f.stations = append(f.stations, st)
	snap := schema.Snapshot{StationID: st.ID, States: schema.NewEquipmentStates(
		schema.StatePair{Name: "Dégrillage", State: schema.StateInService},
	)}
	return st, snap, nil
}

func (f *fakeService) List(context.Context) ([]schema.Station, error) {
	if f.panicOn == "list" {
		panic("boom")
	}
	return f.stations, f.listErr
}

func (f *fakeService) CurrentStates(_ context.Context, st schema.Station) (*schema.EquipmentStates, string, error) {
	return f.states[st.ID].Clone(), "2024-03-01 08:30:00", nil
}

func (f *fakeService) UpdateStates(_ context.Context, id string, changes *schema.EquipmentStates) (schema.Snapshot, error) {
	f.updates = append(f.updates, changes)
	return schema.Snapshot{StationID: id, UpdatedAt: "2024-03-02 10:00:00"}, nil
}

func (f *fakeService) Delete(_ context.Context, id string) (bool, error) {
	f.deleted = append(f.deleted, id)
	return true, nil
}

func (f *fakeService) Diagram(_ context.Context, req station.DiagramRequest) (*diagram.Layout, error) {
	states := f.states[req.StationID]
	return diagram.Build(diagram.RecordsFromStates(states), diagram.Options{Title: "STEP " + req.StationID}), nil
}

func (f *fakeService) ProcessTypes() []string { return []string{"boues_activees"} }

// scriptPrompter replays canned answers.
type scriptPrompter struct {
	actions []Action
	newSt   station.NewStation
	pickIdx int
	edits   []schema.OperatingState
	format  diagram.Format
	confirm bool
	err     error
}

func (s *scriptPrompter) MainMenu() (Action, error) {
	if len(s.actions) == 0 {
		return ActionExit, nil
	}
	a := s.actions[0]
	s.actions = s.actions[1:]
	return a, nil
}

func (s *scriptPrompter) NewStation([]string) (station.NewStation, error) { return s.newSt, s.err }

func (s *scriptPrompter) SelectStation(stations []schema.Station) (schema.Station, error) {
	return stations[s.pickIdx], s.err
}

func (s *scriptPrompter) EditStates(current *schema.EquipmentStates) (*schema.EquipmentStates, error) {
	return Changes(current, s.edits), s.err
}

func (s *scriptPrompter) SaveFormat() (diagram.Format, bool, error) {
	return s.format, s.format != "", s.err
}

func (s *scriptPrompter) Confirm(string) (bool, error) { return s.confirm, s.err }

func seeded() *fakeService {
	return &fakeService{
		stations: []schema.Station{{ID: "S1", Name: "STEP Nord", Location: "Agadir", NominalFlow: 2500, ProcessType: "boues_activees"}},
		states: map[string]*schema.EquipmentStates{
			"S1": schema.NewEquipmentStates(
				schema.StatePair{Name: "Dégrillage", State: schema.StateInService},
				schema.StatePair{Name: "Clarificateur", State: schema.StateInService},
			),
		},
	}
}

func newTestMenu(svc Service, p Prompter) (*Menu, *bytes.Buffer) {
	var out bytes.Buffer
	m := NewMenu(svc, p, &out, nil)
	m.now = func() time.Time { return time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC) }
	return m, &out
}

func TestMenu_CreateListExit(t *testing.T) {
	svc := &fakeService{}
	p := &scriptPrompter{
		actions: []Action{ActionList, ActionCreate, ActionList},
		newSt:   station.NewStation{Name: "STEP Est", Location: "Fès", NominalFlow: 300, ProcessType: "boues_activees"},
	}
	m, out := newTestMenu(svc, p)

	require.NoError(t, m.Run(context.Background()))
	text := out.String()
	assert.Contains(t, text, "Aucune station enregistrée.")
	assert.Contains(t, text, "Station 'STEP Est' créée avec succès !")
	assert.Contains(t, text, "LISTE DES STATIONS")
	assert.Contains(t, text, "Au revoir !")
	assert.Len(t, svc.stations, 1)
}

func TestMenu_CreateValidationErrorContinues(t *testing.T) {
	svc := &fakeService{}
	p := &scriptPrompter{
		actions: []Action{ActionCreate},
		newSt:   station.NewStation{Name: "X"},
	}
	m, out := newTestMenu(svc, p)

	require.NoError(t, m.Run(context.Background()))
	assert.Contains(t, out.String(), "Données invalides")
	assert.Contains(t, out.String(), "Au revoir !")
}

func TestMenu_UpdateSendsOnlyChanges(t *testing.T) {
	svc := seeded()
	p := &scriptPrompter{
		actions: []Action{ActionUpdate},
		edits:   []schema.OperatingState{schema.StateInService, schema.StateFailed},
	}
	m, out := newTestMenu(svc, p)

	require.NoError(t, m.Run(context.Background()))
	require.Len(t, svc.updates, 1)
	assert.Equal(t, []string{"Clarificateur"}, svc.updates[0].Names())
	assert.Contains(t, out.String(), "1 ouvrage(s) mis à jour")
}

func TestMenu_UpdateWithoutChanges(t *testing.T) {
	svc := seeded()
	p := &scriptPrompter{
		actions: []Action{ActionUpdate},
		edits:   []schema.OperatingState{schema.StateInService, schema.StateInService},
	}
	m, out := newTestMenu(svc, p)

	require.NoError(t, m.Run(context.Background()))
	assert.Empty(t, svc.updates)
	assert.Contains(t, out.String(), "Aucun changement")
}

func TestMenu_DiagramSaved(t *testing.T) {
	svc := seeded()
	p := &scriptPrompter{actions: []Action{ActionDiagram}, format: diagram.FormatMermaid}
	m, out := newTestMenu(svc, p)
	m.OutputDir = t.TempDir()

	require.NoError(t, m.Run(context.Background()))
	assert.Contains(t, out.String(), "=== STEP S1 ===")

	path := filepath.Join(m.OutputDir, "diagramme_step_nord_20240301_083000.mmd")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "graph TD"))
}

func TestMenu_DeleteNeedsConfirmation(t *testing.T) {
	svc := seeded()
	m, out := newTestMenu(svc, &scriptPrompter{actions: []Action{ActionDelete}, confirm: false})
	require.NoError(t, m.Run(context.Background()))
	assert.Empty(t, svc.deleted)
	assert.Contains(t, out.String(), "Opération annulée.")

	m, out = newTestMenu(svc, &scriptPrompter{actions: []Action{ActionDelete}, confirm: true})
	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, []string{"S1"}, svc.deleted)
	assert.Contains(t, out.String(), "Station 'STEP Nord' supprimée.")
}

func TestMenu_PanicIsRecovered(t *testing.T) {
	svc := seeded()
	svc.panicOn = "list"
	m, out := newTestMenu(svc, &scriptPrompter{actions: []Action{ActionList, ActionList}})

	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, 2, strings.Count(out.String(), "Erreur inattendue"))
	assert.Contains(t, out.String(), "Au revoir !")
}

func TestMenu_StoreErrorIsReported(t *testing.T) {
	svc := seeded()
	svc.listErr = schema.NewError(schema.ErrCodeStore, "disk full")
	m, out := newTestMenu(svc, &scriptPrompter{actions: []Action{ActionList}})

	require.NoError(t, m.Run(context.Background()))
	assert.Contains(t, out.String(), "Échec de l'enregistrement")
}

func TestMenu_CancelledPromptEndsLoop(t *testing.T) {
	m, out := newTestMenu(seeded(), cancelledPrompter{&scriptPrompter{}})
	require.NoError(t, m.Run(context.Background()))
	assert.Contains(t, out.String(), "Au revoir !")
}

type cancelledPrompter struct{ *scriptPrompter }

func (cancelledPrompter) MainMenu() (Action, error) { return 0, ErrCancelled }

func TestMenu_BrokenPromptFails(t *testing.T) {
	m, _ := newTestMenu(seeded(), brokenPrompter{&scriptPrompter{}})
	assert.Error(t, m.Run(context.Background()))
}

type brokenPrompter struct{ *scriptPrompter }

func (brokenPrompter) MainMenu() (Action, error) { return 0, errors.New("tty closed") }

func TestChanges(t *testing.T) {
	current := schema.NewEquipmentStates(
		schema.StatePair{Name: "A", State: schema.StateInService},
		schema.StatePair{Name: "B", State: schema.StateFailed},
		schema.StatePair{Name: "C", State: schema.StateInService},
	)
	got := Changes(current, []schema.OperatingState{schema.StateMaintenance, schema.StateFailed})
	assert.Equal(t, "{A: en_maintenance}", got.String())
}

func TestParseFlow(t *testing.T) {
	v, err := ParseFlow(" 2500,5 ")
	require.NoError(t, err)
	assert.Equal(t, 2500.5, v)

	_, err = ParseFlow("abc")
	assert.Error(t, err)
	_, err = ParseFlow("0")
	assert.Error(t, err)
}

func TestStationTable(t *testing.T) {
	out := StationTable([]schema.Station{
		{Name: "STEP Nord", Location: "Agadir", NominalFlow: 2500, ProcessType: "boues_activees", Destination: schema.DestinationReuse, CreatedAt: "2024-01-01"},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Localisation")
	assert.Contains(t, lines[1], "STEP Nord")
	assert.Contains(t, lines[1], "2500")
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Introuvable : station not found", Describe(schema.NewError(schema.ErrCodeNotFound, "station not found")))
	assert.Contains(t, Describe(errors.New("raw")), "voir les logs")
	assert.Equal(t, "Aucun ouvrage trouvé pour ce type de procédé.",
		Describe(schema.NewError(schema.ErrCodeCatalogMiss, "no equipment found for process type \"x\"")))
}
