package console

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/rendis/stationflow/internal/diagram"
	"github.com/rendis/stationflow/internal/logging"
	"github.com/rendis/stationflow/internal/station"
	"github.com/rendis/stationflow/pkg/schema"
)

// ErrNoStations is returned when an operation needs a station and none exist.
var ErrNoStations = errors.New("no station recorded")

// Service is what the menu needs from the station service.
type Service interface {
	Create(ctx context.Context, in station.NewStation) (schema.Station, schema.Snapshot, error)
	List(ctx context.Context) ([]schema.Station, error)
	CurrentStates(ctx context.Context, st schema.Station) (*schema.EquipmentStates, string, error)
	UpdateStates(ctx context.Context, stationID string, changes *schema.EquipmentStates) (schema.Snapshot, error)
	Delete(ctx context.Context, stationID string) (bool, error)
	Diagram(ctx context.Context, req station.DiagramRequest) (*diagram.Layout, error)
	ProcessTypes() []string
}

// Menu is the interactive loop.
type Menu struct {
	svc    Service
	prompt Prompter
	out    Printer
	logger *slog.Logger

	// OutputDir receives saved diagrams.
	OutputDir string
	now       func() time.Time
}

// NewMenu returns a menu writing to out.
func NewMenu(svc Service, prompt Prompter, out io.Writer, logger *slog.Logger) *Menu {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Menu{
		svc:       svc,
		prompt:    prompt,
		out:       NewPrinter(out),
		logger:    logger,
		OutputDir: ".",
		now:       time.Now,
	}
}

// Run loops until the operator exits or ctx is done. A failing or panicking
// operation is reported and the loop continues; only a broken prompt ends it.
func (m *Menu) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		action, err := m.prompt.MainMenu()
		if errors.Is(err, ErrCancelled) || action == ActionExit {
			m.out.Info("Au revoir !")
			return nil
		}
		if err != nil {
			return err
		}
		m.Do(ctx, action)
	}
}

// Do runs one action and reports its outcome.
func (m *Menu) Do(ctx context.Context, action Action) {
	ctx = logging.WithOperation(ctx, action.String())
	defer func() {
		if r := recover(); r != nil {
			logging.LogWith(ctx, m.logger).ErrorContext(ctx, "operation panicked",
				"action", action.String(), "panic", r, "stack", string(debug.Stack()))
			m.out.Error("Erreur inattendue, voir les logs pour plus de détails.")
		}
	}()

	var err error
	switch action {
	case ActionCreate:
		err = m.create(ctx)
	case ActionDiagram:
		err = m.diagram(ctx)
	case ActionUpdate:
		err = m.update(ctx)
	case ActionList:
		err = m.list(ctx)
	case ActionDelete:
		err = m.delete(ctx)
	default:
		m.out.Warn("Option invalide.")
		return
	}
	m.report(ctx, action, err)
}

func (m *Menu) report(ctx context.Context, action Action, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrCancelled):
		m.out.Warn("Opération annulée.")
	case errors.Is(err, ErrNoStations):
		m.out.Warn("Aucune station enregistrée.")
	default:
		logging.LogWith(ctx, m.logger).ErrorContext(ctx, "operation failed", "action", action.String(), "error", err)
		m.out.Error("%s", Describe(err))
	}
}

func (m *Menu) create(ctx context.Context) error {
	in, err := m.prompt.NewStation(m.svc.ProcessTypes())
	if err != nil {
		return err
	}
	st, snap, err := m.svc.Create(ctx, in)
	if err != nil {
		return err
	}
	m.out.Success("Station '%s' créée avec succès !", st.Name)
	m.out.Info("ID de la station : %s", st.ID)
	m.printStates(snap.States)
	return nil
}

func (m *Menu) pick(ctx context.Context) (schema.Station, error) {
	stations, err := m.svc.List(ctx)
	if err != nil {
		return schema.Station{}, err
	}
	if len(stations) == 0 {
		return schema.Station{}, ErrNoStations
	}
	return m.prompt.SelectStation(stations)
}

func (m *Menu) diagram(ctx context.Context) error {
	st, err := m.pick(ctx)
	if err != nil {
		return err
	}
	l, err := m.svc.Diagram(ctx, station.DiagramRequest{StationID: st.ID})
	if err != nil {
		return err
	}
	m.out.Text(diagram.RenderASCII(l))

	format, ok, err := m.prompt.SaveFormat()
	if err != nil || !ok {
		return err
	}
	data, err := diagram.Render(ctx, l, format)
	if err != nil {
		return err
	}
	path := filepath.Join(m.OutputDir, diagram.FileName(st.Name, format.Ext(), m.now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "write %s", path).WithCause(err)
	}
	m.out.Success("Schéma enregistré : %s", path)
	return nil
}

func (m *Menu) update(ctx context.Context) error {
	st, err := m.pick(ctx)
	if err != nil {
		return err
	}
	current, updatedAt, err := m.svc.CurrentStates(ctx, st)
	if err != nil {
		return err
	}
	if updatedAt != "" {
		m.out.Info("Dernière mise à jour : %s", updatedAt)
	}
	changes, err := m.prompt.EditStates(current)
	if err != nil {
		return err
	}
	if changes.Len() == 0 {
		m.out.Warn("Aucun changement, rien n'a été enregistré.")
		return nil
	}
	snap, err := m.svc.UpdateStates(ctx, st.ID, changes)
	if err != nil {
		return err
	}
	m.out.Success("%d ouvrage(s) mis à jour le %s.", changes.Len(), snap.UpdatedAt)
	return nil
}

func (m *Menu) list(ctx context.Context) error {
	stations, err := m.svc.List(ctx)
	if err != nil {
		return err
	}
	if len(stations) == 0 {
		return ErrNoStations
	}
	m.out.Title("LISTE DES STATIONS")
	m.out.Text(StationTable(stations))
	return nil
}

func (m *Menu) delete(ctx context.Context) error {
	st, err := m.pick(ctx)
	if err != nil {
		return err
	}
	ok, err := m.prompt.Confirm("Supprimer définitivement la station '" + st.Name + "' et tout son historique ?")
	if err != nil {
		return err
	}
	if !ok {
		return ErrCancelled
	}
	deleted, err := m.svc.Delete(ctx, st.ID)
	if err != nil {
		return err
	}
	if !deleted {
		m.out.Warn("Station '%s' introuvable.", st.Name)
		return nil
	}
	m.out.Success("Station '%s' supprimée.", st.Name)
	return nil
}

func (m *Menu) printStates(states *schema.EquipmentStates) {
	for i, p := range states.Pairs() {
		m.out.Text(Styles.Muted.Render(strconv.Itoa(i+1)+".") + " " + p.Name + " " + StateBadge(p.State))
	}
}

// Describe turns an error into the status line shown to the operator.
func Describe(err error) string {
	var se *schema.Error
	if !errors.As(err, &se) {
		return "Une erreur est survenue, voir les logs pour plus de détails."
	}
	switch se.Code {
	case schema.ErrCodeValidation:
		return "Données invalides : " + se.Message
	case schema.ErrCodeNotFound:
		return "Introuvable : " + se.Message
	case schema.ErrCodeStore:
		return "Échec de l'enregistrement, les données n'ont pas été sauvegardées."
	case schema.ErrCodeConflict:
		return "Conflit : " + se.Message
	case schema.ErrCodeCatalogMiss:
		return "Aucun ouvrage trouvé pour ce type de procédé."
	}
	return se.Message
}
