package console

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/rendis/stationflow/internal/diagram"
	"github.com/rendis/stationflow/internal/station"
	"github.com/rendis/stationflow/pkg/schema"
)

// ErrCancelled is returned by prompts the operator backed out of.
var ErrCancelled = errors.New("cancelled by operator")

// Action is a main menu entry.
type Action int

const (
	ActionCreate Action = iota + 1
	ActionDiagram
	ActionUpdate
	ActionList
	ActionDelete
	ActionExit
)

var actionLabels = map[Action]string{
	ActionCreate:  "Créer une nouvelle station",
	ActionDiagram: "Afficher le schéma d'une station",
	ActionUpdate:  "Mettre à jour l'état des ouvrages",
	ActionList:    "Lister les stations",
	ActionDelete:  "Supprimer une station",
	ActionExit:    "Quitter",
}

func (a Action) String() string {
	if l, ok := actionLabels[a]; ok {
		return l
	}
	return "action " + strconv.Itoa(int(a))
}

// Prompter asks the operator for input.
type Prompter interface {
	MainMenu() (Action, error)
	NewStation(processTypes []string) (station.NewStation, error)
	SelectStation(stations []schema.Station) (schema.Station, error)
	// EditStates returns only the entries the operator changed.
	EditStates(current *schema.EquipmentStates) (*schema.EquipmentStates, error)
	// SaveFormat returns ok=false when the diagram should not be saved.
	SaveFormat() (f diagram.Format, ok bool, err error)
	Confirm(question string) (bool, error)
}

// HuhPrompter prompts with charmbracelet/huh forms.
type HuhPrompter struct {
	In         io.Reader
	Out        io.Writer
	Accessible bool
}

func (p *HuhPrompter) run(groups ...*huh.Group) error {
	form := huh.NewForm(groups...).WithAccessible(p.Accessible)
	if p.In != nil {
		form = form.WithInput(p.In)
	}
	if p.Out != nil {
		form = form.WithOutput(p.Out)
	}
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrCancelled
		}
		return err
	}
	return nil
}

func (p *HuhPrompter) MainMenu() (Action, error) {
	var a Action
	opts := make([]huh.Option[Action], 0, len(actionLabels))
	for _, act := range []Action{ActionCreate, ActionDiagram, ActionUpdate, ActionList, ActionDelete, ActionExit} {
		opts = append(opts, huh.NewOption(act.String(), act))
	}
	err := p.run(huh.NewGroup(
		huh.NewSelect[Action]().Title("GESTION DES STATIONS D'ÉPURATION").Options(opts...).Value(&a),
	))
	return a, err
}

func (p *HuhPrompter) NewStation(processTypes []string) (station.NewStation, error) {
	var (
		in       station.NewStation
		flow     string
		procType string
		dest     schema.Destination
	)
	typeOpts := make([]huh.Option[string], 0, len(processTypes))
	for _, id := range processTypes {
		typeOpts = append(typeOpts, huh.NewOption(strings.ReplaceAll(id, "_", " "), id))
	}
	destOpts := make([]huh.Option[schema.Destination], 0, len(schema.Destinations))
	for _, d := range schema.Destinations {
		destOpts = append(destOpts, huh.NewOption(string(d), d))
	}

	err := p.run(
		huh.NewGroup(
			huh.NewInput().Title("Nom de la station").Value(&in.Name).Validate(requiredText),
			huh.NewInput().Title("Localisation").Value(&in.Location).Validate(requiredText),
			huh.NewInput().Title("Débit nominal (m³/j)").Value(&flow).Validate(func(s string) error {
				_, err := ParseFlow(s)
				return err
			}),
		),
		huh.NewGroup(
			huh.NewSelect[string]().Title("Type de procédé").Options(typeOpts...).Value(&procType),
			huh.NewSelect[schema.Destination]().Title("Destination des eaux traitées").Options(destOpts...).Value(&dest),
		),
	)
	if err != nil {
		return station.NewStation{}, err
	}
	in.NominalFlow, _ = ParseFlow(flow)
	in.ProcessType = procType
	in.Destination = dest
	return in, nil
}

func (p *HuhPrompter) SelectStation(stations []schema.Station) (schema.Station, error) {
	if len(stations) == 0 {
		return schema.Station{}, ErrNoStations
	}
	opts := make([]huh.Option[int], len(stations))
	for i, st := range stations {
		opts[i] = huh.NewOption(fmt.Sprintf("%s (%s)", st.Name, st.Location), i)
	}
	var idx int
	if err := p.run(huh.NewGroup(
		huh.NewSelect[int]().Title("Sélectionnez une station").Options(opts...).Value(&idx),
	)); err != nil {
		return schema.Station{}, err
	}
	return stations[idx], nil
}

func (p *HuhPrompter) EditStates(current *schema.EquipmentStates) (*schema.EquipmentStates, error) {
	pairs := current.Pairs()
	if len(pairs) == 0 {
		return schema.NewEquipmentStates(), nil
	}
	stateOpts := make([]huh.Option[schema.OperatingState], 0, len(schema.OperatingStates))
	for _, s := range schema.OperatingStates {
		stateOpts = append(stateOpts, huh.NewOption(s.Label(), s))
	}

	values := make([]schema.OperatingState, len(pairs))
	groups := make([]*huh.Group, len(pairs))
	for i, pair := range pairs {
		values[i] = pair.State
		groups[i] = huh.NewGroup(
			huh.NewSelect[schema.OperatingState]().
				Title(fmt.Sprintf("Ouvrage %d/%d : %s", i+1, len(pairs), pair.Name)).
				Description("État actuel : " + pair.State.Label()).
				Options(stateOpts...).
				Value(&values[i]),
		)
	}
	if err := p.run(groups...); err != nil {
		return nil, err
	}
	return Changes(current, values), nil
}

func (p *HuhPrompter) SaveFormat() (diagram.Format, bool, error) {
	const none diagram.Format = ""
	f := none
	opts := []huh.Option[diagram.Format]{huh.NewOption("Ne pas enregistrer", none)}
	for _, fm := range diagram.Formats {
		opts = append(opts, huh.NewOption(strings.ToUpper(string(fm)), fm))
	}
	if err := p.run(huh.NewGroup(
		huh.NewSelect[diagram.Format]().Title("Enregistrer le schéma ?").Options(opts...).Value(&f),
	)); err != nil {
		return none, false, err
	}
	return f, f != none, nil
}

func (p *HuhPrompter) Confirm(question string) (bool, error) {
	var ok bool
	err := p.run(huh.NewGroup(
		huh.NewConfirm().Title(question).Affirmative("Oui").Negative("Non").Value(&ok),
	))
	return ok, err
}

// Changes returns the entries of values that differ from current, in
// current's order. values is indexed like current.Pairs().
func Changes(current *schema.EquipmentStates, values []schema.OperatingState) *schema.EquipmentStates {
	out := schema.NewEquipmentStates()
	for i, p := range current.Pairs() {
		if i < len(values) && values[i] != p.State {
			out.Set(p.Name, values[i])
		}
	}
	return out
}

// ParseFlow reads a positive nominal flow, accepting a decimal comma.
func ParseFlow(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil {
		return 0, errors.New("veuillez entrer un nombre valide")
	}
	if v <= 0 {
		return 0, errors.New("le débit doit être positif")
	}
	return v, nil
}

func requiredText(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("ce champ ne peut pas être vide")
	}
	if len([]rune(s)) > 200 {
		return errors.New("200 caractères maximum")
	}
	return nil
}
