// Package station is the application layer over the station and state
// repositories. Every operation the console offers goes through Service.
package station

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/rendis/stationflow/internal/backup"
	"github.com/rendis/stationflow/internal/catalog"
	"github.com/rendis/stationflow/internal/diagram"
	"github.com/rendis/stationflow/internal/journal"
	"github.com/rendis/stationflow/internal/logging"
	"github.com/rendis/stationflow/internal/metrics"
	"github.com/rendis/stationflow/internal/ordering"
	"github.com/rendis/stationflow/internal/store"
	"github.com/rendis/stationflow/pkg/schema"
)

// StationStore is the station persistence the service needs.
type StationStore interface {
	store.Stations
	FindByName(ctx context.Context, name string) (schema.Station, bool, error)
	Save(ctx context.Context, stations []schema.Station) error
	Path() string
}

// StateStore is the snapshot persistence the service needs.
type StateStore interface {
	store.States
	SnapshotAt(ctx context.Context, stationID, updatedAt string) (schema.Snapshot, bool, error)
	LoadAll(ctx context.Context) (*store.Histories, error)
	Normalize(ctx context.Context) (store.NormalizeReport, error)
	Path() string
}

// Recorder journals operations.
type Recorder interface {
	Record(ctx context.Context, stationID, op string, payload any) (*journal.Entry, error)
}

// BackupRunner copies data files aside.
type BackupRunner interface {
	Backup(ctx context.Context, paths ...string) (*backup.Manifest, error)
}

// StationValidator checks a record before it is written.
type StationValidator interface {
	ValidateStation(st *schema.Station) error
}

// Deps wires a Service. Journal, Backup, Metrics and Logger are optional.
type Deps struct {
	Stations  StationStore
	States    StateStore
	Ordering  *ordering.Engine
	Validator StationValidator
	Journal   Recorder
	Backup    BackupRunner
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Service runs station operations.
type Service struct {
	stations  StationStore
	states    StateStore
	ordering  *ordering.Engine
	validator StationValidator
	journal   Recorder
	backup    BackupRunner
	metrics   *metrics.Metrics
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewService returns a Service over d.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		stations:  d.Stations,
		states:    d.States,
		ordering:  d.Ordering,
		validator: d.Validator,
		journal:   d.Journal,
		backup:    d.Backup,
		metrics:   d.Metrics,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// NewStation is what the operator types when creating a station.
type NewStation struct {
	Name        string
	Location    string
	NominalFlow float64
	ProcessType string
	Destination schema.Destination
	// States overrides the initial all-in-service snapshot. Optional.
	States *schema.EquipmentStates
}

// Create validates and stores a station, then records its first snapshot
// with every canonical equipment unit in service unless overridden.
func (s *Service) Create(ctx context.Context, in NewStation) (st schema.Station, snap schema.Snapshot, err error) {
	defer s.metrics.Observe("create", time.Now(), &err)
	ctx = logging.WithOperation(ctx, "create")

	st = schema.Station{
		ID:          s.newID(),
		Name:        strings.TrimSpace(in.Name),
		Location:    strings.TrimSpace(in.Location),
		NominalFlow: in.NominalFlow,
		ProcessType: strings.TrimSpace(in.ProcessType),
		Destination: in.Destination,
		CreatedAt:   s.now().Format(schema.DateLayout),
	}
	ctx = logging.WithStationID(ctx, st.ID)
	log := logging.LogWith(ctx, s.logger)

	if s.validator != nil {
		if err = s.validator.ValidateStation(&st); err != nil {
			return schema.Station{}, schema.Snapshot{}, err
		}
	}
	if _, dup, ferr := s.stations.FindByName(ctx, st.Name); ferr == nil && dup {
		log.WarnContext(ctx, "station name already used", "name", st.Name)
	}

	order, known := s.order(st.ProcessType)
	if !known {
		log.WarnContext(ctx, "no equipment for process type", "process_type", st.ProcessType)
		return schema.Station{}, schema.Snapshot{}, schema.NewErrorf(schema.ErrCodeCatalogMiss,
			"no equipment found for process type %q", st.ProcessType)
	}
	initial := ordering.InitialState(order)
	for _, p := range in.States.Pairs() {
		initial.Set(p.Name, p.State)
	}

	if err = s.stations.Create(ctx, st); err != nil {
		return schema.Station{}, schema.Snapshot{}, err
	}
	snap, err = s.states.AppendSnapshot(ctx, st, initial)
	if err != nil {
		return st, schema.Snapshot{}, err
	}
	s.metrics.SnapshotAppended()
	s.record(ctx, st.ID, schema.OpStationCreated, map[string]any{
		"nom":          st.Name,
		"type_procede": st.ProcessType,
		"equipment":    snap.States.Len(),
	})
	log.InfoContext(ctx, "station created", "name", st.Name, "process_type", st.ProcessType)
	return st, snap, nil
}

// List returns all stations in file order.
func (s *Service) List(ctx context.Context) (stations []schema.Station, err error) {
	defer s.metrics.Observe("list", time.Now(), &err)
	stations, err = s.stations.List(ctx)
	if err == nil {
		s.metrics.SetStations(len(stations))
	}
	return stations, err
}

// Find resolves ref as a station ID first, then as a name ignoring case.
func (s *Service) Find(ctx context.Context, ref string) (schema.Station, error) {
	ref = strings.TrimSpace(ref)
	st, ok, err := s.stations.Get(ctx, ref)
	if err != nil {
		return schema.Station{}, err
	}
	if ok {
		return st, nil
	}
	st, ok, err = s.stations.FindByName(ctx, ref)
	if err != nil {
		return schema.Station{}, err
	}
	if !ok {
		return schema.Station{}, schema.NewErrorf(schema.ErrCodeNotFound, "station %q not found", ref)
	}
	return st, nil
}

// CurrentStates returns the latest snapshot of st reconciled with its
// canonical order. A station without history gets the initial state.
func (s *Service) CurrentStates(ctx context.Context, st schema.Station) (*schema.EquipmentStates, string, error) {
	order, _ := s.order(st.ProcessType)
	snap, ok, err := s.states.LatestState(ctx, st.ID)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return ordering.InitialState(order), "", nil
	}
	return ordering.Reconcile(snap.States, order), snap.UpdatedAt, nil
}

// UpdateStates appends a snapshot where changes are laid over the latest
// state. Unknown state values are rejected.
func (s *Service) UpdateStates(ctx context.Context, stationID string, changes *schema.EquipmentStates) (snap schema.Snapshot, err error) {
	defer s.metrics.Observe("update", time.Now(), &err)
	ctx = logging.WithStationID(logging.WithOperation(ctx, "update"), stationID)

	if err = checkStates(changes); err != nil {
		return schema.Snapshot{}, err
	}
	st, err := s.get(ctx, stationID)
	if err != nil {
		return schema.Snapshot{}, err
	}
	snap, err = s.states.AppendSnapshot(ctx, st, changes)
	if err != nil {
		return schema.Snapshot{}, err
	}
	s.metrics.SnapshotAppended()
	s.record(ctx, st.ID, schema.OpSnapshotAdded, map[string]any{
		"date_maj": snap.UpdatedAt,
		"changes":  changes,
	})
	return snap, nil
}

// EditSnapshot rewrites the states of the snapshot stamped updatedAt in
// place. The snapshot keeps its timestamps.
func (s *Service) EditSnapshot(ctx context.Context, stationID, updatedAt string, changes *schema.EquipmentStates) (snap schema.Snapshot, err error) {
	defer s.metrics.Observe("edit", time.Now(), &err)
	ctx = logging.WithStationID(logging.WithOperation(ctx, "edit"), stationID)

	if err = checkStates(changes); err != nil {
		return schema.Snapshot{}, err
	}
	st, err := s.get(ctx, stationID)
	if err != nil {
		return schema.Snapshot{}, err
	}
	history, err := s.states.LoadHistory(ctx, st.ID)
	if err != nil {
		return schema.Snapshot{}, err
	}
	idx := -1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].UpdatedAt == updatedAt {
			idx = i
			break
		}
	}
	if idx < 0 {
		return schema.Snapshot{}, schema.NewErrorf(schema.ErrCodeNotFound, "no snapshot at %s", updatedAt).WithStation(st.ID)
	}

	order, _ := s.order(st.ProcessType)
	merged := history[idx].States.Clone()
	for _, p := range changes.Pairs() {
		merged.Set(p.Name, p.State)
	}
	history[idx].States = ordering.Reconcile(merged, order)
	if err = s.states.SaveHistory(ctx, st.ID, history); err != nil {
		return schema.Snapshot{}, err
	}
	s.record(ctx, st.ID, schema.OpSnapshotAdded, map[string]any{
		"date_maj": updatedAt,
		"edited":   true,
		"changes":  changes,
	})
	return history[idx], nil
}

// Latest returns the most recent snapshot of a station. ok is false when the
// station has no history.
func (s *Service) Latest(ctx context.Context, stationID string) (schema.Snapshot, bool, error) {
	return s.states.LatestState(ctx, stationID)
}

// History returns the snapshots of a station in stored order.
func (s *Service) History(ctx context.Context, stationID string) ([]schema.Snapshot, error) {
	st, err := s.get(ctx, stationID)
	if err != nil {
		return nil, err
	}
	return s.states.LoadHistory(ctx, st.ID)
}

// Delete removes the station and its whole state history. ok is false when
// the station did not exist.
func (s *Service) Delete(ctx context.Context, stationID string) (ok bool, err error) {
	defer s.metrics.Observe("delete", time.Now(), &err)
	ctx = logging.WithStationID(logging.WithOperation(ctx, "delete"), stationID)
	log := logging.LogWith(ctx, s.logger)

	st, found, err := s.stations.Get(ctx, stationID)
	if err != nil {
		return false, err
	}
	// History first, so a failure never leaves snapshots without a station.
	hadHistory, err := s.states.DeleteStation(ctx, stationID)
	if err != nil {
		return false, err
	}
	removed, err := s.stations.Delete(ctx, stationID)
	if err != nil {
		return false, err
	}
	if !removed && !hadHistory {
		return false, nil
	}
	s.record(ctx, stationID, schema.OpStationDeleted, map[string]any{
		"nom":     st.Name,
		"found":   found,
		"history": hadHistory,
	})
	log.InfoContext(ctx, "station deleted", "name", st.Name, "history", hadHistory)
	return true, nil
}

// DiagramRequest selects what Diagram lays out.
type DiagramRequest struct {
	StationID string
	// At selects a snapshot by date_maj or date. Empty means latest.
	At string
}

// Diagram builds the flow diagram layout of a station.
func (s *Service) Diagram(ctx context.Context, req DiagramRequest) (l *diagram.Layout, err error) {
	defer s.metrics.Observe("diagram", time.Now(), &err)
	ctx = logging.WithStationID(logging.WithOperation(ctx, "diagram"), req.StationID)

	st, err := s.get(ctx, req.StationID)
	if err != nil {
		return nil, err
	}
	order, _ := s.order(st.ProcessType)

	var (
		states    *schema.EquipmentStates
		updatedAt string
	)
	if req.At != "" {
		snap, ok, err := s.states.SnapshotAt(ctx, st.ID, req.At)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound, "no snapshot at %s", req.At).WithStation(st.ID)
		}
		states, updatedAt = ordering.Reconcile(snap.States, order), snap.UpdatedAt
	} else if states, updatedAt, err = s.CurrentStates(ctx, st); err != nil {
		return nil, err
	}

	opts := diagram.Options{
		Title:       diagram.Title(st.Name, st.ProcessType, updatedAt),
		Destination: st.Destination,
		Logger:      logging.LogWith(ctx, s.logger),
	}
	if pt, ok := s.processType(st.ProcessType); ok {
		for _, b := range pt.SludgeBranches() {
			opts.Branches = append(opts.Branches, diagram.Branch{Source: b.Source, Destination: b.Destination, Label: b.Label})
		}
		opts.SludgeLine = pt.SludgeLine()
	}
	return diagram.Build(diagram.RecordsFromStates(states), opts), nil
}

// MigrateReport summarizes a migration run.
type MigrateReport struct {
	Backup           *backup.Manifest
	States           store.NormalizeReport
	StationsStripped int
	SnapshotsCreated int
}

// Migrate backs up both data files, rewrites the state file in canonical
// shape and moves the obsolete ouvrages field of stations into a first
// snapshot when the station has no history yet.
func (s *Service) Migrate(ctx context.Context) (rep MigrateReport, err error) {
	defer s.metrics.Observe("migrate", time.Now(), &err)
	ctx = logging.WithOperation(ctx, "migrate")
	log := logging.LogWith(ctx, s.logger)

	if s.backup != nil {
		if rep.Backup, err = s.backup.Backup(ctx, s.stations.Path(), s.states.Path()); err != nil && rep.Backup == nil {
			return rep, err
		}
		if err != nil {
			log.WarnContext(ctx, "backup upload incomplete", "error", err)
			err = nil
		}
		s.record(ctx, "", schema.OpBackupCreated, rep.Backup)
	}

	if rep.States, err = s.states.Normalize(ctx); err != nil {
		return rep, err
	}

	stations, err := s.stations.List(ctx)
	if err != nil {
		return rep, err
	}
	histories, err := s.states.LoadAll(ctx)
	if err != nil {
		return rep, err
	}
	now := s.now()
	for i := range stations {
		st := &stations[i]
		if len(st.LegacyEquipment) == 0 {
			continue
		}
		if len(histories.Get(st.ID)) == 0 {
			if states, ok := legacyEquipment(st.LegacyEquipment); ok {
				date := st.CreatedAt
				if date == "" {
					date = now.Format(schema.DateLayout)
				}
				snap := schema.Snapshot{
					StationID:   st.ID,
					StationName: st.Name,
					Date:        date,
					UpdatedAt:   now.Format(schema.TimestampLayout),
					States:      states,
				}
				if err = s.states.SaveHistory(ctx, st.ID, []schema.Snapshot{snap}); err != nil {
					return rep, err
				}
				rep.SnapshotsCreated++
			}
		}
		st.LegacyEquipment = nil
		rep.StationsStripped++
	}
	if rep.StationsStripped > 0 {
		if err = s.stations.Save(ctx, stations); err != nil {
			return rep, err
		}
		s.record(ctx, "", schema.OpStationsCleaned, map[string]any{"stations": rep.StationsStripped})
	}

	s.record(ctx, "", schema.OpStatesMigrated, map[string]any{
		"shape":             rep.States.Shape,
		"repaired":          rep.States.Repaired,
		"rewritten":         rep.States.Rewritten,
		"snapshots_created": rep.SnapshotsCreated,
	})
	log.InfoContext(ctx, "migration done",
		"shape", rep.States.Shape,
		"rewritten", rep.States.Rewritten,
		"stripped", rep.StationsStripped,
		"snapshots_created", rep.SnapshotsCreated)
	return rep, nil
}

// Backup copies both data files aside.
func (s *Service) Backup(ctx context.Context) (man *backup.Manifest, err error) {
	defer s.metrics.Observe("backup", time.Now(), &err)
	if s.backup == nil {
		return nil, schema.NewError(schema.ErrCodeStore, "backups are not configured")
	}
	man, err = s.backup.Backup(ctx, s.stations.Path(), s.states.Path())
	if man != nil {
		s.record(ctx, "", schema.OpBackupCreated, man)
	}
	return man, err
}

// Order exposes the canonical order of a process type.
func (s *Service) Order(processType string) ([]string, bool) {
	return s.order(processType)
}

// ProcessTypes lists the catalog identifiers.
func (s *Service) ProcessTypes() []string {
	if s.ordering == nil || s.ordering.Catalog() == nil {
		return nil
	}
	return s.ordering.Catalog().IDs()
}

func (s *Service) get(ctx context.Context, id string) (schema.Station, error) {
	st, ok, err := s.stations.Get(ctx, id)
	if err != nil {
		return schema.Station{}, err
	}
	if !ok {
		return schema.Station{}, schema.NewError(schema.ErrCodeNotFound, "station not found").WithStation(id)
	}
	return st, nil
}

func (s *Service) order(processType string) ([]string, bool) {
	if s.ordering == nil {
		return nil, false
	}
	return s.ordering.Order(processType)
}

func (s *Service) processType(id string) (catalog.ProcessType, bool) {
	if s.ordering == nil || s.ordering.Catalog() == nil {
		return catalog.ProcessType{}, false
	}
	return s.ordering.ProcessType(id)
}

// record journals op. The JSON files are the source of truth, so a journal
// failure is logged and ignored.
func (s *Service) record(ctx context.Context, stationID, op string, payload any) {
	if s.journal == nil {
		return
	}
	if _, err := s.journal.Record(ctx, stationID, op, payload); err != nil {
		logging.LogWith(ctx, s.logger).WarnContext(ctx, "journal write failed", "op", op, "error", err)
	}
}

func checkStates(changes *schema.EquipmentStates) error {
	if changes.Len() == 0 {
		return schema.NewError(schema.ErrCodeValidation, "no equipment state given")
	}
	var bad []string
	for _, p := range changes.Pairs() {
		if !p.State.Valid() {
			bad = append(bad, p.Name+"="+string(p.State))
		}
	}
	if len(bad) > 0 {
		return schema.NewErrorf(schema.ErrCodeValidation, "unknown state for %s", strings.Join(bad, ", ")).
			WithDetails(map[string]any{"valid": schema.OperatingStates})
	}
	return nil
}

// legacyEquipment reads the obsolete ouvrages object. Values that are not
// state strings fall back to the default state.
func legacyEquipment(raw json.RawMessage) (*schema.EquipmentStates, bool) {
	m := orderedmap.New[string, json.RawMessage]()
	if err := m.UnmarshalJSON(raw); err != nil {
		return nil, false
	}
	out := schema.NewEquipmentStates()
	for p := m.Oldest(); p != nil; p = p.Next() {
		state := schema.DefaultState
		var v string
		if err := json.Unmarshal(p.Value, &v); err == nil {
			state, _ = schema.ParseOperatingState(v)
		}
		out.Set(p.Key, state)
	}
	return out, out.Len() > 0
}
