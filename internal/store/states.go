package store

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rendis/stationflow/internal/logging"
	"github.com/rendis/stationflow/internal/ordering"
	"github.com/rendis/stationflow/pkg/schema"
)

// StateRepository stores every station's snapshot history in one JSON object
// keyed by station id. It never reads the catalog itself; key order comes
// from the Orderer.
type StateRepository struct {
	path    string
	orderer Orderer
	logger  *slog.Logger
	now     func() time.Time
	writer  *fileWriter

	mu sync.Mutex
}

// NewStateRepository returns a repository over path. logger may be nil.
func NewStateRepository(path string, orderer Orderer, logger *slog.Logger) *StateRepository {
	if logger == nil {
		logger = logging.Discard()
	}
	return &StateRepository{
		path:    path,
		orderer: orderer,
		logger:  logger,
		now:     time.Now,
		writer:  newFileWriter(),
	}
}

// Path returns the backing file.
func (r *StateRepository) Path() string { return r.path }

// SetClock replaces the time source used for new snapshots.
func (r *StateRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// LoadAll returns every history, normalized to the canonical layout.
func (r *StateRepository) LoadAll(ctx context.Context) (*Histories, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	res, err := r.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	return res.histories, nil
}

// LoadHistory returns the snapshots of one station, oldest first. Snapshots
// with equal timestamps keep their stored order.
func (r *StateRepository) LoadHistory(ctx context.Context, stationID string) ([]schema.Snapshot, error) {
	h, err := r.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	snaps := h.Get(stationID)
	sortByUpdate(snaps)
	return snaps, nil
}

// SaveHistory replaces the history of one station.
func (r *StateRepository) SaveHistory(ctx context.Context, stationID string, snaps []schema.Snapshot) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.loadLocked(ctx)
	if err != nil {
		return err
	}
	out := make([]schema.Snapshot, len(snaps))
	for i, s := range snaps {
		s.StationID = stationID
		if s.States == nil {
			s.States = schema.NewEquipmentStates()
		}
		out[i] = s
	}
	res.histories.set(stationID, out)
	return r.writer.writeJSON(r.path, res.histories)
}

// AppendSnapshot records a new snapshot for st stamped with the current time.
// states is laid over the latest snapshot so entries the caller left out are
// carried forward, then reconciled with the canonical order of st's process
// type. Earlier snapshots are not touched.
func (r *StateRepository) AppendSnapshot(ctx context.Context, st schema.Station, states *schema.EquipmentStates) (schema.Snapshot, error) {
	if err := checkCtx(ctx); err != nil {
		return schema.Snapshot{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.loadLocked(ctx)
	if err != nil {
		return schema.Snapshot{}, err
	}
	history := res.histories.Get(st.ID)

	merged := schema.NewEquipmentStates()
	if latest, ok := latestOf(history); ok {
		merged = latest.States.Clone()
	}
	for _, p := range states.Pairs() {
		merged.Set(p.Name, p.State)
	}

	var order []string
	if r.orderer != nil {
		order, _ = r.orderer.Order(st.ProcessType)
	}

	now := r.now()
	snap := schema.Snapshot{
		StationID:   st.ID,
		StationName: st.Name,
		Date:        now.Format(schema.DateLayout),
		UpdatedAt:   now.Format(schema.TimestampLayout),
		States:      ordering.Reconcile(merged, order),
	}
	res.histories.set(st.ID, append(history, snap))
	if err := r.writer.writeJSON(r.path, res.histories); err != nil {
		return schema.Snapshot{}, err
	}
	logging.LogWith(ctx, r.logger).DebugContext(ctx, "snapshot appended",
		"station", st.ID, "date_maj", snap.UpdatedAt, "equipment", snap.States.Len())
	return snap, nil
}

// LatestState returns the snapshot with the greatest date_maj. ok is false
// when the station has no history; that is not an error.
func (r *StateRepository) LatestState(ctx context.Context, stationID string) (schema.Snapshot, bool, error) {
	h, err := r.LoadAll(ctx)
	if err != nil {
		return schema.Snapshot{}, false, err
	}
	snap, ok := latestOf(h.Get(stationID))
	return snap, ok, nil
}

// SnapshotAt returns the last snapshot whose date_maj equals updatedAt, or
// whose date equals it when only a day is given.
func (r *StateRepository) SnapshotAt(ctx context.Context, stationID, updatedAt string) (schema.Snapshot, bool, error) {
	h, err := r.LoadAll(ctx)
	if err != nil {
		return schema.Snapshot{}, false, err
	}
	updatedAt = strings.TrimSpace(updatedAt)
	snaps := h.Get(stationID)
	sortByUpdate(snaps)
	for i := len(snaps) - 1; i >= 0; i-- {
		if snaps[i].UpdatedAt == updatedAt || snaps[i].Date == updatedAt {
			return snaps[i], true, nil
		}
	}
	return schema.Snapshot{}, false, nil
}

// DeleteStation removes the whole history of a station.
func (r *StateRepository) DeleteStation(ctx context.Context, stationID string) (bool, error) {
	if err := checkCtx(ctx); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.loadLocked(ctx)
	if err != nil {
		return false, err
	}
	if !res.histories.delete(stationID) {
		return false, nil
	}
	return true, r.writer.writeJSON(r.path, res.histories)
}

// NormalizeReport describes what Normalize found.
type NormalizeReport struct {
	Shape     string
	Stations  int
	Snapshots int
	Repaired  int
	Rewritten bool
}

// Normalize rewrites the file in the canonical layout when a legacy layout or
// legacy field names were found.
func (r *StateRepository) Normalize(ctx context.Context) (NormalizeReport, error) {
	if err := checkCtx(ctx); err != nil {
		return NormalizeReport{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.loadLocked(ctx)
	if err != nil {
		return NormalizeReport{}, err
	}
	rep := NormalizeReport{
		Shape:     res.shape.String(),
		Stations:  res.histories.Len(),
		Snapshots: res.histories.Count(),
		Repaired:  res.repaired,
	}
	if !res.needsRewrite() {
		return rep, nil
	}
	if err := r.writer.writeJSON(r.path, res.histories); err != nil {
		return rep, err
	}
	rep.Rewritten = true
	return rep, nil
}

func (r *StateRepository) loadLocked(ctx context.Context) (*parseResult, error) {
	data, exists, err := readFile(r.path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &parseResult{histories: newHistories(), shape: shapeEmpty}, nil
	}
	res, err := parseStates(data, r.now())
	if err != nil {
		dst, qerr := quarantine(r.path, data, r.now().Format("20060102_150405"))
		r.logger.ErrorContext(ctx, "state file is not valid JSON", "path", r.path, "error", err,
			"copy", dst, "copy_error", qerr)
		return &parseResult{histories: newHistories(), shape: shapeUnknown}, nil
	}
	if res.shape == shapeSingle || res.shape == shapeFlat {
		r.logger.WarnContext(ctx, "legacy state layout, normalized in memory", "shape", res.shape.String())
	}
	for _, issue := range res.issues {
		r.logger.WarnContext(ctx, "state data quality", "issue", issue)
	}
	return res, nil
}

// latestOf picks the snapshot with the greatest date_maj; on ties the last
// one in stored order wins.
func latestOf(snaps []schema.Snapshot) (schema.Snapshot, bool) {
	if len(snaps) == 0 {
		return schema.Snapshot{}, false
	}
	best := 0
	for i := 1; i < len(snaps); i++ {
		if snaps[i].UpdatedAt >= snaps[best].UpdatedAt {
			best = i
		}
	}
	return snaps[best], true
}

func sortByUpdate(snaps []schema.Snapshot) {
	slices.SortStableFunc(snaps, func(a, b schema.Snapshot) int {
		return strings.Compare(a.UpdatedAt, b.UpdatedAt)
	})
}
