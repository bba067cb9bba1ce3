package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rendis/stationflow/internal/logging"
	"github.com/rendis/stationflow/pkg/schema"
)

// StationRepository stores stations in a JSON array file. Reads go through a
// cache that is re-validated against the file's modification time and size on
// every call.
type StationRepository struct {
	path      string
	validator DocValidator
	logger    *slog.Logger
	now       func() time.Time
	writer    *fileWriter

	mu    sync.Mutex
	cache *stationCache
}

type stationCache struct {
	stations []schema.Station
	modTime  time.Time
	size     int64
}

// NewStationRepository returns a repository over path. validator and logger may be nil.
func NewStationRepository(path string, validator DocValidator, logger *slog.Logger) *StationRepository {
	if logger == nil {
		logger = logging.Discard()
	}
	return &StationRepository{
		path:      path,
		validator: validator,
		logger:    logger,
		now:       time.Now,
		writer:    newFileWriter(),
	}
}

// Path returns the backing file.
func (r *StationRepository) Path() string { return r.path }

// Init creates the backing file with an empty list if it does not exist.
func (r *StationRepository) Init(ctx context.Context) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := os.Stat(r.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return storeErr(r.path, "stat", err)
	}
	return r.saveLocked([]schema.Station{})
}

// List returns all stations in file order.
func (r *StationRepository) List(ctx context.Context) ([]schema.Station, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(ctx, false)
}

// Reload re-reads the file. Without force it still skips the read when the
// file has not changed since the cached copy.
func (r *StationRepository) Reload(ctx context.Context, force bool) ([]schema.Station, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(ctx, force)
}

// Invalidate drops the cached list; the next read goes to disk.
func (r *StationRepository) Invalidate() {
	r.mu.Lock()
	r.cache = nil
	r.mu.Unlock()
}

// Get returns the station with id.
func (r *StationRepository) Get(ctx context.Context, id string) (schema.Station, bool, error) {
	stations, err := r.List(ctx)
	if err != nil {
		return schema.Station{}, false, err
	}
	for _, st := range stations {
		if st.ID == id {
			return st, true, nil
		}
	}
	return schema.Station{}, false, nil
}

// FindByName returns the first station whose name matches, ignoring case.
func (r *StationRepository) FindByName(ctx context.Context, name string) (schema.Station, bool, error) {
	stations, err := r.List(ctx)
	if err != nil {
		return schema.Station{}, false, err
	}
	name = strings.TrimSpace(name)
	for _, st := range stations {
		if strings.EqualFold(strings.TrimSpace(st.Name), name) {
			return st, true, nil
		}
	}
	return schema.Station{}, false, nil
}

// Create appends st. The ID must be unused.
func (r *StationRepository) Create(ctx context.Context, st schema.Station) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stations, err := r.loadLocked(ctx, false)
	if err != nil {
		return err
	}
	for _, existing := range stations {
		if existing.ID == st.ID {
			return schema.NewErrorf(schema.ErrCodeConflict, "station id already exists").WithStation(st.ID)
		}
	}
	return r.saveLocked(append(stations, st))
}

// Update replaces the station with the same ID, keeping its position.
func (r *StationRepository) Update(ctx context.Context, st schema.Station) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stations, err := r.loadLocked(ctx, false)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(stations, func(s schema.Station) bool { return s.ID == st.ID })
	if i < 0 {
		return schema.NewError(schema.ErrCodeNotFound, "station not found").WithStation(st.ID)
	}
	stations[i] = st
	return r.saveLocked(stations)
}

// Delete removes the station with id and reports whether it existed.
func (r *StationRepository) Delete(ctx context.Context, id string) (bool, error) {
	if err := checkCtx(ctx); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stations, err := r.loadLocked(ctx, false)
	if err != nil {
		return false, err
	}
	match := func(s schema.Station) bool { return s.ID == id }
	if !slices.ContainsFunc(stations, match) {
		return false, nil
	}
	return true, r.saveLocked(slices.DeleteFunc(stations, match))
}

// Save replaces the whole list.
func (r *StationRepository) Save(ctx context.Context, stations []schema.Station) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(stations)
}

func (r *StationRepository) saveLocked(stations []schema.Station) error {
	if stations == nil {
		stations = []schema.Station{}
	}
	if err := r.writer.writeJSON(r.path, stations); err != nil {
		r.cache = nil
		return err
	}
	info, err := os.Stat(r.path)
	if err != nil {
		r.cache = nil
		return nil
	}
	r.cache = &stationCache{stations: slices.Clone(stations), modTime: info.ModTime(), size: info.Size()}
	return nil
}

func (r *StationRepository) loadLocked(ctx context.Context, force bool) ([]schema.Station, error) {
	info, err := os.Stat(r.path)
	if errors.Is(err, os.ErrNotExist) {
		if err := r.saveLocked([]schema.Station{}); err != nil {
			return nil, err
		}
		return []schema.Station{}, nil
	}
	if err != nil {
		return nil, storeErr(r.path, "stat", err)
	}
	if !force && r.cache != nil && r.cache.modTime.Equal(info.ModTime()) && r.cache.size == info.Size() {
		return slices.Clone(r.cache.stations), nil
	}

	data, _, err := readFile(r.path)
	if err != nil {
		return nil, err
	}
	stations, reset := r.decode(ctx, data)
	if reset {
		if err := r.saveLocked([]schema.Station{}); err != nil {
			return nil, err
		}
		return []schema.Station{}, nil
	}
	r.cache = &stationCache{stations: stations, modTime: info.ModTime(), size: info.Size()}
	return slices.Clone(stations), nil
}

// decode parses the stations document. reset is true when the top-level
// value is not an array and the file should be rewritten empty.
func (r *StationRepository) decode(ctx context.Context, data []byte) (stations []schema.Station, reset bool) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var doc any
		if json.Unmarshal(data, &doc) == nil {
			r.logger.WarnContext(ctx, "stations file is not a list, resetting", "path", r.path)
			return nil, true
		}
		dst, qerr := quarantine(r.path, data, r.now().Format("20060102_150405"))
		r.logger.ErrorContext(ctx, "stations file is not valid JSON", "path", r.path, "error", err,
			"copy", dst, "copy_error", qerr)
		return []schema.Station{}, false
	}

	if r.validator != nil {
		var doc any
		_ = json.Unmarshal(data, &doc)
		r.validator.ValidateStations(doc).Log(ctx, r.logger, "station data quality")
	}

	stations = make([]schema.Station, 0, len(raw))
	for i, item := range raw {
		var st schema.Station
		if err := json.Unmarshal(item, &st); err != nil {
			r.logger.WarnContext(ctx, "skipping unreadable station record", "index", i, "error", err)
			continue
		}
		stations = append(stations, st)
	}
	return stations, false
}
