// Package backup copies the data files aside before destructive operations
// and records a SHA-256 manifest next to the copies. Copies can also be
// pushed to S3.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rendis/stationflow/internal/logging"
	"github.com/rendis/stationflow/pkg/schema"
)

// StampLayout is the timestamp suffix of backup copies.
const StampLayout = "20060102_150405"

// Sink receives a backup object.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
	String() string
}

// Entry is one copied file.
type Entry struct {
	Source string `json:"source"`
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Manifest describes one backup run.
type Manifest struct {
	Stamp    string   `json:"stamp"`
	Dir      string   `json:"dir"`
	File     string   `json:"file"`
	Entries  []Entry  `json:"entries"`
	Uploaded []string `json:"uploaded,omitempty"`
}

// Manager writes local copies into Dir and forwards them to extra sinks.
type Manager struct {
	Dir    string
	Sinks  []Sink
	Logger *slog.Logger
	Now    func() time.Time
}

// NewManager returns a manager writing into dir.
func NewManager(dir string, logger *slog.Logger, sinks ...Sink) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{Dir: dir, Sinks: sinks, Logger: logger, Now: time.Now}
}

// Backup copies every existing path to "<base>.bak.<stamp>" and writes
// "MANIFEST_<stamp>.sha256". Missing sources are skipped. Sink failures are
// logged and returned joined after the local copy succeeded.
func (m *Manager) Backup(ctx context.Context, paths ...string) (*Manifest, error) {
	stamp := m.Now().Format(StampLayout)
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "create backup directory %s", m.Dir).WithCause(err)
	}

	man := &Manifest{Stamp: stamp, Dir: m.Dir, File: "MANIFEST_" + stamp + ".sha256"}
	objects := make(map[string][]byte)
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, schema.NewError(schema.ErrCodeCancelled, "backup cancelled").WithCause(err)
		}
		data, err := os.ReadFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "read %s", filepath.Base(p)).WithCause(err)
		}
		name := filepath.Base(p) + ".bak." + stamp
		if err := os.WriteFile(filepath.Join(m.Dir, name), data, 0o644); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "write backup %s", name).WithCause(err)
		}
		sum, err := sha256Hex(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		man.Entries = append(man.Entries, Entry{Source: p, Name: name, SHA256: sum, Size: int64(len(data))})
		objects[name] = data
	}

	sums := formatChecksums(man.Entries)
	if err := os.WriteFile(filepath.Join(m.Dir, man.File), sums, 0o644); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "write manifest %s", man.File).WithCause(err)
	}
	objects[man.File] = sums
	m.Logger.InfoContext(ctx, "backup written", "dir", m.Dir, "files", len(man.Entries), "stamp", stamp)

	names := make([]string, 0, len(objects))
	for name := range objects {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, sink := range m.Sinks {
		failed := false
		for _, name := range names {
			if err := sink.Put(ctx, name, objects[name]); err != nil {
				m.Logger.ErrorContext(ctx, "backup upload failed", "sink", sink.String(), "object", name, "error", err)
				errs = append(errs, fmt.Errorf("%s: %s: %w", sink, name, err))
				failed = true
				break
			}
		}
		if !failed {
			man.Uploaded = append(man.Uploaded, sink.String())
		}
	}
	return man, errors.Join(errs...)
}

// Verify re-hashes the copies listed in a manifest file and returns the
// names whose digest no longer matches or that are missing.
func Verify(manifestPath string) ([]string, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sums, err := parseChecksumFile(f)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(manifestPath)
	var bad []string
	for name, want := range sums {
		got, err := sha256File(filepath.Join(dir, name))
		if err != nil || got != want {
			bad = append(bad, name)
		}
	}
	sort.Strings(bad)
	return bad, nil
}
