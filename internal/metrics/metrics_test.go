package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()

	var err error
	m.Observe("create", time.Now(), &err)
	err = errors.New("disk full")
	m.Observe("create", time.Now(), &err)
	m.Observe("create", time.Now(), nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("create", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("create", OutcomeError)))
}

func TestCountersAndGauge(t *testing.T) {
	m := New()
	m.CatalogMiss("inconnu")
	m.CatalogMiss("inconnu")
	m.SnapshotAppended()
	m.SetStations(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CatalogMisses.WithLabelValues("inconnu")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Snapshots))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Stations))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe("x", time.Now(), nil)
		m.CatalogMiss("x")
		m.SnapshotAppended()
		m.SetStations(1)
	})
	assert.NoError(t, m.WriteTextfile("/nonexistent/ignored.prom"))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.SnapshotAppended()
	path := filepath.Join(t.TempDir(), "stationflow.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "stationflow_snapshots_appended_total 1")
}
