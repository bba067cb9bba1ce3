package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestScheduler(start time.Time) (*Scheduler, *clock) {
	c := &clock{t: start}
	s := NewScheduler(time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = c.now
	return s, c
}

func counting(n *atomic.Int32, err error) Task {
	return func(context.Context) error {
		n.Add(1)
		return err
	}
}

func TestCalculateNextRun(t *testing.T) {
	sched, _ := newTestScheduler(time.Now())
	from := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	// Every hour at minute 0.
	next, err := sched.CalculateNextRun("0 * * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 10, 13, 0, 0, 0, time.UTC), next)

	// Daily at 02:00.
	next, err = sched.CalculateNextRun("0 2 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 11, 2, 0, 0, 0, time.UTC), next)

	// Descriptor.
	next, err = sched.CalculateNextRun("@daily", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC), next)

	// Invalid expression.
	_, err = sched.CalculateNextRun("invalid cron", from)
	require.Error(t, err)
}

func TestAdd(t *testing.T) {
	start := time.Date(2026, 2, 10, 12, 30, 0, 0, time.UTC)
	sched, _ := newTestScheduler(start)

	job, err := sched.Add("backup", "0 * * * *", func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 10, 13, 0, 0, 0, time.UTC), job.NextRunAt)

	_, err = sched.Add("backup", "@daily", func(context.Context) error { return nil })
	assert.ErrorContains(t, err, "already scheduled")

	_, err = sched.Add("metrics", "every tuesday", func(context.Context) error { return nil })
	assert.Error(t, err)
	assert.Len(t, sched.Jobs(), 1)
}

func TestTickRunsDueJobsOnly(t *testing.T) {
	start := time.Date(2026, 2, 10, 12, 30, 0, 0, time.UTC)
	sched, c := newTestScheduler(start)

	var hourly, daily atomic.Int32
	_, err := sched.Add("hourly", "0 * * * *", counting(&hourly, nil))
	require.NoError(t, err)
	_, err = sched.Add("daily", "0 2 * * *", counting(&daily, nil))
	require.NoError(t, err)

	ctx := context.Background()
	sched.Tick(ctx)
	assert.Equal(t, int32(0), hourly.Load())

	c.advance(30 * time.Minute)
	sched.Tick(ctx)
	assert.Equal(t, int32(1), hourly.Load())
	assert.Equal(t, int32(0), daily.Load())

	// Same instant again: the next run moved forward.
	sched.Tick(ctx)
	assert.Equal(t, int32(1), hourly.Load())
}

func TestJobUpdateAfterRun(t *testing.T) {
	start := time.Date(2026, 2, 10, 12, 59, 0, 0, time.UTC)
	sched, c := newTestScheduler(start)

	var ok, failed atomic.Int32
	good, err := sched.Add("good", "0 * * * *", counting(&ok, nil))
	require.NoError(t, err)
	bad, err := sched.Add("bad", "0 * * * *", counting(&failed, errors.New("disk full")))
	require.NoError(t, err)

	c.advance(time.Minute)
	sched.Tick(context.Background())

	assert.Equal(t, StatusSuccess, good.LastStatus)
	assert.Equal(t, StatusError, bad.LastStatus)
	assert.Equal(t, c.t, good.LastRunAt)
	assert.Equal(t, time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC), bad.NextRunAt)
}

func TestDedupPreventsDoubleRun(t *testing.T) {
	start := time.Date(2026, 2, 10, 12, 59, 0, 0, time.UTC)
	sched, c := newTestScheduler(start)

	var n atomic.Int32
	_, err := sched.Add("backup", "0 * * * *", counting(&n, nil))
	require.NoError(t, err)
	c.advance(time.Minute)

	require.True(t, sched.tryAcquire("backup"))
	sched.Tick(context.Background())
	assert.Equal(t, int32(0), n.Load())

	sched.releaseJob("backup")
	sched.Tick(context.Background())
	assert.Equal(t, int32(1), n.Load())
}

func TestStartStop(t *testing.T) {
	sched, _ := newTestScheduler(time.Now())
	ctx := context.Background()

	require.NoError(t, sched.Start(ctx))

	// Double start should error.
	err := sched.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")

	require.NoError(t, sched.Stop())

	// Stop again should be a no-op.
	require.NoError(t, sched.Stop())
}
