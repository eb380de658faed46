package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/sis-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/sis"
)

type fakeEventsAPI struct {
	counts   sis.EventCounts
	err      error
	gotOn    time.Time
	gotBegin time.Time
}

func (f *fakeEventsAPI) EventCounts(_ context.Context, _ []string, on time.Time) (sis.EventCounts, error) {
	f.gotOn = on
	return f.counts, f.err
}

func (f *fakeEventsAPI) EventBackfill(_ context.Context, _ []string, begin time.Time) (sis.EventCounts, error) {
	f.gotBegin = begin
	return f.counts, f.err
}

var t0 = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

// newBackfilled returns an aggregator loaded with enrollment [2,0,5]
// at t0, t0+1m, t0+2m, with now frozen at t0+window.
func newBackfilled(t *testing.T, api *fakeEventsAPI, window time.Duration) *Aggregator {
	t.Helper()
	api.counts = sis.EventCounts{
		"enrollment": {Points: []int{2, 0, 5}},
	}
	a := New(api, []string{"enrollment"}, window, logger.NewNop())
	a.now = func() time.Time { return t0.Add(window) }
	require.NoError(t, a.Backfill(context.Background()))
	return a
}

func TestBackfillBuildsSeriesAndCumulative(t *testing.T) {
	api := &fakeEventsAPI{}
	a := newBackfilled(t, api, 3*time.Minute)

	assert.Equal(t, t0, api.gotBegin)

	snap := a.Snapshot()
	require.Len(t, snap.Series["enrollment"], 3)
	assert.Equal(t, []Point{{t0, 2}, {t0.Add(time.Minute), 0}, {t0.Add(2 * time.Minute), 5}},
		snap.Series["enrollment"])
	assert.Equal(t, []Point{{t0, 2}, {t0.Add(time.Minute), 2}, {t0.Add(2 * time.Minute), 7}},
		snap.Cumulative)
	assert.Equal(t, 7, snap.Total)
	assert.Equal(t, 5, snap.RateAxisMax)
	assert.Equal(t, 7, snap.CumulativeAxisMax)
	assert.Equal(t, 7, snap.Gauge.LastHour)
	assert.Zero(t, snap.Gauge.Avg6h)
}

func TestBackfillMultipleCategoriesSumIndexWise(t *testing.T) {
	api := &fakeEventsAPI{counts: sis.EventCounts{
		"enrollment": {Points: []int{2, 0, 5}},
		"group":      {Points: []int{1, 3, 0}},
	}}
	a := New(api, []string{"enrollment", "group"}, 3*time.Minute, logger.NewNop())
	a.now = func() time.Time { return t0.Add(3 * time.Minute) }
	require.NoError(t, a.Backfill(context.Background()))

	snap := a.Snapshot()
	assert.Equal(t, []Point{{t0, 3}, {t0.Add(time.Minute), 6}, {t0.Add(2 * time.Minute), 11}},
		snap.Cumulative)
	assert.Equal(t, 11, snap.Total)
	assert.Equal(t, 5, snap.RateAxisMax, "axis max is the largest combined minute")
}

func TestTickAppendsAndRescalesAxes(t *testing.T) {
	api := &fakeEventsAPI{}
	a := newBackfilled(t, api, 10*time.Minute)

	tickAt := t0.Add(3 * time.Minute)
	a.now = func() time.Time { return tickAt.Add(10 * time.Second) }
	api.counts = sis.EventCounts{"enrollment": {Points: []int{10}}}
	require.NoError(t, a.Tick(context.Background()))

	assert.Equal(t, tickAt, api.gotOn, "tick request is floored to the minute")

	snap := a.Snapshot()
	require.Len(t, snap.Series["enrollment"], 4)
	assert.Equal(t, Point{tickAt, 10}, snap.Series["enrollment"][3])
	assert.Equal(t, Point{tickAt, 17}, snap.Cumulative[3])
	assert.Equal(t, 17, snap.Total)
	assert.Equal(t, 10, snap.RateAxisMax)
	assert.Equal(t, 17, snap.CumulativeAxisMax)
	assert.Equal(t, 17, snap.Gauge.LastHour)
}

func TestTickEqualToAxisMaxDoesNotRescale(t *testing.T) {
	api := &fakeEventsAPI{}
	a := newBackfilled(t, api, 10*time.Minute)

	a.now = func() time.Time { return t0.Add(3 * time.Minute) }
	api.counts = sis.EventCounts{"enrollment": {Points: []int{5}}}
	require.NoError(t, a.Tick(context.Background()))

	snap := a.Snapshot()
	assert.Equal(t, 5, snap.RateAxisMax, "rescale fires only on strictly greater totals")
	assert.Equal(t, 7, snap.CumulativeAxisMax)
}

func TestTickSameMinuteOverwrites(t *testing.T) {
	api := &fakeEventsAPI{}
	a := newBackfilled(t, api, 10*time.Minute)

	tickAt := t0.Add(3 * time.Minute)
	a.now = func() time.Time { return tickAt }

	api.counts = sis.EventCounts{"enrollment": {Points: []int{4}}}
	require.NoError(t, a.Tick(context.Background()))
	api.counts = sis.EventCounts{"enrollment": {Points: []int{6}}}
	require.NoError(t, a.Tick(context.Background()))

	snap := a.Snapshot()
	require.Len(t, snap.Series["enrollment"], 4, "re-polling the same minute must not append")
	assert.Equal(t, Point{tickAt, 6}, snap.Series["enrollment"][3])
	assert.Equal(t, Point{tickAt, 13}, snap.Cumulative[3], "overwrite rebases on the prior minute's running total")
	assert.Equal(t, 13, snap.Total)
}

func TestTickEvictsBeyondCapacity(t *testing.T) {
	api := &fakeEventsAPI{}
	a := newBackfilled(t, api, 3*time.Minute)

	a.now = func() time.Time { return t0.Add(3 * time.Minute) }
	api.counts = sis.EventCounts{"enrollment": {Points: []int{1}}}
	require.NoError(t, a.Tick(context.Background()))

	snap := a.Snapshot()
	require.Len(t, snap.Series["enrollment"], 3)
	assert.Equal(t, t0.Add(time.Minute), snap.Series["enrollment"][0].T, "oldest point shifts off")
}

func TestTickFailureLeavesSeriesUntouched(t *testing.T) {
	api := &fakeEventsAPI{}
	a := newBackfilled(t, api, 10*time.Minute)

	before := a.Snapshot()
	api.err = errors.New("boom")
	a.now = func() time.Time { return t0.Add(3 * time.Minute) }
	require.Error(t, a.Tick(context.Background()))

	assert.Equal(t, before, a.Snapshot())
}

func TestVisibleRangeRestrictsOverlay(t *testing.T) {
	api := &fakeEventsAPI{}
	a := newBackfilled(t, api, 3*time.Minute)

	a.SetVisibleRange(t0.Add(time.Minute), t0.Add(2*time.Minute))

	snap := a.Snapshot()
	require.NotNil(t, snap.Visible)
	assert.Equal(t, []Point{{t0.Add(time.Minute), 0}, {t0.Add(2 * time.Minute), 5}}, snap.Cumulative)
	assert.Equal(t, 5, snap.Total)
	assert.Equal(t, 5, snap.CumulativeAxisMax)
	// per-category series are not windowed, only the overlay
	assert.Len(t, snap.Series["enrollment"], 3)

	a.ResetVisibleRange()
	snap = a.Snapshot()
	assert.Nil(t, snap.Visible)
	assert.Equal(t, 7, snap.Total)
}

func TestVisibleRangeTracksNewTicks(t *testing.T) {
	api := &fakeEventsAPI{}
	a := newBackfilled(t, api, 10*time.Minute)

	tickAt := t0.Add(3 * time.Minute)
	a.SetVisibleRange(t0.Add(2*time.Minute), tickAt)

	a.now = func() time.Time { return tickAt }
	api.counts = sis.EventCounts{"enrollment": {Points: []int{4}}}
	require.NoError(t, a.Tick(context.Background()))

	snap := a.Snapshot()
	assert.Equal(t, []Point{{t0.Add(2 * time.Minute), 5}, {tickAt, 9}}, snap.Cumulative)
	assert.Equal(t, 9, snap.Total)
}

func TestComputeGauge(t *testing.T) {
	repeat := func(n, y int) []Point {
		pts := make([]Point, n)
		for i := range pts {
			pts[i] = Point{T: t0.Add(time.Duration(i) * time.Minute), Y: y}
		}
		return pts
	}

	tests := []struct {
		name         string
		points       []Point
		wantLastHour int
		wantAvg6h    int
	}{
		{"empty", nil, 0, 0},
		{"under an hour", repeat(30, 2), 60, 0},
		{"under six hours", repeat(359, 1), 60, 0},
		{"exactly six hours", repeat(360, 1), 60, 60},
		{"avg rounds up", repeat(360, 0), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := computeGauge(tt.points)
			assert.Equal(t, tt.wantLastHour, g.LastHour)
			assert.Equal(t, tt.wantAvg6h, g.Avg6h)
		})
	}
}

func TestComputeGaugeCeilingOfMean(t *testing.T) {
	// 361 points of 1: the trailing 360 sum to 360, mean 60; add one
	// more event in the last bucket and the mean ceils to 61.
	pts := make([]Point, 361)
	for i := range pts {
		pts[i] = Point{T: t0.Add(time.Duration(i) * time.Minute), Y: 1}
	}
	pts[360].Y = 2

	g := computeGauge(pts)
	assert.Equal(t, 61, g.LastHour)
	assert.Equal(t, 61, g.Avg6h)
}
