// Package events aggregates streaming per-minute provisioning event
// counts into per-category series, a running-total overlay, and a rate
// gauge.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/sis-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/sis"
)

const (
	gaugeWindowMinutes = 60
	gaugeAvgHours      = 6
)

// API is the slice of the provisioning client the aggregator needs.
type API interface {
	EventCounts(ctx context.Context, types []string, on time.Time) (sis.EventCounts, error)
	EventBackfill(ctx context.Context, types []string, begin time.Time) (sis.EventCounts, error)
}

// Point is one minute bucket of a series.
type Point struct {
	T time.Time `json:"t"`
	Y int       `json:"y"`
}

// Gauge is the live rate dial: events over the last hour, and the
// ceiling of the mean over the six trailing hourly buckets (0 until six
// full hours of history exist).
type Gauge struct {
	LastHour int `json:"last_hour"`
	Avg6h    int `json:"avg_6h"`
}

// Range is a visible time window applied to the chart.
type Range struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// ChartSnapshot is a copy of the aggregator state for rendering. When a
// visible range is set, Cumulative, Total and CumulativeAxisMax are
// restricted to it.
type ChartSnapshot struct {
	Types             []string           `json:"types"`
	Series            map[string][]Point `json:"series"`
	Cumulative        []Point            `json:"cumulative"`
	RateAxisMax       int                `json:"rate_axis_max"`
	CumulativeAxisMax int                `json:"cumulative_axis_max"`
	Total             int                `json:"total"`
	Gauge             Gauge              `json:"gauge"`
	Visible           *Range             `json:"visible,omitempty"`
}

// Aggregator owns the chart and gauge series; it is their sole mutator.
type Aggregator struct {
	api      API
	log      logger.Logger
	types    []string
	window   time.Duration
	capacity int
	now      func() time.Time

	mu          sync.Mutex
	series      map[string][]Point
	cumulative  []Point
	rateAxisMax int
	cumAxisMax  int
	total       int
	gauge       Gauge

	visible    *Range
	visibleCum []Point
	visibleSum int
}

// New creates an Aggregator for the given event categories with a
// backfill window bounding how many minute buckets are held.
func New(client API, types []string, window time.Duration, log logger.Logger) *Aggregator {
	return &Aggregator{
		api:      client,
		log:      log,
		types:    append([]string(nil), types...),
		window:   window,
		capacity: int(window / time.Minute),
		now:      time.Now,
		series:   make(map[string][]Point),
	}
}

// Backfill rebuilds the full series from one historical request spanning
// the configured window.
func (a *Aggregator) Backfill(ctx context.Context) error {
	begin := sis.FloorMinute(a.now()).Add(-a.window)
	counts, err := a.api.EventBackfill(ctx, a.types, begin)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.series = make(map[string][]Point, len(a.types))
	for _, t := range a.types {
		pts := counts[t].Points
		serie := make([]Point, len(pts))
		for i, y := range pts {
			serie[i] = Point{T: begin.Add(time.Duration(i) * time.Minute), Y: y}
		}
		a.series[t] = serie
	}

	combined := a.combinedLocked()
	a.cumulative = make([]Point, len(combined))
	running := 0
	maxRate := 0
	for i, p := range combined {
		running += p.Y
		a.cumulative[i] = Point{T: p.T, Y: running}
		if p.Y > maxRate {
			maxRate = p.Y
		}
	}
	a.total = running
	a.rateAxisMax = maxRate
	a.cumAxisMax = running
	a.gauge = computeGauge(combined)
	a.recomputeVisibleLocked()

	a.log.Info("event backfill loaded",
		logger.Strings("types", a.types),
		logger.Int("points", len(combined)),
		logger.Int("total", a.total))
	return nil
}

// Tick polls the counts for the current minute and folds them in. A
// re-poll of the same minute overwrites its buckets rather than
// appending; the server is authoritative for historical minutes.
func (a *Aggregator) Tick(ctx context.Context) error {
	on := sis.FloorMinute(a.now())
	counts, err := a.api.EventCounts(ctx, a.types, on)
	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	tickTotal := 0
	for _, t := range a.types {
		y := 0
		if pts, ok := counts[t]; ok && len(pts.Points) > 0 {
			y = pts.Points[0]
		}
		tickTotal += y
		a.series[t] = upsertMinute(a.series[t], on, y, a.capacity)
	}

	// Running-total overlay: same overwrite-or-append keying on the
	// minute, so a late response for a superseded minute stays idempotent.
	prevTotal := 0
	if n := len(a.cumulative); n > 0 {
		if a.cumulative[n-1].T.Equal(on) {
			if n > 1 {
				prevTotal = a.cumulative[n-2].Y
			}
			a.cumulative[n-1].Y = prevTotal + tickTotal
		} else {
			prevTotal = a.cumulative[n-1].Y
			a.cumulative = appendCapped(a.cumulative, Point{T: on, Y: prevTotal + tickTotal}, a.capacity)
		}
	} else {
		a.cumulative = append(a.cumulative, Point{T: on, Y: tickTotal})
	}

	combined := a.combinedLocked()
	grand := 0
	for _, p := range combined {
		grand += p.Y
	}
	a.total = grand

	// Axes only grow, and only when the live minute's total strictly
	// exceeds the current maximum.
	if tickTotal > a.rateAxisMax {
		a.rateAxisMax = tickTotal
		a.cumAxisMax = grand
	}

	a.gauge = computeGauge(combined)
	a.recomputeVisibleLocked()
	return nil
}

// SetVisibleRange restricts the running-total overlay and total label to
// points inside [min, max].
func (a *Aggregator) SetVisibleRange(min, max time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.visible = &Range{Min: min, Max: max}
	a.recomputeVisibleLocked()
}

// ResetVisibleRange restores the full-history overlay.
func (a *Aggregator) ResetVisibleRange() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.visible = nil
	a.visibleCum = nil
	a.visibleSum = 0
}

// Snapshot returns a copy of the chart and gauge state.
func (a *Aggregator) Snapshot() ChartSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := ChartSnapshot{
		Types:             append([]string(nil), a.types...),
		Series:            make(map[string][]Point, len(a.types)),
		RateAxisMax:       a.rateAxisMax,
		CumulativeAxisMax: a.cumAxisMax,
		Total:             a.total,
		Gauge:             a.gauge,
	}
	for _, t := range a.types {
		snap.Series[t] = append([]Point(nil), a.series[t]...)
	}
	if a.visible != nil {
		r := *a.visible
		snap.Visible = &r
		snap.Cumulative = append([]Point(nil), a.visibleCum...)
		snap.Total = a.visibleSum
		snap.CumulativeAxisMax = a.visibleSum
	} else {
		snap.Cumulative = append([]Point(nil), a.cumulative...)
	}
	return snap
}

// combinedLocked sums the per-category series index-wise. Series stay
// aligned because ticks append to every category in lockstep; a shorter
// series just contributes nothing past its end.
func (a *Aggregator) combinedLocked() []Point {
	var longest []Point
	for _, t := range a.types {
		if len(a.series[t]) > len(longest) {
			longest = a.series[t]
		}
	}
	combined := make([]Point, len(longest))
	for i := range combined {
		combined[i].T = longest[i].T
	}
	for _, t := range a.types {
		for i, p := range a.series[t] {
			combined[i].Y += p.Y
		}
	}
	return combined
}

func (a *Aggregator) recomputeVisibleLocked() {
	if a.visible == nil {
		return
	}
	combined := a.combinedLocked()
	a.visibleCum = a.visibleCum[:0]
	sum := 0
	for _, p := range combined {
		if p.T.Before(a.visible.Min) || p.T.After(a.visible.Max) {
			continue
		}
		sum += p.Y
		a.visibleCum = append(a.visibleCum, Point{T: p.T, Y: sum})
	}
	a.visibleSum = sum
}

// upsertMinute overwrites the last point when its minute matches on,
// otherwise appends, evicting the oldest point past capacity.
func upsertMinute(serie []Point, on time.Time, y, capacity int) []Point {
	if n := len(serie); n > 0 && serie[n-1].T.Equal(on) {
		serie[n-1].Y = y
		return serie
	}
	return appendCapped(serie, Point{T: on, Y: y}, capacity)
}

func appendCapped(serie []Point, p Point, capacity int) []Point {
	serie = append(serie, p)
	if capacity > 0 && len(serie) > capacity {
		serie = serie[1:]
	}
	return serie
}

// computeGauge derives the dial values from the combined per-minute rate.
func computeGauge(combined []Point) Gauge {
	var g Gauge

	n := len(combined)
	start := n - gaugeWindowMinutes
	if start < 0 {
		start = 0
	}
	for _, p := range combined[start:] {
		g.LastHour += p.Y
	}

	avgWindow := gaugeWindowMinutes * gaugeAvgHours
	if n >= avgWindow {
		sum := 0
		for _, p := range combined[n-avgWindow:] {
			sum += p.Y
		}
		g.Avg6h = (sum + gaugeAvgHours - 1) / gaugeAvgHours
	}
	return g
}
