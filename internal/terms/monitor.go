package terms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/sis-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/sis"
)

// API is the slice of the provisioning client the monitor needs.
type API interface {
	Terms(ctx context.Context) (*sis.TermContext, error)
}

// Snapshot is the rendered term state.
type Snapshot struct {
	Resolution Resolution `json:"resolution"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Monitor refreshes the term context on a coarse schedule; boundaries
// are set per-term and practically static within a session.
type Monitor struct {
	api API
	log logger.Logger
	now func() time.Time

	mu   sync.Mutex
	snap Snapshot
}

// NewMonitor creates a term monitor.
func NewMonitor(client API, log logger.Logger) *Monitor {
	return &Monitor{api: client, log: log, now: time.Now}
}

// Refresh fetches the term boundaries and re-resolves the cycle
// position. A failed fetch keeps the previous snapshot.
func (m *Monitor) Refresh(ctx context.Context) error {
	tc, err := m.api.Terms(ctx)
	if err != nil {
		return fmt.Errorf("refresh terms: %w", err)
	}

	now := m.now()
	res := Resolve(fromWire(tc), now)

	m.mu.Lock()
	m.snap = Snapshot{Resolution: res, UpdatedAt: now}
	m.mu.Unlock()

	m.log.Info("term context refreshed", logger.String("summary", res.Summary))
	return nil
}

// Snapshot returns the last resolved term state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func fromWire(tc *sis.TermContext) Context {
	return Context{
		Current: termFromWire(tc.Current),
		Next:    termFromWire(tc.Next),
	}
}

func termFromWire(t sis.Term) Term {
	periods := make([]time.Time, len(t.RegistrationPeriods))
	for i, p := range t.RegistrationPeriods {
		periods[i] = p.Start
	}
	return Term{
		Label:                   t.Label,
		FirstDay:                t.FirstDay,
		GradeSubmissionDeadline: t.GradeSubmissionDeadline,
		RegistrationPeriods:     periods,
	}
}
