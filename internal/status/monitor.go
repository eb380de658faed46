// Package status tracks the upstream Canvas system status feed.
package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/sis-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/sis"
)

// API is the slice of the provisioning client the monitor needs.
type API interface {
	CanvasStatus(ctx context.Context) ([]sis.StatusComponent, error)
}

// Snapshot is the rendered upstream status: the overall row plus one row
// per component.
type Snapshot struct {
	Overall    sis.StatusComponent   `json:"overall"`
	Components []sis.StatusComponent `json:"components"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// Monitor polls the upstream status feed.
type Monitor struct {
	api API
	log logger.Logger
	now func() time.Time

	mu   sync.Mutex
	snap Snapshot
}

// NewMonitor creates a status monitor.
func NewMonitor(client API, log logger.Logger) *Monitor {
	return &Monitor{api: client, log: log, now: time.Now}
}

// Refresh fetches the status feed. A failed or empty fetch keeps the
// previous snapshot.
func (m *Monitor) Refresh(ctx context.Context) error {
	components, err := m.api.CanvasStatus(ctx)
	if err != nil {
		return fmt.Errorf("refresh canvas status: %w", err)
	}
	if len(components) == 0 {
		return errors.New("refresh canvas status: empty feed")
	}

	m.mu.Lock()
	m.snap = Snapshot{
		Overall:    components[0],
		Components: components[1:],
		UpdatedAt:  m.now(),
	}
	m.mu.Unlock()

	m.log.Debug("canvas status refreshed",
		logger.String("state", components[0].State),
		logger.Int("components", len(components)-1))
	return nil
}

// Snapshot returns the last known upstream status.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}
