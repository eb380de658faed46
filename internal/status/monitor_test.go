package status

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

type fakeStatusAPI struct {
	components []sis.StatusComponent
	err        error
}

func (f *fakeStatusAPI) CanvasStatus(context.Context) ([]sis.StatusComponent, error) {
	return f.components, f.err
}

func TestRefreshSplitsOverallAndComponents(t *testing.T) {
	api := &fakeStatusAPI{components: []sis.StatusComponent{
		{Component: "Canvas", Status: "Operational", State: "ok"},
		{Component: "Files", Status: "Operational", State: "ok"},
		{Component: "Conferences", Status: "Degraded", State: "warn"},
	}}

	m := NewMonitor(api, logger.NewNop())
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Refresh(context.Background()))

	snap := m.Snapshot()
	assert.Equal(t, "Canvas", snap.Overall.Component)
	require.Len(t, snap.Components, 2)
	assert.Equal(t, "Conferences", snap.Components[1].Component)
	assert.Equal(t, now, snap.UpdatedAt)
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	api := &fakeStatusAPI{components: []sis.StatusComponent{
		{Component: "Canvas", State: "ok"},
	}}
	m := NewMonitor(api, logger.NewNop())
	require.NoError(t, m.Refresh(context.Background()))
	before := m.Snapshot()

	api.err = errors.New("boom")
	require.Error(t, m.Refresh(context.Background()))
	assert.Equal(t, before, m.Snapshot())

	api.err = nil
	api.components = nil
	require.Error(t, m.Refresh(context.Background()), "an empty feed is rejected")
	assert.Equal(t, before, m.Snapshot())
}
