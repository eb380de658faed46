package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/sis-monitor/internal/api"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/events"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/imports"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/metrics"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/scheduler"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/sis"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/status"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/terms"
)

// newTestEngine wires real components against a stub upstream.
func newTestEngine(t *testing.T, upstream http.HandlerFunc) http.Handler {
	t.Helper()

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	log := logger.NewNop()
	client := sis.NewClient(srv.URL, 2*time.Second, log)
	sched := scheduler.New(log)
	t.Cleanup(sched.Shutdown)

	tracker := imports.NewTracker(client, sched, 30*time.Second, time.Second, log)
	chart := events.New(client, []string{"enrollment"}, 10*time.Minute, log)
	termMonitor := terms.NewMonitor(client, log)
	canvasMonitor := status.NewMonitor(client, log)

	router := api.NewRouter(tracker, chart, termMonitor, canvasMonitor, metrics.New(), log, false)
	return router.Engine()
}

func quietUpstream(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/imports":
		_, _ = w.Write([]byte(`{"imports": []}`))
	case "/courses":
		_, _ = w.Write([]byte(`{"courses": []}`))
	default:
		_, _ = w.Write([]byte(`{}`))
	}
}

func do(engine http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	engine := newTestEngine(t, quietUpstream)

	rec := do(engine, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestMetricsEndpoint(t *testing.T) {
	engine := newTestEngine(t, quietUpstream)

	rec := do(engine, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDashboardSnapshot(t *testing.T) {
	engine := newTestEngine(t, quietUpstream)

	rec := do(engine, http.MethodGet, "/api/v1/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	for _, key := range []string{"imports", "events", "term", "canvas_status"} {
		assert.Contains(t, body, key)
	}
}

func TestEventsVisibleRangeParams(t *testing.T) {
	engine := newTestEngine(t, quietUpstream)

	tests := []struct {
		name   string
		target string
		code   int
	}{
		{"no params", "/api/v1/dashboard/events", http.StatusOK},
		{"valid range", "/api/v1/dashboard/events?min=1000&max=2000", http.StatusOK},
		{"reset", "/api/v1/dashboard/events?reset=true", http.StatusOK},
		{"non-numeric", "/api/v1/dashboard/events?min=abc&max=2000", http.StatusBadRequest},
		{"max below min", "/api/v1/dashboard/events?min=2000&max=1000", http.StatusBadRequest},
		{"min without max", "/api/v1/dashboard/events?min=1000", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(engine, http.MethodGet, tt.target)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestEventsRangeAppliesToSnapshot(t *testing.T) {
	engine := newTestEngine(t, quietUpstream)

	minMs := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC).UnixMilli()
	maxMs := time.Date(2026, 1, 15, 11, 0, 0, 0, time.UTC).UnixMilli()

	rec := do(engine, http.MethodGet,
		"/api/v1/dashboard/events?min="+strconv.FormatInt(minMs, 10)+"&max="+strconv.FormatInt(maxMs, 10))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap events.ChartSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.NotNil(t, snap.Visible)

	rec = do(engine, http.MethodGet, "/api/v1/dashboard/events?reset=true")
	require.Equal(t, http.StatusOK, rec.Code)
	snap = events.ChartSnapshot{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Nil(t, snap.Visible)
}

func TestRequeueInvalidID(t *testing.T) {
	engine := newTestEngine(t, quietUpstream)

	rec := do(engine, http.MethodPost, "/api/v1/imports/abc/requeue")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequeueSurfacesUpstreamRejection(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error": "permission denied"}`))
			return
		}
		quietUpstream(w, r)
	})

	rec := do(engine, http.MethodPost, "/api/v1/imports/42/requeue")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "permission denied")
}

func TestRequeueSuccess(t *testing.T) {
	engine := newTestEngine(t, quietUpstream)

	rec := do(engine, http.MethodPost, "/api/v1/imports/42/requeue")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "42")
}

func TestGroupImport(t *testing.T) {
	engine := newTestEngine(t, quietUpstream)

	rec := do(engine, http.MethodPost, "/api/v1/imports/group")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
