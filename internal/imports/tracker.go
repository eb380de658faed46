// Package imports tracks the bulk-import queue: the shared refresh loop,
// one progress loop per in-flight job, and the between-refresh countdown.
package imports

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/sis-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/scheduler"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/sis"
)

const (
	refreshKey   = "imports-refresh"
	countdownKey = "imports-countdown"

	noSectionStatus = "No section found."
)

func progressKey(queueID int) string {
	return "import-progress:" + strconv.Itoa(queueID)
}

// API is the slice of the provisioning client the tracker needs.
type API interface {
	Imports(ctx context.Context) ([]sis.ImportJob, error)
	ImportProgress(ctx context.Context, queueID int) (*sis.ImportJob, error)
	DeleteImport(ctx context.Context, queueID int) error
	StartGroupImport(ctx context.Context) error
	ProvisionErrors(ctx context.Context) ([]sis.Course, error)
}

// Timers is the scheduler surface the tracker drives. Satisfied by
// scheduler.Scheduler.
type Timers interface {
	Start(key string, every time.Duration, action func())
	Stop(key string)
	RunOnce(key string, action func())
	Running(key string) bool
}

// Recorder counts tracker ticks; satisfied by the metrics package.
type Recorder interface {
	Tick(monitor string, err error)
}

// JobGauge receives the tracked-job count; satisfied by a Prometheus
// gauge.
type JobGauge interface {
	Set(float64)
}

type nopRecorder struct{}

func (nopRecorder) Tick(string, error) {}

type nopGauge struct{}

func (nopGauge) Set(float64) {}

// ProvisionError is one course whose provisioning failed.
type ProvisionError struct {
	CourseID string `json:"course_id"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
}

// Snapshot is a copy of the tracker state for rendering.
type Snapshot struct {
	Jobs             []JobView        `json:"jobs"`
	ProvisionErrors  []ProvisionError `json:"provision_errors"`
	CountdownSeconds int              `json:"countdown_seconds"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRecorder attaches a tick recorder.
func WithRecorder(r Recorder) Option {
	return func(t *Tracker) { t.recorder = r }
}

// WithJobGauge attaches a tracked-job gauge.
func WithJobGauge(g JobGauge) Option {
	return func(t *Tracker) { t.gauge = g }
}

// Tracker owns the job list snapshot and the per-job watch tokens; the
// shared scheduler owns the timers themselves.
type Tracker struct {
	api      API
	timers   Timers
	log      logger.Logger
	recorder Recorder
	gauge    JobGauge

	interval      time.Duration
	progressEvery time.Duration
	now           func() time.Time

	mu        sync.Mutex
	jobs      []JobView
	provision []ProvisionError
	tokens    map[int]*scheduler.Token
	countdown int
	updatedAt time.Time

	baseCtx context.Context
}

// NewTracker creates a Tracker refreshing every interval, with per-job
// progress polls at progressEvery.
func NewTracker(api API, timers Timers, interval, progressEvery time.Duration, log logger.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		api:           api,
		timers:        timers,
		log:           log,
		recorder:      nopRecorder{},
		gauge:         nopGauge{},
		interval:      interval,
		progressEvery: progressEvery,
		now:           time.Now,
		tokens:        make(map[int]*scheduler.Token),
		baseCtx:       context.Background(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartAll arms the refresh and countdown loops: one immediate refresh,
// then repeats on the shared interval. ctx bounds every poll the tracker
// makes until StopAll.
func (t *Tracker) StartAll(ctx context.Context) {
	t.mu.Lock()
	t.baseCtx = ctx
	t.countdown = int(t.interval / time.Second)
	t.mu.Unlock()

	t.timers.RunOnce(refreshKey, t.refreshAction)
	t.timers.Start(refreshKey, t.interval, t.refreshAction)
	t.timers.Start(countdownKey, time.Second, t.countdownTick)
}

// StopAll cancels the refresh loop, the countdown, and every per-job
// progress loop. The snapshot stays in place.
func (t *Tracker) StopAll() {
	t.timers.Stop(refreshKey)
	t.timers.Stop(countdownKey)

	t.mu.Lock()
	defer t.mu.Unlock()
	for id, tok := range t.tokens {
		tok.Cancel()
		t.timers.Stop(progressKey(id))
		delete(t.tokens, id)
	}
}

func (t *Tracker) refreshAction() {
	err := t.Refresh(t.context())
	t.recorder.Tick("imports", err)
	if err != nil {
		t.log.Error("import refresh failed", logger.Error(err))
	}
}

// Refresh fetches and classifies the job list, replaces the snapshot,
// reconciles the per-job progress loops, and re-arms the countdown. A
// failed list fetch keeps the previous snapshot.
func (t *Tracker) Refresh(ctx context.Context) error {
	wire, err := t.api.Imports(ctx)
	if err != nil {
		return fmt.Errorf("refresh imports: %w", err)
	}

	provision, provErr := t.loadProvisionErrors(ctx)

	now := t.now()
	views := make([]JobView, len(wire))
	for i, j := range wire {
		views[i] = classify(j, now)
	}

	t.mu.Lock()
	t.jobs = views
	if provErr == nil {
		t.provision = provision
	}
	t.updatedAt = now
	t.countdown = int(t.interval / time.Second)

	// Reconcile watch loops: one per unfinished job, none for jobs that
	// completed or left the list.
	current := make(map[int]bool, len(views))
	for _, v := range views {
		current[v.QueueID] = true
		watching := t.tokens[v.QueueID] != nil
		switch {
		case !v.Finished && v.Progress < 100 && !watching:
			t.watchLocked(v.QueueID)
		case (v.Finished || v.Progress >= 100) && watching:
			t.unwatchLocked(v.QueueID)
		}
	}
	for id := range t.tokens {
		if !current[id] {
			t.unwatchLocked(id)
		}
	}
	tracked := len(views)
	t.mu.Unlock()

	t.gauge.Set(float64(tracked))
	if provErr != nil {
		t.log.Warn("provision error fetch failed", logger.Error(provErr))
	}
	t.log.Debug("import list refreshed",
		logger.Int("jobs", tracked),
		logger.Int("provision_errors", len(provision)))
	return nil
}

func (t *Tracker) loadProvisionErrors(ctx context.Context) ([]ProvisionError, error) {
	courses, err := t.api.ProvisionErrors(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProvisionError, 0, len(courses))
	for _, c := range courses {
		if c.ProvisionedStatus == nil || *c.ProvisionedStatus == noSectionStatus {
			continue
		}
		out = append(out, ProvisionError{
			CourseID: c.CourseID,
			Priority: c.Priority,
			Status:   *c.ProvisionedStatus,
		})
	}
	return out, nil
}

// watchLocked issues a watch token and starts the 1s progress loop for
// one job. Caller holds t.mu.
func (t *Tracker) watchLocked(queueID int) {
	tok := scheduler.NewToken()
	t.tokens[queueID] = tok
	t.timers.Start(progressKey(queueID), t.progressEvery, func() {
		t.pollProgress(queueID, tok)
	})
}

// unwatchLocked cancels a job's token and its loop. Caller holds t.mu.
func (t *Tracker) unwatchLocked(queueID int) {
	if tok := t.tokens[queueID]; tok != nil {
		tok.Cancel()
	}
	delete(t.tokens, queueID)
	t.timers.Stop(progressKey(queueID))
}

// pollProgress is one tick of a job's progress loop. It self-cancels
// when the token is cancelled, on a fetch error, or once progress
// reaches 100.
func (t *Tracker) pollProgress(queueID int, tok *scheduler.Token) {
	if tok.Cancelled() {
		t.stopWatching(queueID)
		return
	}

	job, err := t.api.ImportProgress(t.context(), queueID)
	if err != nil {
		t.log.Warn("progress poll failed, dropping watch",
			logger.Int("queue_id", queueID),
			logger.Error(err))
		t.stopWatching(queueID)
		return
	}

	t.setProgress(queueID, job.CanvasProgress)
	if job.CanvasProgress >= 100 {
		t.stopWatching(queueID)
	}
}

func (t *Tracker) stopWatching(queueID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unwatchLocked(queueID)
}

// setProgress updates one job's progress in place; the list itself is
// only replaced by Refresh.
func (t *Tracker) setProgress(queueID, progress int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.jobs {
		if t.jobs[i].QueueID == queueID {
			t.jobs[i].Progress = progress
			t.jobs[i].InProgress = progress > 0 && progress < 100
			return
		}
	}
}

func (t *Tracker) countdownTick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.countdown > 0 {
		t.countdown--
	}
}

// Requeue deletes a queued import so the server re-queues its items.
// The refresh loop is stopped for the duration and restarted, with an
// immediate refresh, whether or not the delete succeeds.
func (t *Tracker) Requeue(ctx context.Context, queueID int) error {
	t.timers.Stop(refreshKey)
	defer func() {
		t.timers.RunOnce(refreshKey, t.refreshAction)
		t.timers.Start(refreshKey, t.interval, t.refreshAction)
	}()

	if err := t.api.DeleteImport(ctx, queueID); err != nil {
		return fmt.Errorf("requeue import %d: %w", queueID, err)
	}
	t.log.Info("import requeued", logger.Int("queue_id", queueID))
	return nil
}

// TriggerGroupImport starts a group membership import upstream. The next
// refresh picks up the new job.
func (t *Tracker) TriggerGroupImport(ctx context.Context) error {
	if err := t.api.StartGroupImport(ctx); err != nil {
		return err
	}
	t.log.Info("group import triggered")
	return nil
}

// Snapshot returns a copy of the tracked state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Jobs:             append([]JobView(nil), t.jobs...),
		ProvisionErrors:  append([]ProvisionError(nil), t.provision...),
		CountdownSeconds: t.countdown,
		UpdatedAt:        t.updatedAt,
	}
}

// Watching reports whether a progress loop is active for queueID.
func (t *Tracker) Watching(queueID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tokens[queueID] != nil
}

func (t *Tracker) context() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.baseCtx
}
