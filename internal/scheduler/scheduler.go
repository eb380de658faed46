// Package scheduler owns every repeating timer in the monitor. Loops are
// registered under string keys; starting a key that is already running
// replaces the old loop, so a key can never double-fire.
package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/north-cloud/sis-monitor/internal/logger"
)

// Scheduler is a keyed registry of repeating actions backed by cron
// constant-delay schedules. All methods are safe for concurrent use.
type Scheduler struct {
	cron *cron.Cron
	log  logger.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// New creates a started Scheduler.
func New(log logger.Logger) *Scheduler {
	c := cron.New()
	c.Start()
	return &Scheduler{
		cron:    c,
		log:     log,
		entries: make(map[string]cron.EntryID),
	}
}

// Start registers action to run every interval under key. An existing
// loop under the same key is stopped first; the restart is idempotent.
// The first tick fires one interval from now.
func (s *Scheduler) Start(key string, every time.Duration, action func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[key]; ok {
		s.cron.Remove(id)
		delete(s.entries, key)
		s.log.Debug("replaced polling loop", logger.String("key", key))
	}

	id := s.cron.Schedule(cron.Every(every), cron.FuncJob(action))
	s.entries[key] = id
	s.log.Debug("started polling loop",
		logger.String("key", key),
		logger.Duration("interval", every))
}

// Stop cancels the loop under key. Stopping an absent key is a no-op.
// Cancellation is cooperative: an in-flight action completes, but no
// further ticks fire.
func (s *Scheduler) Stop(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[key]
	if !ok {
		return
	}
	s.cron.Remove(id)
	delete(s.entries, key)
	s.log.Debug("stopped polling loop", logger.String("key", key))
}

// StopAll cancels every registered loop.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, key)
	}
	s.log.Debug("stopped all polling loops")
}

// Running reports whether a loop is registered under key.
func (s *Scheduler) Running(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Keys returns the currently registered loop keys.
func (s *Scheduler) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return keys
}

// RunOnce fires action once, immediately, on its own goroutine. Paired
// with Start it gives the "refresh now, then repeat" pattern every
// monitor uses.
func (s *Scheduler) RunOnce(key string, action func()) {
	s.log.Debug("running once", logger.String("key", key))
	go action()
}

// Shutdown stops the underlying cron runner and waits for in-flight
// actions to return.
func (s *Scheduler) Shutdown() {
	s.StopAll()
	<-s.cron.Stop().Done()
}
