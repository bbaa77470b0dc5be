package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Estimate/internal/clock"
)

// Task is a pending deferred call returned by Scheduler.Schedule.
type Task struct {
	s     *Scheduler
	key   string
	timer *clock.Timer
	done  bool // guarded by s.mu
}

// Cancel stops the task. Cancelling a fired or cancelled task is a no-op
// that reports false.
func (t *Task) Cancel() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.cancelLocked(t)
}

// Scheduler keeps at most one pending single-shot task per key. Tasks
// fire while holding serial, the same lock that guards command handling,
// and re-check that they are still current once they hold it, so a
// Cancel that wins the lock always suppresses the call.
type Scheduler struct {
	clock  clock.Clock
	serial sync.Locker

	mu      sync.Mutex
	pending map[string]*Task
}

func NewScheduler(clk clock.Clock, serial sync.Locker) *Scheduler {
	return &Scheduler{
		clock:   clk,
		serial:  serial,
		pending: make(map[string]*Task),
	}
}

// Schedule arranges for fn to run after d, replacing any task pending
// for key. d must be positive. Callers may hold serial.
func (s *Scheduler) Schedule(key string, d time.Duration, fn func()) *Task {
	t := &Task{s: s, key: key}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.pending[key]; ok {
		s.cancelLocked(old)
		log.Debug().Str("module", "app.scheduler").Str("key", key).Msg("replaced pending task")
	}
	s.pending[key] = t
	t.timer = s.clock.AfterFunc(d, func() { s.fire(t, fn) })
	return t
}

func (s *Scheduler) fire(t *Task, fn func()) {
	s.serial.Lock()
	defer s.serial.Unlock()

	s.mu.Lock()
	current := !t.done && s.pending[t.key] == t
	if current {
		t.done = true
		delete(s.pending, t.key)
	}
	s.mu.Unlock()

	if !current {
		return
	}
	fn()
}

// Cancel cancels the task pending for key, if any.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.pending[key]
	if !ok {
		return false
	}
	return s.cancelLocked(t)
}

func (s *Scheduler) cancelLocked(t *Task) bool {
	if t.done {
		return false
	}
	t.done = true
	if s.pending[t.key] == t {
		delete(s.pending, t.key)
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	return true
}

func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}
