package engine

import (
	"sync"
	"time"
)

// Timer is the handle returned by an AfterFunc. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. Tests substitute a manual clock.
type AfterFunc func(d time.Duration, f func()) Timer

// RealAfterFunc wraps time.AfterFunc.
func RealAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type scheduledTask struct {
	timer Timer
	gen   uint64
}

// Scheduler runs deferred state mutations keyed by card id. Scheduling a key
// replaces any pending task for it, and a cancelled or replaced task never runs.
type Scheduler struct {
	mu     sync.Mutex
	after  AfterFunc
	tasks  map[string]scheduledTask
	gen    uint64
	closed bool
}

// NewScheduler builds a scheduler. A nil AfterFunc selects RealAfterFunc.
func NewScheduler(after AfterFunc) *Scheduler {
	if after == nil {
		after = RealAfterFunc
	}
	return &Scheduler{after: after, tasks: make(map[string]scheduledTask)}
}

// Schedule runs fn after delay unless the key is cancelled first.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if prev, ok := s.tasks[key]; ok {
		prev.timer.Stop()
	}
	s.gen++
	gen := s.gen
	timer := s.after(delay, func() {
		s.mu.Lock()
		task, ok := s.tasks[key]
		if !ok || task.gen != gen || s.closed {
			s.mu.Unlock()
			return
		}
		delete(s.tasks, key)
		s.mu.Unlock()
		fn()
	})
	s.tasks[key] = scheduledTask{timer: timer, gen: gen}
}

// Cancel stops the pending task for key. It reports whether one existed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[key]
	if !ok {
		return false
	}
	task.timer.Stop()
	delete(s.tasks, key)
	return true
}

// CancelAll stops every pending task and refuses new ones.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, task := range s.tasks {
		task.timer.Stop()
		delete(s.tasks, key)
	}
	s.closed = true
}

// Pending returns the number of tasks waiting to run.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
