package engine

import (
	"sync"
	"testing"
	"time"
)

// manualClock collects scheduled callbacks until the test fires them.
type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Fire runs every callback that is still armed.
func (c *manualClock) Fire() int {
	c.mu.Lock()
	pending := append([]*manualTimer(nil), c.timers...)
	c.timers = nil
	c.mu.Unlock()

	fired := 0
	for _, t := range pending {
		if t.stopped || t.fired {
			continue
		}
		t.fired = true
		t.fn()
		fired++
	}
	return fired
}

func TestSchedulerRunsTask(t *testing.T) {
	clock := &manualClock{}
	s := NewScheduler(clock.AfterFunc)

	ran := 0
	s.Schedule("A-hearts", time.Second, func() { ran++ })
	if s.Pending() != 1 {
		t.Fatalf("expected 1 pending task, got %d", s.Pending())
	}
	if ran != 0 {
		t.Fatalf("task must not run before the clock fires")
	}
	clock.Fire()
	if ran != 1 {
		t.Fatalf("expected task to run once, ran %d", ran)
	}
	if s.Pending() != 0 {
		t.Fatalf("expected no pending tasks, got %d", s.Pending())
	}
}

func TestSchedulerReplaceAndCancel(t *testing.T) {
	clock := &manualClock{}
	s := NewScheduler(clock.AfterFunc)

	var order []string
	s.Schedule("k", time.Second, func() { order = append(order, "first") })
	s.Schedule("k", time.Second, func() { order = append(order, "second") })
	s.Schedule("other", time.Second, func() { order = append(order, "other") })
	if !s.Cancel("other") {
		t.Fatalf("expected cancel to report a pending task")
	}
	if s.Cancel("missing") {
		t.Fatalf("cancel of unknown key should report false")
	}

	clock.Fire()
	if len(order) != 1 || order[0] != "second" {
		t.Fatalf("expected only the replacement to run, got %v", order)
	}
}

func TestSchedulerCancelAllRefusesNewTasks(t *testing.T) {
	clock := &manualClock{}
	s := NewScheduler(clock.AfterFunc)

	ran := false
	s.Schedule("a", time.Second, func() { ran = true })
	s.CancelAll()
	s.Schedule("b", time.Second, func() { ran = true })
	clock.Fire()
	if ran {
		t.Fatalf("no task may run after CancelAll")
	}
	if s.Pending() != 0 {
		t.Fatalf("expected 0 pending, got %d", s.Pending())
	}
}
