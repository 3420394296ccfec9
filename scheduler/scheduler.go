// Package scheduler implements the cooperative, priority-ordered,
// run-to-completion dispatcher of spec section 4.1: a fixed list of
// background tasks, highest priority first, each returning OK/NOOP/EAGAIN/
// error instead of blocking. There is no real preemption in this host
// port (Go has no ISR priorities), so the stepper executor's callback and
// any limit/serial-RX handling that would be medium/high-priority ISRs on
// real hardware are represented instead as ordinary tasks or, for the
// step-pulse ISR itself, a hal.Timer callback running outside this loop
// entirely (see stepper.Executor).
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/nasa-jpl/tinyg/status"
)

// TaskFunc is one scheduler-dispatched background task.
type TaskFunc func() status.Code

// Task pairs a task with a name for logging.
type Task struct {
	Name string
	Run  TaskFunc
}

// Scheduler runs a fixed, priority-ordered list of Tasks to completion
// every pass, honoring the EAGAIN backpressure contract of spec section
// 4.1.
type Scheduler struct {
	tasks  []Task
	Logger *log.Logger
}

// New returns an empty Scheduler. Tasks must be added in priority order,
// highest first, via Add.
func New(logger *log.Logger) *Scheduler {
	return &Scheduler{Logger: logger}
}

// Add appends a task at the next (lowest so far) priority slot.
func (s *Scheduler) Add(name string, fn TaskFunc) {
	s.tasks = append(s.tasks, Task{Name: name, Run: fn})
}

// RunOnce executes one dispatch pass: every task in priority order, until
// one returns EAGAIN (skip the remaining lower-priority tasks this pass)
// or a hard error (logged; the pass ends early the same way). idle
// reports whether every executed task returned NOOP or EAGAIN with no
// task reporting OK, the signal Run uses to back off.
func (s *Scheduler) RunOnce() (results []status.Code, idle bool) {
	idle = true
	for _, t := range s.tasks {
		code := t.Run()
		results = append(results, code)
		switch code {
		case status.OK:
			idle = false
		case status.NOOP:
			// nothing to do this pass; lower-priority tasks still run.
		case status.EAGAIN:
			return results, idle
		default:
			if s.Logger != nil {
				s.Logger.Printf("scheduler: task %q returned %v", t.Name, code)
			}
			return results, idle
		}
	}
	return results, idle
}

// Run drives RunOnce in a loop until ctx is cancelled. When a pass was
// entirely idle it backs off with the same exponential policy
// comm.RemoteDevice.Open uses to retry a flaky reconnect, reset the
// instant any task reports real work — this keeps a quiescent machine
// from busy-spinning while staying immediately responsive once a host
// sends a line or a move starts executing.
func (s *Scheduler) Run(ctx context.Context) {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         20 * time.Millisecond,
		MaxElapsedTime:      0, // never give up; this is steady-state idling, not a retry budget
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, idle := s.RunOnce()
		if !idle {
			b.Reset()
			continue
		}
		d := b.NextBackOff()
		if d == backoff.Stop {
			d = b.MaxInterval
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
		}
	}
}
