package scheduler_test

import (
	"errors"
	"testing"

	"github.com/nasa-jpl/tinyg/axis"
	"github.com/nasa-jpl/tinyg/canonical"
	"github.com/nasa-jpl/tinyg/hal"
	"github.com/nasa-jpl/tinyg/planner"
	"github.com/nasa-jpl/tinyg/scheduler"
	"github.com/nasa-jpl/tinyg/segment"
	"github.com/nasa-jpl/tinyg/status"
	"github.com/nasa-jpl/tinyg/stepper"
)

// fakeLineReader feeds a fixed script of lines, then errors forever
// (simulating a serial read timeout with nothing more queued).
type fakeLineReader struct {
	lines []string
	i     int
}

func (f *fakeLineReader) ReadLine() ([]byte, error) {
	if f.i >= len(f.lines) {
		return nil, errors.New("timeout")
	}
	line := f.lines[f.i]
	f.i++
	return []byte(line), nil
}

func testAxes() (axes [6]*axis.Axis) {
	for i := 0; i < 3; i++ {
		a := axis.New(axis.Name("XYZ"[i]))
		a.VelocityMax = 200
		a.JerkMax = 5e6
		a.JunctionDeviation = 0.01
		a.HomingVelocity = 10
		a.HomingBackoff = 1
		a.Travel.Min, a.Travel.Max = 0, 100
		a.AddMotor(axis.NewMotor(1, 1.8, 40, 8))
		axes[i] = a
	}
	return axes
}

func newTestController(lines []string) (*scheduler.Controller, *hal.Mock, *planner.Planner) {
	m := canonical.NewMachine()
	p := planner.New(8, testAxes())
	pins := hal.NewMock()
	timer := hal.NewMockTimer()
	ctrl := scheduler.NewController(m, p, 8, segment.DefaultPeriod, &fakeLineReader{lines: lines}, pins)
	ctrl.Executor = stepper.New(pins, timer, ctrl.Runtime.Queue(), testAxes(), nil, 500, 5)
	ctrl.Executor.Start()
	return ctrl, pins, p
}

func TestReaderEnqueuesLinearFeed(t *testing.T) {
	ctrl, _, p := newTestController([]string{"G1 X10 F50"})
	s := scheduler.New(nil)
	ctrl.Register(s)

	results, _ := s.RunOnce()
	if len(results) == 0 {
		t.Fatal("expected at least one task result")
	}
	if p.Ring().Len() != 1 {
		t.Fatalf("ring len = %d, want 1", p.Ring().Len())
	}
}

func TestReaderBackpressureEAGAINWhenPlannerFull(t *testing.T) {
	m := canonical.NewMachine()
	p := planner.New(2, testAxes())
	p.ReservationThreshold = 1
	pins := hal.NewMock()
	ctrl := scheduler.NewController(m, p, 4, segment.DefaultPeriod, &fakeLineReader{lines: []string{"G1 X10 F50", "G1 X20 F50"}}, pins)

	// Fill the ring directly so HasRoom() reports false.
	if code := p.Enqueue(planner.CanonicalMove{Target: planner.Vec6{1}, FeedRate: 10, Type: planner.MoveFeed}); code != status.OK {
		t.Fatalf("seed enqueue: %v", code)
	}
	if code := p.Enqueue(planner.CanonicalMove{Target: planner.Vec6{2}, FeedRate: 10, Type: planner.MoveFeed}); code != status.OK {
		t.Fatalf("seed enqueue: %v", code)
	}

	if p.HasRoom() {
		t.Fatal("expected the ring to report no room after seeding it to capacity")
	}

	s := scheduler.New(nil)
	ctrl.Register(s)
	results, _ := s.RunOnce()
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if results[len(results)-1] != status.EAGAIN {
		t.Errorf("last task result = %v, want EAGAIN from the backpressured reader", results[len(results)-1])
	}
}

func TestDwellOpEnqueuesDwellMove(t *testing.T) {
	ctrl, _, p := newTestController([]string{"G4 P0.01"})
	s := scheduler.New(nil)
	ctrl.Register(s)
	s.RunOnce()
	if p.Ring().Len() != 1 {
		t.Fatalf("ring len = %d, want 1", p.Ring().Len())
	}
	if p.Ring().Head().Type != planner.MoveDwell {
		t.Errorf("head type = %v, want MoveDwell", p.Ring().Head().Type)
	}
}

func TestSpindleCommandReachesHAL(t *testing.T) {
	ctrl, pins, p := newTestController([]string{"M3 S1000"})
	s := scheduler.New(nil)
	ctrl.Register(s)

	for i := 0; i < 50 && p.Ring().Len() == 0; i++ {
		s.RunOnce()
	}
	if p.Ring().Len() != 1 {
		t.Fatalf("ring len = %d, want 1 after M3", p.Ring().Len())
	}

	for i := 0; i < 50; i++ {
		s.RunOnce()
		on, cw, rpm := pins.Spindle()
		if on && cw && rpm == 1000 {
			return
		}
	}
	t.Fatal("spindle command never reached the HAL")
}

func TestMalformedLineReportsError(t *testing.T) {
	var reported []string
	ctrl, _, _ := newTestController([]string{"G1 X"})
	ctrl.OnStatus = func(line string) { reported = append(reported, line) }
	s := scheduler.New(nil)
	ctrl.Register(s)
	s.RunOnce()
	if len(reported) == 0 {
		t.Fatal("expected a reported parse error for a dangling axis word with no value")
	}
}
