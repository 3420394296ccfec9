package segment_test

import (
	"testing"

	"github.com/nasa-jpl/tinyg/axis"
	"github.com/nasa-jpl/tinyg/planner"
	"github.com/nasa-jpl/tinyg/segment"
	"github.com/nasa-jpl/tinyg/status"
)

func testAxes() [6]*axis.Axis {
	var axes [6]*axis.Axis
	for i := 0; i < 3; i++ {
		a := axis.New(axis.Name("XYZ"[i]))
		a.VelocityMax = 200
		a.JerkMax = 5e6
		a.JunctionDeviation = 0.01
		a.AddMotor(axis.NewMotor(1, 1.8, 40, 8))
		axes[i] = a
	}
	return axes
}

func drainQueue(t *testing.T, q *segment.Queue, sum *[6]int64) (lineNumbers []int, lastSeen bool) {
	t.Helper()
	for {
		seg, ok := q.Pop()
		if !ok {
			return
		}
		for i := range sum {
			sum[i] += seg.StepDelta[i]
		}
		lineNumbers = append(lineNumbers, seg.LineNumber)
		if seg.Last {
			lastSeen = true
		}
	}
}

func TestStepConservation(t *testing.T) {
	p := planner.New(8, testAxes())
	code := p.Enqueue(planner.CanonicalMove{Target: planner.Vec6{10, 0, 0, 0, 0, 0}, FeedRate: 50, Type: planner.MoveFeed, LineNumber: 1})
	if code != status.OK {
		t.Fatalf("enqueue: %v", code)
	}
	wantDelta := p.Ring().Head().StepDelta

	rt := segment.NewRuntime(p, 4, segment.DefaultPeriod, nil)
	var sum [6]int64
	for i := 0; i < 100000; i++ {
		c := rt.Tick()
		if c == status.EAGAIN {
			_, _ = drainQueue(t, rt.Queue(), &sum)
			continue
		}
		if c != status.OK && c != status.NOOP {
			t.Fatalf("tick: %v", c)
		}
		_, last := drainQueue(t, rt.Queue(), &sum)
		if last {
			break
		}
		if p.Ring().Len() == 0 {
			break
		}
	}
	if sum != wantDelta {
		t.Errorf("step sum = %v, want %v", sum, wantDelta)
	}
}

func TestDwellProducesIdleSegments(t *testing.T) {
	p := planner.New(4, testAxes())
	code := p.Enqueue(planner.CanonicalMove{Type: planner.MoveDwell, DwellSeconds: 0.02, LineNumber: 5})
	if code != status.OK {
		t.Fatalf("enqueue dwell: %v", code)
	}

	rt := segment.NewRuntime(p, 8, segment.DefaultPeriod, nil)
	var totalUs int64
	for i := 0; i < 1000; i++ {
		c := rt.Tick()
		if c == status.EAGAIN {
			for {
				seg, ok := rt.Queue().Pop()
				if !ok {
					break
				}
				totalUs += seg.Microseconds
			}
			continue
		}
		if c != status.OK {
			t.Fatalf("tick: %v", c)
		}
		seg, ok := rt.Queue().Pop()
		if ok {
			totalUs += seg.Microseconds
			if seg.StepDelta != ([6]int64{}) {
				t.Errorf("dwell segment carried nonzero step deltas: %+v", seg.StepDelta)
			}
		}
		if p.Ring().Len() == 0 {
			break
		}
	}
	wantUs := int64(0.02 * 1e6)
	if totalUs < wantUs-segment.DefaultPeriod || totalUs > wantUs+segment.DefaultPeriod {
		t.Errorf("dwell total = %dus, want ~%dus", totalUs, wantUs)
	}
}

func TestQueueBasics(t *testing.T) {
	q := segment.NewQueue(2)
	if !q.Push(segment.Segment{LineNumber: 1}) {
		t.Fatal("first push should succeed")
	}
	if !q.Push(segment.Segment{LineNumber: 2}) {
		t.Fatal("second push should succeed")
	}
	if q.Push(segment.Segment{LineNumber: 3}) {
		t.Fatal("third push should fail, queue at capacity")
	}
	s, ok := q.Pop()
	if !ok || s.LineNumber != 1 {
		t.Fatalf("pop = %+v, %v, want LineNumber 1", s, ok)
	}
}

func TestFeedholdDecelerateHeldResume(t *testing.T) {
	p := planner.New(8, testAxes())
	code := p.Enqueue(planner.CanonicalMove{Target: planner.Vec6{100, 0, 0, 0, 0, 0}, FeedRate: 50, Type: planner.MoveFeed, LineNumber: 1})
	if code != status.OK {
		t.Fatalf("enqueue: %v", code)
	}
	wantDelta := p.Ring().Head().StepDelta

	rt := segment.NewRuntime(p, 4, segment.DefaultPeriod, nil)
	var sum [6]int64

	// Run a few normal ticks so the move is mid-flight, then hold.
	for i := 0; i < 3; i++ {
		rt.Tick()
		drainQueue(t, rt.Queue(), &sum)
	}
	p.Feedhold()
	if p.Hold != planner.HoldDecelerating {
		t.Fatalf("Hold = %v, want HoldDecelerating", p.Hold)
	}

	for i := 0; i < 1000 && p.Hold == planner.HoldDecelerating; i++ {
		rt.Tick()
		drainQueue(t, rt.Queue(), &sum)
	}
	if p.Hold != planner.HoldHeld {
		t.Fatalf("Hold = %v, want HoldHeld once the deceleration ramp completes", p.Hold)
	}

	if c := rt.Tick(); c != status.NOOP {
		t.Errorf("tick while held = %v, want NOOP", c)
	}

	p.Resume()
	if p.Hold != planner.HoldResuming {
		t.Fatalf("Hold = %v, want HoldResuming", p.Hold)
	}

	for i := 0; i < 100000; i++ {
		c := rt.Tick()
		if c == status.EAGAIN {
			drainQueue(t, rt.Queue(), &sum)
			continue
		}
		if c != status.OK && c != status.NOOP {
			t.Fatalf("tick: %v", c)
		}
		_, last := drainQueue(t, rt.Queue(), &sum)
		if last || p.Ring().Len() == 0 {
			break
		}
	}

	if sum != wantDelta {
		t.Errorf("step sum after hold/resume = %v, want %v (total steps must still conserve)", sum, wantDelta)
	}
}

func TestCommandSyncNotifiesSink(t *testing.T) {
	p := planner.New(4, testAxes())
	code := p.Enqueue(planner.CanonicalMove{Type: planner.MoveCommandSync, Command: planner.CommandSpindle, CommandValue: 1000})
	if code != status.OK {
		t.Fatalf("enqueue: %v", code)
	}
	var gotKind planner.CommandKind
	var gotValue float64
	var called bool
	rt := segment.NewRuntime(p, 4, segment.DefaultPeriod, func(k planner.CommandKind, v float64) {
		called = true
		gotKind = k
		gotValue = v
	})
	if c := rt.Tick(); c != status.OK {
		t.Fatalf("tick: %v", c)
	}
	if !called {
		t.Fatal("expected command sink to be called")
	}
	if gotKind != planner.CommandSpindle || gotValue != 1000 {
		t.Errorf("sink got (%v, %v), want (CommandSpindle, 1000)", gotKind, gotValue)
	}
}
