package scheduler_test

import (
	"testing"

	"github.com/nasa-jpl/tinyg/hal"
	"github.com/nasa-jpl/tinyg/planner"
	"github.com/nasa-jpl/tinyg/scheduler"
	"github.com/nasa-jpl/tinyg/segment"
	"github.com/nasa-jpl/tinyg/status"
	"github.com/nasa-jpl/tinyg/stepper"
)

func TestHomingCycleFullSequence(t *testing.T) {
	axes := testAxes()
	p := planner.New(8, axes)
	pins := hal.NewMock()
	timer := hal.NewMockTimer()
	exec := stepper.New(pins, timer, segment.NewQueue(8), axes, nil, 500, 5)
	exec.Start()

	h := scheduler.NewHomingCycle(axes[0], 0, hal.LimitMax, pins, p, exec)
	h.Start()
	if p.Homing != planner.HomingSeeking {
		t.Fatalf("Homing = %v, want HomingSeeking", p.Homing)
	}
	if p.Ring().Len() != 1 {
		t.Fatalf("expected a seek move queued, ring len = %d", p.Ring().Len())
	}

	if code := h.Tick(); code != status.EAGAIN {
		t.Fatalf("tick before switch contact = %v, want EAGAIN", code)
	}

	pins.TripLimit('X', hal.LimitMax, true)
	if code := h.Tick(); code != status.OK {
		t.Fatalf("tick on switch contact = %v, want OK", code)
	}
	if p.Homing != planner.HomingBackingOff {
		t.Fatalf("Homing = %v, want HomingBackingOff", p.Homing)
	}
	if exec.Alarmed() {
		t.Error("homing switch contact should not leave the executor alarmed")
	}

	pins.TripLimit('X', hal.LimitMax, false)
	if code := h.Tick(); code != status.EAGAIN {
		t.Fatalf("tick while backoff move still queued = %v, want EAGAIN", code)
	}

	p.Flush() // simulate the segment runtime having drained the backoff move
	if code := h.Tick(); code != status.OK {
		t.Fatalf("tick once backoff drains = %v, want OK", code)
	}
	if p.Homing != planner.HomingLatching {
		t.Fatalf("Homing = %v, want HomingLatching", p.Homing)
	}

	pins.TripLimit('X', hal.LimitMax, true)
	if code := h.Tick(); code != status.OK {
		t.Fatalf("tick on latch contact = %v, want OK", code)
	}
	if p.Homing != planner.HomingSettingZero {
		t.Fatalf("Homing = %v, want HomingSettingZero", p.Homing)
	}

	axes[0].MachinePositionSteps = 12345
	if code := h.Tick(); code != status.OK {
		t.Fatalf("tick on zero-set = %v, want OK", code)
	}
	if p.Homing != planner.HomingDone {
		t.Fatalf("Homing = %v, want HomingDone", p.Homing)
	}
	if axes[0].MachinePositionSteps != 0 {
		t.Errorf("MachinePositionSteps = %d, want 0 after homing", axes[0].MachinePositionSteps)
	}

	if code := h.Tick(); code != status.NOOP {
		t.Errorf("tick once done = %v, want NOOP", code)
	}
}

func TestHomingStartIgnoredWhileAlreadyRunning(t *testing.T) {
	axes := testAxes()
	p := planner.New(8, axes)
	pins := hal.NewMock()
	timer := hal.NewMockTimer()
	exec := stepper.New(pins, timer, segment.NewQueue(8), axes, nil, 500, 5)

	h := scheduler.NewHomingCycle(axes[0], 0, hal.LimitMax, pins, p, exec)
	h.Start()
	lenAfterFirstStart := p.Ring().Len()
	h.Start() // should be a no-op: Homing is already HomingSeeking
	if p.Ring().Len() != lenAfterFirstStart {
		t.Errorf("second Start() enqueued another move: ring len %d -> %d", lenAfterFirstStart, p.Ring().Len())
	}
}
