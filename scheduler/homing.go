package scheduler

import (
	"github.com/nasa-jpl/tinyg/axis"
	"github.com/nasa-jpl/tinyg/hal"
	"github.com/nasa-jpl/tinyg/planner"
	"github.com/nasa-jpl/tinyg/status"
	"github.com/nasa-jpl/tinyg/stepper"
)

// HomingCycle drives one axis through seek -> back off -> slow latch ->
// zero, expressed as the explicit state enum spec section 9 recommends
// for cooperative "continuations" rather than a blocking routine. Tick is
// called once per scheduler pass by the "homing cycle tick" dispatch
// entry of spec section 4.1.
type HomingCycle struct {
	Axis      *axis.Axis
	AxisIndex int // this axis's slot in planner.Vec6 (0=X .. 5=C)
	End       hal.LimitEnd

	pins    hal.Pins
	planner *planner.Planner
	exec    *stepper.Executor

	// LatchFraction scales HomingVelocity down for the second, precise
	// approach to the switch, matching the seek-fast/latch-slow pattern
	// real CNC homing cycles use to trade speed for repeatability.
	LatchFraction float64
}

// NewHomingCycle returns a HomingCycle for axis a, homing toward end,
// driving moves through p and coordinating the limit-switch override with
// exec so the deliberate switch contact is not mistaken for a fault.
func NewHomingCycle(a *axis.Axis, axisIndex int, end hal.LimitEnd, pins hal.Pins, p *planner.Planner, exec *stepper.Executor) *HomingCycle {
	return &HomingCycle{
		Axis:          a,
		AxisIndex:     axisIndex,
		End:           end,
		pins:          pins,
		planner:       p,
		exec:          exec,
		LatchFraction: 0.2,
	}
}

// Start begins a homing cycle for this axis if one is not already running
// (HomingDone counts as inactive so the same cycle can be reused).
func (h *HomingCycle) Start() {
	if h.planner.Homing != planner.HomingIdle && h.planner.Homing != planner.HomingDone {
		return
	}
	h.exec.SetHomingOverride(byte(h.Axis.Name), h.End)
	h.planner.Homing = planner.HomingSeeking
	h.enqueueSeek(h.Axis.HomingVelocity)
}

func (h *HomingCycle) direction() float64 {
	if h.End == hal.LimitMax {
		return 1
	}
	return -1
}

// enqueueSeek queues a move that overshoots the axis's full travel span in
// the homing direction, so the limit switch — not the travel limit — is
// what stops it; the switch is the reason this move is safe to overshoot.
func (h *HomingCycle) enqueueSeek(velocity float64) {
	span := h.Axis.Travel.Max - h.Axis.Travel.Min
	if span < 0 {
		span = -span
	}
	dist := h.direction() * (span + h.Axis.HomingBackoff)
	var target planner.Vec6
	target[h.AxisIndex] = h.Axis.PositionUnits() + dist
	h.planner.Enqueue(planner.CanonicalMove{Target: target, FeedRate: velocity, Type: planner.MoveSeek})
}

func (h *HomingCycle) enqueueBackoff() {
	var target planner.Vec6
	target[h.AxisIndex] = h.Axis.PositionUnits() - h.direction()*h.Axis.HomingBackoff
	h.planner.Enqueue(planner.CanonicalMove{Target: target, FeedRate: h.Axis.HomingVelocity, Type: planner.MoveSeek})
}

// Tick advances the state machine by one scheduler pass.
func (h *HomingCycle) Tick() status.Code {
	switch h.planner.Homing {
	case planner.HomingIdle, planner.HomingDone:
		return status.NOOP

	case planner.HomingSeeking:
		if h.pins.ReadLimit(byte(h.Axis.Name), h.End) {
			h.planner.Flush()
			h.exec.Reset()
			h.planner.Homing = planner.HomingBackingOff
			h.enqueueBackoff()
			return status.OK
		}
		return status.EAGAIN

	case planner.HomingBackingOff:
		if h.planner.Ring().Len() > 0 {
			return status.EAGAIN
		}
		h.planner.Homing = planner.HomingLatching
		h.enqueueSeek(h.Axis.HomingVelocity * h.LatchFraction)
		return status.OK

	case planner.HomingLatching:
		if h.pins.ReadLimit(byte(h.Axis.Name), h.End) {
			h.planner.Flush()
			h.exec.Reset()
			h.planner.Homing = planner.HomingSettingZero
			return status.OK
		}
		return status.EAGAIN

	case planner.HomingSettingZero:
		h.Axis.Lock()
		h.Axis.MachinePositionSteps = 0
		h.Axis.Unlock()
		h.exec.ClearHomingOverride()
		h.planner.Homing = planner.HomingDone
		return status.OK

	default:
		return status.NOOP
	}
}
