// Package stepper implements the ISR-style step-pulse executor of spec
// section 4.5: it consumes segments from the step queue and produces
// correctly timed STEP/DIRECTION pulses via a hal.Pins implementation,
// using a Bresenham/DDA distribution so each axis's steps land evenly
// spaced across the segment rather than bunched at one end.
package stepper

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/nasa-jpl/tinyg/axis"
	"github.com/nasa-jpl/tinyg/hal"
	"github.com/nasa-jpl/tinyg/segment"
)

// MotorCount is the number of physical motors this executor drives;
// fixed at construction, matching spec section 5's "no dynamic
// allocation" rule.
const MotorCount = 6

// Notifier is called by the executor when a move completes (the last
// segment of a move has finished) or when an underrun or limit trip
// occurs, so the scheduler/planner can react (advance the queue head,
// raise an alarm).
type Notifier interface {
	// MoveCompleted is called with the line number of the completed
	// move's last segment, once all its steps have been pulsed.
	MoveCompleted(lineNumber int)
	// Underrun is called when the queue emptied without the prior
	// segment having carried the Last flag — spec section 4.5 calls this
	// "a correctness bug upstream".
	Underrun()
	// LimitTripped is called when a limit switch trips during motion.
	LimitTripped(axisName byte, end hal.LimitEnd)
}

// axisState is the per-axis Bresenham/DDA bookkeeping of spec section
// 4.5: a counter accumulator, remaining step count for the active
// segment, and direction.
type axisState struct {
	counter         int64
	stepsRemaining  int64
	stepsAbs        int64
	segmentTicks    int64
	forward         bool
}

// Executor is the stepper ISR surface. In this host implementation the
// "ISR" is a callback armed on a hal.Timer at the step-pulse rate; Go has
// no real interrupt priorities, so correctness here rests on the Timer
// implementation invoking the callback promptly and on this type doing
// no blocking work inside it, mirroring the no-blocking-in-ISR rule of
// spec section 5.
type Executor struct {
	mu sync.Mutex

	pins    hal.Pins
	timer   hal.Timer
	queue   *segment.Queue
	axes    [6]*axis.Axis
	notify  Notifier

	cancelStep func()
	tickUs     int64

	states [MotorCount]axisState

	segmentActive bool
	segmentLast   bool
	segmentLine   int

	alarmed int32 // atomic bool

	// pulseWidthUs is how long a STEP pulse stays high before the
	// pulse-off one-shot clears it (spec section 4.5, "1-5us typical").
	pulseWidthUs int64

	homingOverride limitOverride
}

// limitOverride names the one switch a HomingCycle currently owns.
type limitOverride struct {
	axis   byte
	end    hal.LimitEnd
	active bool
}

// New returns an Executor driving pins via timer at tickMicroseconds per
// ISR tick, consuming from queue, reporting axis position changes into
// axes, and notifying notify of completions/faults.
func New(pins hal.Pins, timer hal.Timer, queue *segment.Queue, axes [6]*axis.Axis, notify Notifier, tickMicroseconds int64, pulseWidthMicroseconds int64) *Executor {
	return &Executor{
		pins:         pins,
		timer:        timer,
		queue:        queue,
		axes:         axes,
		notify:       notify,
		tickUs:       tickMicroseconds,
		pulseWidthUs: pulseWidthMicroseconds,
	}
}

// Start arms the step-pulse timer. Safe to call once.
func (e *Executor) Start() {
	e.cancelStep = e.timer.Arm(e.tickUs, e.tick)
}

// Stop cancels the step-pulse timer.
func (e *Executor) Stop() {
	if e.cancelStep != nil {
		e.cancelStep()
		e.cancelStep = nil
	}
}

// Alarmed reports whether the executor is in the latched alarm state
// (spec section 4.6): a limit trip or underrun, cleared only by Reset.
func (e *Executor) Alarmed() bool {
	return atomic.LoadInt32(&e.alarmed) != 0
}

// Reset clears the alarm latch and any in-flight segment state, called
// after a homing cycle per spec section 4.6 ("recovery requires a homing
// cycle").
func (e *Executor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	atomic.StoreInt32(&e.alarmed, 0)
	e.segmentActive = false
	for i := range e.states {
		e.states[i] = axisState{}
	}
}

// SetHomingOverride tells CheckLimits to ignore axisName/end because a
// HomingCycle is reading that switch directly and deliberately driving
// motion into it; without this, the background limit handler would treat
// a homing seek's expected switch contact as an alarm-worthy fault.
// Passing a zero axisName clears any override.
func (e *Executor) SetHomingOverride(axisName byte, end hal.LimitEnd) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.homingOverride = limitOverride{axis: axisName, end: end, active: axisName != 0}
}

// ClearHomingOverride restores normal alarm behavior for every switch.
func (e *Executor) ClearHomingOverride() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.homingOverride = limitOverride{}
}

// CheckLimits polls hal.Pins' limit inputs for every configured axis; a
// tripped switch during motion performs an immediate stop, per spec
// section 4.6. This is the "limit-switch handler" background task of
// spec section 4.1's dispatch order — it is not itself an ISR, but it
// must run at the highest background priority.
func (e *Executor) CheckLimits() (tripped bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range e.axes {
		if a == nil {
			continue
		}
		name := byte(a.Name)
		for _, end := range [2]hal.LimitEnd{hal.LimitMin, hal.LimitMax} {
			if a.HomingSwitchMode == axis.SwitchDisabled {
				continue // ISR wired, event ignored (spec section 9 decision)
			}
			if e.homingOverride.active && e.homingOverride.axis == name && e.homingOverride.end == end {
				continue
			}
			if e.pins.ReadLimit(name, end) {
				e.emergencyStopLocked()
				if e.notify != nil {
					e.notify.LimitTripped(name, end)
				}
				return true
			}
		}
	}
	return false
}

// emergencyStopLocked clears all steps_remaining, flushing the in-flight
// segment immediately. Caller must hold e.mu.
func (e *Executor) emergencyStopLocked() {
	for i := range e.states {
		e.states[i].stepsRemaining = 0
	}
	e.segmentActive = false
	atomic.StoreInt32(&e.alarmed, 1)
}

// tick is the step-pulse ISR body, invoked once per tickUs by the armed
// Timer. It must never block.
func (e *Executor) tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Alarmed() {
		return
	}

	if !e.segmentActive {
		if !e.loadNextSegmentLocked() {
			return
		}
	}

	anyRemaining := false
	for m := 0; m < MotorCount; m++ {
		st := &e.states[m]
		if st.stepsRemaining == 0 {
			continue
		}
		anyRemaining = true
		st.counter += st.stepsAbs
		if st.counter >= st.segmentTicks {
			st.counter -= st.segmentTicks
			e.pins.SetStep(m, true)
			e.armPulseOff(m)
			st.stepsRemaining--
			e.accumulatePositionLocked(m, st.forward)
		}
	}

	if !anyRemaining {
		e.completeSegmentLocked()
	}
}

// accumulatePositionLocked is the executor's only writer of
// MachinePositionSteps (a completed homing cycle also zeroes it): every asserted STEP pulse for motor m moves
// axis m's machine position by one step, signed by the commanded
// direction. Caller must hold e.mu; the axis's own lock guards the
// field against concurrent readers (report snapshots, HTTP handlers).
func (e *Executor) accumulatePositionLocked(m int, forward bool) {
	a := e.axes[m]
	if a == nil {
		return
	}
	a.Lock()
	if forward {
		a.MachinePositionSteps++
	} else {
		a.MachinePositionSteps--
	}
	a.Unlock()
}

// armPulseOff schedules the one-shot that clears motor m's STEP line
// after pulseWidthUs. hal.Timer only offers periodic arming, so the
// callback cancels its own schedule the first time it fires, turning it
// into a one-shot (spec section 4.5's "short one-shot timer").
func (e *Executor) armPulseOff(m int) {
	var cancel func()
	cancel = e.timer.Arm(e.pulseWidthUs, func() {
		e.pins.SetStep(m, false)
		if cancel != nil {
			cancel()
		}
	})
}

// loadNextSegmentLocked pops the next segment and loads per-axis DDA
// state. Returns false if the queue was empty. Caller must hold e.mu.
func (e *Executor) loadNextSegmentLocked() bool {
	seg, ok := e.queue.Pop()
	if !ok {
		// Nothing queued yet; completeSegmentLocked is the one that
		// decides whether this is a normal idle (Last already seen) or
		// an underrun, based on the segment that just finished.
		return false
	}

	for m := 0; m < MotorCount; m++ {
		delta := seg.StepDelta[m]
		st := &e.states[m]
		st.counter = 0
		st.stepsRemaining = absInt64(delta)
		st.stepsAbs = absInt64(delta)
		st.segmentTicks = seg.Microseconds / e.tickUs
		if st.segmentTicks <= 0 {
			st.segmentTicks = 1
		}
		forward := delta >= 0
		if forward != st.forward || st.stepsRemaining > 0 {
			e.pins.SetDir(m, forward)
			st.forward = forward
		}
	}

	e.segmentActive = true
	e.segmentLast = seg.Last
	e.segmentLine = seg.LineNumber
	return true
}

// completeSegmentLocked is called once all axes have zero steps
// remaining in the active segment: it either loads the next segment or,
// if the queue is empty, checks whether the completed segment carried
// the Last flag (normal end of move) or not (underrun, spec section
// 4.5).
func (e *Executor) completeSegmentLocked() {
	wasLast := e.segmentLast
	line := e.segmentLine
	e.segmentActive = false

	if e.loadNextSegmentLocked() {
		if wasLast && e.notify != nil {
			e.notify.MoveCompleted(line)
		}
		return
	}

	if wasLast {
		if e.notify != nil {
			e.notify.MoveCompleted(line)
		}
		return
	}

	// Queue empty with no last_flag: an underrun, per spec section 4.5.
	atomic.StoreInt32(&e.alarmed, 1)
	if e.notify != nil {
		e.notify.Underrun()
	} else {
		log.Printf("stepper: underrun on line %d", line)
	}
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
