package segment

import (
	"math"

	"github.com/nasa-jpl/tinyg/planner"
	"github.com/nasa-jpl/tinyg/status"
)

// CommandSink is notified when a MoveCommandSync move is dequeued, at the
// moment it takes effect (spec section 4.4, "signals the command ... to
// the host interface at the moment of dequeue").
type CommandSink func(kind planner.CommandKind, value float64)

// Runtime is the segment runtime of spec section 4.4: it consumes the
// planner's head move and emits fixed-duration Segments into a Queue. It
// is a background (non-ISR) task, called once per scheduler pass via
// Tick, and is itself the sole producer into the Queue.
type Runtime struct {
	planner *planner.Planner
	queue   *Queue
	period  int64 // microseconds

	onCommand CommandSink

	phaseTime    float64 // seconds into the current move
	residual     [6]float64
	stepsEmitted [6]int64
	dwellElapsed float64

	// holding/holdSegment/holdVelocity track progress through the
	// feedhold deceleration ramp (feedholdTick), separate from the normal
	// motion phase bookkeeping above.
	holding      bool
	holdSegment  int
	holdVelocity float64
}

// NewRuntime returns a Runtime consuming from p's ring and producing into
// a newly-allocated Queue of the given capacity, at the given segment
// period in microseconds (DefaultPeriod if 0).
func NewRuntime(p *planner.Planner, queueCapacity int, periodMicroseconds int64, onCommand CommandSink) *Runtime {
	if periodMicroseconds <= 0 {
		periodMicroseconds = DefaultPeriod
	}
	return &Runtime{
		planner:   p,
		queue:     NewQueue(queueCapacity),
		period:    periodMicroseconds,
		onCommand: onCommand,
	}
}

// Queue exposes the step queue for the stepper executor's consumer side.
func (r *Runtime) Queue() *Queue { return r.queue }

// Tick performs one unit of scheduler work: it advances the head move (or
// dwell, or synchronous command) by at most one coalesced segment,
// honoring the cooperative task contract of spec section 4.1 (OK/NOOP/
// EAGAIN).
func (r *Runtime) Tick() status.Code {
	if r.queue.Free() == 0 {
		return status.EAGAIN
	}

	if r.planner.Hold != planner.HoldDecelerating {
		// A flush or reset may abandon a hold mid-ramp; don't let stale
		// progress leak into a later, unrelated feedhold.
		r.holding = false
	}

	switch r.planner.Hold {
	case planner.HoldHeld:
		// Spec section 4.5/4.1 decision: a synchronous command sitting at
		// the queue head during a hold does not run until resume, so
		// nothing downstream of the ring head may advance here.
		return status.NOOP
	case planner.HoldDecelerating:
		head := r.planner.Ring().Head()
		if head == nil || (head.Type != planner.MoveFeed && head.Type != planner.MoveSeek) {
			// Nothing to decelerate from (queue empty, or head is a
			// dwell/command); the hold takes effect immediately.
			r.planner.EnterHeld()
			return status.NOOP
		}
		return r.feedholdTick(head)
	case planner.HoldResuming:
		// No blended ramp-up: the executor is already stationary, so
		// resuming means the next Tick just resumes normal dispatch.
		r.planner.SettleResume()
	}

	head := r.planner.Ring().Head()
	if head == nil {
		return status.NOOP
	}

	switch head.Type {
	case planner.MoveDwell:
		return r.dwellTick(head)
	case planner.MoveCommandSync:
		if r.onCommand != nil {
			r.onCommand(head.Command, head.CommandValue)
		}
		r.planner.Ring().Advance()
		return status.OK
	default:
		return r.motionTick(head)
	}
}

func (r *Runtime) dwellTick(head *planner.PlannedMove) status.Code {
	if head.State == planner.StateQueued {
		head.State = planner.StateRunning
		r.dwellElapsed = 0
	}

	remainingUs := int64((head.DwellSeconds - r.dwellElapsed) * 1e6)
	if remainingUs <= 0 {
		head.State = planner.StateCompleted
		r.planner.Ring().Advance()
		return status.OK
	}

	segUs := r.period
	last := false
	if segUs >= remainingUs {
		segUs = remainingUs
		last = true
	}
	if segUs < MinPeriod {
		segUs = MinPeriod
	}

	ok := r.queue.Push(Segment{Microseconds: segUs, LineNumber: head.LineNumber, Last: last})
	if !ok {
		return status.EAGAIN
	}
	r.dwellElapsed += float64(segUs) / 1e6
	if last {
		head.State = planner.StateCompleted
		r.planner.Ring().Advance()
	}
	return status.OK
}

// maxCoalesce bounds the minimum-segment-coalescing loop (spec section
// 4.4: "coalesce into a longer segment until at least one axis steps").
// At DefaultPeriod this bounds a coalesced segment to 250ms, comfortably
// longer than any real feed rate's inter-step gap.
const maxCoalesce = 50

func (r *Runtime) motionTick(head *planner.PlannedMove) status.Code {
	if head.State == planner.StateQueued {
		head.State = planner.StateRunning
		r.phaseTime = 0
		r.residual = [6]float64{}
		r.stepsEmitted = [6]int64{}
	}

	total := head.Shape.HeadTime + head.Shape.BodyTime + head.Shape.TailTime
	if total <= 0 {
		head.State = planner.StateCompleted
		r.planner.Ring().Advance()
		r.planner.Replan()
		return status.OK
	}

	var segUs int64
	var newPhase float64
	var steps [6]int64
	var newResidual [6]float64
	last := false

	for tries := 0; tries < maxCoalesce; tries++ {
		segUs += r.period
		dt := float64(segUs) / 1e6
		newPhase = r.phaseTime + dt
		if newPhase >= total {
			newPhase = total
			last = true
		}

		posOld := phasePositionAt(head, r.phaseTime)
		posNew := phasePositionAt(head, newPhase)
		dist := posNew - posOld

		any := false
		for i := 0; i < 6; i++ {
			if head.Length == 0 {
				continue
			}
			raw := dist*float64(head.StepDelta[i])/head.Length + r.residual[i]
			if last {
				steps[i] = head.StepDelta[i] - r.stepsEmitted[i]
			} else {
				rounded := math.Round(raw)
				steps[i] = int64(rounded)
				newResidual[i] = raw - rounded
			}
			if steps[i] != 0 {
				any = true
			}
		}
		if any || last {
			break
		}
	}

	if segUs < MinPeriod {
		segUs = MinPeriod
	}

	ok := r.queue.Push(Segment{StepDelta: steps, Microseconds: segUs, LineNumber: head.LineNumber, Last: last})
	if !ok {
		return status.EAGAIN
	}

	for i := 0; i < 6; i++ {
		r.stepsEmitted[i] += steps[i]
	}
	r.residual = newResidual
	r.phaseTime = newPhase

	if last {
		head.State = planner.StateCompleted
		r.planner.Ring().Advance()
		r.planner.Replan()
	}
	return status.OK
}

// feedholdSegments is the fixed number of segments a feedhold deceleration
// is spread across, independent of the move's own jerk-limited shape: a
// hold is a controller-commanded abort of the in-progress move, not a
// continuation of its planned trajectory, so it gets its own short, fixed
// ramp down to zero velocity.
const feedholdSegments = 8

// feedholdTick emits one segment of the feedhold deceleration ramp,
// linearly decaying the velocity captured at the moment the hold began
// down to zero over feedholdSegments segments. It is the segment runtime's
// half of spec section 4.5's feedhold: the stepper executor just pulses
// whatever steps this produces, unaware a hold is in progress.
func (r *Runtime) feedholdTick(head *planner.PlannedMove) status.Code {
	if !r.holding {
		r.holding = true
		r.holdSegment = 0
		r.holdVelocity = velocityAt(head, r.phaseTime)
		r.residual = [6]float64{}
	}

	if r.holdSegment >= feedholdSegments || r.holdVelocity <= 0 {
		r.holding = false
		r.planner.EnterHeld()
		return status.NOOP
	}

	frac0 := float64(r.holdSegment) / feedholdSegments
	frac1 := float64(r.holdSegment+1) / feedholdSegments
	v0 := r.holdVelocity * (1 - frac0)
	v1 := r.holdVelocity * (1 - frac1)
	dt := float64(r.period) / 1e6
	dist := 0.5 * (v0 + v1) * dt

	var steps [6]int64
	for i := 0; i < 6; i++ {
		if head.Length == 0 {
			continue
		}
		raw := dist*float64(head.StepDelta[i])/head.Length + r.residual[i]
		rounded := math.Round(raw)
		steps[i] = int64(rounded)
		r.residual[i] = raw - rounded
	}

	ok := r.queue.Push(Segment{StepDelta: steps, Microseconds: r.period, LineNumber: head.LineNumber})
	if !ok {
		return status.EAGAIN
	}
	for i := 0; i < 6; i++ {
		r.stepsEmitted[i] += steps[i]
	}
	r.holdSegment++
	return status.OK
}

// velocityAt estimates the scalar velocity along mv's path at phase time t
// by differencing phasePositionAt over a small step, reusing the same
// closed-form position function the normal motion tick already relies on
// rather than deriving a second symbolic velocity formula.
func velocityAt(mv *planner.PlannedMove, t float64) float64 {
	const eps = 1e-6
	return (phasePositionAt(mv, t+eps) - phasePositionAt(mv, t)) / eps
}

// phasePositionAt returns the scalar distance traveled along a move's
// path at time t (0 <= t <= total phase time), using the same
// symmetric-jerk closed form as planner.ComputeShape: within a phase, the
// acceleration ramps linearly to a peak at the phase midpoint and back
// down, so velocity and position have closed forms in two halves.
func phasePositionAt(mv *planner.PlannedMove, t float64) float64 {
	h := mv.Shape
	switch {
	case t <= h.HeadTime:
		return phasePos(mv.ActualEntry, mv.ActualCruise, h.HeadTime, t)
	case t <= h.HeadTime+h.BodyTime:
		return h.HeadLength + mv.ActualCruise*(t-h.HeadTime)
	default:
		tt := t - h.HeadTime - h.BodyTime
		return h.HeadLength + h.BodyLength + phasePos(mv.ActualCruise, mv.ActualExit, h.TailTime, tt)
	}
}

// phasePos integrates the symmetric jerk-ramp velocity profile of a
// single head/tail phase from v0 to v1 over duration capT, returning the
// distance covered by local time t (0 <= t <= capT).
func phasePos(v0, v1, capT, t float64) float64 {
	if capT <= 0 {
		return 0
	}
	dv := v1 - v0
	sign := 1.0
	if dv < 0 {
		sign = -1.0
	}
	j := 4 * math.Abs(dv) / (capT * capT)
	half := capT / 2
	if t <= half {
		return v0*t + sign*j*t*t*t/6
	}
	tau := t - half
	xHalf := v0*half + sign*j*half*half*half/6
	vHalf := v0 + sign*j*half*half/2
	return xHalf + vHalf*tau + sign*j*half*tau*tau/2 - sign*j*tau*tau*tau/6
}
