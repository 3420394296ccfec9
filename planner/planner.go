package planner

import (
	"math"
	"sync"

	"github.com/nasa-jpl/tinyg/axis"
	"github.com/nasa-jpl/tinyg/status"
)

// SegmentDt is the nominal segment period used to derive a per-axis
// acceleration budget from jerk alone (spec section 4.3: "per-axis a_max
// derived from that axis's jerk and the segment time budget"). It mirrors
// the segment package's default period; the two packages do not share an
// import so this is restated here as a planning-time estimate, not a
// hard runtime dependency.
const SegmentDt = 0.005

// HomingState drives the homing cycle one tick per scheduler pass (spec
// section 9's recommendation to express cooperative "continuations" as an
// explicit state enum).
type HomingState int

// Homing states.
const (
	HomingIdle HomingState = iota
	HomingSeeking
	HomingBackingOff
	HomingLatching
	HomingSettingZero
	HomingDone
)

// HoldState drives the feedhold/resume state machine.
type HoldState int

// Hold states.
const (
	HoldOff HoldState = iota
	HoldDecelerating
	HoldHeld
	HoldResuming
)

// String implements fmt.Stringer for diagnostics.
func (s HoldState) String() string {
	switch s {
	case HoldOff:
		return "off"
	case HoldDecelerating:
		return "decelerating"
	case HoldHeld:
		return "held"
	case HoldResuming:
		return "resuming"
	default:
		return "unknown"
	}
}

// String implements fmt.Stringer for diagnostics.
func (s HomingState) String() string {
	switch s {
	case HomingIdle:
		return "idle"
	case HomingSeeking:
		return "seeking"
	case HomingBackingOff:
		return "backing_off"
	case HomingLatching:
		return "latching"
	case HomingSettingZero:
		return "setting_zero"
	case HomingDone:
		return "done"
	default:
		return "unknown"
	}
}

// Planner owns the fixed-capacity ring of PlannedMove slots and the
// junction-velocity / jerk-shape re-planning pass of spec section 4.3.
type Planner struct {
	mu sync.Mutex

	ring *Ring

	// axes is indexed identically to Vec6 (X,Y,Z,A,B,C). A nil entry means
	// that axis is unmapped and ignored by projection/limit math.
	axes [6]*axis.Axis

	lastTarget  Vec6
	haveTarget  bool
	lastUnit    Vec6
	haveLastDir bool

	// ReservationThreshold is the number of free slots the command-line
	// reader task requires before it will accept another line (spec
	// section 4.1's backpressure contract).
	ReservationThreshold int

	Homing HomingState
	Hold   HoldState
}

// New returns a Planner backed by a ring of the given capacity (spec
// section 4.3 recommends >= 28), associated with the given axes in Vec6
// order. A nil axis entry is permitted for unused logical axes.
func New(capacity int, axes [6]*axis.Axis) *Planner {
	return &Planner{
		ring:                 NewRing(capacity),
		axes:                 axes,
		ReservationThreshold: 2,
	}
}

// Ring exposes the underlying ring for the segment runtime's consumer
// side.
func (p *Planner) Ring() *Ring { return p.ring }

// HasRoom reports whether the planner queue has at least
// ReservationThreshold free slots, the condition under which the
// command-line reader task may accept another line (spec section 4.1).
func (p *Planner) HasRoom() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ring.Free() >= p.ReservationThreshold
}

// Enqueue accepts one canonical move, converts it into a planned ring
// slot, and re-plans the tail of the ring. Returns status.EAGAIN if the
// ring is full, per spec section 4.3's queue contract.
func (p *Planner) Enqueue(cm CanonicalMove) status.Code {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ring.Free() == 0 {
		return status.EAGAIN
	}

	switch cm.Type {
	case MoveDwell:
		p.ring.push(PlannedMove{
			Type:         MoveDwell,
			LineNumber:   cm.LineNumber,
			State:        StateQueued,
			DwellSeconds: cm.DwellSeconds,
			Recomputable: true,
		})
		return status.OK
	case MoveCommandSync:
		p.ring.push(PlannedMove{
			Type:         MoveCommandSync,
			LineNumber:   cm.LineNumber,
			State:        StateQueued,
			Command:      cm.Command,
			CommandValue: cm.CommandValue,
			Recomputable: true,
		})
		return status.OK
	}

	if !p.haveTarget {
		p.lastTarget = Vec6{}
		p.haveTarget = true
	}
	delta := sub(cm.Target, p.lastTarget)
	unit, length := normalize(delta)

	if length == 0 {
		// Zero-length move: silently dropped, consistent with RS-274
		// convention (spec section 4.6). The caller's modal state has
		// already advanced upstream in the canonical machine.
		return status.OK
	}

	requested := cm.FeedRate
	if cm.Type == MoveSeek && requested <= 0 {
		// a seek with no explicit rate runs at the axes' velocity_max
		requested = math.Inf(1)
	}
	cruiseCap := p.velocityCapFor(unit, requested)
	if math.IsInf(cruiseCap, 1) {
		cruiseCap = 0
	}
	jerk := p.jerkFor(unit)

	var stepDelta [6]int64
	for i := 0; i < 6; i++ {
		if p.axes[i] == nil {
			continue
		}
		spu := p.axes[i].StepsPerUnit()
		stepDelta[i] = int64(math.Round(delta[i] * spu))
	}

	mv := PlannedMove{
		Type:             cm.Type,
		LineNumber:       cm.LineNumber,
		State:            StateQueued,
		UnitVector:       unit,
		Length:           length,
		StepDelta:        stepDelta,
		RequestedCruise:  cruiseCap,
		Jerk:             jerk,
		Recomputable:     true,
	}
	p.ring.push(mv)

	p.lastTarget = cm.Target
	p.lastUnit = unit
	p.haveLastDir = true

	p.replanLocked()
	return status.OK
}

// velocityCapFor returns the lesser of the requested feed rate and each
// involved axis's velocity_max projected along unit, per spec section
// 4.3's "additionally clamped by each axis's velocity_max projected along
// the direction".
func (p *Planner) velocityCapFor(unit Vec6, requested float64) float64 {
	cap := requested
	for i := 0; i < 6; i++ {
		if p.axes[i] == nil || unit[i] == 0 {
			continue
		}
		proj := p.axes[i].VelocityMax / math.Abs(unit[i])
		if proj < cap {
			cap = proj
		}
	}
	return cap
}

// jerkFor returns the most restrictive jerk limit among axes involved in
// the move, projected along unit the same way velocity is.
func (p *Planner) jerkFor(unit Vec6) float64 {
	j := math.Inf(1)
	for i := 0; i < 6; i++ {
		if p.axes[i] == nil || unit[i] == 0 {
			continue
		}
		proj := p.axes[i].JerkMax / math.Abs(unit[i])
		if proj < j {
			j = proj
		}
	}
	if math.IsInf(j, 1) {
		return 0
	}
	return j
}

// cornerVelocity computes the junction velocity between two successive
// unit direction vectors, taking the most restrictive result across every
// axis involved in either move (each axis contributes its own
// acceleration budget and junction-deviation tolerance).
func (p *Planner) cornerVelocity(prevUnit, curUnit Vec6) float64 {
	minV := math.Inf(1)
	for i := 0; i < 6; i++ {
		if p.axes[i] == nil {
			continue
		}
		if prevUnit[i] == 0 && curUnit[i] == 0 {
			continue
		}
		aMax := AccelBudget(p.axes[i].JerkMax, SegmentDt)
		v := JunctionVelocity(prevUnit, curUnit, aMax, p.axes[i].JunctionDeviation)
		if v < minV {
			minV = v
		}
	}
	return minV
}

// maxEntryForDecel returns the highest entry velocity v0 (capped at cap)
// from which a move of the given length can still decelerate,
// jerk-limited, to vExit within that length. The decel-phase length is
// monotonically increasing in v0, so bisection converges to the answer.
func maxEntryForDecel(length, vExit, jerk, cap float64) float64 {
	if jerk <= 0 {
		return vExit
	}
	decelLen, _ := phase(cap, vExit, jerk)
	if decelLen <= length {
		return cap
	}
	lo, hi := vExit, cap
	for i := 0; i < 40; i++ {
		mid := (lo + hi) / 2
		l, _ := phase(mid, vExit, jerk)
		if l > length {
			hi = mid
		} else {
			lo = mid
		}
	}
	return (lo + hi) / 2
}

// replanLocked performs the backward re-plan pass of spec section 4.3:
// from the newest move to the oldest still-recomputable move, set each
// move's exit velocity from its successor's entry and its own entry
// velocity from the junction to its predecessor and its own feasible
// deceleration distance. The caller must hold p.mu.
func (p *Planner) replanLocked() {
	n := p.ring.Len()
	if n == 0 {
		return
	}

	for i := n - 1; i >= 0; i-- {
		mv := p.ring.at(i)
		if !mv.Recomputable || mv.Type == MoveDwell || mv.Type == MoveCommandSync {
			continue
		}

		var vExit float64
		if i == n-1 {
			vExit = 0 // must be able to stop at the tail of the queue
		} else {
			next := p.ring.at(i + 1)
			if next.Type == MoveDwell || next.Type == MoveCommandSync {
				vExit = 0
			} else {
				vExit = math.Min(next.ActualEntry, mv.RequestedCruise)
			}
		}

		feasibleEntry := maxEntryForDecel(mv.Length, vExit, mv.Jerk, mv.RequestedCruise)

		vEntry := feasibleEntry
		if i > 0 {
			prev := p.ring.at(i - 1)
			if prev.Type != MoveDwell && prev.Type != MoveCommandSync {
				corner := p.cornerVelocity(prev.UnitVector, mv.UnitVector)
				if corner < vEntry {
					vEntry = corner
				}
			}
		} else {
			vEntry = 0 // head of the queue starts from rest if nothing precedes it
		}

		mv.ActualEntry = vEntry
		mv.ActualExit = vExit
		mv.Shape = ComputeShape(mv.Length, vEntry, vExit, mv.RequestedCruise, mv.Jerk)
		mv.ActualCruise = mv.Shape.ActualCruise
		mv.State = StatePlanned
	}
}

// Replan re-runs the backward pass without enqueuing a new move — called
// when a downstream move completes and frees capacity for its
// predecessors' exit velocities to tighten. It is idempotent when no new
// move has been queued since the last call (spec section 8).
func (p *Planner) Replan() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replanLocked()
}

// Flush empties the ring and resets planner-local position tracking,
// per the reset/feedhold-and-flush semantics of spec section 5.
func (p *Planner) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.ring.Len() > 0 {
		p.ring.Advance()
	}
	p.haveTarget = false
	p.haveLastDir = false
	p.Hold = HoldOff
}

// Feedhold requests a controlled deceleration to zero without flushing
// the queue (spec section 4.5). The segment runtime observes Hold ==
// HoldDecelerating and synthesizes a deceleration segment stream instead
// of continuing the head move's tail.
func (p *Planner) Feedhold() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Hold == HoldOff {
		p.Hold = HoldDecelerating
	}
}

// Resume releases a hold once the executor has reached zero velocity.
// Re-planning from the current (now stationary) position happens
// naturally on the next Enqueue/Replan call.
func (p *Planner) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Hold == HoldHeld {
		p.Hold = HoldResuming
	}
}

// SettleResume transitions out of HoldResuming once the executor reports
// motion has resumed normally.
func (p *Planner) SettleResume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Hold == HoldResuming {
		p.Hold = HoldOff
	}
}

// EnterHeld is called by the segment runtime once the deceleration
// synthesized during HoldDecelerating reaches zero velocity.
func (p *Planner) EnterHeld() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Hold == HoldDecelerating {
		p.Hold = HoldHeld
	}
}

func sub(a, b Vec6) Vec6 {
	var out Vec6
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}
