package planner

import "math"

// TrajectoryShape is the three-phase (head/body/tail) velocity profile of
// one planned move, per spec section 4.3. Acceleration within head and
// tail follows a jerk-limited S-curve: constant-magnitude jerk ramps
// acceleration linearly from 0 to its peak at the phase's midpoint and
// back to 0, producing an acceleration profile symmetric about that
// midpoint. A profile symmetric in time has
// average velocity equal to the arithmetic mean of its endpoint
// velocities regardless of the exact acceleration shape, which is what
// lets phase length be computed in closed form below without integrating
// the jerk profile directly.
type TrajectoryShape struct {
	HeadLength, HeadTime float64
	BodyLength, BodyTime float64
	TailLength, TailTime float64

	// ActualCruise is the velocity reached at the end of head / start of
	// tail — may be less than the move's RequestedCruise if the move is
	// too short to reach it (a "peaked" profile).
	ActualCruise float64
}

// phase returns the time and length of an S-curve phase moving from v0 to
// v1 under jerk j. Time is the closed form for a symmetric
// linear-jerk-ramp acceleration profile: T = 2*sqrt(|v1-v0|/j). Length
// follows from the time-symmetry property noted above: L = (v0+v1)/2 * T.
func phase(v0, v1, jerk float64) (length, dur float64) {
	dv := v1 - v0
	if dv == 0 || jerk <= 0 {
		return 0, 0
	}
	dur = 2 * math.Sqrt(math.Abs(dv)/jerk)
	length = (v0 + v1) / 2 * dur
	return length, dur
}

// PeakAccel returns the acceleration reached at the midpoint of a phase
// moving from v0 to v1 under jerk j: a_peak = sqrt(|v1-v0| * j).
func PeakAccel(v0, v1, jerk float64) float64 {
	return math.Sqrt(math.Abs(v1-v0) * jerk)
}

// AccelBudget derives a usable a_max from an axis's jerk limit and the
// segment time budget dt, per spec section 4.3 ("per-axis a_max derived
// from that axis's jerk and the segment time budget"): the most
// acceleration reachable by ramping jerk for one segment period.
func AccelBudget(jerkMax, dt float64) float64 {
	return jerkMax * dt
}

// ComputeShape derives the head/body/tail profile for a move of the given
// scalar length between vEntry and vExit, requesting vCruiseWanted as the
// plateau velocity, under the given jerk limit. It implements the
// degenerate cases of spec section 4.3: if head+tail would exceed length,
// the body collapses to zero and the cruise velocity is reduced to the
// highest value that fits (a "peaked" profile); if even that doesn't fit,
// the shape degenerates to head-only or tail-only with
// v_cruise = min(vEntry, vExit).
func ComputeShape(length, vEntry, vExit, vCruiseWanted, jerk float64) TrajectoryShape {
	floor := math.Max(vEntry, vExit)
	peak := math.Max(vCruiseWanted, floor)

	headLen, headTime := phase(vEntry, peak, jerk)
	tailLen, tailTime := phase(peak, vExit, jerk)

	if headLen+tailLen <= length {
		bodyLen := length - headLen - tailLen
		var bodyTime float64
		if peak > 0 {
			bodyTime = bodyLen / peak
		}
		return TrajectoryShape{
			HeadLength: headLen, HeadTime: headTime,
			BodyLength: bodyLen, BodyTime: bodyTime,
			TailLength: tailLen, TailTime: tailTime,
			ActualCruise: peak,
		}
	}

	// Peaked profile: find the highest vp in [floor, peak] for which
	// head(vEntry,vp) + tail(vp,vExit) == length, by bisection — the sum
	// is monotonically increasing in vp, so bisection converges cleanly.
	floorHeadLen, _ := phase(vEntry, floor, jerk)
	floorTailLen, _ := phase(floor, vExit, jerk)
	if floorHeadLen+floorTailLen >= length {
		// Even a move that never exceeds the floor velocity overshoots
		// the available length: degenerate further to head-only or
		// tail-only at v_cruise = min(vEntry, vExit), per spec.
		vc := math.Min(vEntry, vExit)
		if vEntry <= vExit {
			hl, ht := phase(vEntry, vc, jerk)
			return TrajectoryShape{HeadLength: hl, HeadTime: ht, ActualCruise: vc}
		}
		tl, tt := phase(vc, vExit, jerk)
		return TrajectoryShape{TailLength: tl, TailTime: tt, ActualCruise: vc}
	}

	lo, hi := floor, peak
	for i := 0; i < 40; i++ {
		mid := (lo + hi) / 2
		hl, _ := phase(vEntry, mid, jerk)
		tl, _ := phase(mid, vExit, jerk)
		if hl+tl > length {
			hi = mid
		} else {
			lo = mid
		}
	}
	vp := (lo + hi) / 2
	hl, ht := phase(vEntry, vp, jerk)
	tl, tt := phase(vp, vExit, jerk)
	return TrajectoryShape{
		HeadLength: hl, HeadTime: ht,
		TailLength: tl, TailTime: tt,
		ActualCruise: vp,
	}
}
