package canonical

import (
	"math"

	"github.com/nasa-jpl/tinyg/gcode"
	"github.com/nasa-jpl/tinyg/status"
)

// Machine owns the live modal State and converts tokenized blocks into
// canonical ops.
type Machine struct {
	state State
}

// NewMachine returns a Machine with power-on default modal state.
func NewMachine() *Machine {
	return &Machine{state: NewState()}
}

// State returns a copy of the live modal state.
func (m *Machine) State() State {
	return m.state
}

// Execute consumes one tokenized block and returns the canonical ops it
// produces. On any failure status, no ops are returned and the live
// modal state is unchanged, per spec section 4.2's "Evaluation order"
// and "Failure semantics".
func (m *Machine) Execute(b gcode.Block) ([]Op, status.Code) {
	if code := gcode.CheckModalGroups(b); code != status.OK {
		return nil, code
	}

	// work on a copy; only commit on success
	s := m.state
	s.g53OneShot = false
	s.EndOfBlock = false
	if b.HasLine {
		s.LineNumber = b.LineNumber
	}

	var ops []Op

	// word returns the value of the block's letter word in modal group g;
	// a block may carry one G or M word per group (e.g. "G21 G90 G1").
	word := func(letter byte, g gcode.Group) (float64, bool) {
		for _, w := range b.All(letter) {
			if gcode.GroupOf(w) == g {
				return w.Value, true
			}
		}
		return 0, false
	}

	// 1. feed-rate mode
	if v, ok := word('G', gcode.GroupFeedRateMode); ok {
		if v == 93 {
			s.FeedRateMode = FeedInverseTime
			ops = append(ops, Op{Kind: OpSetFeedRateMode, FeedRateMode: s.FeedRateMode, LineNumber: s.LineNumber})
		} else if v == 94 {
			s.FeedRateMode = FeedUnitsPerMinute
			ops = append(ops, Op{Kind: OpSetFeedRateMode, FeedRateMode: s.FeedRateMode, LineNumber: s.LineNumber})
		}
	}

	// 2. feed rate. Evaluated before units (step 11), so a unit change in
	// this same block does not retroactively rescale F — it is read in
	// whatever unit system was active on entry, per spec section 4.2.
	if f, ok := b.Has('F'); ok {
		if s.Units == UnitsInch && s.FeedRateMode != FeedInverseTime {
			f *= MMPerInch
		}
		s.FeedRate = f
	}

	// 3. spindle speed
	if sp, ok := b.Has('S'); ok {
		s.SpindleSpeed = sp
	}

	// 4/5. tool + tool-change (M6 not implemented; T alone selects)
	if t, ok := b.Has('T'); ok {
		s.Tool = int(t)
		ops = append(ops, Op{Kind: OpSetTool, Tool: s.Tool, LineNumber: s.LineNumber})
	}

	// 6. spindle on/off
	if mv, ok := word('M', gcode.GroupSpindle); ok {
		switch mv {
		case 3:
			s.Spindle = SpindleCW
			ops = append(ops, Op{Kind: OpSetSpindle, Spindle: s.Spindle, SpindleSpeed: s.SpindleSpeed, LineNumber: s.LineNumber})
		case 4:
			s.Spindle = SpindleCCW
			ops = append(ops, Op{Kind: OpSetSpindle, Spindle: s.Spindle, SpindleSpeed: s.SpindleSpeed, LineNumber: s.LineNumber})
		case 5:
			s.Spindle = SpindleOff
			ops = append(ops, Op{Kind: OpSetSpindle, Spindle: s.Spindle, LineNumber: s.LineNumber})
		}
	}

	// 7. coolant
	if mv, ok := word('M', gcode.GroupCoolant); ok {
		switch mv {
		case 7:
			s.Coolant.Mist = true
			ops = append(ops, Op{Kind: OpSetCoolant, Coolant: s.Coolant, LineNumber: s.LineNumber})
		case 8:
			s.Coolant.Flood = true
			ops = append(ops, Op{Kind: OpSetCoolant, Coolant: s.Coolant, LineNumber: s.LineNumber})
		case 9:
			s.Coolant = CoolantState{}
			ops = append(ops, Op{Kind: OpSetCoolant, Coolant: s.Coolant, LineNumber: s.LineNumber})
		}
	}

	// 9. dwell (G4 P<seconds>)
	if v, ok := word('G', gcode.GroupNonModal); ok && v == 4 {
		p, hasP := b.Has('P')
		if !hasP || p < 0 {
			return nil, status.MotionControlError
		}
		ops = append(ops, Op{Kind: OpDwell, DwellSeconds: p, LineNumber: s.LineNumber})
	}

	// 10. plane
	if v, ok := word('G', gcode.GroupPlane); ok {
		switch v {
		case 17:
			s.Plane = PlaneXY
			ops = append(ops, Op{Kind: OpSetPlane, Plane: s.Plane, LineNumber: s.LineNumber})
		case 18:
			s.Plane = PlaneXZ
			ops = append(ops, Op{Kind: OpSetPlane, Plane: s.Plane, LineNumber: s.LineNumber})
		case 19:
			s.Plane = PlaneYZ
			ops = append(ops, Op{Kind: OpSetPlane, Plane: s.Plane, LineNumber: s.LineNumber})
		}
	}

	// 11. units; length-bearing words are scaled to mm at the point
	// they're read (below), so this must be settled before we read axis
	// words in the motion step.
	inchToggled := false
	if v, ok := word('G', gcode.GroupUnits); ok {
		if v == 20 {
			s.Units = UnitsInch
			inchToggled = true
			ops = append(ops, Op{Kind: OpSetUnits, Units: s.Units, LineNumber: s.LineNumber})
		} else if v == 21 {
			s.Units = UnitsMM
			inchToggled = true
			ops = append(ops, Op{Kind: OpSetUnits, Units: s.Units, LineNumber: s.LineNumber})
		}
	}
	_ = inchToggled

	// 13. coordinate system selection (G53-G59)
	if v, ok := word('G', gcode.GroupCoordinateSystem); ok {
		switch v {
		case 53:
			s.g53OneShot = true
		case 54:
			s.ActiveCoordSys = G54
		case 55:
			s.ActiveCoordSys = G55
		case 56:
			s.ActiveCoordSys = G56
		case 57:
			s.ActiveCoordSys = G57
		case 58:
			s.ActiveCoordSys = G58
		case 59:
			s.ActiveCoordSys = G59
		}
		if v >= 54 && v <= 59 {
			ops = append(ops, Op{Kind: OpSetCoordinateSystem, CoordSys: s.ActiveCoordSys, LineNumber: s.LineNumber})
		}
	}

	// 14. path control mode
	if v, ok := word('G', gcode.GroupPathControl); ok {
		switch v {
		case 61:
			s.PathControl = PathExactStop
			ops = append(ops, Op{Kind: OpSetPathControl, PathControl: s.PathControl, LineNumber: s.LineNumber})
		case 61.1:
			s.PathControl = PathExactPath
			ops = append(ops, Op{Kind: OpSetPathControl, PathControl: s.PathControl, LineNumber: s.LineNumber})
		case 64:
			s.PathControl = PathContinuous
			ops = append(ops, Op{Kind: OpSetPathControl, PathControl: s.PathControl, LineNumber: s.LineNumber})
		}
	}

	// 15. distance mode
	if v, ok := word('G', gcode.GroupDistance); ok {
		if v == 90 {
			s.Distance = DistanceAbsolute
			ops = append(ops, Op{Kind: OpSetDistanceMode, Distance: s.Distance, LineNumber: s.LineNumber})
		} else if v == 91 {
			s.Distance = DistanceIncremental
			ops = append(ops, Op{Kind: OpSetDistanceMode, Distance: s.Distance, LineNumber: s.LineNumber})
		}
	}

	// resolve axis target words, scaling length-bearing words by 25.4 if
	// in inch mode (spec section 4.2 "Coordinate math").
	target, anyAxisWord := m.resolveTarget(s, b)

	// 16. origin offsets (G92, G10)
	if v, ok := word('G', gcode.GroupNonModal); ok {
		switch v {
		case 92:
			for i := range s.OriginOffsets {
				if anyAxisWord {
					s.OriginOffsets[i] = s.WorkPosition[i] - target[i] + s.OriginOffsets[i]
				}
			}
			// G92 redefines the current work position to equal target
			// (conventionally the commanded axis words); implemented by
			// shifting the origin offset so WorkPosition appears to be
			// target without any motion.
			ops = append(ops, Op{Kind: OpSetOriginOffsets, OriginOffset: s.OriginOffsets, LineNumber: s.LineNumber})
		case 10:
			// G10 L2 P<n> sets a coordinate system's offset directly;
			// out of scope detail (config/persistent store), but the
			// canonical op is still emitted so downstream can act on it
			// if a config layer is attached.
			p, _ := b.Has('P')
			idx := CoordIndex(int(p) - 1)
			if idx >= 0 && idx < numCoordSystems && anyAxisWord {
				s.CoordOffsets[idx] = target
			}
			ops = append(ops, Op{Kind: OpSetOriginOffsets, OriginOffset: s.OriginOffsets, LineNumber: s.LineNumber})
		}
	}

	// 17. motion
	if v, ok := word('G', gcode.GroupMotion); ok {
		switch v {
		case 0:
			s.MotionMode = MotionSeek
		case 1:
			s.MotionMode = MotionLinearFeed
		case 2:
			s.MotionMode = MotionArcCW
		case 3:
			s.MotionMode = MotionArcCCW
		case 80:
			s.MotionMode = MotionNone
		}
	}

	switch s.MotionMode {
	case MotionSeek:
		if anyAxisWord {
			machineTarget := s.WorkToMachine(target)
			if machineTarget == s.WorkToMachine(s.WorkPosition) {
				// zero-length move: dropped, state still advances
			} else {
				ops = append(ops, Op{Kind: OpLinearTraverse, Target: machineTarget, LineNumber: s.LineNumber})
			}
			s.WorkPosition = target
		}
	case MotionLinearFeed:
		if anyAxisWord {
			feedPerSec, code := feedRatePerSecond(s, target)
			if code != status.OK {
				return nil, code
			}
			machineTarget := s.WorkToMachine(target)
			if machineTarget == s.WorkToMachine(s.WorkPosition) {
				// zero-length move: dropped, state still advances
			} else {
				ops = append(ops, Op{Kind: OpLinearFeed, Target: machineTarget, FeedRate: feedPerSec, LineNumber: s.LineNumber})
			}
			s.WorkPosition = target
		}
	case MotionArcCW, MotionArcCCW:
		feedPerSec, code := feedRatePerSecond(s, target)
		if code != status.OK {
			return nil, code
		}
		chordOps, code := decomposeArc(s, b, target, s.MotionMode == MotionArcCW, feedPerSec)
		if code != status.OK {
			return nil, code
		}
		ops = append(ops, chordOps...)
		s.WorkPosition = target
	}

	// 18. stop
	if v, ok := word('M', gcode.GroupStopping); ok {
		switch v {
		case 0:
			ops = append(ops, Op{Kind: OpProgramStop, LineNumber: s.LineNumber})
		case 2, 30:
			ops = append(ops, Op{Kind: OpProgramEnd, LineNumber: s.LineNumber})
			s = NewState()
		}
	}

	s.EndOfBlock = true
	s.g53OneShot = false // G53 affects only the block it appears in
	m.state = s
	return ops, status.OK
}

// resolveTarget computes the work-coordinate target position implied by
// the block's axis words, applying distance mode and unit scaling. The
// second return value reports whether any axis word was present.
func (m *Machine) resolveTarget(s State, b gcode.Block) (Vec6, bool) {
	target := s.WorkPosition
	any := false
	letters := [6]byte{'X', 'Y', 'Z', 'A', 'B', 'C'}
	rotary := map[byte]bool{'A': true, 'B': true, 'C': true}
	for i, l := range letters {
		v, ok := b.Has(l)
		if !ok {
			continue
		}
		any = true
		if s.Units == UnitsInch && !rotary[l] {
			v *= MMPerInch
		}
		if s.Distance == DistanceIncremental {
			target[i] = s.WorkPosition[i] + v
		} else {
			target[i] = v
		}
	}
	return target, any
}

// feedRatePerSecond converts the modal feed rate (units/min, or
// inverse-time where F means "moves per minute", i.e. 1/F minutes for
// this move) into units/sec for the given target, per spec section 4.2.
func feedRatePerSecond(s State, target Vec6) (float64, status.Code) {
	if s.FeedRateMode == FeedInverseTime {
		if s.FeedRate <= 0 {
			return 0, status.MotionControlError
		}
		dist := vecDistance(s.WorkPosition, target)
		minutes := 1.0 / s.FeedRate
		if minutes <= 0 {
			return 0, status.MotionControlError
		}
		return dist / (minutes * 60.0), status.OK
	}
	if s.FeedRate <= 0 {
		return 0, status.MotionControlError
	}
	return s.FeedRate / 60.0, status.OK
}

func vecDistance(a, b Vec6) float64 {
	var sum float64
	for i := range a {
		d := b[i] - a[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
