// Package canonical implements the modal G-code state machine: it
// consumes a tokenized gcode.Block and emits zero or more canonical
// motion/command operations for the planner, per spec section 4.2. It
// never touches hardware or the planner's ring directly — Execute returns
// a slice of Op values for the caller (the scheduler's parse task) to
// enqueue.
package canonical

// Units is the active unit system.
type Units int

// Unit systems.
const (
	UnitsMM Units = iota
	UnitsInch
)

// MMPerInch is the fixed conversion factor between inches and millimeters.
const MMPerInch = 25.4

// Plane selects the active arc/compensation plane.
type Plane int

// Planes.
const (
	PlaneXY Plane = iota
	PlaneXZ
	PlaneYZ
)

// DistanceMode selects absolute or incremental target interpretation.
type DistanceMode int

// Distance modes.
const (
	DistanceAbsolute DistanceMode = iota
	DistanceIncremental
)

// FeedRateMode selects how the F word is interpreted.
type FeedRateMode int

// Feed rate modes.
const (
	FeedUnitsPerMinute FeedRateMode = iota
	FeedInverseTime
)

// PathControlMode selects cornering behavior between moves.
type PathControlMode int

// Path control modes.
const (
	PathExactStop PathControlMode = iota
	PathExactPath
	PathContinuous
)

// MotionMode is the currently modal motion word (G0/G1/G2/G3/G80).
type MotionMode int

// Motion modes.
const (
	MotionNone MotionMode = iota
	MotionSeek
	MotionLinearFeed
	MotionArcCW
	MotionArcCCW
)

// SpindleState is the modal spindle word (M3/M4/M5).
type SpindleState int

// Spindle states.
const (
	SpindleOff SpindleState = iota
	SpindleCW
	SpindleCCW
)

// CoolantState is the modal coolant word (M7/M8/M9); mist and flood may
// both be active at once.
type CoolantState struct {
	Mist  bool
	Flood bool
}

// CoordIndex identifies one of the six work coordinate systems (G54-G59).
type CoordIndex int

// Coordinate system indices.
const (
	G54 CoordIndex = iota
	G55
	G56
	G57
	G58
	G59
	numCoordSystems
)

// Vec6 is a position/offset vector over the six logical axes, in the
// order X, Y, Z, A, B, C.
type Vec6 [6]float64

const (
	axX = iota
	axY
	axZ
	axA
	axB
	axC
)

// State is the complete modal G-code state of spec section 3. A block is
// parsed against a *copy* of the live state and only committed back on
// success, satisfying the invariant "parsing a block advances this state
// only on successful parse".
type State struct {
	Units           Units
	Plane           Plane
	Distance        DistanceMode
	FeedRateMode    FeedRateMode
	ActiveCoordSys  CoordIndex
	CoordOffsets    [numCoordSystems]Vec6
	OriginOffsets   Vec6 // G92
	MotionMode      MotionMode
	PathControl     PathControlMode
	Spindle         SpindleState
	SpindleSpeed    float64
	Coolant         CoolantState
	Tool            int
	WorkPosition    Vec6 // last commanded position, in work coordinates
	TargetPosition  Vec6 // target of the block currently being parsed
	FeedRate        float64
	ArcOffset       Vec6 // I, J, K as (X,Y,Z) offsets; only 3 used
	ArcRadius       float64
	HasArcRadius    bool
	LineNumber      int
	EndOfBlock      bool
	g53OneShot      bool
}

// NewState returns a State with the conventional power-on defaults: mm,
// XY plane, absolute distance mode, units-per-minute feed mode, G54
// active.
func NewState() State {
	return State{
		Units:          UnitsMM,
		Plane:          PlaneXY,
		Distance:       DistanceAbsolute,
		FeedRateMode:   FeedUnitsPerMinute,
		ActiveCoordSys: G54,
		PathControl:    PathContinuous,
	}
}

// WorkToMachine resolves a work-coordinate position to absolute machine
// coordinates by applying the active coordinate system offset and the
// G92 origin offset. If the G53 one-shot flag is set, coordinate-system
// and G92 offsets are bypassed entirely (the block addresses machine
// coordinates directly), per the decision in DESIGN.md that G53 is
// strictly one-shot.
func (s State) WorkToMachine(work Vec6) Vec6 {
	if s.g53OneShot {
		return work
	}
	var out Vec6
	off := s.CoordOffsets[s.ActiveCoordSys]
	for i := range out {
		out[i] = work[i] + off[i] + s.OriginOffsets[i]
	}
	return out
}
