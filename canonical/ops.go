package canonical

// OpKind enumerates the canonical operations the machine emits, per spec
// section 4.2.
type OpKind int

// Canonical operation kinds.
const (
	OpSetUnits OpKind = iota
	OpSetPlane
	OpSetDistanceMode
	OpSetFeedRateMode
	OpSetCoordinateSystem
	OpSetOriginOffsets
	OpSetPathControl
	OpLinearTraverse // G0
	OpLinearFeed     // G1
	OpArcChord       // one chord of a decomposed G2/G3
	OpDwell          // G4
	OpProgramStop    // M0
	OpProgramEnd     // M2/M30
	OpSetSpindle
	OpSetCoolant
	OpSetTool
)

// Op is one canonical operation emitted by the machine for a single
// block. Only the fields relevant to Kind are populated.
type Op struct {
	Kind OpKind

	// Target is the absolute machine-coordinate target for motion ops
	// and arc chords.
	Target Vec6

	// FeedRate is the requested feed rate in units/sec for feed moves,
	// already converted from the modal units/min or inverse-time form.
	FeedRate float64

	// LineNumber ties this op back to the G-code line that produced it.
	LineNumber int

	// Dwell
	DwellSeconds float64

	// Spindle
	Spindle      SpindleState
	SpindleSpeed float64

	// Coolant
	Coolant CoolantState

	// Tool
	Tool int

	// Plane/Units/Distance/FeedRateMode/PathControl/CoordSys carry the
	// new modal value for state-setting ops.
	Plane        Plane
	Units        Units
	Distance     DistanceMode
	FeedRateMode FeedRateMode
	PathControl  PathControlMode
	CoordSys     CoordIndex
	OriginOffset Vec6

	// IsLastChord marks the final chord of a decomposed arc.
	IsLastChord bool
}
