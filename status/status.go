// Package status defines the small, fixed vocabulary of outcomes that every
// layer of the motion pipeline returns, from a single parsed G-code word up
// to a cooperative scheduler task. It plays the same role for this module
// that a coarse HTTP status code plays next to a Go error in the rest of
// this codebase's lineage: a closed enumeration that callers can switch on
// without inspecting error strings.
package status

// Code is a status/exit code as enumerated in the system's external
// interface contract. Flow codes (OK, EAGAIN, NOOP, COMPLETE) are normal
// control flow and are never logged as faults; the rest describe a
// rejected block or a machine-level fault.
type Code int

const (
	// OK indicates the operation completed successfully.
	OK Code = iota

	// EAGAIN indicates the operation would block (a queue is full or
	// empty) and must be retried; this is not an error.
	EAGAIN

	// NOOP indicates the task had nothing to do this pass.
	NOOP

	// COMPLETE indicates a multi-step operation (e.g. a move, a homing
	// cycle) has finished.
	COMPLETE

	// EOL indicates a full line was assembled from the input stream.
	EOL

	// EOF indicates the input stream has closed.
	EOF

	// QUIT indicates a program end (M2/M30) was processed.
	QUIT

	// UnrecognizedCommand indicates a command word has no known meaning.
	UnrecognizedCommand

	// ExpectedCommandLetter indicates a numeric value was found with no
	// preceding letter.
	ExpectedCommandLetter

	// UnsupportedStatement indicates a recognized but unimplemented code.
	UnsupportedStatement

	// BadNumberFormat indicates a word's numeric value failed to parse.
	BadNumberFormat

	// FloatingPointError indicates a NaN/Inf appeared in a computation
	// that must not produce one (e.g. a trajectory coefficient).
	FloatingPointError

	// MotionControlError is a catch-all for a motion request that cannot
	// be satisfied, such as a zero feed rate in inverse-time mode.
	MotionControlError

	// ArcSpecificationError indicates a zero-radius, zero-angle, or
	// numerically ill-conditioned arc.
	ArcSpecificationError

	// ZeroLengthMove indicates a move with no net displacement.
	ZeroLengthMove

	// MaxFeedRateExceeded indicates a feed move's rate exceeds an axis's
	// configured maximum feed rate.
	MaxFeedRateExceeded

	// MaxSeekRateExceeded indicates a traverse's rate exceeds an axis's
	// configured maximum velocity.
	MaxSeekRateExceeded

	// MaxTravelExceeded indicates a target position is outside an axis's
	// configured travel limits.
	MaxTravelExceeded

	// MaxSpindleSpeedExceeded indicates a requested spindle speed is out
	// of range.
	MaxSpindleSpeedExceeded

	// BufferFull indicates a fixed-capacity ring has no free slot.
	BufferFull

	// BufferEmpty indicates a fixed-capacity ring has nothing to pop.
	BufferEmpty

	// ModalGroupViolation indicates two words from the same modal group
	// appeared in one block.
	ModalGroupViolation
)

var names = map[Code]string{
	OK:                      "OK",
	EAGAIN:                  "EAGAIN",
	NOOP:                    "NOOP",
	COMPLETE:                "COMPLETE",
	EOL:                     "EOL",
	EOF:                     "EOF",
	QUIT:                    "QUIT",
	UnrecognizedCommand:     "UNRECOGNIZED_COMMAND",
	ExpectedCommandLetter:   "EXPECTED_COMMAND_LETTER",
	UnsupportedStatement:    "UNSUPPORTED_STATEMENT",
	BadNumberFormat:         "BAD_NUMBER_FORMAT",
	FloatingPointError:      "FLOATING_POINT_ERROR",
	MotionControlError:      "MOTION_CONTROL_ERROR",
	ArcSpecificationError:   "ARC_SPECIFICATION_ERROR",
	ZeroLengthMove:          "ZERO_LENGTH_MOVE",
	MaxFeedRateExceeded:     "MAX_FEED_RATE_EXCEEDED",
	MaxSeekRateExceeded:     "MAX_SEEK_RATE_EXCEEDED",
	MaxTravelExceeded:       "MAX_TRAVEL_EXCEEDED",
	MaxSpindleSpeedExceeded: "MAX_SPINDLE_SPEED_EXCEEDED",
	BufferFull:              "BUFFER_FULL",
	BufferEmpty:             "BUFFER_EMPTY",
	ModalGroupViolation:     "MODAL_GROUP_VIOLATION",
}

// String implements fmt.Stringer.
func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return "UNKNOWN_STATUS"
}

// Error implements the error interface so a Code can be returned anywhere
// an error is expected; OK, EAGAIN, NOOP and COMPLETE are flow codes and
// should generally be tested for with == rather than treated as faults.
func (c Code) Error() string {
	return c.String()
}

// IsFlow reports whether c is normal control flow (never a logged fault).
func (c Code) IsFlow() bool {
	switch c {
	case OK, EAGAIN, NOOP, COMPLETE, EOL, EOF, QUIT:
		return true
	default:
		return false
	}
}
