// Package hal defines the hardware-abstraction boundary of spec section 9:
// the deeply-nested #ifdef port/pin wiring of a real TinyG build is
// replaced here by a small trait the stepper executor and limit-switch
// handler program against, with a mock implementation for host testing
// and a real implementation backed by a serial line for the command
// stream side of the system.
package hal

// LimitEnd identifies which end of an axis's travel a limit switch guards.
type LimitEnd int

// Limit ends.
const (
	LimitMin LimitEnd = iota
	LimitMax
)

// Pins is the motor and limit-switch I/O surface of spec section 9: one
// STEP, DIRECTION, and ENABLE output per motor, and one edge-triggered
// limit input per axis per end.
type Pins interface {
	// SetStep drives motor's STEP line. high == true is the asserting
	// edge; the stepper executor clears it again after the driver's
	// minimum pulse width via a separate one-shot (see Timer).
	SetStep(motor int, high bool)

	// SetDir drives motor's DIRECTION line. Must be called before the
	// first STEP pulse of a segment that changes direction, and must
	// settle for at least the driver's direction-setup time beforehand
	// (spec section 4.5).
	SetDir(motor int, forward bool)

	// Enable drives motor's ENABLE line (on == true energizes the coil).
	Enable(motor int, on bool)

	// ReadLimit reports whether the limit switch at end of axis is
	// currently tripped.
	ReadLimit(axis byte, end LimitEnd) bool
}

// Timer is the periodic and one-shot timer abstraction of spec section 9.
// Arm schedules callback to run every periodMicroseconds until the
// returned Cancel func is called; each Arm adds an independent schedule,
// and earlier schedules keep running until their own cancel is called.
type Timer interface {
	// Arm schedules callback on a periodic tick, returning a function
	// that cancels the schedule. Used for the step-pulse ISR and for the
	// shorter pulse-off one-shot (armed with a single call and cancelled
	// by the caller once it has fired, spec section 4.5).
	Arm(periodMicroseconds int64, callback func()) (cancel func())
}

// SpindleCoolant is the non-motor actuation surface: spindle enable/
// direction and coolant valve outputs, named by spec section 6's "Motor
// I/O" paragraph ("Spindle enable and direction outputs").
type SpindleCoolant interface {
	SetSpindle(enabled bool, clockwise bool, speed float64)
	SetCoolant(mist bool, flood bool)
}
