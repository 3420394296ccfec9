// Package axis holds the logical-axis and physical-motor data model of
// spec section 3: per-axis kinematic limits, the motor(s) mapped onto an
// axis, and the derived steps-per-unit conversion, guarded against
// concurrent re-derivation while the planner is reading it.
package axis

import (
	"sync"

	"github.com/nasa-jpl/tinyg/util"
)

// Name identifies one of the six logical axes.
type Name byte

// The six logical axes TinyG recognizes. X/Y/Z are linear, A/B/C rotary.
const (
	X Name = 'X'
	Y Name = 'Y'
	Z Name = 'Z'
	A Name = 'A'
	B Name = 'B'
	C Name = 'C'
)

// IsRotary reports whether the axis is one of the rotary axes A/B/C.
func (n Name) IsRotary() bool {
	switch n {
	case A, B, C:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (n Name) String() string {
	return string(rune(n))
}

// Mode is the operating mode of an axis, mirroring TinyG's axis mode
// enumeration.
type Mode int

// Axis modes.
const (
	ModeDisabled Mode = iota
	ModeStandard
	ModeInhibited
	ModeRadius
	ModeSlaved
)

// Axis holds the configuration and live state of one logical axis, per
// spec section 3. MachinePositionSteps is authoritative post-executor
// position; the stepper executor writes it once per STEP pulse (see
// stepper.Executor), and a completed homing cycle zeroes it.
type Axis struct {
	mu sync.Mutex

	Name Name
	Mode Mode

	// VelocityMax is the axis's absolute velocity ceiling in units/sec.
	VelocityMax float64

	// FeedRateMax is the maximum commanded feed rate in units/sec.
	FeedRateMax float64

	// JerkMax is the maximum jerk in units/sec^3, used by the planner's
	// trajectory shaping.
	JerkMax float64

	// JunctionDeviation is the cornering tolerance in units used by the
	// planner's junction-velocity calculation.
	JunctionDeviation float64

	// Travel bounds software-limits the axis; moves outside [Travel.Min,
	// Travel.Max] are rejected with status.MaxTravelExceeded.
	Travel util.Limiter

	// Homing parameters.
	HomingVelocity   float64
	HomingBackoff    float64
	HomingSwitchMode SwitchMode

	// MachinePositionSteps is the authoritative post-executor position.
	MachinePositionSteps int64

	motors []*Motor
}

// SwitchMode describes how a limit switch on an axis behaves.
type SwitchMode int

// Switch modes.
const (
	SwitchDisabled SwitchMode = iota
	SwitchNormallyOpen
	SwitchNormallyClosed
)

// New returns an Axis with sane, inert defaults (disabled, no motors).
func New(name Name) *Axis {
	return &Axis{
		Name: name,
		Mode: ModeDisabled,
		Travel: util.Limiter{
			Min: 0,
			Max: 0,
		},
	}
}

// AddMotor maps a motor onto this axis.
func (a *Axis) AddMotor(m *Motor) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.motors = append(a.motors, m)
}

// Motors returns the motors mapped onto this axis.
func (a *Axis) Motors() []*Motor {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Motor, len(a.motors))
	copy(out, a.motors)
	return out
}

// StepsPerUnit returns the steps-per-unit conversion of the axis's primary
// (first-mapped) motor, or 0 if no motor is mapped.
func (a *Axis) StepsPerUnit() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.motors) == 0 {
		return 0
	}
	return a.motors[0].StepsPerUnit()
}

// PositionUnits converts MachinePositionSteps to axis units using the
// primary motor's steps-per-unit.
func (a *Axis) PositionUnits() float64 {
	spu := a.StepsPerUnit()
	if spu == 0 {
		return 0
	}
	a.mu.Lock()
	steps := a.MachinePositionSteps
	a.mu.Unlock()
	return float64(steps) / spu
}

// WithinTravel reports whether target (in axis units) respects the
// software travel limit.
func (a *Axis) WithinTravel(target float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Travel.Check(target)
}

// Lock and Unlock expose the axis's mutex so the planner can take a
// consistent snapshot of position and steps-per-unit across several
// fields, matching the Motor invariant in spec section 3 ("any change to
// step_angle, travel_per_rev, or microsteps re-derives steps_per_unit
// atomically with respect to the planner").
func (a *Axis) Lock()   { a.mu.Lock() }
func (a *Axis) Unlock() { a.mu.Unlock() }
