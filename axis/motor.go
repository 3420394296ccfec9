package axis

import "sync"

// Polarity flips the electrical sense of a motor's direction output.
type Polarity int

// Polarities.
const (
	PolarityNormal Polarity = iota
	PolarityReversed
)

// Motor is a physical stepper motor mapped onto an Axis (spec section 3).
// Derived fields (StepsPerUnit) are recomputed any time a configuration
// setter changes StepAngleDeg, TravelPerRev, or Microsteps, and the
// recompute is guarded by a mutex so planner reads never observe a
// half-updated value.
type Motor struct {
	mu sync.RWMutex

	// Index is this motor's 1-based index in the system, matching the
	// convention of motor-numbered config tokens (e.g. "1sa").
	Index int

	// StepAngleDeg is the motor's full-step angle in degrees/whole-step.
	StepAngleDeg float64

	// TravelPerRev is the linear (units) or angular (degrees) travel per
	// motor revolution.
	TravelPerRev float64

	// Microsteps is the microstep multiplier, constrained to {1,2,4,8}.
	Microsteps int

	// Polarity controls the sense of the DIRECTION output.
	Polarity Polarity

	// IdlePowerDown controls whether the motor is de-energized while idle.
	IdlePowerDown bool

	stepsPerUnit float64
}

// NewMotor returns a Motor with its steps-per-unit pre-derived.
func NewMotor(index int, stepAngleDeg, travelPerRev float64, microsteps int) *Motor {
	m := &Motor{
		Index:        index,
		StepAngleDeg: stepAngleDeg,
		TravelPerRev: travelPerRev,
		Microsteps:   microsteps,
	}
	m.rederive()
	return m
}

// rederive recomputes steps_per_unit. Callers must hold mu for writing.
func (m *Motor) rederive() {
	if m.StepAngleDeg == 0 || m.TravelPerRev == 0 || m.Microsteps == 0 {
		m.stepsPerUnit = 0
		return
	}
	degPerMicrostep := m.StepAngleDeg / float64(m.Microsteps)
	stepsPerRev := 360.0 / degPerMicrostep
	m.stepsPerUnit = stepsPerRev / m.TravelPerRev
}

// StepsPerUnit returns the current steps-per-unit conversion factor.
func (m *Motor) StepsPerUnit() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stepsPerUnit
}

// SetStepAngle updates the step angle and re-derives steps-per-unit
// atomically.
func (m *Motor) SetStepAngle(deg float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StepAngleDeg = deg
	m.rederive()
}

// SetTravelPerRev updates travel-per-revolution and re-derives
// steps-per-unit atomically.
func (m *Motor) SetTravelPerRev(units float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TravelPerRev = units
	m.rederive()
}

// SetMicrosteps updates the microstep multiplier and re-derives
// steps-per-unit atomically. Values outside {1,2,4,8} are rejected.
func (m *Motor) SetMicrosteps(n int) error {
	switch n {
	case 1, 2, 4, 8:
	default:
		return errInvalidMicrosteps{n}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Microsteps = n
	m.rederive()
	return nil
}

type errInvalidMicrosteps struct{ n int }

func (e errInvalidMicrosteps) Error() string {
	return "microsteps must be one of {1,2,4,8}"
}

// UnitsToSteps converts a signed distance in axis units to a signed
// integer step count, rounding to the nearest step.
func (m *Motor) UnitsToSteps(units float64) int64 {
	spu := m.StepsPerUnit()
	f := units * spu
	if f >= 0 {
		return int64(f + 0.5)
	}
	return -int64(-f + 0.5)
}
