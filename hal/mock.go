package hal

import (
	"sync"

	"github.com/nasa-jpl/tinyg/util"
)

// Mock is an in-memory implementation of Pins, Timer, and SpindleCoolant
// for running the pipeline on a host without real motor hardware, per
// spec section 9 ("This makes the core testable on a host by injecting a
// mock"). STEP/DIR/ENABLE state is packed one bit per motor into a
// single byte each, the way a real controller's GPIO port register
// would hold them, rather than one bool per motor.
type Mock struct {
	mu sync.Mutex

	stepReg     byte
	dirReg      byte
	enableReg   byte
	limits      map[limitKey]bool
	spindleOn   bool
	spindleCW   bool
	spindleRPM  float64
	mist, flood bool
}

type limitKey struct {
	axis byte
	end  LimitEnd
}

// NewMock returns a ready-to-use Mock with every pin in its inert state.
func NewMock() *Mock {
	return &Mock{
		limits: make(map[limitKey]bool),
	}
}

// SetStep implements Pins.
func (m *Mock) SetStep(motor int, high bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepReg = util.SetBit(m.stepReg, uint(motor), high)
}

// StepHigh reports the last value SetStep recorded for motor, for test
// assertions.
func (m *Mock) StepHigh(motor int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return util.GetBit(m.stepReg, uint(motor))
}

// SetDir implements Pins.
func (m *Mock) SetDir(motor int, forward bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirReg = util.SetBit(m.dirReg, uint(motor), forward)
}

// Dir reports the last value SetDir recorded for motor.
func (m *Mock) Dir(motor int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return util.GetBit(m.dirReg, uint(motor))
}

// Enable implements Pins.
func (m *Mock) Enable(motor int, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enableReg = util.SetBit(m.enableReg, uint(motor), on)
}

// Enabled reports the last value Enable recorded for motor.
func (m *Mock) Enabled(motor int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return util.GetBit(m.enableReg, uint(motor))
}

// ReadLimit implements Pins.
func (m *Mock) ReadLimit(axis byte, end LimitEnd) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limits[limitKey{axis, end}]
}

// TripLimit sets a limit switch's state for test scenarios that simulate
// a limit trigger during motion.
func (m *Mock) TripLimit(axis byte, end LimitEnd, tripped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits[limitKey{axis, end}] = tripped
}

// SetSpindle implements SpindleCoolant.
func (m *Mock) SetSpindle(enabled, clockwise bool, speed float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spindleOn = enabled
	m.spindleCW = clockwise
	m.spindleRPM = speed
}

// SetCoolant implements SpindleCoolant.
func (m *Mock) SetCoolant(mist, flood bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mist = mist
	m.flood = flood
}

// Spindle reports the last values SetSpindle recorded.
func (m *Mock) Spindle() (enabled, clockwise bool, speed float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spindleOn, m.spindleCW, m.spindleRPM
}

// mockTimer is a manually-driven stand-in for a hardware timer: tests
// call Advance to fire any due callbacks instead of waiting on a real clock.
type mockTimer struct {
	period   int64
	elapsed  int64
	callback func()
	cancelled bool
}

// MockTimer is a Timer implementation a test drives explicitly by calling
// Advance, rather than a real goroutine/ticker — this keeps executor
// tests deterministic (spec section 9's "testable on a host").
type MockTimer struct {
	mu     sync.Mutex
	timers []*mockTimer
}

// NewMockTimer returns a ready-to-use MockTimer.
func NewMockTimer() *MockTimer { return &MockTimer{} }

// Arm implements Timer.
func (t *MockTimer) Arm(periodMicroseconds int64, callback func()) (cancel func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	mt := &mockTimer{period: periodMicroseconds, callback: callback}
	t.timers = append(t.timers, mt)
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		mt.cancelled = true
	}
}

// Advance simulates the passage of microseconds of wall-clock time,
// firing each armed timer's callback once for every full period elapsed.
func (t *MockTimer) Advance(microseconds int64) {
	t.mu.Lock()
	due := make([]*mockTimer, 0)
	for _, mt := range t.timers {
		if mt.cancelled {
			continue
		}
		mt.elapsed += microseconds
		for mt.elapsed >= mt.period && mt.period > 0 {
			mt.elapsed -= mt.period
			due = append(due, mt)
		}
	}
	t.mu.Unlock()
	for _, mt := range due {
		if !mt.cancelled {
			mt.callback()
		}
	}
}
