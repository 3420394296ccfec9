package stepper_test

import (
	"testing"

	"github.com/nasa-jpl/tinyg/axis"
	"github.com/nasa-jpl/tinyg/hal"
	"github.com/nasa-jpl/tinyg/segment"
	"github.com/nasa-jpl/tinyg/stepper"
)

// eventPins wraps hal.Mock and records the order of SetDir/SetStep calls
// plus a rising-edge count per motor, so tests can assert both step
// conservation and direction-before-step ordering (spec section 4.5)
// without the Mock type itself needing to track history.
type eventPins struct {
	*hal.Mock
	events    []string
	highCount [6]int
	lastHigh  [6]bool
}

func newEventPins() *eventPins {
	return &eventPins{Mock: hal.NewMock()}
}

func (p *eventPins) SetDir(motor int, forward bool) {
	p.Mock.SetDir(motor, forward)
	p.events = append(p.events, "dir")
}

func (p *eventPins) SetStep(motor int, high bool) {
	p.Mock.SetStep(motor, high)
	if high && !p.lastHigh[motor] {
		p.highCount[motor]++
		p.events = append(p.events, "step")
	}
	p.lastHigh[motor] = high
}

type recordingNotifier struct {
	completed  []int
	underruns  int
	tripped    int
}

func (r *recordingNotifier) MoveCompleted(line int)              { r.completed = append(r.completed, line) }
func (r *recordingNotifier) Underrun()                           { r.underruns++ }
func (r *recordingNotifier) LimitTripped(byte, hal.LimitEnd)      { r.tripped++ }

func testAxes() [6]*axis.Axis {
	var axes [6]*axis.Axis
	for i := 0; i < 3; i++ {
		a := axis.New(axis.Name("XYZ"[i]))
		a.HomingSwitchMode = axis.SwitchNormallyOpen
		axes[i] = a
	}
	return axes
}

const tickUs = 500

func TestStepDistributionConservesSteps(t *testing.T) {
	pins := newEventPins()
	timer := hal.NewMockTimer()
	q := segment.NewQueue(4)
	notify := &recordingNotifier{}
	axes := testAxes()
	ex := stepper.New(pins, timer, q, axes, notify, tickUs, 5)
	ex.Start()

	q.Push(segment.Segment{StepDelta: [6]int64{10, -4, 0, 0, 0, 0}, Microseconds: 5000, LineNumber: 7, Last: true})

	for i := 0; i < 20; i++ {
		timer.Advance(tickUs)
	}

	if pins.highCount[0] != 10 {
		t.Errorf("motor 0 steps = %d, want 10", pins.highCount[0])
	}
	if pins.highCount[1] != 4 {
		t.Errorf("motor 1 steps = %d, want 4", pins.highCount[1])
	}
	if len(notify.completed) != 1 || notify.completed[0] != 7 {
		t.Errorf("completed = %v, want [7]", notify.completed)
	}
	if ex.Alarmed() {
		t.Error("executor should not be alarmed after a clean move")
	}
	if got := axes[0].MachinePositionSteps; got != 10 {
		t.Errorf("axes[0].MachinePositionSteps = %d, want 10", got)
	}
	if got := axes[1].MachinePositionSteps; got != -4 {
		t.Errorf("axes[1].MachinePositionSteps = %d, want -4", got)
	}
}

// TestMoveCompletedReportsFinishingLine guards against loadNextSegmentLocked
// overwriting the completing segment's line number with the next
// segment's before the completion notice for the first move fires.
func TestMoveCompletedReportsFinishingLine(t *testing.T) {
	pins := newEventPins()
	timer := hal.NewMockTimer()
	q := segment.NewQueue(4)
	notify := &recordingNotifier{}
	ex := stepper.New(pins, timer, q, testAxes(), notify, tickUs, 5)
	ex.Start()

	q.Push(segment.Segment{StepDelta: [6]int64{2, 0, 0, 0, 0, 0}, Microseconds: 1000, LineNumber: 11, Last: true})
	q.Push(segment.Segment{StepDelta: [6]int64{2, 0, 0, 0, 0, 0}, Microseconds: 1000, LineNumber: 12, Last: true})

	for i := 0; i < 10; i++ {
		timer.Advance(tickUs)
	}

	if len(notify.completed) != 2 || notify.completed[0] != 11 || notify.completed[1] != 12 {
		t.Errorf("completed = %v, want [11 12]", notify.completed)
	}
}

func TestDirectionSetBeforeFirstStep(t *testing.T) {
	pins := newEventPins()
	timer := hal.NewMockTimer()
	q := segment.NewQueue(4)
	ex := stepper.New(pins, timer, q, testAxes(), &recordingNotifier{}, tickUs, 5)
	ex.Start()

	q.Push(segment.Segment{StepDelta: [6]int64{3, 0, 0, 0, 0, 0}, Microseconds: 5000, LineNumber: 1, Last: true})
	for i := 0; i < 12; i++ {
		timer.Advance(tickUs)
	}

	if len(pins.events) == 0 || pins.events[0] != "dir" {
		t.Fatalf("events = %v, want dir to precede the first step", pins.events)
	}
}

func TestUnderrunLatchesAlarm(t *testing.T) {
	pins := newEventPins()
	timer := hal.NewMockTimer()
	q := segment.NewQueue(4)
	notify := &recordingNotifier{}
	ex := stepper.New(pins, timer, q, testAxes(), notify, tickUs, 5)
	ex.Start()

	// Non-last segment: the queue runs dry before the move's Last segment
	// arrives, which spec section 4.5 calls "a correctness bug upstream".
	q.Push(segment.Segment{StepDelta: [6]int64{2, 0, 0, 0, 0, 0}, Microseconds: 1000, LineNumber: 3, Last: false})
	for i := 0; i < 10; i++ {
		timer.Advance(tickUs)
	}

	if !ex.Alarmed() {
		t.Fatal("expected executor to latch an alarm on underrun")
	}
	if notify.underruns != 1 {
		t.Errorf("underruns = %d, want 1", notify.underruns)
	}
}

func TestLimitTripHaltsMotion(t *testing.T) {
	pins := newEventPins()
	timer := hal.NewMockTimer()
	q := segment.NewQueue(4)
	notify := &recordingNotifier{}
	ex := stepper.New(pins, timer, q, testAxes(), notify, tickUs, 5)
	ex.Start()

	q.Push(segment.Segment{StepDelta: [6]int64{100, 0, 0, 0, 0, 0}, Microseconds: 50000, LineNumber: 9, Last: true})
	timer.Advance(tickUs * 3)

	pins.TripLimit('X', hal.LimitMax, true)
	if !ex.CheckLimits() {
		t.Fatal("expected CheckLimits to report a trip")
	}
	if !ex.Alarmed() {
		t.Fatal("expected alarm latched after limit trip")
	}
	if notify.tripped != 1 {
		t.Errorf("tripped = %d, want 1", notify.tripped)
	}

	stepsAtTrip := pins.highCount[0]
	for i := 0; i < 50; i++ {
		timer.Advance(tickUs)
	}
	if pins.highCount[0] != stepsAtTrip {
		t.Errorf("motor kept stepping after alarm: %d -> %d", stepsAtTrip, pins.highCount[0])
	}
}

func TestResetClearsAlarmAndState(t *testing.T) {
	pins := newEventPins()
	timer := hal.NewMockTimer()
	q := segment.NewQueue(4)
	notify := &recordingNotifier{}
	ex := stepper.New(pins, timer, q, testAxes(), notify, tickUs, 5)
	ex.Start()

	q.Push(segment.Segment{StepDelta: [6]int64{1, 0, 0, 0, 0, 0}, Microseconds: 1000, LineNumber: 1, Last: false})
	for i := 0; i < 10; i++ {
		timer.Advance(tickUs)
	}
	if !ex.Alarmed() {
		t.Fatal("expected underrun alarm before reset")
	}

	ex.Reset()
	if ex.Alarmed() {
		t.Fatal("expected Reset to clear the alarm")
	}

	q.Push(segment.Segment{StepDelta: [6]int64{2, 0, 0, 0, 0, 0}, Microseconds: 1000, LineNumber: 2, Last: true})
	for i := 0; i < 10; i++ {
		timer.Advance(tickUs)
	}
	if len(notify.completed) == 0 {
		t.Error("expected the executor to resume processing segments after Reset")
	}
}
