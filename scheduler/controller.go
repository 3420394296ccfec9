package scheduler

import (
	"fmt"

	"github.com/nasa-jpl/tinyg/canonical"
	"github.com/nasa-jpl/tinyg/gcode"
	"github.com/nasa-jpl/tinyg/hal"
	"github.com/nasa-jpl/tinyg/planner"
	"github.com/nasa-jpl/tinyg/segment"
	"github.com/nasa-jpl/tinyg/status"
	"github.com/nasa-jpl/tinyg/stepper"
)

// LineReader is the command-stream source the reader task pulls from;
// hal.LineSource satisfies it, as does any test double.
type LineReader interface {
	ReadLine() ([]byte, error)
}

// Controller wires the canonical machine, planner, segment runtime, and
// stepper executor into the four tasks spec section 4.1 dispatches in
// priority order, and is the scheduler's "glue code" that bridges
// canonical.Op values onto planner.CanonicalMove values.
type Controller struct {
	Machine  *canonical.Machine
	Planner  *planner.Planner
	Runtime  *segment.Runtime
	Executor *stepper.Executor
	Source   LineReader
	Spindle  hal.SpindleCoolant

	homing []*HomingCycle

	// OnStatus, if set, receives a human-readable line for every status
	// code that is neither OK nor EAGAIN nor NOOP (parse errors, alarms),
	// the way the report package's host-directed chatter is throttled
	// upstream of this hook.
	OnStatus func(line string)
}

// NewController builds the machine/planner/runtime/source wiring and
// constructs its own segment.Runtime so the Runtime's CommandSink closes
// over the Controller's Spindle actuation. The caller constructs the
// stepper.Executor afterward, bound to Runtime.Queue(), and assigns it to
// the returned Controller's Executor field before calling Register — the
// executor needs the controller's queue, which does not exist until this
// call returns.
func NewController(m *canonical.Machine, p *planner.Planner, queueCapacity int, periodMicroseconds int64, source LineReader, spindle hal.SpindleCoolant) *Controller {
	c := &Controller{
		Machine: m,
		Planner: p,
		Source:  source,
		Spindle: spindle,
	}
	c.Runtime = segment.NewRuntime(p, queueCapacity, periodMicroseconds, c.dispatchCommand)
	return c
}

// AddHomingCycle registers a homing cycle the homing-tick task will drive
// once HomingCycle.Start is called on it.
func (c *Controller) AddHomingCycle(h *HomingCycle) {
	c.homing = append(c.homing, h)
}

// Register adds this Controller's four tasks to s in spec section 4.1's
// priority order.
func (c *Controller) Register(s *Scheduler) {
	s.Add("limit-switch", c.limitTask)
	s.Add("motion-queue", c.motionTask)
	s.Add("homing", c.homingTask)
	s.Add("command-reader", c.readerTask)
}

func (c *Controller) limitTask() status.Code {
	if c.Executor == nil {
		return status.NOOP
	}
	if c.Executor.CheckLimits() {
		c.report("ALARM: limit switch tripped")
		return status.OK
	}
	return status.NOOP
}

func (c *Controller) motionTask() status.Code {
	return c.Runtime.Tick()
}

func (c *Controller) homingTask() status.Code {
	idle := true
	for _, h := range c.homing {
		if h.planner.Homing == planner.HomingIdle || h.planner.Homing == planner.HomingDone {
			continue
		}
		idle = false
		code := h.Tick()
		if code != status.EAGAIN && code != status.NOOP {
			return code
		}
		if code == status.EAGAIN {
			return status.EAGAIN
		}
	}
	if idle {
		return status.NOOP
	}
	return status.OK
}

// readerTask reads at most one line from Source, provided the planner has
// room, tokenizes and executes it, and dispatches the resulting canonical
// ops into the planner. Spec section 4.1's backpressure: the reader
// itself returns EAGAIN (without consuming a line) when the planner ring
// is nearly full.
func (c *Controller) readerTask() status.Code {
	if !c.Planner.HasRoom() {
		return status.EAGAIN
	}

	raw, err := c.Source.ReadLine()
	if err != nil {
		return status.NOOP // no complete line yet (timeout) or port not open
	}

	norm := gcode.Normalize(string(raw))
	if norm == "" {
		return status.NOOP
	}

	block, code := gcode.Tokenize(norm)
	if code != status.OK {
		c.report(fmt.Sprintf("error: %v: %q", code, raw))
		return status.OK
	}

	ops, code := c.Machine.Execute(block)
	if code != status.OK {
		c.report(fmt.Sprintf("error: %v: %q", code, raw))
		return status.OK
	}

	for _, op := range ops {
		if enqCode := c.dispatchOp(op); enqCode != status.OK {
			c.report(fmt.Sprintf("error: %v enqueuing line %d", enqCode, op.LineNumber))
		}
	}
	return status.OK
}

// dispatchOp converts one canonical.Op into planner enqueue calls. Most
// modal-only ops (set_units, set_plane, ...) need no planner action: the
// canonical machine already folded them into its own State, and nothing
// downstream consumes them directly.
func (c *Controller) dispatchOp(op canonical.Op) status.Code {
	switch op.Kind {
	case canonical.OpLinearTraverse:
		return c.Planner.Enqueue(planner.CanonicalMove{Target: planner.Vec6(op.Target), Type: planner.MoveSeek, LineNumber: op.LineNumber})
	case canonical.OpLinearFeed, canonical.OpArcChord:
		return c.Planner.Enqueue(planner.CanonicalMove{Target: planner.Vec6(op.Target), FeedRate: op.FeedRate, Type: planner.MoveFeed, LineNumber: op.LineNumber})
	case canonical.OpDwell:
		return c.Planner.Enqueue(planner.CanonicalMove{Type: planner.MoveDwell, DwellSeconds: op.DwellSeconds, LineNumber: op.LineNumber})
	case canonical.OpSetSpindle:
		return c.Planner.Enqueue(planner.CanonicalMove{Type: planner.MoveCommandSync, Command: planner.CommandSpindle, CommandValue: encodeSpindle(op), LineNumber: op.LineNumber})
	case canonical.OpSetCoolant:
		return c.Planner.Enqueue(planner.CanonicalMove{Type: planner.MoveCommandSync, Command: planner.CommandCoolant, CommandValue: encodeCoolant(op.Coolant), LineNumber: op.LineNumber})
	case canonical.OpSetTool:
		return c.Planner.Enqueue(planner.CanonicalMove{Type: planner.MoveCommandSync, Command: planner.CommandTool, CommandValue: float64(op.Tool), LineNumber: op.LineNumber})
	case canonical.OpProgramStop, canonical.OpProgramEnd:
		c.Planner.Flush()
		return status.OK
	default:
		// set_units / set_plane / set_distance_mode / ... : modal-only,
		// already reflected in Machine.State(); no planner action.
		return status.OK
	}
}

// dispatchCommand is the segment.CommandSink the Runtime calls at the
// moment a MoveCommandSync move is dequeued, decoding the compact
// CommandValue encoding back into hal.SpindleCoolant calls.
func (c *Controller) dispatchCommand(kind planner.CommandKind, value float64) {
	if c.Spindle == nil {
		return
	}
	switch kind {
	case planner.CommandSpindle:
		switch {
		case value > 0:
			c.Spindle.SetSpindle(true, true, value)
		case value < 0:
			c.Spindle.SetSpindle(true, false, -value)
		default:
			c.Spindle.SetSpindle(false, true, 0)
		}
	case planner.CommandCoolant:
		mask := int(value)
		c.Spindle.SetCoolant(mask&1 != 0, mask&2 != 0)
	case planner.CommandTool:
		// Tool selection has no electrical actuation surface in this
		// spec's hardware model (no ATC); the command-sync record exists
		// only to keep T words in motion order for a report/host layer.
	}
}

func encodeSpindle(op canonical.Op) float64 {
	switch op.Spindle {
	case canonical.SpindleCW:
		return op.SpindleSpeed
	case canonical.SpindleCCW:
		return -op.SpindleSpeed
	default:
		return 0
	}
}

func encodeCoolant(c canonical.CoolantState) float64 {
	mask := 0
	if c.Mist {
		mask |= 1
	}
	if c.Flood {
		mask |= 2
	}
	return float64(mask)
}

func (c *Controller) report(line string) {
	if c.OnStatus != nil {
		c.OnStatus(line)
	}
}
