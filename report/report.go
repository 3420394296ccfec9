// Package report formats machine status for the host-facing interface of
// spec section 6: a single-line structured form for machine polling and a
// human multi-line form for interactive use, plus throttling so periodic
// emission doesn't flood the host link.
package report

import (
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/nasa-jpl/tinyg/axis"
	"github.com/nasa-jpl/tinyg/planner"
)

// Source is everything a Report is built from. It is deliberately a set
// of plain fields/callbacks rather than a dependency on stepper.Executor
// or scheduler.Controller, so this package stays below them in the
// import graph.
type Source struct {
	Axes    [6]*axis.Axis
	Planner *planner.Planner
	Alarmed func() bool
	Line    int
}

// Report is an immutable snapshot of machine state at the moment Snapshot
// was called.
type Report struct {
	Line      int
	Hold      planner.HoldState
	Homing    planner.HomingState
	Alarmed   bool
	Names     [6]axis.Name
	Positions [6]float64
}

// Snapshot captures the current state of s. Safe to call from the
// report/host task; it only reads already-synchronized accessors
// (axis.Axis.PositionUnits, the Alarmed callback) rather than taking any
// lock of its own.
func Snapshot(s Source) Report {
	r := Report{Line: s.Line}
	if s.Planner != nil {
		r.Hold = s.Planner.Hold
		r.Homing = s.Planner.Homing
	}
	if s.Alarmed != nil {
		r.Alarmed = s.Alarmed()
	}
	for i, a := range s.Axes {
		if a == nil {
			continue
		}
		r.Names[i] = a.Name
		r.Positions[i] = a.PositionUnits()
	}
	return r
}

// stateWord returns the coarse machine state word a status report leads
// with, in priority order: an alarm always wins, then an active homing
// cycle, then the feedhold state, then "run"/"idle".
func (r Report) stateWord() string {
	switch {
	case r.Alarmed:
		return "alarm"
	case r.Homing != planner.HomingIdle && r.Homing != planner.HomingDone:
		return "homing"
	case r.Hold == planner.HoldDecelerating:
		return "hold"
	case r.Hold == planner.HoldHeld:
		return "hold"
	case r.Hold == planner.HoldResuming:
		return "run"
	case r.Line != 0:
		return "run"
	default:
		return "idle"
	}
}

// Single returns the single-line structured status report form, e.g.
// "n42 stat:run mpox:10.0000 mpoy:0.0000 mpoz:0.0000".
func (r Report) Single() string {
	var b strings.Builder
	fmt.Fprintf(&b, "n%d stat:%s", r.Line, r.stateWord())
	for i, n := range r.Names {
		if n == 0 {
			continue
		}
		fmt.Fprintf(&b, " mpo%s:%.4f", strings.ToLower(n.String()), r.Positions[i])
	}
	return b.String()
}

// Human returns the multi-line, human-readable status report form.
func (r Report) Human() string {
	var b strings.Builder
	fmt.Fprintf(&b, "line:      %d\n", r.Line)
	fmt.Fprintf(&b, "state:     %s\n", r.stateWord())
	fmt.Fprintf(&b, "hold:      %v\n", r.Hold)
	fmt.Fprintf(&b, "homing:    %v\n", r.Homing)
	for i, n := range r.Names {
		if n == 0 {
			continue
		}
		fmt.Fprintf(&b, "axis %s:    %.4f\n", n, r.Positions[i])
	}
	return b.String()
}

// Throttler bounds how often periodic status reports are emitted,
// grounded on nkt.go's rate.NewLimiter use to bound host-directed
// chatter (there: polling NKT modules for their status; here: unsolicited
// status reports). Allow is non-blocking, matching the scheduler's
// run-to-completion task contract — a '?' query bypasses the throttle
// entirely by calling Snapshot/Single directly rather than going through
// a Throttler at all.
type Throttler struct {
	limiter *rate.Limiter
}

// NewThrottler returns a Throttler allowing at most ratePerSec periodic
// reports a second, with an initial burst allowance of burst.
func NewThrottler(ratePerSec float64, burst int) *Throttler {
	return &Throttler{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Allow reports whether a periodic status report may be emitted now.
func (t *Throttler) Allow() bool {
	return t.limiter.Allow()
}
