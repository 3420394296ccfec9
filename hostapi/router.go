package hostapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/nasa-jpl/tinyg/axis"
	"github.com/nasa-jpl/tinyg/planner"
	"github.com/nasa-jpl/tinyg/report"
	"github.com/nasa-jpl/tinyg/scheduler"
)

// ErrUnknownAxis is returned when a request names an axis letter with no
// mapped axis.Axis.
var ErrUnknownAxis = errors.New("hostapi: unknown or unmapped axis")

// API is the machine's HTTP-facing surface. It holds no state of its
// own beyond what it needs to route requests onto the Controller, the
// axis model, and the homing cycles registered for each axis; the
// Controller's scheduler loop is what actually drives motion.
type API struct {
	Controller *scheduler.Controller
	Axes       [6]*axis.Axis
	Homing     map[axis.Name]*scheduler.HomingCycle
	Source     *QueueSource
	Alarmed    func() bool
	Throttle   *report.Throttler

	byName map[axis.Name]*axis.Axis
}

// NewAPI builds an API from its wiring. Source may be nil if raw
// command-line submission over HTTP is not wanted.
func NewAPI(ctrl *scheduler.Controller, axes [6]*axis.Axis, homing map[axis.Name]*scheduler.HomingCycle, src *QueueSource, alarmed func() bool) *API {
	a := &API{
		Controller: ctrl,
		Axes:       axes,
		Homing:     homing,
		Source:     src,
		Alarmed:    alarmed,
		byName:     make(map[axis.Name]*axis.Axis, 6),
	}
	for _, ax := range axes {
		if ax != nil {
			a.byName[ax.Name] = ax
		}
	}
	return a
}

func axisLetter(r *http.Request) axis.Name {
	letter := chi.URLParam(r, "axis")
	if letter == "" {
		return 0
	}
	return axis.Name(strings.ToUpper(letter)[0])
}

func (a *API) axisFor(r *http.Request) (*axis.Axis, error) {
	ax, ok := a.byName[axisLetter(r)]
	if !ok {
		return nil, ErrUnknownAxis
	}
	return ax, nil
}

// index returns ax's slot in planner.Vec6 order (0=X..5=C).
func (a *API) index(ax *axis.Axis) int {
	for i, candidate := range a.Axes {
		if candidate == ax {
			return i
		}
	}
	return -1
}

// currentTarget snapshots every axis's current position, for use as the
// base vector of a single-axis jog move.
func (a *API) currentTarget() planner.Vec6 {
	var v planner.Vec6
	for i, ax := range a.Axes {
		if ax != nil {
			v[i] = ax.PositionUnits()
		}
	}
	return v
}

// Router builds the chi router exposing this API, grounded on
// cmd/dacsrv's chi.NewRouter + middleware.Logger + RouteTable.Bind
// shape.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	table := RouteTable{}
	a.bindAxisRoutes(table)
	a.bindMachineRoutes(table)
	table.Bind(r)
	return r
}
