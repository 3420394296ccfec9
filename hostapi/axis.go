package hostapi

import (
	"net/http"
	"strconv"

	"github.com/nasa-jpl/tinyg/axis"
	"github.com/nasa-jpl/tinyg/planner"
	"github.com/nasa-jpl/tinyg/status"
)

// bindAxisRoutes registers the per-axis routes, mirroring
// generichttp/motion's Mover/Enabler/Speeder/Stopper/InPositionQueryer
// route shape (one capability per file there; grouped here since this
// package has a single backing type instead of one per device driver).
func (a *API) bindAxisRoutes(table RouteTable) {
	table[MethodPath{http.MethodGet, "/axis/{axis}/pos"}] = a.getPos
	table[MethodPath{http.MethodPost, "/axis/{axis}/pos"}] = a.setPos
	table[MethodPath{http.MethodPost, "/axis/{axis}/home"}] = a.home
	table[MethodPath{http.MethodGet, "/axis/{axis}/enabled"}] = a.getEnabled
	table[MethodPath{http.MethodPost, "/axis/{axis}/enabled"}] = a.setEnabled
	table[MethodPath{http.MethodGet, "/axis/{axis}/velocity"}] = a.getVelocity
	table[MethodPath{http.MethodPost, "/axis/{axis}/velocity"}] = a.setVelocity
	table[MethodPath{http.MethodPost, "/axis/{axis}/stop"}] = a.stop
	table[MethodPath{http.MethodGet, "/axis/{axis}/inposition"}] = a.getInPosition
}

func (a *API) getPos(w http.ResponseWriter, r *http.Request) {
	ax, err := a.axisFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeFloat(w, ax.PositionUnits())
}

func popRelative(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("relative")
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

// setPos enqueues a rapid (non-feed) move of one axis to an absolute or,
// with ?relative=true, relative target. Every other axis's target is
// held at its current position, so this is a single-axis jog riding on
// the same planner queue g-code moves use, not a distinct motion path.
func (a *API) setPos(w http.ResponseWriter, r *http.Request) {
	ax, err := a.axisFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	relative, err := popRelative(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f, err := decodeFloat(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	idx := a.index(ax)
	if idx < 0 {
		http.Error(w, ErrUnknownAxis.Error(), http.StatusNotFound)
		return
	}
	target := a.currentTarget()
	if relative {
		target[idx] += f
	} else {
		target[idx] = f
	}
	if !ax.WithinTravel(target[idx]) {
		http.Error(w, status.MaxTravelExceeded.String(), http.StatusBadRequest)
		return
	}
	code := a.Controller.Planner.Enqueue(planner.CanonicalMove{Target: target, Type: planner.MoveSeek})
	if code != status.OK {
		http.Error(w, code.String(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *API) home(w http.ResponseWriter, r *http.Request) {
	ax, err := a.axisFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h, ok := a.Homing[ax.Name]
	if !ok {
		http.Error(w, "hostapi: no homing cycle registered for this axis", http.StatusNotFound)
		return
	}
	h.Start()
	w.WriteHeader(http.StatusOK)
}

func (a *API) getEnabled(w http.ResponseWriter, r *http.Request) {
	ax, err := a.axisFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	ax.Lock()
	enabled := ax.Mode != axis.ModeDisabled
	ax.Unlock()
	writeBool(w, enabled)
}

func (a *API) setEnabled(w http.ResponseWriter, r *http.Request) {
	ax, err := a.axisFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	b, err := decodeBool(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ax.Lock()
	if b {
		ax.Mode = axis.ModeStandard
	} else {
		ax.Mode = axis.ModeDisabled
	}
	ax.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (a *API) getVelocity(w http.ResponseWriter, r *http.Request) {
	ax, err := a.axisFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	ax.Lock()
	v := ax.VelocityMax
	ax.Unlock()
	writeFloat(w, v)
}

func (a *API) setVelocity(w http.ResponseWriter, r *http.Request) {
	ax, err := a.axisFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	f, err := decodeFloat(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if f <= 0 {
		http.Error(w, "hostapi: velocity must be positive", http.StatusBadRequest)
		return
	}
	ax.Lock()
	ax.VelocityMax = f
	ax.Unlock()
	w.WriteHeader(http.StatusOK)
}

// stop aborts all motion. There is one stepper clock shared by every
// axis (spec section 5), so a per-axis stop is not meaningful; this
// flushes the planned queue and resets the executor's alarm latch for
// every axis, keyed off whichever axis the caller named.
func (a *API) stop(w http.ResponseWriter, r *http.Request) {
	if _, err := a.axisFor(r); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	a.Controller.Planner.Flush()
	if a.Controller.Executor != nil {
		a.Controller.Executor.Reset()
	}
	w.WriteHeader(http.StatusOK)
}

// getInPosition reports whether the shared motion queue is empty. Since
// every axis rides the same ring (spec section 4.3), in-position is a
// machine-wide property rather than a true per-axis one.
func (a *API) getInPosition(w http.ResponseWriter, r *http.Request) {
	if _, err := a.axisFor(r); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeBool(w, a.Controller.Planner.Ring().Len() == 0)
}
