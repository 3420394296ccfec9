package hostapi

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/nasa-jpl/tinyg/report"
)

// bindMachineRoutes registers the machine-wide (non-per-axis) routes:
// feedhold/resume, status reporting, and raw command-line submission.
func (a *API) bindMachineRoutes(table RouteTable) {
	table[MethodPath{http.MethodPost, "/feedhold"}] = a.feedhold
	table[MethodPath{http.MethodPost, "/resume"}] = a.resume
	table[MethodPath{http.MethodGet, "/status"}] = a.statusReport
	table[MethodPath{http.MethodGet, "/status/stream"}] = a.statusStream
	table[MethodPath{http.MethodPost, "/gcode"}] = a.submitGcode
}

func (a *API) feedhold(w http.ResponseWriter, r *http.Request) {
	a.Controller.Planner.Feedhold()
	w.WriteHeader(http.StatusOK)
}

func (a *API) resume(w http.ResponseWriter, r *http.Request) {
	a.Controller.Planner.Resume()
	w.WriteHeader(http.StatusOK)
}

func (a *API) snapshot() report.Report {
	line := 0
	if head := a.Controller.Planner.Ring().Head(); head != nil {
		line = head.LineNumber
	}
	return report.Snapshot(report.Source{
		Axes:    a.Axes,
		Planner: a.Controller.Planner,
		Alarmed: a.Alarmed,
		Line:    line,
	})
}

// statusReport returns the current Report, as the single-line structured
// form by default or the multi-line human form with ?human=1.
func (a *API) statusReport(w http.ResponseWriter, r *http.Request) {
	rep := a.snapshot()
	if r.URL.Query().Get("human") != "" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(rep.Human()))
		return
	}
	writeString(w, rep.Single())
}

// statusStream pushes Report.Single() lines to the client as they become
// available, gated by a.Throttle so a fast poller can't flood the
// connection (report.Throttler's non-blocking Allow, since this loop
// must also notice client disconnect promptly rather than block in
// Wait). If a.Throttle is nil every tick is emitted unthrottled.
func (a *API) statusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "hostapi: streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if a.Throttle != nil && !a.Throttle.Allow() {
				continue
			}
			fmt.Fprintln(w, a.snapshot().Single())
			flusher.Flush()
		}
	}
}

// submitGcode accepts one or more newline-separated raw command lines
// and feeds them to the command-reader task's queue, the same path a
// serial command stream would take (spec section 4.1): this endpoint is
// a LineReader source, not a bypass of planner enqueue/backpressure.
func (a *API) submitGcode(w http.ResponseWriter, r *http.Request) {
	if a.Source == nil {
		http.Error(w, "hostapi: no command queue configured", http.StatusServiceUnavailable)
		return
	}
	body, err := ioutil.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.Source.Submit(string(body)); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
