// Package hostapi exposes the machine over HTTP: per-axis position,
// enable, velocity override, homing and stop, plus machine-wide
// feedhold/resume, status reporting, and raw command-line submission.
// Routing is grounded on generichttp/motion's chi-based handler shape
// (one file per capability, MethodPath-keyed route tables bound onto a
// chi.Router), generalized from per-device interfaces to this package's
// own scheduler.Controller/axis.Axis wiring.
package hostapi

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi"
)

// MethodPath is an HTTP method and a chi route pattern.
type MethodPath struct {
	Method, Path string
}

// RouteTable maps a MethodPath to its handler.
type RouteTable map[MethodPath]http.HandlerFunc

// Bind registers every route in rt on r, plus a GET /endpoints listing
// if one is not already present.
func (rt RouteTable) Bind(r chi.Router) {
	for mp, h := range rt {
		r.MethodFunc(mp.Method, mp.Path, h)
	}
	ep := MethodPath{Method: http.MethodGet, Path: "/endpoints"}
	if _, exists := rt[ep]; !exists {
		r.MethodFunc(ep.Method, ep.Path, rt.endpointsHTTP())
	}
}

func (rt RouteTable) endpointsHTTP() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		routes := make([]string, 0, len(rt))
		for mp := range rt {
			routes = append(routes, mp.Method+" "+mp.Path)
		}
		sort.Strings(routes)
		writeJSON(w, routes)
	}
}

// floatT/boolT/stringT mirror generichttp's single-field payload shapes.
type floatT struct {
	F64 float64 `json:"f64"`
}

type boolT struct {
	Bool bool `json:"bool"`
}

type stringT struct {
	Str string `json:"str"`
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeFloat(w http.ResponseWriter, f float64) { writeJSON(w, floatT{F64: f}) }
func writeBool(w http.ResponseWriter, b bool)     { writeJSON(w, boolT{Bool: b}) }
func writeString(w http.ResponseWriter, s string) { writeJSON(w, stringT{Str: s}) }

func decodeFloat(r *http.Request) (float64, error) {
	var f floatT
	err := json.NewDecoder(r.Body).Decode(&f)
	defer r.Body.Close()
	return f.F64, err
}

func decodeBool(r *http.Request) (bool, error) {
	var b boolT
	err := json.NewDecoder(r.Body).Decode(&b)
	defer r.Body.Close()
	return b.Bool, err
}
