package hostapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nasa-jpl/tinyg/axis"
	"github.com/nasa-jpl/tinyg/canonical"
	"github.com/nasa-jpl/tinyg/hal"
	"github.com/nasa-jpl/tinyg/hostapi"
	"github.com/nasa-jpl/tinyg/planner"
	"github.com/nasa-jpl/tinyg/scheduler"
	"github.com/nasa-jpl/tinyg/segment"
	"github.com/nasa-jpl/tinyg/stepper"
)

func testAxes() (axes [6]*axis.Axis) {
	for i := 0; i < 3; i++ {
		a := axis.New(axis.Name("XYZ"[i]))
		a.VelocityMax = 200
		a.JerkMax = 5e6
		a.JunctionDeviation = 0.01
		a.HomingVelocity = 10
		a.HomingBackoff = 1
		a.Travel.Min, a.Travel.Max = 0, 100
		a.Mode = axis.ModeStandard
		a.AddMotor(axis.NewMotor(1, 1.8, 40, 8))
		axes[i] = a
	}
	return axes
}

func newTestAPI(t *testing.T) (*hostapi.API, [6]*axis.Axis) {
	t.Helper()
	axes := testAxes()
	m := canonical.NewMachine()
	p := planner.New(8, axes)
	pins := hal.NewMock()
	timer := hal.NewMockTimer()
	src := hostapi.NewQueueSource(16)
	ctrl := scheduler.NewController(m, p, 8, segment.DefaultPeriod, src, pins)
	ctrl.Executor = stepper.New(pins, timer, ctrl.Runtime.Queue(), axes, nil, 500, 5)
	ctrl.Executor.Start()

	api := hostapi.NewAPI(ctrl, axes, nil, src, func() bool { return false })
	return api, axes
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGetPosReturnsZeroInitially(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doJSON(t, api.Router(), http.MethodGet, "/axis/X/pos", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var got struct {
		F64 float64 `json:"f64"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.F64 != 0 {
		t.Errorf("pos = %v, want 0", got.F64)
	}
}

func TestUnknownAxisIsNotFound(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doJSON(t, api.Router(), http.MethodGet, "/axis/Q/pos", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSetPosEnqueuesMove(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doJSON(t, api.Router(), http.MethodPost, "/axis/X/pos", map[string]float64{"f64": 10})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if api.Controller.Planner.Ring().Len() != 1 {
		t.Errorf("ring len = %d, want 1 after a pos move", api.Controller.Planner.Ring().Len())
	}
}

func TestSetPosRejectsOutOfTravel(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doJSON(t, api.Router(), http.MethodPost, "/axis/X/pos", map[string]float64{"f64": 1000})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an out-of-travel target", rec.Code)
	}
}

func TestEnabledRoundTrip(t *testing.T) {
	api, _ := newTestAPI(t)
	router := api.Router()

	rec := doJSON(t, router, http.MethodPost, "/axis/X/enabled", map[string]bool{"bool": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("SetEnabled status = %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/axis/X/enabled", nil)
	var got struct {
		Bool bool `json:"bool"`
	}
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Bool {
		t.Error("GetEnabled = true, want false after disabling")
	}
}

func TestFeedholdThenResumeTransitionsHoldState(t *testing.T) {
	api, _ := newTestAPI(t)
	router := api.Router()

	api.Controller.Planner.Enqueue(planner.CanonicalMove{Target: planner.Vec6{50, 0, 0, 0, 0, 0}, FeedRate: 50, Type: planner.MoveFeed})

	doJSON(t, router, http.MethodPost, "/feedhold", nil)
	if api.Controller.Planner.Hold != planner.HoldDecelerating {
		t.Fatalf("Hold = %v, want HoldDecelerating", api.Controller.Planner.Hold)
	}

	api.Controller.Planner.EnterHeld() // simulate the runtime completing the ramp
	doJSON(t, router, http.MethodPost, "/resume", nil)
	if api.Controller.Planner.Hold != planner.HoldResuming {
		t.Fatalf("Hold = %v, want HoldResuming", api.Controller.Planner.Hold)
	}
}

func TestStatusReportSingleLine(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doJSON(t, api.Router(), http.MethodGet, "/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got struct {
		Str string `json:"str"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Str == "" {
		t.Error("expected a non-empty single-line status report")
	}
}

func TestSubmitGcodeQueuesLineForReader(t *testing.T) {
	api, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/gcode", bytes.NewBufferString("G1 X10 F50\n"))
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	line, err := api.Source.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if string(line) != "G1 X10 F50" {
		t.Errorf("line = %q, want %q", line, "G1 X10 F50")
	}
}

func TestStopFlushesQueue(t *testing.T) {
	api, _ := newTestAPI(t)
	api.Controller.Planner.Enqueue(planner.CanonicalMove{Target: planner.Vec6{10, 0, 0, 0, 0, 0}, FeedRate: 50, Type: planner.MoveFeed})
	if api.Controller.Planner.Ring().Len() == 0 {
		t.Fatal("expected a queued move before stop")
	}
	rec := doJSON(t, api.Router(), http.MethodPost, "/axis/X/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if api.Controller.Planner.Ring().Len() != 0 {
		t.Error("expected stop to flush the queue")
	}
}
