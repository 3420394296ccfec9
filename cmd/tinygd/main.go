// tinygd is the motion-controller process: it wires the canonical
// machine, planner, segment runtime, and stepper executor into the
// scheduler's cooperative dispatch loop, then exposes the result over
// HTTP. Verb/config shape grounded on cmd/multiserver/main.go (help /
// mkconf / conf / run / version over a koanf-backed Config).
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi"

	yml "github.com/go-yaml/yaml"

	"github.com/nasa-jpl/tinyg/axis"
	"github.com/nasa-jpl/tinyg/canonical"
	"github.com/nasa-jpl/tinyg/config"
	"github.com/nasa-jpl/tinyg/hal"
	"github.com/nasa-jpl/tinyg/hostapi"
	"github.com/nasa-jpl/tinyg/planner"
	"github.com/nasa-jpl/tinyg/report"
	"github.com/nasa-jpl/tinyg/scheduler"
	"github.com/nasa-jpl/tinyg/segment"
	"github.com/nasa-jpl/tinyg/stepper"
)

// Version is the version number, typically injected via ldflags at build time.
var Version = "dev"

// ConfigFileName is the YAML file tinygd loads its settings from, in the
// working directory it is run from.
const ConfigFileName = "tinygd.yml"

// listenAddr is the HTTP bind address for the host-facing API.
const listenAddr = ":8920"

// planRingCapacity is the planner ring's slot count (spec section 4.3
// recommends >= 28 so several moves are in flight for corner smoothing).
const planRingCapacity = 32

// segmentQueueCapacity is the segment.Queue's capacity between the
// planner-paced runtime and the stepper executor's ISR-rate consumer.
const segmentQueueCapacity = 8

func defaultConfig() config.Config {
	return config.Config{
		JunctionDeviationDefault: 0.01,

		Xvm: 200, Xjm: 5e6, Xjd: 0, Xtn: 0, Xtx: 200, Xsv: 10, Xlb: 2, Xsm: int(axis.SwitchNormallyOpen),
		Yvm: 200, Yjm: 5e6, Yjd: 0, Ytn: 0, Ytx: 200, Ysv: 10, Ylb: 2, Ysm: int(axis.SwitchNormallyOpen),
		Zvm: 100, Zjm: 2e6, Zjd: 0, Ztn: 0, Ztx: 50, Zsv: 5, Zlb: 1, Zsm: int(axis.SwitchNormallyOpen),

		M1ma: "x", M1sa: 1.8, M1tr: 40, M1mi: 8,
		M2ma: "y", M2sa: 1.8, M2tr: 40, M2mi: 8,
		M3ma: "z", M3sa: 1.8, M3tr: 8, M3mi: 8,
	}
}

func buildAxes(c config.Config) [6]*axis.Axis {
	var axes [6]*axis.Axis
	for i, n := range []axis.Name{axis.X, axis.Y, axis.Z, axis.A, axis.B, axis.C} {
		a := axis.New(n)
		a.Mode = axis.ModeDisabled
		axes[i] = a
	}
	c.Apply(axes)
	for _, a := range axes {
		if len(a.Motors()) > 0 {
			a.Mode = axis.ModeStandard
		}
	}
	return axes
}

// buildController wires a scheduler.Controller and its stepper.Executor
// for the given axes and line source, using the mock hal.Pins/hal.Timer
// backend (spec section 9 scopes the real GPIO/timer hookup out: this
// process only needs to exercise the cooperative dispatch and motion
// pipeline against something that behaves like real hardware).
func buildController(axes [6]*axis.Axis, source scheduler.LineReader) (*scheduler.Controller, map[axis.Name]*scheduler.HomingCycle) {
	m := canonical.NewMachine()
	p := planner.New(planRingCapacity, axes)
	pins := hal.NewMock()
	timer := hal.NewMockTimer()

	ctrl := scheduler.NewController(m, p, segmentQueueCapacity, segment.DefaultPeriod, source, pins)
	ctrl.Executor = stepper.New(pins, timer, ctrl.Runtime.Queue(), axes, nil, 500, 5)

	homing := make(map[axis.Name]*scheduler.HomingCycle, 6)
	for i, a := range axes {
		if a == nil || len(a.Motors()) == 0 {
			continue
		}
		h := scheduler.NewHomingCycle(a, i, hal.LimitMin, pins, p, ctrl.Executor)
		ctrl.AddHomingCycle(h)
		homing[a.Name] = h
	}
	return ctrl, homing
}

func root() {
	fmt.Println(`tinygd drives a CNC motion controller and exposes its
command stream and status reports over HTTP.

Usage:
	tinygd <command>

Commands:
	run
	help
	mkconf
	conf
	version`)
}

func help() {
	fmt.Println(`tinygd is configured via its YAML file, using the short settings
tokens real TinyG firmware uses (xvm, 1sa, ja, ...). When no file is
present the built-in defaults are used. mkconf writes the current
defaults to tinygd.yml as a starting point for hand-editing.`)
}

func mkconf() {
	if err := config.WriteDefaults(ConfigFileName, defaultConfig()); err != nil {
		log.Fatal(err)
	}
}

func loadStore() *config.Store {
	s := config.NewStore(defaultConfig())
	if err := s.LoadFile(ConfigFileName); err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	return s
}

func printconf() {
	c, err := loadStore().Config()
	if err != nil {
		log.Fatal(err)
	}
	if err := yml.NewEncoder(os.Stdout).Encode(c); err != nil {
		log.Fatal(err)
	}
}

func version() {
	fmt.Printf("tinygd version %v\n", Version)
}

func run() {
	c, err := loadStore().Config()
	if err != nil {
		log.Fatal(err)
	}
	axes := buildAxes(c)

	src := hostapi.NewQueueSource(64)
	ctrl, homing := buildController(axes, src)
	ctrl.Executor.Start()

	ctrl.OnStatus = func(line string) { log.Println(line) }

	s := scheduler.New(log.Default())
	ctrl.Register(s)

	alarmed := func() bool { return ctrl.Executor.Alarmed() }
	api := hostapi.NewAPI(ctrl, axes, homing, src, alarmed)
	api.Throttle = report.NewThrottler(20, 4)

	mux := chi.NewRouter()
	mux.Mount("/", api.Router())

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
		ctrl.Executor.Stop()
		os.Exit(0)
	}()

	log.Printf("tinygd listening at %s", listenAddr)
	log.Fatal(http.ListenAndServe(listenAddr, mux))
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	cmd := strings.ToLower(args[1])
	switch cmd {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "run":
		run()
	case "version":
		version()
	default:
		log.Fatal("unknown command")
	}
}
