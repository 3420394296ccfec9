// Package config implements the koanf-backed short-token parameter store
// of spec section 6: a flat key space named after the real TinyG
// firmware's settings tokens (xvm, 1sa, ja, ...), loaded from a YAML file
// over struct-provided defaults. This package never reaches into the
// pipeline directly; it only pushes values into the axis/motor model via
// the setter hooks those types already expose, per section 6's "the
// config layer is out of scope here ... interacts with the core only via
// setter hooks".
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "github.com/go-yaml/yaml"

	"github.com/nasa-jpl/tinyg/axis"
)

// Config is the flat token space for one machine: one group of axis
// tokens per logical axis (X/Y/Z/A/B/C) and one group of motor tokens per
// physical motor (1-6), plus the handful of system-wide tokens spec
// section 6 and the real firmware's settings table both carry at top
// level (ja, the system default junction deviation).
type Config struct {
	// JunctionDeviationDefault (token "ja") seeds any axis whose own jd
	// token is left at zero.
	JunctionDeviationDefault float64 `koanf:"ja"`

	Xvm float64 `koanf:"xvm"`
	Xjm float64 `koanf:"xjm"`
	Xjd float64 `koanf:"xjd"`
	Xtn float64 `koanf:"xtn"`
	Xtx float64 `koanf:"xtx"`
	Xsv float64 `koanf:"xsv"`
	Xlb float64 `koanf:"xlb"`
	Xsm int     `koanf:"xsm"`

	Yvm float64 `koanf:"yvm"`
	Yjm float64 `koanf:"yjm"`
	Yjd float64 `koanf:"yjd"`
	Ytn float64 `koanf:"ytn"`
	Ytx float64 `koanf:"ytx"`
	Ysv float64 `koanf:"ysv"`
	Ylb float64 `koanf:"ylb"`
	Ysm int     `koanf:"ysm"`

	Zvm float64 `koanf:"zvm"`
	Zjm float64 `koanf:"zjm"`
	Zjd float64 `koanf:"zjd"`
	Ztn float64 `koanf:"ztn"`
	Ztx float64 `koanf:"ztx"`
	Zsv float64 `koanf:"zsv"`
	Zlb float64 `koanf:"zlb"`
	Zsm int     `koanf:"zsm"`

	Avm float64 `koanf:"avm"`
	Ajm float64 `koanf:"ajm"`
	Ajd float64 `koanf:"ajd"`
	Atn float64 `koanf:"atn"`
	Atx float64 `koanf:"atx"`
	Asv float64 `koanf:"asv"`
	Alb float64 `koanf:"alb"`
	Asm int     `koanf:"asm"`

	Bvm float64 `koanf:"bvm"`
	Bjm float64 `koanf:"bjm"`
	Bjd float64 `koanf:"bjd"`
	Btn float64 `koanf:"btn"`
	Btx float64 `koanf:"btx"`
	Bsv float64 `koanf:"bsv"`
	Blb float64 `koanf:"blb"`
	Bsm int     `koanf:"bsm"`

	Cvm float64 `koanf:"cvm"`
	Cjm float64 `koanf:"cjm"`
	Cjd float64 `koanf:"cjd"`
	Ctn float64 `koanf:"ctn"`
	Ctx float64 `koanf:"ctx"`
	Csv float64 `koanf:"csv"`
	Clb float64 `koanf:"clb"`
	Csm int     `koanf:"csm"`

	// Motor tokens. "ma" maps a motor onto an axis letter (mirroring the
	// firmware's $1ma); "sa"/"tr"/"mi"/"po" are the Motor invariant's
	// inputs (step angle, travel/rev, microsteps, polarity).
	M1ma string  `koanf:"1ma"`
	M1sa float64 `koanf:"1sa"`
	M1tr float64 `koanf:"1tr"`
	M1mi int     `koanf:"1mi"`
	M1po int     `koanf:"1po"`

	M2ma string  `koanf:"2ma"`
	M2sa float64 `koanf:"2sa"`
	M2tr float64 `koanf:"2tr"`
	M2mi int     `koanf:"2mi"`
	M2po int     `koanf:"2po"`

	M3ma string  `koanf:"3ma"`
	M3sa float64 `koanf:"3sa"`
	M3tr float64 `koanf:"3tr"`
	M3mi int     `koanf:"3mi"`
	M3po int     `koanf:"3po"`

	M4ma string  `koanf:"4ma"`
	M4sa float64 `koanf:"4sa"`
	M4tr float64 `koanf:"4tr"`
	M4mi int     `koanf:"4mi"`
	M4po int     `koanf:"4po"`

	M5ma string  `koanf:"5ma"`
	M5sa float64 `koanf:"5sa"`
	M5tr float64 `koanf:"5tr"`
	M5mi int     `koanf:"5mi"`
	M5po int     `koanf:"5po"`

	M6ma string  `koanf:"6ma"`
	M6sa float64 `koanf:"6sa"`
	M6tr float64 `koanf:"6tr"`
	M6mi int     `koanf:"6mi"`
	M6po int     `koanf:"6po"`
}

// axisGroup is one axis's tokens read generically, so Apply can iterate
// the six axes instead of repeating its body six times.
type axisGroup struct {
	name                       axis.Name
	vm, jm, jd, tn, tx, sv, lb float64
	sm                         int
}

func (c *Config) axisGroups() [6]axisGroup {
	return [6]axisGroup{
		{axis.X, c.Xvm, c.Xjm, c.Xjd, c.Xtn, c.Xtx, c.Xsv, c.Xlb, c.Xsm},
		{axis.Y, c.Yvm, c.Yjm, c.Yjd, c.Ytn, c.Ytx, c.Ysv, c.Ylb, c.Ysm},
		{axis.Z, c.Zvm, c.Zjm, c.Zjd, c.Ztn, c.Ztx, c.Zsv, c.Zlb, c.Zsm},
		{axis.A, c.Avm, c.Ajm, c.Ajd, c.Atn, c.Atx, c.Asv, c.Alb, c.Asm},
		{axis.B, c.Bvm, c.Bjm, c.Bjd, c.Btn, c.Btx, c.Bsv, c.Blb, c.Bsm},
		{axis.C, c.Cvm, c.Cjm, c.Cjd, c.Ctn, c.Ctx, c.Csv, c.Clb, c.Csm},
	}
}

type motorGroup struct {
	index   int
	axisMap string
	sa, tr  float64
	mi, po  int
}

func (c *Config) motorGroups() [6]motorGroup {
	return [6]motorGroup{
		{1, c.M1ma, c.M1sa, c.M1tr, c.M1mi, c.M1po},
		{2, c.M2ma, c.M2sa, c.M2tr, c.M2mi, c.M2po},
		{3, c.M3ma, c.M3sa, c.M3tr, c.M3mi, c.M3po},
		{4, c.M4ma, c.M4sa, c.M4tr, c.M4mi, c.M4po},
		{5, c.M5ma, c.M5sa, c.M5tr, c.M5mi, c.M5po},
		{6, c.M6ma, c.M6sa, c.M6tr, c.M6mi, c.M6po},
	}
}

// Apply pushes this Config's values into axes (indexed 0=X..5=C, matching
// planner.Vec6's axis order) and maps each motor group onto its axis via
// the "ma" token, mirroring the Motor invariant in spec section 3:
// changing step_angle/travel_per_rev/microsteps re-derives steps_per_unit
// atomically with respect to the planner (the axis/motor setters already
// take the needed lock; this function just calls them).
func (c *Config) Apply(axes [6]*axis.Axis) {
	byName := make(map[axis.Name]*axis.Axis, 6)
	for _, a := range axes {
		if a != nil {
			byName[a.Name] = a
		}
	}

	for _, g := range c.axisGroups() {
		a, ok := byName[g.name]
		if !ok {
			continue
		}
		jd := g.jd
		if jd == 0 {
			jd = c.JunctionDeviationDefault
		}
		a.Lock()
		if g.vm != 0 {
			a.VelocityMax = g.vm
		}
		if g.jm != 0 {
			a.JerkMax = g.jm
		}
		if jd != 0 {
			a.JunctionDeviation = jd
		}
		if g.tn != 0 || g.tx != 0 {
			a.Travel.Min, a.Travel.Max = g.tn, g.tx
		}
		if g.sv != 0 {
			a.HomingVelocity = g.sv
		}
		if g.lb != 0 {
			a.HomingBackoff = g.lb
		}
		if g.sm != 0 {
			a.HomingSwitchMode = axis.SwitchMode(g.sm)
		}
		a.Unlock()
	}

	for _, mg := range c.motorGroups() {
		if mg.axisMap == "" {
			continue
		}
		a, ok := byName[axis.Name(strings.ToUpper(mg.axisMap)[0])]
		if !ok {
			continue
		}
		var target *axis.Motor
		for _, m := range a.Motors() {
			if m.Index == mg.index {
				target = m
				break
			}
		}
		if target == nil {
			target = axis.NewMotor(mg.index, mg.sa, mg.tr, mg.mi)
			a.AddMotor(target)
			continue
		}
		if mg.sa != 0 {
			target.SetStepAngle(mg.sa)
		}
		if mg.tr != 0 {
			target.SetTravelPerRev(mg.tr)
		}
		if mg.mi != 0 {
			target.SetMicrosteps(mg.mi)
		}
		if mg.po != 0 {
			target.Polarity = axis.Polarity(mg.po)
		}
	}
}

// Store wraps a koanf instance with the default-then-file load order
// cmd/multiserver's setupconfig uses: struct defaults first, then an
// optional YAML file layered on top, tolerating a missing file.
type Store struct {
	k *koanf.Koanf
}

// NewStore returns a Store seeded with defaults.
func NewStore(defaults Config) *Store {
	k := koanf.New(".")
	k.Load(structs.Provider(defaults, "koanf"), nil)
	return &Store{k: k}
}

// LoadFile layers path's YAML contents over the current values. A missing
// file is not an error (mirrors multiserver's "file missing, who cares").
func (s *Store) LoadFile(path string) error {
	err := s.k.Load(file.Provider(path), yaml.Parser())
	if err != nil && !strings.Contains(err.Error(), "no such") {
		return err
	}
	return nil
}

// Config unmarshals the current key/value store into a Config.
func (s *Store) Config() (Config, error) {
	var c Config
	err := s.k.Unmarshal("", &c)
	return c, err
}

// WriteDefaults marshals c to path as YAML, mirroring multiserver's
// mkconf: a starting point for hand-editing, not required to run.
func WriteDefaults(path string, c Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return yml.NewEncoder(f).Encode(c)
}

// Set applies a single token/value pair directly to the live store,
// mirroring the "$token=value" runtime-set form of spec section 6's
// configuration surface (distinct from LoadFile's whole-document load).
func (s *Store) Set(token string, value interface{}) error {
	return s.k.Load(confmap.Provider(map[string]interface{}{token: value}, "."), nil)
}
