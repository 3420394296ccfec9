package config_test

import (
	"testing"

	"github.com/nasa-jpl/tinyg/axis"
	"github.com/nasa-jpl/tinyg/config"
)

func testAxes() [6]*axis.Axis {
	var axes [6]*axis.Axis
	names := []axis.Name{axis.X, axis.Y, axis.Z, axis.A, axis.B, axis.C}
	for i, n := range names {
		axes[i] = axis.New(n)
	}
	return axes
}

func TestApplyAxisTokens(t *testing.T) {
	axes := testAxes()
	c := config.Config{
		Xvm: 200, Xjm: 5e6, Xjd: 0.01, Xtn: -10, Xtx: 110, Xsv: 12, Xlb: 2, Xsm: 1,
	}
	c.Apply(axes)

	x := axes[0]
	if x.VelocityMax != 200 {
		t.Errorf("VelocityMax = %v, want 200", x.VelocityMax)
	}
	if x.JerkMax != 5e6 {
		t.Errorf("JerkMax = %v, want 5e6", x.JerkMax)
	}
	if x.Travel.Min != -10 || x.Travel.Max != 110 {
		t.Errorf("Travel = %+v, want {-10 110}", x.Travel)
	}
	if x.HomingVelocity != 12 || x.HomingBackoff != 2 {
		t.Errorf("homing = (%v, %v), want (12, 2)", x.HomingVelocity, x.HomingBackoff)
	}
	if x.HomingSwitchMode != axis.SwitchNormallyOpen {
		t.Errorf("HomingSwitchMode = %v, want SwitchNormallyOpen", x.HomingSwitchMode)
	}
}

func TestJunctionDeviationDefaultFillsUnsetAxes(t *testing.T) {
	axes := testAxes()
	c := config.Config{JunctionDeviationDefault: 0.05, Yjd: 0.02}
	c.Apply(axes)

	if axes[0].JunctionDeviation != 0.05 {
		t.Errorf("X JunctionDeviation = %v, want default 0.05", axes[0].JunctionDeviation)
	}
	if axes[1].JunctionDeviation != 0.02 {
		t.Errorf("Y JunctionDeviation = %v, want its own override 0.02", axes[1].JunctionDeviation)
	}
}

func TestApplyMapsMotorOntoAxis(t *testing.T) {
	axes := testAxes()
	c := config.Config{
		M1ma: "x", M1sa: 1.8, M1tr: 40, M1mi: 8,
	}
	c.Apply(axes)

	motors := axes[0].Motors()
	if len(motors) != 1 {
		t.Fatalf("len(motors) = %d, want 1", len(motors))
	}
	if motors[0].StepsPerUnit() <= 0 {
		t.Errorf("StepsPerUnit = %v, want > 0 once sa/tr/mi are set", motors[0].StepsPerUnit())
	}
}

func TestStoreDefaultsThenFileMissingIsNotAnError(t *testing.T) {
	s := config.NewStore(config.Config{Xvm: 150})
	if err := s.LoadFile("/nonexistent/tinygd.yml"); err != nil {
		t.Fatalf("LoadFile of a missing file should not error, got %v", err)
	}
	c, err := s.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if c.Xvm != 150 {
		t.Errorf("Xvm = %v, want default 150 preserved after a missing-file load", c.Xvm)
	}
}

func TestStoreSetOverridesDefault(t *testing.T) {
	s := config.NewStore(config.Config{Xvm: 150})
	if err := s.Set("xvm", 300.0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	c, err := s.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if c.Xvm != 300 {
		t.Errorf("Xvm = %v, want 300 after Set", c.Xvm)
	}
}
