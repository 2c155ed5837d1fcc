package config

import (
	"math"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

func TestGetPreset(t *testing.T) {
	p, ok := GetPreset("straight")
	if !ok {
		t.Fatal("expected preset")
	}
	if len(p.Segments) != 1 || p.Segments[0].State.Vx != 1 || p.Segments[0].Duration != 10 {
		t.Errorf("unexpected straight preset %+v", p)
	}
}

func TestGetPresetReturnsCopy(t *testing.T) {
	p, _ := GetPreset("climb")
	p.Segments[0].Duration = 1000
	p.Dt = 1

	again, _ := GetPreset("climb")
	if again.Segments[0].Duration == 1000 || again.Dt == 1 {
		t.Error("mutating a returned preset changed the registry")
	}
}

func TestGetPresetNotFound(t *testing.T) {
	if _, ok := GetPreset("nonexistent"); ok {
		t.Error("expected miss for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	want := []string{"circle", "climb", "corkscrew", "spin", "straight"}
	if diff := cmp.Diff(want, ListPresets()); diff != "" {
		t.Errorf("presets (-want +got):\n%s", diff)
	}
}

func TestPresetsValidate(t *testing.T) {
	for _, name := range ListPresets() {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Scenario, _ = GetPreset(name)
			if err := cfg.Validate(); err != nil {
				t.Fatal(err)
			}
			if err := cfg.SimScenario().Validate(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestCirclePresetCloses(t *testing.T) {
	p, _ := GetPreset("circle")

	var x, y, yaw float64
	for _, seg := range p.Segments {
		x += float64(seg.State.Vx) * seg.Duration
		y += float64(seg.State.Vy) * seg.Duration
		yaw += float64(seg.State.YawRate) * seg.Duration
	}
	if math.Hypot(x, y) > 1e-5 {
		t.Errorf("circle should end where it started, ended at (%v, %v)", x, y)
	}
	if math.Abs(yaw-2*math.Pi) > 1e-5 {
		t.Errorf("expected one full turn of yaw, got %v", yaw)
	}
}
