package config

import (
	"math"
	"sort"

	"github.com/san-kum/posesim/internal/dynamo"
	"github.com/san-kum/posesim/internal/sim"
)

var Presets = map[string]ScenarioConfig{
	"straight": {
		Name: "straight", Dt: 0.01,
		Segments: []sim.Segment{{Duration: 10, State: dynamo.KinematicState{Vx: 1}}},
	},
	"circle": {
		Name: "circle", Dt: 0.01,
		Segments: circle(2, 1, 40),
	},
	"corkscrew": {
		Name: "corkscrew", Dt: 0.01,
		Segments: []sim.Segment{{Duration: 10, State: dynamo.KinematicState{Vx: 1, RollRate: 1}}},
	},
	"climb": {
		Name: "climb", Dt: 0.01,
		Segments: []sim.Segment{
			{Duration: 2, State: dynamo.KinematicState{Vx: 1}},
			{Duration: 5, State: dynamo.KinematicState{Vx: 1, Vz: 0.5, PitchRate: 0.1}},
			{Duration: 3, State: dynamo.KinematicState{Vx: 1}},
		},
	},
	"spin": {
		Name: "spin", Dt: 0.01,
		Segments: []sim.Segment{{Duration: 10, State: dynamo.KinematicState{YawRate: 1}}},
	},
}

// circle approximates a horizontal circle with n chords. Velocity is world
// frame, so each chord gets its own heading while the yaw rate keeps the nose
// on the tangent.
func circle(radius, speed float64, n int) []sim.Segment {
	segs := make([]sim.Segment, n)
	arc := 2 * math.Pi / float64(n)
	for i := range segs {
		heading := (float64(i) + 0.5) * arc
		segs[i] = sim.Segment{
			Duration: 2 * radius * math.Sin(arc/2) / speed,
			State: dynamo.KinematicState{
				Vx:      float32(speed * math.Cos(heading)),
				Vy:      float32(speed * math.Sin(heading)),
				YawRate: float32(arc / (2 * radius * math.Sin(arc/2) / speed)),
			},
		}
	}
	return segs
}

// GetPreset returns a copy of the named scenario.
func GetPreset(name string) (ScenarioConfig, bool) {
	p, ok := Presets[name]
	if !ok {
		return ScenarioConfig{}, false
	}
	p.Segments = append([]sim.Segment(nil), p.Segments...)
	return p, true
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
