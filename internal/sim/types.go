package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/posesim/internal/dynamo"
)

var ErrInvalidFrequency = errors.New("sim: frequency must be positive and finite")

// Stepper is the integrator seen by the drivers in this package.
type Stepper interface {
	SetKinematicState(dynamo.KinematicState)
	Advance(dt float64) (dynamo.Pose, dynamo.KinematicState)
	Pose() dynamo.Pose
	Reset(dynamo.Pose)
}

// Frame is one emitted pose together with the state that produced it.
type Frame struct {
	Step  int                   `json:"step"`
	Time  float64               `json:"time"`
	Pose  dynamo.Pose           `json:"pose"`
	State dynamo.KinematicState `json:"state"`
}

type Observer interface {
	OnFrame(f Frame)
}

type Metric interface {
	Name() string
	Observe(f Frame)
	Value() float64
	Reset()
}

// Sink receives every frame produced by a Realtime loop.
type Sink interface {
	Publish(f Frame) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Frame) error

func (fn SinkFunc) Publish(f Frame) error { return fn(f) }

// ObserverSink turns an Observer into a Sink that never fails.
func ObserverSink(o Observer) Sink {
	return SinkFunc(func(f Frame) error {
		o.OnFrame(f)
		return nil
	})
}

// Segment holds a kinematic state for a stretch of simulated time.
type Segment struct {
	Duration float64               `json:"duration" yaml:"duration"`
	State    dynamo.KinematicState `json:"state" yaml:"state"`
}

// Scenario is a scripted, offline run.
type Scenario struct {
	Initial  dynamo.Pose `json:"initial" yaml:"initial"`
	Dt       float64     `json:"dt" yaml:"dt"`
	Segments []Segment   `json:"segments" yaml:"segments"`
}

// SegmentSteps is the number of ticks seg covers at the scenario's dt.
func (sc Scenario) SegmentSteps(seg Segment) int {
	if sc.Dt <= 0 {
		return 0
	}
	return int(math.Round(seg.Duration / sc.Dt))
}

func (sc Scenario) Steps() int {
	n := 0
	for _, seg := range sc.Segments {
		n += sc.SegmentSteps(seg)
	}
	return n
}

func (sc Scenario) Duration() float64 {
	return float64(sc.Steps()) * sc.Dt
}

func (sc Scenario) Validate() error {
	if !(sc.Dt > 0) || math.IsInf(sc.Dt, 0) {
		return fmt.Errorf("%w: dt must be positive, got %v", dynamo.ErrInvalidConfig, sc.Dt)
	}
	if len(sc.Segments) == 0 {
		return fmt.Errorf("%w: scenario has no segments", dynamo.ErrInvalidConfig)
	}
	for i, seg := range sc.Segments {
		if seg.Duration < 0 {
			return fmt.Errorf("%w: segment %d has negative duration", dynamo.ErrInvalidConfig, i)
		}
	}
	if !sc.Initial.IsFinite() {
		return fmt.Errorf("%w: %w", dynamo.ErrInvalidConfig, dynamo.ErrInvalidPose)
	}
	return nil
}

type Result struct {
	Frames     []Frame
	Final      dynamo.Pose
	Metrics    map[string]float64
	StepsTaken int
}
