package sim

import (
	"context"
)

// Simulator replays a Scenario through a Stepper without wall-clock timing.
type Simulator struct {
	stepper   Stepper
	metrics   []Metric
	observers []Observer
}

func New(stepper Stepper) *Simulator {
	return &Simulator{
		stepper:   stepper,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Run resets the stepper to the scenario's initial pose and steps through
// every segment. Each segment's state is applied once, at its start. The
// initial pose is reported as frame 0.
func (s *Simulator) Run(ctx context.Context, sc Scenario) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	steps := sc.Steps()
	result := &Result{
		Frames:  make([]Frame, 0, steps+1),
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	s.stepper.Reset(sc.Initial)
	s.emit(result, Frame{Pose: sc.Initial})

	step := 0
	for _, seg := range sc.Segments {
		s.stepper.SetKinematicState(seg.State)

		for i := 0; i < sc.SegmentSteps(seg); i++ {
			select {
			case <-ctx.Done():
				s.finish(result)
				return result, ctx.Err()
			default:
			}

			pose, state := s.stepper.Advance(sc.Dt)
			step++
			result.StepsTaken++
			s.emit(result, Frame{
				Step:  step,
				Time:  float64(step) * sc.Dt,
				Pose:  pose,
				State: state,
			})
		}
	}

	s.finish(result)
	return result, nil
}

func (s *Simulator) emit(result *Result, f Frame) {
	for _, m := range s.metrics {
		m.Observe(f)
	}
	for _, obs := range s.observers {
		obs.OnFrame(f)
	}
	result.Frames = append(result.Frames, f)
}

func (s *Simulator) finish(result *Result) {
	result.Final = s.stepper.Pose()
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}
