package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// TimeTrigger calls fn every 1/freq seconds until fn returns false (nil
// error) or ctx is done (ctx.Err()).
func TimeTrigger(ctx context.Context, clk clock.Clock, freq float64, fn func() bool) error {
	period, err := Period(freq)
	if err != nil {
		return err
	}

	ticker := clk.Ticker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !fn() {
				return nil
			}
		}
	}
}

// Period converts a frequency in Hz to a tick period.
func Period(freq float64) (time.Duration, error) {
	if !(freq > 0) || math.IsInf(freq, 0) {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidFrequency, freq)
	}
	period := time.Duration(float64(time.Second) / freq)
	if period <= 0 {
		period = time.Nanosecond
	}
	return period, nil
}

// Realtime steps a Stepper at a fixed frequency and fans each frame out to
// its sinks.
type Realtime struct {
	stepper Stepper
	freq    float64
	dt      float64
	clock   clock.Clock
	logger  *zap.SugaredLogger
	sinks   []Sink
	step    int
}

type Option func(*Realtime)

func WithClock(clk clock.Clock) Option {
	return func(r *Realtime) { r.clock = clk }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Realtime) { r.logger = l }
}

func WithSinks(sinks ...Sink) Option {
	return func(r *Realtime) { r.sinks = append(r.sinks, sinks...) }
}

// NewRealtime fixes dt = 1/freq for the life of the loop.
func NewRealtime(stepper Stepper, freq float64, opts ...Option) (*Realtime, error) {
	if _, err := Period(freq); err != nil {
		return nil, err
	}
	r := &Realtime{
		stepper: stepper,
		freq:    freq,
		dt:      1.0 / freq,
		clock:   clock.New(),
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Realtime) Dt() float64 { return r.dt }

// Tick performs one step and publishes the frame to every sink. Sink
// failures are combined; every sink still sees the frame.
func (r *Realtime) Tick() (Frame, error) {
	pose, state := r.stepper.Advance(r.dt)
	r.step++
	f := Frame{
		Step:  r.step,
		Time:  float64(r.step) * r.dt,
		Pose:  pose,
		State: state,
	}

	var err error
	for _, s := range r.sinks {
		err = multierr.Append(err, s.Publish(f))
	}
	return f, err
}

// Run ticks until ctx is done. Sink errors are logged and do not stop the
// loop.
func (r *Realtime) Run(ctx context.Context) error {
	r.logger.Infow("integration loop started", "freq", r.freq, "dt", r.dt, "sinks", len(r.sinks))
	err := TimeTrigger(ctx, r.clock, r.freq, func() bool {
		if f, err := r.Tick(); err != nil {
			r.logger.Warnw("publishing frame failed", "step", f.Step, "error", err)
		}
		return true
	})
	r.logger.Infow("integration loop stopped", "steps", r.step)
	return err
}
