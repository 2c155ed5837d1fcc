// Package node runs one simulated object on the message bus: inbound
// kinematic states for its frame id drive the integrator, and every tick
// publishes the resulting pose.
package node

import (
	"context"
	"fmt"
	"io"

	"github.com/benbjohnson/clock"
	"github.com/san-kum/posesim/internal/bus"
	"github.com/san-kum/posesim/internal/config"
	"github.com/san-kum/posesim/internal/integrators"
	"github.com/san-kum/posesim/internal/logging"
	"github.com/san-kum/posesim/internal/sim"
	"github.com/san-kum/posesim/internal/storage"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Node struct {
	cfg      config.Config
	session  bus.Session
	integ    *integrators.Kinematic
	rt       *sim.Realtime
	recorder *storage.Recorder
	logger   *zap.SugaredLogger
}

type Option func(*options)

type options struct {
	clock  clock.Clock
	logger *zap.SugaredLogger
	out    io.Writer
}

func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithOutput sets where verbose frame lines go.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// New validates cfg and wires the integrator to session. The node does not
// own the session; the caller closes it.
func New(cfg config.Config, session bus.Session, opts ...Option) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{clock: clock.New(), logger: logging.NewNop(), out: io.Discard}
	for _, opt := range opts {
		opt(&o)
	}

	n := &Node{
		cfg:     cfg,
		session: session,
		integ:   integrators.NewKinematic(cfg.Initial),
		logger:  o.logger,
	}

	bus.OnKinematicState(session, cfg.FrameID, n.integ.SetKinematicState)

	sinks := []sim.Sink{publisher(session, cfg.OutputIDs(), o.clock)}
	if cfg.Verbose {
		sinks = append(sinks, logging.PrintSink(o.out, cfg.FrameID))
	}
	if cfg.Record {
		n.recorder = storage.NewRecorder()
		sinks = append(sinks, n.recorder)
	}

	rt, err := sim.NewRealtime(n.integ, cfg.Freq,
		sim.WithClock(o.clock),
		sim.WithLogger(o.logger),
		sim.WithSinks(sinks...),
	)
	if err != nil {
		return nil, err
	}
	n.rt = rt
	return n, nil
}

// publisher sends each frame once per output id.
func publisher(session bus.Session, ids []uint32, clk clock.Clock) sim.Sink {
	return sim.SinkFunc(func(f sim.Frame) error {
		now := clk.Now()
		var err error
		for _, id := range ids {
			if sendErr := bus.SendFrame(session, f.Pose, now, id); sendErr != nil {
				err = multierr.Append(err, fmt.Errorf("frame id %d: %w", id, sendErr))
			}
		}
		return err
	})
}

// Run steps until ctx is done and returns ctx.Err().
func (n *Node) Run(ctx context.Context) error {
	n.logger.Infow("node started",
		"frame_id", n.cfg.FrameID,
		"cid", n.cfg.CID,
		"freq", n.cfg.Freq,
		"outputs", n.cfg.OutputIDs(),
	)
	return n.rt.Run(ctx)
}

// Recorded returns the frames captured so far, or nil if recording is off.
func (n *Node) Recorded() []sim.Frame {
	if n.recorder == nil {
		return nil
	}
	return n.recorder.Frames()
}

func (n *Node) Config() config.Config { return n.cfg }
