package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/san-kum/posesim/internal/bus"
	"github.com/san-kum/posesim/internal/config"
	"github.com/san-kum/posesim/internal/dynamo"
	"github.com/san-kum/posesim/internal/logging"
	"github.com/san-kum/posesim/internal/metrics"
	"github.com/san-kum/posesim/internal/node"
	"github.com/san-kum/posesim/internal/sim"
	"github.com/san-kum/posesim/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// serveConfig starts from the config file (or defaults) and applies every
// flag the user set explicitly.
func serveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("cid") {
		cfg.CID = cid
	}
	if flags.Changed("freq") {
		cfg.Freq = freq
	}
	if flags.Changed("frame-id") {
		cfg.FrameID = frameID
	}
	if flags.Changed("transport") {
		cfg.Transport = transport
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}
	if flags.Changed("record") {
		cfg.Record = record
	}
	for _, id := range publishIDs {
		cfg.PublishIDs = append(cfg.PublishIDs, uint32(id))
	}

	pose := []struct {
		name string
		dst  *float32
		val  float32
	}{
		{"x", &cfg.Initial.X, initX},
		{"y", &cfg.Initial.Y, initY},
		{"z", &cfg.Initial.Z, initZ},
		{"roll", &cfg.Initial.Roll, initRoll},
		{"pitch", &cfg.Initial.Pitch, initPitch},
		{"yaw", &cfg.Initial.Yaw, initYaw},
	}
	for _, p := range pose {
		if flags.Changed(p.name) {
			*p.dst = p.val
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openSession(cfg *config.Config, logger *zap.SugaredLogger) (bus.Session, error) {
	switch cfg.Transport {
	case config.TransportLocal:
		return bus.NewHub(bus.WithLogger(logger)).Open(cfg.CID)
	default:
		return bus.DialUDP(cfg.CID, bus.WithLogger(logger))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := serveConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	logger := logging.New("posesim", debug)
	defer logger.Sync()

	session, err := openSession(cfg, logger)
	if err != nil {
		return err
	}

	n, err := node.New(*cfg, session, node.WithLogger(logger), node.WithOutput(os.Stdout))
	if err != nil {
		session.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		return session.Close()
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Infow("stopped")

	if cfg.Record {
		runID, saveErr := saveServed(cfg, n.Recorded())
		if saveErr != nil {
			return multierr.Append(err, saveErr)
		}
		fmt.Printf("saved: %s\n", runID)
	}
	return err
}

func saveServed(cfg *config.Config, recorded []sim.Frame) (string, error) {
	frames := append([]sim.Frame{{Pose: cfg.Initial}}, recorded...)
	vals := make(map[string]float64)
	for _, m := range metrics.Standard() {
		for _, f := range frames {
			m.Observe(f)
		}
		vals[m.Name()] = m.Value()
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return "", err
	}
	return st.Save(storage.RunMetadata{
		Name:    "serve",
		Source:  "serve",
		FrameID: cfg.FrameID,
		Dt:      cfg.Dt(),
		Metrics: vals,
	}, frames)
}

func runSend(cmd *cobra.Command, args []string) error {
	if err := bus.ValidCID(cid); err != nil {
		return err
	}
	cmd.SilenceUsage = true

	logger := logging.New("posesim", debug)
	defer logger.Sync()

	var session bus.Session
	var err error
	switch transport {
	case config.TransportUDP:
		session, err = bus.DialUDP(cid, bus.WithLogger(logger))
	default:
		return fmt.Errorf("%w: send needs the udp transport, got %q", dynamo.ErrInvalidConfig, transport)
	}
	if err != nil {
		return err
	}
	defer session.Close()

	ks := dynamo.KinematicState{
		Vx: sendVx, Vy: sendVy, Vz: sendVz,
		RollRate: sendRollRate, PitchRate: sendPitchRate, YawRate: sendYawRate,
	}
	if err := bus.SendKinematicState(session, ks, time.Now(), frameID); err != nil {
		return err
	}
	logger.Infow("sent kinematic state", "cid", cid, "frame_id", frameID, "state", ks.String())
	return nil
}
