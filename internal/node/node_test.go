package node

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/san-kum/posesim/internal/bus"
	"github.com/san-kum/posesim/internal/config"
	"github.com/san-kum/posesim/internal/dynamo"
	"github.com/san-kum/posesim/internal/sim"
	"go.uber.org/multierr"
)

type poseLog struct {
	mu    sync.Mutex
	poses []dynamo.Pose
}

func (l *poseLog) add(p dynamo.Pose, _ time.Time) {
	l.mu.Lock()
	l.poses = append(l.poses, p)
	l.mu.Unlock()
}

func (l *poseLog) snapshot() []dynamo.Pose {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]dynamo.Pose(nil), l.poses...)
}

func localConfig() config.Config {
	cfg := *config.DefaultConfig()
	cfg.Transport = config.TransportLocal
	return cfg
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	hub := bus.NewHub()
	s, _ := hub.Open(1)

	cfg := localConfig()
	cfg.Freq = 0
	if _, err := New(cfg, s); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestNodeServesFrames(t *testing.T) {
	hub := bus.NewHub()
	nodeSession, _ := hub.Open(111)
	control, _ := hub.Open(111)

	cfg := localConfig()
	cfg.FrameID = 3
	cfg.PublishIDs = []uint32{9}
	cfg.Verbose = true
	cfg.Record = true

	var out bytes.Buffer
	mock := clock.NewMock()
	n, err := New(cfg, nodeSession, WithClock(mock), WithOutput(&out))
	if err != nil {
		t.Fatal(err)
	}

	primary, extra := &poseLog{}, &poseLog{}
	bus.OnFrame(control, 3, primary.add)
	bus.OnFrame(control, 9, extra.add)

	// only the matching sender stamp may drive the integrator
	if err := bus.SendKinematicState(control, dynamo.KinematicState{Vx: 1}, time.Now(), 3); err != nil {
		t.Fatal(err)
	}
	if err := bus.SendKinematicState(control, dynamo.KinematicState{Vy: 50}, time.Now(), 4); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	for i := 0; len(primary.snapshot()) < 10; i++ {
		if i > 10000 {
			t.Fatal("node never published 10 frames")
		}
		mock.Add(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	poses := primary.snapshot()
	if got := len(extra.snapshot()); got != len(poses) {
		t.Errorf("publish id saw %d frames, frame id saw %d", got, len(poses))
	}
	last := poses[len(poses)-1]
	if math.Abs(float64(last.X)-0.01*float64(len(poses))) > 1e-5 || last.Y != 0 {
		t.Errorf("unexpected final pose %v after %d ticks", last, len(poses))
	}

	if got := len(n.Recorded()); got != len(poses) {
		t.Errorf("recorded %d frames, published %d", got, len(poses))
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != len(poses) {
		t.Errorf("expected %d verbose lines, got %d", len(poses), len(lines))
	}
	if want := "Frame  with id 3 is at [x=0.01, y=0, z=0] with the rotation [roll=0, pitch=0, yaw=0]."; lines[0] != want {
		t.Errorf("first line %q, want %q", lines[0], want)
	}
}

func TestRecordedWithoutRecording(t *testing.T) {
	hub := bus.NewHub()
	s, _ := hub.Open(1)
	cfg := localConfig()
	cfg.CID = 1

	n, err := New(cfg, s)
	if err != nil {
		t.Fatal(err)
	}
	if n.Recorded() != nil {
		t.Error("expected nil frames when recording is off")
	}
	if n.Config().CID != 1 {
		t.Errorf("unexpected config %+v", n.Config())
	}
}

func TestPublisherCombinesErrors(t *testing.T) {
	hub := bus.NewHub()
	s, _ := hub.Open(1)
	_ = s.Close()

	err := publisher(s, []uint32{1, 2}, clock.NewMock()).Publish(sim.Frame{})
	if !errors.Is(err, bus.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if n := len(multierr.Errors(err)); n != 2 {
		t.Errorf("expected one error per output id, got %d", n)
	}
}
