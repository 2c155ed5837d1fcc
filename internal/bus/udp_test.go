package bus

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/san-kum/posesim/internal/dynamo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// loopback stands in for a multicast group: every write comes back on read.
type loopback struct {
	pkts   chan []byte
	closed chan struct{}
	once   sync.Once
}

func newLoopback() *loopback {
	return &loopback{pkts: make(chan []byte, 16), closed: make(chan struct{})}
}

func (l *loopback) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	select {
	case p := <-l.pkts:
		return copy(b, p), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: Port}, nil
	case <-l.closed:
		return 0, nil, net.ErrClosed
	}
}

func (l *loopback) Write(p []byte) (int, error) {
	select {
	case <-l.closed:
		return 0, net.ErrClosed
	default:
	}
	l.pkts <- append([]byte(nil), p...)
	return len(p), nil
}

func (l *loopback) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func TestGroupAddr(t *testing.T) {
	if got := GroupAddr(111).String(); got != "225.0.0.111:12175" {
		t.Errorf("got %s", got)
	}
}

func TestDialUDPRejectsInvalidCID(t *testing.T) {
	if _, err := DialUDP(0); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expected ErrInvalidSession, got %v", err)
	}
	if _, err := DialUDP(255); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expected ErrInvalidSession, got %v", err)
	}
}

func TestUDPSendReceive(t *testing.T) {
	lb := newLoopback()
	u := newUDP(111, lb, lb, buildOptions(nil))
	defer u.Close()

	got := make(chan dynamo.KinematicState, 1)
	OnKinematicState(u, 42, func(ks dynamo.KinematicState) { got <- ks })

	want := dynamo.KinematicState{Vx: 1, PitchRate: -0.5}
	if err := SendKinematicState(u, dynamo.KinematicState{Vx: 9}, time.Now(), 41); err != nil {
		t.Fatal(err)
	}
	if err := SendKinematicState(u, want, time.Now(), 42); err != nil {
		t.Fatal(err)
	}

	select {
	case ks := <-got:
		if ks != want {
			t.Errorf("got %v, want %v", ks, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no state delivered")
	}
}

func TestUDPDropsMalformedPackets(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	lb := newLoopback()
	u := newUDP(111, lb, lb, buildOptions([]Option{WithLogger(zap.New(core).Sugar())}))
	defer u.Close()

	got := make(chan Envelope, 1)
	u.DataTrigger(FrameID, func(e Envelope) { got <- e })

	lb.pkts <- []byte{0xFF, 0xFF, 0, 0, 0}
	if err := SendFrame(u, dynamo.Pose{Roll: 1}, time.Now(), 0); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-got:
		if e.Received.IsZero() {
			t.Error("expected received time to be stamped")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("valid packet after a malformed one was not delivered")
	}
	if logs.FilterMessage("dropping malformed packet").Len() != 1 {
		t.Errorf("expected the malformed packet to be logged, got %v", logs.All())
	}
}

func TestUDPCloseIsIdempotent(t *testing.T) {
	lb := newLoopback()
	u := newUDP(111, lb, lb, buildOptions(nil))

	if err := u.Close(); err != nil {
		t.Fatal(err)
	}
	if err := u.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	select {
	case <-u.done:
	default:
		t.Error("read loop still running after close")
	}
	if err := u.Send(FrameID, nil, time.Now(), 0); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

// brokenConn fails every read until closed.
type brokenConn struct {
	reads  atomic.Int32
	closed chan struct{}
	once   sync.Once
}

func (b *brokenConn) ReadFromUDP([]byte) (int, *net.UDPAddr, error) {
	select {
	case <-b.closed:
		return 0, nil, net.ErrClosed
	default:
	}
	b.reads.Add(1)
	return 0, nil, errors.New("network is unreachable")
}

func (b *brokenConn) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func TestUDPStopsAfterRepeatedReadFailures(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	conn := &brokenConn{closed: make(chan struct{})}
	u := newUDP(111, conn, newLoopback(), buildOptions([]Option{WithLogger(zap.New(core).Sugar())}))

	select {
	case <-u.done:
	case <-time.After(5 * time.Second):
		t.Fatal("read loop kept spinning on a failing socket")
	}

	if got := conn.reads.Load(); got != maxReadFailures {
		t.Errorf("expected %d reads, got %d", maxReadFailures, got)
	}
	if n := logs.FilterMessage("udp read failed").Len(); n != maxReadFailures-1 {
		t.Errorf("expected %d retry warnings, got %d", maxReadFailures-1, n)
	}
	if logs.FilterMessage("udp receive stopped").Len() != 1 {
		t.Error("expected the receive loop to log that it stopped")
	}
	if err := u.Close(); err != nil {
		t.Errorf("close after stop: %v", err)
	}
}
