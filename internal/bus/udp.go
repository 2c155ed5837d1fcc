package bus

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
)

// Port is the UDP port shared by every multicast conference.
const Port = 12175

const (
	readBufferSize = 1 << 20
	maxDatagram    = 64 * 1024

	// maxReadFailures consecutive read errors stop the receive goroutine.
	maxReadFailures = 10
	minReadBackoff  = time.Millisecond
	maxReadBackoff  = 100 * time.Millisecond
)

// GroupAddr returns the multicast group for conference cid.
func GroupAddr(cid uint16) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(225, 0, 0, byte(cid)), Port: Port}
}

// packetConn is the receive half of a UDP session.
type packetConn interface {
	ReadFromUDP(b []byte) (int, *net.UDPAddr, error)
	Close() error
}

// UDP is a Session over IPv4 multicast. One goroutine reads the group and
// dispatches to the registered triggers until Close.
type UDP struct {
	cid uint16
	triggers

	recv packetConn
	send io.WriteCloser
	opts options

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// DialUDP joins the multicast group of conference cid.
func DialUDP(cid uint16, opts ...Option) (*UDP, error) {
	if err := ValidCID(cid); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	group := GroupAddr(cid)

	recv, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		return nil, fmt.Errorf("joining %s: %w", group, err)
	}
	if err := recv.SetReadBuffer(readBufferSize); err != nil {
		o.logger.Warnw("failed to set receive buffer", "bytes", readBufferSize, "error", err)
	}

	send, err := net.DialUDP("udp4", nil, group)
	if err != nil {
		recv.Close()
		return nil, fmt.Errorf("dialing %s: %w", group, err)
	}

	o.logger.Infow("joined conference", "cid", cid, "group", group.String())
	return newUDP(cid, recv, send, o), nil
}

func newUDP(cid uint16, recv packetConn, send io.WriteCloser, o options) *UDP {
	u := &UDP{
		cid:  cid,
		recv: recv,
		send: send,
		opts: o,
		done: make(chan struct{}),
	}
	go u.readLoop()
	return u
}

func (u *UDP) readLoop() {
	defer close(u.done)

	buf := make([]byte, maxDatagram)
	failures := 0
	backoff := minReadBackoff
	for {
		n, addr, err := u.recv.ReadFromUDP(buf)
		if err != nil {
			if u.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			failures++
			if failures >= maxReadFailures {
				u.opts.logger.Errorw("udp receive stopped", "cid", u.cid, "failures", failures, "error", err)
				return
			}
			u.opts.logger.Warnw("udp read failed", "error", err, "retry_in", backoff)
			u.opts.clock.Sleep(backoff)
			backoff = min(2*backoff, maxReadBackoff)
			continue
		}
		failures = 0
		backoff = minReadBackoff

		e, err := UnmarshalEnvelope(buf[:n])
		if err != nil {
			u.opts.logger.Debugw("dropping malformed packet", "from", addr, "error", err)
			continue
		}
		e.Received = u.opts.clock.Now()
		u.dispatch(e)
	}
}

func (u *UDP) DataTrigger(dataType int32, fn func(Envelope)) {
	u.add(dataType, fn)
}

func (u *UDP) Send(dataType int32, payload []byte, sampleTime time.Time, senderStamp uint32) error {
	if u.closed.Load() {
		return ErrClosed
	}
	pkt, err := MarshalEnvelope(Envelope{
		DataType:    dataType,
		Payload:     payload,
		Sent:        u.opts.clock.Now(),
		SampleTime:  sampleTime,
		SenderStamp: senderStamp,
	})
	if err != nil {
		return err
	}
	if _, err := u.send.Write(pkt); err != nil {
		return fmt.Errorf("sending to conference %d: %w", u.cid, err)
	}
	return nil
}

// Close leaves the group and waits for the read goroutine to exit. It is
// safe to call more than once.
func (u *UDP) Close() error {
	u.closeOnce.Do(func() {
		u.closed.Store(true)
		u.closeErr = multierr.Combine(u.recv.Close(), u.send.Close())
		<-u.done
	})
	return u.closeErr
}
