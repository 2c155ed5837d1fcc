package bus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/san-kum/posesim/internal/dynamo"
	"go.uber.org/zap"
)

var (
	ErrInvalidSession = errors.New("bus: invalid session id")
	ErrClosed         = errors.New("bus: session closed")
)

// Session is a conference on the message bus. Every participant sees every
// envelope sent on it, its own included.
type Session interface {
	// DataTrigger registers fn for envelopes of dataType. Callbacks run on
	// the session's delivery goroutine and must not block.
	DataTrigger(dataType int32, fn func(Envelope))
	Send(dataType int32, payload []byte, sampleTime time.Time, senderStamp uint32) error
	Close() error
}

type Option func(*options)

type options struct {
	clock  clock.Clock
	logger *zap.SugaredLogger
}

func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{clock: clock.New(), logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// triggers is the per-session callback table.
type triggers struct {
	mu  sync.RWMutex
	fns map[int32][]func(Envelope)
}

func (t *triggers) add(dataType int32, fn func(Envelope)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fns == nil {
		t.fns = make(map[int32][]func(Envelope))
	}
	t.fns[dataType] = append(t.fns[dataType], fn)
}

func (t *triggers) dispatch(e Envelope) {
	t.mu.RLock()
	fns := t.fns[e.DataType]
	t.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}

// ValidCID reports whether cid can address a session.
func ValidCID(cid uint16) error {
	if cid < 1 || cid > 254 {
		return fmt.Errorf("%w: %d (want 1..254)", ErrInvalidSession, cid)
	}
	return nil
}

func SendKinematicState(s Session, ks dynamo.KinematicState, sampleTime time.Time, senderStamp uint32) error {
	return s.Send(KinematicStateID, MarshalKinematicState(ks), sampleTime, senderStamp)
}

func SendFrame(s Session, p dynamo.Pose, sampleTime time.Time, senderStamp uint32) error {
	return s.Send(FrameID, MarshalFrame(p), sampleTime, senderStamp)
}

// OnKinematicState delivers decoded kinematic states sent with senderStamp.
// Envelopes from other senders and malformed payloads are dropped.
func OnKinematicState(s Session, senderStamp uint32, fn func(dynamo.KinematicState)) {
	s.DataTrigger(KinematicStateID, func(e Envelope) {
		if e.SenderStamp != senderStamp {
			return
		}
		ks, err := UnmarshalKinematicState(e.Payload)
		if err != nil {
			return
		}
		fn(ks)
	})
}

// OnFrame delivers decoded poses sent with senderStamp.
func OnFrame(s Session, senderStamp uint32, fn func(dynamo.Pose, time.Time)) {
	s.DataTrigger(FrameID, func(e Envelope) {
		if e.SenderStamp != senderStamp {
			return
		}
		p, err := UnmarshalFrame(e.Payload)
		if err != nil {
			return
		}
		fn(p, e.SampleTime)
	})
}
