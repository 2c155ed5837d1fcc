package bus

import (
	"sync"
	"time"
)

// Hub connects in-process sessions. Sessions opened with the same cid form
// one conference.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uint16]map[*Local]struct{}
	opts     options
}

func NewHub(opts ...Option) *Hub {
	return &Hub{
		sessions: make(map[uint16]map[*Local]struct{}),
		opts:     buildOptions(opts),
	}
}

func (h *Hub) Open(cid uint16) (*Local, error) {
	if err := ValidCID(cid); err != nil {
		return nil, err
	}

	l := &Local{hub: h, cid: cid}
	h.mu.Lock()
	if h.sessions[cid] == nil {
		h.sessions[cid] = make(map[*Local]struct{})
	}
	h.sessions[cid][l] = struct{}{}
	h.mu.Unlock()
	return l, nil
}

func (h *Hub) members(cid uint16) []*Local {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Local, 0, len(h.sessions[cid]))
	for l := range h.sessions[cid] {
		out = append(out, l)
	}
	return out
}

func (h *Hub) remove(l *Local) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions[l.cid], l)
	if len(h.sessions[l.cid]) == 0 {
		delete(h.sessions, l.cid)
	}
}

// Local is an in-process Session. Send delivers synchronously on the
// caller's goroutine.
type Local struct {
	hub *Hub
	cid uint16
	triggers

	mu     sync.RWMutex
	closed bool
}

func (l *Local) DataTrigger(dataType int32, fn func(Envelope)) {
	l.add(dataType, fn)
}

func (l *Local) Send(dataType int32, payload []byte, sampleTime time.Time, senderStamp uint32) error {
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	now := l.hub.opts.clock.Now()
	e := Envelope{
		DataType:    dataType,
		Payload:     append([]byte(nil), payload...),
		Sent:        now,
		Received:    now,
		SampleTime:  sampleTime,
		SenderStamp: senderStamp,
	}
	for _, m := range l.hub.members(l.cid) {
		m.dispatch(e)
	}
	return nil
}

func (l *Local) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.hub.remove(l)
	return nil
}
