package storage

import (
	"sync"

	"github.com/san-kum/posesim/internal/sim"
)

// Recorder buffers frames in memory. It can be attached as an Observer to a
// Simulator or as a Sink to a Realtime loop.
type Recorder struct {
	mu     sync.Mutex
	frames []sim.Frame
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) OnFrame(f sim.Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
}

func (r *Recorder) Publish(f sim.Frame) error {
	r.OnFrame(f)
	return nil
}

// Frames returns a copy of everything recorded so far.
func (r *Recorder) Frames() []sim.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sim.Frame(nil), r.frames...)
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.frames = nil
	r.mu.Unlock()
}
