package metrics

import (
	"github.com/golang/geo/r3"
	"github.com/san-kum/posesim/internal/dynamo"
	"github.com/san-kum/posesim/internal/sim"
)

func position(p dynamo.Pose) r3.Vector {
	return r3.Vector{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)}
}

// PathLength is the distance travelled along the trajectory.
type PathLength struct {
	last   r3.Vector
	seen   bool
	length float64
}

func NewPathLength() *PathLength { return &PathLength{} }

func (p *PathLength) Name() string { return "path_length" }

func (p *PathLength) Observe(f sim.Frame) {
	pos := position(f.Pose)
	if p.seen {
		p.length += pos.Sub(p.last).Norm()
	}
	p.last = pos
	p.seen = true
}

func (p *PathLength) Value() float64 { return p.length }

func (p *PathLength) Reset() { *p = PathLength{} }

// Displacement is the straight-line distance from the first to the last
// observed position.
type Displacement struct {
	first, last r3.Vector
	seen        bool
}

func NewDisplacement() *Displacement { return &Displacement{} }

func (d *Displacement) Name() string { return "displacement" }

func (d *Displacement) Observe(f sim.Frame) {
	pos := position(f.Pose)
	if !d.seen {
		d.first = pos
		d.seen = true
	}
	d.last = pos
}

func (d *Displacement) Value() float64 { return d.last.Sub(d.first).Norm() }

func (d *Displacement) Reset() { *d = Displacement{} }

// MeanSpeed averages the linear speed of the applied kinematic states. The
// initial frame carries no applied state and is skipped.
type MeanSpeed struct {
	samples int
	total   float64
}

func NewMeanSpeed() *MeanSpeed { return &MeanSpeed{} }

func (m *MeanSpeed) Name() string { return "mean_speed" }

func (m *MeanSpeed) Observe(f sim.Frame) {
	if f.Step == 0 {
		return
	}
	m.total += f.State.Speed()
	m.samples++
}

func (m *MeanSpeed) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.total / float64(m.samples)
}

func (m *MeanSpeed) Reset() { *m = MeanSpeed{} }

// Standard returns a fresh set of the trajectory metrics.
func Standard() []sim.Metric {
	return []sim.Metric{NewPathLength(), NewDisplacement(), NewRotation(), NewMeanSpeed()}
}
