package metrics

import (
	"github.com/san-kum/posesim/internal/sim"
	"github.com/san-kum/posesim/internal/spatial"
	"gonum.org/v1/gonum/num/quat"
)

// Rotation sums the angle turned between successive orientations, in
// radians. Unlike a difference of Euler angles it does not jump at wraps.
type Rotation struct {
	last  quat.Number
	seen  bool
	total float64
}

func NewRotation() *Rotation { return &Rotation{} }

func (r *Rotation) Name() string { return "rotation" }

func (r *Rotation) Observe(f sim.Frame) {
	q := spatial.FromEulerXYZ(float64(f.Pose.Roll), float64(f.Pose.Pitch), float64(f.Pose.Yaw))
	if r.seen {
		r.total += spatial.AngleBetween(r.last, q)
	}
	r.last = q
	r.seen = true
}

func (r *Rotation) Value() float64 { return r.total }

func (r *Rotation) Reset() { *r = Rotation{} }
