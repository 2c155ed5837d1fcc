package integrators

import (
	"sync"

	"github.com/golang/geo/r3"
	"github.com/san-kum/posesim/internal/dynamo"
	"github.com/san-kum/posesim/internal/spatial"
)

// Kinematic integrates the pose of one rigid body from its latest kinematic
// state. SetKinematicState may be called from any goroutine; Step, Pose and
// Reset belong to the single ticking goroutine.
type Kinematic struct {
	pose dynamo.Pose

	mu    sync.Mutex
	state dynamo.KinematicState
}

func NewKinematic(initial dynamo.Pose) *Kinematic {
	return &Kinematic{pose: initial}
}

// SetKinematicState replaces the stored kinematic state as a whole.
func (k *Kinematic) SetKinematicState(state dynamo.KinematicState) {
	k.mu.Lock()
	k.state = state
	k.mu.Unlock()
}

// KinematicState returns a copy of the stored kinematic state.
func (k *Kinematic) KinematicState() dynamo.KinematicState {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

func (k *Kinematic) Pose() dynamo.Pose { return k.pose }

// Reset puts the object back at p and clears the kinematic state.
func (k *Kinematic) Reset(p dynamo.Pose) {
	k.pose = p
	k.SetKinematicState(dynamo.KinematicState{})
}

// Step advances the pose by dt seconds and returns the new pose, which is
// also the stored one. The incremental rotation is applied in the world
// frame. dt is expected to be positive; zero leaves the pose unchanged.
func (k *Kinematic) Step(dt float64) dynamo.Pose {
	p, _ := k.Advance(dt)
	return p
}

// Advance is Step that also reports the kinematic state the step used.
func (k *Kinematic) Advance(dt float64) (dynamo.Pose, dynamo.KinematicState) {
	ks := k.KinematicState()
	p := k.pose

	deltaQ := spatial.FromEulerXYZ(
		float64(ks.RollRate)*dt,
		float64(ks.PitchRate)*dt,
		float64(ks.YawRate)*dt,
	)
	q := spatial.FromEulerXYZ(float64(p.Roll), float64(p.Pitch), float64(p.Yaw))
	roll, pitch, yaw := spatial.ToEulerXYZ(spatial.Compose(deltaQ, q))

	pos := spatial.Integrate(
		r3.Vector{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)},
		r3.Vector{X: float64(ks.Vx), Y: float64(ks.Vy), Z: float64(ks.Vz)},
		dt,
	)

	k.pose = dynamo.Pose{
		X:     float32(pos.X),
		Y:     float32(pos.Y),
		Z:     float32(pos.Z),
		Roll:  float32(roll),
		Pitch: float32(pitch),
		Yaw:   float32(yaw),
	}
	return k.pose, ks
}
