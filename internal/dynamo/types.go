package dynamo

import (
	"fmt"
	"math"
)

// Pose is the position (meters) and orientation (radians) of the simulated
// object. Orientation is the composition Rx(Roll)·Ry(Pitch)·Rz(Yaw).
type Pose struct {
	X     float32 `json:"x" yaml:"x"`
	Y     float32 `json:"y" yaml:"y"`
	Z     float32 `json:"z" yaml:"z"`
	Roll  float32 `json:"roll" yaml:"roll"`
	Pitch float32 `json:"pitch" yaml:"pitch"`
	Yaw   float32 `json:"yaw" yaml:"yaw"`
}

// Sum adds all six fields. Handy as a cheap zero check.
func (p Pose) Sum() float64 {
	return float64(p.X) + float64(p.Y) + float64(p.Z) +
		float64(p.Roll) + float64(p.Pitch) + float64(p.Yaw)
}

func (p Pose) IsFinite() bool {
	return finite(p.X, p.Y, p.Z, p.Roll, p.Pitch, p.Yaw)
}

func (p Pose) String() string {
	return fmt.Sprintf("[x=%g, y=%g, z=%g] with the rotation [roll=%g, pitch=%g, yaw=%g]",
		p.X, p.Y, p.Z, p.Roll, p.Pitch, p.Yaw)
}

// KinematicState is the most recently known linear velocity (m/s) and
// angular rate (rad/s) of the object.
type KinematicState struct {
	Vx        float32 `json:"vx" yaml:"vx"`
	Vy        float32 `json:"vy" yaml:"vy"`
	Vz        float32 `json:"vz" yaml:"vz"`
	RollRate  float32 `json:"roll_rate" yaml:"roll_rate"`
	PitchRate float32 `json:"pitch_rate" yaml:"pitch_rate"`
	YawRate   float32 `json:"yaw_rate" yaml:"yaw_rate"`
}

func (k KinematicState) Sum() float64 {
	return float64(k.Vx) + float64(k.Vy) + float64(k.Vz) +
		float64(k.RollRate) + float64(k.PitchRate) + float64(k.YawRate)
}

func (k KinematicState) IsFinite() bool {
	return finite(k.Vx, k.Vy, k.Vz, k.RollRate, k.PitchRate, k.YawRate)
}

// Speed is the magnitude of the linear velocity.
func (k KinematicState) Speed() float64 {
	vx, vy, vz := float64(k.Vx), float64(k.Vy), float64(k.Vz)
	return math.Sqrt(vx*vx + vy*vy + vz*vz)
}

func (k KinematicState) String() string {
	return fmt.Sprintf("[vx=%g, vy=%g, vz=%g] with the rates [roll=%g, pitch=%g, yaw=%g]",
		k.Vx, k.Vy, k.Vz, k.RollRate, k.PitchRate, k.YawRate)
}

func finite(vals ...float32) bool {
	for _, v := range vals {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
