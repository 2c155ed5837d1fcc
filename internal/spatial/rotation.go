package spatial

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// gimbalEpsilon bounds cos(pitch) below which roll and yaw are coupled.
const gimbalEpsilon = 1e-9

var (
	UnitX = r3.Vector{X: 1}
	UnitY = r3.Vector{Y: 1}
	UnitZ = r3.Vector{Z: 1}
)

// Identity is the rotation that does nothing.
var Identity = quat.Number{Real: 1}

// AxisAngle returns the unit quaternion rotating theta radians about axis.
// A zero axis yields the identity.
func AxisAngle(axis r3.Vector, theta float64) quat.Number {
	n := axis.Norm()
	if n == 0 {
		return Identity
	}
	axis = axis.Mul(1 / n)
	s, c := math.Sincos(theta / 2)
	return quat.Number{Real: c, Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}
}

// FromEulerXYZ builds Rx(roll)·Ry(pitch)·Rz(yaw) as a quaternion. The same
// order is undone by ToEulerXYZ.
func FromEulerXYZ(roll, pitch, yaw float64) quat.Number {
	qx := AxisAngle(UnitX, roll)
	qy := AxisAngle(UnitY, pitch)
	qz := AxisAngle(UnitZ, yaw)
	return quat.Mul(quat.Mul(qx, qy), qz)
}

// ToEulerXYZ decomposes q into the angles of Rx(roll)·Ry(pitch)·Rz(yaw).
// Pitch lands in [-π/2, π/2], roll and yaw in [-π, π]. At gimbal lock yaw is
// pinned to zero and the whole coupled angle goes to roll.
func ToEulerXYZ(q quat.Number) (roll, pitch, yaw float64) {
	q = Normalize(q)
	m := RotationMatrix(q)

	// Adding +0 turns -0 into +0: an unrotated pose reads as zeros.
	pitch = math.Asin(clamp(m[0][2], -1, 1)) + 0
	if math.Hypot(m[1][2], m[2][2]) < gimbalEpsilon {
		return math.Atan2(m[2][1], m[1][1]) + 0, pitch, 0
	}
	roll = math.Atan2(-m[1][2], m[2][2]) + 0
	yaw = math.Atan2(-m[0][1], m[0][0]) + 0
	return roll, pitch, yaw
}

// Compose applies delta on top of q in the world frame: delta ⊗ q.
func Compose(delta, q quat.Number) quat.Number {
	return quat.Mul(delta, q)
}

// Normalize scales q to unit length. The zero quaternion maps to Identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// RotationMatrix returns the row-major rotation matrix of a unit quaternion.
func RotationMatrix(q quat.Number) [3][3]float64 {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// AngleBetween is the magnitude of the rotation taking a to b, in [0, π].
func AngleBetween(a, b quat.Number) float64 {
	d := Normalize(quat.Mul(b, quat.Conj(Normalize(a))))
	v := math.Sqrt(d.Imag*d.Imag + d.Jmag*d.Jmag + d.Kmag*d.Kmag)
	return 2 * math.Atan2(v, math.Abs(d.Real))
}

// Integrate advances pos by vel over dt.
func Integrate(pos, vel r3.Vector, dt float64) r3.Vector {
	return pos.Add(vel.Mul(dt))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
