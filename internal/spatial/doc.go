// Package spatial holds the rotation algebra used by the integrator.
//
// Orientations are unit quaternions ([quat.Number] from gonum). Euler angles
// always follow the X-Y-Z convention: a rotation is Rx(roll)·Ry(pitch)·Rz(yaw),
// built with [FromEulerXYZ] and decomposed with [ToEulerXYZ]. Incremental
// rotations are pre-multiplied with [Compose], so they act in the world frame.
package spatial
