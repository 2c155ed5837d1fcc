// Package dynamo defines the value types shared by the pose simulator.
//
//   - [Pose]: 6-DOF position and orientation of one rigid body
//   - [KinematicState]: linear velocity and angular rates, last write wins
//
// Both are plain values stored in single precision. Orientation angles follow
// a fixed convention: roll about X, then pitch about Y, then yaw about Z,
// composed as Rx·Ry·Rz.
//
// # Example
//
//	obj := integrators.NewKinematic(dynamo.Pose{})
//	obj.SetKinematicState(dynamo.KinematicState{Vx: 1})
//	pose := obj.Step(0.1) // [x=0.1, ...]
package dynamo
