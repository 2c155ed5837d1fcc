// Package integrators advances the pose of a simulated object.
//
// [Kinematic] is a fixed-step kinematic integrator: position moves linearly
// with the latest velocity, orientation is updated by pre-multiplying an
// incremental X-Y-Z rotation built from the angular rates. There are no
// forces or masses.
//
// # Thread Safety
//
// The kinematic state is guarded by a mutex and may be replaced from any
// goroutine. The pose has a single writer: the goroutine calling Step.
package integrators
