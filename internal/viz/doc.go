// Package viz drives the integrator interactively in the terminal.
//
// [Model] is a Bubble Tea program: key presses replace the kinematic state
// and a fixed-rate tick steps the integrator, plotting a Braille top-down
// trail of the position ([Plane]).
//
// # Key Bindings
//
//	w/s   - forward velocity up/down
//	a/d   - yaw rate left/right
//	r/f   - vertical velocity up/down
//	Space - zero the kinematic state
//	p     - pause/resume stepping
//	c     - clear the trail
//	q     - quit
package viz
