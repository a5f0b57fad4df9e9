// Package sim provides the physics-simulator boundary for locomotion
// environments: a Simulator interface exposing stepping, forward
// kinematics, name-resolved state access, contact forces, and
// rendering, together with a planar rigid-body implementation built on
// Box2D.
package sim

import (
	"io"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// Simulator is the boundary between an environment and the underlying
// physics engine. Entity names are resolved to integer handles once,
// up front; all state access afterwards goes through handles.
//
// Simulators are not safe for concurrent use.
type Simulator interface {
	// Timestep returns the integration timestep in seconds
	Timestep() float64

	// Reset restores the simulation to its initial state
	Reset()

	// Forward recomputes derived quantities (body placements and
	// velocities) from the current joint state without advancing time
	Forward()

	// Step advances the simulation by one timestep, applying the
	// current control vector
	Step()

	// ActuatorNames returns the names of all actuators in control
	// vector order
	ActuatorNames() []string

	// ControlBounds returns the native lower and upper control bounds
	// in control vector order
	ControlBounds() (low, high []float64)

	// SetControl sets the control vector applied on subsequent steps.
	// Controls outside the native bounds are clamped.
	SetControl(u []float64) error

	// JointHandle resolves a joint name to a handle
	JointHandle(name string) (int, error)

	// JointPos returns the position (angle or translation) of a joint
	JointPos(handle int) float64

	// SetJointPos writes a joint position. The write takes effect on
	// body placements at the next Forward call.
	SetJointPos(handle int, value float64)

	// JointVel returns the velocity of a joint
	JointVel(handle int) float64

	// SetJointVel writes a joint velocity. The write takes effect on
	// body velocities at the next Forward call.
	SetJointVel(handle int, value float64)

	// JointLimits returns the position limits of a joint and whether
	// the joint is limited at all
	JointLimits(handle int) (r1.Interval, bool)

	// SiteHandle resolves a site name to a handle
	SiteHandle(name string) (int, error)

	// SiteRot returns the 3x3 world rotation matrix of a site
	SiteRot(handle int) *mat.Dense

	// SetSiteRot writes the world rotation of a site's owning body
	// from a 3x3 rotation matrix
	SetSiteRot(handle int, rot *mat.Dense) error

	// CollisionForce returns the constraint force currently acting
	// between two collision groups as a 6-vector; the first three
	// entries are the Cartesian force components
	CollisionForce(groupA, groupB string) ([]float64, error)

	// Render draws the current scene as a PNG frame to w
	Render(w io.Writer) error
}
