// Package physics defines the physics capability used by the scene and an
// in-process simulator implementing it.
//
// Poses written with SetTransform and SetVelocity are queued and only take
// effect on the next Step, so the scene observes physics with one frame of
// latency.
package physics

import "github.com/go-gl/mathgl/mgl32"

// Handle identifies a rigid body or constraint. Zero is never valid.
type Handle uint32

const Invalid Handle = 0

type Shape uint32

const (
	ShapeNone Shape = iota
	ShapeBox
	ShapeSphere
	ShapeCapsule
	ShapeCylinder
	ShapeCone
	ShapeCompound
)

type ConstraintKind uint32

const (
	ConstraintNone ConstraintKind = iota
	ConstraintBall
	ConstraintHinge
	ConstraintSixDOF
)

// RigidBodyParams describes a body. Zero mass makes the body static.
type RigidBodyParams struct {
	Shape      Shape
	Mass       float32
	Dimensions mgl32.Vec3
	Position   mgl32.Vec3
	Rotation   mgl32.Quat
	Group      uint32
	Mask       uint32
}

// ConstraintParams joins Body (and optionally Other) at Pivot.
type ConstraintParams struct {
	Kind       ConstraintKind
	Body       Handle
	Other      Handle
	Pivot      mgl32.Vec3
	Axis       mgl32.Vec3
	LowerLimit mgl32.Vec3
	UpperLimit mgl32.Vec3
}

// Physics is the narrow physics capability the scene depends on.
type Physics interface {
	AddRigidBody(p RigidBodyParams) Handle
	AddConstraint(p ConstraintParams) Handle
	SetTransform(h Handle, position mgl32.Vec3, rotation mgl32.Quat)
	SetVelocity(h Handle, linear, angular mgl32.Vec3)
	// Pose returns the body's world matrix from the last Step. The boolean is
	// false until the body has been stepped at least once.
	Pose(h Handle) (mgl32.Mat4, bool)
	Release(h Handle)
	Step(dt float32)
}
