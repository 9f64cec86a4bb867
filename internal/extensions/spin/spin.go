// Package spin is a scene extension that turns entities at a constant
// angular velocity.
package spin

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/scenery/internal/core/ecs"
)

const Name = "spin"

// Extension owns one column: the angular velocity of each row in radians per
// second around the row's parent space axes. A zero velocity means the row
// does not spin.
type Extension struct {
	Velocity *ecs.Column[mgl32.Vec3]
}

func New() *Extension {
	return &Extension{Velocity: ecs.NewColumn[mgl32.Vec3]("spin.velocity")}
}

func (x *Extension) Name() string           { return Name }
func (x *Extension) Columns() []ecs.Storage { return []ecs.Storage{x.Velocity} }

// Set makes e spin at w.
func (x *Extension) Set(e ecs.EntityID, w mgl32.Vec3) {
	x.Velocity.Set(e, w)
}

// Update stages the rotation of every spinning row through the pending
// transform path.
func (x *Extension) Update(s *ecs.Scene, dt float32) {
	for i := range s.Len() {
		e := ecs.EntityID(i)
		w := x.Velocity.Get(e)
		if w == (mgl32.Vec3{}) || !s.Allocated(e) {
			continue
		}
		t := s.Transforms.Get(e)
		step := mgl32.QuatRotate(w.Len()*dt, w.Normalize())
		t.Rotation = step.Mul(t.Rotation).Normalize()
		s.SetTransform(e, t)
	}
}
