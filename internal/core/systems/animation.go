package systems

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/scenery/internal/core/anim"
	"github.com/zeusync/scenery/internal/core/ecs"
	"github.com/zeusync/scenery/internal/core/maths"
)

// updateAnimations samples every rig and stages the results as pending TRS
// edits, which the transform sweep bakes in the same frame.
func (p *Pipeline) updateAnimations(dt float32) {
	s := p.scene
	n := s.Len()
	ents := s.Entities.Slice(n)
	ctrls := s.AnimControllers.Slice(n)

	for i := 0; i < n; i++ {
		if ents[i]&(ecs.CmpAllocated|ecs.CmpAnimController) != ecs.CmpAllocated|ecs.CmpAnimController {
			continue
		}
		ctrl := &ctrls[i]
		if ctrl.Paused || len(ctrl.Instances) == 0 {
			continue
		}
		p.animate(ecs.EntityID(i), ctrl, dt)
	}
}

func (p *Pipeline) animate(e ecs.EntityID, ctrl *ecs.AnimController, dt float32) {
	s := p.scene
	rest := s.RestJoints(ctrl)

	for _, in := range ctrl.Instances {
		if in != nil {
			in.Advance(dt)
		}
	}

	a := instance(ctrl, ctrl.BlendA)
	if a == nil {
		return
	}
	a.Evaluate(rest, ctrl.Trajectory)
	joints, delta := a.Joints, a.RootDelta

	if b := instance(ctrl, ctrl.BlendB); b != nil && b != a && ctrl.Ratio > 0 {
		b.Evaluate(rest, ctrl.Trajectory)
		joints = blend(joints, b.Joints, ctrl.Ratio)
		delta = maths.Lerp3(delta, b.RootDelta, ctrl.Ratio)
	}

	ents := s.Entities.Slice(s.Len())
	transforms := s.Transforms.Slice(s.Len())
	for j, je := range ctrl.Joints {
		if j == ctrl.Trajectory {
			continue
		}
		transforms[je] = joints[j]
		ents[je] |= ecs.CmpTransform
	}

	if ctrl.Trajectory < 0 || delta == (mgl32.Vec3{}) {
		return
	}
	// the trajectory joint stays at rest; its motion moves the controller
	rot := s.InitialTransforms.Get(ctrl.Joints[ctrl.Trajectory]).Rotation
	t := &transforms[e]
	t.Translation = t.Translation.Add(rot.Rotate(delta))
	ents[e] |= ecs.CmpTransform
}

func instance(ctrl *ecs.AnimController, i int) *anim.Instance {
	if i < 0 || i >= len(ctrl.Instances) {
		return nil
	}
	return ctrl.Instances[i]
}

func blend(a, b []maths.Transform, ratio float32) []maths.Transform {
	out := make([]maths.Transform, len(a))
	for j := range a {
		out[j] = maths.Transform{
			Translation: maths.Lerp3(a[j].Translation, b[j].Translation, ratio),
			Rotation:    maths.Slerp(a[j].Rotation, b[j].Rotation, ratio),
			Scale:       maths.Lerp3(a[j].Scale, b[j].Scale, ratio),
		}
	}
	return out
}
