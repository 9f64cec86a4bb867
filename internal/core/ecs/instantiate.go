package ecs

import (
	"encoding/binary"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/scenery/internal/core/anim"
	"github.com/zeusync/scenery/internal/core/maths"
	"github.com/zeusync/scenery/internal/core/observability/log"
	"github.com/zeusync/scenery/internal/core/render"
	"github.com/zeusync/scenery/internal/core/systems/physics"
)

var (
	drawCallSize     = binary.Size(DrawCall{})
	materialDataSize = binary.Size(MaterialData{})
)

// instantiateOwned recreates every owned handle the row's components call for.
func (s *Scene) instantiateOwned(e EntityID) {
	if s.Has(e, CmpGeometry) {
		s.InstantiateModelCbuffer(e)
	}
	if s.Has(e, CmpMaterial) {
		s.InstantiateMaterialCbuffer(e)
	}
	switch {
	case s.Has(e, CmpConstraint):
		s.InstantiateConstraint(e)
	case s.Has(e, CmpPhysics):
		s.InstantiateRigidBody(e)
	}
}

// InstantiateOwned is instantiateOwned for rows restored from a file or
// history snapshot whose handles belong to another session.
func (s *Scene) InstantiateOwned(e EntityID) {
	s.PhysicsHandles.data[e] = physics.Invalid
	s.Cbuffers.data[e] = render.Invalid
	s.MaterialCbuffers.data[e] = render.Invalid
	s.instantiateOwned(e)
}

// InstantiateModelCbuffer creates the per-draw constant buffer of e.
func (s *Scene) InstantiateModelCbuffer(e EntityID) {
	if s.Cbuffers.data[e] != render.Invalid {
		return
	}
	s.Cbuffers.data[e] = s.renderer.CreateBuffer(render.BufferDesc{Kind: render.BufferConstant, Size: drawCallSize})
}

// InstantiateMaterialCbuffer creates the material constant buffer of e.
func (s *Scene) InstantiateMaterialCbuffer(e EntityID) {
	if s.MaterialCbuffers.data[e] != render.Invalid {
		return
	}
	m := &s.Materials.data[e]
	if m.DataSize == 0 {
		m.DataSize = uint32(materialDataSize)
	}
	s.MaterialCbuffers.data[e] = s.renderer.CreateBuffer(render.BufferDesc{Kind: render.BufferConstant, Size: int(m.DataSize)})
}

// InstantiateRigidBody adds a body for e at its current world placement.
func (s *Scene) InstantiateRigidBody(e EntityID) {
	if h := s.PhysicsHandles.data[e]; h != physics.Invalid {
		s.physics.Release(h)
	}
	params := s.Physics.data[e].Body
	world := maths.Decompose(s.WorldMatrices.data[e])
	params.Position = world.Translation.Add(s.PhysicsOffsets.data[e].Translation)
	params.Rotation = world.Rotation
	s.PhysicsHandles.data[e] = s.physics.AddRigidBody(params)
	s.Entities.data[e] |= CmpPhysics
}

// InstantiateConstraint joins the bodies referenced by e's constraint
// descriptor. Missing bodies leave the constraint uninstantiated.
func (s *Scene) InstantiateConstraint(e EntityID) {
	desc := s.Physics.data[e].Constraint
	if desc.Entity == NoEntity || !s.Has(desc.Entity, CmpPhysics) {
		s.logger.Warn("constraint body missing", log.Uint32("entity", uint32(e)))
		return
	}
	params := physics.ConstraintParams{
		Kind:       desc.Kind,
		Body:       s.PhysicsHandles.data[desc.Entity],
		Pivot:      desc.Pivot,
		Axis:       desc.Axis,
		LowerLimit: desc.LowerLimit,
		UpperLimit: desc.UpperLimit,
	}
	if desc.Other != NoEntity && s.Has(desc.Other, CmpPhysics) {
		params.Other = s.PhysicsHandles.data[desc.Other]
	}
	if h := s.PhysicsHandles.data[e]; h != physics.Invalid {
		s.physics.Release(h)
	}
	s.PhysicsHandles.data[e] = s.physics.AddConstraint(params)
	s.Entities.data[e] |= CmpConstraint
}

// SetGeometry binds shared geometry to e with its object space bounds.
func (s *Scene) SetGeometry(e EntityID, g Geometry, lo, hi mgl32.Vec3) {
	s.Geometries.data[e] = g
	b := &s.Bounds.data[e]
	b.Min, b.Max = lo, hi
	s.Entities.data[e] |= CmpGeometry
	s.InstantiateModelCbuffer(e)
}

// SetMaterial binds a material and creates its constant buffer.
func (s *Scene) SetMaterial(e EntityID, m Material, data MaterialData) {
	s.Materials.data[e] = m
	s.MaterialData.data[e] = data
	s.Entities.data[e] |= CmpMaterial
	s.InstantiateMaterialCbuffer(e)
}

// SetLight makes e a light.
func (s *Scene) SetLight(e EntityID, l Light) {
	s.Lights.data[e] = l
	s.Entities.data[e] |= CmpLight | CmpTransform
}

// SetRigidBody stores a body descriptor on e and instantiates it.
func (s *Scene) SetRigidBody(e EntityID, params physics.RigidBodyParams) {
	s.Physics.data[e].Body = params
	s.InstantiateRigidBody(e)
}

// SetConstraint stores a constraint descriptor on e and instantiates it.
func (s *Scene) SetConstraint(e EntityID, desc ConstraintDesc) {
	s.Physics.data[e].Constraint = desc
	s.InstantiateConstraint(e)
}

// AddAnimController makes e the controller of the rig below it. Joints are
// the CmpBone and CmpAnimTrajectory entities of its subtree in id order.
func (s *Scene) AddAnimController(e EntityID) error {
	ctrl := AnimController{Trajectory: -1}
	for _, j := range s.Subtree(e) {
		if s.Entities.data[j]&(CmpBone|CmpAnimTrajectory) == 0 {
			continue
		}
		if s.Entities.data[j]&CmpAnimTrajectory != 0 {
			ctrl.Trajectory = len(ctrl.Joints)
		}
		ctrl.Joints = append(ctrl.Joints, j)
	}
	if len(ctrl.Joints) == 0 {
		return ErrNoJoints
	}
	s.AnimControllers.data[e] = ctrl
	s.Entities.data[e] |= CmpAnimController
	return nil
}

// BindClip adds an instance of clip to the controller e and returns its index.
func (s *Scene) BindClip(e EntityID, clip *anim.Clip) int {
	ctrl := s.AnimController(e)
	names := make([]string, len(ctrl.Joints))
	rest := make([]maths.Transform, len(ctrl.Joints))
	for i, j := range ctrl.Joints {
		names[i] = s.Names.data[j]
		rest[i] = s.InitialTransforms.data[j]
	}
	in := anim.Bind(clip, names, rest)
	ctrl.Instances = append(ctrl.Instances, in)
	s.logger.Debug("clip bound",
		log.String("clip", clip.Name),
		log.Uint32("controller", uint32(e)),
		log.Int("channels", len(clip.Channels)),
		log.Int("bound", in.Bound()),
	)
	return len(ctrl.Instances) - 1
}

// RestJoints returns the rest transforms of a controller's joints.
func (s *Scene) RestJoints(ctrl *AnimController) []maths.Transform {
	rest := make([]maths.Transform, len(ctrl.Joints))
	for i, j := range ctrl.Joints {
		rest[i] = s.InitialTransforms.data[j]
	}
	return rest
}
