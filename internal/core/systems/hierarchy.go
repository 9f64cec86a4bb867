package systems

import (
	"encoding/binary"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/scenery/internal/core/ecs"
	"github.com/zeusync/scenery/internal/core/maths"
	"github.com/zeusync/scenery/internal/core/observability/log"
	"github.com/zeusync/scenery/internal/core/render"
	"github.com/zeusync/scenery/internal/core/systems/physics"
)

// updateTransforms is the forward sweep. Parents precede children, so a
// parent's world matrix is final before any child reads it.
func (p *Pipeline) updateTransforms() {
	s := p.scene
	phys := s.PhysicsWorld()
	n := s.Len()

	ents := s.Entities.Slice(n)
	state := s.State.Slice(n)
	parents := s.Parents.Slice(n)
	transforms := s.Transforms.Slice(n)
	offsets := s.PhysicsOffsets.Slice(n)
	local := s.LocalMatrices.Slice(n)
	world := s.WorldMatrices.Slice(n)
	handles := s.PhysicsHandles.Slice(n)

	var zero mgl32.Vec3
	for i := 0; i < n; i++ {
		if ents[i]&ecs.CmpAllocated == 0 {
			continue
		}

		if state[i]&ecs.SfSyncPhysicsTransform != 0 {
			state[i] &^= ecs.SfSyncPhysicsTransform
			ents[i] &^= ecs.CmpTransform
		}

		hasBody := ents[i]&ecs.CmpPhysics != 0 && handles[i] != physics.Invalid
		switch {
		case ents[i]&ecs.CmpTransform != 0:
			t := transforms[i]
			local[i] = t.Matrix()
			if hasBody {
				phys.SetTransform(handles[i], t.Translation.Add(offsets[i].Translation), t.Rotation)
				phys.SetVelocity(handles[i], zero, zero)
			}
			ents[i] &^= ecs.CmpTransform
		case hasBody:
			if pose, fresh := phys.Pose(handles[i]); fresh {
				pt := maths.Decompose(pose)
				t := &transforms[i]
				t.Translation = pt.Translation.Sub(offsets[i].Translation)
				t.Rotation = pt.Rotation
				local[i] = t.Matrix()
			}
		}

		if parent := parents[i]; parent == ecs.EntityID(i) {
			world[i] = local[i]
		} else {
			world[i] = world[parent].Mul4(local[i])
		}
	}
}

// updateBounds transforms every object box into world space, then expands
// each parent by its children in descending id order so the expansion
// reaches the roots.
func (p *Pipeline) updateBounds() {
	s := p.scene
	n := s.Len()

	ents := s.Entities.Slice(n)
	parents := s.Parents.Slice(n)
	world := s.WorldMatrices.Slice(n)
	bounds := s.Bounds.Slice(n)

	p.extentsMin, p.extentsMax = invertedBox()
	p.renderables = 0

	for i := 0; i < n; i++ {
		if ents[i]&ecs.CmpAllocated == 0 {
			continue
		}
		b := &bounds[i]
		if ents[i]&ecs.CmpBone != 0 {
			pos := maths.Translation(world[i])
			b.TransformedMin, b.TransformedMax = pos, pos
		} else {
			b.TransformedMin, b.TransformedMax = maths.TransformBox(b.Min, b.Max, world[i])
		}
		b.Radius = b.TransformedMax.Sub(b.TransformedMin).Len() * 0.5

		if ents[i]&ecs.CmpGeometry != 0 {
			p.extentsMin = maths.Min3(p.extentsMin, b.TransformedMin)
			p.extentsMax = maths.Max3(p.extentsMax, b.TransformedMax)
			p.renderables++
		}
	}

	pad := mgl32.Vec3{p.cfg.RigBoundsPadding, p.cfg.RigBoundsPadding, p.cfg.RigBoundsPadding}
	for i := n - 1; i > 0; i-- {
		if ents[i]&ecs.CmpAllocated == 0 {
			continue
		}
		parent := parents[i]
		if parent == ecs.EntityID(i) {
			continue
		}
		lo, hi := bounds[i].TransformedMin, bounds[i].TransformedMax
		if ents[parent]&ecs.CmpAnimController != 0 {
			lo, hi = lo.Sub(pad), hi.Add(pad)
		}
		pb := &bounds[parent]
		pb.TransformedMin = maths.Min3(pb.TransformedMin, lo)
		pb.TransformedMax = maths.Max3(pb.TransformedMax, hi)
	}
}

// updateDrawData writes the per-entity draw constants and uploads them with
// the material constants.
func (p *Pipeline) updateDrawData() {
	s := p.scene
	r := s.Renderer()
	n := s.Len()

	ents := s.Entities.Slice(n)
	world := s.WorldMatrices.Slice(n)
	draws := s.DrawCalls.Slice(n)
	cbuffers := s.Cbuffers.Slice(n)
	matBuffers := s.MaterialCbuffers.Slice(n)
	matData := s.MaterialData.Slice(n)

	for i := 0; i < n; i++ {
		if ents[i]&ecs.CmpAllocated == 0 {
			continue
		}
		if ents[i]&ecs.CmpGeometry != 0 && cbuffers[i] != render.Invalid {
			draws[i] = ecs.DrawCall{
				World:             world[i],
				WorldInvTranspose: world[i].Inv().Transpose(),
				Entity:            uint32(i),
			}
			p.upload(r, cbuffers[i], &draws[i])
		}
		if ents[i]&ecs.CmpMaterial != 0 && matBuffers[i] != render.Invalid {
			p.upload(r, matBuffers[i], &matData[i])
		}
	}
}

func (p *Pipeline) upload(r render.Renderer, h render.Handle, v any) {
	buf, err := binary.Append(p.scratch[:0], binary.LittleEndian, v)
	if err != nil {
		p.logger.Error("encode constants", log.Error(err))
		return
	}
	p.scratch = buf
	r.UpdateBuffer(h, buf)
}
