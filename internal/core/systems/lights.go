package systems

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/scenery/internal/core/ecs"
	"github.com/zeusync/scenery/internal/core/maths"
	"github.com/zeusync/scenery/internal/core/observability/log"
	"github.com/zeusync/scenery/internal/core/render"
)

// directionalDistance places directional lights far along their direction.
const directionalDistance = 1e6

// shadowSlotSize is the byte size of one shadow map slot record.
const shadowSlotSize = 64 * 4

// PackedLight is the record uploaded to the light buffer.
type PackedLight struct {
	Kind       ecs.LightKind
	Entity     uint32
	Position   mgl32.Vec3
	Direction  mgl32.Vec3
	Colour     mgl32.Vec3
	Radius     float32
	Range      float32
	Cutoff     float32
	Falloff    float32
	ShadowSlot int32
	Corners    [4]mgl32.Vec3
}

// LightSet holds the packed lights of one frame, per kind.
type LightSet struct {
	Directional []PackedLight
	Point       []PackedLight
	Spot        []PackedLight
	Area        []PackedLight
	Stats       LightStats
}

func (l *LightSet) reset() {
	l.Directional = l.Directional[:0]
	l.Point = l.Point[:0]
	l.Spot = l.Spot[:0]
	l.Area = l.Area[:0]
	l.Stats = LightStats{}
}

// add appends pl to list unless the list is at its cap, in which case the
// light is dropped and counted.
func (l *LightSet) add(list *[]PackedLight, limit int, pl PackedLight) bool {
	if len(*list) >= limit {
		l.Stats.Dropped++
		return false
	}
	*list = append(*list, pl)
	return true
}

var areaCorners = [4]mgl32.Vec3{{-1, 0, -1}, {1, 0, -1}, {1, 0, 1}, {-1, 0, 1}}

func (p *Pipeline) updateLights() {
	s := p.scene
	n := s.Len()

	ents := s.Entities.Slice(n)
	lights := s.Lights.Slice(n)
	world := s.WorldMatrices.Slice(n)
	bounds := s.Bounds.Slice(n)
	transforms := s.Transforms.Slice(n)

	p.lights.reset()
	shadows := 0
	inf := mgl32.Vec3{maths.FltMax, maths.FltMax, maths.FltMax}

	for i := 0; i < n; i++ {
		if ents[i]&(ecs.CmpAllocated|ecs.CmpLight) != ecs.CmpAllocated|ecs.CmpLight {
			continue
		}
		l := &lights[i]
		b := &bounds[i]
		pl := PackedLight{
			Kind:       l.Kind,
			Entity:     uint32(i),
			Position:   maths.Translation(world[i]),
			Direction:  l.Direction,
			Colour:     l.Colour,
			Radius:     l.Radius,
			Range:      l.Range,
			Cutoff:     l.Cutoff,
			Falloff:    l.Falloff,
			ShadowSlot: -1,
		}

		var scale mgl32.Vec3
		var accepted bool
		switch l.Kind {
		case ecs.LightDirectional:
			pl.Position = l.Direction.Normalize().Mul(directionalDistance)
			b.TransformedMin, b.TransformedMax = inf.Mul(-1), inf
			accepted = p.lights.add(&p.lights.Directional, p.cfg.Lights.Directional, pl)
			if accepted {
				p.lights.Stats.Directional++
			}
		case ecs.LightPoint:
			b.Min, b.Max = mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}
			r := max(l.Radius, 1) * 2
			scale = mgl32.Vec3{r, r, r}
			accepted = p.lights.add(&p.lights.Point, p.cfg.Lights.Point, pl)
			if accepted {
				p.lights.Stats.Point++
			}
		case ecs.LightSpot:
			b.Min, b.Max = mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 0, 1}
			angle := math.Acos(float64(1 - l.Cutoff))
			lo := float32(math.Tan(angle))
			scale = mgl32.Vec3{lo * l.Range, l.Range, lo * l.Range}
			pl.Direction = world[i].Col(1).Vec3().Mul(-1).Normalize()
			accepted = p.lights.add(&p.lights.Spot, p.cfg.Lights.Spot, pl)
			if accepted {
				p.lights.Stats.Spot++
			}
		case ecs.LightArea:
			for c, corner := range areaCorners {
				pl.Corners[c] = mgl32.TransformCoordinate(corner, world[i])
			}
			accepted = p.lights.add(&p.lights.Area, p.cfg.Lights.Area, pl)
			if accepted {
				p.lights.Stats.Area++
			}
		}

		// light volumes are bounded by their transform scale; refreshing it
		// stages an edit baked next frame
		if scale != (mgl32.Vec3{}) && transforms[i].Scale != scale {
			transforms[i].Scale = scale
			ents[i] |= ecs.CmpTransform
		}

		if accepted && l.Flags&ecs.LightShadowMap != 0 {
			l.ShadowID = int32(shadows)
			p.assignShadow(l.Kind, shadows)
			shadows++
		}
	}

	p.ensureShadowSlots(shadows)
	p.uploadLights()

	if p.lights.Stats.Dropped > 0 {
		p.logger.Debug("lights over cap dropped", log.Int("dropped", p.lights.Stats.Dropped))
	}
}

func (p *Pipeline) assignShadow(kind ecs.LightKind, slot int) {
	var list []PackedLight
	switch kind {
	case ecs.LightDirectional:
		list = p.lights.Directional
	case ecs.LightPoint:
		list = p.lights.Point
	case ecs.LightSpot:
		list = p.lights.Spot
	case ecs.LightArea:
		list = p.lights.Area
	}
	list[len(list)-1].ShadowSlot = int32(slot)
}

// ensureShadowSlots grows the slot array to fit demand. It never shrinks.
func (p *Pipeline) ensureShadowSlots(demand int) {
	want := max(p.shadowSlots, p.cfg.ShadowSlots, 1)
	for want < demand {
		want *= 2
	}
	if want == p.shadowSlots && p.shadowBuffer != render.Invalid {
		return
	}
	r := p.scene.Renderer()
	if p.shadowBuffer != render.Invalid {
		r.ReleaseBuffer(p.shadowBuffer)
	}
	p.shadowBuffer = r.CreateBuffer(render.BufferDesc{Kind: render.BufferConstant, Size: want * shadowSlotSize})
	if p.shadowSlots != 0 {
		p.logger.Debug("shadow slots grown", log.Int("from", p.shadowSlots), log.Int("to", want))
	}
	p.shadowSlots = want
}

func (p *Pipeline) uploadLights() {
	r := p.scene.Renderer()
	buf := p.scratch[:0]
	var err error
	for _, list := range [][]PackedLight{p.lights.Directional, p.lights.Point, p.lights.Spot, p.lights.Area} {
		if len(list) == 0 {
			continue
		}
		if buf, err = binary.Append(buf, binary.LittleEndian, list); err != nil {
			p.logger.Error("encode lights", log.Error(err))
			return
		}
	}
	p.scratch = buf
	if p.lightBuffer == render.Invalid {
		p.lightBuffer = r.CreateBuffer(render.BufferDesc{Kind: render.BufferConstant, Size: len(buf)})
	}
	r.UpdateBuffer(p.lightBuffer, buf)
}
