// Package systems runs the per-frame update of a scene: controllers,
// animation, extensions, the hierarchical transform sweep, bounds, draw data,
// lights and the physics step.
package systems

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/scenery/internal/core/ecs"
	"github.com/zeusync/scenery/internal/core/maths"
	"github.com/zeusync/scenery/internal/core/observability/log"
	"github.com/zeusync/scenery/internal/core/render"
)

// LightLimits caps how many lights of each kind are packed per frame.
type LightLimits struct {
	Directional int `yaml:"directional" json:"directional"`
	Point       int `yaml:"point" json:"point"`
	Spot        int `yaml:"spot" json:"spot"`
	Area        int `yaml:"area" json:"area"`
}

type Config struct {
	Lights LightLimits
	// ShadowSlots is the initial shadow map slot count; it grows on demand.
	ShadowSlots int
	// RigBoundsPadding pads child boxes merged into an animation rig root.
	RigBoundsPadding float32
}

func DefaultConfig() Config {
	return Config{
		Lights:      LightLimits{Directional: 100, Point: 100, Spot: 100, Area: 10},
		ShadowSlots: 1,
	}
}

// LightStats counts the lights packed in the last frame.
type LightStats struct {
	Directional int `json:"directional"`
	Point       int `json:"point"`
	Spot        int `json:"spot"`
	Area        int `json:"area"`
	Dropped     int `json:"dropped"`
}

// FrameStats summarises one Update.
type FrameStats struct {
	Frame       uint64        `json:"frame"`
	DeltaTime   float32       `json:"dt"`
	Entities    int           `json:"entities"`
	Capacity    int           `json:"capacity"`
	Renderables int           `json:"renderables"`
	Lights      LightStats    `json:"lights"`
	ShadowSlots int           `json:"shadow_slots"`
	ExtentsMin  mgl32.Vec3    `json:"extents_min"`
	ExtentsMax  mgl32.Vec3    `json:"extents_max"`
	Duration    time.Duration `json:"duration_ns"`
}

// Pipeline owns the per-frame state derived from a scene.
type Pipeline struct {
	cfg    Config
	scene  *ecs.Scene
	logger log.Log

	lights       LightSet
	lightBuffer  render.Handle
	shadowSlots  int
	shadowBuffer render.Handle

	extentsMin  mgl32.Vec3
	extentsMax  mgl32.Vec3
	renderables int

	scratch []byte
	frame   uint64
	last    FrameStats
}

func NewPipeline(cfg Config, scene *ecs.Scene, logger log.Log) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		scene:  scene,
		logger: logger.Named("pipeline"),
	}
}

func (p *Pipeline) Scene() *ecs.Scene { return p.scene }

// Update advances the scene by dt seconds.
func (p *Pipeline) Update(dt float32) FrameStats {
	start := time.Now()
	s := p.scene

	for _, c := range s.Controllers() {
		c.Update(s, dt)
	}

	s.Lock()
	if !s.Paused {
		p.updateAnimations(dt)
	}
	s.Unlock()

	s.UpdateExtensions(dt)

	s.Lock()
	p.updateTransforms()
	p.updateBounds()
	p.updateDrawData()
	p.updateLights()
	s.Unlock()

	if !s.Paused {
		s.PhysicsWorld().Step(dt)
	}

	for _, c := range s.Controllers() {
		c.PostUpdate(s, dt)
	}

	p.frame++
	p.last = FrameStats{
		Frame:       p.frame,
		DeltaTime:   dt,
		Entities:    s.Len(),
		Capacity:    s.Capacity(),
		Renderables: p.renderables,
		Lights:      p.lights.Stats,
		ShadowSlots: p.shadowSlots,
		ExtentsMin:  p.extentsMin,
		ExtentsMax:  p.extentsMax,
		Duration:    time.Since(start),
	}
	return p.last
}

// Stats returns the stats of the last Update.
func (p *Pipeline) Stats() FrameStats { return p.last }

// Extents returns the scene wide box of renderable entities from the last
// Update. With nothing renderable it is inverted at ±FltMax.
func (p *Pipeline) Extents() (mgl32.Vec3, mgl32.Vec3) {
	return p.extentsMin, p.extentsMax
}

// Lights returns the lights packed by the last Update.
func (p *Pipeline) Lights() *LightSet { return &p.lights }

// ShadowSlots is the current shadow map slot capacity.
func (p *Pipeline) ShadowSlots() int { return p.shadowSlots }

// Render submits a draw for every visible renderable entity.
func (p *Pipeline) Render(r render.Renderer) int {
	s := p.scene
	n := s.Len()
	ents := s.Entities.Slice(n)
	state := s.State.Slice(n)
	geoms := s.Geometries.Slice(n)
	draws := 0
	for i := 0; i < n; i++ {
		if ents[i]&(ecs.CmpAllocated|ecs.CmpGeometry) != ecs.CmpAllocated|ecs.CmpGeometry {
			continue
		}
		if state[i]&(ecs.SfHidden|ecs.SfDisabled) != 0 {
			continue
		}
		r.Draw(geoms[i].IndexBuffer, geoms[i].NumIndices)
		draws++
	}
	return draws
}

func invertedBox() (mgl32.Vec3, mgl32.Vec3) {
	return mgl32.Vec3{maths.FltMax, maths.FltMax, maths.FltMax},
		mgl32.Vec3{-maths.FltMax, -maths.FltMax, -maths.FltMax}
}
