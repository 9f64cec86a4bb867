package ecs

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/zeusync/scenery/internal/core/maths"
	"github.com/zeusync/scenery/internal/core/observability/log"
	"github.com/zeusync/scenery/internal/core/render"
	"github.com/zeusync/scenery/internal/core/systems/physics"
)

// View flags persisted with the scene.
const (
	ViewDebugBounds uint32 = 1 << iota
	ViewDebugPhysics
	ViewDebugLights
	ViewDebugDegraded
)

// Config holds scene construction settings.
type Config struct {
	InitialCapacity int
	CloneSuffix     string
}

func DefaultConfig() Config {
	return Config{
		InitialCapacity: 1024,
		CloneSuffix:     "_cloned",
	}
}

// Scene is the component table of one editable world plus the capabilities
// that own the handles its rows reference.
type Scene struct {
	Table

	ID uuid.UUID

	Entities          *Column[Component]
	State             *Column[StateFlags]
	Parents           *Column[EntityID]
	Names             *Column[string]
	NameIDs           *Column[uint64]
	Transforms        *Column[maths.Transform]
	InitialTransforms *Column[maths.Transform]
	LocalMatrices     *Column[mgl32.Mat4]
	WorldMatrices     *Column[mgl32.Mat4]
	PhysicsOffsets    *Column[maths.Transform]
	Bounds            *Column[BoundingVolume]
	Geometries        *Column[Geometry]
	Materials         *Column[Material]
	MaterialData      *Column[MaterialData]
	Samplers          *Column[SamplerSet]
	Lights            *Column[Light]
	Shadows           *Column[Shadow]
	Physics           *Column[PhysicsData]
	DrawCalls         *Column[DrawCall]
	AnimControllers   *Column[AnimController]

	PhysicsHandles   *Column[physics.Handle]
	Cbuffers         *Column[render.Handle]
	MaterialCbuffers *Column[render.Handle]

	Cameras   []Camera
	ViewFlags uint32
	Selected  EntityID
	Paused    bool
	Degraded  bool

	strings     map[uint64]string
	extensions  []registeredExtension
	controllers []Controller
	baseColumns int

	cfg      Config
	renderer render.Renderer
	physics  physics.Physics
	logger   log.Log
}

// NewScene builds an empty scene with cfg.InitialCapacity free rows.
func NewScene(cfg Config, r render.Renderer, p physics.Physics, logger log.Log) *Scene {
	if cfg.CloneSuffix == "" {
		cfg.CloneSuffix = DefaultConfig().CloneSuffix
	}
	s := &Scene{
		ID:                uuid.New(),
		Entities:          NewColumn[Component]("entities"),
		State:             NewColumn[StateFlags]("state_flags"),
		Parents:           NewColumn[EntityID]("parents"),
		Names:             NewColumn[string]("names"),
		NameIDs:           NewColumn[uint64]("name_ids"),
		Transforms:        NewColumn[maths.Transform]("transforms"),
		InitialTransforms: NewColumn[maths.Transform]("initial_transforms"),
		LocalMatrices:     NewColumn[mgl32.Mat4]("local_matrices"),
		WorldMatrices:     NewColumn[mgl32.Mat4]("world_matrices"),
		PhysicsOffsets:    NewColumn[maths.Transform]("physics_offsets"),
		Bounds:            NewColumn[BoundingVolume]("bounding_volumes"),
		Geometries:        NewColumn[Geometry]("geometries"),
		Materials:         NewColumn[Material]("materials"),
		MaterialData:      NewColumn[MaterialData]("material_data"),
		Samplers:          NewColumn[SamplerSet]("samplers"),
		Lights:            NewColumn[Light]("lights"),
		Shadows:           NewColumn[Shadow]("shadows"),
		Physics:           NewColumn[PhysicsData]("physics_data"),
		DrawCalls:         NewColumn[DrawCall]("draw_calls"),
		AnimControllers:   NewColumn[AnimController]("anim_controllers"),
		PhysicsHandles:    NewColumn[physics.Handle]("physics_handles", OwnedHandles()),
		Cbuffers:          NewColumn[render.Handle]("cbuffers", OwnedHandles()),
		MaterialCbuffers:  NewColumn[render.Handle]("material_cbuffers", OwnedHandles()),
		Selected:          NoEntity,
		strings:           make(map[uint64]string),
		cfg:               cfg,
		renderer:          r,
		physics:           p,
		logger:            logger.Named("scene"),
	}
	s.Table = newTable(s.Entities, s.Parents)

	base := []Storage{
		s.Entities, s.State, s.Parents, s.Names, s.NameIDs,
		s.Transforms, s.InitialTransforms, s.LocalMatrices, s.WorldMatrices, s.PhysicsOffsets,
		s.Bounds, s.Geometries, s.Materials, s.MaterialData, s.Samplers, s.Lights, s.Shadows,
		s.Physics, s.DrawCalls, s.AnimControllers,
		s.PhysicsHandles, s.Cbuffers, s.MaterialCbuffers,
	}
	if _, err := s.register(base...); err != nil {
		invariant("new scene", NoEntity, "%v", err)
	}
	s.baseColumns = len(base)
	s.resize(max(cfg.InitialCapacity, minCapacity))
	return s
}

func (s *Scene) Renderer() render.Renderer { return s.renderer }
func (s *Scene) PhysicsWorld() physics.Physics { return s.physics }
func (s *Scene) Logger() log.Log { return s.logger }
func (s *Scene) Config() Config { return s.cfg }

// BaseColumns is the number of built-in columns; extension blocks follow.
func (s *Scene) BaseColumns() int { return s.baseColumns }

// Intern records str in the scene string table and returns its hash.
func (s *Scene) Intern(str string) uint64 {
	if str == "" {
		return 0
	}
	id := HashID(str)
	s.strings[id] = str
	return id
}

// Lookup resolves a hash recorded with Intern.
func (s *Scene) Lookup(id uint64) (string, bool) {
	str, ok := s.strings[id]
	return str, ok
}

// Strings returns the scene string table.
func (s *Scene) Strings() map[uint64]string { return s.strings }

// Allocate returns a fresh entity with default transforms, reusing the lowest
// recently freed id when one exists.
func (s *Scene) Allocate() EntityID {
	before := s.capacity
	e := s.allocate()
	s.initRow(e)
	s.logGrowth(before)
	return e
}

// AllocateContiguous appends n entities and returns [start, end).
func (s *Scene) AllocateContiguous(n int) (EntityID, EntityID) {
	before := s.capacity
	start, end := s.allocateContiguous(n)
	for e := start; e < end; e++ {
		s.initRow(e)
	}
	s.logGrowth(before)
	return start, end
}

// AllocateContiguousInfill prefers a hole of n free ids inside the live range
// and falls back to appending.
func (s *Scene) AllocateContiguousInfill(n int) (EntityID, EntityID) {
	before := s.capacity
	start, end := s.allocateContiguousInfill(n)
	for e := start; e < end; e++ {
		s.initRow(e)
	}
	s.logGrowth(before)
	return start, end
}

// Claim makes the specific id e live, growing the table if needed. Rows
// restored from history or a file claim their recorded ids.
func (s *Scene) Claim(e EntityID) {
	if s.Allocated(e) {
		return
	}
	before := s.capacity
	s.claim(e)
	s.initRow(e)
	s.logGrowth(before)
}

func (s *Scene) initRow(e EntityID) {
	id := maths.IdentityTransform()
	s.Transforms.data[e] = id
	s.InitialTransforms.data[e] = id
	s.PhysicsOffsets.data[e] = id
	s.LocalMatrices.data[e] = mgl32.Ident4()
	s.WorldMatrices.data[e] = mgl32.Ident4()
}

func (s *Scene) logGrowth(before int) {
	if s.capacity != before {
		s.logger.Debug("scene grown",
			log.Int("from", before),
			log.Int("to", s.capacity),
			log.Int("live", s.live),
		)
	}
}

// Release frees the entity's owned handles, zeroes its row and returns the id
// to the free list.
func (s *Scene) Release(e EntityID) {
	if !s.Allocated(e) {
		invariant("release", e, "entity is not allocated")
	}
	if s.locked {
		invariant("release", e, "release while a pass holds the table")
	}
	s.releaseHandles(e)
	if s.Selected == e {
		s.Selected = NoEntity
	}
	s.release(e)
}

// releaseHandles returns the row's owned handles to their capabilities and
// clears them.
func (s *Scene) releaseHandles(e EntityID) {
	if h := s.PhysicsHandles.data[e]; h != physics.Invalid {
		s.physics.Release(h)
		s.PhysicsHandles.data[e] = physics.Invalid
	}
	if h := s.Cbuffers.data[e]; h != render.Invalid {
		s.renderer.ReleaseBuffer(h)
		s.Cbuffers.data[e] = render.Invalid
	}
	if h := s.MaterialCbuffers.data[e]; h != render.Invalid {
		s.renderer.ReleaseBuffer(h)
		s.MaterialCbuffers.data[e] = render.Invalid
	}
}

// Clear releases every live entity.
func (s *Scene) Clear() {
	for i := s.live - 1; i >= 0; i-- {
		if s.Allocated(EntityID(i)) {
			s.Release(EntityID(i))
		}
	}
	s.live = 0
	s.Cameras = nil
	s.ViewFlags = 0
	s.Degraded = false
	s.free.rebuild(s.Entities.data)
}

// SetName names e and records the name hash.
func (s *Scene) SetName(e EntityID, name string) {
	s.Names.data[e] = name
	s.NameIDs.data[e] = HashID(name)
}

// Find returns the first live entity with the given name.
func (s *Scene) Find(name string) (EntityID, bool) {
	id := HashID(name)
	for i := 0; i < s.live; i++ {
		e := EntityID(i)
		if s.Allocated(e) && s.NameIDs.data[e] == id && s.Names.data[e] == name {
			return e, true
		}
	}
	return NoEntity, false
}

// Add sets component bits on e.
func (s *Scene) Add(e EntityID, c Component) {
	s.Entities.data[e] |= c
}

// Remove clears component bits on e. The allocated bit cannot be removed this
// way; use Release.
func (s *Scene) Remove(e EntityID, c Component) {
	s.Entities.data[e] &^= c &^ CmpAllocated
}

// SetTransform stages a TRS edit that the next update bakes.
func (s *Scene) SetTransform(e EntityID, t maths.Transform) {
	s.Transforms.data[e] = t
	s.Entities.data[e] |= CmpTransform
}

// IsRoot reports whether e is its own parent.
func (s *Scene) IsRoot(e EntityID) bool {
	return s.Parents.data[e] == e
}
