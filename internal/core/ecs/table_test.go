package ecs

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenery/internal/core/observability/log"
	"github.com/zeusync/scenery/internal/core/render"
	"github.com/zeusync/scenery/internal/core/systems/physics"
)

type fixture struct {
	scene    *Scene
	renderer *render.Recorder
	physics  *physics.Simulator
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	r := render.NewRecorder()
	p := physics.NewSimulator(mgl32.Vec3{})
	return fixture{
		scene:    NewScene(Config{InitialCapacity: 0}, r, p, log.NewNop()),
		renderer: r,
		physics:  p,
	}
}

func TestAllocateReusesReleasedIds(t *testing.T) {
	s := newFixture(t).scene

	a, b, c := s.Allocate(), s.Allocate(), s.Allocate()
	assert.Equal(t, []EntityID{0, 1, 2}, []EntityID{a, b, c})
	assert.Equal(t, 3, s.Len())

	s.Release(b)
	assert.False(t, s.Allocated(b))
	assert.Equal(t, b, s.Parents.Get(b))

	assert.Equal(t, b, s.Allocate())
	assert.Equal(t, 3, s.Len())
}

func TestFreeNodesCarryTheirIndex(t *testing.T) {
	s := newFixture(t).scene

	a, b, c := s.Allocate(), s.Allocate(), s.Allocate()
	s.Release(c)
	s.Release(a)
	for i, n := range s.free.nodes {
		assert.Equal(t, int32(i), n.index)
	}
	assert.Equal(t, int32(a), s.free.head)
	assert.Equal(t, int32(c), s.free.nodes[a].next)

	assert.Equal(t, a, s.Allocate())
	assert.Equal(t, c, s.Allocate())
	assert.True(t, s.Allocated(b))
}

func TestAllocateGrowsByDoubling(t *testing.T) {
	s := newFixture(t).scene
	require.Equal(t, minCapacity, s.Capacity())

	seen := make(map[EntityID]bool)
	for i := 0; i < minCapacity+1; i++ {
		e := s.Allocate()
		require.False(t, seen[e], "id %d handed out twice", e)
		seen[e] = true
	}
	assert.Equal(t, minCapacity*2, s.Capacity())
	assert.Equal(t, minCapacity-1, s.FreeCount())
	for _, c := range s.Columns() {
		assert.Equal(t, s.Capacity(), c.Len(), c.Name())
	}
}

func TestAllocateContiguous(t *testing.T) {
	s := newFixture(t).scene
	s.Allocate()
	s.Allocate()

	start, end := s.AllocateContiguous(40)
	assert.Equal(t, EntityID(2), start)
	assert.Equal(t, 40, int(end-start))
	for e := start; e < end; e++ {
		assert.True(t, s.Allocated(e))
	}
	assert.Equal(t, int(end), s.Len())
	assert.Equal(t, s.Capacity()-s.Len(), s.FreeCount())
}

func TestAllocateContiguousInfill(t *testing.T) {
	s := newFixture(t).scene
	for i := 0; i < 10; i++ {
		s.Allocate()
	}
	s.Release(3)
	s.Release(4)
	s.Release(5)

	start, end := s.AllocateContiguousInfill(3)
	assert.Equal(t, EntityID(3), start)
	assert.Equal(t, EntityID(6), end)

	start, end = s.AllocateContiguousInfill(4)
	assert.Equal(t, EntityID(10), start)
	assert.Equal(t, EntityID(14), end)
}

func TestReleaseZeroesRowAndOwnedHandles(t *testing.T) {
	f := newFixture(t)
	s := f.scene

	e := s.Allocate()
	s.SetName(e, "crate")
	s.SetGeometry(e, Geometry{NumIndices: 36}, mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})
	s.SetRigidBody(e, physics.RigidBodyParams{Shape: physics.ShapeBox, Mass: 1})
	require.Equal(t, 1, f.renderer.Live())
	require.Equal(t, 1, f.physics.Bodies())

	s.Release(e)
	f.physics.Step(0)

	assert.Zero(t, f.renderer.Live())
	assert.Zero(t, f.physics.Bodies())
	assert.Equal(t, "", s.Names.Get(e))
	assert.Equal(t, Geometry{}, s.Geometries.Get(e))
	assert.Equal(t, Component(0), s.Entities.Get(e))
	assert.Equal(t, e, s.Parents.Get(e))

	assert.Panics(t, func() { s.Release(e) })
}

func TestTrim(t *testing.T) {
	s := newFixture(t).scene
	for i := 0; i < 5; i++ {
		s.Allocate()
	}
	s.Release(4)
	s.Release(3)
	s.Trim()
	assert.Equal(t, 3, s.Len())
}

func TestAdoptRowsWrittenDirectly(t *testing.T) {
	s := newFixture(t).scene
	s.Allocate()
	s.Entities.Set(2, CmpAllocated)
	s.Entities.Set(4, CmpAllocated|CmpLight)

	s.Adopt(1, 5)
	assert.Equal(t, 5, s.Len())
	assert.True(t, s.Allocated(4))
	assert.Equal(t, []EntityID{1, 3, 5}, []EntityID{s.Allocate(), s.Allocate(), s.Allocate()})

	s.Lock()
	defer s.Unlock()
	assert.Panics(t, func() { s.Adopt(0, 1) })
}

func TestAllocateWhileLockedPanics(t *testing.T) {
	s := newFixture(t).scene
	for i := 0; i < minCapacity; i++ {
		s.Allocate()
	}
	s.Lock()
	defer s.Unlock()

	var ie *InvariantError
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r)
			var ok bool
			ie, ok = r.(*InvariantError)
			require.True(t, ok)
		}()
		s.Allocate()
	}()
	assert.Equal(t, "resize", ie.Op)
}

func TestAccessorFailsLoudly(t *testing.T) {
	s := newFixture(t).scene
	e := s.Allocate()

	_, ok := Require(s, s.Lights, CmpLight).Lookup(e)
	assert.False(t, ok)

	defer func() {
		err, isErr := recover().(*ComponentNotSetError)
		require.True(t, isErr)
		assert.Equal(t, CmpLight, err.Component)
		assert.Equal(t, "lights", err.Column)
	}()
	s.Light(e)
}

type tagExtension struct {
	tags *Column[uint32]
}

func (x *tagExtension) Name() string { return "tags" }
func (x *tagExtension) Columns() []Storage { return []Storage{x.tags} }
func (x *tagExtension) Update(_ *Scene, _ float32) {}

func TestRegisterExtension(t *testing.T) {
	s := newFixture(t).scene
	ext := &tagExtension{tags: NewColumn[uint32]("tags")}

	require.NoError(t, s.RegisterExtension(ext))
	assert.ErrorIs(t, s.RegisterExtension(ext), ErrDuplicateExtension)

	idx, ok := s.Index("tags")
	require.True(t, ok)
	assert.Equal(t, s.BaseColumns(), idx)
	assert.Equal(t, s.Capacity(), ext.tags.Len())

	infos := s.Extensions()
	require.Len(t, infos, 1)
	assert.Equal(t, HashID("tags"), infos[0].NameID)

	for i := 0; i < minCapacity+1; i++ {
		s.Allocate()
	}
	assert.Equal(t, s.Capacity(), ext.tags.Len())

	ext.tags.Set(3, 9)
	s.Release(3)
	assert.Zero(t, ext.tags.Get(3))
}

func TestStrideOfManagedColumns(t *testing.T) {
	s := newFixture(t).scene
	assert.Zero(t, s.Names.Stride())
	assert.Zero(t, s.AnimControllers.Stride())
	assert.Equal(t, 64, s.LocalMatrices.Stride())
	assert.Equal(t, 4, s.Parents.Stride())
	assert.True(t, s.PhysicsHandles.Owned())
	assert.False(t, s.Transforms.Owned())
}
