package editor

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenery/internal/core/ecs"
	"github.com/zeusync/scenery/internal/core/events"
)

func TestSelectMarksSubtree(t *testing.T) {
	f := newFixture(t, 0)
	s := f.scene
	root, child := s.Allocate(), s.Allocate()
	s.Parents.Set(child, root)

	f.session.Select(root, false)

	assert.Equal(t, []ecs.EntityID{root}, f.session.Selection())
	assert.NotZero(t, s.State.Get(root)&ecs.SfSelected)
	assert.NotZero(t, s.State.Get(child)&ecs.SfChildSelected)
	assert.Equal(t, root, s.Selected)

	f.session.ClearSelection()
	assert.Empty(t, f.session.Selection())
	assert.Zero(t, s.State.Get(child))
	assert.Equal(t, ecs.NoEntity, s.Selected)
}

func TestTranslateSelectionSkipsCoveredChildren(t *testing.T) {
	f := newFixture(t, 0)
	s := f.scene
	root, child, other := s.Allocate(), s.Allocate(), s.Allocate()
	s.Parents.Set(child, root)
	f.session.Select(root, false)
	f.session.Select(child, true)
	f.session.Select(other, true)

	f.session.TranslateSelection(mgl32.Vec3{1, 0, 0})

	assert.Equal(t, mgl32.Vec3{1, 0, 0}, s.Transforms.Get(root).Translation)
	assert.Equal(t, mgl32.Vec3{}, s.Transforms.Get(child).Translation)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, s.Transforms.Get(other).Translation)
	assert.Equal(t, 2, f.session.Flush(0))
}

func TestUndoOfSelectedEntityClearsSelection(t *testing.T) {
	f := newFixture(t, 0)
	s := f.scene
	e := s.Allocate()
	f.session.Select(e, false)
	f.session.TranslateSelection(mgl32.Vec3{0, 2, 0})
	f.session.Flush(0)

	applied := f.session.Undo()

	assert.True(t, applied.Selected)
	assert.Empty(t, f.session.Selection())
	assert.Zero(t, s.State.Get(e)&ecs.SfSelected)
	assert.Equal(t, mgl32.Vec3{}, s.Transforms.Get(e).Translation)
}

func TestDeleteSelectionUndo(t *testing.T) {
	f := newFixture(t, 0)
	s := f.scene
	root, child := s.Allocate(), s.Allocate()
	s.Parents.Set(child, root)
	s.SetName(child, "wheel")
	keep := s.Allocate()
	f.session.Select(root, false)
	var released events.Released
	f.bus.Subscribe(events.TypeEntityReleased, func(e events.Event) error {
		released = e.Data().(events.Released)
		return nil
	})

	deleted := f.session.DeleteSelection()
	require.Equal(t, []ecs.EntityID{root, child}, deleted)
	assert.Equal(t, []uint32{uint32(root), uint32(child)}, released.Entities)
	assert.Empty(t, f.session.Selection())
	f.session.Flush(0)
	assert.False(t, s.Allocated(root))
	assert.True(t, s.Allocated(keep))

	f.session.Undo()
	assert.True(t, s.Allocated(root))
	assert.True(t, s.Allocated(child))
	assert.Equal(t, root, s.Parents.Get(child))
	assert.Equal(t, "wheel", s.Names.Get(child))

	f.session.Redo()
	assert.False(t, s.Allocated(child))
}

func TestCloneSelectionUndo(t *testing.T) {
	f := newFixture(t, 0)
	s := f.scene
	root := s.Allocate()
	s.SetGeometry(root, ecs.Geometry{NumIndices: 3}, mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})
	child := s.Allocate()
	s.Parents.Set(child, root)
	f.session.Select(root, false)

	ids, err := f.session.CloneSelection(mgl32.Vec3{0, 0, 4})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, []ecs.EntityID{ids[0]}, f.session.Selection())
	assert.Equal(t, 2, f.renderer.Live())
	assert.Equal(t, 2, f.session.Flush(0))

	f.session.Undo()
	for _, e := range ids {
		assert.False(t, s.Allocated(e))
	}
	assert.Equal(t, 1, f.renderer.Live())
	assert.Empty(t, f.session.Selection())

	f.session.Redo()
	for _, e := range ids {
		assert.True(t, s.Allocated(e))
	}
	assert.Equal(t, mgl32.Vec3{0, 0, 4}, s.Transforms.Get(ids[0]).Translation)
	assert.Equal(t, 2, f.renderer.Live())
}

func TestSelectionEvents(t *testing.T) {
	f := newFixture(t, 0)
	var got []events.Selection
	f.bus.Subscribe(events.TypeSelection, func(e events.Event) error {
		got = append(got, e.Data().(events.Selection))
		return nil
	})
	e := f.scene.Allocate()

	f.session.Select(e, false)
	f.session.ClearSelection()

	require.Len(t, got, 2)
	assert.Equal(t, f.session.ID.String(), got[0].Session)
	assert.Equal(t, []uint32{uint32(e)}, got[0].Entities)
	assert.Empty(t, got[1].Entities)
}

func TestControllerFlushesAfterUpdate(t *testing.T) {
	f := newFixture(t, 0)
	c := NewController(f.session)
	e := f.scene.Allocate()
	f.scale(e, 2)

	c.Update(f.scene, 0)
	assert.False(t, f.history.CanUndo())
	c.PostUpdate(f.scene, 0)
	assert.True(t, f.history.CanUndo())
	assert.Equal(t, "editor", c.Name())
}
