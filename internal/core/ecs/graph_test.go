package ecs

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenery/internal/core/maths"
	"github.com/zeusync/scenery/internal/core/systems/physics"
)

// chain builds root -> child -> grandchild plus a separate root.
func chain(s *Scene) (root, child, grandchild, other EntityID) {
	root, child, grandchild, other = s.Allocate(), s.Allocate(), s.Allocate(), s.Allocate()
	s.SetName(root, "root")
	s.SetName(child, "child")
	s.SetName(grandchild, "grandchild")
	s.SetName(other, "other")
	s.Parents.Set(child, root)
	s.Parents.Set(grandchild, child)
	return
}

func TestCloneInstantiateGetsFreshHandles(t *testing.T) {
	f := newFixture(t)
	s := f.scene

	src := s.Allocate()
	s.SetName(src, "box")
	s.SetGeometry(src, Geometry{NumIndices: 36}, mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})
	s.SetRigidBody(src, physics.RigidBodyParams{Shape: physics.ShapeBox})

	dst := s.Clone(src, NoEntity, NoEntity, CloneInstantiate, mgl32.Vec3{5, 0, 0})

	assert.NotEqual(t, src, dst)
	assert.Equal(t, "box_cloned", s.Names.Get(dst))
	assert.Equal(t, HashID("box_cloned"), s.NameIDs.Get(dst))
	assert.Equal(t, dst, s.Parents.Get(dst))
	assert.NotEqual(t, s.PhysicsHandles.Get(src), s.PhysicsHandles.Get(dst))
	assert.NotEqual(t, s.Cbuffers.Get(src), s.Cbuffers.Get(dst))
	assert.Equal(t, 2, f.physics.Bodies())
	assert.Equal(t, 2, f.renderer.Live())
	assert.Equal(t, mgl32.Vec3{5, 0, 0}, s.Transforms.Get(dst).Translation)
	assert.True(t, s.Has(dst, CmpTransform))

	// every column except owned handles and names carries the source value
	for _, c := range s.Columns() {
		switch c.Name() {
		case "names", "name_ids", "parents", "transforms", "local_matrices", "entities":
			continue
		}
		if c.Owned() {
			continue
		}
		assert.True(t, c.Equal(dst, c.Snapshot(src)), c.Name())
	}
}

func TestCloneInstantiateZeroOffsetMatchesSource(t *testing.T) {
	f := newFixture(t)
	s := f.scene

	src := s.Allocate()
	s.SetName(src, "panel")
	s.SetGeometry(src, Geometry{NumIndices: 6}, mgl32.Vec3{-1, 0, -1}, mgl32.Vec3{1, 0, 1})
	s.Remove(src, CmpTransform)

	dst := s.Clone(src, NoEntity, NoEntity, CloneInstantiate, mgl32.Vec3{})

	assert.Equal(t, dst, s.Parents.Get(dst))
	assert.False(t, s.Has(dst, CmpTransform))
	for _, c := range s.Columns() {
		switch c.Name() {
		case "names", "name_ids", "parents":
			continue
		}
		if c.Owned() {
			continue
		}
		assert.True(t, c.Equal(dst, c.Snapshot(src)), c.Name())
	}
}

func TestCloneKeepsRelativeParentOffset(t *testing.T) {
	s := newFixture(t).scene
	root, child, _, _ := chain(s)

	top := s.Clone(root, NoEntity, NoEntity, CloneCopy, mgl32.Vec3{})
	assert.Equal(t, top, s.Parents.Get(top))

	dst := top + 1
	s.Clone(child, dst, NoEntity, CloneCopy, mgl32.Vec3{})
	assert.True(t, s.Allocated(dst))
	assert.Equal(t, top, s.Parents.Get(dst))
}

func TestCloneMoveFreesSource(t *testing.T) {
	f := newFixture(t)
	s := f.scene
	src := s.Allocate()
	s.SetRigidBody(src, physics.RigidBodyParams{Shape: physics.ShapeSphere})
	h := s.PhysicsHandles.Get(src)

	dst := s.Clone(src, NoEntity, NoEntity, CloneMove, mgl32.Vec3{})

	assert.False(t, s.Allocated(src))
	assert.Equal(t, h, s.PhysicsHandles.Get(dst))
	assert.Equal(t, physics.Invalid, s.PhysicsHandles.Get(src))
	assert.Equal(t, 1, f.physics.Bodies())
}

func TestCloneRequiresAllocatedSource(t *testing.T) {
	s := newFixture(t).scene
	assert.Panics(t, func() { s.Clone(3, NoEntity, NoEntity, CloneCopy, mgl32.Vec3{}) })
}

func TestSwapRewritesParents(t *testing.T) {
	s := newFixture(t).scene
	root, child, grandchild, _ := chain(s)

	s.Swap(root, grandchild)

	assert.Equal(t, "grandchild", s.Names.Get(root))
	assert.Equal(t, "root", s.Names.Get(grandchild))
	assert.True(t, s.IsRoot(grandchild))
	assert.Equal(t, grandchild, s.Parents.Get(child))
	assert.Equal(t, child, s.Parents.Get(root))
}

func TestSwapRewritesJointsAndConstraints(t *testing.T) {
	s := newFixture(t).scene
	a, b, c := s.Allocate(), s.Allocate(), s.Allocate()
	s.Physics.At(c).Constraint = ConstraintDesc{Entity: a, Other: b}
	s.Add(c, CmpConstraint)
	s.AnimControllers.Set(c, AnimController{Joints: []EntityID{a, b}})
	s.Add(c, CmpAnimController)

	s.Swap(a, b)

	assert.Equal(t, b, s.Physics.Get(c).Constraint.Entity)
	assert.Equal(t, a, s.Physics.Get(c).Constraint.Other)
	assert.Equal(t, []EntityID{b, a}, s.AnimControllers.Get(c).Joints)
}

func TestSubtreePreOrder(t *testing.T) {
	s := newFixture(t).scene
	root, child, grandchild, _ := chain(s)
	sibling := s.Allocate()
	s.Parents.Set(sibling, root)

	assert.Equal(t, []EntityID{root, child, grandchild, sibling}, s.Subtree(root))
	assert.Equal(t, []EntityID{child, grandchild}, s.Subtree(child))
	assert.Nil(t, s.Subtree(99))
}

func TestDeleteSubtreeReleasesEveryMember(t *testing.T) {
	f := newFixture(t)
	s := f.scene
	root, child, grandchild, other := chain(s)
	s.SetRigidBody(child, physics.RigidBodyParams{Shape: physics.ShapeBox})
	s.SetConstraint(grandchild, ConstraintDesc{Kind: physics.ConstraintBall, Entity: child, Other: NoEntity})
	require.Equal(t, 1, f.physics.Constraints())

	deleted := s.DeleteSubtree(root)
	f.physics.Step(0)

	assert.Equal(t, []EntityID{root, child, grandchild}, deleted)
	for _, e := range deleted {
		assert.False(t, s.Allocated(e))
	}
	assert.True(t, s.Allocated(other))
	assert.Zero(t, f.physics.Bodies())
	assert.Zero(t, f.physics.Constraints())
}

func TestCloneSubtreeIsContiguous(t *testing.T) {
	s := newFixture(t).scene
	root, child, grandchild, _ := chain(s)

	ids, err := s.CloneSubtree(root, CloneCopy, mgl32.Vec3{0, 3, 0})
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, ids[0]+2, ids[2])

	assert.True(t, s.IsRoot(ids[0]))
	assert.Equal(t, ids[0], s.Parents.Get(ids[1]))
	assert.Equal(t, ids[1], s.Parents.Get(ids[2]))
	assert.Equal(t, mgl32.Vec3{0, 3, 0}, s.Transforms.Get(ids[0]).Translation)
	assert.Equal(t, mgl32.Vec3{}, s.Transforms.Get(ids[2]).Translation)

	assert.Equal(t, s.Parents.Get(child), root)
	assert.Equal(t, s.Parents.Get(grandchild), child)
}

func TestCloneSubtreeSkipsHolesBelowParent(t *testing.T) {
	s := newFixture(t).scene
	hole, parent, child := s.Allocate(), s.Allocate(), s.Allocate()
	s.Parents.Set(child, parent)
	s.Release(hole)

	ids, err := s.CloneSubtree(child, CloneCopy, mgl32.Vec3{})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Greater(t, ids[0], parent)
	assert.Equal(t, parent, s.Parents.Get(ids[0]))
	assert.False(t, s.Allocated(hole))

	_, err = s.CloneSubtree(hole, CloneCopy, mgl32.Vec3{})
	assert.ErrorIs(t, err, ErrNotAllocated)
}

func TestSetParentKeepsWorldPlacement(t *testing.T) {
	s := newFixture(t).scene
	parent, child := s.Allocate(), s.Allocate()
	pt := maths.IdentityTransform()
	pt.Translation = mgl32.Vec3{10, 0, 0}
	s.WorldMatrices.Set(parent, pt.Matrix())
	ct := maths.IdentityTransform()
	ct.Translation = mgl32.Vec3{12, 1, 0}
	s.WorldMatrices.Set(child, ct.Matrix())
	s.LocalMatrices.Set(child, ct.Matrix())

	s.SetParent(parent, child)

	assert.Equal(t, parent, s.Parents.Get(child))
	assert.True(t, s.Transforms.Get(child).Translation.ApproxEqualThreshold(mgl32.Vec3{2, 1, 0}, 1e-5))
	world := s.WorldMatrices.Get(parent).Mul4(s.LocalMatrices.Get(child))
	assert.True(t, world.ApproxEqualThreshold(ct.Matrix(), 1e-5))
}

func TestSetParentValidateSwapsOutOfOrderRows(t *testing.T) {
	s := newFixture(t).scene
	child, parent := s.Allocate(), s.Allocate()
	s.SetName(child, "child")
	s.SetName(parent, "parent")

	p, c := s.SetParentValidate(parent, child)

	assert.Less(t, p, c)
	assert.Equal(t, "parent", s.Names.Get(p))
	assert.Equal(t, "child", s.Names.Get(c))
	assert.Equal(t, p, s.Parents.Get(c))
}
