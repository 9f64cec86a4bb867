package ecs

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/scenery/internal/core/maths"
	"github.com/zeusync/scenery/internal/core/observability/log"
	"github.com/zeusync/scenery/internal/core/render"
	"github.com/zeusync/scenery/internal/core/systems/physics"
)

type CloneMode uint8

const (
	// CloneInstantiate gives the copy fresh physics bodies and buffers.
	CloneInstantiate CloneMode = iota
	// CloneMove hands the source's handles to the copy and frees the source.
	CloneMove
	// CloneCopy copies the row verbatim, sharing handles.
	CloneCopy
)

// Clone copies src into dst. A dst of NoEntity allocates a new entity; a
// parent of NoEntity keeps the source's relative parent offset. offset is
// added to the copy's local translation.
func (s *Scene) Clone(src, dst, parent EntityID, mode CloneMode, offset mgl32.Vec3) EntityID {
	if !s.Allocated(src) {
		invariant("clone", src, "source is not allocated")
	}

	switch {
	case dst == NoEntity:
		dst = s.Allocate()
	case dst == src:
		invariant("clone", src, "source and destination are the same entity")
	case s.Allocated(dst):
		s.releaseHandles(dst)
	default:
		s.claim(dst)
	}

	for _, c := range s.columns {
		c.copyRow(dst, src)
	}

	s.SetName(dst, s.Names.data[src]+s.cfg.CloneSuffix)

	switch {
	case parent != NoEntity:
		s.Parents.data[dst] = parent
	case s.Parents.data[src] == src:
		s.Parents.data[dst] = dst
	default:
		rel := src - s.Parents.data[src]
		if rel > dst {
			s.Parents.data[dst] = dst
		} else {
			s.Parents.data[dst] = dst - rel
		}
	}

	if offset != (mgl32.Vec3{}) {
		tr := s.Transforms.At(dst)
		tr.Translation = tr.Translation.Add(offset)
		local := s.LocalMatrices.At(dst)
		local.SetCol(3, maths.Translation(*local).Add(offset).Vec4(1))
		s.Entities.data[dst] |= CmpTransform
	}

	s.State.data[dst] &^= SfSelected | SfChildSelected

	switch mode {
	case CloneInstantiate:
		s.PhysicsHandles.data[dst] = physics.Invalid
		s.Cbuffers.data[dst] = render.Invalid
		s.MaterialCbuffers.data[dst] = render.Invalid
		s.instantiateOwned(dst)
		if s.Has(dst, CmpPhysics) && s.PhysicsHandles.data[dst] != physics.Invalid {
			s.Entities.data[dst] |= CmpTransform
		}
	case CloneMove:
		if s.Selected == src {
			s.Selected = NoEntity
		}
		s.release(src)
	}
	return dst
}

// Swap exchanges the rows of a and b and rewrites every reference to either.
func (s *Scene) Swap(a, b EntityID) {
	if !s.Allocated(a) || !s.Allocated(b) {
		invariant("swap", a, "both entities must be allocated (b=%d)", b)
	}
	if a == b {
		return
	}
	for _, c := range s.columns {
		c.swapRows(a, b)
	}

	remap := func(e EntityID) EntityID {
		switch e {
		case a:
			return b
		case b:
			return a
		}
		return e
	}
	for i := 0; i < s.live; i++ {
		e := EntityID(i)
		if !s.Allocated(e) {
			continue
		}
		s.Parents.data[e] = remap(s.Parents.data[e])
		if s.Entities.data[e]&CmpConstraint != 0 {
			c := &s.Physics.data[e].Constraint
			c.Entity = remap(c.Entity)
			c.Other = remap(c.Other)
		}
		if s.Entities.data[e]&CmpAnimController != 0 {
			joints := s.AnimControllers.data[e].Joints
			for j := range joints {
				joints[j] = remap(joints[j])
			}
		}
	}
	switch s.Selected {
	case a:
		s.Selected = b
	case b:
		s.Selected = a
	}
}

// Node is one entity of a built hierarchy.
type Node struct {
	Entity   EntityID
	Children []*Node
}

// BuildTree builds the hierarchy below root. Children are ordered by id.
func (s *Scene) BuildTree(root EntityID) *Node {
	if !s.Allocated(root) {
		return nil
	}
	nodes := make(map[EntityID]*Node)
	top := &Node{Entity: root}
	nodes[root] = top
	for i := int(root) + 1; i < s.live; i++ {
		e := EntityID(i)
		if !s.Allocated(e) || s.IsRoot(e) {
			continue
		}
		p, ok := nodes[s.Parents.data[e]]
		if !ok {
			continue
		}
		n := &Node{Entity: e}
		p.Children = append(p.Children, n)
		nodes[e] = n
	}
	return top
}

// Flatten lists the tree in pre-order.
func (n *Node) Flatten() []EntityID {
	if n == nil {
		return nil
	}
	var out []EntityID
	var walk func(*Node)
	walk = func(n *Node) {
		out = append(out, n.Entity)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}

// Subtree lists root and every descendant in pre-order.
func (s *Scene) Subtree(root EntityID) []EntityID {
	return s.BuildTree(root).Flatten()
}

// DeleteSubtree releases root and all its descendants. The complete list is
// built before any release; constraints are released ahead of the bodies
// they join.
func (s *Scene) DeleteSubtree(root EntityID) []EntityID {
	list := s.Subtree(root)
	s.DeleteEntities(list)
	return list
}

// DeleteEntities releases every entity of list, constraints first.
func (s *Scene) DeleteEntities(list []EntityID) {
	for _, e := range list {
		if s.Has(e, CmpConstraint) {
			if h := s.PhysicsHandles.data[e]; h != physics.Invalid {
				s.physics.Release(h)
				s.PhysicsHandles.data[e] = physics.Invalid
			}
		}
	}
	for _, e := range list {
		if s.Allocated(e) {
			s.Release(e)
		}
	}
}

// CloneSubtree copies root and its descendants into one contiguous block and
// returns the new ids in the same pre-order as Subtree. The block must sit
// above root's parent; holes below it are skipped in favour of appending.
func (s *Scene) CloneSubtree(root EntityID, mode CloneMode, offset mgl32.Vec3) ([]EntityID, error) {
	if !s.Allocated(root) {
		return nil, fmt.Errorf("clone subtree %d: %w", root, ErrNotAllocated)
	}
	list := s.Subtree(root)
	n := len(list)

	start, end := s.AllocateContiguousInfill(n)
	if !s.IsRoot(root) && start <= s.Parents.data[root] {
		for e := start; e < end; e++ {
			s.release(e)
		}
		start, end = s.AllocateContiguous(n)
	}

	remap := make(map[EntityID]EntityID, n)
	for i, e := range list {
		remap[e] = start + EntityID(i)
	}
	for i, src := range list {
		dst := start + EntityID(i)
		p := s.Parents.data[src]
		parent, o := dst, mgl32.Vec3{}
		switch {
		case src == root:
			o = offset
			if p != src {
				parent = p
			}
		case p != src:
			parent = remap[p]
		}
		s.Clone(src, dst, parent, mode, o)
	}

	out := make([]EntityID, 0, n)
	for e := start; e < end; e++ {
		out = append(out, e)
	}
	s.logger.Debug("subtree cloned",
		log.Uint32("root", uint32(root)),
		log.Uint32("start", uint32(start)),
		log.Int("count", n),
	)
	return out, nil
}

// SetParent attaches child to parent, re-expressing the child's local matrix
// in the parent's space so its world placement is kept.
func (s *Scene) SetParent(parent, child EntityID) {
	if !s.Allocated(parent) || !s.Allocated(child) {
		invariant("set parent", child, "parent %d and child must be allocated", parent)
	}
	s.Parents.data[child] = parent
	if parent == child {
		s.LocalMatrices.data[child] = s.WorldMatrices.data[child]
	} else {
		s.LocalMatrices.data[child] = s.WorldMatrices.data[parent].Inv().Mul4(s.WorldMatrices.data[child])
	}
	s.Transforms.data[child] = maths.Decompose(s.LocalMatrices.data[child])
	s.Entities.data[child] |= CmpTransform
}

// SetParentValidate is SetParent that first swaps the two rows when child
// sits below parent, keeping parents ahead of their children. It returns the
// ids parent and child have after the call.
func (s *Scene) SetParentValidate(parent, child EntityID) (EntityID, EntityID) {
	if child < parent {
		s.Swap(parent, child)
		parent, child = child, parent
	}
	s.SetParent(parent, child)
	return parent, child
}
