package ecs

import (
	"math"

	"github.com/cespare/xxhash/v2"
)

// EntityID indexes a row of the scene table. Ids are dense and reused; a row
// is live only while CmpAllocated is set in its entity flags.
type EntityID uint32

// NoEntity requests allocation or the default parent where an id is optional.
const NoEntity EntityID = math.MaxUint32

// Component is the per-entity membership bitmask stored in the entity flags
// column.
type Component uint64

const (
	CmpAllocated Component = 1 << iota
	CmpGeometry
	CmpPhysics
	CmpPhysicsMulti
	CmpMaterial
	CmpSkinned
	CmpBone
	CmpDynamic
	CmpAnimController
	CmpAnimTrajectory
	CmpLight
	// CmpTransform marks a pending TRS edit to bake on the next update.
	CmpTransform
	CmpConstraint
	CmpSubInstance
	CmpMasterInstance
	CmpPreSkinned
	CmpSubGeometry
	CmpSDFShadow
	CmpVolume
	CmpSamplers
)

var componentNames = []string{
	"allocated", "geometry", "physics", "physics_multi", "material", "skinned",
	"bone", "dynamic", "anim_controller", "anim_trajectory", "light", "transform",
	"constraint", "sub_instance", "master_instance", "pre_skinned", "sub_geometry",
	"sdf_shadow", "volume", "samplers",
}

func (c Component) String() string {
	for i, name := range componentNames {
		if c == 1<<i {
			return name
		}
	}
	return "component_set"
}

// StateFlags carry editor and runtime state that is not component membership.
type StateFlags uint64

const (
	SfSelected StateFlags = 1 << iota
	SfChildSelected
	SfHidden
	SfDisabled
	SfCastShadows
	SfNoBounds
	SfMerged
	// SfSyncPhysicsTransform forces a pose pull from physics on the next update.
	SfSyncPhysicsTransform
)

// HashID is the content hash used for names, resource references and the
// scene file string table.
func HashID(s string) uint64 {
	return xxhash.Sum64String(s)
}
