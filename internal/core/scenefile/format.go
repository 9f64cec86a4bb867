// Package scenefile reads and writes scenes in the binary scene format:
//
//	header
//	kind table       (name hash, stride) per dumped column
//	extension table  (name hash, column count) per registered extension
//	column dumps     entity count x stride bytes per kind, little endian
//	string table     (length, utf-8 bytes, xxhash64 id) per string
//	blocks           (name hash, entry count, byte size, payload) per block
//	camera block
//
// Columns and blocks the reader does not know are skipped by size.
package scenefile

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/rotisserie/eris"

	"github.com/zeusync/scenery/internal/core/ecs"
)

const (
	// Magic opens every scene file ("SCNE" little endian).
	Magic   uint32 = 0x454e4353
	Version uint32 = 1

	maxString = 1 << 16
)

var (
	ErrBadMagic = eris.New("scenefile: not a scene file")
	ErrVersion  = eris.New("scenefile: unsupported version")
	ErrCorrupt  = eris.New("scenefile: corrupt file")
)

// Block name hashes.
var (
	blockNames      = ecs.HashID("names")
	blockGeometry   = ecs.HashID("geometry")
	blockAnimations = ecs.HashID("animations")
	blockMaterials  = ecs.HashID("materials")
	blockShadows    = ecs.HashID("shadow_volumes")
	blockSamplers   = ecs.HashID("samplers")
)

type header struct {
	Magic      uint32
	Version    uint32
	Entities   uint32
	Kinds      uint32
	Strings    uint32
	Extensions uint32
	Blocks     uint32
	ViewFlags  uint32
	Selected   uint32
}

type kindEntry struct {
	NameID uint64
	Stride uint32
}

type extensionEntry struct {
	NameID  uint64
	Columns uint32
}

type blockHeader struct {
	NameID uint64
	Count  uint32
	Size   uint32
}

type nameEntry struct {
	Entity uint32
	NameID uint64
}

type geometryEntry struct {
	Entity  uint32
	FileID  uint64
	NameID  uint64
	Submesh uint32
}

type materialEntry struct {
	Entity uint32
	NameID uint64
}

type shadowEntry struct {
	Entity   uint32
	VolumeID uint64
}

type samplerEntry struct {
	Entity   uint32
	Textures [ecs.MaxSamplerBindings]uint64
}

// controllerEntry precedes the joint ids and clip ids of one controller.
type controllerEntry struct {
	Entity     uint32
	Trajectory int32
	BlendA     int32
	BlendB     int32
	Ratio      float32
	Paused     uint32
	Joints     uint32
	Clips      uint32
}

type cameraEntry struct {
	NameID   uint64
	Position mgl32.Vec3
	Focus    mgl32.Vec3
	Rotation mgl32.Vec2
	Fov      float32
	Aspect   float32
	Near     float32
	Far      float32
	Zoom     float32
}
