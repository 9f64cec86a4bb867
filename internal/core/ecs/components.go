package ecs

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/scenery/internal/core/anim"
	"github.com/zeusync/scenery/internal/core/render"
	"github.com/zeusync/scenery/internal/core/systems/physics"
)

// BoundingVolume keeps the object space box and its world space enclosure.
type BoundingVolume struct {
	Min            mgl32.Vec3
	Max            mgl32.Vec3
	TransformedMin mgl32.Vec3
	TransformedMax mgl32.Vec3
	Radius         float32
}

// Geometry references shared vertex and index buffers owned by the resource
// library. FileID and NameID resolve through the scene string table.
type Geometry struct {
	FileID       uint64
	NameID       uint64
	Submesh      uint32
	VertexBuffer render.Handle
	IndexBuffer  render.Handle
	NumVertices  uint32
	NumIndices   uint32
	IndexWidth   uint32
	VertexSize   uint32
}

type Material struct {
	NameID      uint64
	ShaderID    uint64
	TechniqueID uint64
	DataSize    uint32
}

// MaterialData is the raw constant block uploaded to a material's buffer.
type MaterialData struct {
	Values [16]float32
}

type SamplerBinding struct {
	TextureID uint64
	StateID   uint64
	Texture   render.Handle
	Slot      uint32
}

const MaxSamplerBindings = 4

type SamplerSet struct {
	Bindings [MaxSamplerBindings]SamplerBinding
}

type LightKind uint32

const (
	LightDirectional LightKind = iota
	LightPoint
	LightSpot
	LightArea
)

func (k LightKind) String() string {
	switch k {
	case LightDirectional:
		return "directional"
	case LightPoint:
		return "point"
	case LightSpot:
		return "spot"
	case LightArea:
		return "area"
	default:
		return "unknown"
	}
}

type LightFlags uint32

const (
	LightShadowMap LightFlags = 1 << iota
	LightAreaEllipse
)

type Light struct {
	Kind      LightKind
	Flags     LightFlags
	Colour    mgl32.Vec3
	Direction mgl32.Vec3
	Radius    float32
	Range     float32
	// Cutoff is the spot cone term; the half angle is acos(1 - Cutoff).
	Cutoff   float32
	Falloff  float32
	Width    float32
	Height   float32
	ShadowID int32
}

type Shadow struct {
	VolumeID uint64
	Texture  render.Handle
}

// ConstraintDesc joins the bodies of Entity and Other. NoEntity for Other
// anchors the constraint to the world.
type ConstraintDesc struct {
	Kind       physics.ConstraintKind
	Entity     EntityID
	Other      EntityID
	Pivot      mgl32.Vec3
	Axis       mgl32.Vec3
	LowerLimit mgl32.Vec3
	UpperLimit mgl32.Vec3
}

// PhysicsData is the persisted physics descriptor the handle is rebuilt from.
type PhysicsData struct {
	Body       physics.RigidBodyParams
	Constraint ConstraintDesc
}

// DrawCall is the per-entity constant block written to the entity's buffer.
type DrawCall struct {
	World             mgl32.Mat4
	WorldInvTranspose mgl32.Mat4
	Entity            uint32
	Flags             uint32
	_                 [2]uint32
}

// AnimController drives a rig. Joints lists the rig's joint entities in sampling
// order; Trajectory indexes the root motion joint or is -1.
type AnimController struct {
	Joints     []EntityID
	Trajectory int
	Instances  []*anim.Instance
	BlendA     int
	BlendB     int
	Ratio      float32
	Paused     bool
}

func (a AnimController) Clone() AnimController {
	out := a
	out.Joints = append([]EntityID(nil), a.Joints...)
	if a.Instances != nil {
		out.Instances = make([]*anim.Instance, len(a.Instances))
		for i, in := range a.Instances {
			out.Instances[i] = in.Clone()
		}
	}
	return out
}

// Camera is scene level state persisted in the camera block.
type Camera struct {
	Name     string
	Position mgl32.Vec3
	Focus    mgl32.Vec3
	Rotation mgl32.Vec2
	Fov      float32
	Aspect   float32
	Near     float32
	Far      float32
	Zoom     float32
}
