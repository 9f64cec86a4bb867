// Package mesh is the geometry data model shared by the scene resources and
// the offline optimiser.
package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/rotisserie/eris"

	"github.com/zeusync/scenery/internal/core/maths"
)

var (
	ErrBadMagic        = eris.New("mesh: not a mesh file")
	ErrVersion         = eris.New("mesh: unsupported version")
	ErrIndexCount      = eris.New("mesh: index count is not a multiple of 3")
	ErrIndexOutOfRange = eris.New("mesh: index out of range")
)

// MaxIndex16 is the vertex count below which indices fit in 16 bits.
const MaxIndex16 = 0xffff

// Vertex is the fixed vertex layout of every mesh.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
	Tangent  mgl32.Vec4
}

// Mesh is an indexed triangle list with its object space bounds.
type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
	Min, Max mgl32.Vec3
}

// IndexWidth is the byte width of one index on disk and on the GPU.
func (m *Mesh) IndexWidth() int {
	if len(m.Vertices) < MaxIndex16 {
		return 2
	}
	return 4
}

func (m *Mesh) Triangles() int { return len(m.Indices) / 3 }

// Validate checks the index list against the vertex list.
func (m *Mesh) Validate() error {
	if len(m.Indices)%3 != 0 {
		return eris.Wrapf(ErrIndexCount, "%s has %d indices", m.Name, len(m.Indices))
	}
	for _, i := range m.Indices {
		if int(i) >= len(m.Vertices) {
			return eris.Wrapf(ErrIndexOutOfRange, "%s index %d of %d vertices", m.Name, i, len(m.Vertices))
		}
	}
	return nil
}

// ComputeBounds sets Min and Max over the referenced vertices. An empty mesh
// gets a zero box.
func (m *Mesh) ComputeBounds() {
	if len(m.Indices) == 0 {
		m.Min, m.Max = mgl32.Vec3{}, mgl32.Vec3{}
		return
	}
	lo := mgl32.Vec3{maths.FltMax, maths.FltMax, maths.FltMax}
	hi := lo.Mul(-1)
	for _, i := range m.Indices {
		p := m.Vertices[i].Position
		lo, hi = maths.Min3(lo, p), maths.Max3(hi, p)
	}
	m.Min, m.Max = lo, hi
}

// Box builds a cube with the given half extents, four vertices per face.
func Box(name string, half mgl32.Vec3) *Mesh {
	faces := [6]struct{ n, u, v mgl32.Vec3 }{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	}
	corners := [4]mgl32.Vec2{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	m := &Mesh{Name: name}
	for _, f := range faces {
		base := uint32(len(m.Vertices))
		for _, c := range corners {
			p := f.n.Add(f.u.Mul(c[0])).Add(f.v.Mul(c[1]))
			m.Vertices = append(m.Vertices, Vertex{
				Position: mgl32.Vec3{p[0] * half[0], p[1] * half[1], p[2] * half[2]},
				Normal:   f.n,
				UV:       mgl32.Vec2{(c[0] + 1) / 2, (c[1] + 1) / 2},
				Tangent:  f.u.Vec4(1),
			})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	m.Min, m.Max = half.Mul(-1), half
	return m
}
