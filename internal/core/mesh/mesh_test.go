package mesh

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox(t *testing.T) {
	m := Box("crate", mgl32.Vec3{1, 2, 3})
	require.NoError(t, m.Validate())
	assert.Len(t, m.Vertices, 24)
	assert.Equal(t, 12, m.Triangles())
	assert.Equal(t, 2, m.IndexWidth())

	min, max := m.Min, m.Max
	m.ComputeBounds()
	assert.Equal(t, min, m.Min)
	assert.Equal(t, max, m.Max)
}

func TestEncodeDecode(t *testing.T) {
	m := Box("crate", mgl32.Vec3{1, 1, 1})
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, m))

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestDecodeRejectsForeignFiles(t *testing.T) {
	_, err := Decode(bytes.NewReader(make([]byte, 64)))
	assert.True(t, eris.Is(err, ErrBadMagic))

	_, err = Decode(bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	m := &Mesh{Vertices: make([]Vertex, 3), Indices: []uint32{0, 1}}
	assert.True(t, eris.Is(m.Validate(), ErrIndexCount))

	m.Indices = []uint32{0, 1, 3}
	assert.True(t, eris.Is(m.Validate(), ErrIndexOutOfRange))
}

func TestOptimizeWeldsAndDropsDegenerates(t *testing.T) {
	v := func(x, y float32) Vertex { return Vertex{Position: mgl32.Vec3{x, y, 0}} }
	m := &Mesh{
		Name: "quad",
		// two triangles sharing an edge, listed without sharing, plus a
		// degenerate sliver and an unreferenced vertex
		Vertices: []Vertex{v(0, 0), v(1, 0), v(1, 1), v(0, 0), v(1, 1), v(0, 1), v(5, 5), v(9, 9)},
		Indices:  []uint32{0, 1, 2, 3, 4, 5, 0, 3, 6},
	}

	st, err := Optimize(m)
	require.NoError(t, err)

	assert.Equal(t, 8, st.VerticesBefore)
	assert.Equal(t, 4, st.VerticesAfter)
	assert.Equal(t, 3, st.TrianglesBefore)
	assert.Equal(t, 2, st.TrianglesAfter)
	assert.Equal(t, 1, st.Degenerate)
	assert.Equal(t, 2, st.IndexWidth)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, m.Indices)
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, m.Min)
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, m.Max)
}

func TestWideIndices(t *testing.T) {
	m := &Mesh{Vertices: make([]Vertex, MaxIndex16+1), Indices: []uint32{0, 1, MaxIndex16}}
	for i := range m.Vertices {
		m.Vertices[i].Position = mgl32.Vec3{float32(i), 0, 0}
	}
	assert.Equal(t, 4, m.IndexWidth())

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, m))
	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.Indices, got.Indices)
}

func TestWriteFileInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crate.mesh")
	require.NoError(t, WriteFile(path, Box("crate", mgl32.Vec3{1, 1, 1})))
	require.NoError(t, WriteFile(path, Box("crate", mgl32.Vec3{2, 2, 2})))

	m, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{2, 2, 2}, m.Max)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.mesh"))
	assert.Error(t, err)
}
