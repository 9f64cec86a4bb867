package mesh

// Stats reports what Optimize changed.
type Stats struct {
	VerticesBefore  int
	VerticesAfter   int
	TrianglesBefore int
	TrianglesAfter  int
	Degenerate      int
	IndexWidth      int
}

// Optimize welds identical vertices, drops degenerate triangles and
// unreferenced vertices, and recomputes the bounds. Vertex order follows
// first use by the index list.
func Optimize(m *Mesh) (Stats, error) {
	st := Stats{VerticesBefore: len(m.Vertices), TrianglesBefore: m.Triangles()}
	if err := m.Validate(); err != nil {
		return st, err
	}

	remap := make(map[Vertex]uint32, len(m.Vertices))
	vertices := make([]Vertex, 0, len(m.Vertices))
	indices := make([]uint32, 0, len(m.Indices))

	weld := func(i uint32) uint32 {
		v := m.Vertices[i]
		if j, ok := remap[v]; ok {
			return j
		}
		j := uint32(len(vertices))
		remap[v] = j
		vertices = append(vertices, v)
		return j
	}

	for t := 0; t+2 < len(m.Indices); t += 3 {
		a, b, c := m.Vertices[m.Indices[t]], m.Vertices[m.Indices[t+1]], m.Vertices[m.Indices[t+2]]
		if a.Position == b.Position || b.Position == c.Position || a.Position == c.Position {
			st.Degenerate++
			continue
		}
		indices = append(indices, weld(m.Indices[t]), weld(m.Indices[t+1]), weld(m.Indices[t+2]))
	}

	m.Vertices, m.Indices = vertices, indices
	m.ComputeBounds()

	st.VerticesAfter = len(m.Vertices)
	st.TrianglesAfter = m.Triangles()
	st.IndexWidth = m.IndexWidth()
	return st, nil
}
