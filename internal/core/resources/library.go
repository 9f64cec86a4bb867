// Package resources loads and caches the shared assets scene rows reference:
// geometry from mesh files, animation clips, materials and textures. Every
// asset is keyed by its path relative to the library root, which is also the
// string the scene file records.
package resources

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rotisserie/eris"

	"github.com/zeusync/scenery/internal/core/anim"
	"github.com/zeusync/scenery/internal/core/ecs"
	"github.com/zeusync/scenery/internal/core/mesh"
	"github.com/zeusync/scenery/internal/core/observability/log"
	"github.com/zeusync/scenery/internal/core/render"
)

var (
	ErrNotFound    = eris.New("resources: not found")
	ErrUnknownKind = eris.New("resources: unknown resource kind")
)

// Kind classifies a resource file by extension.
type Kind uint8

const (
	KindTexture Kind = iota
	KindGeometry
	KindClip
	KindMaterial
)

func (k Kind) String() string {
	switch k {
	case KindGeometry:
		return "geometry"
	case KindClip:
		return "clip"
	case KindMaterial:
		return "material"
	default:
		return "texture"
	}
}

// KindOf maps .mesh, .clip and .mat files to their kinds. Anything else is a
// texture.
func KindOf(file string) Kind {
	switch filepath.Ext(file) {
	case ".mesh":
		return KindGeometry
	case ".clip":
		return KindClip
	case ".mat":
		return KindMaterial
	default:
		return KindTexture
	}
}

// Geometry is an uploaded mesh ready to be bound to rows.
type Geometry struct {
	File     string
	Name     string
	Geometry ecs.Geometry
	Min, Max mgl32.Vec3
}

// Material is a parsed material with its textures resolved.
type Material struct {
	File     string
	Material ecs.Material
	Data     ecs.MaterialData
	Samplers ecs.SamplerSet
	Textures int
	// Strings are the names the material's ids hash.
	Strings []string
}

// Library is safe for concurrent lookups. Renderer uploads happen on the
// goroutine that first requests an asset.
type Library struct {
	root     string
	renderer render.Renderer
	logger   log.Log

	mu         sync.Mutex
	geometries map[string]*Geometry
	clips      map[string]*anim.Clip
	materials  map[string]*Material
	textures   map[string]render.Handle
}

func NewLibrary(root string, r render.Renderer, logger log.Log) *Library {
	return &Library{
		root:       root,
		renderer:   r,
		logger:     logger.Named("resources"),
		geometries: make(map[string]*Geometry),
		clips:      make(map[string]*anim.Clip),
		materials:  make(map[string]*Material),
		textures:   make(map[string]render.Handle),
	}
}

func (l *Library) Root() string { return l.root }

func (l *Library) path(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(l.root, file)
}

func (l *Library) open(file string) ([]byte, error) {
	data, err := os.ReadFile(l.path(file))
	if os.IsNotExist(err) {
		return nil, eris.Wrapf(ErrNotFound, "%s", file)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", file)
	}
	return data, nil
}

// Geometry returns the uploaded mesh of file, loading it on first use.
func (l *Library) Geometry(file string) (*Geometry, error) {
	l.mu.Lock()
	g, ok := l.geometries[file]
	l.mu.Unlock()
	if ok {
		return g, nil
	}

	if _, err := os.Stat(l.path(file)); os.IsNotExist(err) {
		return nil, eris.Wrapf(ErrNotFound, "%s", file)
	}
	m, err := mesh.ReadFile(l.path(file))
	if err != nil {
		return nil, eris.Wrapf(err, "load geometry %s", file)
	}
	return l.addGeometry(file, m), nil
}

func (l *Library) addGeometry(file string, m *mesh.Mesh) *Geometry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if g, ok := l.geometries[file]; ok {
		return g
	}

	vertices, _ := binary.Append(nil, binary.LittleEndian, m.Vertices)
	width := m.IndexWidth()
	var indices []byte
	if width == 2 {
		narrow := make([]uint16, len(m.Indices))
		for i, v := range m.Indices {
			narrow[i] = uint16(v)
		}
		indices, _ = binary.Append(nil, binary.LittleEndian, narrow)
	} else {
		indices, _ = binary.Append(nil, binary.LittleEndian, m.Indices)
	}

	g := &Geometry{
		File: file,
		Name: m.Name,
		Geometry: ecs.Geometry{
			FileID:       ecs.HashID(file),
			NameID:       ecs.HashID(m.Name),
			VertexBuffer: l.renderer.CreateBuffer(render.BufferDesc{Kind: render.BufferVertex, Size: len(vertices), Data: vertices}),
			IndexBuffer:  l.renderer.CreateBuffer(render.BufferDesc{Kind: render.BufferIndex, Size: len(indices), Data: indices}),
			NumVertices:  uint32(len(m.Vertices)),
			NumIndices:   uint32(len(m.Indices)),
			IndexWidth:   uint32(width),
			VertexSize:   uint32(binary.Size(mesh.Vertex{})),
		},
		Min: m.Min,
		Max: m.Max,
	}
	l.geometries[file] = g
	l.logger.Debug("geometry loaded",
		log.String("file", file),
		log.Int("vertices", len(m.Vertices)),
		log.Int("triangles", m.Triangles()),
	)
	return g
}

// Clip returns the animation clip of file. The clip is named after the file.
func (l *Library) Clip(file string) (*anim.Clip, error) {
	l.mu.Lock()
	c, ok := l.clips[file]
	l.mu.Unlock()
	if ok {
		return c, nil
	}

	data, err := l.open(file)
	if err != nil {
		return nil, err
	}
	c, err = decodeClip(file, data)
	if err != nil {
		return nil, err
	}
	return l.addClip(file, c), nil
}

func (l *Library) addClip(file string, c *anim.Clip) *anim.Clip {
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.clips[file]; ok {
		return prev
	}
	l.clips[file] = c
	l.logger.Debug("clip loaded", log.String("file", file), log.Float32("length", c.Length))
	return c
}

// Material returns the material of file with its sampler textures loaded.
func (l *Library) Material(file string) (*Material, error) {
	l.mu.Lock()
	m, ok := l.materials[file]
	l.mu.Unlock()
	if ok {
		return m, nil
	}

	data, err := l.open(file)
	if err != nil {
		return nil, err
	}
	doc, err := decodeMaterial(file, data)
	if err != nil {
		return nil, err
	}
	return l.addMaterial(file, doc)
}

func (l *Library) addMaterial(file string, doc *materialDoc) (*Material, error) {
	m := &Material{
		File: file,
		Material: ecs.Material{
			NameID:      ecs.HashID(file),
			ShaderID:    ecs.HashID(doc.Shader),
			TechniqueID: ecs.HashID(doc.Technique),
		},
		Strings: []string{file, doc.Shader, doc.Technique},
	}
	copy(m.Data.Values[:], doc.Values)
	for i, t := range doc.Textures {
		if i >= ecs.MaxSamplerBindings {
			l.logger.Warn("material sampler bindings truncated",
				log.String("file", file),
				log.Int("bindings", len(doc.Textures)),
			)
			break
		}
		h, err := l.Texture(t.File)
		if err != nil {
			return nil, eris.Wrapf(err, "material %s", file)
		}
		m.Samplers.Bindings[i] = ecs.SamplerBinding{
			TextureID: ecs.HashID(t.File),
			StateID:   ecs.HashID(t.State),
			Texture:   h,
			Slot:      t.Slot,
		}
		m.Strings = append(m.Strings, t.File, t.State)
		m.Textures++
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.materials[file]; ok {
		return prev, nil
	}
	l.materials[file] = m
	l.logger.Debug("material loaded", log.String("file", file), log.Int("textures", m.Textures))
	return m, nil
}

// Texture uploads the raw contents of file as a texture buffer.
func (l *Library) Texture(file string) (render.Handle, error) {
	l.mu.Lock()
	h, ok := l.textures[file]
	l.mu.Unlock()
	if ok {
		return h, nil
	}

	data, err := l.open(file)
	if err != nil {
		return render.Invalid, err
	}
	return l.addTexture(file, data), nil
}

func (l *Library) addTexture(file string, data []byte) render.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.textures[file]; ok {
		return h
	}
	h := l.renderer.CreateBuffer(render.BufferDesc{Kind: render.BufferTexture, Size: len(data), Data: data})
	l.textures[file] = h
	l.logger.Debug("texture loaded", log.String("file", file), log.Int("bytes", len(data)))
	return h
}

// Stats counts cached assets.
type Stats struct {
	Geometries int
	Clips      int
	Materials  int
	Textures   int
}

func (l *Library) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Geometries: len(l.geometries),
		Clips:      len(l.clips),
		Materials:  len(l.materials),
		Textures:   len(l.textures),
	}
}

// Release returns every buffer the library uploaded and empties the caches.
func (l *Library) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, g := range l.geometries {
		l.renderer.ReleaseBuffer(g.Geometry.VertexBuffer)
		l.renderer.ReleaseBuffer(g.Geometry.IndexBuffer)
	}
	for _, h := range l.textures {
		l.renderer.ReleaseBuffer(h)
	}
	clear(l.geometries)
	clear(l.clips)
	clear(l.materials)
	clear(l.textures)
}
