package scenefile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/zeusync/scenery/internal/core/anim"
	"github.com/zeusync/scenery/internal/core/ecs"
	"github.com/zeusync/scenery/internal/core/events"
	"github.com/zeusync/scenery/internal/core/observability/log"
	"github.com/zeusync/scenery/internal/core/render"
	"github.com/zeusync/scenery/internal/core/resources"
	"github.com/zeusync/scenery/pkg/generic"
)

const (
	maxEntities = 1 << 24
	maxKinds    = 1 << 12
	scratchSize = 64 << 10
)

var scratch = generic.NewBuffers(scratchSize)

// Resolver supplies the shared resources scene rows reference by name.
// *resources.Library implements it.
type Resolver interface {
	Geometry(file string) (*resources.Geometry, error)
	Material(file string) (*resources.Material, error)
	Clip(file string) (*anim.Clip, error)
	Texture(file string) (render.Handle, error)
}

var _ Resolver = (*resources.Library)(nil)

// Diagnostic records a resource a loaded row references but the resolver
// could not supply. The row keeps loading without the component.
type Diagnostic struct {
	Entity   ecs.EntityID
	Kind     resources.Kind
	Resource string
	Err      error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("entity %d: missing %s %q: %v", d.Entity, d.Kind, d.Resource, d.Err)
}

// Result describes one load.
type Result struct {
	// First is the id of file row zero; rows keep their relative order.
	First         ecs.EntityID
	Count         int
	Diagnostics   []Diagnostic
	Degraded      bool
	SkippedKinds  int
	SkippedBlocks int
}

type Loader struct {
	resolver Resolver
	bus      *events.Bus
	logger   log.Log
}

// NewLoader creates a loader resolving resources through resolver. Bus may
// be nil.
func NewLoader(resolver Resolver, bus *events.Bus, logger log.Log) *Loader {
	return &Loader{resolver: resolver, bus: bus, logger: logger.Named("scenefile")}
}

// LoadFile is Load on the file at path.
func (l *Loader) LoadFile(path string, s *ecs.Scene, merge bool) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open scene %s", path)
	}
	defer f.Close()

	res, err := l.load(path, f, s, merge)
	if err != nil {
		return nil, eris.Wrapf(err, "load scene %s", path)
	}
	return res, nil
}

// Load reads a scene from r into s. A plain load clears s first and restores
// the camera, view flags and selection. A merge appends the file's rows after
// the live length and leaves scene level state alone. Structural errors abort
// the load with s partially populated; missing resources do not.
func (l *Loader) Load(r io.Reader, s *ecs.Scene, merge bool) (*Result, error) {
	return l.load("", r, s, merge)
}

type decoder struct {
	r   *bufio.Reader
	err error
}

func (d *decoder) get(v any) bool {
	if d.err == nil {
		d.err = binary.Read(d.r, binary.LittleEndian, v)
	}
	return d.err == nil
}

// skip discards n bytes through the pooled scratch buffer.
func (d *decoder) skip(n int) {
	buf := scratch.Get(min(n, scratchSize))
	defer scratch.Put(buf)
	for n > 0 && d.err == nil {
		chunk := (*buf)[:min(n, len(*buf))]
		_, d.err = io.ReadFull(d.r, chunk)
		n -= len(chunk)
	}
}

// drain discards the rest of the stream.
func (d *decoder) drain() {
	buf := scratch.Get(scratchSize)
	defer scratch.Put(buf)
	for d.err == nil {
		_, d.err = d.r.Read(*buf)
	}
	if d.err == io.EOF {
		d.err = nil
	}
}

type loadState struct {
	*Loader
	s       *ecs.Scene
	res     *Result
	base    ecs.EntityID
	n       int
	strings map[uint64]string
	pending []pendingController
}

type pendingController struct {
	entry  controllerEntry
	joints []uint32
	clips  []uint64
}

func (l *Loader) load(path string, r io.Reader, s *ecs.Scene, merge bool) (*Result, error) {
	d := &decoder{r: bufio.NewReader(r)}

	var h header
	if !d.get(&h) {
		return nil, eris.Wrap(d.err, "read header")
	}
	if h.Magic != Magic {
		return nil, eris.Wrapf(ErrBadMagic, "magic %#x", h.Magic)
	}
	if h.Version != Version {
		return nil, eris.Wrapf(ErrVersion, "version %d", h.Version)
	}
	if h.Entities > maxEntities || h.Kinds > maxKinds || h.Extensions > maxKinds {
		return nil, eris.Wrapf(ErrCorrupt, "header counts %d entities %d kinds %d extensions", h.Entities, h.Kinds, h.Extensions)
	}

	kinds := make([]kindEntry, h.Kinds)
	exts := make([]extensionEntry, h.Extensions)
	if !d.get(kinds) || !d.get(exts) {
		return nil, eris.Wrap(d.err, "read tables")
	}

	if !merge {
		s.Clear()
	}
	st := &loadState{
		Loader:  l,
		s:       s,
		base:    ecs.EntityID(s.Len()),
		n:       int(h.Entities),
		strings: make(map[uint64]string, h.Strings),
	}
	st.res = &Result{First: st.base, Count: st.n}
	s.Reserve(int(st.base) + st.n)

	st.checkExtensions(exts)
	if err := st.columns(d, kinds); err != nil {
		return nil, err
	}
	s.Adopt(st.base, st.n)
	st.rebase()

	if err := st.stringTable(d, h.Strings); err != nil {
		return nil, err
	}
	for i := uint32(0); i < h.Blocks; i++ {
		if err := st.block(d); err != nil {
			return nil, err
		}
	}
	cameras, err := st.cameras(d)
	if err != nil {
		return nil, err
	}
	st.bindControllers()
	st.instantiate()

	if !merge {
		s.Cameras = cameras
		s.ViewFlags = h.ViewFlags
		if sel := ecs.EntityID(h.Selected); sel != ecs.NoEntity && int(sel) < st.n {
			s.Selected = st.base + sel
		}
	}
	if len(st.res.Diagnostics) > 0 {
		st.res.Degraded = true
		s.Degraded = true
		s.ViewFlags |= ecs.ViewDebugDegraded
	}

	l.logger.Info("scene loaded",
		log.String("path", path),
		log.Bool("merge", merge),
		log.Uint32("first", uint32(st.base)),
		log.Int("entities", st.n),
		log.Int("diagnostics", len(st.res.Diagnostics)),
		log.Int("skipped_kinds", st.res.SkippedKinds),
		log.Int("skipped_blocks", st.res.SkippedBlocks),
	)
	l.publish(path, st.res)
	return st.res, nil
}

func (st *loadState) checkExtensions(exts []extensionEntry) {
	registered := make(map[uint64]int)
	for _, x := range st.s.Extensions() {
		registered[x.NameID] = x.Count
	}
	for _, x := range exts {
		if count, ok := registered[x.NameID]; !ok || count != int(x.Columns) {
			st.logger.Warn("scene file extension does not match the registered ones",
				log.Uint64("extension", x.NameID),
				log.Int("columns", int(x.Columns)),
			)
		}
	}
}

// columns reads every column dump. Unknown kinds and stride mismatches are
// discarded.
func (st *loadState) columns(d *decoder, kinds []kindEntry) error {
	byHash := make(map[uint64]ecs.Storage)
	for _, c := range st.s.Columns() {
		if c.Stride() > 0 {
			byHash[ecs.HashID(c.Name())] = c
		}
	}
	for _, k := range kinds {
		col, ok := byHash[k.NameID]
		if ok && col.Stride() == int(k.Stride) {
			if err := col.Decode(d.r, st.base, st.n); err != nil {
				return eris.Wrap(err, "read column dump")
			}
			continue
		}
		st.res.SkippedKinds++
		st.logger.Warn("scene file column skipped",
			log.Uint64("kind", k.NameID),
			log.Int("stride", int(k.Stride)),
			log.Bool("known", ok),
		)
		d.skip(int(k.Stride) * st.n)
		if d.err != nil {
			return eris.Wrap(d.err, "skip column dump")
		}
	}
	return nil
}

// rebase shifts the entity references of loaded rows by the load base.
func (st *loadState) rebase() {
	for i := 0; i < st.n; i++ {
		e := st.base + ecs.EntityID(i)
		st.s.Parents.Set(e, st.shift(st.s.Parents.Get(e)))
		if !st.s.Has(e, ecs.CmpConstraint) {
			continue
		}
		p := st.s.Physics.At(e)
		p.Constraint.Entity = st.shift(p.Constraint.Entity)
		p.Constraint.Other = st.shift(p.Constraint.Other)
	}
}

func (st *loadState) shift(e ecs.EntityID) ecs.EntityID {
	if e == ecs.NoEntity {
		return e
	}
	return st.base + e
}

func (st *loadState) stringTable(d *decoder, count uint32) error {
	for i := uint32(0); i < count; i++ {
		var n uint32
		if !d.get(&n) {
			return eris.Wrap(d.err, "read string table")
		}
		if n > maxString {
			return eris.Wrapf(ErrCorrupt, "string of %d bytes", n)
		}
		buf := make([]byte, n)
		var id uint64
		if _, err := io.ReadFull(d.r, buf); err != nil {
			return eris.Wrap(err, "read string table")
		}
		if !d.get(&id) {
			return eris.Wrap(d.err, "read string table")
		}
		str := string(buf)
		st.strings[id] = str
		if st.s.Intern(str) != id {
			st.logger.Warn("scene file string id does not match its hash", log.String("string", str))
		}
	}
	return nil
}

// entity maps a file row to a scene id.
func (st *loadState) entity(row uint32) (ecs.EntityID, error) {
	if int(row) >= st.n {
		return ecs.NoEntity, eris.Wrapf(ErrCorrupt, "block references row %d of %d", row, st.n)
	}
	return st.base + ecs.EntityID(row), nil
}

func (st *loadState) missing(e ecs.EntityID, kind resources.Kind, id uint64, err error) {
	name, ok := st.strings[id]
	if !ok {
		name = fmt.Sprintf("#%016x", id)
		if err == nil {
			err = eris.Wrapf(resources.ErrNotFound, "string %s", name)
		}
	}
	d := Diagnostic{Entity: e, Kind: kind, Resource: name, Err: eris.Wrapf(err, "entity %d", e)}
	st.res.Diagnostics = append(st.res.Diagnostics, d)
	st.logger.Warn("scene resource missing",
		log.Uint32("entity", uint32(e)),
		log.Stringer("kind", kind),
		log.String("resource", name),
		log.Error(err),
	)
}

func (st *loadState) lookup(id uint64) (string, bool) {
	str, ok := st.strings[id]
	return str, ok
}

func (st *loadState) block(d *decoder) error {
	var bh blockHeader
	if !d.get(&bh) {
		return eris.Wrap(d.err, "read block header")
	}
	body := &decoder{r: bufio.NewReader(io.LimitReader(d.r, int64(bh.Size)))}

	var err error
	switch bh.NameID {
	case blockNames:
		err = st.names(body, bh.Count)
	case blockGeometry:
		err = st.geometry(body, bh.Count)
	case blockAnimations:
		err = st.animations(body, bh.Count)
	case blockMaterials:
		err = st.materials(body, bh.Count)
	case blockShadows:
		err = st.shadows(body, bh.Count)
	case blockSamplers:
		err = st.samplers(body, bh.Count)
	default:
		st.res.SkippedBlocks++
		st.logger.Warn("scene file block skipped", log.Uint64("block", bh.NameID), log.Int("bytes", int(bh.Size)))
	}
	if err != nil {
		return err
	}
	if body.drain(); body.err != nil {
		return eris.Wrap(body.err, "skip block")
	}
	return nil
}

func (st *loadState) names(d *decoder, count uint32) error {
	for i := uint32(0); i < count; i++ {
		var entry nameEntry
		if !d.get(&entry) {
			return eris.Wrap(d.err, "read names")
		}
		e, err := st.entity(entry.Entity)
		if err != nil {
			return err
		}
		if name, ok := st.lookup(entry.NameID); ok {
			st.s.SetName(e, name)
		}
	}
	return nil
}

func (st *loadState) geometry(d *decoder, count uint32) error {
	for i := uint32(0); i < count; i++ {
		var entry geometryEntry
		if !d.get(&entry) {
			return eris.Wrap(d.err, "read geometry")
		}
		e, err := st.entity(entry.Entity)
		if err != nil {
			return err
		}

		file, ok := st.lookup(entry.FileID)
		var g *resources.Geometry
		if ok {
			g, err = st.resolver.Geometry(file)
		}
		if !ok || err != nil {
			st.missing(e, resources.KindGeometry, entry.FileID, err)
			st.s.Remove(e, ecs.CmpGeometry)
			st.s.Geometries.Set(e, ecs.Geometry{})
			continue
		}

		geo := st.s.Geometries.At(e)
		*geo = g.Geometry
		geo.NameID = entry.NameID
		geo.Submesh = entry.Submesh
	}
	return nil
}

func (st *loadState) animations(d *decoder, count uint32) error {
	for i := uint32(0); i < count; i++ {
		var p pendingController
		if !d.get(&p.entry) {
			return eris.Wrap(d.err, "read animations")
		}
		if p.entry.Joints > maxEntities || p.entry.Clips > maxKinds {
			return eris.Wrapf(ErrCorrupt, "controller with %d joints %d clips", p.entry.Joints, p.entry.Clips)
		}
		p.joints = make([]uint32, p.entry.Joints)
		p.clips = make([]uint64, p.entry.Clips)
		if !d.get(p.joints) || !d.get(p.clips) {
			return eris.Wrap(d.err, "read animations")
		}
		if _, err := st.entity(p.entry.Entity); err != nil {
			return err
		}
		st.pending = append(st.pending, p)
	}
	return nil
}

// bindControllers rebuilds controllers once names are known. A controller
// with a missing clip loses the component.
func (st *loadState) bindControllers() {
	s := st.s
	for _, p := range st.pending {
		e := st.base + ecs.EntityID(p.entry.Entity)
		ctrl := ecs.AnimController{
			Trajectory: int(p.entry.Trajectory),
			BlendA:     int(p.entry.BlendA),
			BlendB:     int(p.entry.BlendB),
			Ratio:      p.entry.Ratio,
			Paused:     p.entry.Paused != 0,
		}
		for _, j := range p.joints {
			if j := ecs.EntityID(j); j != ecs.NoEntity && int(j) < st.n {
				ctrl.Joints = append(ctrl.Joints, st.base+j)
			}
		}

		clips := make([]*anim.Clip, 0, len(p.clips))
		ok := len(ctrl.Joints) == len(p.joints)
		for _, id := range p.clips {
			if !ok {
				break
			}
			file, found := st.lookup(id)
			var clip *anim.Clip
			var err error
			if found {
				clip, err = st.resolver.Clip(file)
			}
			if !found || err != nil {
				st.missing(e, resources.KindClip, id, err)
				ok = false
				break
			}
			clips = append(clips, clip)
		}
		if !ok {
			s.Remove(e, ecs.CmpAnimController)
			s.AnimControllers.Set(e, ecs.AnimController{})
			continue
		}

		s.AnimControllers.Set(e, ctrl)
		s.Add(e, ecs.CmpAnimController)
		for _, clip := range clips {
			s.BindClip(e, clip)
		}
	}
}

func (st *loadState) materials(d *decoder, count uint32) error {
	for i := uint32(0); i < count; i++ {
		var entry materialEntry
		if !d.get(&entry) {
			return eris.Wrap(d.err, "read materials")
		}
		e, err := st.entity(entry.Entity)
		if err != nil {
			return err
		}

		file, ok := st.lookup(entry.NameID)
		var m *resources.Material
		if ok {
			m, err = st.resolver.Material(file)
		}
		if !ok || err != nil {
			st.missing(e, resources.KindMaterial, entry.NameID, err)
			st.s.Remove(e, ecs.CmpMaterial)
			continue
		}

		mat := st.s.Materials.At(e)
		mat.ShaderID = m.Material.ShaderID
		mat.TechniqueID = m.Material.TechniqueID
	}
	return nil
}

func (st *loadState) shadows(d *decoder, count uint32) error {
	for i := uint32(0); i < count; i++ {
		var entry shadowEntry
		if !d.get(&entry) {
			return eris.Wrap(d.err, "read shadow volumes")
		}
		e, err := st.entity(entry.Entity)
		if err != nil {
			return err
		}

		file, ok := st.lookup(entry.VolumeID)
		h := render.Invalid
		if ok {
			h, err = st.resolver.Texture(file)
		}
		if !ok || err != nil {
			st.missing(e, resources.KindTexture, entry.VolumeID, err)
			st.s.Remove(e, ecs.CmpSDFShadow)
			st.s.Shadows.Set(e, ecs.Shadow{})
			continue
		}
		st.s.Shadows.At(e).Texture = h
	}
	return nil
}

func (st *loadState) samplers(d *decoder, count uint32) error {
	for i := uint32(0); i < count; i++ {
		var entry samplerEntry
		if !d.get(&entry) {
			return eris.Wrap(d.err, "read samplers")
		}
		e, err := st.entity(entry.Entity)
		if err != nil {
			return err
		}

		set := st.s.Samplers.At(e)
		for b, id := range entry.Textures {
			if id == 0 {
				set.Bindings[b].Texture = render.Invalid
				continue
			}
			file, ok := st.lookup(id)
			h := render.Invalid
			if ok {
				h, err = st.resolver.Texture(file)
			}
			if !ok || err != nil {
				st.missing(e, resources.KindTexture, id, err)
				st.s.Remove(e, ecs.CmpSamplers)
				*set = ecs.SamplerSet{}
				break
			}
			set.Bindings[b].Texture = h
		}
	}
	return nil
}

func (st *loadState) cameras(d *decoder) ([]ecs.Camera, error) {
	var count uint32
	if !d.get(&count) {
		return nil, eris.Wrap(d.err, "read cameras")
	}
	if count > maxKinds {
		return nil, eris.Wrapf(ErrCorrupt, "%d cameras", count)
	}
	entries := make([]cameraEntry, count)
	if !d.get(entries) {
		return nil, eris.Wrap(d.err, "read cameras")
	}
	out := make([]ecs.Camera, count)
	for i, c := range entries {
		name, _ := st.lookup(c.NameID)
		out[i] = ecs.Camera{
			Name:     name,
			Position: c.Position,
			Focus:    c.Focus,
			Rotation: c.Rotation,
			Fov:      c.Fov,
			Aspect:   c.Aspect,
			Near:     c.Near,
			Far:      c.Far,
			Zoom:     c.Zoom,
		}
	}
	return out, nil
}

// instantiate recreates owned handles, bodies before the constraints that
// join them.
func (st *loadState) instantiate() {
	s := st.s
	for pass := 0; pass < 2; pass++ {
		for i := 0; i < st.n; i++ {
			e := st.base + ecs.EntityID(i)
			if !s.Allocated(e) || s.Has(e, ecs.CmpConstraint) != (pass == 1) {
				continue
			}
			s.InstantiateOwned(e)
		}
	}
}

func (l *Loader) publish(path string, res *Result) {
	if l.bus == nil {
		return
	}
	batch := make([]events.Event, 0, len(res.Diagnostics)+1)
	for _, d := range res.Diagnostics {
		batch = append(batch, events.New(events.TypeDiagnostic, "scenefile", events.Diagnostic{
			Entity:   uint32(d.Entity),
			Resource: d.Resource,
			Message:  d.Err.Error(),
		}))
	}
	batch = append(batch, events.New(events.TypeSceneLoaded, "scenefile", events.SceneLoaded{
		Path:     path,
		Entities: res.Count,
		Degraded: res.Degraded,
	}))
	if err := l.bus.PublishBatch(batch...); err != nil {
		l.logger.Warn("scene load event handler failed", log.Error(err))
	}
}
