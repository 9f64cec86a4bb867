package scenefile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/zeusync/scenery/internal/core/ecs"
)

// Save writes every row of s up to its live length. Ids are preserved, free
// rows included.
func Save(w io.Writer, s *ecs.Scene) error {
	ids := make([]ecs.EntityID, s.Len())
	for i := range ids {
		ids[i] = ecs.EntityID(i)
	}
	return newEncoder(s, ids, nil).encode(w)
}

// SaveSubtree writes root and its descendants renumbered from zero. Root
// becomes a scene root; references leaving the subtree are dropped.
func SaveSubtree(w io.Writer, s *ecs.Scene, root ecs.EntityID) error {
	if !s.Allocated(root) {
		return eris.Wrapf(ecs.ErrNotAllocated, "save subtree %d", root)
	}
	ids := s.Subtree(root)
	local := make(map[ecs.EntityID]ecs.EntityID, len(ids))
	for i, e := range ids {
		local[e] = ecs.EntityID(i)
	}
	return newEncoder(s, ids, local).encode(w)
}

// SaveFile writes s to path through a temporary file.
func SaveFile(path string, s *ecs.Scene) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return eris.Wrapf(err, "create scene %s", tmp)
	}
	bw := bufio.NewWriter(f)
	if err = Save(bw, s); err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return eris.Wrapf(err, "write scene %s", path)
	}
	return eris.Wrapf(os.Rename(tmp, path), "replace scene %s", path)
}

type encoder struct {
	s     *ecs.Scene
	ids   []ecs.EntityID
	local map[ecs.EntityID]ecs.EntityID

	strings map[uint64]string
	blocks  []*block
}

type block struct {
	id    uint64
	count uint32
	data  bytes.Buffer
}

func newEncoder(s *ecs.Scene, ids []ecs.EntityID, local map[ecs.EntityID]ecs.EntityID) *encoder {
	return &encoder{s: s, ids: ids, local: local, strings: make(map[uint64]string)}
}

func (enc *encoder) subtree() bool { return enc.local != nil }

// ref maps a scene id to its file id. References outside the saved rows
// become NoEntity.
func (enc *encoder) ref(e ecs.EntityID) ecs.EntityID {
	if e == ecs.NoEntity || !enc.subtree() {
		return e
	}
	if l, ok := enc.local[e]; ok {
		return l
	}
	return ecs.NoEntity
}

// id records the string behind a hash the scene interned.
func (enc *encoder) id(h uint64) uint64 {
	if h == 0 {
		return 0
	}
	if str, ok := enc.s.Lookup(h); ok {
		enc.strings[h] = str
	}
	return h
}

func (enc *encoder) text(str string) uint64 {
	if str == "" {
		return 0
	}
	h := ecs.HashID(str)
	enc.strings[h] = str
	return h
}

func (enc *encoder) block(id uint64) *block {
	b := &block{id: id}
	enc.blocks = append(enc.blocks, b)
	return b
}

func (b *block) put(v any) {
	_ = binary.Write(&b.data, binary.LittleEndian, v)
}

// buildBlocks fills the specialised blocks and the string table. Names come
// first: clip binding resolves joints by name.
func (enc *encoder) buildBlocks() {
	s := enc.s

	names := enc.block(blockNames)
	for i, e := range enc.ids {
		if name := s.Names.Get(e); name != "" && s.Allocated(e) {
			names.put(nameEntry{Entity: uint32(i), NameID: enc.text(name)})
			names.count++
		}
	}

	geometry := enc.block(blockGeometry)
	for i, e := range enc.ids {
		if !s.Has(e, ecs.CmpGeometry) {
			continue
		}
		g := s.Geometries.Get(e)
		geometry.put(geometryEntry{Entity: uint32(i), FileID: enc.id(g.FileID), NameID: enc.id(g.NameID), Submesh: g.Submesh})
		geometry.count++
	}

	animations := enc.block(blockAnimations)
	for i, e := range enc.ids {
		if !s.Has(e, ecs.CmpAnimController) {
			continue
		}
		ctrl := s.AnimControllers.At(e)
		entry := controllerEntry{
			Entity:     uint32(i),
			Trajectory: int32(ctrl.Trajectory),
			BlendA:     int32(ctrl.BlendA),
			BlendB:     int32(ctrl.BlendB),
			Ratio:      ctrl.Ratio,
			Joints:     uint32(len(ctrl.Joints)),
			Clips:      uint32(len(ctrl.Instances)),
		}
		if ctrl.Paused {
			entry.Paused = 1
		}
		joints := make([]uint32, len(ctrl.Joints))
		for j, joint := range ctrl.Joints {
			joints[j] = uint32(enc.ref(joint))
		}
		clips := make([]uint64, len(ctrl.Instances))
		for c, in := range ctrl.Instances {
			clips[c] = enc.text(in.Clip.Name)
		}
		animations.put(entry)
		animations.put(joints)
		animations.put(clips)
		animations.count++
	}

	materials := enc.block(blockMaterials)
	for i, e := range enc.ids {
		if !s.Has(e, ecs.CmpMaterial) {
			continue
		}
		m := s.Materials.Get(e)
		enc.id(m.ShaderID)
		enc.id(m.TechniqueID)
		materials.put(materialEntry{Entity: uint32(i), NameID: enc.id(m.NameID)})
		materials.count++
	}

	shadows := enc.block(blockShadows)
	for i, e := range enc.ids {
		if !s.Has(e, ecs.CmpSDFShadow) {
			continue
		}
		shadows.put(shadowEntry{Entity: uint32(i), VolumeID: enc.id(s.Shadows.Get(e).VolumeID)})
		shadows.count++
	}

	samplers := enc.block(blockSamplers)
	for i, e := range enc.ids {
		if !s.Has(e, ecs.CmpSamplers) {
			continue
		}
		entry := samplerEntry{Entity: uint32(i)}
		for b, binding := range s.Samplers.Get(e).Bindings {
			entry.Textures[b] = enc.id(binding.TextureID)
			enc.id(binding.StateID)
		}
		samplers.put(entry)
		samplers.count++
	}
}

func (enc *encoder) cameras() []cameraEntry {
	if enc.subtree() {
		return nil
	}
	out := make([]cameraEntry, len(enc.s.Cameras))
	for i, c := range enc.s.Cameras {
		out[i] = cameraEntry{
			NameID:   enc.text(c.Name),
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
	return out
}

func (enc *encoder) encode(out io.Writer) error {
	s := enc.s
	enc.buildBlocks()
	cameras := enc.cameras()

	var kinds []ecs.Storage
	for _, c := range s.Columns() {
		if c.Stride() > 0 {
			kinds = append(kinds, c)
		}
	}
	exts := s.Extensions()
	for _, x := range exts {
		enc.text(x.Name)
	}

	selected := enc.ref(s.Selected)
	if selected != ecs.NoEntity && !s.Allocated(s.Selected) {
		selected = ecs.NoEntity
	}
	viewFlags := s.ViewFlags
	if enc.subtree() {
		viewFlags = 0
	}

	w := &errWriter{w: out}
	w.put(header{
		Magic:      Magic,
		Version:    Version,
		Entities:   uint32(len(enc.ids)),
		Kinds:      uint32(len(kinds)),
		Strings:    uint32(len(enc.strings)),
		Extensions: uint32(len(exts)),
		Blocks:     uint32(len(enc.blocks)),
		ViewFlags:  viewFlags,
		Selected:   uint32(selected),
	})
	for _, c := range kinds {
		w.put(kindEntry{NameID: ecs.HashID(c.Name()), Stride: uint32(c.Stride())})
	}
	for _, x := range exts {
		w.put(extensionEntry{NameID: x.NameID, Columns: uint32(x.Count)})
	}

	for _, c := range kinds {
		if w.err != nil {
			break
		}
		switch c {
		case ecs.Storage(s.Parents):
			w.put(enc.parents())
		case ecs.Storage(s.Physics):
			w.put(enc.physics())
		default:
			w.err = c.Encode(w.w, enc.ids)
		}
	}

	keys := make([]uint64, 0, len(enc.strings))
	for k := range enc.strings {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		str := enc.strings[k]
		w.put(uint32(len(str)))
		w.write([]byte(str))
		w.put(k)
	}

	for _, b := range enc.blocks {
		w.put(blockHeader{NameID: b.id, Count: b.count, Size: uint32(b.data.Len())})
		w.write(b.data.Bytes())
	}

	w.put(uint32(len(cameras)))
	w.put(cameras)
	return eris.Wrap(w.err, "encode scene")
}

// parents rewrites parent links for the file: a parent outside the saved
// rows makes the row its own parent.
func (enc *encoder) parents() []ecs.EntityID {
	out := make([]ecs.EntityID, len(enc.ids))
	for i, e := range enc.ids {
		p := enc.ref(enc.s.Parents.Get(e))
		if p == ecs.NoEntity {
			p = ecs.EntityID(i)
		}
		out[i] = p
	}
	return out
}

func (enc *encoder) physics() []ecs.PhysicsData {
	out := make([]ecs.PhysicsData, len(enc.ids))
	for i, e := range enc.ids {
		d := enc.s.Physics.Get(e)
		if !enc.s.Has(e, ecs.CmpConstraint) {
			out[i] = d
			continue
		}
		d.Constraint.Entity = enc.ref(d.Constraint.Entity)
		d.Constraint.Other = enc.ref(d.Constraint.Other)
		out[i] = d
	}
	return out
}

type errWriter struct {
	w   io.Writer
	err error
}

func (w *errWriter) put(v any) {
	if w.err == nil {
		w.err = binary.Write(w.w, binary.LittleEndian, v)
	}
}

func (w *errWriter) write(p []byte) {
	if w.err == nil {
		_, w.err = w.w.Write(p)
	}
}
