package resources

import (
	"bytes"
	"context"

	"github.com/rotisserie/eris"

	"github.com/zeusync/scenery/internal/core/anim"
	"github.com/zeusync/scenery/internal/core/mesh"
	"github.com/zeusync/scenery/internal/core/observability/log"
	"github.com/zeusync/scenery/pkg/concurrent"
	"github.com/zeusync/scenery/pkg/sequence"
)

type parsed struct {
	file     string
	kind     Kind
	mesh     *mesh.Mesh
	clip     *anim.Clip
	material *materialDoc
	raw      []byte
}

func (l *Library) cached(file string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch KindOf(file) {
	case KindGeometry:
		_, ok := l.geometries[file]
		return ok
	case KindClip:
		_, ok := l.clips[file]
		return ok
	case KindMaterial:
		_, ok := l.materials[file]
		return ok
	default:
		_, ok := l.textures[file]
		return ok
	}
}

// Preload reads and parses files on up to workers goroutines, then uploads
// them on the calling goroutine: textures first so materials find them.
// Files already cached are skipped.
func (l *Library) Preload(ctx context.Context, files []string, workers int) error {
	files = sequence.Distinct(sequence.From(files)).
		Filter(func(f string) bool { return !l.cached(f) }).
		Collect()
	if len(files) == 0 {
		return nil
	}

	results := make([]parsed, len(files))
	slots := make([]int, len(files))
	for i := range slots {
		slots[i] = i
	}

	err := concurrent.Concurrent(ctx, sequence.From(slots), workers, func(ctx context.Context, i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := l.parse(files[i])
		if err != nil {
			return err
		}
		results[i] = p
		return nil
	})
	if err != nil {
		return eris.Wrap(err, "preload")
	}

	byKind := sequence.GroupBy(sequence.From(results), func(p parsed) Kind { return p.kind })
	for _, p := range byKind[KindTexture] {
		l.addTexture(p.file, p.raw)
	}
	for _, p := range byKind[KindGeometry] {
		l.addGeometry(p.file, p.mesh)
	}
	for _, p := range byKind[KindClip] {
		l.addClip(p.file, p.clip)
	}
	for _, p := range byKind[KindMaterial] {
		if _, err := l.addMaterial(p.file, p.material); err != nil {
			return eris.Wrap(err, "preload")
		}
	}

	l.logger.Info("resources preloaded",
		log.Int("files", len(files)),
		log.Int("geometries", len(byKind[KindGeometry])),
		log.Int("clips", len(byKind[KindClip])),
		log.Int("materials", len(byKind[KindMaterial])),
		log.Int("textures", len(byKind[KindTexture])),
	)
	return nil
}

func (l *Library) parse(file string) (parsed, error) {
	p := parsed{file: file, kind: KindOf(file)}
	data, err := l.open(file)
	if err != nil {
		return p, err
	}
	switch p.kind {
	case KindGeometry:
		p.mesh, err = mesh.Decode(bytes.NewReader(data))
		if err != nil {
			err = eris.Wrapf(err, "load geometry %s", file)
		}
	case KindClip:
		p.clip, err = decodeClip(file, data)
	case KindMaterial:
		p.material, err = decodeMaterial(file, data)
	case KindTexture:
		p.raw = data
	default:
		err = eris.Wrapf(ErrUnknownKind, "%s", file)
	}
	return p, err
}
