package ecs

import (
	"fmt"

	"github.com/zeusync/scenery/internal/core/observability/log"
)

// Extension appends a block of columns to the scene at registration and is
// updated once per frame after animations.
type Extension interface {
	Name() string
	Columns() []Storage
	Update(s *Scene, dt float32)
}

// Controller runs around the update pass: Update before it, PostUpdate after.
// Controllers run in registration order.
type Controller interface {
	Name() string
	Update(s *Scene, dt float32)
	PostUpdate(s *Scene, dt float32)
}

type registeredExtension struct {
	ext    Extension
	offset int
	count  int
}

// ExtensionInfo describes a registered extension's column block.
type ExtensionInfo struct {
	Name   string
	NameID uint64
	Offset int
	Count  int
}

// RegisterExtension appends the extension's columns sized to the current
// capacity.
func (s *Scene) RegisterExtension(ext Extension) error {
	for _, r := range s.extensions {
		if r.ext.Name() == ext.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicateExtension, ext.Name())
		}
	}
	cols := ext.Columns()
	offset, err := s.register(cols...)
	if err != nil {
		return fmt.Errorf("register extension %s: %w", ext.Name(), err)
	}
	s.extensions = append(s.extensions, registeredExtension{ext: ext, offset: offset, count: len(cols)})
	s.logger.Info("extension registered",
		log.String("extension", ext.Name()),
		log.Int("offset", offset),
		log.Int("columns", len(cols)),
	)
	return nil
}

// Extensions lists registered extensions in registration order.
func (s *Scene) Extensions() []ExtensionInfo {
	out := make([]ExtensionInfo, len(s.extensions))
	for i, r := range s.extensions {
		out[i] = ExtensionInfo{Name: r.ext.Name(), NameID: HashID(r.ext.Name()), Offset: r.offset, Count: r.count}
	}
	return out
}

// UpdateExtensions runs every extension's per-frame hook.
func (s *Scene) UpdateExtensions(dt float32) {
	for _, r := range s.extensions {
		r.ext.Update(s, dt)
	}
}

// AddController appends c to the ordered controller list.
func (s *Scene) AddController(c Controller) {
	s.controllers = append(s.controllers, c)
}

func (s *Scene) Controllers() []Controller {
	return s.controllers
}
