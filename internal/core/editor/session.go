package editor

import (
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/zeusync/scenery/internal/core/ecs"
	"github.com/zeusync/scenery/internal/core/events"
	"github.com/zeusync/scenery/internal/core/observability/log"
)

// Session is the editing context of one scene: its history and selection.
// Every editing operation goes through a session.
type Session struct {
	ID uuid.UUID

	scene     *ecs.Scene
	history   *History
	bus       *events.Bus
	logger    log.Log
	selection []ecs.EntityID
}

func NewSession(scene *ecs.Scene, history *History, bus *events.Bus, logger log.Log) *Session {
	id := uuid.New()
	return &Session{
		ID:      id,
		scene:   scene,
		history: history,
		bus:     bus,
		logger:  logger.Named("session").With(log.String("session", id.String())),
	}
}

func (s *Session) Scene() *ecs.Scene { return s.scene }
func (s *Session) History() *History { return s.history }

// Selection returns a copy of the selected ids in selection order.
func (s *Session) Selection() []ecs.EntityID {
	return slices.Clone(s.selection)
}

// Select adds e to the selection, replacing it unless add is set.
func (s *Session) Select(e ecs.EntityID, add bool) {
	if !s.scene.Allocated(e) {
		return
	}
	if !add {
		s.clear()
	}
	if !slices.Contains(s.selection, e) {
		s.selection = append(s.selection, e)
		s.scene.State.Set(e, s.scene.State.Get(e)|ecs.SfSelected)
		for _, c := range s.scene.Subtree(e)[1:] {
			s.scene.State.Set(c, s.scene.State.Get(c)|ecs.SfChildSelected)
		}
	}
	s.scene.Selected = e
	s.notify()
}

func (s *Session) ClearSelection() {
	s.clear()
	s.notify()
}

func (s *Session) clear() {
	for _, e := range s.selection {
		s.unmark(e)
	}
	s.selection = s.selection[:0]
	s.scene.Selected = ecs.NoEntity
}

func (s *Session) unmark(e ecs.EntityID) {
	if !s.scene.Allocated(e) {
		return
	}
	for _, c := range s.scene.Subtree(e) {
		s.scene.State.Set(c, s.scene.State.Get(c)&^(ecs.SfSelected|ecs.SfChildSelected))
	}
}

func (s *Session) notify() {
	if s.bus == nil {
		return
	}
	ids := make([]uint32, len(s.selection))
	for i, e := range s.selection {
		ids[i] = uint32(e)
	}
	if err := s.bus.Publish(events.New(events.TypeSelection, "session", events.Selection{Session: s.ID.String(), Entities: ids})); err != nil {
		s.logger.Warn("selection event handler failed", log.Error(err))
	}
}

// Edit runs fn between BeginEdit and EndEdit of e.
func (s *Session) Edit(e ecs.EntityID, fn func(*ecs.Scene, ecs.EntityID)) {
	s.history.BeginEdit(e)
	fn(s.scene, e)
	s.history.EndEdit(e)
}

// TranslateSelection moves every selected entity by delta.
func (s *Session) TranslateSelection(delta mgl32.Vec3) {
	for _, e := range s.roots() {
		s.Edit(e, func(sc *ecs.Scene, e ecs.EntityID) {
			t := sc.Transforms.Get(e)
			t.Translation = t.Translation.Add(delta)
			sc.SetTransform(e, t)
		})
	}
}

// DeleteSelection deletes the selected entities and everything below them.
// It returns the deleted ids.
func (s *Session) DeleteSelection() []ecs.EntityID {
	var list []ecs.EntityID
	for _, e := range s.roots() {
		list = append(list, s.scene.Subtree(e)...)
	}
	s.clear()
	for _, e := range list {
		s.history.BeginEdit(e)
	}
	s.scene.DeleteEntities(list)
	for _, e := range list {
		s.history.EndEdit(e)
	}
	s.notify()
	if s.bus != nil && len(list) > 0 {
		ids := make([]uint32, len(list))
		for i, e := range list {
			ids[i] = uint32(e)
		}
		if err := s.bus.Publish(events.New(events.TypeEntityReleased, "session", events.Released{Session: s.ID.String(), Entities: ids})); err != nil {
			s.logger.Warn("release event handler failed", log.Error(err))
		}
	}
	s.logger.Debug("selection deleted", log.Int("entities", len(list)))
	return list
}

// CloneSelection instantiates a copy of every selected subtree displaced by
// offset and selects the copies.
func (s *Session) CloneSelection(offset mgl32.Vec3) ([]ecs.EntityID, error) {
	roots := s.roots()
	s.clear()

	var all []ecs.EntityID
	for _, root := range roots {
		ids, err := s.scene.CloneSubtree(root, ecs.CloneInstantiate, offset)
		if err != nil {
			return all, fmt.Errorf("clone selection: %w", err)
		}
		for _, e := range ids {
			s.history.Created(e)
			s.history.EndEdit(e)
		}
		s.selection = append(s.selection, ids[0])
		all = append(all, ids...)
	}
	for _, e := range s.selection {
		s.scene.State.Set(e, s.scene.State.Get(e)|ecs.SfSelected)
	}
	if len(s.selection) > 0 {
		s.scene.Selected = s.selection[len(s.selection)-1]
	}
	s.notify()
	return all, nil
}

// Flush pushes elapsed edits onto the history.
func (s *Session) Flush(dt float32) int {
	return s.history.Flush(dt)
}

// Undo reverts the last macro. Restoring a selected entity clears the
// selection.
func (s *Session) Undo() Applied {
	return s.applied(s.history.Undo())
}

// Redo reapplies the last undone macro.
func (s *Session) Redo() Applied {
	return s.applied(s.history.Redo())
}

func (s *Session) applied(a Applied) Applied {
	if a.Selected {
		s.clear()
		for _, e := range a.Entities {
			s.unmark(e)
		}
		s.notify()
	}
	return a
}

// roots returns the selection without entities that have a selected ancestor.
func (s *Session) roots() []ecs.EntityID {
	sel := make(map[ecs.EntityID]bool, len(s.selection))
	for _, e := range s.selection {
		sel[e] = true
	}
	out := make([]ecs.EntityID, 0, len(s.selection))
	for _, e := range s.selection {
		if !s.scene.Allocated(e) {
			continue
		}
		covered := false
		for c, p := e, s.scene.Parents.Get(e); p != c && !covered; c, p = p, s.scene.Parents.Get(p) {
			covered = sel[p]
		}
		if !covered {
			out = append(out, e)
		}
	}
	return out
}
