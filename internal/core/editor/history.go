// Package editor records undoable edits to a scene and holds the editing
// session state (selection, history) that editor operations act on.
package editor

import (
	"slices"
	"time"

	"github.com/zeusync/scenery/internal/core/ecs"
	"github.com/zeusync/scenery/internal/core/events"
	"github.com/zeusync/scenery/internal/core/observability/log"
	"github.com/zeusync/scenery/internal/core/render"
	"github.com/zeusync/scenery/internal/core/systems/physics"
)

// Macro sentinels stored in place of an entity id.
const (
	MacroBegin int64 = -1
	MacroEnd   int64 = -2
)

type Config struct {
	// CoalesceWindow is how long an entity must go without further edits
	// before its pending change is pushed as one action.
	CoalesceWindow time.Duration `yaml:"coalesce_window"`
}

func DefaultConfig() Config {
	return Config{CoalesceWindow: 330 * time.Millisecond}
}

// Row is a deep copy of every column element of one entity. A row that is
// not Live records the entity as free.
type Row struct {
	Live   bool
	Values []any
}

// Action is one entry of an undo or redo stack.
type Action struct {
	Entity int64
	Before Row
	After  Row
}

// IsMacro reports whether the action is a macro sentinel.
func (a Action) IsMacro() bool { return a.Entity < 0 }

type pending struct {
	before   Row
	after    Row
	hasAfter bool
	timer    float32
}

// Applied describes the result of an Undo or Redo.
type Applied struct {
	Entities []ecs.EntityID
	// Selected reports that a restored entity was selected when it was
	// overwritten.
	Selected bool
}

// History is the undo/redo record of one scene.
type History struct {
	scene  *ecs.Scene
	logger log.Log
	bus    *events.Bus
	window float32

	pending map[ecs.EntityID]*pending
	undo    []Action
	redo    []Action
}

// NewHistory creates the history of scene. bus may be nil.
func NewHistory(cfg Config, scene *ecs.Scene, bus *events.Bus, logger log.Log) *History {
	return &History{
		scene:   scene,
		logger:  logger.Named("history"),
		bus:     bus,
		window:  float32(cfg.CoalesceWindow.Seconds()),
		pending: make(map[ecs.EntityID]*pending),
	}
}

// BeginEdit snapshots e as the state to return to. Calls made while a change
// of e is still pending keep the first snapshot.
func (h *History) BeginEdit(e ecs.EntityID) {
	if _, ok := h.pending[e]; ok {
		return
	}
	h.pending[e] = &pending{before: h.snapshot(e)}
}

// Created records that e did not exist before the current edit. It is paired
// with EndEdit like BeginEdit.
func (h *History) Created(e ecs.EntityID) {
	if _, ok := h.pending[e]; ok {
		return
	}
	h.pending[e] = &pending{before: Row{}}
}

// EndEdit snapshots e as the state the edit produced. No-op edits, where the
// row matches the before snapshot or the previous after snapshot, are
// discarded.
func (h *History) EndEdit(e ecs.EntityID) {
	p, ok := h.pending[e]
	if !ok {
		return
	}
	if h.equal(e, p.before) {
		return
	}
	if p.hasAfter && h.equal(e, p.after) {
		return
	}
	p.after = h.snapshot(e)
	p.hasAfter = true
	p.timer = h.window
}

// Cancel forgets any pending edit of e.
func (h *History) Cancel(e ecs.EntityID) {
	delete(h.pending, e)
}

// Pending reports how many entities have an edit waiting to be flushed.
func (h *History) Pending() int {
	n := 0
	for _, p := range h.pending {
		if p.hasAfter {
			n++
		}
	}
	return n
}

// Flush pushes every pending edit whose coalescing window has elapsed. All
// edits pushed by one Flush form one macro, and the first push of a Flush
// drops the redo stack.
func (h *History) Flush(dt float32) int {
	ids := make([]ecs.EntityID, 0, len(h.pending))
	for e, p := range h.pending {
		if p.hasAfter {
			ids = append(ids, e)
		}
	}
	slices.Sort(ids)

	pushed := 0
	for _, e := range ids {
		p := h.pending[e]
		if p.timer > 0 {
			p.timer -= dt
			continue
		}
		if pushed == 0 {
			h.redo = h.redo[:0]
			h.undo = append(h.undo, Action{Entity: MacroEnd})
		}
		h.undo = append(h.undo, Action{Entity: int64(e), Before: p.before, After: p.after})
		delete(h.pending, e)
		pushed++
	}
	if pushed > 0 {
		h.undo = append(h.undo, Action{Entity: MacroBegin})
		h.logger.Debug("edits flushed", log.Int("actions", pushed), log.Int("undo_depth", len(h.undo)))
	}
	return pushed
}

// Undo reverts the most recent macro.
func (h *History) Undo() Applied {
	return h.apply(&h.undo, &h.redo, false)
}

// Redo reapplies the most recently undone macro.
func (h *History) Redo() Applied {
	return h.apply(&h.redo, &h.undo, true)
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Depth returns the number of entries on the undo and redo stacks,
// sentinels included.
func (h *History) Depth() (undo, redo int) { return len(h.undo), len(h.redo) }

// Reset drops both stacks and every pending edit.
func (h *History) Reset() {
	h.undo, h.redo = h.undo[:0], h.redo[:0]
	clear(h.pending)
}

// apply pops from until a begin/end sentinel pair has been consumed,
// restoring each action and pushing it onto to.
func (h *History) apply(from, to *[]Action, redo bool) Applied {
	var out Applied
	var rows []restored
	sentinels := 0
	for len(*from) > 0 {
		a := (*from)[len(*from)-1]
		*from = (*from)[:len(*from)-1]
		*to = append(*to, a)

		if a.IsMacro() {
			sentinels++
			if sentinels == 2 {
				break
			}
			continue
		}

		e := ecs.EntityID(a.Entity)
		if h.scene.Allocated(e) && h.scene.State.Get(e)&ecs.SfSelected != 0 {
			out.Selected = true
		}
		row := a.Before
		if redo {
			row = a.After
		}
		if r, ok := h.restore(e, row); ok && !restoredEarlier(rows, e) {
			rows = append(rows, r)
		}
		delete(h.pending, e)
		out.Entities = append(out.Entities, e)
	}
	// constraints resolve their bodies, so they are reconciled last
	for _, r := range rows {
		if !h.scene.Has(r.e, ecs.CmpConstraint) {
			h.reconcile(r)
		}
	}
	for _, r := range rows {
		if h.scene.Has(r.e, ecs.CmpConstraint) {
			h.reconcile(r)
		}
	}
	if len(out.Entities) == 0 {
		return out
	}

	op := "undo"
	if redo {
		op = "redo"
	}
	h.logger.Debug(op, log.Int("entities", len(out.Entities)))
	if h.bus != nil {
		ids := make([]uint32, len(out.Entities))
		for i, e := range out.Entities {
			ids[i] = uint32(e)
		}
		if err := h.bus.Publish(events.New(events.TypeHistoryApplied, "history", events.HistoryApplied{Redo: redo, Entities: ids})); err != nil {
			h.logger.Warn("history event handler failed", log.Error(err))
		}
	}
	return out
}

func (h *History) snapshot(e ecs.EntityID) Row {
	s := h.scene
	if !s.Allocated(e) {
		return Row{}
	}
	cols := s.Columns()
	row := Row{Live: true, Values: make([]any, len(cols))}
	for i, c := range cols {
		row.Values[i] = c.Snapshot(e)
	}
	return row
}

func (h *History) equal(e ecs.EntityID, row Row) bool {
	s := h.scene
	live := s.Allocated(e)
	if live != row.Live {
		return false
	}
	if !live {
		return true
	}
	cols := s.Columns()
	if len(cols) != len(row.Values) {
		return false
	}
	for i, c := range cols {
		if !c.Equal(e, row.Values[i]) {
			return false
		}
	}
	return true
}

// restored holds the handles a row owned before its bytes were overwritten.
type restored struct {
	e         ecs.EntityID
	body      physics.Handle
	cbuffer   render.Handle
	matBuffer render.Handle
}

// restore writes row into the table. A row that is not live releases the
// entity; otherwise the previous owned handles are returned for reconcile.
func (h *History) restore(e ecs.EntityID, row Row) (restored, bool) {
	s := h.scene
	if !row.Live {
		if s.Allocated(e) {
			s.Release(e)
		}
		return restored{}, false
	}
	s.Claim(e)

	r := restored{
		e:         e,
		body:      s.PhysicsHandles.Get(e),
		cbuffer:   s.Cbuffers.Get(e),
		matBuffer: s.MaterialCbuffers.Get(e),
	}
	for i, c := range s.Columns() {
		if i < len(row.Values) {
			c.Restore(e, row.Values[i])
		}
	}
	return r, true
}

// reconcile releases a handle the row no longer holds and instantiates a
// recorded handle that differs from the live one afresh, since it was
// released when the row last changed.
func (h *History) reconcile(r restored) {
	s := h.scene
	e := r.e
	if !s.Allocated(e) {
		return
	}
	if rec := s.PhysicsHandles.Get(e); rec != r.body {
		if r.body != physics.Invalid {
			s.PhysicsWorld().Release(r.body)
		}
		s.PhysicsHandles.Set(e, physics.Invalid)
		if rec != physics.Invalid {
			if s.Has(e, ecs.CmpConstraint) {
				s.InstantiateConstraint(e)
			} else {
				s.InstantiateRigidBody(e)
			}
		}
	}
	if rec := s.Cbuffers.Get(e); rec != r.cbuffer {
		h.releaseBuffer(r.cbuffer)
		s.Cbuffers.Set(e, render.Invalid)
		if rec != render.Invalid {
			s.InstantiateModelCbuffer(e)
		}
	}
	if rec := s.MaterialCbuffers.Get(e); rec != r.matBuffer {
		h.releaseBuffer(r.matBuffer)
		s.MaterialCbuffers.Set(e, render.Invalid)
		if rec != render.Invalid {
			s.InstantiateMaterialCbuffer(e)
		}
	}

	// physics bodies follow the restored pose on the next update
	if s.Has(e, ecs.CmpPhysics) {
		s.Add(e, ecs.CmpTransform)
	}
}

func restoredEarlier(rows []restored, e ecs.EntityID) bool {
	for _, r := range rows {
		if r.e == e {
			return true
		}
	}
	return false
}

func (h *History) releaseBuffer(b render.Handle) {
	if b != render.Invalid {
		h.scene.Renderer().ReleaseBuffer(b)
	}
}
