package events

import "time"

// Event types published by the scene packages.
const (
	TypeEntityReleased = "scene.entity.released"
	TypeHistoryApplied = "editor.history.applied"
	TypeSelection      = "editor.selection"
	TypeSceneLoaded    = "scene.loaded"
	TypeDiagnostic     = "scene.load.diagnostic"
	TypeFrame          = "host.frame"
)

// Event is an immutable message transported by the Bus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

type event struct {
	typ    string
	source string
	ts     time.Time
	data   any
}

func (e event) Type() string         { return e.typ }
func (e event) Source() string       { return e.source }
func (e event) Timestamp() time.Time { return e.ts }
func (e event) Data() any            { return e.data }

// New creates an Event stamped with the current time.
func New(typ, source string, data any) Event {
	return event{typ: typ, source: source, ts: time.Now(), data: data}
}

// HistoryApplied is the payload of TypeHistoryApplied.
type HistoryApplied struct {
	Redo     bool
	Entities []uint32
}

// Selection is the payload of TypeSelection.
type Selection struct {
	Session  string
	Entities []uint32
}

// Diagnostic is the payload of TypeDiagnostic.
type Diagnostic struct {
	Entity   uint32
	Resource string
	Message  string
}

// SceneLoaded is the payload of TypeSceneLoaded.
type SceneLoaded struct {
	Path     string
	Entities int
	Degraded bool
}

// Released is the payload of TypeEntityReleased.
type Released struct {
	Session  string
	Entities []uint32
}
