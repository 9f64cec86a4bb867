package ecs

import (
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
)

// Cloner is implemented by component types that own slices or pointers and
// need a deep copy when a row is cloned or snapshotted.
type Cloner[T any] interface {
	Clone() T
}

// Storage is the type-erased view of a column used by the table, the edit
// history and the scene file. Only Column implements it.
type Storage interface {
	Name() string
	// Stride is the little endian encoded size of one element, or 0 when the
	// element cannot be dumped raw and is serialised by a specialised block.
	Stride() int
	// Owned reports whether elements are handles owned by the row.
	Owned() bool
	Len() int

	Snapshot(e EntityID) any
	Restore(e EntityID, v any)
	Equal(e EntityID, v any) bool

	Encode(w io.Writer, ids []EntityID) error
	Decode(r io.Reader, first EntityID, n int) error

	resize(n int)
	zero(e EntityID)
	copyRow(dst, src EntityID)
	swapRows(a, b EntityID)
}

// ColumnOption tunes a column at construction.
type ColumnOption func(*columnOptions)

type columnOptions struct {
	owned bool
}

// OwnedHandles marks the column as holding handles owned by the row. Cloning
// in instantiate mode never copies them and history restores release stale
// ones.
func OwnedHandles() ColumnOption {
	return func(o *columnOptions) { o.owned = true }
}

// Column is a typed, growable array indexed by EntityID. All columns of a
// table share its capacity.
type Column[T any] struct {
	name   string
	data   []T
	stride int
	owned  bool
	clone  func(T) T
}

var _ Storage = (*Column[uint32])(nil)

func NewColumn[T any](name string, opts ...ColumnOption) *Column[T] {
	var o columnOptions
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	stride := binary.Size(zero)
	if stride < 0 {
		stride = 0
	}

	c := &Column[T]{name: name, stride: stride, owned: o.owned}
	if _, ok := any(zero).(Cloner[T]); ok {
		c.clone = func(v T) T { return any(v).(Cloner[T]).Clone() }
	}
	return c
}

func (c *Column[T]) Name() string { return c.name }
func (c *Column[T]) Stride() int  { return c.stride }
func (c *Column[T]) Owned() bool  { return c.owned }
func (c *Column[T]) Len() int     { return len(c.data) }

// At returns a pointer to the element of e. The pointer is invalidated by the
// next table resize.
func (c *Column[T]) At(e EntityID) *T {
	return &c.data[e]
}

// Get returns a copy of the element of e.
func (c *Column[T]) Get(e EntityID) T {
	return c.data[e]
}

func (c *Column[T]) Set(e EntityID, v T) {
	c.data[e] = v
}

// Slice exposes the backing array up to n. Passes use it for tight loops.
func (c *Column[T]) Slice(n int) []T {
	return c.data[:n]
}

func (c *Column[T]) copyValue(v T) T {
	if c.clone != nil {
		return c.clone(v)
	}
	return v
}

func (c *Column[T]) Snapshot(e EntityID) any {
	return c.copyValue(c.data[e])
}

func (c *Column[T]) Restore(e EntityID, v any) {
	c.data[e] = c.copyValue(v.(T))
}

func (c *Column[T]) Equal(e EntityID, v any) bool {
	other, ok := v.(T)
	if !ok {
		return false
	}
	return reflect.DeepEqual(c.data[e], other)
}

// Encode writes the elements of ids in order. Columns with no raw stride
// write nothing.
func (c *Column[T]) Encode(w io.Writer, ids []EntityID) error {
	if c.stride == 0 {
		return nil
	}
	rows := make([]T, len(ids))
	for i, id := range ids {
		rows[i] = c.data[id]
	}
	if err := binary.Write(w, binary.LittleEndian, rows); err != nil {
		return fmt.Errorf("encode column %s: %w", c.name, err)
	}
	return nil
}

// Decode reads n elements into rows [first, first+n).
func (c *Column[T]) Decode(r io.Reader, first EntityID, n int) error {
	if c.stride == 0 || n == 0 {
		return nil
	}
	if int(first)+n > len(c.data) {
		return fmt.Errorf("decode column %s: %d rows at %d exceed capacity %d", c.name, n, first, len(c.data))
	}
	if err := binary.Read(r, binary.LittleEndian, c.data[first:int(first)+n]); err != nil {
		return fmt.Errorf("decode column %s: %w", c.name, err)
	}
	return nil
}

func (c *Column[T]) resize(n int) {
	if n <= len(c.data) {
		c.data = c.data[:n]
		return
	}
	grown := make([]T, n)
	copy(grown, c.data)
	c.data = grown
}

func (c *Column[T]) zero(e EntityID) {
	var v T
	c.data[e] = v
}

func (c *Column[T]) copyRow(dst, src EntityID) {
	c.data[dst] = c.copyValue(c.data[src])
}

func (c *Column[T]) swapRows(a, b EntityID) {
	c.data[a], c.data[b] = c.data[b], c.data[a]
}
