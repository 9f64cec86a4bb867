package ecs

import "fmt"

const minCapacity = 16

// Table owns every column of a scene. All columns have the same capacity;
// live length is the highest allocated id plus one and bounds every pass.
type Table struct {
	columns []Storage
	index   map[string]int

	flags   *Column[Component]
	parents *Column[EntityID]

	free     freeList
	capacity int
	live     int
	locked   bool
}

func newTable(flags *Column[Component], parents *Column[EntityID]) Table {
	return Table{
		index:   make(map[string]int),
		flags:   flags,
		parents: parents,
	}
}

// register appends columns and returns the index of the first one. Names are
// resolved to indices here, once.
func (t *Table) register(cols ...Storage) (int, error) {
	for _, c := range cols {
		if _, ok := t.index[c.Name()]; ok {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateColumn, c.Name())
		}
	}
	offset := len(t.columns)
	for _, c := range cols {
		t.index[c.Name()] = len(t.columns)
		t.columns = append(t.columns, c)
		c.resize(t.capacity)
	}
	return offset, nil
}

func (t *Table) Capacity() int { return t.capacity }

// Len is the live length.
func (t *Table) Len() int { return t.live }

// FreeCount is the number of ids on the free list.
func (t *Table) FreeCount() int { return t.free.count }

// Columns returns every column in registration order.
func (t *Table) Columns() []Storage { return t.columns }

// Index resolves a column name.
func (t *Table) Index(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

func (t *Table) Column(name string) (Storage, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	return t.columns[i], nil
}

// Lock marks the table as held by a pass. Any resize while locked is an
// invariant violation.
func (t *Table) Lock()        { t.locked = true }
func (t *Table) Unlock()      { t.locked = false }
func (t *Table) Locked() bool { return t.locked }

// Allocated reports whether e is a live entity.
func (t *Table) Allocated(e EntityID) bool {
	return int(e) < t.live && t.flags.data[e]&CmpAllocated != 0
}

// Has reports whether e is live and carries every bit of c.
func (t *Table) Has(e EntityID, c Component) bool {
	return t.Allocated(e) && t.flags.data[e]&c == c
}

// Reserve grows the table to at least n rows.
func (t *Table) Reserve(n int) {
	if n > t.capacity {
		t.resize(n)
	}
}

func (t *Table) resize(n int) {
	if t.locked {
		invariant("resize", NoEntity, "table resized while a pass holds it")
	}
	for _, c := range t.columns {
		c.resize(n)
	}
	t.capacity = n
	if t.live > n {
		t.live = n
	}
	t.free.rebuild(t.flags.data)
}

func (t *Table) grow(need int) {
	n := max(t.capacity*2, need, minCapacity)
	t.resize(n)
}

func (t *Table) mark(e EntityID) {
	t.flags.data[e] = CmpAllocated
	t.parents.data[e] = e
	if int(e) >= t.live {
		t.live = int(e) + 1
	}
}

// allocate pops the free list head, doubling capacity when the list is empty.
func (t *Table) allocate() EntityID {
	if t.free.empty() {
		t.grow(t.capacity + 1)
	}
	e := t.free.pop()
	t.mark(e)
	return e
}

// allocateContiguous appends n ids at the live length and returns [start, end).
func (t *Table) allocateContiguous(n int) (EntityID, EntityID) {
	if t.live+n > t.capacity {
		t.grow((t.live + n) * 2)
	}
	start := t.live
	for i := start; i < start+n; i++ {
		e := EntityID(i)
		if t.flags.data[e]&CmpAllocated == 0 {
			t.free.unlink(e)
		}
		t.mark(e)
	}
	return EntityID(start), EntityID(start + n)
}

// allocateContiguousInfill looks for n consecutive free ids inside the live
// range before falling back to allocateContiguous.
func (t *Table) allocateContiguousInfill(n int) (EntityID, EntityID) {
	if n <= 0 {
		return EntityID(t.live), EntityID(t.live)
	}
	run := 0
	for i := 0; i < t.live; i++ {
		if t.flags.data[i]&CmpAllocated != 0 {
			run = 0
			continue
		}
		run++
		if run == n {
			start := i - n + 1
			for j := start; j <= i; j++ {
				t.free.unlink(EntityID(j))
				t.mark(EntityID(j))
			}
			return EntityID(start), EntityID(i + 1)
		}
	}
	return t.allocateContiguous(n)
}

// claim makes a specific free id live.
func (t *Table) claim(e EntityID) {
	if int(e) >= t.capacity {
		t.grow(int(e) + 1)
	}
	if t.flags.data[e]&CmpAllocated != 0 {
		return
	}
	t.free.unlink(e)
	t.mark(e)
}

func (t *Table) zeroRow(e EntityID) {
	for _, c := range t.columns {
		c.zero(e)
	}
}

// release zeroes the row and returns e to the free list head.
func (t *Table) release(e EntityID) {
	t.zeroRow(e)
	t.parents.data[e] = e
	t.free.push(e)
}

// Trim shrinks the live length to the last allocated id.
func (t *Table) Trim() {
	for t.live > 0 && t.flags.data[t.live-1]&CmpAllocated == 0 {
		t.live--
	}
}

// Adopt takes ownership of rows [first, first+n) written directly into the
// columns, as the scene file loader does: the live length grows to cover
// every allocated row and the free list is rebuilt.
func (t *Table) Adopt(first EntityID, n int) {
	if t.locked {
		invariant("adopt", NoEntity, "rows adopted while a pass holds the table")
	}
	for i := int(first) + n - 1; i >= int(first); i-- {
		if t.flags.data[i]&CmpAllocated != 0 {
			t.live = max(t.live, i+1)
			break
		}
	}
	t.free.rebuild(t.flags.data)
}
