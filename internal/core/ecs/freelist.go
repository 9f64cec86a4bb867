package ecs

const nilSlot int32 = -1

type freeNode struct {
	index int32
	next  int32
	prev  int32
}

// freeList is a doubly linked list of free ids threaded through a side array
// sized to the table capacity. Every free id is on the list; no allocated id
// is.
type freeList struct {
	nodes []freeNode
	head  int32
	count int
}

// rebuild sizes the list to capacity and relinks every id whose allocated bit
// is clear, lowest id first.
func (f *freeList) rebuild(flags []Component) {
	f.nodes = make([]freeNode, len(flags))
	f.head = nilSlot
	f.count = 0
	for i := len(flags) - 1; i >= 0; i-- {
		if flags[i]&CmpAllocated == 0 {
			f.push(EntityID(i))
		} else {
			f.nodes[i] = freeNode{index: int32(i), next: nilSlot, prev: nilSlot}
		}
	}
}

func (f *freeList) empty() bool {
	return f.head == nilSlot
}

func (f *freeList) push(id EntityID) {
	i := int32(id)
	f.nodes[i] = freeNode{index: i, next: f.head, prev: nilSlot}
	if f.head != nilSlot {
		f.nodes[f.head].prev = i
	}
	f.head = i
	f.count++
}

func (f *freeList) unlink(id EntityID) {
	i := int32(id)
	n := f.nodes[i]
	if n.prev != nilSlot {
		f.nodes[n.prev].next = n.next
	} else {
		f.head = n.next
	}
	if n.next != nilSlot {
		f.nodes[n.next].prev = n.prev
	}
	f.nodes[i] = freeNode{index: i, next: nilSlot, prev: nilSlot}
	f.count--
}

func (f *freeList) pop() EntityID {
	id := EntityID(f.nodes[f.head].index)
	f.unlink(id)
	return id
}
