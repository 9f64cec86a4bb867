package generic

import "sync"

// Pool is a typed sync.Pool.
type Pool[T any] struct {
	pool sync.Pool
}

func NewPool[T any](generate func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
	}
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	p.pool.Put(value)
}

// Buffers pools byte scratch buffers.
type Buffers struct {
	pool *Pool[*[]byte]
}

// NewBuffers creates a buffer pool whose fresh buffers have capacity size.
func NewBuffers(size int) *Buffers {
	return &Buffers{pool: NewPool(func() *[]byte {
		b := make([]byte, 0, size)
		return &b
	})}
}

// Get returns a buffer of length n. Its contents are unspecified.
func (b *Buffers) Get(n int) *[]byte {
	buf := b.pool.Get()
	if cap(*buf) < n {
		*buf = make([]byte, n)
	}
	*buf = (*buf)[:n]
	return buf
}

func (b *Buffers) Put(buf *[]byte) {
	b.pool.Put(buf)
}
