package render

import "sync"

var _ Renderer = (*Recorder)(nil)

// Buffer is the recorder's view of one live buffer.
type Buffer struct {
	Kind    BufferKind
	Size    int
	Data    []byte
	Updates int
}

// DrawCall records one Draw submission.
type DrawCall struct {
	Buffer     Handle
	IndexCount uint32
}

// Recorder is an in-memory Renderer. It keeps every live buffer and the draw
// calls submitted since the last Reset, which is all headless tools and tests
// need from a GPU.
type Recorder struct {
	mu      sync.Mutex
	next    Handle
	buffers map[Handle]*Buffer
	draws   []DrawCall

	created  int
	released int
}

func NewRecorder() *Recorder {
	return &Recorder{
		buffers: make(map[Handle]*Buffer),
	}
}

func (r *Recorder) CreateBuffer(desc BufferDesc) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	size := desc.Size
	if size < len(desc.Data) {
		size = len(desc.Data)
	}
	buf := &Buffer{Kind: desc.Kind, Size: size}
	if desc.Data != nil {
		buf.Data = append([]byte(nil), desc.Data...)
	}
	r.buffers[r.next] = buf
	r.created++
	return r.next
}

func (r *Recorder) UpdateBuffer(h Handle, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf, ok := r.buffers[h]
	if !ok {
		return
	}
	buf.Data = append(buf.Data[:0], data...)
	if len(data) > buf.Size {
		buf.Size = len(data)
	}
	buf.Updates++
}

func (r *Recorder) ReleaseBuffer(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.buffers[h]; ok {
		delete(r.buffers, h)
		r.released++
	}
}

func (r *Recorder) Draw(h Handle, indexCount uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.draws = append(r.draws, DrawCall{Buffer: h, IndexCount: indexCount})
}

// Buffer returns a copy of the live buffer h.
func (r *Recorder) Buffer(h Handle) (Buffer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf, ok := r.buffers[h]
	if !ok {
		return Buffer{}, false
	}
	out := *buf
	out.Data = append([]byte(nil), buf.Data...)
	return out, true
}

// Live returns the number of buffers not yet released.
func (r *Recorder) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffers)
}

// Stats returns lifetime create and release counts.
func (r *Recorder) Stats() (created, released int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created, r.released
}

// Draws returns the calls recorded since the last Reset.
func (r *Recorder) Draws() []DrawCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DrawCall(nil), r.draws...)
}

// Reset clears recorded draw calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.draws = r.draws[:0]
	r.mu.Unlock()
}
