// Package render defines the renderer capability the scene talks to and an
// in-memory implementation of it.
package render

// Handle identifies a renderer buffer. Zero is never a valid handle, so a
// zeroed row owns nothing.
type Handle uint32

// Invalid is the zero handle.
const Invalid Handle = 0

type BufferKind uint8

const (
	BufferVertex BufferKind = iota + 1
	BufferIndex
	BufferConstant
	BufferTexture
)

func (k BufferKind) String() string {
	switch k {
	case BufferVertex:
		return "vertex"
	case BufferIndex:
		return "index"
	case BufferConstant:
		return "constant"
	case BufferTexture:
		return "texture"
	default:
		return "unknown"
	}
}

// BufferDesc describes a buffer to create. Data may be nil for dynamic
// buffers that are filled later with UpdateBuffer.
type BufferDesc struct {
	Kind BufferKind
	Size int
	Data []byte
}

// Renderer is the narrow GPU capability used by the scene: buffer lifetime,
// buffer updates and draw submission.
type Renderer interface {
	CreateBuffer(desc BufferDesc) Handle
	UpdateBuffer(h Handle, data []byte)
	ReleaseBuffer(h Handle)
	Draw(h Handle, indexCount uint32)
}
