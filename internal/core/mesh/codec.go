package mesh

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rotisserie/eris"
)

const (
	// Magic opens every mesh file ("SMSH" little endian).
	Magic   uint32 = 0x48534d53
	Version uint32 = 1

	maxName = 1 << 12
)

type header struct {
	Magic      uint32
	Version    uint32
	Vertices   uint32
	Indices    uint32
	IndexWidth uint32
	NameLen    uint32
	Min        mgl32.Vec3
	Max        mgl32.Vec3
}

// Encode writes m in the binary mesh format. Indices are narrowed to 16 bit
// when the vertex count allows it.
func Encode(w io.Writer, m *Mesh) error {
	if len(m.Name) > maxName {
		return eris.Errorf("mesh: name of %d bytes exceeds %d", len(m.Name), maxName)
	}
	h := header{
		Magic:      Magic,
		Version:    Version,
		Vertices:   uint32(len(m.Vertices)),
		Indices:    uint32(len(m.Indices)),
		IndexWidth: uint32(m.IndexWidth()),
		NameLen:    uint32(len(m.Name)),
		Min:        m.Min,
		Max:        m.Max,
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return eris.Wrap(err, "write header")
	}
	if _, err := io.WriteString(w, m.Name); err != nil {
		return eris.Wrap(err, "write name")
	}
	if err := binary.Write(w, binary.LittleEndian, m.Vertices); err != nil {
		return eris.Wrap(err, "write vertices")
	}
	if h.IndexWidth == 2 {
		narrow := make([]uint16, len(m.Indices))
		for i, v := range m.Indices {
			narrow[i] = uint16(v)
		}
		return eris.Wrap(binary.Write(w, binary.LittleEndian, narrow), "write indices")
	}
	return eris.Wrap(binary.Write(w, binary.LittleEndian, m.Indices), "write indices")
}

// Decode reads a mesh written by Encode.
func Decode(r io.Reader) (*Mesh, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, eris.Wrap(err, "read header")
	}
	if h.Magic != Magic {
		return nil, eris.Wrapf(ErrBadMagic, "magic %#x", h.Magic)
	}
	if h.Version != Version {
		return nil, eris.Wrapf(ErrVersion, "version %d", h.Version)
	}
	if h.NameLen > maxName {
		return nil, eris.Errorf("mesh: name of %d bytes exceeds %d", h.NameLen, maxName)
	}

	name := make([]byte, h.NameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, eris.Wrap(err, "read name")
	}
	m := &Mesh{Name: string(name), Min: h.Min, Max: h.Max}

	m.Vertices = make([]Vertex, h.Vertices)
	if err := binary.Read(r, binary.LittleEndian, m.Vertices); err != nil {
		return nil, eris.Wrap(err, "read vertices")
	}

	m.Indices = make([]uint32, h.Indices)
	switch h.IndexWidth {
	case 2:
		narrow := make([]uint16, h.Indices)
		if err := binary.Read(r, binary.LittleEndian, narrow); err != nil {
			return nil, eris.Wrap(err, "read indices")
		}
		for i, v := range narrow {
			m.Indices[i] = uint32(v)
		}
	case 4:
		if err := binary.Read(r, binary.LittleEndian, m.Indices); err != nil {
			return nil, eris.Wrap(err, "read indices")
		}
	default:
		return nil, eris.Errorf("mesh: index width %d", h.IndexWidth)
	}
	return m, m.Validate()
}

func ReadFile(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open mesh %s", path)
	}
	defer f.Close()

	m, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, eris.Wrapf(err, "decode mesh %s", path)
	}
	return m, nil
}

// WriteFile replaces path with m through a temporary file.
func WriteFile(path string, m *Mesh) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return eris.Wrapf(err, "create mesh %s", tmp)
	}
	w := bufio.NewWriter(f)
	if err = Encode(w, m); err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return eris.Wrapf(err, "write mesh %s", path)
	}
	return eris.Wrapf(os.Rename(tmp, path), "replace mesh %s", path)
}
