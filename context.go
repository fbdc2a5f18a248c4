package macho

import (
	"encoding/binary"

	"github.com/appsworld/macho-dump/pkg/view"
	"github.com/appsworld/macho-dump/types"
)

// Context is the decoding context derived from the header magic. It is
// immutable and passed by value to every field read.
type Context struct {
	ByteOrder binary.ByteOrder
	Is64      bool
	// Swapped is set for images stored big-endian.
	Swapped bool
}

func contextFor(m types.Magic) (Context, bool) {
	switch m {
	case types.Magic32:
		return Context{ByteOrder: binary.LittleEndian}, true
	case types.Magic64:
		return Context{ByteOrder: binary.LittleEndian, Is64: true}, true
	case types.Cigam32:
		return Context{ByteOrder: binary.BigEndian, Swapped: true}, true
	case types.Cigam64:
		return Context{ByteOrder: binary.BigEndian, Is64: true, Swapped: true}, true
	}
	return Context{}, false
}

// HeaderSize returns the size of the fixed mach_header.
func (c Context) HeaderSize() uint64 {
	if c.Is64 {
		return types.FileHeaderSize64
	}
	return types.FileHeaderSize32
}

func (c Context) Uint32(v view.View, off uint64) (uint32, error) {
	return v.Uint32(c.ByteOrder, off)
}

func (c Context) Uint64(v view.View, off uint64) (uint64, error) {
	return v.Uint64(c.ByteOrder, off)
}

// Cursor returns a cursor over v in the context byte order.
func (c Context) Cursor(v view.View) *view.Cursor {
	return view.NewCursor(v, c.ByteOrder)
}
