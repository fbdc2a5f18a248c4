// Package view provides bounds-checked, read-only windows over an in-memory
// Mach-O image. Every sub-range is derived through Slice, which fails closed
// instead of reading outside the backing buffer.
package view

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
)

var (
	// ErrOutOfBounds is matched by every RangeError.
	ErrOutOfBounds = errors.New("range out of bounds")
	// ErrNoTerminator is returned by CString when no NUL byte is found.
	ErrNoTerminator = errors.New("string is not NUL terminated")
)

// A RangeError describes a read that would leave the view.
type RangeError struct {
	Off  uint64 // requested offset, relative to the view
	Len  uint64 // requested length
	Size int    // length of the view
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range [%#x:+%#x] out of bounds of %#x byte view", e.Off, e.Len, e.Size)
}

func (e *RangeError) Is(target error) bool { return target == ErrOutOfBounds }

// A View is an immutable window into a byte buffer.
// The zero value is an empty view.
type View struct {
	buf  []byte
	base int64
}

// New returns a view over all of buf starting at image offset 0.
func New(buf []byte) View {
	return View{buf: buf}
}

// Len returns the number of bytes in the view.
func (v View) Len() int { return len(v.buf) }

// Base returns the offset of the first byte of v in the buffer it was
// originally created from.
func (v View) Base() int64 { return v.base }

// Bytes returns the bytes of the view. The result aliases the backing buffer
// and must not be modified.
func (v View) Bytes() []byte { return v.buf }

// In reports whether [off, off+n) lies inside the view.
func (v View) In(off, n uint64) bool {
	end, carry := bits.Add64(off, n, 0)
	return carry == 0 && end <= uint64(len(v.buf))
}

// Slice returns the sub-view [off, off+n).
func (v View) Slice(off, n uint64) (View, error) {
	if !v.In(off, n) {
		return View{}, &RangeError{Off: off, Len: n, Size: len(v.buf)}
	}
	return View{
		buf:  v.buf[off : off+n : off+n],
		base: v.base + int64(off),
	}, nil
}

// SliceFrom returns the sub-view from off to the end of v.
func (v View) SliceFrom(off uint64) (View, error) {
	if off > uint64(len(v.buf)) {
		return View{}, &RangeError{Off: off, Size: len(v.buf)}
	}
	return v.Slice(off, uint64(len(v.buf))-off)
}

// Clamp returns the first n bytes of v, or all of v when it is shorter.
func (v View) Clamp(n uint64) View {
	if n >= uint64(len(v.buf)) {
		return v
	}
	return View{buf: v.buf[:n:n], base: v.base}
}

func (v View) Uint8(off uint64) (uint8, error) {
	if !v.In(off, 1) {
		return 0, &RangeError{Off: off, Len: 1, Size: len(v.buf)}
	}
	return v.buf[off], nil
}

func (v View) Uint16(o binary.ByteOrder, off uint64) (uint16, error) {
	if !v.In(off, 2) {
		return 0, &RangeError{Off: off, Len: 2, Size: len(v.buf)}
	}
	return o.Uint16(v.buf[off:]), nil
}

func (v View) Uint32(o binary.ByteOrder, off uint64) (uint32, error) {
	if !v.In(off, 4) {
		return 0, &RangeError{Off: off, Len: 4, Size: len(v.buf)}
	}
	return o.Uint32(v.buf[off:]), nil
}

func (v View) Uint64(o binary.ByteOrder, off uint64) (uint64, error) {
	if !v.In(off, 8) {
		return 0, &RangeError{Off: off, Len: 8, Size: len(v.buf)}
	}
	return o.Uint64(v.buf[off:]), nil
}

// CString reads a NUL-terminated string starting at off. The terminator must
// lie inside the view.
func (v View) CString(off uint64) (string, error) {
	if off >= uint64(len(v.buf)) {
		return "", &RangeError{Off: off, Len: 1, Size: len(v.buf)}
	}
	i := bytes.IndexByte(v.buf[off:], 0)
	if i < 0 {
		return "", ErrNoTerminator
	}
	return string(v.buf[off : off+uint64(i)]), nil
}

// FixedString reads an n byte field that is NUL padded but not necessarily
// NUL terminated, such as a segment name.
func (v View) FixedString(off, n uint64) (string, error) {
	s, err := v.Slice(off, n)
	if err != nil {
		return "", err
	}
	b := s.buf
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}

// Swap32 reverses the byte order of x.
func Swap32(x uint32) uint32 { return bits.ReverseBytes32(x) }

// Swap64 reverses the byte order of x.
func Swap64(x uint64) uint64 { return bits.ReverseBytes64(x) }
