package view

import "encoding/binary"

// A Cursor reads consecutive fields from a View. The first failed read is
// remembered and every later read returns zero values; check Err once after
// a run of reads.
type Cursor struct {
	v   View
	o   binary.ByteOrder
	off uint64
	err error
}

// NewCursor returns a cursor at the start of v reading in byte order o.
func NewCursor(v View, o binary.ByteOrder) *Cursor {
	return &Cursor{v: v, o: o}
}

// Offset returns the current position relative to the start of the view.
func (c *Cursor) Offset() uint64 { return c.off }

// Err returns the first error encountered.
func (c *Cursor) Err() error { return c.err }

func (c *Cursor) Uint8() uint8 {
	if c.err != nil {
		return 0
	}
	x, err := c.v.Uint8(c.off)
	if err != nil {
		c.err = err
		return 0
	}
	c.off++
	return x
}

func (c *Cursor) Uint32() uint32 {
	if c.err != nil {
		return 0
	}
	x, err := c.v.Uint32(c.o, c.off)
	if err != nil {
		c.err = err
		return 0
	}
	c.off += 4
	return x
}

func (c *Cursor) Uint64() uint64 {
	if c.err != nil {
		return 0
	}
	x, err := c.v.Uint64(c.o, c.off)
	if err != nil {
		c.err = err
		return 0
	}
	c.off += 8
	return x
}

// String reads a fixed n byte name field.
func (c *Cursor) String(n uint64) string {
	if c.err != nil {
		return ""
	}
	s, err := c.v.FixedString(c.off, n)
	if err != nil {
		c.err = err
		return ""
	}
	c.off += n
	return s
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n uint64) {
	if c.err != nil {
		return
	}
	if !c.v.In(c.off, n) {
		c.err = &RangeError{Off: c.off, Len: n, Size: c.v.Len()}
		return
	}
	c.off += n
}

// Bytes returns the next n bytes. The slice aliases the underlying buffer.
func (c *Cursor) Bytes(n uint64) []byte {
	if c.err != nil {
		return nil
	}
	s, err := c.v.Slice(c.off, n)
	if err != nil {
		c.err = err
		return nil
	}
	c.off += n
	return s.Bytes()
}
