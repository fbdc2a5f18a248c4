package macho

import (
	"encoding/binary"
	"fmt"

	"github.com/appsworld/macho-dump/pkg/view"
	"github.com/appsworld/macho-dump/types"
)

// A FatArchHeader describes one slice of a universal binary, normalized to
// 64-bit offsets.
type FatArchHeader struct {
	CPU    types.CPU
	SubCPU types.CPUSubtype
	Offset uint64
	Size   uint64
	Align  uint32
}

func (h FatArchHeader) String() string {
	return fmt.Sprintf("%s (%s) offset=%#x size=%#x align=2^%d", h.CPU, h.SubCPU.String(h.CPU), h.Offset, h.Size, h.Align)
}

// A FatArch is a decoded slice of a universal binary.
type FatArch struct {
	FatArchHeader
	*File
}

// A FatFile is a universal binary.
type FatFile struct {
	Magic  types.Magic
	Arches []FatArch
}

// NewFatFile decodes every slice of the universal binary in dat.
func NewFatFile(dat []byte) (*FatFile, error) {
	v := view.New(dat)
	magic, err := readMagic(v)
	if err != nil {
		return nil, err
	}
	if !magic.IsFat() {
		return nil, formatError(types.InvalidMagic, 0, "not a universal binary", magic)
	}
	hdrs, err := readFatArches(v, magic)
	if err != nil {
		return nil, err
	}

	ff := &FatFile{Magic: magic}
	for _, h := range hdrs {
		f, err := h.open(v, FileConfig{})
		if err != nil {
			return nil, err
		}
		ff.Arches = append(ff.Arches, FatArch{FatArchHeader: h, File: f})
	}
	return ff, nil
}

// Arch returns the first slice for cpu, or nil.
func (ff *FatFile) Arch(cpu types.CPU) *File {
	for _, a := range ff.Arches {
		if a.CPU == cpu {
			return a.File
		}
	}
	return nil
}

// readFatArches reads the fat_arch table and checks that every slice lies
// inside v.
func readFatArches(v view.View, magic types.Magic) ([]FatArchHeader, error) {
	// magic was read little-endian, so the usual big-endian header reads
	// back as a CIGAM.
	var bo binary.ByteOrder = binary.BigEndian
	if magic == types.MagicFat || magic == types.MagicFat64 {
		bo = binary.LittleEndian
	}
	is64 := magic == types.MagicFat64 || magic == types.CigamFat64

	narch, err := v.Uint32(bo, 4)
	if err != nil {
		return nil, formatError(types.ReadFailed, 4, "fat header truncated", v.Len())
	}
	if narch == 0 {
		return nil, formatError(types.InvalidSegment, 4, "universal binary has no architectures", nil)
	}

	entsz := uint64(types.FatArchSize)
	if is64 {
		entsz = types.FatArch64Size
	}
	tbl, err := v.Slice(types.FatHeaderSize, uint64(narch)*entsz)
	if err != nil {
		return nil, formatError(types.ReadFailed, types.FatHeaderSize, "fat arch table exceeds file size", narch)
	}

	arches := make([]FatArchHeader, 0, narch)
	c := view.NewCursor(tbl, bo)
	for i := uint32(0); i < narch; i++ {
		var h FatArchHeader
		h.CPU = types.CPU(c.Uint32())
		h.SubCPU = types.CPUSubtype(c.Uint32())
		if is64 {
			h.Offset = c.Uint64()
			h.Size = c.Uint64()
			h.Align = c.Uint32()
			c.Skip(4)
		} else {
			h.Offset = uint64(c.Uint32())
			h.Size = uint64(c.Uint32())
			h.Align = c.Uint32()
		}
		if !v.In(h.Offset, h.Size) {
			return nil, formatError(types.InvalidSegment, tbl.Base()+int64(uint64(i)*entsz), "fat arch slice exceeds file size", h)
		}
		arches = append(arches, h)
	}
	if err := c.Err(); err != nil {
		return nil, formatError(types.ReadFailed, types.FatHeaderSize, "failed to read fat arch table", err)
	}
	return arches, nil
}

// open decodes the slice described by h. The slice is rebased so that every
// offset of the returned File is relative to the start of the slice.
func (h FatArchHeader) open(v view.View, cfg FileConfig) (*File, error) {
	s, err := v.Slice(h.Offset, h.Size)
	if err != nil {
		return nil, formatError(types.InvalidSegment, 0, "fat arch slice exceeds file size", h)
	}
	f, err := newFile(view.New(s.Bytes()), cfg)
	if err != nil {
		return nil, err
	}
	f.fat = true
	f.FatOffset = int64(h.Offset)
	return f, nil
}
