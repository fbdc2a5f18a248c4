// Package codesigntest lays out embedded code signatures for tests of the
// decoders that read them.
package codesigntest

import (
	"encoding/binary"

	"github.com/appsworld/macho-dump/pkg/codesign/types"
)

// A Blob is one SuperBlob entry. Data is the payload after the 8 byte blob
// header.
type Blob struct {
	Slot  types.SlotType
	Magic types.Magic
	Data  []byte
}

type writer struct {
	o   binary.AppendByteOrder
	out []byte
}

func (w *writer) u32(vs ...uint32) {
	for _, v := range vs {
		w.out = w.o.AppendUint32(w.out, v)
	}
}

// SuperBlob returns an embedded signature holding blobs back to back in
// the given order, every field written in o.
func SuperBlob(o binary.AppendByteOrder, blobs ...Blob) []byte {
	hdr := types.SbHeaderSize + types.BlobIndexSize*len(blobs)
	length := hdr
	for _, b := range blobs {
		length += types.BlobHeaderSize + len(b.Data)
	}

	w := &writer{o: o, out: make([]byte, 0, length)}
	w.u32(uint32(types.MAGIC_EMBEDDED_SIGNATURE), uint32(length), uint32(len(blobs)))
	off := hdr
	for _, b := range blobs {
		w.u32(uint32(b.Slot), uint32(off))
		off += types.BlobHeaderSize + len(b.Data)
	}
	for _, b := range blobs {
		w.u32(uint32(b.Magic), uint32(types.BlobHeaderSize+len(b.Data)))
		w.out = append(w.out, b.Data...)
	}
	return w.out
}

// CodeDirectory encodes the fixed header of cd in o, with the scatter and
// team offsets when its version carries them. The first 8 bytes are the
// blob header; callers append the identifier and hashes.
func CodeDirectory(cd types.CodeDirectoryType, o binary.AppendByteOrder) []byte {
	w := &writer{o: o}
	w.u32(uint32(cd.Magic), cd.Length, uint32(cd.Version), uint32(cd.Flags),
		cd.HashOffset, cd.IdentOffset, cd.NSpecialSlots, cd.NCodeSlots, cd.CodeLimit)
	w.out = append(w.out, cd.HashSize, uint8(cd.HashType), cd.Platform, cd.PageSize)
	w.u32(cd.Spare2)
	if cd.Version >= types.SUPPORTS_SCATTER {
		w.u32(cd.ScatterOffset)
	}
	if cd.Version >= types.SUPPORTS_TEAMID {
		w.u32(cd.TeamOffset)
	}
	return w.out
}
