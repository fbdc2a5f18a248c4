// Package codesign decodes the embedded code signature referenced by a
// Mach-O LC_CODE_SIGNATURE command. Decoding is structural only: no hash is
// checked and nothing is verified.
package codesign

import (
	"encoding/binary"

	"github.com/apex/log"
	"github.com/appsworld/macho-dump/pkg/codesign/types"
	"github.com/appsworld/macho-dump/pkg/view"
	mtypes "github.com/appsworld/macho-dump/types"
)

// CodeSignature is a decoded embedded signature SuperBlob.
type CodeSignature struct {
	types.SbHeader
	// Offset is the image offset of the SuperBlob.
	Offset int64
	// Blobs has one entry per index entry, in index order.
	Blobs []Blob
	// ByteOrder is the order the signature was stored in; big-endian
	// unless only the image order yields a valid SuperBlob magic.
	ByteOrder binary.ByteOrder
	// CodeDirectory is the primary (slot 0) CodeDirectory, if any.
	CodeDirectory *CodeDirectory
	// CodeDirectoryErr is set when the slot 0 CodeDirectory failed to
	// decode. The blob itself stays in Blobs.
	CodeDirectoryErr error
}

// A Blob is one classified SuperBlob index entry.
type Blob struct {
	Type   types.SlotType
	Kind   types.BlobKind
	Offset uint32 // relative to the SuperBlob
	Magic  types.Magic
	Length uint32
	// Truncated is set when the blob header or body does not fit inside the
	// SuperBlob; Magic and Length are only meaningful when the header fit.
	Truncated bool

	data view.View
}

// Data returns the whole blob, header included, or nil for truncated blobs.
func (b Blob) Data() []byte {
	if b.Truncated {
		return nil
	}
	return b.data.Bytes()
}

// ImageOffset returns the offset of the blob in the image.
func (b Blob) ImageOffset(cs *CodeSignature) int64 {
	return cs.Offset + int64(b.Offset)
}

// signatureOrder picks the order the SuperBlob magic decodes under:
// big-endian first, then the image order.
func signatureOrder(region view.View, image binary.ByteOrder) (binary.ByteOrder, types.Magic, error) {
	be, err := region.Uint32(binary.BigEndian, 0)
	if err != nil {
		return nil, 0, err
	}
	if types.Magic(be) == types.MAGIC_EMBEDDED_SIGNATURE || image == nil {
		return binary.BigEndian, types.Magic(be), nil
	}
	if m, _ := region.Uint32(image, 0); types.Magic(m) == types.MAGIC_EMBEDDED_SIGNATURE {
		return image, types.Magic(m), nil
	}
	return binary.BigEndian, types.Magic(be), nil
}

// ParseCodeSignature parses the LC_CODE_SIGNATURE data. region must be the
// exact {dataoff, datasize} range of the image, and image is the byte order
// of the Mach-O header, tried when the signature is not big-endian.
//
// Only a missing or unreadable SuperBlob header or index table is an error.
// Problems inside one blob are recorded on that blob.
func ParseCodeSignature(region view.View, image binary.ByteOrder) (*CodeSignature, error) {
	cs := &CodeSignature{Offset: region.Base()}

	bo, magic, err := signatureOrder(region, image)
	if err != nil {
		return nil, &mtypes.FormatError{Kind: mtypes.NoCodeSignature, Off: region.Base(), Msg: "SuperBlob header truncated"}
	}
	if magic != types.MAGIC_EMBEDDED_SIGNATURE {
		return nil, &mtypes.FormatError{Kind: mtypes.NoCodeSignature, Off: region.Base(), Msg: "invalid SuperBlob magic", Val: magic}
	}
	cs.ByteOrder = bo

	c := view.NewCursor(region, bo)
	cs.Magic = types.Magic(c.Uint32())
	cs.Length = c.Uint32()
	cs.Count = c.Uint32()
	if err := c.Err(); err != nil {
		return nil, &mtypes.FormatError{Kind: mtypes.NoCodeSignature, Off: region.Base(), Msg: "SuperBlob header truncated"}
	}

	sb := region.Clamp(uint64(cs.Length))

	idx, err := sb.Slice(types.SbHeaderSize, uint64(cs.Count)*types.BlobIndexSize)
	if err != nil {
		return nil, &mtypes.FormatError{Kind: mtypes.InvalidSection, Off: sb.Base(), Msg: "blob index table exceeds SuperBlob", Val: cs.Count}
	}

	cs.Blobs = make([]Blob, 0, cs.Count)
	ic := view.NewCursor(idx, bo)
	for i := uint32(0); i < cs.Count; i++ {
		b := Blob{
			Type:   types.SlotType(ic.Uint32()),
			Offset: ic.Uint32(),
		}
		b.Kind = b.Type.Kind()

		hdr, err := sb.Slice(uint64(b.Offset), types.BlobHeaderSize)
		if err != nil {
			log.WithFields(log.Fields{"index": i, "offset": b.Offset}).Debug("blob header outside SuperBlob")
			b.Truncated = true
			cs.Blobs = append(cs.Blobs, b)
			continue
		}
		hc := view.NewCursor(hdr, bo)
		b.Magic = types.Magic(hc.Uint32())
		b.Length = hc.Uint32()

		if b.Length < types.BlobHeaderSize {
			b.Truncated = true
		} else if b.data, err = sb.Slice(uint64(b.Offset), uint64(b.Length)); err != nil {
			log.WithFields(log.Fields{"index": i, "offset": b.Offset, "length": b.Length}).Debug("blob runs past SuperBlob")
			b.Truncated = true
		}

		if b.Type == types.CSSLOT_CODEDIRECTORY && b.Magic == types.MAGIC_CODEDIRECTORY && cs.CodeDirectory == nil && cs.CodeDirectoryErr == nil {
			cdv, _ := sb.SliceFrom(uint64(b.Offset))
			cs.CodeDirectory, cs.CodeDirectoryErr = ParseCodeDirectory(cdv.Clamp(uint64(b.Length)), bo)
			if cs.CodeDirectoryErr != nil {
				log.WithError(cs.CodeDirectoryErr).WithField("index", i).Debug("skipping CodeDirectory")
			}
		}

		cs.Blobs = append(cs.Blobs, b)
	}

	return cs, nil
}

// Find returns the first intact blob with the given slot type and magic.
func (cs *CodeSignature) Find(typ types.SlotType, magic types.Magic) (Blob, bool) {
	for _, b := range cs.Blobs {
		if b.Type == typ && b.Magic == magic && !b.Truncated {
			return b, true
		}
	}
	return Blob{}, false
}
