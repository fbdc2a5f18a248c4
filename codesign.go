package macho

import (
	"github.com/appsworld/macho-dump/pkg/codesign"
	ctypes "github.com/appsworld/macho-dump/pkg/codesign/types"
	"github.com/appsworld/macho-dump/pkg/view"
	"github.com/appsworld/macho-dump/types"
)

// CodeSignature decodes the SuperBlob referenced by the first
// LC_CODE_SIGNATURE command.
func (f *File) CodeSignature() (*codesign.CodeSignature, error) {
	l, ok := f.firstLoad(types.LC_CODE_SIGNATURE)
	if !ok {
		return nil, formatError(types.NoCodeSignature, 0, "no LC_CODE_SIGNATURE load command", nil)
	}
	var cmd types.CodeSignatureCmd
	if err := l.read(f.ByteOrder, &cmd); err != nil {
		return nil, formatError(types.NoCodeSignature, l.Offset, "LC_CODE_SIGNATURE truncated", err)
	}
	region, err := f.img.Slice(uint64(cmd.Offset), uint64(cmd.Size))
	if err != nil {
		return nil, formatError(types.NoCodeSignature, l.Offset, "code signature exceeds file size", cmd.Offset)
	}
	return codesign.ParseCodeSignature(region, f.ByteOrder)
}

// An EntitlementBlob is the location of the entitlements property list
// inside the image. The contents are not decoded.
type EntitlementBlob struct {
	// Offset is the image offset of the payload, past the blob header.
	Offset int64
	Length uint64

	data view.View
}

// Data returns the raw entitlements. The slice aliases the image.
func (e *EntitlementBlob) Data() []byte { return e.data.Bytes() }

const (
	entitlementsSlot  = ctypes.CSSLOT_ENTITLEMENTS
	entitlementsMagic = ctypes.MAGIC_EMBEDDED_ENTITLEMENTS
)

// Entitlements locates the XML entitlements blob (slot 5).
func (f *File) Entitlements() (*EntitlementBlob, error) {
	cs, err := f.CodeSignature()
	if err != nil {
		return nil, err
	}
	return f.findEntitlements(cs, entitlementsSlot, entitlementsMagic)
}

// EntitlementsDER locates the DER encoded entitlements blob (slot 7).
func (f *File) EntitlementsDER() (*EntitlementBlob, error) {
	cs, err := f.CodeSignature()
	if err != nil {
		return nil, err
	}
	return f.findEntitlements(cs, ctypes.CSSLOT_ENTITLEMENTS_DER, ctypes.MAGIC_EMBEDDED_ENTITLEMENTS_DER)
}

func (f *File) findEntitlements(cs *codesign.CodeSignature, typ ctypes.SlotType, magic ctypes.Magic) (*EntitlementBlob, error) {
	b, ok := cs.Find(typ, magic)
	if !ok {
		return nil, formatError(types.NoCodeSignature, cs.Offset, "no entitlements blob", typ)
	}
	off := b.ImageOffset(cs) + ctypes.BlobHeaderSize
	n := uint64(b.Length) - ctypes.BlobHeaderSize
	data, err := f.img.Slice(uint64(off), n)
	if err != nil {
		return nil, formatError(types.NoCodeSignature, off, "entitlements blob exceeds file size", n)
	}
	return &EntitlementBlob{Offset: off, Length: n, data: data}, nil
}
