package codesign

import (
	"encoding/binary"

	"github.com/appsworld/macho-dump/pkg/codesign/types"
	"github.com/appsworld/macho-dump/pkg/view"
	mtypes "github.com/appsworld/macho-dump/types"
)

// CodeDirectory object
type CodeDirectory struct {
	types.CodeDirectoryType
	ID     string
	TeamID string

	blob view.View
}

// ParseCodeDirectory decodes the CodeDirectory occupying blob, stored in
// order o. Every offset in the header is checked against blob itself.
func ParseCodeDirectory(blob view.View, o binary.ByteOrder) (*CodeDirectory, error) {
	if blob.Len() < types.CodeDirectoryHeaderSize {
		return nil, &mtypes.FormatError{Kind: mtypes.InvalidSection, Off: blob.Base(), Msg: "CodeDirectory header truncated", Val: blob.Len()}
	}

	cd := &CodeDirectory{blob: blob}
	c := view.NewCursor(blob, o)
	cd.Magic = types.Magic(c.Uint32())
	cd.Length = c.Uint32()
	cd.Version = types.CDVersion(c.Uint32())
	cd.Flags = types.CDFlag(c.Uint32())
	cd.HashOffset = c.Uint32()
	cd.IdentOffset = c.Uint32()
	cd.NSpecialSlots = c.Uint32()
	cd.NCodeSlots = c.Uint32()
	cd.CodeLimit = c.Uint32()
	cd.HashSize = c.Uint8()
	cd.HashType = types.HashType(c.Uint8())
	cd.Platform = c.Uint8()
	cd.PageSize = c.Uint8()
	cd.Spare2 = c.Uint32()
	if cd.Version >= types.SUPPORTS_SCATTER {
		cd.ScatterOffset = c.Uint32()
	}
	if cd.Version >= types.SUPPORTS_TEAMID {
		cd.TeamOffset = c.Uint32()
	}
	if err := c.Err(); err != nil {
		return nil, &mtypes.FormatError{Kind: mtypes.InvalidSection, Off: blob.Base(), Msg: "CodeDirectory header truncated", Val: cd.Version}
	}

	id, err := blob.CString(uint64(cd.IdentOffset))
	if err != nil {
		return nil, &mtypes.FormatError{Kind: mtypes.InvalidSection, Off: blob.Base(), Msg: "CodeDirectory identOffset out of bounds", Val: cd.IdentOffset}
	}
	cd.ID = id

	if uint64(cd.HashOffset) > uint64(blob.Len()) {
		return nil, &mtypes.FormatError{Kind: mtypes.InvalidSection, Off: blob.Base(), Msg: "CodeDirectory hashOffset out of bounds", Val: cd.HashOffset}
	}

	if cd.TeamOffset != 0 {
		team, err := blob.CString(uint64(cd.TeamOffset))
		if err != nil {
			return nil, &mtypes.FormatError{Kind: mtypes.InvalidSection, Off: blob.Base(), Msg: "CodeDirectory teamOffset out of bounds", Val: cd.TeamOffset}
		}
		cd.TeamID = team
	}

	return cd, nil
}

// PageBytes returns the code page size, or 0 for a single infinite page.
func (cd *CodeDirectory) PageBytes() uint64 {
	if cd.PageSize == 0 || cd.PageSize >= 64 {
		return 0
	}
	return 1 << cd.PageSize
}

// SpecialSlotHash returns the hash stored in special slot n (1 based,
// counting backwards from hashOffset).
func (cd *CodeDirectory) SpecialSlotHash(n uint32) ([]byte, error) {
	size := uint64(cd.HashSize)
	back := uint64(n) * size
	if n == 0 || n > cd.NSpecialSlots || back > uint64(cd.HashOffset) {
		return nil, &mtypes.FormatError{Kind: mtypes.InvalidSection, Off: cd.blob.Base(), Msg: "special slot out of range", Val: n}
	}
	v, err := cd.blob.Slice(uint64(cd.HashOffset)-back, size)
	if err != nil {
		return nil, &mtypes.FormatError{Kind: mtypes.InvalidSection, Off: cd.blob.Base(), Msg: "special slot out of bounds", Val: n}
	}
	return v.Bytes(), nil
}

// CodeSlotHash returns the hash of code page n.
func (cd *CodeDirectory) CodeSlotHash(n uint32) ([]byte, error) {
	if n >= cd.NCodeSlots {
		return nil, &mtypes.FormatError{Kind: mtypes.InvalidSection, Off: cd.blob.Base(), Msg: "code slot out of range", Val: n}
	}
	size := uint64(cd.HashSize)
	v, err := cd.blob.Slice(uint64(cd.HashOffset)+uint64(n)*size, size)
	if err != nil {
		return nil, &mtypes.FormatError{Kind: mtypes.InvalidSection, Off: cd.blob.Base(), Msg: "code slot out of bounds", Val: n}
	}
	return v.Bytes(), nil
}
