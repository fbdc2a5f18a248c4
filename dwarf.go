package macho

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/apex/log"
	"github.com/appsworld/macho-dump/types"
	"github.com/blacktop/go-dwarf"
)

// maxInflateRatio bounds the size a compressed debug section may claim
// relative to its compressed payload. Deflate tops out near 1032:1.
const maxInflateRatio = 1032

// debugName returns the DWARF name of a __DWARF section: "info" for both
// __debug_info and __zdebug_info.
func debugName(sec *Section) string {
	if n, ok := strings.CutPrefix(sec.Name, "__zdebug_"); ok {
		return n
	}
	if n, ok := strings.CutPrefix(sec.Name, "__debug_"); ok {
		return n
	}
	return ""
}

// debugData returns the contents of sec, inflating a "ZLIB" framed payload.
func debugData(sec *Section) ([]byte, error) {
	b := sec.Data()
	if len(b) < 12 || string(b[:4]) != "ZLIB" {
		return b, nil
	}
	size := binary.BigEndian.Uint64(b[4:12])
	if limit := uint64(len(b)-12) * maxInflateRatio; size > limit {
		return nil, formatError(types.InvalidSection, int64(sec.Offset), "compressed "+sec.Name+" claims more bytes than it can hold", size)
	}
	zr, err := zlib.NewReader(bytes.NewReader(b[12:]))
	if err != nil {
		return nil, formatError(types.InvalidSection, int64(sec.Offset), "bad zlib header in "+sec.Name, err)
	}
	defer zr.Close()
	out := make([]byte, size)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, formatError(types.InvalidSection, int64(sec.Offset), "short zlib stream in "+sec.Name, err)
	}
	return out, nil
}

// DWARF returns the debug information in the __DWARF segment.
func (f *File) DWARF() (*dwarf.Data, error) {
	seg := f.Segment("__DWARF")
	if seg == nil {
		return nil, formatError(types.InvalidSection, 0, "no __DWARF segment", nil)
	}

	sections := map[string][]byte{}
	var typeUnits []*Section
	for _, sec := range seg.Sections {
		switch name := debugName(sec); name {
		case "abbrev", "info", "line", "ranges", "str":
			b, err := debugData(sec)
			if err != nil {
				return nil, err
			}
			sections[name] = b
		case "types":
			typeUnits = append(typeUnits, sec)
		}
	}

	d, err := dwarf.New(sections["abbrev"], nil, nil, sections["info"], sections["line"], nil, sections["ranges"], sections["str"])
	if err != nil {
		return nil, formatError(types.InvalidSection, int64(seg.Offset), "invalid DWARF", err)
	}
	for i, sec := range typeUnits {
		b, err := debugData(sec)
		if err != nil {
			return nil, err
		}
		if err := d.AddTypes(fmt.Sprintf("types-%d", i), b); err != nil {
			return nil, formatError(types.InvalidSection, int64(sec.Offset), "invalid DWARF type unit", err)
		}
	}
	return d, nil
}

// A CompileUnit summarizes one DW_TAG_compile_unit.
type CompileUnit struct {
	Offset   dwarf.Offset
	Name     string
	Producer string
	CompDir  string
	Language int64
}

// CompileUnits lists the compile units in the DWARF debug information.
func (f *File) CompileUnits() ([]CompileUnit, error) {
	d, err := f.DWARF()
	if err != nil {
		return nil, err
	}
	var units []CompileUnit
	r := d.Reader()
	for {
		e, err := r.Next()
		if err != nil {
			return units, formatError(types.InvalidSection, 0, "invalid DWARF entry", err)
		}
		if e == nil {
			break
		}
		if e.Tag != dwarf.TagCompileUnit {
			r.SkipChildren()
			continue
		}
		cu := CompileUnit{Offset: e.Offset}
		cu.Name, _ = e.Val(dwarf.AttrName).(string)
		cu.Producer, _ = e.Val(dwarf.AttrProducer).(string)
		cu.CompDir, _ = e.Val(dwarf.AttrCompDir).(string)
		cu.Language, _ = e.Val(dwarf.AttrLanguage).(int64)
		units = append(units, cu)
		log.WithFields(log.Fields{"name": cu.Name, "offset": cu.Offset}).Debug("compile unit")
		r.SkipChildren()
	}
	return units, nil
}
