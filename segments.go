package macho

import (
	"encoding/binary"
	"fmt"

	"github.com/apex/log"
	"github.com/appsworld/macho-dump/pkg/view"
	"github.com/appsworld/macho-dump/types"
)

// A SegmentHeader is the header for a Mach-O 32-bit or 64-bit load segment command.
type SegmentHeader struct {
	types.LoadCmd
	Len     uint32
	Name    string
	Addr    uint64
	Memsz   uint64
	Offset  uint64
	Filesz  uint64
	Maxprot types.VmProtection
	Prot    types.VmProtection
	Nsect   uint32
	Flag    types.SegFlag
}

func (s *SegmentHeader) String() string {
	return fmt.Sprintf(
		"Seg %s, len=%#x, addr=%#x, memsz=%#x, offset=%#x, filesz=%#x, maxprot=%#x, prot=%#x, nsect=%d, flag=%#x",
		s.Name, s.Len, s.Addr, s.Memsz, s.Offset, s.Filesz, s.Maxprot, s.Prot, s.Nsect, s.Flag)
}

// A Segment represents a Mach-O 32-bit or 64-bit load segment command.
type Segment struct {
	SegmentHeader
	Sections []*Section

	data view.View
}

func (s *Segment) String() string {
	return fmt.Sprintf("%s: sz=0x%08x off=0x%08x-0x%08x addr=0x%09x-0x%09x %s/%s   %s%s%#x",
		s.LoadCmd, s.Filesz, s.Offset, s.Offset+s.Filesz, s.Addr, s.Addr+s.Memsz, s.Prot, s.Maxprot, s.Name, pad(20-len(s.Name)), uint32(s.Flag))
}

// Data returns the file contents of the segment. The slice aliases the image.
func (s *Segment) Data() []byte { return s.data.Bytes() }

func (s *Segment) Put32(b []byte, o binary.ByteOrder) int {
	o.PutUint32(b[0*4:], uint32(s.LoadCmd))
	o.PutUint32(b[1*4:], s.Len)
	types.PutAtMost16Bytes(b[2*4:], s.Name)
	o.PutUint32(b[6*4:], uint32(s.Addr))
	o.PutUint32(b[7*4:], uint32(s.Memsz))
	o.PutUint32(b[8*4:], uint32(s.Offset))
	o.PutUint32(b[9*4:], uint32(s.Filesz))
	o.PutUint32(b[10*4:], uint32(s.Maxprot))
	o.PutUint32(b[11*4:], uint32(s.Prot))
	o.PutUint32(b[12*4:], s.Nsect)
	o.PutUint32(b[13*4:], uint32(s.Flag))
	return 14 * 4
}

func (s *Segment) Put64(b []byte, o binary.ByteOrder) int {
	o.PutUint32(b[0*4:], uint32(s.LoadCmd))
	o.PutUint32(b[1*4:], s.Len)
	types.PutAtMost16Bytes(b[2*4:], s.Name)
	o.PutUint64(b[6*4+0*8:], s.Addr)
	o.PutUint64(b[6*4+1*8:], s.Memsz)
	o.PutUint64(b[6*4+2*8:], s.Offset)
	o.PutUint64(b[6*4+3*8:], s.Filesz)
	o.PutUint32(b[6*4+4*8:], uint32(s.Maxprot))
	o.PutUint32(b[7*4+4*8:], uint32(s.Prot))
	o.PutUint32(b[8*4+4*8:], s.Nsect)
	o.PutUint32(b[9*4+4*8:], uint32(s.Flag))
	return 10*4 + 4*8
}

// put writes the segment command and its section headers into b, which must
// hold s.Len bytes. Bytes after the last section are left untouched.
func (s *Segment) put(b []byte, o binary.ByteOrder) int {
	var n int
	if s.LoadCmd == types.LC_SEGMENT_64 {
		n = s.Put64(b, o)
		for _, sec := range s.Sections {
			n += sec.Put64(b[n:], o)
		}
		return n
	}
	n = s.Put32(b, o)
	for _, sec := range s.Sections {
		n += sec.Put32(b[n:], o)
	}
	return n
}

type SectionHeader struct {
	Name      string
	Seg       string
	Addr      uint64
	Size      uint64
	Offset    uint32
	Align     uint32
	Reloff    uint32
	Nreloc    uint32
	Flags     types.SectionFlag
	Reserved1 uint32
	Reserved2 uint32
	Reserved3 uint32 // only present if original was 64-bit
}

type Section struct {
	SectionHeader

	data view.View
}

// Data returns the file contents of the section; zerofill sections have none.
func (s *Section) Data() []byte { return s.data.Bytes() }

func (s *Section) Put32(b []byte, o binary.ByteOrder) int {
	types.PutAtMost16Bytes(b[0:], s.Name)
	types.PutAtMost16Bytes(b[16:], s.Seg)
	o.PutUint32(b[8*4:], uint32(s.Addr))
	o.PutUint32(b[9*4:], uint32(s.Size))
	o.PutUint32(b[10*4:], s.Offset)
	o.PutUint32(b[11*4:], s.Align)
	o.PutUint32(b[12*4:], s.Reloff)
	o.PutUint32(b[13*4:], s.Nreloc)
	o.PutUint32(b[14*4:], uint32(s.Flags))
	o.PutUint32(b[15*4:], s.Reserved1)
	o.PutUint32(b[16*4:], s.Reserved2)
	return 17 * 4
}

func (s *Section) Put64(b []byte, o binary.ByteOrder) int {
	types.PutAtMost16Bytes(b[0:], s.Name)
	types.PutAtMost16Bytes(b[16:], s.Seg)
	o.PutUint64(b[8*4+0*8:], s.Addr)
	o.PutUint64(b[8*4+1*8:], s.Size)
	o.PutUint32(b[8*4+2*8:], s.Offset)
	o.PutUint32(b[9*4+2*8:], s.Align)
	o.PutUint32(b[10*4+2*8:], s.Reloff)
	o.PutUint32(b[11*4+2*8:], s.Nreloc)
	o.PutUint32(b[12*4+2*8:], uint32(s.Flags))
	o.PutUint32(b[13*4+2*8:], s.Reserved1)
	o.PutUint32(b[14*4+2*8:], s.Reserved2)
	o.PutUint32(b[15*4+2*8:], s.Reserved3)
	return 16*4 + 2*8
}

func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// decodeSegment decodes an LC_SEGMENT or LC_SEGMENT_64 command and its
// sections. A segment whose file range or any non-zerofill section lies
// outside the image is rejected.
func (f *File) decodeSegment(l Load) (*Segment, error) {
	s := new(Segment)
	s.LoadCmd = l.Cmd
	s.Len = l.Len

	var hdrsz, sectsz uint64
	switch l.Cmd {
	case types.LC_SEGMENT:
		var seg32 types.Segment32
		if err := l.read(f.ByteOrder, &seg32); err != nil {
			return nil, formatError(types.InvalidSegment, l.Offset, "failed to read LC_SEGMENT", err)
		}
		s.Name = cstring(seg32.Name[0:])
		s.Addr = uint64(seg32.Addr)
		s.Memsz = uint64(seg32.Memsz)
		s.Offset = uint64(seg32.Offset)
		s.Filesz = uint64(seg32.Filesz)
		s.Maxprot = seg32.Maxprot
		s.Prot = seg32.Prot
		s.Nsect = seg32.Nsect
		s.Flag = seg32.Flag
		hdrsz, sectsz = types.Segment32Size, types.Section32Size
	case types.LC_SEGMENT_64:
		var seg64 types.Segment64
		if err := l.read(f.ByteOrder, &seg64); err != nil {
			return nil, formatError(types.InvalidSegment, l.Offset, "failed to read LC_SEGMENT_64", err)
		}
		s.Name = cstring(seg64.Name[0:])
		s.Addr = seg64.Addr
		s.Memsz = seg64.Memsz
		s.Offset = seg64.Offset
		s.Filesz = seg64.Filesz
		s.Maxprot = seg64.Maxprot
		s.Prot = seg64.Prot
		s.Nsect = seg64.Nsect
		s.Flag = seg64.Flag
		hdrsz, sectsz = types.Segment64Size, types.Section64Size
	default:
		return nil, fmt.Errorf("%s is not a segment command", l.Cmd)
	}

	var err error
	if s.data, err = f.img.Slice(s.Offset, s.Filesz); err != nil {
		return nil, formatError(types.InvalidSegment, l.Offset, "segment file range exceeds file size", s.Name)
	}

	sects, err := l.data.Slice(hdrsz, uint64(s.Nsect)*sectsz)
	if err != nil {
		return nil, formatError(types.InvalidSegment, l.Offset, "section headers exceed segment command", s.Nsect)
	}
	for i := uint64(0); i < uint64(s.Nsect); i++ {
		sv, _ := sects.Slice(i*sectsz, sectsz)
		sh, err := f.decodeSection(Load{data: sv}, l.Cmd == types.LC_SEGMENT_64)
		if err != nil {
			return nil, err
		}
		s.Sections = append(s.Sections, sh)
	}
	return s, nil
}

func (f *File) decodeSection(l Load, is64 bool) (*Section, error) {
	sh := new(Section)
	if is64 {
		var sh64 types.Section64
		if err := l.read(f.ByteOrder, &sh64); err != nil {
			return nil, formatError(types.InvalidSection, l.data.Base(), "failed to read Section64", err)
		}
		sh.Name = cstring(sh64.Name[0:])
		sh.Seg = cstring(sh64.Seg[0:])
		sh.Addr = sh64.Addr
		sh.Size = sh64.Size
		sh.Offset = sh64.Offset
		sh.Align = sh64.Align
		sh.Reloff = sh64.Reloff
		sh.Nreloc = sh64.Nreloc
		sh.Flags = sh64.Flags
		sh.Reserved1 = sh64.Reserve1
		sh.Reserved2 = sh64.Reserve2
		sh.Reserved3 = sh64.Reserve3
	} else {
		var sh32 types.Section32
		if err := l.read(f.ByteOrder, &sh32); err != nil {
			return nil, formatError(types.InvalidSection, l.data.Base(), "failed to read Section32", err)
		}
		sh.Name = cstring(sh32.Name[0:])
		sh.Seg = cstring(sh32.Seg[0:])
		sh.Addr = uint64(sh32.Addr)
		sh.Size = uint64(sh32.Size)
		sh.Offset = sh32.Offset
		sh.Align = sh32.Align
		sh.Reloff = sh32.Reloff
		sh.Nreloc = sh32.Nreloc
		sh.Flags = sh32.Flags
		sh.Reserved1 = sh32.Reserve1
		sh.Reserved2 = sh32.Reserve2
	}

	if !sh.Flags.IsZerofill() {
		var err error
		if sh.data, err = f.img.Slice(uint64(sh.Offset), sh.Size); err != nil {
			return nil, formatError(types.InvalidSection, l.data.Base(), "section file range exceeds file size", sh.Seg+"."+sh.Name)
		}
	}
	return sh, nil
}

// Segments returns the decoded segments in load order. Segments that fail the
// bounds checks are left out.
func (f *File) Segments() []*Segment {
	var segs []*Segment
	for _, l := range f.loadsOf(types.LC_SEGMENT, types.LC_SEGMENT_64) {
		s, err := f.decodeSegment(l)
		if err != nil {
			log.WithError(err).WithField("offset", l.Offset).Debug("skipping segment")
			continue
		}
		segs = append(segs, s)
	}
	return segs
}

// Segment returns the first Segment with the given name, or nil if no such segment exists.
func (f *File) Segment(name string) *Segment {
	for _, s := range f.Segments() {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Section returns the section with the given name in the given segment,
// or nil if no such section exists.
func (f *File) Section(segment, section string) *Section {
	s := f.Segment(segment)
	if s == nil {
		return nil
	}
	for _, sec := range s.Sections {
		if sec.Name == section {
			return sec
		}
	}
	return nil
}
