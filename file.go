package macho

// High level access to low level data structures.

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/appsworld/macho-dump/pkg/view"
	"github.com/appsworld/macho-dump/types"
)

// A File represents a decoded thin Mach-O image. It owns the image bytes;
// everything derived from it (loads, segments, blobs) is a bounded view into
// the same buffer.
type File struct {
	types.FileHeader
	Context
	Loads []Load

	// Path is the file the image was read from, if any.
	Path string
	// FatOffset is the offset of the image inside its universal binary.
	FatOffset int64

	fat bool
	img view.View
}

// FileConfig is a MachO file config object
type FileConfig struct {
	// Path is recorded on the File and used to expand @executable_path.
	Path string
	// Arch selects a slice of a universal binary. Zero selects the first.
	Arch types.CPU
}

// Open reads the named file into memory and decodes it.
func Open(name string, config ...FileConfig) (*File, error) {
	dat, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, formatError(types.FileNotFound, 0, err.Error(), nil)
		}
		return nil, formatError(types.ReadFailed, 0, err.Error(), nil)
	}
	var cfg FileConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	cfg.Path = name
	return NewFile(dat, cfg)
}

// NewFile decodes the Mach-O image in dat. A universal binary yields its
// first slice, or the slice matching FileConfig.Arch.
func NewFile(dat []byte, config ...FileConfig) (*File, error) {
	var cfg FileConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	v := view.New(dat)
	magic, err := readMagic(v)
	if err != nil {
		return nil, err
	}

	if magic.IsFat() {
		arches, err := readFatArches(v, magic)
		if err != nil {
			return nil, err
		}
		arch := arches[0]
		if cfg.Arch != 0 {
			found := false
			for _, a := range arches {
				if a.CPU == cfg.Arch {
					arch, found = a, true
					break
				}
			}
			if !found {
				return nil, fmt.Errorf("universal binary does not contain a %s slice", cfg.Arch)
			}
		}
		return arch.open(v, cfg)
	}

	return newFile(v, cfg)
}

func readMagic(v view.View) (types.Magic, error) {
	m, err := v.Uint32(binary.LittleEndian, 0)
	if err != nil {
		return 0, formatError(types.ReadFailed, 0, "file too small to hold a magic number", v.Len())
	}
	return types.Magic(m), nil
}

// newFile decodes a thin image occupying all of img.
func newFile(img view.View, cfg FileConfig) (*File, error) {
	magic, err := readMagic(img)
	if err != nil {
		return nil, err
	}
	if magic.IsFat() {
		return nil, formatError(types.InvalidMagic, img.Base(), "nested universal binary", magic)
	}

	f := &File{Path: cfg.Path, img: img}
	var ok bool
	if f.Context, ok = contextFor(magic); !ok {
		return nil, formatError(types.InvalidMagic, img.Base(), "invalid magic number", fmt.Sprintf("%#08x", uint32(magic)))
	}

	hdr, err := img.Slice(0, f.HeaderSize())
	if err != nil {
		return nil, formatError(types.ReadFailed, 0, "file too small for mach_header", img.Len())
	}
	c := f.Cursor(hdr)
	f.Magic = types.Magic(c.Uint32())
	f.CPU = types.CPU(c.Uint32())
	f.SubCPU = types.CPUSubtype(c.Uint32())
	f.Type = types.HeaderFileType(c.Uint32())
	f.NCommands = c.Uint32()
	f.SizeCommands = c.Uint32()
	f.Flags = types.HeaderFlag(c.Uint32())
	if f.Is64 {
		f.Reserved = c.Uint32()
	}
	if err := c.Err(); err != nil {
		return nil, formatError(types.ReadFailed, 0, "failed to read mach_header", err)
	}

	if err := f.parseLoads(); err != nil {
		return nil, err
	}
	return f, nil
}

// parseLoads walks the load command region. A region larger than the image
// fails the whole parse; a single bad command ends the walk and keeps what was
// read before it.
func (f *File) parseLoads() error {
	hdrsz := f.HeaderSize()
	region, err := f.img.Slice(hdrsz, uint64(f.SizeCommands))
	if err != nil {
		return formatError(types.InvalidSegment, int64(hdrsz), "load commands exceed file size", f.SizeCommands)
	}

	var off uint64
	for i := uint32(0); i < f.NCommands && off < uint64(region.Len()); i++ {
		cmd, err1 := f.Uint32(region, off)
		siz, err2 := f.Uint32(region, off+4)
		if err1 != nil || err2 != nil {
			log.WithFields(log.Fields{"index": i, "offset": region.Base() + int64(off)}).Debug("load command header truncated")
			break
		}
		if siz < types.LoadCmdHeaderSize {
			log.WithFields(log.Fields{"index": i, "cmdsize": siz}).Debug("invalid command block size")
			break
		}
		raw, err := region.Slice(off, uint64(siz))
		if err != nil {
			log.WithFields(log.Fields{"index": i, "cmd": types.LoadCmd(cmd), "cmdsize": siz}).Debug("load command runs past command region")
			break
		}
		f.Loads = append(f.Loads, Load{
			Cmd:    types.LoadCmd(cmd),
			Len:    siz,
			Offset: raw.Base(),
			data:   raw,
		})
		off += uint64(siz)
	}

	if n := uint32(len(f.Loads)); n != f.NCommands {
		log.WithFields(log.Fields{"ncmds": f.NCommands, "parsed": n}).Debug("load command walk stopped early")
	}
	return nil
}

// IsFat reports whether the image was taken from a universal binary.
func (f *File) IsFat() bool { return f.fat }

// Len returns the size of the image in bytes.
func (f *File) Len() int { return f.img.Len() }

// Bytes returns the image. It must not be modified.
func (f *File) Bytes() []byte { return f.img.Bytes() }

// PutHeader re-encodes the mach_header and every load command. Segment
// commands are rebuilt from their decoded form; everything else is copied.
// The result has the size of the header plus sizeofcmds.
func (f *File) PutHeader() []byte {
	hdrsz := f.HeaderSize()
	b := make([]byte, hdrsz+uint64(f.SizeCommands))
	f.FileHeader.Put(b, f.ByteOrder)

	off := hdrsz
	for _, l := range f.Loads {
		dst := b[off : off+uint64(l.Len)]
		copy(dst, l.Raw())
		if s, err := f.decodeSegment(l); err == nil {
			s.put(dst, f.ByteOrder)
		}
		off += uint64(l.Len)
	}
	return b
}

func pad(length int) string {
	if length > 0 {
		return strings.Repeat(" ", length)
	}
	return " "
}

// LoadsString returns a string representation of all the MachO's load commands
func (f *File) LoadsString() string {
	var loadsStr string
	for i, l := range f.Loads {
		loadsStr += fmt.Sprintf("%03d: %s%s%d\n", i, l.Cmd, pad(28-len(l.Cmd.String())), l.Len)
	}
	return loadsStr
}

func (f *File) String() string {
	return f.FileHeader.String() + f.LoadsString()
}
