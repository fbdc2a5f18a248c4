package macho

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/apex/log"
	"github.com/appsworld/macho-dump/pkg/view"
	"github.com/appsworld/macho-dump/types"
)

// A Load is one load command, kept as a bounded view of its raw bytes.
// Commands that are not understood are kept all the same.
type Load struct {
	Cmd types.LoadCmd
	Len uint32
	// Offset is the image offset of the command.
	Offset int64

	data view.View
}

func (l Load) Command() types.LoadCmd { return l.Cmd }
func (l Load) LoadSize() uint32       { return l.Len }

// Raw returns the command bytes, cmd and cmdsize included.
func (l Load) Raw() []byte { return l.data.Bytes() }

func (l Load) String() string {
	return l.Cmd.String() + ": " + LoadBytes(l.Raw()).String()
}

// read decodes the fixed part of the command into v.
func (l Load) read(bo binary.ByteOrder, v any) error {
	return binary.Read(bytes.NewReader(l.Raw()), bo, v)
}

// cstring reads the NUL terminated string at off inside the command. off
// must not point back into the fixed part of size min.
func (l Load) cstring(off uint32, min uint32) (string, error) {
	if off < min {
		return "", formatError(types.InvalidSection, l.Offset, "string offset inside fixed command", off)
	}
	s, err := l.data.CString(uint64(off))
	if err != nil {
		return "", formatError(types.InvalidSection, l.Offset, "string not terminated inside command", off)
	}
	return s, nil
}

// A LoadBytes is the uninterpreted bytes of a Mach-O load command.
type LoadBytes []byte

func (b LoadBytes) String() string {
	s := "["
	for i, a := range b {
		if i > 0 {
			s += " "
			if len(b) > 48 && i >= 16 {
				s += fmt.Sprintf("... (%d bytes)", len(b))
				break
			}
		}
		s += fmt.Sprintf("%x", a)
	}
	s += "]"
	return s
}

func (f *File) loadsOf(cmds ...types.LoadCmd) []Load {
	var out []Load
	for _, l := range f.Loads {
		for _, c := range cmds {
			if l.Cmd == c {
				out = append(out, l)
				break
			}
		}
	}
	return out
}

func (f *File) firstLoad(cmd types.LoadCmd) (Load, bool) {
	for _, l := range f.Loads {
		if l.Cmd == cmd {
			return l, true
		}
	}
	return Load{}, false
}

// UUID returns the LC_UUID value, or nil.
func (f *File) UUID() *types.UUID {
	l, ok := f.firstLoad(types.LC_UUID)
	if !ok {
		return nil
	}
	var cmd types.UUIDCmd
	if err := l.read(f.ByteOrder, &cmd); err != nil {
		log.WithError(err).Debug("failed to read LC_UUID")
		return nil
	}
	return &cmd.UUID
}

// A BuildVersion is the minimum OS and SDK the image was built for.
type BuildVersion struct {
	Cmd      types.LoadCmd
	Platform types.Platform
	Minos    types.Version
	Sdk      types.Version
	NumTools uint32
}

func (b *BuildVersion) String() string {
	return fmt.Sprintf("Platform: %s, SDK: %s, MinOS: %s", b.Platform, b.Sdk, b.Minos)
}

var versionMinPlatform = map[types.LoadCmd]types.Platform{
	types.LC_VERSION_MIN_MACOSX:   types.PlatformMacOS,
	types.LC_VERSION_MIN_IPHONEOS: types.PlatformIOS,
	types.LC_VERSION_MIN_TVOS:     types.PlatformTvOS,
	types.LC_VERSION_MIN_WATCHOS:  types.PlatformWatchOS,
}

// BuildVersion returns the LC_BUILD_VERSION command, falling back to the
// older LC_VERSION_MIN_* commands. It returns nil when neither is present.
func (f *File) BuildVersion() *BuildVersion {
	if l, ok := f.firstLoad(types.LC_BUILD_VERSION); ok {
		var cmd types.BuildVersionCmd
		if err := l.read(f.ByteOrder, &cmd); err == nil {
			return &BuildVersion{
				Cmd:      cmd.LoadCmd,
				Platform: cmd.Platform,
				Minos:    cmd.Minos,
				Sdk:      cmd.Sdk,
				NumTools: cmd.NumTools,
			}
		}
	}
	for _, l := range f.loadsOf(types.LC_VERSION_MIN_MACOSX, types.LC_VERSION_MIN_IPHONEOS, types.LC_VERSION_MIN_TVOS, types.LC_VERSION_MIN_WATCHOS) {
		var cmd types.VersionMinCmd
		if err := l.read(f.ByteOrder, &cmd); err != nil {
			continue
		}
		return &BuildVersion{
			Cmd:      cmd.LoadCmd,
			Platform: versionMinPlatform[cmd.LoadCmd],
			Minos:    cmd.Version,
			Sdk:      cmd.Sdk,
		}
	}
	return nil
}

// SourceVersion returns the LC_SOURCE_VERSION value, or nil.
func (f *File) SourceVersion() *types.SrcVersion {
	l, ok := f.firstLoad(types.LC_SOURCE_VERSION)
	if !ok {
		return nil
	}
	var cmd types.SourceVersionCmd
	if err := l.read(f.ByteOrder, &cmd); err != nil {
		return nil
	}
	return &cmd.Version
}

// Rpaths returns the LC_RPATH paths in load order. Malformed commands are
// skipped.
func (f *File) Rpaths() []string {
	var paths []string
	for _, l := range f.loadsOf(types.LC_RPATH) {
		var cmd types.RpathCmd
		if err := l.read(f.ByteOrder, &cmd); err != nil {
			continue
		}
		p, err := l.cstring(cmd.Path, types.RpathCmdSize)
		if err != nil {
			log.WithError(err).Debug("skipping LC_RPATH")
			continue
		}
		paths = append(paths, p)
	}
	return paths
}

// DylinkerPath returns the path of the dynamic linker named by
// LC_LOAD_DYLINKER, or "".
func (f *File) DylinkerPath() string {
	l, ok := f.firstLoad(types.LC_LOAD_DYLINKER)
	if !ok {
		return ""
	}
	var cmd types.DylinkerCmd
	if err := l.read(f.ByteOrder, &cmd); err != nil {
		return ""
	}
	name, err := l.cstring(cmd.Name, types.DylinkerCmdSize)
	if err != nil {
		return ""
	}
	return name
}

// An EntryPoint is where execution starts.
type EntryPoint struct {
	Cmd types.LoadCmd
	// Offset is the __TEXT offset of main() for LC_MAIN.
	Offset uint64
	// PC is the initial program counter for LC_UNIXTHREAD.
	PC        uint64
	StackSize uint64
}

// EntryPoint returns LC_MAIN, or the program counter of LC_UNIXTHREAD for
// images that predate it. It returns nil when neither can be decoded.
func (f *File) EntryPoint() *EntryPoint {
	if l, ok := f.firstLoad(types.LC_MAIN); ok {
		var cmd types.EntryPointCmd
		if err := l.read(f.ByteOrder, &cmd); err == nil {
			return &EntryPoint{Cmd: cmd.LoadCmd, Offset: cmd.Offset, StackSize: cmd.StackSize}
		}
	}
	if l, ok := f.firstLoad(types.LC_UNIXTHREAD); ok {
		if pc, ok := f.threadPC(l); ok {
			return &EntryPoint{Cmd: l.Cmd, PC: pc}
		}
	}
	return nil
}

// DylibID returns the LC_ID_DYLIB of a dylib, or nil.
func (f *File) DylibID() *Dylib {
	l, ok := f.firstLoad(types.LC_ID_DYLIB)
	if !ok {
		return nil
	}
	d, err := f.decodeDylib(l)
	if err != nil {
		return nil
	}
	return &d
}
