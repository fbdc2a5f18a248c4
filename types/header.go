package types

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// A FileHeader represents a Mach-O file header.
type FileHeader struct {
	Magic        Magic
	CPU          CPU
	SubCPU       CPUSubtype
	Type         HeaderFileType
	NCommands    uint32
	SizeCommands uint32
	Flags        HeaderFlag
	Reserved     uint32
}

// Put encodes the header into b in byte order o and returns the number of
// bytes written: 28 for a 32-bit header, 32 for a 64-bit one.
func (h *FileHeader) Put(b []byte, o binary.ByteOrder) int {
	o.PutUint32(b[0:], uint32(h.Magic))
	o.PutUint32(b[4:], uint32(h.CPU))
	o.PutUint32(b[8:], uint32(h.SubCPU))
	o.PutUint32(b[12:], uint32(h.Type))
	o.PutUint32(b[16:], h.NCommands)
	o.PutUint32(b[20:], h.SizeCommands)
	o.PutUint32(b[24:], uint32(h.Flags))
	if h.Magic == Magic32 {
		return FileHeaderSize32
	}
	o.PutUint32(b[28:], h.Reserved)
	return FileHeaderSize64
}

// Size returns the on-disk size of the header.
func (h *FileHeader) Size() int {
	if h.Magic == Magic64 {
		return FileHeaderSize64
	}
	return FileHeaderSize32
}

const (
	FileHeaderSize32 = 7 * 4
	FileHeaderSize64 = 8 * 4
)

type Magic uint32

const (
	Magic32  Magic = 0xfeedface
	Magic64  Magic = 0xfeedfacf
	Cigam32  Magic = 0xcefaedfe
	Cigam64  Magic = 0xcffaedfe
	MagicFat Magic = 0xcafebabe
	CigamFat Magic = 0xbebafeca
	// 64-bit offset variant of the fat header
	MagicFat64 Magic = 0xcafebabf
	CigamFat64 Magic = 0xbfbafeca
)

var magicStrings = []IntName{
	{uint32(Magic32), "32-bit MachO"},
	{uint32(Magic64), "64-bit MachO"},
	{uint32(Cigam32), "32-bit MachO (swapped)"},
	{uint32(Cigam64), "64-bit MachO (swapped)"},
	{uint32(MagicFat), "Fat MachO"},
	{uint32(CigamFat), "Fat MachO (swapped)"},
	{uint32(MagicFat64), "Fat64 MachO"},
	{uint32(CigamFat64), "Fat64 MachO (swapped)"},
}

func (i Magic) Int() uint32      { return uint32(i) }
func (i Magic) String() string   { return StringName(uint32(i), magicStrings, false) }
func (i Magic) GoString() string { return StringName(uint32(i), magicStrings, true) }

// IsFat reports whether i is one of the fat/universal magics in either order.
func (i Magic) IsFat() bool {
	switch i {
	case MagicFat, CigamFat, MagicFat64, CigamFat64:
		return true
	}
	return false
}

// A HeaderFileType is the Mach-O file type, e.g. an object file, executable, or dynamic library.
type HeaderFileType uint32

const (
	MH_OBJECT      HeaderFileType = 0x1 /* relocatable object file */
	MH_EXECUTE     HeaderFileType = 0x2 /* demand paged executable file */
	MH_FVMLIB      HeaderFileType = 0x3 /* fixed VM shared library file */
	MH_CORE        HeaderFileType = 0x4 /* core file */
	MH_PRELOAD     HeaderFileType = 0x5 /* preloaded executable file */
	MH_DYLIB       HeaderFileType = 0x6 /* dynamically bound shared library */
	MH_DYLINKER    HeaderFileType = 0x7 /* dynamic link editor */
	MH_BUNDLE      HeaderFileType = 0x8 /* dynamically bound bundle file */
	MH_DYLIB_STUB  HeaderFileType = 0x9 /* shared library stub for static linking only, no section contents */
	MH_DSYM        HeaderFileType = 0xa /* companion file with only debug sections */
	MH_KEXT_BUNDLE HeaderFileType = 0xb /* x86_64 kexts */
	MH_FILESET     HeaderFileType = 0xc /* a file composed of other Mach-Os to be run in the same userspace sharing a single linkedit. */
)

var fileTypeStrings = []IntName{
	{uint32(MH_OBJECT), "OBJECT"},
	{uint32(MH_EXECUTE), "EXECUTE"},
	{uint32(MH_FVMLIB), "FVMLIB"},
	{uint32(MH_CORE), "CORE"},
	{uint32(MH_PRELOAD), "PRELOAD"},
	{uint32(MH_DYLIB), "DYLIB"},
	{uint32(MH_DYLINKER), "DYLINKER"},
	{uint32(MH_BUNDLE), "BUNDLE"},
	{uint32(MH_DYLIB_STUB), "DYLIB_STUB"},
	{uint32(MH_DSYM), "DSYM"},
	{uint32(MH_KEXT_BUNDLE), "KEXT_BUNDLE"},
	{uint32(MH_FILESET), "FILESET"},
}

func (t HeaderFileType) String() string   { return StringName(uint32(t), fileTypeStrings, false) }
func (t HeaderFileType) GoString() string { return StringName(uint32(t), fileTypeStrings, true) }

type HeaderFlag uint32

const (
	None                       HeaderFlag = 0x0
	NoUndefs                   HeaderFlag = 0x1
	IncrLink                   HeaderFlag = 0x2
	DyldLink                   HeaderFlag = 0x4
	BindAtLoad                 HeaderFlag = 0x8
	Prebound                   HeaderFlag = 0x10
	SplitSegs                  HeaderFlag = 0x20
	LazyInit                   HeaderFlag = 0x40
	TwoLevel                   HeaderFlag = 0x80
	ForceFlat                  HeaderFlag = 0x100
	NoMultiDefs                HeaderFlag = 0x200
	NoFixPrebinding            HeaderFlag = 0x400
	Prebindable                HeaderFlag = 0x800
	AllModsBound               HeaderFlag = 0x1000
	SubsectionsViaSymbols      HeaderFlag = 0x2000
	Canonical                  HeaderFlag = 0x4000
	WeakDefines                HeaderFlag = 0x8000
	BindsToWeak                HeaderFlag = 0x10000
	AllowStackExecution        HeaderFlag = 0x20000
	RootSafe                   HeaderFlag = 0x40000
	SetuidSafe                 HeaderFlag = 0x80000
	NoReexportedDylibs         HeaderFlag = 0x100000
	PIE                        HeaderFlag = 0x200000
	DeadStrippableDylib        HeaderFlag = 0x400000
	HasTLVDescriptors          HeaderFlag = 0x800000
	NoHeapExecution            HeaderFlag = 0x1000000
	AppExtensionSafe           HeaderFlag = 0x2000000
	NlistOutofsyncWithDyldinfo HeaderFlag = 0x4000000
	SimSupport                 HeaderFlag = 0x8000000
	DylibInCache               HeaderFlag = 0x80000000
)

var headerFlagStrings = []IntName{
	{uint32(NoUndefs), "NoUndefs"},
	{uint32(IncrLink), "IncrLink"},
	{uint32(DyldLink), "DyldLink"},
	{uint32(BindAtLoad), "BindAtLoad"},
	{uint32(Prebound), "Prebound"},
	{uint32(SplitSegs), "SplitSegs"},
	{uint32(LazyInit), "LazyInit"},
	{uint32(TwoLevel), "TwoLevel"},
	{uint32(ForceFlat), "ForceFlat"},
	{uint32(NoMultiDefs), "NoMultiDefs"},
	{uint32(NoFixPrebinding), "NoFixPrebinding"},
	{uint32(Prebindable), "Prebindable"},
	{uint32(AllModsBound), "AllModsBound"},
	{uint32(SubsectionsViaSymbols), "SubsectionsViaSymbols"},
	{uint32(Canonical), "Canonical"},
	{uint32(WeakDefines), "WeakDefines"},
	{uint32(BindsToWeak), "BindsToWeak"},
	{uint32(AllowStackExecution), "AllowStackExecution"},
	{uint32(RootSafe), "RootSafe"},
	{uint32(SetuidSafe), "SetuidSafe"},
	{uint32(NoReexportedDylibs), "NoReexportedDylibs"},
	{uint32(PIE), "PIE"},
	{uint32(DeadStrippableDylib), "DeadStrippableDylib"},
	{uint32(HasTLVDescriptors), "HasTLVDescriptors"},
	{uint32(NoHeapExecution), "NoHeapExecution"},
	{uint32(AppExtensionSafe), "AppExtensionSafe"},
	{uint32(NlistOutofsyncWithDyldinfo), "NlistOutofsyncWithDyldinfo"},
	{uint32(SimSupport), "SimSupport"},
	{uint32(DylibInCache), "DylibInCache"},
}

func (f HeaderFlag) None() bool {
	return f == 0
}

// List returns a string array of flag names
func (f HeaderFlag) List() []string {
	if f.None() {
		return []string{"None"}
	}
	var flags []string
	for _, n := range headerFlagStrings {
		if uint32(f)&n.I != 0 {
			flags = append(flags, n.S)
		}
	}
	return flags
}

func (f HeaderFlag) Flags() string {
	return strings.Join(f.List(), ", ")
}

func (h FileHeader) String() string {
	return fmt.Sprintf(
		"Magic         = %s\n"+
			"Type          = %s\n"+
			"CPU           = %s, %s\n"+
			"Commands      = %d (Size: %d)\n"+
			"Flags         = %s\n",
		h.Magic,
		h.Type,
		h.CPU, h.SubCPU.String(h.CPU),
		h.NCommands,
		h.SizeCommands,
		h.Flags.Flags(),
	)
}
