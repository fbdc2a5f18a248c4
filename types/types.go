package types

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

type VmProtection int32

func (v VmProtection) Read() bool {
	return (v & 0x01) != 0
}

func (v VmProtection) Write() bool {
	return (v & 0x02) != 0
}

func (v VmProtection) Execute() bool {
	return (v & 0x04) != 0
}

func (v VmProtection) String() string {
	var protStr string
	if v.Read() {
		protStr += "r"
	} else {
		protStr += "-"
	}
	if v.Write() {
		protStr += "w"
	} else {
		protStr += "-"
	}
	if v.Execute() {
		protStr += "x"
	} else {
		protStr += "-"
	}
	return protStr
}

// UUID is a macho uuid object
type UUID [16]byte

func (u UUID) String() string {
	return fmt.Sprintf("%02X%02X%02X%02X-%02X%02X-%02X%02X-%02X%02X-%02X%02X%02X%02X%02X%02X",
		u[0], u[1], u[2], u[3], u[4], u[5], u[6], u[7], u[8], u[9], u[10], u[11], u[12], u[13], u[14], u[15])
}

// Platform is a macho platform object
type Platform uint32

const (
	PlatformUnknown          Platform = 0
	PlatformMacOS            Platform = 1  // PLATFORM_MACOS
	PlatformIOS              Platform = 2  // PLATFORM_IOS
	PlatformTvOS             Platform = 3  // PLATFORM_TVOS
	PlatformWatchOS          Platform = 4  // PLATFORM_WATCHOS
	PlatformBridgeOS         Platform = 5  // PLATFORM_BRIDGEOS
	PlatformMacCatalyst      Platform = 6  // PLATFORM_MACCATALYST
	PlatformIOSSimulator     Platform = 7  // PLATFORM_IOSSIMULATOR
	PlatformTvOSSimulator    Platform = 8  // PLATFORM_TVOSSIMULATOR
	PlatformWatchOSSimulator Platform = 9  // PLATFORM_WATCHOSSIMULATOR
	PlatformDriverKit        Platform = 10 // PLATFORM_DRIVERKIT
	PlatformVisionOS         Platform = 11 // PLATFORM_VISIONOS
)

var platformStrings = []IntName{
	{uint32(PlatformUnknown), "unknown"},
	{uint32(PlatformMacOS), "macOS"},
	{uint32(PlatformIOS), "iOS"},
	{uint32(PlatformTvOS), "tvOS"},
	{uint32(PlatformWatchOS), "watchOS"},
	{uint32(PlatformBridgeOS), "bridgeOS"},
	{uint32(PlatformMacCatalyst), "macCatalyst"},
	{uint32(PlatformIOSSimulator), "iOS Simulator"},
	{uint32(PlatformTvOSSimulator), "tvOS Simulator"},
	{uint32(PlatformWatchOSSimulator), "watchOS Simulator"},
	{uint32(PlatformDriverKit), "DriverKit"},
	{uint32(PlatformVisionOS), "visionOS"},
}

func (p Platform) String() string { return StringName(uint32(p), platformStrings, false) }

// Version is a X.Y.Z version packed as xxxx.yy.zz nibbles.
type Version uint32

func (v Version) String() string {
	s := make([]byte, 4)
	binary.BigEndian.PutUint32(s, uint32(v))
	return fmt.Sprintf("%d.%d.%d", binary.BigEndian.Uint16(s[:2]), s[2], s[3])
}

type SrcVersion uint64

func (sv SrcVersion) String() string {
	a := sv >> 40
	b := (sv >> 30) & 0x3ff
	c := (sv >> 20) & 0x3ff
	d := (sv >> 10) & 0x3ff
	e := sv & 0x3ff
	return fmt.Sprintf("%d.%d.%d.%d.%d", a, b, c, d, e)
}

type IntName struct {
	I uint32
	S string
}

func StringName(i uint32, names []IntName, goSyntax bool) string {
	for _, n := range names {
		if n.I == i {
			if goSyntax {
				return "macho." + n.S
			}
			return n.S
		}
	}
	return "0x" + strconv.FormatUint(uint64(i), 16)
}

// PutAtMost16Bytes copies name into the 16 byte field at b, NUL padding it.
func PutAtMost16Bytes(b []byte, name string) {
	for i := 0; i < 16; i++ {
		if i < len(name) {
			b[i] = name[i]
		} else {
			b[i] = 0
		}
	}
}
