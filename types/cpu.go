package types

import (
	"fmt"
	"strings"
)

// A CPU is a Mach-O cpu type.
type CPU uint32

const (
	cpuArchMask = 0xff000000 //  mask for architecture bits
	cpuArch64   = 0x01000000 // 64 bit ABI
	cpuArch6432 = 0x02000000 // ABI for 64-bit hardware with 32-bit types; LP32
)

const (
	CPUVax     CPU = 1
	CPUMC680x0 CPU = 6
	CPU386     CPU = 7
	CPUAmd64   CPU = CPU386 | cpuArch64
	CPUMC98000 CPU = 10
	CPUHppa    CPU = 11
	CPUArm     CPU = 12
	CPUArm64   CPU = CPUArm | cpuArch64
	CPUArm6432 CPU = CPUArm | cpuArch6432
	CPUMC88000 CPU = 13
	CPUSparc   CPU = 14
	CPUI860    CPU = 15
	CPUPpc     CPU = 18
	CPUPpc64   CPU = CPUPpc | cpuArch64
)

var cpuStrings = []IntName{
	{uint32(CPUVax), "VAX"},
	{uint32(CPUMC680x0), "MC680x0"},
	{uint32(CPU386), "i386"},
	{uint32(CPUAmd64), "x86_64"},
	{uint32(CPUMC98000), "MC98000"},
	{uint32(CPUHppa), "HPPA"},
	{uint32(CPUArm), "ARM"},
	{uint32(CPUArm64), "ARM64"},
	{uint32(CPUArm6432), "ARM64_32"},
	{uint32(CPUMC88000), "MC88000"},
	{uint32(CPUSparc), "SPARC"},
	{uint32(CPUI860), "i860"},
	{uint32(CPUPpc), "PowerPC"},
	{uint32(CPUPpc64), "PowerPC 64"},
}

func (i CPU) String() string   { return StringName(uint32(i), cpuStrings, false) }
func (i CPU) GoString() string { return StringName(uint32(i), cpuStrings, true) }

var cpuAliases = map[string]CPU{
	"amd64":   CPUAmd64,
	"aarch64": CPUArm64,
	"arm64e":  CPUArm64,
	"x86":     CPU386,
	"ppc":     CPUPpc,
	"ppc64":   CPUPpc64,
}

// ParseCPU returns the cpu type named s. It accepts the names printed by
// String in any case, and a few common aliases such as amd64.
func ParseCPU(s string) (CPU, error) {
	if c, ok := cpuAliases[strings.ToLower(s)]; ok {
		return c, nil
	}
	for _, n := range cpuStrings {
		if strings.EqualFold(n.S, s) {
			return CPU(n.I), nil
		}
	}
	return 0, fmt.Errorf("unknown cpu type %q", s)
}

// Is64 reports whether the cpu type carries the 64-bit ABI bit.
func (i CPU) Is64() bool { return i&cpuArchMask == cpuArch64 }

type CPUSubtype uint32

// X86 subtypes
const (
	CPUSubtypeX86All   CPUSubtype = 3
	CPUSubtypeX86Arch1 CPUSubtype = 4
	CPUSubtypeX86_64H  CPUSubtype = 8
)

// ARM subtypes
const (
	CPUSubtypeArmAll    CPUSubtype = 0
	CPUSubtypeArmV4T    CPUSubtype = 5
	CPUSubtypeArmV6     CPUSubtype = 6
	CPUSubtypeArmV5Tej  CPUSubtype = 7
	CPUSubtypeArmXscale CPUSubtype = 8
	CPUSubtypeArmV7     CPUSubtype = 9
	CPUSubtypeArmV7F    CPUSubtype = 10
	CPUSubtypeArmV7S    CPUSubtype = 11
	CPUSubtypeArmV7K    CPUSubtype = 12
	CPUSubtypeArmV8     CPUSubtype = 13
	CPUSubtypeArmV6M    CPUSubtype = 14
	CPUSubtypeArmV7M    CPUSubtype = 15
	CPUSubtypeArmV7Em   CPUSubtype = 16
	CPUSubtypeArmV8M    CPUSubtype = 17
)

// ARM64 subtypes
const (
	CPUSubtypeArm64All CPUSubtype = 0
	CPUSubtypeArm64V8  CPUSubtype = 1
	CPUSubtypeArm64E   CPUSubtype = 2
)

// Capability bits used in the definition of cpu_subtype.
const (
	CpuSubtypeFeatureMask      CPUSubtype = 0xff000000                         /* mask for feature flags */
	CpuSubtypeMask                        = CPUSubtype(^CpuSubtypeFeatureMask) /* mask for cpu subtype */
	CpuSubtypeLib64                       = 0x80000000                         /* 64 bit libraries */
	CpuSubtypePtrauthAbi                  = 0x80000000                         /* pointer authentication with versioned ABI */
	CpuSubtypeArm64PtrAuthMask            = 0x0f000000
)

var cpuSubtypeX86Strings = []IntName{
	{uint32(CPUSubtypeX86All), "x86_64"},
	{uint32(CPUSubtypeX86Arch1), "x86 Arch1"},
	{uint32(CPUSubtypeX86_64H), "x86_64 (Haswell)"},
}
var cpuSubtypeArmStrings = []IntName{
	{uint32(CPUSubtypeArmAll), "ArmAll"},
	{uint32(CPUSubtypeArmV4T), "ARMv4t"},
	{uint32(CPUSubtypeArmV6), "ARMv6"},
	{uint32(CPUSubtypeArmV5Tej), "ARMv5tej"},
	{uint32(CPUSubtypeArmXscale), "ARMXScale"},
	{uint32(CPUSubtypeArmV7), "ARMv7"},
	{uint32(CPUSubtypeArmV7F), "ARMv7f"},
	{uint32(CPUSubtypeArmV7S), "ARMv7s"},
	{uint32(CPUSubtypeArmV7K), "ARMv7k"},
	{uint32(CPUSubtypeArmV8), "ARMv8"},
	{uint32(CPUSubtypeArmV6M), "ARMv6m"},
	{uint32(CPUSubtypeArmV7M), "ARMv7m"},
	{uint32(CPUSubtypeArmV7Em), "ARMv7em"},
	{uint32(CPUSubtypeArmV8M), "ARMv8m"},
}
var cpuSubtypeArm64Strings = []IntName{
	{uint32(CPUSubtypeArm64All), "ARM64"},
	{uint32(CPUSubtypeArm64V8), "ARM64 (ARMv8)"},
	{uint32(CPUSubtypeArm64E), "ARM64e (ARMv8.3)"},
}

// String returns the subtype name, which depends on the cpu it belongs to.
func (st CPUSubtype) String(cpu CPU) string {
	switch cpu {
	case CPU386, CPUAmd64:
		return StringName(uint32(st&CpuSubtypeMask), cpuSubtypeX86Strings, false)
	case CPUArm:
		return StringName(uint32(st&CpuSubtypeMask), cpuSubtypeArmStrings, false)
	case CPUArm64:
		name := StringName(uint32(st&CpuSubtypeMask), cpuSubtypeArm64Strings, false)
		if caps := st & CpuSubtypeFeatureMask; caps&CpuSubtypePtrauthAbi != 0 {
			name += fmt.Sprintf(" caps: PAC%02d", (caps&CpuSubtypeArm64PtrAuthMask)>>24)
		}
		return name
	}
	return "UNKNOWN"
}
