// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package macho decodes Mach-O and universal binaries held in memory: the
// header, the load command table, segments and sections, dylib dependencies
// and the embedded code signature. Every read is bounds checked against the
// image; malformed input produces a FormatError, never a panic.
//
// Mach-O header data structures
// Archived copy at:
// https://web.archive.org/web/20090819232456/http://developer.apple.com/documentation/DeveloperTools/Conceptual/MachORuntime/index.html
package macho

import (
	"github.com/appsworld/macho-dump/pkg/view"
	"github.com/appsworld/macho-dump/types"
)

// Regs386 is the Mach-O 386 register structure.
type Regs386 struct {
	AX    uint32
	BX    uint32
	CX    uint32
	DX    uint32
	DI    uint32
	SI    uint32
	BP    uint32
	SP    uint32
	SS    uint32
	FLAGS uint32
	IP    uint32
	CS    uint32
	DS    uint32
	ES    uint32
	FS    uint32
	GS    uint32
}

// RegsAMD64 is the Mach-O AMD64 register structure.
type RegsAMD64 struct {
	AX    uint64
	BX    uint64
	CX    uint64
	DX    uint64
	DI    uint64
	SI    uint64
	BP    uint64
	SP    uint64
	R8    uint64
	R9    uint64
	R10   uint64
	R11   uint64
	R12   uint64
	R13   uint64
	R14   uint64
	R15   uint64
	IP    uint64
	FLAGS uint64
	CS    uint64
	FS    uint64
	GS    uint64
}

// RegsARM is the Mach-O ARM register structure.
type RegsARM struct {
	R0   uint32
	R1   uint32
	R2   uint32
	R3   uint32
	R4   uint32
	R5   uint32
	R6   uint32
	R7   uint32
	R8   uint32
	R9   uint32
	R10  uint32
	R11  uint32
	R12  uint32
	SP   uint32
	LR   uint32
	PC   uint32
	CPSR uint32
}

// RegsARM64 is the Mach-O ARM 64 register structure.
type RegsARM64 struct {
	X    [29]uint64 /* General purpose registers x0-x28 */
	FP   uint64     /* Frame pointer x29 */
	LR   uint64     /* Link register x30 */
	SP   uint64     /* Stack pointer x31 */
	PC   uint64     /* Program counter */
	CPSR uint32     /* Current program status register */
	PAD  uint32     /* Same size for 32-bit or 64-bit clients */
}

// thread state flavors
const (
	x86ThreadState32 = 1
	x86ThreadState64 = 4
	armThreadState   = 1
	armThreadState64 = 6
)

// threadPC returns the initial program counter of the first thread state in
// an LC_THREAD or LC_UNIXTHREAD command.
func (f *File) threadPC(l Load) (uint64, bool) {
	c := f.Cursor(l.data)
	c.Skip(types.LoadCmdHeaderSize)
	flavor := c.Uint32()
	count := c.Uint32()
	if c.Err() != nil {
		return 0, false
	}
	state, err := l.data.Slice(c.Offset(), uint64(count)*4)
	if err != nil {
		return 0, false
	}

	switch {
	case f.CPU == types.CPUAmd64 && flavor == x86ThreadState64:
		var r RegsAMD64
		if err := readState(f, state, &r); err != nil {
			return 0, false
		}
		return r.IP, true
	case f.CPU == types.CPU386 && flavor == x86ThreadState32:
		var r Regs386
		if err := readState(f, state, &r); err != nil {
			return 0, false
		}
		return uint64(r.IP), true
	case f.CPU == types.CPUArm64 && flavor == armThreadState64:
		var r RegsARM64
		if err := readState(f, state, &r); err != nil {
			return 0, false
		}
		return r.PC, true
	case f.CPU == types.CPUArm && flavor == armThreadState:
		var r RegsARM
		if err := readState(f, state, &r); err != nil {
			return 0, false
		}
		return uint64(r.PC), true
	}
	return 0, false
}

func readState(f *File, state view.View, regs any) error {
	return Load{data: state}.read(f.ByteOrder, regs)
}
