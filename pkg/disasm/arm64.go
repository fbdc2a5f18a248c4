package disasm

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/arch/arm64/arm64asm"
)

// ARM64 disassembles AArch64 code.
type ARM64 struct{}

func (ARM64) Disassemble(addr uint64, code []byte, count int) ([]Instruction, error) {
	if len(code) < 4 {
		return nil, ErrNoInstructions
	}
	n := limit(count)
	out := make([]Instruction, 0, min(n, len(code)/4))
	for off := 0; off+4 <= len(code) && len(out) < n; off += 4 {
		raw := code[off : off+4]
		i := Instruction{Address: addr + uint64(off), Bytes: raw}
		inst, err := arm64asm.Decode(raw)
		if err != nil {
			i.Text = fmt.Sprintf(".long\t%#x", binary.LittleEndian.Uint32(raw))
			i.Invalid = true
		} else {
			i.Text = arm64asm.GNUSyntax(inst)
		}
		out = append(out, i)
	}
	return out, nil
}
