package disasm

import "golang.org/x/arch/x86/x86asm"

// AMD64 disassembles x86_64 code.
type AMD64 struct{}

func (AMD64) Disassemble(addr uint64, code []byte, count int) ([]Instruction, error) {
	if len(code) == 0 {
		return nil, ErrNoInstructions
	}
	n := limit(count)
	var out []Instruction
	for off := 0; off < len(code) && len(out) < n; {
		pc := addr + uint64(off)
		inst, err := x86asm.Decode(code[off:], 64)
		if err != nil || inst.Len == 0 {
			out = append(out, Instruction{Address: pc, Bytes: code[off : off+1], Text: "(bad)", Invalid: true})
			off++
			continue
		}
		out = append(out, Instruction{
			Address: pc,
			Bytes:   code[off : off+inst.Len],
			Text:    x86asm.GNUSyntax(inst, pc, nil),
		})
		off += inst.Len
	}
	return out, nil
}
