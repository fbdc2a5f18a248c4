package macho

import (
	"github.com/appsworld/macho-dump/pkg/disasm"
	"github.com/appsworld/macho-dump/types"
)

// TextSection returns __TEXT,__text. It fails with ErrInvalidSection when the
// section is missing or holds no file data.
func (f *File) TextSection() (*Section, error) {
	sec := f.Section("__TEXT", "__text")
	if sec == nil {
		return nil, formatError(types.InvalidSection, 0, "missing section", "__TEXT.__text")
	}
	if sec.Flags.IsZerofill() || sec.Size == 0 {
		return nil, formatError(types.InvalidSection, int64(sec.Offset), "section has no file data", "__TEXT.__text")
	}
	return sec, nil
}

// Disassemble decodes up to count instructions from the start of
// __TEXT,__text. A nil d picks the engine for the image CPU.
func (f *File) Disassemble(d disasm.Disassembler, count int) ([]disasm.Instruction, error) {
	sec, err := f.TextSection()
	if err != nil {
		return nil, err
	}
	if d == nil {
		if d, err = disasm.New(f.CPU); err != nil {
			return nil, formatError(types.DisassemblyFailed, 0, err.Error(), nil)
		}
	}
	insts, err := d.Disassemble(sec.Addr, sec.Data(), count)
	if err != nil {
		return nil, formatError(types.DisassemblyFailed, int64(sec.Offset), err.Error(), nil)
	}
	return insts, nil
}
