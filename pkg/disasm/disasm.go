// Package disasm turns machine code into a bounded list of instructions.
// It is the disassembly engine used by macho.File.Disassemble and backs it
// with golang.org/x/arch, so no cgo is needed.
package disasm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/appsworld/macho-dump/types"
)

// DefaultCount is the number of instructions decoded when no count is given.
const DefaultCount = 100

var (
	// ErrUnsupportedCPU is returned by New for CPUs without an engine.
	ErrUnsupportedCPU = errors.New("unsupported cpu type")
	// ErrNoInstructions is returned when the input is too short to hold a
	// single instruction.
	ErrNoInstructions = errors.New("no instructions decoded")
)

// An Instruction is one decoded instruction. Undecodable words are kept with
// a .long (arm64) or (bad) (x86) mnemonic so the listing stays contiguous.
type Instruction struct {
	Address uint64 `json:"address"`
	Bytes   []byte `json:"-"`
	Text    string `json:"instruction"`
	Invalid bool   `json:"invalid,omitempty"`
}

// OpCodeByteString returns the instruction bytes as space separated hex.
func (i Instruction) OpCodeByteString() string {
	var sb strings.Builder
	for j, b := range i.Bytes {
		if j > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", b)
	}
	return sb.String()
}

func (i Instruction) String() string {
	return fmt.Sprintf("%#08x:  %s\t%s", i.Address, i.OpCodeByteString(), i.Text)
}

func (i Instruction) MarshalJSON() ([]byte, error) {
	type alias Instruction
	return json.Marshal(struct {
		alias
		Opcode string `json:"opcode"`
	}{alias(i), i.OpCodeByteString()})
}

// A Disassembler decodes at most count instructions from code, which is
// mapped at addr. count <= 0 means DefaultCount.
type Disassembler interface {
	Disassemble(addr uint64, code []byte, count int) ([]Instruction, error)
}

// New returns the engine for cpu.
func New(cpu types.CPU) (Disassembler, error) {
	switch cpu {
	case types.CPUArm64:
		return ARM64{}, nil
	case types.CPUAmd64:
		return AMD64{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedCPU, cpu)
}

func limit(count int) int {
	if count <= 0 {
		return DefaultCount
	}
	return count
}
