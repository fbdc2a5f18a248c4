package disasm

import (
	"errors"
	"strings"
	"testing"

	"github.com/appsworld/macho-dump/types"
)

func TestNew(t *testing.T) {
	tests := []struct {
		cpu     types.CPU
		wantErr bool
	}{
		{types.CPUArm64, false},
		{types.CPUAmd64, false},
		{types.CPUArm, true},
		{types.CPUPpc, true},
	}
	for _, tt := range tests {
		_, err := New(tt.cpu)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%s) error = %v, wantErr %v", tt.cpu, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrUnsupportedCPU) {
			t.Errorf("New(%s) error = %v; want ErrUnsupportedCPU", tt.cpu, err)
		}
	}
}

func TestARM64(t *testing.T) {
	code := []byte{
		0x1f, 0x20, 0x03, 0xd5, // nop
		0x1f, 0x20, 0x03, 0xd5, // nop
		0xc0, 0x03, 0x5f, 0xd6, // ret
		0x00, 0x00, 0x00, 0x00, // udf
		0xaa, // trailing partial word
	}
	insts, err := ARM64{}.Disassemble(0x100004000, code, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(insts) != 4 {
		t.Fatalf("got %d instructions; want 4", len(insts))
	}
	if insts[0].Text != "nop" || insts[1].Address != 0x100004004 {
		t.Errorf("unexpected listing: %v", insts[:2])
	}
	if !strings.HasPrefix(insts[2].Text, "ret") {
		t.Errorf("insts[2] = %q; want ret", insts[2].Text)
	}
	if got := insts[0].OpCodeByteString(); got != "1f 20 03 d5" {
		t.Errorf("OpCodeByteString() = %q", got)
	}

	insts, err = ARM64{}.Disassemble(0, code, 2)
	if err != nil || len(insts) != 2 {
		t.Errorf("count 2: got %d instructions, %v", len(insts), err)
	}

	if _, err := (ARM64{}).Disassemble(0, code[:3], 0); !errors.Is(err, ErrNoInstructions) {
		t.Errorf("short input error = %v; want ErrNoInstructions", err)
	}
}

func TestAMD64(t *testing.T) {
	code := []byte{0x90, 0x90, 0x90}
	insts, err := AMD64{}.Disassemble(0x1000, code, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(insts) != 3 {
		t.Fatalf("got %d instructions; want 3", len(insts))
	}
	for i, inst := range insts {
		if inst.Text != "nop" || inst.Address != 0x1000+uint64(i) || len(inst.Bytes) != 1 {
			t.Errorf("insts[%d] = %+v", i, inst)
		}
	}
	if _, err := (AMD64{}).Disassemble(0, nil, 0); !errors.Is(err, ErrNoInstructions) {
		t.Errorf("empty input error = %v; want ErrNoInstructions", err)
	}
}
