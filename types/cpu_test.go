package types

import "testing"

func TestParseCPU(t *testing.T) {
	tests := []struct {
		in      string
		want    CPU
		wantErr bool
	}{
		{"arm64", CPUArm64, false},
		{"ARM64", CPUArm64, false},
		{"aarch64", CPUArm64, false},
		{"x86_64", CPUAmd64, false},
		{"amd64", CPUAmd64, false},
		{"i386", CPU386, false},
		{"arm64_32", CPUArm6432, false},
		{"z80", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseCPU(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCPU(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCPU(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}
