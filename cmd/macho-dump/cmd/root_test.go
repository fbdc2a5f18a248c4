package cmd

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/appsworld/macho-dump/types"
)

// writeImage writes a 64-bit arm64 executable linking libSystem and returns
// its path.
func writeImage(t *testing.T) string {
	t.Helper()
	bo := binary.LittleEndian

	lib := "/usr/lib/libSystem.B.dylib"
	dylib := make([]byte, (types.DylibCmdSize+len(lib)+1+7)&^7)
	bo.PutUint32(dylib[0:], uint32(types.LC_LOAD_DYLIB))
	bo.PutUint32(dylib[4:], uint32(len(dylib)))
	bo.PutUint32(dylib[8:], types.DylibCmdSize)
	bo.PutUint32(dylib[16:], 0x05300000)
	bo.PutUint32(dylib[20:], 0x00010000)
	copy(dylib[types.DylibCmdSize:], lib)

	img := make([]byte, types.FileHeaderSize64+len(dylib))
	for i, v := range []uint32{uint32(types.Magic64), uint32(types.CPUArm64), 0, uint32(types.MH_EXECUTE), 1, uint32(len(dylib)), 0x00200085, 0} {
		bo.PutUint32(img[4*i:], v)
	}
	copy(img[types.FileHeaderSize64:], dylib)

	path := filepath.Join(t.TempDir(), "a.out")
	if err := os.WriteFile(path, img, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd(t *testing.T) {
	bin := writeImage(t)

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
		wantErr string
	}{
		{
			name: "help",
			args: []string{"--help"},
			want: []string{"macho-dump <path>", "--load-cmds", "--entitlements"},
		},
		{
			name:    "missing path",
			args:    nil,
			wantErr: "accepts 1 arg(s)",
		},
		{
			name: "no selectors prints everything",
			args: []string{bin},
			want: []string{"Header", "Load Commands", "Segments", "Dependencies", "Code Signature", "Entitlements"},
		},
		{
			name:    "dependencies only",
			args:    []string{"-d", bin},
			want:    []string{"Header", "/usr/lib/libSystem.B.dylib (compatibility 1.0.0, current 1328.0.0)"},
			notWant: []string{"Load Commands", "Code Signature"},
		},
		{
			name:    "combined short flags",
			args:    []string{"-lc", bin},
			want:    []string{"Load Commands", "LC_LOAD_DYLIB", "Code Signature", "no code signature"},
			notWant: []string{"Dependency Tree"},
		},
		{
			name: "all",
			args: []string{"-a", "-l", bin},
			want: []string{"Segments", "Entitlements"},
		},
		{
			name: "unknown flag ignored",
			args: []string{"--bogus", "-d", bin},
			want: []string{"libSystem.B.dylib"},
		},
		{
			name:    "only unknown flags prints everything",
			args:    []string{bin, "--bogus"},
			want:    []string{"Header", "Load Commands", "Segments", "Dependencies", "Code Signature", "Entitlements"},
			notWant: []string{"DWARF"},
		},
		{
			name:    "arch ignored for a thin file",
			args:    []string{"--arch", "x86_64", bin},
			want:    []string{"ARM64"},
			notWant: []string{"x86_64"},
		},
		{
			name:    "dwarf",
			args:    []string{"-d", "--dwarf", bin},
			want:    []string{"DWARF", "no __DWARF segment"},
			notWant: []string{"Code Signature"},
		},
		{
			name:    "bad arch",
			args:    []string{"--arch", "z80", bin},
			wantErr: "invalid --arch",
		},
		{
			name:    "missing file",
			args:    []string{filepath.Join(t.TempDir(), "nope")},
			wantErr: "failed to parse",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Execute() error = %v; want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output contains %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestRootCmdJSON(t *testing.T) {
	out, err := execute(t, "--json", "-d", writeImage(t))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	var got struct {
		Header       map[string]any   `json:"header"`
		Dependencies []map[string]any `json:"dependencies"`
		Segments     []any            `json:"segments"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if got.Header["cpu"] != "ARM64" {
		t.Errorf("header.cpu = %v; want ARM64", got.Header["cpu"])
	}
	if len(got.Dependencies) != 1 || got.Dependencies[0]["name"] != "/usr/lib/libSystem.B.dylib" {
		t.Errorf("dependencies = %v", got.Dependencies)
	}
	if got.Segments != nil {
		t.Errorf("segments printed without -s: %v", got.Segments)
	}
}

func TestRootCmdConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfg, []byte("dump:\n  entitlements: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "--config", cfg, writeImage(t))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "Entitlements") || strings.Contains(out, "Load Commands") {
		t.Errorf("config selection not applied:\n%s", out)
	}

	if _, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), writeImage(t)); err == nil {
		t.Error("Execute() with a missing config error = nil")
	}
}
