package entitlements

import (
	"testing"

	"github.com/blacktop/go-plist"
	"github.com/google/go-cmp/cmp"
)

const xmlEnts = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>com.apple.security.app-sandbox</key>
	<true/>
	<key>com.apple.security.application-groups</key>
	<array>
		<string>group.com.example.shared</string>
		<string>group.com.example.other</string>
	</array>
	<key>application-identifier</key>
	<string>ABCDE12345.com.example.app</string>
	<key>get-task-allow</key>
	<false/>
</dict>
</plist>
`

func TestDecode(t *testing.T) {
	ents, err := Decode([]byte(xmlEnts))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := []string{
		"application-identifier",
		"com.apple.security.app-sandbox",
		"com.apple.security.application-groups",
		"get-task-allow",
	}
	if diff := cmp.Diff(want, ents.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	if !ents.Bool("com.apple.security.app-sandbox") || ents.Bool(GetTaskAllow) || ents.Bool("missing") {
		t.Error("Bool() mismatch")
	}
	if diff := cmp.Diff([]string{"group.com.example.shared", "group.com.example.other"}, ents.Strings(ApplicationGroups)); diff != "" {
		t.Errorf("Strings() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ABCDE12345.com.example.app"}, ents.Strings("application-identifier")); diff != "" {
		t.Errorf("Strings(scalar) mismatch (-want +got):\n%s", diff)
	}

	// a binary plist of the same dictionary decodes to the same map
	out, err := plist.Marshal(map[string]any(ents), plist.BinaryFormat)
	if err != nil {
		t.Fatalf("plist.Marshal() error = %v", err)
	}
	again, err := Decode(out)
	if err != nil {
		t.Fatalf("Decode(binary) error = %v", err)
	}
	if diff := cmp.Diff(ents, again); diff != "" {
		t.Errorf("re-decoded entitlements mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeEmpty(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte("  \n")} {
		ents, err := Decode(raw)
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", raw, err)
		}
		if ents == nil || len(ents) != 0 {
			t.Errorf("Decode(%q) = %v; want empty", raw, ents)
		}
	}
}

func TestDecodeInvalid(t *testing.T) {
	if _, err := Decode([]byte("<plist><dict><key>a</key>")); err == nil {
		t.Error("Decode() of a truncated plist succeeded")
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		n    int
		want string
	}{
		{"shorter than n", "<dict/>", 100, "<dict/>"},
		{"cut", "abcdef", 3, "abc"},
		{"negative n", "abc", -1, "abc"},
		{"rune boundary", "abécd", 3, "ab"},
		{"zero", "abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preview([]byte(tt.raw), tt.n); got != tt.want {
				t.Errorf("Preview(%q, %d) = %q; want %q", tt.raw, tt.n, got, tt.want)
			}
		})
	}
}
