package codesign

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/appsworld/macho-dump/pkg/codesign/codesigntest"
	"github.com/appsworld/macho-dump/pkg/codesign/types"
	"github.com/appsworld/macho-dump/pkg/view"
	mtypes "github.com/appsworld/macho-dump/types"
	"github.com/google/go-cmp/cmp"
)

// codeDirectory builds a version 0x20001 CodeDirectory in order o with the
// identifier followed by nSpecial special slot hashes and nCode code slot
// hashes. Each hash is filled with its slot number.
func codeDirectory(o binary.AppendByteOrder, id string, nSpecial, nCode uint32) []byte {
	const hashSize = 4
	identOff := uint32(types.CodeDirectoryHeaderSize)
	hashOff := identOff + uint32(len(id)) + 1 + nSpecial*hashSize
	out := codesigntest.CodeDirectory(types.CodeDirectoryType{
		Magic:         types.MAGIC_CODEDIRECTORY,
		Length:        hashOff + nCode*hashSize,
		Version:       types.EARLIEST_VERSION,
		Flags:         types.ADHOC | types.LINKER_SIGNED,
		HashOffset:    hashOff,
		IdentOffset:   identOff,
		NSpecialSlots: nSpecial,
		NCodeSlots:    nCode,
		CodeLimit:     0x4000,
		HashSize:      hashSize,
		HashType:      types.HASHTYPE_SHA256,
		PageSize:      12,
	}, o)
	out = append(out, id...)
	out = append(out, 0)
	for slot := nSpecial; slot > 0; slot-- {
		out = append(out, bytes.Repeat([]byte{byte(slot)}, hashSize)...)
	}
	for slot := uint32(0); slot < nCode; slot++ {
		out = append(out, bytes.Repeat([]byte{0x80 | byte(slot)}, hashSize)...)
	}
	return out
}

// testSignature lays out a CodeDirectory, requirements, entitlements and CMS
// blob, in that order, all stored in o.
func testSignature(o binary.AppendByteOrder) []byte {
	return codesigntest.SuperBlob(o,
		codesigntest.Blob{Slot: types.CSSLOT_CODEDIRECTORY, Magic: types.MAGIC_CODEDIRECTORY, Data: codeDirectory(o, "com.example.tool", 2, 3)[8:]},
		codesigntest.Blob{Slot: types.CSSLOT_REQUIREMENTS, Magic: types.MAGIC_REQUIREMENTS, Data: []byte{0, 0, 0, 0}},
		codesigntest.Blob{Slot: types.CSSLOT_ENTITLEMENTS, Magic: types.MAGIC_EMBEDDED_ENTITLEMENTS, Data: []byte("<plist/>")},
		codesigntest.Blob{Slot: types.CSSLOT_CMS_SIGNATURE, Magic: types.MAGIC_BLOBWRAPPER},
	)
}

func TestParseCodeSignature(t *testing.T) {
	data := testSignature(binary.BigEndian)
	cs, err := ParseCodeSignature(view.New(data), binary.LittleEndian)
	if err != nil {
		t.Fatalf("ParseCodeSignature() = %v", err)
	}
	if cs.ByteOrder != binary.BigEndian {
		t.Errorf("ByteOrder = %v; want BigEndian", cs.ByteOrder)
	}
	if cs.Count != 4 || len(cs.Blobs) != 4 {
		t.Fatalf("Count = %d, len(Blobs) = %d; want 4, 4", cs.Count, len(cs.Blobs))
	}

	type summary struct {
		Kind   string
		Magic  types.Magic
		Offset uint32
	}
	var got []summary
	for _, b := range cs.Blobs {
		if b.Truncated {
			t.Errorf("blob %s unexpectedly truncated", b.Type)
		}
		got = append(got, summary{b.Kind.String(), b.Magic, b.Offset})
	}
	cdLen := uint32(len(codeDirectory(binary.BigEndian, "com.example.tool", 2, 3)))
	want := []summary{
		{"CodeDirectory", types.MAGIC_CODEDIRECTORY, 44},
		{"Requirements", types.MAGIC_REQUIREMENTS, 44 + cdLen},
		{"Entitlements", types.MAGIC_EMBEDDED_ENTITLEMENTS, 44 + cdLen + 12},
		{"Unknown", types.MAGIC_BLOBWRAPPER, 44 + cdLen + 12 + 16},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("blobs mismatch (-want +got):\n%s", diff)
	}

	cd := cs.CodeDirectory
	if cd == nil || cs.CodeDirectoryErr != nil {
		t.Fatalf("CodeDirectory = %v, %v", cd, cs.CodeDirectoryErr)
	}
	if cd.ID != "com.example.tool" {
		t.Errorf("ID = %q; want com.example.tool", cd.ID)
	}
	if cd.NSpecialSlots != 2 || cd.NCodeSlots != 3 || cd.HashType != types.HASHTYPE_SHA256 {
		t.Errorf("CodeDirectory header = %+v", cd.CodeDirectoryType)
	}
	if cd.PageBytes() != 4096 {
		t.Errorf("PageBytes() = %d; want 4096", cd.PageBytes())
	}

	if b, ok := cs.Find(types.CSSLOT_ENTITLEMENTS, types.MAGIC_EMBEDDED_ENTITLEMENTS); !ok || string(b.Data()[8:]) != "<plist/>" {
		t.Errorf("Find(entitlements) = %v, %v", b.Data(), ok)
	}
}

func TestSlotHashes(t *testing.T) {
	cd, err := ParseCodeDirectory(view.New(codeDirectory(binary.BigEndian, "id", 2, 3)), binary.BigEndian)
	if err != nil {
		t.Fatal(err)
	}
	for n := uint32(1); n <= 2; n++ {
		h, err := cd.SpecialSlotHash(n)
		if err != nil {
			t.Fatalf("SpecialSlotHash(%d) = %v", n, err)
		}
		if !bytes.Equal(h, bytes.Repeat([]byte{byte(n)}, 4)) {
			t.Errorf("SpecialSlotHash(%d) = %x", n, h)
		}
	}
	for n := uint32(0); n < 3; n++ {
		h, err := cd.CodeSlotHash(n)
		if err != nil {
			t.Fatalf("CodeSlotHash(%d) = %v", n, err)
		}
		if !bytes.Equal(h, bytes.Repeat([]byte{0x80 | byte(n)}, 4)) {
			t.Errorf("CodeSlotHash(%d) = %x", n, h)
		}
	}
	if _, err := cd.SpecialSlotHash(3); !errors.Is(err, mtypes.InvalidSection) {
		t.Errorf("SpecialSlotHash(3) error = %v; want InvalidSection", err)
	}
	if _, err := cd.CodeSlotHash(3); !errors.Is(err, mtypes.InvalidSection) {
		t.Errorf("CodeSlotHash(3) error = %v; want InvalidSection", err)
	}
}

func TestParseCodeSignatureErrors(t *testing.T) {
	tests := []struct {
		name   string
		mangle func([]byte) []byte
		want   mtypes.ErrorKind
	}{
		{
			name:   "short header",
			mangle: func(b []byte) []byte { return b[:8] },
			want:   mtypes.NoCodeSignature,
		},
		{
			name:   "no magic",
			mangle: func(b []byte) []byte { return b[:3] },
			want:   mtypes.NoCodeSignature,
		},
		{
			name: "bad magic",
			mangle: func(b []byte) []byte {
				binary.BigEndian.PutUint32(b, uint32(types.MAGIC_DETACHED_SIGNATURE))
				return b
			},
			want: mtypes.NoCodeSignature,
		},
		{
			name: "index table overflow",
			mangle: func(b []byte) []byte {
				binary.BigEndian.PutUint32(b[8:], 0x10000)
				return b
			},
			want: mtypes.InvalidSection,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mangle(testSignature(binary.BigEndian))
			cs, err := ParseCodeSignature(view.New(data), binary.BigEndian)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ParseCodeSignature() error = %v; want %v", err, tt.want)
			}
			if cs != nil {
				t.Errorf("ParseCodeSignature() returned a signature alongside %v", err)
			}
		})
	}
}

func TestBadCodeDirectoryKeepsBlobs(t *testing.T) {
	tests := []struct {
		name   string
		mangle func([]byte)
	}{
		{
			name:   "identOffset past blob",
			mangle: func(b []byte) { binary.BigEndian.PutUint32(b[44+20:], 0xffff) },
		},
		{
			// shrink the CodeDirectory so it ends inside the identifier
			name:   "identifier not terminated",
			mangle: func(b []byte) { binary.BigEndian.PutUint32(b[44+4:], types.CodeDirectoryHeaderSize+4) },
		},
		{
			name:   "hashOffset past blob",
			mangle: func(b []byte) { binary.BigEndian.PutUint32(b[44+16:], 0xffffff) },
		},
		{
			name:   "CodeDirectory shorter than header",
			mangle: func(b []byte) { binary.BigEndian.PutUint32(b[44+4:], 20) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := testSignature(binary.BigEndian)
			tt.mangle(data)
			cs, err := ParseCodeSignature(view.New(data), binary.BigEndian)
			if err != nil {
				t.Fatalf("ParseCodeSignature() error = %v", err)
			}
			if len(cs.Blobs) != 4 {
				t.Errorf("len(Blobs) = %d; want 4", len(cs.Blobs))
			}
			if cs.CodeDirectory != nil {
				t.Errorf("CodeDirectory = %+v; want nil", cs.CodeDirectory)
			}
			if !errors.Is(cs.CodeDirectoryErr, mtypes.InvalidSection) {
				t.Errorf("CodeDirectoryErr = %v; want %v", cs.CodeDirectoryErr, mtypes.InvalidSection)
			}
			if b, ok := cs.Find(types.CSSLOT_ENTITLEMENTS, types.MAGIC_EMBEDDED_ENTITLEMENTS); !ok || string(b.Data()[8:]) != "<plist/>" {
				t.Errorf("Find(entitlements) = %q, %v", b.Data(), ok)
			}
		})
	}
}

func TestParseCodeSignatureByteOrder(t *testing.T) {
	tests := []struct {
		name    string
		stored  binary.AppendByteOrder
		image   binary.ByteOrder
		want    binary.ByteOrder
		wantErr bool
	}{
		{"big-endian signature, little-endian image", binary.BigEndian, binary.LittleEndian, binary.BigEndian, false},
		{"big-endian signature, big-endian image", binary.BigEndian, binary.BigEndian, binary.BigEndian, false},
		{"image order signature", binary.LittleEndian, binary.LittleEndian, binary.LittleEndian, false},
		{"little-endian signature, big-endian image", binary.LittleEndian, binary.BigEndian, nil, true},
		{"little-endian signature, no image order", binary.LittleEndian, nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := ParseCodeSignature(view.New(testSignature(tt.stored)), tt.image)
			if tt.wantErr {
				if !errors.Is(err, mtypes.NoCodeSignature) {
					t.Fatalf("ParseCodeSignature() error = %v; want %v", err, mtypes.NoCodeSignature)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCodeSignature() error = %v", err)
			}
			if cs.ByteOrder != tt.want {
				t.Errorf("ByteOrder = %v; want %v", cs.ByteOrder, tt.want)
			}
			if len(cs.Blobs) != 4 || cs.CodeDirectory == nil || cs.CodeDirectory.ID != "com.example.tool" {
				t.Fatalf("blobs=%d CodeDirectory=%v err=%v", len(cs.Blobs), cs.CodeDirectory, cs.CodeDirectoryErr)
			}
			if cs.CodeDirectory.NCodeSlots != 3 {
				t.Errorf("NCodeSlots = %d; want 3", cs.CodeDirectory.NCodeSlots)
			}
			if b, ok := cs.Find(types.CSSLOT_ENTITLEMENTS, types.MAGIC_EMBEDDED_ENTITLEMENTS); !ok || string(b.Data()[8:]) != "<plist/>" {
				t.Errorf("Find(entitlements) = %q, %v", b.Data(), ok)
			}
		})
	}
}

func TestTruncatedBlobsStillClassified(t *testing.T) {
	data := testSignature(binary.BigEndian)
	// point the requirements entry outside the SuperBlob and make the
	// entitlements blob claim more bytes than exist
	binary.BigEndian.PutUint32(data[12+8+4:], 0xfffffff0)
	entOff := binary.BigEndian.Uint32(data[12+16+4:])
	binary.BigEndian.PutUint32(data[entOff+4:], 0x1000)

	cs, err := ParseCodeSignature(view.New(data), binary.BigEndian)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs.Blobs) != int(cs.Count) {
		t.Fatalf("len(Blobs) = %d; want %d", len(cs.Blobs), cs.Count)
	}
	var truncated []types.SlotType
	for _, b := range cs.Blobs {
		if b.Truncated {
			truncated = append(truncated, b.Type)
		}
	}
	want := []types.SlotType{types.CSSLOT_REQUIREMENTS, types.CSSLOT_ENTITLEMENTS}
	if diff := cmp.Diff(want, truncated); diff != "" {
		t.Errorf("truncated blobs mismatch (-want +got):\n%s", diff)
	}
	if _, ok := cs.Find(types.CSSLOT_ENTITLEMENTS, types.MAGIC_EMBEDDED_ENTITLEMENTS); ok {
		t.Error("Find returned a truncated blob")
	}
}

func TestSlotKind(t *testing.T) {
	tests := []struct {
		typ  types.SlotType
		want string
	}{
		{types.CSSLOT_CODEDIRECTORY, "CodeDirectory"},
		{types.CSSLOT_INFOSLOT, "InfoSlots"},
		{types.CSSLOT_REQUIREMENTS, "Requirements"},
		{types.CSSLOT_RESOURCEDIR, "ResourceDirectory"},
		{types.CSSLOT_APPLICATION, "ApplicationSpecific"},
		{types.CSSLOT_ENTITLEMENTS, "Entitlements"},
		{types.CSSLOT_REP_SPECIFIC, "Unknown"},
		{types.CSSLOT_ENTITLEMENTS_DER, "Unknown"},
		{types.CSSLOT_ALTERNATE_CODEDIRECTORIES, "Unknown"},
		{types.CSSLOT_CMS_SIGNATURE, "Unknown"},
		{types.SlotType(0xffffffff), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.typ.Kind().String(); got != tt.want {
			t.Errorf("SlotType(%#x).Kind() = %s; want %s", uint32(tt.typ), got, tt.want)
		}
	}
}
