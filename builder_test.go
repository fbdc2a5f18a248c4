package macho

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/appsworld/macho-dump/pkg/codesign/codesigntest"
	ctypes "github.com/appsworld/macho-dump/pkg/codesign/types"
	"github.com/appsworld/macho-dump/types"
)

// testImage lays out a thin Mach-O: header, load commands, then data at
// dataOff.
type testImage struct {
	bo   binary.ByteOrder
	is64 bool
	cpu  types.CPU
	typ  types.HeaderFileType
	cmds [][]byte

	// ncmds and sizeofcmds override the computed values when non-zero.
	ncmds      uint32
	sizeofcmds uint32

	dataOff int
	data    []byte
}

func (ti testImage) hdrSize() int {
	if ti.is64 {
		return types.FileHeaderSize64
	}
	return types.FileHeaderSize32
}

func (ti testImage) build() []byte {
	var cmds []byte
	for _, c := range ti.cmds {
		cmds = append(cmds, c...)
	}
	ncmds, sizeofcmds := uint32(len(ti.cmds)), uint32(len(cmds))
	if ti.ncmds != 0 {
		ncmds = ti.ncmds
	}
	if ti.sizeofcmds != 0 {
		sizeofcmds = ti.sizeofcmds
	}

	hdr := ti.hdrSize()
	size := hdr + len(cmds)
	if ti.dataOff > 0 {
		if ti.dataOff < size {
			panic(fmt.Sprintf("dataOff %#x overlaps load commands ending at %#x", ti.dataOff, size))
		}
		size = ti.dataOff + len(ti.data)
	}
	out := make([]byte, size)

	magic, cpu := types.Magic32, ti.cpu
	if ti.is64 {
		magic = types.Magic64
	}
	if cpu == 0 {
		cpu = types.CPUArm
		if ti.is64 {
			cpu = types.CPUArm64
		}
	}
	typ := ti.typ
	if typ == 0 {
		typ = types.MH_EXECUTE
	}
	bo := ti.bo
	bo.PutUint32(out[0:], uint32(magic))
	bo.PutUint32(out[4:], uint32(cpu))
	bo.PutUint32(out[8:], 0)
	bo.PutUint32(out[12:], uint32(typ))
	bo.PutUint32(out[16:], ncmds)
	bo.PutUint32(out[20:], sizeofcmds)
	bo.PutUint32(out[24:], 0x00200085)
	copy(out[hdr:], cmds)
	if ti.dataOff > 0 {
		copy(out[ti.dataOff:], ti.data)
	}
	return out
}

func name16(s string) (b [16]byte) {
	copy(b[:], s)
	return b
}

type testSection struct {
	name, seg string
	addr      uint64
	size      uint64
	offset    uint32
	flags     types.SectionFlag
}

func segmentCmd(bo binary.ByteOrder, is64 bool, name string, addr, memsz, fileoff, filesz uint64, sects ...testSection) []byte {
	var buf bytes.Buffer
	if is64 {
		_ = binary.Write(&buf, bo, types.Segment64{
			LoadCmd: types.LC_SEGMENT_64,
			Len:     uint32(types.Segment64Size + types.Section64Size*len(sects)),
			Name:    name16(name),
			Addr:    addr,
			Memsz:   memsz,
			Offset:  fileoff,
			Filesz:  filesz,
			Maxprot: 5,
			Prot:    5,
			Nsect:   uint32(len(sects)),
		})
		for _, s := range sects {
			_ = binary.Write(&buf, bo, types.Section64{
				Name:   name16(s.name),
				Seg:    name16(s.seg),
				Addr:   s.addr,
				Size:   s.size,
				Offset: s.offset,
				Align:  2,
				Flags:  s.flags,
			})
		}
		return buf.Bytes()
	}
	_ = binary.Write(&buf, bo, types.Segment32{
		LoadCmd: types.LC_SEGMENT,
		Len:     uint32(types.Segment32Size + types.Section32Size*len(sects)),
		Name:    name16(name),
		Addr:    uint32(addr),
		Memsz:   uint32(memsz),
		Offset:  uint32(fileoff),
		Filesz:  uint32(filesz),
		Maxprot: 7,
		Prot:    3,
		Nsect:   uint32(len(sects)),
	})
	for _, s := range sects {
		_ = binary.Write(&buf, bo, types.Section32{
			Name:   name16(s.name),
			Seg:    name16(s.seg),
			Addr:   uint32(s.addr),
			Size:   uint32(s.size),
			Offset: s.offset,
			Align:  2,
			Flags:  s.flags,
		})
	}
	return buf.Bytes()
}

// stringCmd builds a command of fixed size hdr whose string offset field at
// byte 8 points at str, padded to 8 bytes. fields fill bytes 12..hdr.
func stringCmd(bo binary.ByteOrder, cmd types.LoadCmd, hdr int, str string, fields ...uint32) []byte {
	n := (hdr + len(str) + 1 + 7) &^ 7
	b := make([]byte, n)
	bo.PutUint32(b[0:], uint32(cmd))
	bo.PutUint32(b[4:], uint32(n))
	bo.PutUint32(b[8:], uint32(hdr))
	for i, f := range fields {
		bo.PutUint32(b[12+4*i:], f)
	}
	copy(b[hdr:], str)
	return b
}

func dylibCmd(bo binary.ByteOrder, cmd types.LoadCmd, name string) []byte {
	return stringCmd(bo, cmd, types.DylibCmdSize, name, 2, 0x10000, 0x10000)
}

func rpathCmd(bo binary.ByteOrder, path string) []byte {
	return stringCmd(bo, types.LC_RPATH, types.RpathCmdSize, path)
}

func linkEditCmd(bo binary.ByteOrder, cmd types.LoadCmd, off, size uint32) []byte {
	b := make([]byte, types.LinkEditDataCmdSize)
	bo.PutUint32(b[0:], uint32(cmd))
	bo.PutUint32(b[4:], types.LinkEditDataCmdSize)
	bo.PutUint32(b[8:], off)
	bo.PutUint32(b[12:], size)
	return b
}

func rawCmd(bo binary.ByteOrder, cmd types.LoadCmd, payload ...byte) []byte {
	b := make([]byte, 8, 8+len(payload))
	bo.PutUint32(b[0:], uint32(cmd))
	bo.PutUint32(b[4:], uint32(8+len(payload)))
	return append(b, payload...)
}

// superBlob builds a big-endian embedded signature holding blobs in order.
func superBlob(blobs ...codesigntest.Blob) []byte {
	return codesigntest.SuperBlob(binary.BigEndian, blobs...)
}

func blob(slot ctypes.SlotType, magic ctypes.Magic, data []byte) codesigntest.Blob {
	return codesigntest.Blob{Slot: slot, Magic: magic, Data: data}
}

// signedImage returns a little-endian 64-bit image whose LC_CODE_SIGNATURE
// points at sig, placed at 0x1000.
func signedImage(sig []byte) []byte {
	return signedImageOrder(binary.LittleEndian, sig)
}

func signedImageOrder(bo binary.ByteOrder, sig []byte) []byte {
	return testImage{
		bo:   bo,
		is64: true,
		cmds: [][]byte{
			segmentCmd(bo, true, "__LINKEDIT", 0x100001000, 0x1000, 0x1000, uint64(len(sig))),
			linkEditCmd(bo, types.LC_CODE_SIGNATURE, 0x1000, uint32(len(sig))),
		},
		dataOff: 0x1000,
		data:    sig,
	}.build()
}
