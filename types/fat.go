package types

// A FatHeader is the header of a universal binary. It is always stored
// big-endian on disk.
type FatHeader struct {
	Magic Magic
	NArch uint32
}

// A FatArchHeader describes one architecture slice of a universal binary.
type FatArchHeader struct {
	CPU    CPU
	SubCPU CPUSubtype
	Offset uint32
	Size   uint32
	Align  uint32
}

// A FatArch64Header is the fat_arch_64 variant used with MagicFat64.
type FatArch64Header struct {
	CPU      CPU
	SubCPU   CPUSubtype
	Offset   uint64
	Size     uint64
	Align    uint32
	Reserved uint32
}

const (
	FatHeaderSize = 8
	FatArchSize   = 20
	FatArch64Size = 32
)
