package macho

import "github.com/appsworld/macho-dump/types"

// FormatError is returned by some operations if the data does
// not have the correct format for an object file.
type FormatError = types.FormatError

// Error kinds reported by the decoder. Match them with errors.Is.
const (
	ErrFileNotFound      = types.FileNotFound
	ErrInvalidMagic      = types.InvalidMagic
	ErrReadFailed        = types.ReadFailed
	ErrInvalidSegment    = types.InvalidSegment
	ErrInvalidSection    = types.InvalidSection
	ErrNoCodeSignature   = types.NoCodeSignature
	ErrInvalidSwiftData  = types.InvalidSwiftData
	ErrDisassemblyFailed = types.DisassemblyFailed
)

func formatError(kind types.ErrorKind, off int64, msg string, val any) error {
	return &FormatError{Kind: kind, Off: off, Msg: msg, Val: val}
}
