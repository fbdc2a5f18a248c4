package types

import (
	"errors"
	"fmt"
)

// An ErrorKind is one of the failure classes reported by the decoder. Each
// kind is itself an error so callers can match with errors.Is.
type ErrorKind uint8

const (
	FileNotFound ErrorKind = iota + 1
	InvalidMagic
	ReadFailed
	InvalidSegment
	InvalidSection
	NoCodeSignature
	InvalidSwiftData
	DisassemblyFailed
)

var errorKindStrings = []IntName{
	{uint32(FileNotFound), "file not found"},
	{uint32(InvalidMagic), "invalid Mach-O magic number"},
	{uint32(ReadFailed), "failed to read file"},
	{uint32(InvalidSegment), "invalid segment"},
	{uint32(InvalidSection), "invalid section"},
	{uint32(NoCodeSignature), "no code signature found"},
	{uint32(InvalidSwiftData), "invalid Swift data"},
	{uint32(DisassemblyFailed), "disassembly failed"},
}

func (k ErrorKind) Error() string  { return StringName(uint32(k), errorKindStrings, false) }
func (k ErrorKind) String() string { return k.Error() }

// FormatError is returned by some operations if the data does
// not have the correct format for an object file.
type FormatError struct {
	Kind ErrorKind
	Off  int64
	Msg  string
	Val  any
}

func (e *FormatError) Error() string {
	msg := e.Msg
	if e.Val != nil {
		msg += fmt.Sprintf(" '%v'", e.Val)
	}
	msg += fmt.Sprintf(" in record at byte %#x", e.Off)
	return e.Kind.Error() + ": " + msg
}

func (e *FormatError) Unwrap() error { return e.Kind }

// KindOf returns the ErrorKind carried by err, or 0.
func KindOf(err error) ErrorKind {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var k ErrorKind
	if errors.As(err, &k) {
		return k
	}
	return 0
}
