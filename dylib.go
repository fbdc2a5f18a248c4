package macho

import (
	"fmt"

	"github.com/apex/log"
	"github.com/appsworld/macho-dump/types"
)

// A DylibKind is how a dependency is declared.
type DylibKind uint8

const (
	DylibLoad DylibKind = iota
	DylibWeak
	DylibReexport
	DylibLazy
	DylibUpward
	DylibIdentity
)

func (k DylibKind) String() string {
	switch k {
	case DylibLoad:
		return "normal"
	case DylibWeak:
		return "weak"
	case DylibReexport:
		return "reexport"
	case DylibLazy:
		return "lazy"
	case DylibUpward:
		return "upward"
	case DylibIdentity:
		return "id"
	}
	return fmt.Sprintf("DylibKind(%d)", uint8(k))
}

var dylibKinds = map[types.LoadCmd]DylibKind{
	types.LC_LOAD_DYLIB:        DylibLoad,
	types.LC_LOAD_WEAK_DYLIB:   DylibWeak,
	types.LC_REEXPORT_DYLIB:    DylibReexport,
	types.LC_LAZY_LOAD_DYLIB:   DylibLazy,
	types.LC_LOAD_UPWARD_DYLIB: DylibUpward,
	types.LC_ID_DYLIB:          DylibIdentity,
}

// A Dylib represents a Mach-O load dynamic library command.
type Dylib struct {
	Kind           DylibKind
	Name           string
	Time           uint32
	CurrentVersion types.Version
	CompatVersion  types.Version
	// Offset is the image offset of the load command.
	Offset int64
}

func (d *Dylib) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.CurrentVersion)
}

func (f *File) decodeDylib(l Load) (Dylib, error) {
	var cmd types.DylibCmd
	if err := l.read(f.ByteOrder, &cmd); err != nil {
		return Dylib{}, formatError(types.InvalidSection, l.Offset, "failed to read dylib command", err)
	}
	name, err := l.cstring(cmd.Name, types.DylibCmdSize)
	if err != nil {
		return Dylib{}, err
	}
	return Dylib{
		Kind:           dylibKinds[l.Cmd],
		Name:           name,
		Time:           cmd.Time,
		CurrentVersion: cmd.CurrentVersion,
		CompatVersion:  cmd.CompatVersion,
		Offset:         l.Offset,
	}, nil
}

// Dependencies returns the libraries the image links against, in load order.
// A command with a malformed name is skipped. An image without dependencies
// yields an empty list.
func (f *File) Dependencies() []Dylib {
	deps := []Dylib{}
	for _, l := range f.loadsOf(types.LC_LOAD_DYLIB, types.LC_LOAD_WEAK_DYLIB, types.LC_REEXPORT_DYLIB, types.LC_LAZY_LOAD_DYLIB, types.LC_LOAD_UPWARD_DYLIB) {
		d, err := f.decodeDylib(l)
		if err != nil {
			log.WithError(err).WithField("cmd", l.Cmd).Debug("skipping dylib")
			continue
		}
		deps = append(deps, d)
	}
	return deps
}

// ImportedLibraries returns the paths of all libraries
// referred to by the binary f that are expected to be
// linked with the binary at dynamic link time.
func (f *File) ImportedLibraries() []string {
	var all []string
	for _, d := range f.Dependencies() {
		all = append(all, d.Name)
	}
	return all
}
