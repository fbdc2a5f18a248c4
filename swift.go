package macho

import (
	"strings"

	"github.com/appsworld/macho-dump/types"
)

var swiftSegments = []string{"__TEXT", "__DATA", "__DATA_CONST"}

// SwiftSections returns the sections that carry Swift metadata, such as
// __swift5_types or __swift5_proto. Their contents are not decoded.
func (f *File) SwiftSections() ([]*Section, error) {
	var secs []*Section
	for _, seg := range f.Segments() {
		if !isSwiftSegment(seg.Name) {
			continue
		}
		for _, sec := range seg.Sections {
			if strings.Contains(sec.Name, "swift") || strings.Contains(sec.Name, "Swift") {
				secs = append(secs, sec)
			}
		}
	}
	if len(secs) == 0 {
		return nil, formatError(types.InvalidSwiftData, 0, "no Swift sections found", nil)
	}
	return secs, nil
}

func isSwiftSegment(name string) bool {
	for _, s := range swiftSegments {
		if s == name {
			return true
		}
	}
	return false
}
