package render

import (
	"encoding/json"
	"fmt"
	"io"

	macho "github.com/appsworld/macho-dump"
	"github.com/appsworld/macho-dump/pkg/disasm"
	"github.com/appsworld/macho-dump/pkg/entitlements"
)

type jsonHeader struct {
	Magic        string `json:"magic"`
	CPU          string `json:"cpu"`
	SubCPU       string `json:"subcpu"`
	Type         string `json:"type"`
	NCommands    uint32 `json:"ncmds"`
	SizeCommands uint32 `json:"sizeofcmds"`
	Flags        uint32 `json:"flags"`
	ByteOrder    string `json:"byte_order"`
	FatOffset    int64  `json:"fat_offset,omitempty"`
	UUID         string `json:"uuid,omitempty"`
}

type jsonLoad struct {
	Cmd    string `json:"cmd"`
	Size   uint32 `json:"cmdsize"`
	Offset int64  `json:"offset"`
}

type jsonSection struct {
	Name   string `json:"name"`
	Seg    string `json:"segment"`
	Addr   uint64 `json:"addr"`
	Size   uint64 `json:"size"`
	Offset uint32 `json:"offset"`
	Type   string `json:"type"`
}

type jsonSegment struct {
	Name     string        `json:"name"`
	VMAddr   uint64        `json:"vmaddr"`
	VMSize   uint64        `json:"vmsize"`
	FileOff  uint64        `json:"fileoff"`
	FileSize uint64        `json:"filesize"`
	Prot     string        `json:"prot"`
	MaxProt  string        `json:"maxprot"`
	Sections []jsonSection `json:"sections"`
}

type jsonDylib struct {
	Kind           string `json:"kind"`
	Name           string `json:"name"`
	CurrentVersion string `json:"current_version"`
	CompatVersion  string `json:"compatibility_version"`
}

type jsonNode struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	Kind     string     `json:"kind,omitempty"`
	Children []jsonNode `json:"children,omitempty"`
}

type jsonBlob struct {
	Type      string `json:"type"`
	Kind      string `json:"kind"`
	Offset    uint32 `json:"offset"`
	Magic     string `json:"magic"`
	Length    uint32 `json:"length"`
	Truncated bool   `json:"truncated,omitempty"`
}

type jsonCodeDirectory struct {
	Identifier   string `json:"identifier"`
	TeamID       string `json:"team_id,omitempty"`
	Version      string `json:"version"`
	Flags        string `json:"flags"`
	HashType     string `json:"hash_type"`
	CodeSlots    uint32 `json:"code_slots"`
	SpecialSlots uint32 `json:"special_slots"`
	PageSize     uint64 `json:"page_size"`
	CodeLimit    uint32 `json:"code_limit"`
}

type jsonSignature struct {
	Offset             int64              `json:"offset"`
	Length             uint32             `json:"length"`
	ByteOrder          string             `json:"byte_order"`
	Blobs              []jsonBlob         `json:"blobs"`
	CodeDirectory      *jsonCodeDirectory `json:"code_directory,omitempty"`
	CodeDirectoryError string             `json:"code_directory_error,omitempty"`
}

type jsonEntitlements struct {
	Offset            int64                     `json:"offset"`
	Length            uint64                    `json:"length"`
	Preview           string                    `json:"preview"`
	Decoded           entitlements.Entitlements `json:"decoded,omitempty"`
	GetTaskAllow      bool                      `json:"get_task_allow"`
	ApplicationGroups []string                  `json:"application_groups,omitempty"`
}

type jsonCompileUnit struct {
	Offset   uint32 `json:"offset"`
	Name     string `json:"name"`
	Producer string `json:"producer,omitempty"`
	CompDir  string `json:"comp_dir,omitempty"`
	Language int64  `json:"language,omitempty"`
}

type jsonReport struct {
	Header        *jsonHeader          `json:"header,omitempty"`
	LoadCommands  []jsonLoad           `json:"load_commands,omitempty"`
	Segments      []jsonSegment        `json:"segments,omitempty"`
	Dependencies  []jsonDylib          `json:"dependencies,omitempty"`
	Tree          *jsonNode            `json:"dependency_tree,omitempty"`
	CodeSignature *jsonSignature       `json:"code_signature,omitempty"`
	Entitlements  *jsonEntitlements    `json:"entitlements,omitempty"`
	Swift         []jsonSection        `json:"swift_sections,omitempty"`
	Disassembly   []disasm.Instruction `json:"disassembly,omitempty"`
	CompileUnits  []jsonCompileUnit    `json:"compile_units,omitempty"`
	Errors        map[string]string    `json:"errors,omitempty"`
}

func (j *jsonReport) fail(stage string, err error) {
	if j.Errors == nil {
		j.Errors = make(map[string]string)
	}
	j.Errors[stage] = err.Error()
}

// JSON writes the selected sections of r to w as one indented JSON object.
// Stage failures are reported under "errors" keyed by section.
func JSON(w io.Writer, r *macho.Report, opts Options) error {
	f := r.File
	var j jsonReport

	if opts.Header {
		j.Header = &jsonHeader{
			Magic:        f.Magic.String(),
			CPU:          f.CPU.String(),
			SubCPU:       f.SubCPU.String(f.CPU),
			Type:         f.Type.String(),
			NCommands:    f.NCommands,
			SizeCommands: f.SizeCommands,
			Flags:        uint32(f.Flags),
			ByteOrder:    fmt.Sprint(f.ByteOrder),
			FatOffset:    f.FatOffset,
		}
		if u := f.UUID(); u != nil {
			j.Header.UUID = u.String()
		}
	}

	if opts.LoadCommands {
		j.LoadCommands = make([]jsonLoad, 0, len(f.Loads))
		for _, l := range f.Loads {
			j.LoadCommands = append(j.LoadCommands, jsonLoad{Cmd: l.Cmd.String(), Size: l.Len, Offset: l.Offset})
		}
	}

	if opts.Segments {
		j.Segments = make([]jsonSegment, 0, len(r.Segments))
		for _, s := range r.Segments {
			seg := jsonSegment{
				Name:     s.Name,
				VMAddr:   s.Addr,
				VMSize:   s.Memsz,
				FileOff:  s.Offset,
				FileSize: s.Filesz,
				Prot:     s.Prot.String(),
				MaxProt:  s.Maxprot.String(),
				Sections: make([]jsonSection, 0, len(s.Sections)),
			}
			for _, sec := range s.Sections {
				seg.Sections = append(seg.Sections, toJSONSection(sec))
			}
			j.Segments = append(j.Segments, seg)
		}
	}

	if opts.Dependencies {
		j.Dependencies = make([]jsonDylib, 0, len(r.Dependencies))
		for _, d := range r.Dependencies {
			j.Dependencies = append(j.Dependencies, jsonDylib{
				Kind:           d.Kind.String(),
				Name:           d.Name,
				CurrentVersion: d.CurrentVersion.String(),
				CompatVersion:  d.CompatVersion.String(),
			})
		}
		tree := toJSONNode(r.Tree, true)
		j.Tree = &tree
	}

	if opts.CodeSign {
		if r.CodeSignErr != nil {
			j.fail("code_signature", r.CodeSignErr)
		} else {
			cs := r.CodeSignature
			sig := &jsonSignature{
				Offset:    cs.Offset,
				Length:    cs.Length,
				ByteOrder: fmt.Sprint(cs.ByteOrder),
				Blobs:     make([]jsonBlob, 0, len(cs.Blobs)),
			}
			if cs.CodeDirectoryErr != nil {
				sig.CodeDirectoryError = cs.CodeDirectoryErr.Error()
			}
			for _, b := range cs.Blobs {
				sig.Blobs = append(sig.Blobs, jsonBlob{
					Type:      b.Type.String(),
					Kind:      b.Kind.String(),
					Offset:    b.Offset,
					Magic:     b.Magic.String(),
					Length:    b.Length,
					Truncated: b.Truncated,
				})
			}
			if cd := cs.CodeDirectory; cd != nil {
				sig.CodeDirectory = &jsonCodeDirectory{
					Identifier:   cd.ID,
					TeamID:       cd.TeamID,
					Version:      cd.Version.String(),
					Flags:        cd.Flags.String(),
					HashType:     cd.HashType.String(),
					CodeSlots:    cd.NCodeSlots,
					SpecialSlots: cd.NSpecialSlots,
					PageSize:     cd.PageBytes(),
					CodeLimit:    cd.CodeLimit,
				}
			}
			j.CodeSignature = sig
		}
	}

	if opts.Entitlements {
		if r.EntitlementsErr != nil {
			j.fail("entitlements", r.EntitlementsErr)
		} else {
			e := r.Entitlements
			je := &jsonEntitlements{
				Offset:  e.Offset,
				Length:  e.Length,
				Preview: entitlements.Preview(e.Data(), opts.previewSize()),
			}
			if ents, err := entitlements.Decode(e.Data()); err != nil {
				j.fail("entitlements", err)
			} else {
				je.Decoded = ents
				je.GetTaskAllow = ents.Bool(entitlements.GetTaskAllow)
				je.ApplicationGroups = ents.Strings(entitlements.ApplicationGroups)
			}
			j.Entitlements = je
		}
	}

	if opts.Swift {
		if secs, err := f.SwiftSections(); err != nil {
			j.fail("swift_sections", err)
		} else {
			for _, s := range secs {
				j.Swift = append(j.Swift, toJSONSection(s))
			}
		}
	}

	if opts.Disassemble {
		if insts, err := f.Disassemble(nil, opts.Count); err != nil {
			j.fail("disassembly", err)
		} else {
			j.Disassembly = insts
		}
	}

	if opts.DWARF {
		if units, err := f.CompileUnits(); err != nil {
			j.fail("dwarf", err)
		} else {
			for _, cu := range units {
				j.CompileUnits = append(j.CompileUnits, jsonCompileUnit{
					Offset:   uint32(cu.Offset),
					Name:     cu.Name,
					Producer: cu.Producer,
					CompDir:  cu.CompDir,
					Language: cu.Language,
				})
			}
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(j)
}

func toJSONSection(s *macho.Section) jsonSection {
	return jsonSection{
		Name:   s.Name,
		Seg:    s.Seg,
		Addr:   s.Addr,
		Size:   s.Size,
		Offset: s.Offset,
		Type:   s.Flags.Type().String(),
	}
}

func toJSONNode(n macho.DependencyNode, root bool) jsonNode {
	out := jsonNode{Name: n.Name, Path: n.Path}
	if !root {
		out.Kind = n.Kind.String()
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, toJSONNode(c, false))
	}
	return out
}
