// Package render prints a macho.Report for people (Text) and for tools
// (JSON).
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	macho "github.com/appsworld/macho-dump"
	"github.com/appsworld/macho-dump/pkg/disasm"
	"github.com/appsworld/macho-dump/pkg/entitlements"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

var (
	colorTitle = color.New(color.Bold, color.FgHiMagenta).SprintFunc()
	colorName  = color.New(color.Bold).SprintFunc()
	colorAddr  = color.New(color.Faint).SprintfFunc()
	colorKind  = color.New(color.FgCyan).SprintFunc()
	colorKey   = color.New(color.Bold, color.FgHiGreen).SprintFunc()
	colorWarn  = color.New(color.FgYellow).SprintFunc()
)

// Options selects the report sections.
type Options struct {
	Header       bool
	LoadCommands bool
	Segments     bool
	Dependencies bool
	CodeSign     bool
	Entitlements bool
	Swift        bool
	Disassemble  bool
	DWARF        bool

	// Count is the number of instructions to disassemble.
	Count int
	// PreviewSize is the number of entitlement bytes shown.
	PreviewSize int
}

// All returns Options with the core sections enabled. Swift sections,
// disassembly and DWARF stay opt-in.
func All() Options {
	return Options{
		Header:       true,
		LoadCommands: true,
		Segments:     true,
		Dependencies: true,
		CodeSign:     true,
		Entitlements: true,
		Count:        disasm.DefaultCount,
		PreviewSize:  entitlements.PreviewSize,
	}
}

// Any reports whether a section was selected.
func (o Options) Any() bool {
	return o.Header || o.LoadCommands || o.Segments || o.Dependencies ||
		o.CodeSign || o.Entitlements || o.Swift || o.Disassemble || o.DWARF
}

func (o Options) previewSize() int {
	if o.PreviewSize <= 0 {
		return entitlements.PreviewSize
	}
	return o.PreviewSize
}

// Text writes the selected sections of r to w.
func Text(w io.Writer, r *macho.Report, opts Options) error {
	p := &printer{w: w}
	f := r.File

	if opts.Header {
		p.title("Header")
		p.printf("%s", f.FileHeader.String())
		p.printf("Byte Order    = %s\n", f.ByteOrder)
		if f.IsFat() {
			p.printf("Slice Offset  = %#x\n", f.FatOffset)
		}
		if u := f.UUID(); u != nil {
			p.printf("UUID          = %s\n", u)
		}
		if bv := f.BuildVersion(); bv != nil {
			p.printf("Build Version = %s\n", bv)
		}
		if sv := f.SourceVersion(); sv != nil {
			p.printf("Source Ver.   = %s\n", sv)
		}
		if ep := f.EntryPoint(); ep != nil {
			if ep.PC != 0 {
				p.printf("Entry Point   = %s pc=%#x\n", ep.Cmd, ep.PC)
			} else {
				p.printf("Entry Point   = %s offset=%#x stacksize=%#x\n", ep.Cmd, ep.Offset, ep.StackSize)
			}
		}
		p.nl()
	}

	if opts.LoadCommands {
		p.title("Load Commands")
		p.printf("%s", f.LoadsString())
		p.nl()
	}

	if opts.Segments {
		p.title("Segments")
		p.segments(r.Segments)
		p.nl()
	}

	if opts.Dependencies {
		p.title("Dependencies")
		if len(r.Dependencies) == 0 {
			p.printf("none\n")
		}
		for _, d := range r.Dependencies {
			p.printf("%-8s %s (compatibility %s, current %s)\n", colorKind(d.Kind), colorName(d.Name), d.CompatVersion, d.CurrentVersion)
		}
		p.nl()
		p.title("Dependency Tree")
		p.tree(r.Tree)
		p.nl()
	}

	if opts.CodeSign {
		p.title("Code Signature")
		p.codeSignature(r)
		p.nl()
	}

	if opts.Entitlements {
		p.title("Entitlements")
		p.entitlements(r, opts.previewSize())
		p.nl()
	}

	if opts.Swift {
		p.title("Swift Sections")
		if secs, err := f.SwiftSections(); err != nil {
			p.warn(err)
		} else {
			w := tabwriter.NewWriter(p, 0, 0, 1, ' ', 0)
			for _, s := range secs {
				fmt.Fprintf(w, "%s.%s\t%s\t%s\n", s.Seg, s.Name, colorAddr("%#x", s.Addr), humanize.Bytes(s.Size))
			}
			w.Flush()
		}
		p.nl()
	}

	if opts.Disassemble {
		p.title("Disassembly")
		if insts, err := f.Disassemble(nil, opts.Count); err != nil {
			p.warn(err)
		} else {
			for _, i := range insts {
				p.printf("%s:  %s   %s\n", colorAddr("%#08x", i.Address), i.OpCodeByteString(), i.Text)
			}
		}
		p.nl()
	}

	if opts.DWARF {
		p.title("DWARF")
		p.compileUnits(f)
		p.nl()
	}

	return p.err
}

// printer remembers the first write error so the section code can ignore it.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) Write(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	n, err := p.w.Write(b)
	p.err = err
	return n, err
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p, format, args...)
}

func (p *printer) nl() { p.printf("\n") }

func (p *printer) title(s string) {
	p.printf("%s\n%s\n", colorTitle(s), strings.Repeat("=", len(s)))
}

func (p *printer) warn(err error) {
	p.printf("%s\n", colorWarn(err))
}

func (p *printer) segments(segs []*macho.Segment) {
	w := tabwriter.NewWriter(p, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "NAME\tVMADDR\tVMSIZE\tFILEOFF\tFILESIZE\tPROT\n")
	for _, s := range segs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%#x\t%s\t%s/%s\n",
			colorName(s.Name), colorAddr("%#x", s.Addr), humanize.Bytes(s.Memsz),
			s.Offset, humanize.Bytes(s.Filesz), s.Prot, s.Maxprot)
		for _, sec := range s.Sections {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%#x\t\t%s\n",
				sec.Name, colorAddr("%#x", sec.Addr), humanize.Bytes(sec.Size), sec.Offset, sec.Flags.Type())
		}
	}
	w.Flush()
}

func (p *printer) tree(root macho.DependencyNode) {
	root.Walk(func(n macho.DependencyNode, depth int) {
		if depth == 0 {
			p.printf("%s\n", colorName(n.Name))
			return
		}
		p.printf("%s└── %s", strings.Repeat("    ", depth-1), n.Name)
		if n.Path != n.Name {
			p.printf(" -> %s", n.Path)
		}
		p.printf(" %s\n", colorKind("("+n.Kind.String()+")"))
	})
}

func (p *printer) codeSignature(r *macho.Report) {
	if r.CodeSignErr != nil {
		p.warn(r.CodeSignErr)
		return
	}
	cs := r.CodeSignature
	p.printf("Offset %#x, %s, %d blobs\n", cs.Offset, humanize.Bytes(uint64(cs.Length)), len(cs.Blobs))
	w := tabwriter.NewWriter(p, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "TYPE\tKIND\tOFFSET\tMAGIC\tLENGTH\n")
	for _, b := range cs.Blobs {
		trunc := ""
		if b.Truncated {
			trunc = colorWarn(" (truncated)")
		}
		fmt.Fprintf(w, "%s\t%s\t%#x\t%s\t%d%s\n", b.Type, b.Kind, b.Offset, b.Magic, b.Length, trunc)
	}
	w.Flush()

	if cs.CodeDirectoryErr != nil {
		p.warn(cs.CodeDirectoryErr)
	}
	if cd := cs.CodeDirectory; cd != nil {
		p.printf("CodeDirectory:\n")
		p.printf("\tIdentifier:     %s\n", cd.ID)
		if cd.TeamID != "" {
			p.printf("\tTeamID:         %s\n", cd.TeamID)
		}
		p.printf("\tVersion:        %s\n", cd.Version)
		p.printf("\tFlags:          %s\n", cd.Flags)
		p.printf("\tHash Type:      %s (%d bytes)\n", cd.HashType, cd.HashSize)
		p.printf("\tCode Slots:     %d (%s pages)\n", cd.NCodeSlots, humanize.Bytes(cd.PageBytes()))
		p.printf("\tSpecial Slots:  %d\n", cd.NSpecialSlots)
		p.printf("\tCode Limit:     %#x\n", cd.CodeLimit)
	}
}

func (p *printer) entitlements(r *macho.Report, n int) {
	if r.EntitlementsErr != nil {
		p.warn(r.EntitlementsErr)
		return
	}
	e := r.Entitlements
	p.printf("Offset %#x, %d bytes\n", e.Offset, e.Length)
	p.printf("%s\n", entitlements.Preview(e.Data(), n))
	if int(e.Length) > n {
		p.printf("... (%d more bytes)\n", int(e.Length)-n)
	}

	ents, err := entitlements.Decode(e.Data())
	if err != nil {
		p.warn(err)
		return
	}
	for _, k := range ents.Keys() {
		p.printf("  %s: %v\n", colorKey(k), ents[k])
	}
	if groups := ents.Strings(entitlements.ApplicationGroups); len(groups) > 0 {
		p.printf("Application Groups: %s\n", strings.Join(groups, ", "))
	}
	if ents.Bool(entitlements.GetTaskAllow) {
		p.printf("%s\n", colorWarn("get-task-allow is set: any process may attach a debugger"))
	}
}

func (p *printer) compileUnits(f *macho.File) {
	units, err := f.CompileUnits()
	if err != nil {
		p.warn(err)
		return
	}
	w := tabwriter.NewWriter(p, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "OFFSET\tNAME\tPRODUCER\tCOMP_DIR\n")
	for _, cu := range units {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", colorAddr("%#x", cu.Offset), colorName(cu.Name), cu.Producer, cu.CompDir)
	}
	w.Flush()
}
