package macho

import (
	"path"
	"strings"
)

// A DependencyNode is one node of the dependency tree. Children are owned by
// value; the tree built by DependencyTree is two levels deep.
type DependencyNode struct {
	Name string
	// Path is Name with @executable_path, @loader_path and @rpath expanded
	// when the binary path is known. It equals Name otherwise.
	Path     string
	Kind     DylibKind
	Children []DependencyNode
}

const mainBinaryName = "Main Binary"

// DependencyTree returns a tree rooted at the analyzed binary with one child
// per dependency. Transitive dependencies are not loaded.
func (f *File) DependencyTree() DependencyNode {
	root := DependencyNode{Name: mainBinaryName, Path: mainBinaryName}
	if f.Path != "" {
		root.Name, root.Path = f.Path, f.Path
	}

	var rpath string
	if rp := f.Rpaths(); len(rp) > 0 {
		rpath = rp[0]
	}

	deps := f.Dependencies()
	root.Children = make([]DependencyNode, 0, len(deps))
	for _, d := range deps {
		root.Children = append(root.Children, DependencyNode{
			Name: d.Name,
			Path: f.expandPath(d.Name, rpath),
			Kind: d.Kind,
		})
	}
	return root
}

// expandPath substitutes the dyld path prefixes it can resolve without
// touching the filesystem.
func (f *File) expandPath(name, rpath string) string {
	if rest, ok := strings.CutPrefix(name, "@rpath/"); ok {
		if rpath == "" {
			return name
		}
		base := f.expandPath(rpath, "")
		if strings.HasPrefix(base, "@") {
			return name
		}
		return path.Join(base, rest)
	}
	if f.Path == "" {
		return name
	}
	for _, prefix := range []string{"@executable_path/", "@loader_path/"} {
		if rest, ok := strings.CutPrefix(name, prefix); ok {
			return path.Join(path.Dir(f.Path), rest)
		}
	}
	if name == "@executable_path" || name == "@loader_path" {
		return path.Dir(f.Path)
	}
	return name
}

// Walk calls fn for n and every descendant, depth first.
func (n DependencyNode) Walk(fn func(node DependencyNode, depth int)) {
	n.walk(fn, 0)
}

func (n DependencyNode) walk(fn func(DependencyNode, int), depth int) {
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}
