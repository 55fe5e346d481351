package scanner

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/dshills/citeindex/pkg/types"
)

// walkFunc dispatches the top-level nodes of a syntax tree into a collector
type walkFunc func(c *collector, root *sitter.Node)

// tsGrammar is a Grammar backed by a tree-sitter language
type tsGrammar struct {
	lang     types.Language
	exts     []string
	language *sitter.Language
	walk     walkFunc
}

func (g *tsGrammar) Language() types.Language { return g.lang }

func (g *tsGrammar) Extensions() []string { return g.exts }

func (g *tsGrammar) Parse(ctx context.Context, _ string, src []byte) (Extractor, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g.language)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter %s: %w", g.lang, err)
	}

	c := &collector{src: src, tree: tree}
	g.walk(c, tree.RootNode())
	return c, nil
}

// collector accumulates extracted records for one tree and implements
// Extractor. Methods declared apart from their owner (Rust impls, C++
// out-of-line definitions) are attached on extraction.
type collector struct {
	src  []byte
	tree *sitter.Tree

	functions  []types.FunctionRecord
	classes    []types.ClassRecord
	variables  []types.VariableRecord
	interfaces []types.InterfaceRecord
	imports    []string

	detached      map[string][]types.FunctionRecord
	detachedOrder []string
}

func (c *collector) ExtractFunctions() []types.FunctionRecord {
	functions := append([]types.FunctionRecord(nil), c.functions...)
	for _, owner := range c.detachedOrder {
		if c.classIndex(owner) < 0 {
			functions = append(functions, c.detached[owner]...)
		}
	}
	return functions
}

func (c *collector) ExtractClasses() []types.ClassRecord {
	classes := make([]types.ClassRecord, len(c.classes))
	copy(classes, c.classes)
	for i := range classes {
		if extra := c.detached[classes[i].Name]; len(extra) > 0 {
			classes[i].Methods = append(append([]types.FunctionRecord(nil), classes[i].Methods...), extra...)
		}
	}
	return classes
}

func (c *collector) ExtractVariables() []types.VariableRecord { return c.variables }

func (c *collector) ExtractInterfaces() []types.InterfaceRecord { return c.interfaces }

func (c *collector) ExtractImports() []string { return c.imports }

func (c *collector) Close() {
	if c.tree != nil {
		c.tree.Close()
		c.tree = nil
	}
}

// addDetached records a method whose owning type may or may not be declared
// in the same file
func (c *collector) addDetached(owner string, fn types.FunctionRecord) {
	if c.detached == nil {
		c.detached = make(map[string][]types.FunctionRecord)
	}
	if _, seen := c.detached[owner]; !seen {
		c.detachedOrder = append(c.detachedOrder, owner)
	}
	c.detached[owner] = append(c.detached[owner], fn)
}

func (c *collector) classIndex(name string) int {
	for i := range c.classes {
		if c.classes[i].Name == name {
			return i
		}
	}
	return -1
}

func (c *collector) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(c.src)
}

func (c *collector) fieldText(n *sitter.Node, field string) string {
	return c.text(n.ChildByFieldName(field))
}

func (c *collector) addImport(spec string) {
	spec = strings.Trim(strings.TrimSpace(spec), "\"'`<>")
	if spec != "" {
		c.imports = append(c.imports, spec)
	}
}

// startLine and endLine convert tree-sitter's 0-based rows to 1-based lines
func startLine(n *sitter.Node) int { return int(n.StartPoint().Row) + 1 }

func endLine(n *sitter.Node) int { return int(n.EndPoint().Row) + 1 }

func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	children := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		children = append(children, n.NamedChild(i))
	}
	return children
}

// hasChild reports whether any direct child (named or anonymous) has the
// given node type
func hasChild(n *sitter.Node, typ string) bool {
	if n == nil {
		return false
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == typ {
			return true
		}
	}
	return false
}

// childOfType returns the first named child with the given type
func childOfType(n *sitter.Node, typ string) *sitter.Node {
	for _, child := range namedChildren(n) {
		if child.Type() == typ {
			return child
		}
	}
	return nil
}

// baseTypeName strips generics and path qualifiers: Vec<T> -> Vec,
// crate::a::B -> B
func baseTypeName(typ string) string {
	if i := strings.IndexByte(typ, '<'); i >= 0 {
		typ = typ[:i]
	}
	if i := strings.LastIndex(typ, "::"); i >= 0 {
		typ = typ[i+2:]
	}
	return strings.TrimSpace(typ)
}

// paramList maps every named child of a parameter list through name,
// dropping empty results
func paramList(params *sitter.Node, name func(*sitter.Node) string) []string {
	names := []string{}
	for _, p := range namedChildren(params) {
		if s := name(p); s != "" {
			names = append(names, s)
		}
	}
	return names
}
