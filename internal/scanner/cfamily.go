package scanner

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/dshills/citeindex/pkg/types"
)

// NewCGrammar returns the C grammar
func NewCGrammar() Grammar {
	return &tsGrammar{
		lang:     types.LangC,
		exts:     []string{".c", ".h"},
		language: c.GetLanguage(),
		walk:     walkCFamily,
	}
}

// NewCPPGrammar returns the C++ grammar
func NewCPPGrammar() Grammar {
	return &tsGrammar{
		lang:     types.LangCPP,
		exts:     []string{".cc", ".cpp", ".cxx", ".hpp", ".hh"},
		language: cpp.GetLanguage(),
		walk:     walkCFamily,
	}
}

// walkCFamily serves C and C++. Anything without static storage counts as
// exported; namespaces and templates are transparent.
func walkCFamily(col *collector, root *sitter.Node) {
	for _, n := range namedChildren(root) {
		col.cStatement(n)
	}
}

func (col *collector) cStatement(n *sitter.Node) {
	switch n.Type() {
	case "preproc_include":
		col.addImport(col.fieldText(n, "path"))

	case "using_declaration":
		col.addImport(strings.TrimSuffix(strings.TrimPrefix(col.text(n), "using"), ";"))

	case "namespace_definition":
		for _, child := range namedChildren(n.ChildByFieldName("body")) {
			col.cStatement(child)
		}

	case "template_declaration", "linkage_specification":
		for _, child := range namedChildren(n) {
			col.cStatement(child)
		}

	case "declaration_list":
		for _, child := range namedChildren(n) {
			col.cStatement(child)
		}

	case "preproc_ifdef", "preproc_if", "preproc_else":
		for _, child := range namedChildren(n) {
			col.cStatement(child)
		}

	case "function_definition":
		col.cFunction(n)

	case "struct_specifier", "class_specifier", "union_specifier":
		col.cClass(n, true)

	case "type_definition":
		col.interfaces = append(col.interfaces, types.InterfaceRecord{
			Name:       col.text(cIdentifier(n.ChildByFieldName("declarator"))),
			Line:       startLine(n),
			EndLine:    endLine(n),
			IsExported: true,
			Kind:       types.InterfaceKindType,
			Properties: col.cFieldNames(n.ChildByFieldName("type")),
		})

	case "alias_declaration":
		col.interfaces = append(col.interfaces, types.InterfaceRecord{
			Name:       col.fieldText(n, "name"),
			Line:       startLine(n),
			EndLine:    endLine(n),
			IsExported: true,
			Kind:       types.InterfaceKindType,
			Properties: []string{},
		})

	case "declaration":
		col.cDeclaration(n)
	}
}

func (col *collector) cFunction(n *sitter.Node) {
	decl := cFunctionDeclarator(n.ChildByFieldName("declarator"))
	if decl == nil {
		return
	}
	nameNode := decl.ChildByFieldName("declarator")
	fn := types.FunctionRecord{
		Line:       startLine(n),
		EndLine:    endLine(n),
		Params:     paramList(decl.ChildByFieldName("parameters"), col.cParamName),
		IsExported: !col.cStatic(n),
		Kind:       types.FuncKindFunction,
	}

	// Foo::bar defined outside its class body
	if nameNode != nil && nameNode.Type() == "qualified_identifier" {
		fn.Name = col.fieldText(nameNode, "name")
		fn.Kind = types.FuncKindMethod
		col.addDetached(baseTypeName(col.fieldText(nameNode, "scope")), fn)
		return
	}

	fn.Name = col.text(cIdentifier(nameNode))
	if fn.Name != "" {
		col.functions = append(col.functions, fn)
	}
}

// cClass records a struct/class/union with a body. Inline member function
// definitions become its methods.
func (col *collector) cClass(n *sitter.Node, exported bool) {
	body := n.ChildByFieldName("body")
	name := col.fieldText(n, "name")
	if body == nil || name == "" {
		return
	}

	cls := types.ClassRecord{
		Name:       name,
		Line:       startLine(n),
		EndLine:    endLine(n),
		IsExported: exported,
		Methods:    []types.FunctionRecord{},
	}
	for _, member := range namedChildren(body) {
		if member.Type() == "template_declaration" {
			member = childOfType(member, "function_definition")
		}
		if member == nil || member.Type() != "function_definition" {
			continue
		}
		decl := cFunctionDeclarator(member.ChildByFieldName("declarator"))
		if decl == nil {
			continue
		}
		cls.Methods = append(cls.Methods, types.FunctionRecord{
			Name:       col.text(cIdentifier(decl.ChildByFieldName("declarator"))),
			Line:       startLine(member),
			EndLine:    endLine(member),
			Params:     paramList(decl.ChildByFieldName("parameters"), col.cParamName),
			IsExported: exported,
			Kind:       types.FuncKindMethod,
		})
	}
	col.classes = append(col.classes, cls)
}

// cDeclaration handles top-level declarations: struct definitions with a
// trailing declarator and global variables. Prototypes are skipped.
func (col *collector) cDeclaration(n *sitter.Node) {
	static := col.cStatic(n)
	if typ := n.ChildByFieldName("type"); typ != nil {
		switch typ.Type() {
		case "struct_specifier", "class_specifier", "union_specifier":
			col.cClass(typ, !static)
		}
	}

	for _, child := range namedChildren(n) {
		switch child.Type() {
		case "identifier", "init_declarator", "pointer_declarator", "array_declarator":
		default:
			continue
		}
		if cFunctionDeclarator(child) != nil {
			continue
		}
		name := col.text(cIdentifier(child))
		if name == "" {
			continue
		}
		kind := "variable"
		if col.cConst(n) {
			kind = "const"
		}
		col.variables = append(col.variables, types.VariableRecord{
			Name:       name,
			Line:       startLine(child),
			IsExported: !static,
			Kind:       kind,
		})
	}
}

func (col *collector) cParamName(p *sitter.Node) string {
	switch p.Type() {
	case "parameter_declaration", "optional_parameter_declaration":
		return col.text(cIdentifier(p.ChildByFieldName("declarator")))
	case "variadic_parameter":
		return "..."
	}
	return ""
}

// cFieldNames lists member names of a struct body used in a typedef
func (col *collector) cFieldNames(typ *sitter.Node) []string {
	names := []string{}
	if typ == nil {
		return names
	}
	for _, field := range namedChildren(typ.ChildByFieldName("body")) {
		if field.Type() != "field_declaration" {
			continue
		}
		if name := col.text(cIdentifier(field.ChildByFieldName("declarator"))); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (col *collector) cStatic(n *sitter.Node) bool {
	for _, child := range namedChildren(n) {
		if child.Type() == "storage_class_specifier" && col.text(child) == "static" {
			return true
		}
	}
	return false
}

func (col *collector) cConst(n *sitter.Node) bool {
	for _, child := range namedChildren(n) {
		if child.Type() == "type_qualifier" {
			switch col.text(child) {
			case "const", "constexpr":
				return true
			}
		}
	}
	return false
}

// cFunctionDeclarator unwraps pointer and reference declarators down to
// the function declarator, or nil when there is none
func cFunctionDeclarator(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "function_declarator":
			return n
		case "pointer_declarator", "reference_declarator", "init_declarator", "parenthesized_declarator":
			next := n.ChildByFieldName("declarator")
			if next == nil {
				next = n.NamedChild(0)
			}
			n = next
		default:
			return nil
		}
	}
	return nil
}

// cIdentifier descends nested declarators to the declared name
func cIdentifier(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "identifier", "field_identifier", "type_identifier", "destructor_name", "operator_name":
			return n
		}
		next := n.ChildByFieldName("declarator")
		if next == nil {
			next = n.ChildByFieldName("name")
		}
		if next == nil {
			next = n.NamedChild(0)
		}
		n = next
	}
	return nil
}
