package scanner

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/dshills/citeindex/pkg/types"
)

// NewPythonGrammar returns the Python grammar.
// Names without a leading underscore count as exported.
func NewPythonGrammar() Grammar {
	return &tsGrammar{
		lang:     types.LangPython,
		exts:     []string{".py"},
		language: python.GetLanguage(),
		walk:     walkPython,
	}
}

func walkPython(c *collector, root *sitter.Node) {
	for _, n := range namedChildren(root) {
		c.pyStatement(n)
	}
}

func (c *collector) pyStatement(n *sitter.Node) {
	switch n.Type() {
	case "decorated_definition":
		if def := n.ChildByFieldName("definition"); def != nil {
			c.pyStatement(def)
		}

	case "function_definition":
		c.functions = append(c.functions, c.pyFunction(n, types.FuncKindFunction))

	case "class_definition":
		name := c.fieldText(n, "name")
		cls := types.ClassRecord{
			Name:       name,
			Line:       startLine(n),
			EndLine:    endLine(n),
			IsExported: pyExported(name),
			Methods:    []types.FunctionRecord{},
		}
		for _, member := range namedChildren(n.ChildByFieldName("body")) {
			if member.Type() == "decorated_definition" {
				member = member.ChildByFieldName("definition")
			}
			if member != nil && member.Type() == "function_definition" {
				cls.Methods = append(cls.Methods, c.pyFunction(member, types.FuncKindMethod))
			}
		}
		c.classes = append(c.classes, cls)

	case "expression_statement":
		for _, child := range namedChildren(n) {
			if child.Type() == "assignment" {
				c.pyAssignment(child)
			}
		}

	case "import_statement":
		for _, child := range namedChildren(n) {
			switch child.Type() {
			case "dotted_name":
				c.addImport(c.text(child))
			case "aliased_import":
				c.addImport(c.fieldText(child, "name"))
			}
		}

	case "import_from_statement":
		c.addImport(c.fieldText(n, "module_name"))
	}
}

func (c *collector) pyFunction(n *sitter.Node, kind types.FunctionKind) types.FunctionRecord {
	name := c.fieldText(n, "name")
	return types.FunctionRecord{
		Name:       name,
		Line:       startLine(n),
		EndLine:    endLine(n),
		Params:     paramList(n.ChildByFieldName("parameters"), c.pyParamName),
		IsAsync:    hasChild(n, "async"),
		IsExported: pyExported(name),
		Kind:       kind,
	}
}

// pyAssignment records module-level bindings; lambda values become arrow
// functions
func (c *collector) pyAssignment(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return
	}
	name := c.text(left)

	if right := n.ChildByFieldName("right"); right != nil && right.Type() == "lambda" {
		c.functions = append(c.functions, types.FunctionRecord{
			Name:       name,
			Line:       startLine(n),
			EndLine:    endLine(right),
			Params:     paramList(right.ChildByFieldName("parameters"), c.pyParamName),
			IsExported: pyExported(name),
			Kind:       types.FuncKindArrow,
		})
		return
	}

	c.variables = append(c.variables, types.VariableRecord{
		Name:       name,
		Line:       startLine(n),
		IsExported: pyExported(name),
		Kind:       "assignment",
	})
}

// pyParamName returns the bound name of one parameter, dropping the
// implicit receiver
func (c *collector) pyParamName(p *sitter.Node) string {
	var name string
	switch p.Type() {
	case "identifier":
		name = c.text(p)
	case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
		name = c.text(childOfType(p, "identifier"))
	case "default_parameter", "typed_default_parameter":
		name = c.fieldText(p, "name")
	}
	if name == "self" || name == "cls" {
		return ""
	}
	return name
}

func pyExported(name string) bool {
	return name != "" && !strings.HasPrefix(name, "_")
}
