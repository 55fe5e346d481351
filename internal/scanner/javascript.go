package scanner

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/dshills/citeindex/pkg/types"
)

// NewJavaScriptGrammar returns the JavaScript grammar
func NewJavaScriptGrammar() Grammar {
	return &tsGrammar{
		lang:     types.LangJavaScript,
		exts:     []string{".js", ".jsx", ".mjs", ".cjs"},
		language: javascript.GetLanguage(),
		walk:     walkECMAScript,
	}
}

// NewTypeScriptGrammar returns the TypeScript grammar
func NewTypeScriptGrammar() Grammar {
	return &tsGrammar{
		lang:     types.LangTypeScript,
		exts:     []string{".ts", ".mts", ".cts"},
		language: typescript.GetLanguage(),
		walk:     walkECMAScript,
	}
}

// NewTSXGrammar returns the TypeScript JSX grammar
func NewTSXGrammar() Grammar {
	return &tsGrammar{
		lang:     types.LangTSX,
		exts:     []string{".tsx"},
		language: tsx.GetLanguage(),
		walk:     walkECMAScript,
	}
}

// walkECMAScript serves JavaScript, TypeScript and TSX. Their trees share
// node kinds for everything extracted here; TypeScript adds interfaces and
// type aliases.
func walkECMAScript(c *collector, root *sitter.Node) {
	for _, n := range namedChildren(root) {
		c.esStatement(n, false)
	}
}

func (c *collector) esStatement(n *sitter.Node, exported bool) {
	switch n.Type() {
	case "export_statement":
		if decl := n.ChildByFieldName("declaration"); decl != nil {
			c.esStatement(decl, true)
			return
		}
		// export default function name() {} and export default class Name {}
		for _, child := range namedChildren(n) {
			c.esStatement(child, true)
		}

	case "function_declaration", "generator_function_declaration", "function", "function_expression":
		name := c.fieldText(n, "name")
		if name == "" {
			return
		}
		c.functions = append(c.functions, types.FunctionRecord{
			Name:       name,
			Line:       startLine(n),
			EndLine:    endLine(n),
			Params:     c.esParams(n),
			IsAsync:    hasChild(n, "async"),
			IsExported: exported,
			Kind:       types.FuncKindFunction,
		})

	case "class_declaration", "abstract_class_declaration", "class":
		if cls, ok := c.esClass(n, exported); ok {
			c.classes = append(c.classes, cls)
		}

	case "lexical_declaration", "variable_declaration":
		c.esVariables(n, exported)

	case "interface_declaration":
		c.interfaces = append(c.interfaces, types.InterfaceRecord{
			Name:       c.fieldText(n, "name"),
			Line:       startLine(n),
			EndLine:    endLine(n),
			IsExported: exported,
			Kind:       types.InterfaceKindInterface,
			Properties: c.esMemberNames(n.ChildByFieldName("body")),
		})

	case "type_alias_declaration":
		c.interfaces = append(c.interfaces, types.InterfaceRecord{
			Name:       c.fieldText(n, "name"),
			Line:       startLine(n),
			EndLine:    endLine(n),
			IsExported: exported,
			Kind:       types.InterfaceKindType,
			Properties: c.esMemberNames(n.ChildByFieldName("value")),
		})

	case "import_statement":
		c.addImport(c.fieldText(n, "source"))
	}
}

// esVariables splits a declaration into arrow functions and plain bindings
func (c *collector) esVariables(n *sitter.Node, exported bool) {
	kind := "var"
	if n.ChildCount() > 0 {
		kind = n.Child(0).Type()
	}

	for _, decl := range namedChildren(n) {
		if decl.Type() != "variable_declarator" {
			continue
		}
		nameNode := decl.ChildByFieldName("name")
		if nameNode == nil || nameNode.Type() != "identifier" {
			continue
		}
		name := c.text(nameNode)

		value := decl.ChildByFieldName("value")
		if value != nil && isFunctionValue(value.Type()) {
			c.functions = append(c.functions, types.FunctionRecord{
				Name:       name,
				Line:       startLine(decl),
				EndLine:    endLine(value),
				Params:     c.esParams(value),
				IsAsync:    hasChild(value, "async"),
				IsExported: exported,
				Kind:       types.FuncKindArrow,
			})
			continue
		}

		c.variables = append(c.variables, types.VariableRecord{
			Name:       name,
			Line:       startLine(decl),
			IsExported: exported,
			Kind:       kind,
		})
	}
}

func isFunctionValue(typ string) bool {
	switch typ {
	case "arrow_function", "function", "function_expression", "generator_function":
		return true
	}
	return false
}

func (c *collector) esClass(n *sitter.Node, exported bool) (types.ClassRecord, bool) {
	name := c.fieldText(n, "name")
	if name == "" {
		return types.ClassRecord{}, false
	}

	cls := types.ClassRecord{
		Name:       name,
		Line:       startLine(n),
		EndLine:    endLine(n),
		IsExported: exported,
		Methods:    []types.FunctionRecord{},
	}

	for _, member := range namedChildren(n.ChildByFieldName("body")) {
		switch member.Type() {
		case "method_definition", "method_signature", "abstract_method_signature":
			cls.Methods = append(cls.Methods, types.FunctionRecord{
				Name:       c.fieldText(member, "name"),
				Line:       startLine(member),
				EndLine:    endLine(member),
				Params:     c.esParams(member),
				IsAsync:    hasChild(member, "async"),
				IsExported: exported,
				Kind:       types.FuncKindMethod,
			})
		}
	}
	return cls, true
}

// esParams reads the parameter names of any function-like node. Arrow
// functions with a single bare parameter use the "parameter" field.
func (c *collector) esParams(fn *sitter.Node) []string {
	if single := fn.ChildByFieldName("parameter"); single != nil {
		return []string{c.text(single)}
	}
	return paramList(fn.ChildByFieldName("parameters"), c.esParamName)
}

func (c *collector) esParamName(p *sitter.Node) string {
	if p == nil {
		return ""
	}
	switch p.Type() {
	case "identifier":
		return c.text(p)
	case "required_parameter", "optional_parameter":
		return c.esParamName(p.ChildByFieldName("pattern"))
	case "assignment_pattern":
		return c.esParamName(p.ChildByFieldName("left"))
	case "rest_pattern":
		if inner := p.NamedChild(0); inner != nil {
			return c.esParamName(inner)
		}
	case "object_pattern", "array_pattern":
		return c.text(p)
	case "comment":
		return ""
	}
	return c.text(p)
}

// esMemberNames lists property and method names of an object type body
func (c *collector) esMemberNames(body *sitter.Node) []string {
	names := []string{}
	for _, member := range namedChildren(body) {
		switch member.Type() {
		case "property_signature", "method_signature":
			if name := c.fieldText(member, "name"); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}
