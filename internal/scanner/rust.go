package scanner

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/dshills/citeindex/pkg/types"
)

// NewRustGrammar returns the Rust grammar. Structs and enums are classes,
// impl blocks contribute their methods, traits are interfaces.
func NewRustGrammar() Grammar {
	return &tsGrammar{
		lang:     types.LangRust,
		exts:     []string{".rs"},
		language: rust.GetLanguage(),
		walk:     walkRust,
	}
}

func walkRust(c *collector, root *sitter.Node) {
	for _, n := range namedChildren(root) {
		switch n.Type() {
		case "function_item":
			c.functions = append(c.functions, c.rustFunction(n, types.FuncKindFunction))

		case "struct_item", "enum_item", "union_item":
			c.classes = append(c.classes, types.ClassRecord{
				Name:       c.fieldText(n, "name"),
				Line:       startLine(n),
				EndLine:    endLine(n),
				IsExported: rustPub(n),
				Methods:    []types.FunctionRecord{},
			})

		case "impl_item":
			owner := baseTypeName(c.fieldText(n, "type"))
			for _, member := range namedChildren(n.ChildByFieldName("body")) {
				if member.Type() == "function_item" {
					c.addDetached(owner, c.rustFunction(member, types.FuncKindMethod))
				}
			}

		case "trait_item":
			props := []string{}
			for _, member := range namedChildren(n.ChildByFieldName("body")) {
				switch member.Type() {
				case "function_item", "function_signature_item", "associated_type":
					props = append(props, c.fieldText(member, "name"))
				}
			}
			c.interfaces = append(c.interfaces, types.InterfaceRecord{
				Name:       c.fieldText(n, "name"),
				Line:       startLine(n),
				EndLine:    endLine(n),
				IsExported: rustPub(n),
				Kind:       types.InterfaceKindInterface,
				Properties: props,
			})

		case "type_item":
			c.interfaces = append(c.interfaces, types.InterfaceRecord{
				Name:       c.fieldText(n, "name"),
				Line:       startLine(n),
				EndLine:    endLine(n),
				IsExported: rustPub(n),
				Kind:       types.InterfaceKindType,
				Properties: []string{},
			})

		case "const_item", "static_item":
			kind := "const"
			if n.Type() == "static_item" {
				kind = "static"
			}
			c.variables = append(c.variables, types.VariableRecord{
				Name:       c.fieldText(n, "name"),
				Line:       startLine(n),
				IsExported: rustPub(n),
				Kind:       kind,
			})

		case "use_declaration":
			c.addImport(c.fieldText(n, "argument"))

		case "extern_crate_declaration":
			c.addImport(c.fieldText(n, "name"))
		}
	}
}

func (c *collector) rustFunction(n *sitter.Node, kind types.FunctionKind) types.FunctionRecord {
	async := false
	if mods := childOfType(n, "function_modifiers"); mods != nil {
		async = strings.Contains(c.text(mods), "async")
	}
	return types.FunctionRecord{
		Name:       c.fieldText(n, "name"),
		Line:       startLine(n),
		EndLine:    endLine(n),
		Params:     paramList(n.ChildByFieldName("parameters"), c.rustParamName),
		IsAsync:    async,
		IsExported: rustPub(n),
		Kind:       kind,
	}
}

// rustParamName returns the pattern text of a parameter; self receivers
// are dropped
func (c *collector) rustParamName(p *sitter.Node) string {
	if p.Type() != "parameter" {
		return ""
	}
	pattern := p.ChildByFieldName("pattern")
	if pattern == nil {
		return ""
	}
	// mut x binds x
	if pattern.Type() == "mut_pattern" {
		if inner := pattern.NamedChild(0); inner != nil {
			return c.text(inner)
		}
	}
	return c.text(pattern)
}

func rustPub(n *sitter.Node) bool {
	return childOfType(n, "visibility_modifier") != nil
}
