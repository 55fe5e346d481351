package scanner

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/dshills/citeindex/pkg/types"
)

// NewJavaGrammar returns the Java grammar. Java has no free functions, so
// every extracted function is a method of a top-level type.
func NewJavaGrammar() Grammar {
	return &tsGrammar{
		lang:     types.LangJava,
		exts:     []string{".java"},
		language: java.GetLanguage(),
		walk:     walkJava,
	}
}

func walkJava(c *collector, root *sitter.Node) {
	for _, n := range namedChildren(root) {
		switch n.Type() {
		case "import_declaration":
			spec := strings.TrimSuffix(strings.TrimPrefix(c.text(n), "import"), ";")
			spec = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(spec), "static "))
			c.addImport(spec)

		case "class_declaration", "enum_declaration", "record_declaration":
			c.classes = append(c.classes, c.javaClass(n))

		case "interface_declaration", "annotation_type_declaration":
			props := []string{}
			for _, member := range namedChildren(n.ChildByFieldName("body")) {
				switch member.Type() {
				case "method_declaration", "constant_declaration", "annotation_type_element_declaration":
					if name := c.javaMemberName(member); name != "" {
						props = append(props, name)
					}
				}
			}
			c.interfaces = append(c.interfaces, types.InterfaceRecord{
				Name:       c.fieldText(n, "name"),
				Line:       startLine(n),
				EndLine:    endLine(n),
				IsExported: c.javaPublic(n),
				Kind:       types.InterfaceKindInterface,
				Properties: props,
			})
		}
	}
}

func (c *collector) javaClass(n *sitter.Node) types.ClassRecord {
	cls := types.ClassRecord{
		Name:       c.fieldText(n, "name"),
		Line:       startLine(n),
		EndLine:    endLine(n),
		IsExported: c.javaPublic(n),
		Methods:    []types.FunctionRecord{},
	}

	body := n.ChildByFieldName("body")
	members := namedChildren(body)
	// enum bodies nest their methods one level deeper
	if decls := childOfType(body, "enum_body_declarations"); decls != nil {
		members = append(members, namedChildren(decls)...)
	}

	for _, member := range members {
		switch member.Type() {
		case "method_declaration", "constructor_declaration", "compact_constructor_declaration":
			cls.Methods = append(cls.Methods, types.FunctionRecord{
				Name:       c.fieldText(member, "name"),
				Line:       startLine(member),
				EndLine:    endLine(member),
				Params:     paramList(member.ChildByFieldName("parameters"), c.javaParamName),
				IsExported: c.javaPublic(member),
				Kind:       types.FuncKindMethod,
			})
		}
	}
	return cls
}

func (c *collector) javaParamName(p *sitter.Node) string {
	switch p.Type() {
	case "formal_parameter":
		return c.fieldText(p, "name")
	case "spread_parameter":
		if decl := childOfType(p, "variable_declarator"); decl != nil {
			return c.fieldText(decl, "name")
		}
	}
	return ""
}

func (c *collector) javaMemberName(n *sitter.Node) string {
	if name := c.fieldText(n, "name"); name != "" {
		return name
	}
	if decl := n.ChildByFieldName("declarator"); decl != nil {
		return c.fieldText(decl, "name")
	}
	return ""
}

// javaPublic reports whether the declaration's modifiers include public
func (c *collector) javaPublic(n *sitter.Node) bool {
	mods := childOfType(n, "modifiers")
	if mods == nil {
		return false
	}
	for _, word := range strings.Fields(c.text(mods)) {
		if word == "public" {
			return true
		}
	}
	return false
}
