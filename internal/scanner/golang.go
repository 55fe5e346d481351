package scanner

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"

	"github.com/dshills/citeindex/pkg/types"
)

// goGrammar parses Go sources with the standard library AST.
// Exported means a leading uppercase identifier.
type goGrammar struct{}

// NewGoGrammar returns the Go grammar
func NewGoGrammar() Grammar {
	return goGrammar{}
}

func (goGrammar) Language() types.Language { return types.LangGo }

func (goGrammar) Extensions() []string { return []string{".go"} }

func (goGrammar) Parse(_ context.Context, filename string, src []byte) (Extractor, error) {
	fset := token.NewFileSet()
	// Syntax errors are non-fatal: the parser returns a partial AST
	file, _ := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)

	e := &goExtractor{fset: fset, file: file}
	if file != nil {
		ast.Inspect(file, e.visit)
	}
	return e, nil
}

// goExtractor collects declarations in a single pass over the file
type goExtractor struct {
	fset *token.FileSet
	file *ast.File

	functions  []types.FunctionRecord
	classes    []types.ClassRecord
	variables  []types.VariableRecord
	interfaces []types.InterfaceRecord
	methods    map[string][]types.FunctionRecord
	order      []string
}

// visit is called for each AST node during traversal.
// Only top-level declarations are of interest so descent stops at them.
func (e *goExtractor) visit(node ast.Node) bool {
	switch n := node.(type) {
	case nil:
		return false
	case *ast.File:
		return true
	case *ast.FuncDecl:
		e.extractFunction(n)
		return false
	case *ast.GenDecl:
		e.extractGenDecl(n)
		return false
	default:
		return false
	}
}

func (e *goExtractor) extractFunction(fn *ast.FuncDecl) {
	rec := types.FunctionRecord{
		Name:       fn.Name.Name,
		Line:       e.line(fn.Pos()),
		EndLine:    e.line(fn.End()),
		Params:     fieldNames(fn.Type.Params),
		IsExported: token.IsExported(fn.Name.Name),
		Kind:       types.FuncKindFunction,
	}

	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		rec.Kind = types.FuncKindMethod
		recv := receiverType(fn.Recv.List[0].Type)
		if e.methods == nil {
			e.methods = make(map[string][]types.FunctionRecord)
		}
		if _, seen := e.methods[recv]; !seen {
			e.order = append(e.order, recv)
		}
		e.methods[recv] = append(e.methods[recv], rec)
		return
	}

	e.functions = append(e.functions, rec)
}

func (e *goExtractor) extractGenDecl(decl *ast.GenDecl) {
	for _, spec := range decl.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			e.extractTypeSpec(s)
		case *ast.ValueSpec:
			e.extractValueSpec(s, decl.Tok)
		}
	}
}

// extractTypeSpec maps structs to classes and every other named type to an
// interface record (interfaces, aliases, named types)
func (e *goExtractor) extractTypeSpec(spec *ast.TypeSpec) {
	name := spec.Name.Name
	switch t := spec.Type.(type) {
	case *ast.StructType:
		e.classes = append(e.classes, types.ClassRecord{
			Name:       name,
			Line:       e.line(spec.Pos()),
			EndLine:    e.line(spec.End()),
			IsExported: token.IsExported(name),
		})
	case *ast.InterfaceType:
		e.interfaces = append(e.interfaces, types.InterfaceRecord{
			Name:       name,
			Line:       e.line(spec.Pos()),
			EndLine:    e.line(spec.End()),
			IsExported: token.IsExported(name),
			Kind:       types.InterfaceKindInterface,
			Properties: fieldNames(t.Methods),
		})
	default:
		e.interfaces = append(e.interfaces, types.InterfaceRecord{
			Name:       name,
			Line:       e.line(spec.Pos()),
			EndLine:    e.line(spec.End()),
			IsExported: token.IsExported(name),
			Kind:       types.InterfaceKindType,
		})
	}
}

// extractValueSpec records top-level vars and consts; func-literal values
// become arrow functions instead
func (e *goExtractor) extractValueSpec(spec *ast.ValueSpec, tok token.Token) {
	for i, name := range spec.Names {
		if name.Name == "_" {
			continue
		}
		if i < len(spec.Values) {
			if lit, ok := spec.Values[i].(*ast.FuncLit); ok {
				e.functions = append(e.functions, types.FunctionRecord{
					Name:       name.Name,
					Line:       e.line(name.Pos()),
					EndLine:    e.line(lit.End()),
					Params:     fieldNames(lit.Type.Params),
					IsExported: token.IsExported(name.Name),
					Kind:       types.FuncKindArrow,
				})
				continue
			}
		}
		e.variables = append(e.variables, types.VariableRecord{
			Name:       name.Name,
			Line:       e.line(name.Pos()),
			IsExported: token.IsExported(name.Name),
			Kind:       tok.String(),
		})
	}
}

func (e *goExtractor) ExtractFunctions() []types.FunctionRecord {
	functions := append([]types.FunctionRecord(nil), e.functions...)
	// Methods whose receiver type is declared elsewhere stay functions
	for _, recv := range e.order {
		if e.classIndex(recv) < 0 {
			functions = append(functions, e.methods[recv]...)
		}
	}
	return functions
}

func (e *goExtractor) ExtractClasses() []types.ClassRecord {
	classes := make([]types.ClassRecord, len(e.classes))
	copy(classes, e.classes)
	for i := range classes {
		classes[i].Methods = append([]types.FunctionRecord(nil), e.methods[classes[i].Name]...)
	}
	return classes
}

func (e *goExtractor) ExtractVariables() []types.VariableRecord { return e.variables }

func (e *goExtractor) ExtractInterfaces() []types.InterfaceRecord { return e.interfaces }

func (e *goExtractor) ExtractImports() []string {
	if e.file == nil {
		return nil
	}
	imports := make([]string, 0, len(e.file.Imports))
	for _, imp := range e.file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			path = imp.Path.Value
		}
		imports = append(imports, path)
	}
	return imports
}

func (e *goExtractor) Close() {
	e.file = nil
}

func (e *goExtractor) classIndex(name string) int {
	for i := range e.classes {
		if e.classes[i].Name == name {
			return i
		}
	}
	return -1
}

func (e *goExtractor) line(pos token.Pos) int {
	return e.fset.Position(pos).Line
}

// receiverType extracts the receiver type name, unwrapping pointers and
// type parameters
func receiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverType(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverType(t.X)
	case *ast.IndexListExpr:
		return receiverType(t.X)
	}
	return ""
}

// fieldNames lists the declared names of a field list in order
func fieldNames(fields *ast.FieldList) []string {
	if fields == nil {
		return []string{}
	}
	names := make([]string, 0, fields.NumFields())
	for _, field := range fields.List {
		for _, name := range field.Names {
			names = append(names, name.Name)
		}
	}
	return names
}
