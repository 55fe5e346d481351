package types

// Language identifies the grammar used to scan a source file
type Language string

const (
	LangGo         Language = "go"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangPython     Language = "python"
	LangJava       Language = "java"
	LangRust       Language = "rust"
	LangC          Language = "c"
	LangCPP        Language = "cpp"
)

// FunctionKind distinguishes declared functions, function values and methods
type FunctionKind string

const (
	FuncKindFunction FunctionKind = "function"
	FuncKindArrow    FunctionKind = "arrow"
	FuncKindMethod   FunctionKind = "method"
)

// InterfaceKind distinguishes interface declarations from type aliases
type InterfaceKind string

const (
	InterfaceKindInterface InterfaceKind = "interface"
	InterfaceKindType      InterfaceKind = "type"
)

// FunctionRecord describes a function, function-valued binding or method
type FunctionRecord struct {
	Name       string       `json:"name"`
	Line       int          `json:"line"`
	EndLine    int          `json:"endLine"`
	Params     []string     `json:"params"`
	IsAsync    bool         `json:"isAsync"`
	IsExported bool         `json:"isExported"`
	Kind       FunctionKind `json:"kind"`
}

// ClassRecord describes a class (or struct-like type) and its methods
type ClassRecord struct {
	Name       string           `json:"name"`
	Line       int              `json:"line"`
	EndLine    int              `json:"endLine"`
	IsExported bool             `json:"isExported"`
	Methods    []FunctionRecord `json:"methods"`
}

// VariableRecord describes a top-level variable or constant
type VariableRecord struct {
	Name       string `json:"name"`
	Line       int    `json:"line"`
	IsExported bool   `json:"isExported"`
	Kind       string `json:"kind"`
}

// InterfaceRecord describes an interface, trait or type alias
type InterfaceRecord struct {
	Name       string        `json:"name"`
	Line       int           `json:"line"`
	EndLine    int           `json:"endLine"`
	IsExported bool          `json:"isExported"`
	Kind       InterfaceKind `json:"kind"`
	Properties []string      `json:"properties"`
}

// FileRecord is the normalized scan result for one source file
type FileRecord struct {
	Path         string            `json:"path"`
	RelativePath string            `json:"relativePath"`
	Language     Language          `json:"language"`
	LineCount    int               `json:"lineCount"`
	Functions    []FunctionRecord  `json:"functions"`
	Classes      []ClassRecord     `json:"classes"`
	Variables    []VariableRecord  `json:"variables"`
	Interfaces   []InterfaceRecord `json:"interfaces"`
	Imports      []string          `json:"imports"`
}

// ScanResult is a whole-project scan: every scanned file under Root
type ScanResult struct {
	Root  string        `json:"root"`
	Files []*FileRecord `json:"files"`
}

// ElementKind names a citeable element category
type ElementKind string

const (
	ElementFunction ElementKind = "function"
	ElementArrow    ElementKind = "arrow"
	ElementMethod   ElementKind = "method"
	ElementClass    ElementKind = "class"
)

// Element is a citeable code element flattened out of a FileRecord
type Element struct {
	Name    string
	Kind    ElementKind
	Line    int
	EndLine int
	Params  []string
}

// Elements returns the citeable elements of the file in a stable order:
// functions first, then each class followed by its methods.
// Variables and interfaces are never citeable.
func (f *FileRecord) Elements() []Element {
	elements := make([]Element, 0, len(f.Functions)+len(f.Classes))
	for _, fn := range f.Functions {
		elements = append(elements, Element{
			Name:    fn.Name,
			Kind:    ElementKind(fn.Kind),
			Line:    fn.Line,
			EndLine: fn.EndLine,
			Params:  fn.Params,
		})
	}
	for _, cls := range f.Classes {
		elements = append(elements, Element{
			Name:    cls.Name,
			Kind:    ElementClass,
			Line:    cls.Line,
			EndLine: cls.EndLine,
		})
		for _, m := range cls.Methods {
			elements = append(elements, Element{
				Name:    m.Name,
				Kind:    ElementMethod,
				Line:    m.Line,
				EndLine: m.EndLine,
				Params:  m.Params,
			})
		}
	}
	return elements
}

// ElementCount returns functions plus classes, the unit used by coverage.
// Methods are not counted separately from their parent class.
func (f *FileRecord) ElementCount() int {
	return len(f.Functions) + len(f.Classes)
}

// Normalize replaces nil slices with empty ones so the serialized payload
// always carries arrays
func (f *FileRecord) Normalize() {
	if f.Functions == nil {
		f.Functions = []FunctionRecord{}
	}
	if f.Classes == nil {
		f.Classes = []ClassRecord{}
	}
	if f.Variables == nil {
		f.Variables = []VariableRecord{}
	}
	if f.Interfaces == nil {
		f.Interfaces = []InterfaceRecord{}
	}
	if f.Imports == nil {
		f.Imports = []string{}
	}
	for i := range f.Functions {
		if f.Functions[i].Params == nil {
			f.Functions[i].Params = []string{}
		}
	}
	for i := range f.Classes {
		if f.Classes[i].Methods == nil {
			f.Classes[i].Methods = []FunctionRecord{}
		}
		for j := range f.Classes[i].Methods {
			if f.Classes[i].Methods[j].Params == nil {
				f.Classes[i].Methods[j].Params = []string{}
			}
		}
	}
	for i := range f.Interfaces {
		if f.Interfaces[i].Properties == nil {
			f.Interfaces[i].Properties = []string{}
		}
	}
}

// Validate checks the function record for structural consistency
func (fn *FunctionRecord) Validate() error {
	if fn.Name == "" {
		return ErrEmptyName
	}
	switch fn.Kind {
	case FuncKindFunction, FuncKindArrow, FuncKindMethod:
	default:
		return ErrInvalidKind
	}
	if fn.Line <= 0 || fn.EndLine < fn.Line {
		return ErrInvalidLines
	}
	return nil
}

// Validate performs structural validation of the whole record
func (f *FileRecord) Validate() error {
	if f.Language == "" {
		return ErrMissingLanguage
	}
	for i := range f.Functions {
		if err := f.Functions[i].Validate(); err != nil {
			return err
		}
	}
	for _, cls := range f.Classes {
		if cls.Name == "" {
			return ErrEmptyName
		}
		for i := range cls.Methods {
			if err := cls.Methods[i].Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}
