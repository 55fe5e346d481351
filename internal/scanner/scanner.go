package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/citeindex/pkg/types"
)

// Extractor pulls normalized elements out of one parsed source file.
// Implementations hold the syntax tree until Close is called.
type Extractor interface {
	ExtractFunctions() []types.FunctionRecord
	ExtractClasses() []types.ClassRecord
	ExtractVariables() []types.VariableRecord
	ExtractInterfaces() []types.InterfaceRecord
	ExtractImports() []string
	Close()
}

// Grammar parses source text of one language into an Extractor
type Grammar interface {
	Language() types.Language
	Extensions() []string
	Parse(ctx context.Context, filename string, src []byte) (Extractor, error)
}

// Scanner turns source files into FileRecords using a registry of grammars
// keyed by file extension
type Scanner struct {
	grammars map[string]Grammar
	logger   *slog.Logger
}

// Option configures a Scanner
type Option func(*Scanner)

// WithLogger sets the logger used for skipped files
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGrammar registers an additional grammar, replacing any grammar that
// already claims one of its extensions
func WithGrammar(g Grammar) Option {
	return func(s *Scanner) {
		s.register(g)
	}
}

// New creates a Scanner with every built-in grammar registered
func New(opts ...Option) *Scanner {
	s := &Scanner{
		grammars: make(map[string]Grammar),
		logger:   slog.Default(),
	}
	for _, g := range DefaultGrammars() {
		s.register(g)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultGrammars returns the built-in grammar set
func DefaultGrammars() []Grammar {
	return []Grammar{
		NewGoGrammar(),
		NewJavaScriptGrammar(),
		NewTypeScriptGrammar(),
		NewTSXGrammar(),
		NewPythonGrammar(),
		NewJavaGrammar(),
		NewRustGrammar(),
		NewCGrammar(),
		NewCPPGrammar(),
	}
}

func (s *Scanner) register(g Grammar) {
	for _, ext := range g.Extensions() {
		s.grammars[strings.ToLower(ext)] = g
	}
}

// Supports reports whether the file's extension maps to a registered grammar
func (s *Scanner) Supports(filePath string) bool {
	_, ok := s.grammarFor(filePath)
	return ok
}

// Extensions returns the registered extensions in sorted order
func (s *Scanner) Extensions() []string {
	exts := make([]string, 0, len(s.grammars))
	for ext := range s.grammars {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func (s *Scanner) grammarFor(filePath string) (Grammar, bool) {
	g, ok := s.grammars[strings.ToLower(filepath.Ext(filePath))]
	return g, ok
}

// Scan parses one file into a FileRecord.
// It returns (nil, nil) when the extension is unsupported or the file cannot
// be read; both cases are skippable per-file conditions, not errors.
func (s *Scanner) Scan(ctx context.Context, filePath, rootPath string) (*types.FileRecord, error) {
	grammar, ok := s.grammarFor(filePath)
	if !ok {
		return nil, nil
	}

	src, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			s.logger.Debug("scanner: skipping unreadable file",
				slog.String("path", filePath), slog.String("error", err.Error()))
			return nil, nil
		}
		s.logger.Warn("scanner: read failed",
			slog.String("path", filePath), slog.String("error", err.Error()))
		return nil, nil
	}

	relPath, err := filepath.Rel(rootPath, filePath)
	if err != nil {
		return nil, fmt.Errorf("relative path for %s: %w", filePath, err)
	}

	extractor, err := grammar.Parse(ctx, filePath, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", relPath, err)
	}
	defer extractor.Close()

	record := &types.FileRecord{
		Path:         filePath,
		RelativePath: filepath.ToSlash(relPath),
		Language:     grammar.Language(),
		LineCount:    countLines(src),
		Functions:    extractor.ExtractFunctions(),
		Classes:      extractor.ExtractClasses(),
		Variables:    extractor.ExtractVariables(),
		Interfaces:   extractor.ExtractInterfaces(),
		Imports:      extractor.ExtractImports(),
	}
	record.Normalize()

	return record, nil
}

// countLines counts lines the way editors number them: a trailing newline
// does not start a new line
func countLines(src []byte) int {
	if len(src) == 0 {
		return 0
	}
	n := bytes.Count(src, []byte{'\n'})
	if src[len(src)-1] != '\n' {
		n++
	}
	return n
}
