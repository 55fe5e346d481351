// Package scanner extracts citeable code elements from source files across
// several languages into a normalized types.FileRecord.
//
// Go files are parsed with the standard library (go/parser, go/ast). The
// remaining languages use tree-sitter grammars: JavaScript, TypeScript,
// TSX, Python, Java, Rust, C and C++.
//
// # Basic Usage
//
//	s := scanner.New()
//	record, err := s.Scan(ctx, "/repo/src/billing.ts", "/repo")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if record == nil {
//	    // unsupported extension or unreadable file
//	}
//
// # Extraction
//
// Each grammar walks only the top level of its syntax tree (plus class
// bodies for methods) and dispatches on node kind. The record carries:
//   - Functions, including function values bound to top-level variables (kind "arrow")
//   - Classes with their methods
//   - Top-level variables and constants
//   - Interfaces, traits and type aliases
//   - Imports, includes and use declarations
//
// Only functions and classes (with methods) are citeable; variables and
// interfaces are collected for completeness.
//
// "Exported" follows each language's convention: export statements for
// JavaScript and TypeScript, public modifiers for Java and Rust, leading
// uppercase for Go, no leading underscore for Python, and anything not
// declared static for C and C++.
//
// Syntax trees are released before Scan returns. Tree-sitter grammars
// require cgo.
package scanner
