// Package types provides shared type definitions for citeindex.
//
// This package defines the normalized records produced by the scanner, the
// knowledge entries consumed by the matcher, and the citation and coverage
// values exchanged between the indexer, the validator and the query surfaces.
//
// # Scanned Files
//
// FileRecord is the language-independent view of one source file:
//
//	record := &types.FileRecord{
//	    Path:         "/repo/src/billing.ts",
//	    RelativePath: "src/billing.ts",
//	    Language:     types.LangTypeScript,
//	    Functions: []types.FunctionRecord{
//	        {Name: "computeTotal", Line: 3, EndLine: 5, Params: []string{"a", "b"},
//	            IsExported: true, Kind: types.FuncKindFunction},
//	    },
//	}
//
// A FileRecord is never patched. A changed file yields a brand-new record.
//
// # Citations
//
// Citation links one knowledge entry to one code element and records which
// tier of the matcher produced it:
//
//	types.Citation{PageID: 7, KnowledgeID: "k-1", ElementName: "computeTotal",
//	    StartLine: 3, EndLine: 5, MatchType: types.MatchTag}
//
// Only functions, classes and class methods are citeable. Variables and
// interfaces are recorded for completeness but never cited.
package types
