// Package storage provides SQLite-based persistence for pages, citations
// and knowledge entries.
//
// # Database Schema
//
// Tables:
//   - pages: one JSON-encoded types.FileRecord per source file, keyed by relative path, with the file's mtime (unix nanoseconds)
//   - citations: links from a knowledge entry to a code element of a page; deleted with their page
//   - knowledge: knowledge entries with tags, category, confidence and embedded file citations
//   - knowledge_embeddings: float32 vectors for the vector matching tier
//   - schema_version: applied migrations (semver)
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(".citeindex/index.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	page, _ := storage.NewFilePage(record, info.ModTime())
//	if err := store.UpsertPage(ctx, page); err != nil {
//	    return err
//	}
//
// # Citations
//
// Citations of a page are always regenerated together. ReplacePageCitations
// deletes the old set and inserts the new one inside a transaction:
//
//	err := storage.ReplacePageCitations(ctx, store, page.ID, citations)
//
// # Build Modes
//
// The default build uses modernc.org/sqlite and computes cosine similarity
// in Go. Building with -tags sqlite_vec switches to mattn/go-sqlite3 and
// pushes similarity into SQL with vec_distance_cosine.
package storage
