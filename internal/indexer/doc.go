// Package indexer keeps persisted pages and citations in sync with a
// project's source tree.
//
// # Usage
//
//	idx, err := indexer.New(root, scanner.New(), cache, store, m, logger, nil)
//	stats, err := idx.ReindexIncremental(ctx)
//	fmt.Printf("%d files, %d skipped\n", stats.TotalFiles, stats.SkippedFiles)
//
// # Incremental Runs
//
// An incremental run walks the root, diffs every supported file against
// its stored page by mtime and handles three sets:
//
//  1. unchanged: mtime equal and payload decodes; reused as is
//  2. changed or new: rescanned, page upserted, citations replaced
//  3. deleted: page removed, citations removed by cascade
//
// A page whose payload no longer decodes counts as changed. Citations of
// a page are regenerated as a whole inside one transaction.
//
// # Full Runs
//
// ReindexFull wipes the scan cache, rescans and upserts every file,
// removes pages of vanished files, deletes all citations and matches
// every page again.
//
// Both runs share one IndexLock. A run triggered while another is active
// fails with ErrIndexingInProgress. File scanning is parallel (bounded by
// Config.Workers); matching is sequential.
//
// # Scan Cache
//
// After each run the merged scan result is stored in the scan cache
// together with the mtime of every file, so ScanProject can serve
// browsing consumers without touching storage.
package indexer
