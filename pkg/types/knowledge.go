package types

// MainBranch is the branch whose active knowledge entries are eligible for matching
const MainBranch = "main"

// KnowledgeEntry is the matcher's read-only view of an active, mainline
// knowledge entry
type KnowledgeEntry struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// KnowledgeCitation is a file reference embedded in a knowledge entry at
// authoring time. Path may carry a ":line" or ":start-end" suffix.
type KnowledgeCitation struct {
	Path string `json:"path" yaml:"path"`
	Hash string `json:"hash,omitempty" yaml:"hash,omitempty"`
}
