package citation

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dshills/citeindex/pkg/types"
)

// HashLength is the number of hex characters kept from the sha256 digest
const HashLength = 12

var lineSuffix = regexp.MustCompile(`:\d+(-\d+)?$`)

// Result is the outcome of validating one citation
type Result struct {
	Status      types.ValidationStatus `json:"status"`
	CurrentHash string                 `json:"currentHash,omitempty"`
}

type fileHash struct {
	hash string
	ok   bool
}

// HashCache remembers file hashes for the duration of one validation pass.
// It is not safe for concurrent use.
type HashCache map[string]fileHash

func NewHashCache() HashCache {
	return make(HashCache)
}

// ContentHash returns the truncated hex sha256 of content with surrounding
// whitespace trimmed
func ContentHash(content []byte) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(string(content))))
	return hex.EncodeToString(sum[:])[:HashLength]
}

// StripLineSuffix removes a trailing ":line" or ":start-end" reference
func StripLineSuffix(path string) string {
	return lineSuffix.ReplaceAllString(path, "")
}

// ResolvePath maps a citation path to a file under projectRoot
func ResolvePath(path, projectRoot string) string {
	p := filepath.FromSlash(StripLineSuffix(path))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(projectRoot, p)
}

// HashFile hashes the file a citation path refers to. ok is false when the
// file cannot be read. A nil cache disables caching.
func HashFile(path, projectRoot string, cache HashCache) (hash string, ok bool) {
	resolved := ResolvePath(path, projectRoot)
	if cache != nil {
		if h, hit := cache[resolved]; hit {
			return h.hash, h.ok
		}
	}

	content, err := os.ReadFile(resolved)
	h := fileHash{}
	if err == nil {
		h = fileHash{hash: ContentHash(content), ok: true}
	}
	if cache != nil {
		cache[resolved] = h
	}
	return h.hash, h.ok
}

// Validate compares the stored hash of c with the current content of the
// file it references
func Validate(c types.KnowledgeCitation, projectRoot string, cache HashCache) Result {
	current, ok := HashFile(c.Path, projectRoot, cache)
	if !ok {
		return Result{Status: types.StatusMissing}
	}
	if current == c.Hash {
		return Result{Status: types.StatusValid, CurrentHash: current}
	}
	return Result{Status: types.StatusChanged, CurrentHash: current}
}
