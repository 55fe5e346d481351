package citation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dshills/citeindex/internal/storage"
	"github.com/dshills/citeindex/pkg/types"
)

// KnowledgeLister is the part of storage the checker reads
type KnowledgeLister interface {
	ListActiveKnowledge(ctx context.Context) ([]*storage.Knowledge, error)
}

// StaleCitation is one validated citation of a knowledge entry
type StaleCitation struct {
	KnowledgeID string                 `json:"knowledgeId"`
	Title       string                 `json:"title"`
	Path        string                 `json:"path"`
	Status      types.ValidationStatus `json:"status"`
	StoredHash  string                 `json:"storedHash"`
	CurrentHash string                 `json:"currentHash,omitempty"`
}

// StalenessReport aggregates a validation pass over all active knowledge
type StalenessReport struct {
	Total     int             `json:"total"`
	Valid     int             `json:"valid"`
	Changed   int             `json:"changed"`
	Missing   int             `json:"missing"`
	Citations []StaleCitation `json:"citations"`
	CheckedAt time.Time       `json:"checkedAt"`
}

// Stale returns the citations that are not valid
func (r *StalenessReport) Stale() []StaleCitation {
	out := make([]StaleCitation, 0, r.Changed+r.Missing)
	for _, c := range r.Citations {
		if c.Status != types.StatusValid {
			out = append(out, c)
		}
	}
	return out
}

// Checker validates the embedded citations of stored knowledge
type Checker struct {
	store  KnowledgeLister
	root   string
	logger *slog.Logger
}

func NewChecker(store KnowledgeLister, projectRoot string, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{store: store, root: projectRoot, logger: logger}
}

// Staleness validates every citation of every active mainline entry. One
// hash cache is shared across the pass.
func (c *Checker) Staleness(ctx context.Context) (*StalenessReport, error) {
	entries, err := c.store.ListActiveKnowledge(ctx)
	if err != nil {
		return nil, fmt.Errorf("list knowledge: %w", err)
	}

	cache := NewHashCache()
	report := &StalenessReport{Citations: make([]StaleCitation, 0), CheckedAt: time.Now()}
	for _, k := range entries {
		for _, kc := range k.Citations {
			res := Validate(kc, c.root, cache)
			report.Citations = append(report.Citations, StaleCitation{
				KnowledgeID: k.ID,
				Title:       k.Title,
				Path:        kc.Path,
				Status:      res.Status,
				StoredHash:  kc.Hash,
				CurrentHash: res.CurrentHash,
			})
			switch res.Status {
			case types.StatusValid:
				report.Valid++
			case types.StatusChanged:
				report.Changed++
			case types.StatusMissing:
				report.Missing++
			}
		}
	}
	report.Total = len(report.Citations)

	c.logger.Debug("staleness check complete",
		slog.Int("total", report.Total),
		slog.Int("changed", report.Changed),
		slog.Int("missing", report.Missing))
	return report, nil
}
