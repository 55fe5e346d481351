// Package coverage reports how much of the indexed code carries citations.
package coverage

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/dshills/citeindex/internal/storage"
	"github.com/dshills/citeindex/pkg/types"
)

// Source is the part of storage coverage is computed from
type Source interface {
	ListPages(ctx context.Context) ([]*storage.Page, error)
	ListCitedElements(ctx context.Context) ([]storage.CitedElement, error)
}

type Calculator struct {
	source Source
	logger *slog.Logger
}

func NewCalculator(source Source, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{source: source, logger: logger}
}

// Coverage counts functions plus classes over all pages and compares them
// with the distinct cited (page, element) pairs. Pages with a malformed
// payload contribute no elements.
func (c *Calculator) Coverage(ctx context.Context) (*types.CoverageStats, error) {
	pages, err := c.source.ListPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	cited, err := c.source.ListCitedElements(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cited elements: %w", err)
	}

	stats := &types.CoverageStats{TotalFiles: len(pages)}
	for _, p := range pages {
		record, err := p.Record()
		if err != nil {
			c.logger.Warn("skipping malformed page", slog.String("file", p.Path), slog.Any("error", err))
			continue
		}
		stats.TotalElements += record.ElementCount()
	}

	pagesSeen := make(map[int64]bool)
	elementsSeen := make(map[storage.CitedElement]bool)
	for _, e := range cited {
		pagesSeen[e.PageID] = true
		elementsSeen[e] = true
	}
	stats.CoveredFiles = len(pagesSeen)
	stats.CoveredElements = len(elementsSeen)
	stats.CoveragePercent = Percent(stats.CoveredElements, stats.TotalElements)
	return stats, nil
}

// Percent returns round(covered/total*100), or 0 when total is 0
func Percent(covered, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(covered) / float64(total) * 100))
}
