package types

// MatchType records which matcher tier produced a citation
type MatchType string

const (
	MatchTag     MatchType = "tag"
	MatchContent MatchType = "content"
	MatchVector  MatchType = "vector"
)

// Citation links one knowledge entry to one code element of a page
type Citation struct {
	PageID      int64     `json:"pageId"`
	KnowledgeID string    `json:"knowledgeId"`
	ElementName string    `json:"functionName"`
	StartLine   int       `json:"startLine"`
	EndLine     int       `json:"endLine"`
	MatchType   MatchType `json:"matchType"`
}

// Validate checks the citation for required fields
func (c *Citation) Validate() error {
	if c.ElementName == "" || c.KnowledgeID == "" {
		return ErrEmptyName
	}
	switch c.MatchType {
	case MatchTag, MatchContent, MatchVector:
	default:
		return ErrInvalidMatch
	}
	if c.StartLine <= 0 || c.EndLine < c.StartLine {
		return ErrInvalidLines
	}
	return nil
}

// ValidationStatus classifies an embedded knowledge citation against the
// current state of the file it references
type ValidationStatus string

const (
	StatusValid   ValidationStatus = "valid"
	StatusChanged ValidationStatus = "changed"
	StatusMissing ValidationStatus = "missing"
)

// CoverageStats aggregates how much of the indexed code is cited
type CoverageStats struct {
	TotalFiles      int `json:"totalFiles"`
	CoveredFiles    int `json:"coveredFiles"`
	TotalElements   int `json:"totalElements"`
	CoveredElements int `json:"coveredElements"`
	CoveragePercent int `json:"coveragePercent"`
}
