// Package report renders scan results: the persisted summary document, the
// machine-readable CLI document and the human-readable terminal report.
package report

import (
	"time"

	"github.com/jingkaihe/skillscan/pkg/rules"
	"github.com/jingkaihe/skillscan/pkg/scanner"
)

// TimestampLayout is the local-time format of Summary.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// Summary is the persisted shape of one scan result.
type Summary struct {
	Severity      rules.Severity   `json:"severity"`
	FindingsCount int              `json:"findings_count"`
	Categories    []rules.Category `json:"categories"`
	Timestamp     string           `json:"timestamp"`
	Findings      []SummaryFinding `json:"findings"`
}

// SummaryFinding is a finding as persisted; it omits the category.
type SummaryFinding struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Severity rules.Severity `json:"severity"`
	File     string         `json:"file"`
	Line     int            `json:"line"`
	Match    string         `json:"match"`
}

// NewSummary converts a result into its persisted shape, stamped with now.
func NewSummary(result *scanner.Result, now time.Time) Summary {
	s := Summary{
		Severity:      result.MaxSeverity(),
		FindingsCount: len(result.Findings),
		Categories:    result.Categories(),
		Timestamp:     now.Format(TimestampLayout),
		Findings:      make([]SummaryFinding, 0, len(result.Findings)),
	}
	for _, f := range result.Findings {
		s.Findings = append(s.Findings, SummaryFinding{
			ID:       f.PatternID,
			Name:     f.Name,
			Severity: f.Severity,
			File:     f.File,
			Line:     f.Line,
			Match:    f.Match,
		})
	}
	return s
}
