package report

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillscan/pkg/rules"
	"github.com/jingkaihe/skillscan/pkg/scanner"
)

// TargetReport is one element of the CLI JSON document.
type TargetReport struct {
	Agent         *string           `json:"agent"`
	Skill         string            `json:"skill"`
	Severity      rules.Severity    `json:"severity"`
	Categories    []rules.Category  `json:"categories"`
	TotalFindings int               `json:"total_findings"`
	Findings      []scanner.Finding `json:"findings"`
}

// NewTargetReport builds the JSON document entry for a scanned target. An
// empty ecosystem encodes as a null agent.
func NewTargetReport(ecosystem, target string, result *scanner.Result) TargetReport {
	r := TargetReport{
		Skill:         target,
		Severity:      result.MaxSeverity(),
		Categories:    result.Categories(),
		TotalFindings: len(result.Findings),
		Findings:      result.Findings,
	}
	if r.Findings == nil {
		r.Findings = []scanner.Finding{}
	}
	if ecosystem != "" {
		r.Agent = &ecosystem
	}
	return r
}

// WriteJSON writes v as indented JSON without HTML escaping.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return errors.Wrap(enc.Encode(v), "failed to encode JSON")
}
