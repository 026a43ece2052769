package scanner

import (
	"sort"

	"github.com/jingkaihe/skillscan/pkg/rules"
)

// Finding is a single detected match within a scanned file.
type Finding struct {
	PatternID string         `json:"id"`
	Name      string         `json:"name"`
	Category  rules.Category `json:"category"`
	Severity  rules.Severity `json:"severity"`
	File      string         `json:"file"`
	Line      int            `json:"line"` // 1-indexed; 0 when not tied to a line
	Match     string         `json:"match"`
}

func newFinding(r *rules.Rule, file string, line int, match string) Finding {
	return Finding{
		PatternID: r.ID,
		Name:      r.Name,
		Category:  r.Category,
		Severity:  r.Severity,
		File:      file,
		Line:      line,
		Match:     match,
	}
}

// Result is the output of one scan invocation. MaxSeverity and Categories
// are derived from Findings every time they are called.
type Result struct {
	SkillPath    string    `json:"skill"`
	Findings     []Finding `json:"findings"`
	FilesScanned int       `json:"-"`
}

// MaxSeverity returns the highest-ranked finding severity, or NONE.
func (r *Result) MaxSeverity() rules.Severity {
	highest := rules.SeverityNone
	for _, f := range r.Findings {
		if f.Severity.Rank() > highest.Rank() {
			highest = f.Severity
		}
	}
	return highest
}

// Categories returns the distinct finding categories, sorted.
func (r *Result) Categories() []rules.Category {
	seen := make(map[rules.Category]bool)
	out := make([]rules.Category, 0, len(rules.Categories))
	for _, f := range r.Findings {
		if !seen[f.Category] {
			seen[f.Category] = true
			out = append(out, f.Category)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasCategory reports whether any finding belongs to the category.
func (r *Result) HasCategory(c rules.Category) bool {
	for _, f := range r.Findings {
		if f.Category == c {
			return true
		}
	}
	return false
}

// FilterMinSeverity returns a copy of the result keeping only findings at or
// above threshold.
func (r *Result) FilterMinSeverity(threshold rules.Severity) *Result {
	out := &Result{
		SkillPath:    r.SkillPath,
		Findings:     make([]Finding, 0, len(r.Findings)),
		FilesScanned: r.FilesScanned,
	}
	for _, f := range r.Findings {
		if f.Severity.Rank() >= threshold.Rank() {
			out.Findings = append(out.Findings, f)
		}
	}
	return out
}

// SortFindings orders findings by severity rank (highest first), then file
// path, then line. The sort is stable so findings sharing all three keys
// keep catalog order.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra > rb
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
}
