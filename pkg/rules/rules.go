// Package rules defines the detection rule catalog used by the skill scanner.
// A catalog is built once at startup, validated, and then shared read-only
// by every scan.
package rules

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Severity is the risk level of a rule and of the findings it produces.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
	// SeverityNone is only ever an aggregate: a result without findings.
	SeverityNone Severity = "NONE"
)

// Rank orders severities HIGH(3) > MEDIUM(2) > LOW(1) > NONE(0).
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ParseSeverity parses a severity name case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToUpper(strings.TrimSpace(s))); sev {
	case SeverityHigh, SeverityMedium, SeverityLow, SeverityNone:
		return sev, nil
	default:
		return "", errors.Errorf("invalid severity %q, must be one of: LOW, MEDIUM, HIGH", s)
	}
}

// Category groups rules by the kind of attack they detect.
type Category string

const (
	CategoryPromptInjection     Category = "Prompt Injection"
	CategoryDataExfiltration    Category = "Data Exfiltration"
	CategoryPrivilegeEscalation Category = "Privilege Escalation"
	CategorySupplyChain         Category = "Supply Chain"
)

// Categories lists every known category in catalog order.
var Categories = []Category{
	CategoryPromptInjection,
	CategoryDataExfiltration,
	CategoryPrivilegeEscalation,
	CategorySupplyChain,
}

// TargetType classifies a file for rule applicability.
type TargetType string

const (
	TargetMarkdown           TargetType = "markdown"
	TargetDependencyManifest TargetType = "dependency-manifest"
	TargetCode               TargetType = "code"
	TargetOther              TargetType = "other"
	// TargetAll is the applicability sentinel meaning "every scannable target".
	TargetAll TargetType = "all"
)

// Rule is a named detection unit. Patterns are evaluated in order; each one
// carries its own case-sensitivity through an inline (?i) flag.
type Rule struct {
	ID       string
	Name     string
	Category Category
	Severity Severity
	Patterns []string
	Targets  []TargetType

	compiled []*regexp.Regexp
}

// Expressions returns the compiled patterns in declaration order.
func (r *Rule) Expressions() []*regexp.Regexp {
	return r.compiled
}

// AppliesTo reports whether the rule should be evaluated against files of
// the given target type. Files of type other are never matched.
func (r *Rule) AppliesTo(target TargetType) bool {
	if target == TargetOther {
		return false
	}
	for _, t := range r.Targets {
		if t == TargetAll || t == target {
			return true
		}
	}
	return false
}

func (r *Rule) compile() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("rule id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.Errorf("rule %s: name is required", r.ID)
	}
	if !validCategory(r.Category) {
		return errors.Errorf("rule %s: unknown category %q", r.ID, r.Category)
	}
	switch r.Severity {
	case SeverityHigh, SeverityMedium, SeverityLow:
	default:
		return errors.Errorf("rule %s: invalid severity %q", r.ID, r.Severity)
	}
	if len(r.Patterns) == 0 {
		return errors.Errorf("rule %s: at least one pattern is required", r.ID)
	}
	if len(r.Targets) == 0 {
		return errors.Errorf("rule %s: at least one target is required", r.ID)
	}
	for _, t := range r.Targets {
		switch t {
		case TargetMarkdown, TargetDependencyManifest, TargetCode, TargetAll:
		default:
			return errors.Errorf("rule %s: invalid target %q", r.ID, t)
		}
	}

	compiled := make([]*regexp.Regexp, 0, len(r.Patterns))
	for i, p := range r.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return errors.Wrapf(err, "rule %s: pattern %d does not compile", r.ID, i)
		}
		compiled = append(compiled, re)
	}
	r.compiled = compiled
	return nil
}

func validCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
