package report

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/jingkaihe/skillscan/pkg/presenter"
	"github.com/jingkaihe/skillscan/pkg/rules"
	"github.com/jingkaihe/skillscan/pkg/scanner"
	"github.com/jingkaihe/skillscan/pkg/skills"
)

const ruleWidth = 60

var (
	bold = color.New(color.Bold)
	dim  = color.New(color.Faint)
	ok   = color.New(color.FgGreen)

	heavyRule = strings.Repeat("═", ruleWidth)
	lightRule = strings.Repeat("─", ruleWidth)
)

// Title is the report heading for a target, prefixed with the ecosystem when
// the target came from discovery.
func Title(ecosystem, target string) string {
	if ecosystem == "" {
		return target
	}
	return fmt.Sprintf("[%s] %s", ecosystem, target)
}

// WriteText writes the human-readable report of one scan result.
func WriteText(w io.Writer, title string, result *scanner.Result) {
	fmt.Fprintln(w)
	bold.Fprintln(w, heavyRule)
	bold.Fprintf(w, "  SkillScan Report: %s\n", EscapeControl(title))
	fmt.Fprintln(w, heavyRule)

	if len(result.Findings) == 0 {
		fmt.Fprintln(w)
		ok.Fprintln(w, "  ✓ No known malicious patterns detected")
		fmt.Fprintln(w)
		return
	}

	sev := result.MaxSeverity()
	fmt.Fprintf(w, "\n  Overall risk: %s\n", presenter.SeverityColor(sev).Sprint(sev))
	fmt.Fprintf(w, "  Findings: %d\n", len(result.Findings))
	fmt.Fprintf(w, "  Categories: %s\n", joinCategories(result.Categories()))
	fmt.Fprintf(w, "\n%s\n", lightRule)

	findings := append([]scanner.Finding(nil), result.Findings...)
	scanner.SortFindings(findings)
	for _, f := range findings {
		fmt.Fprintf(w, "\n  %s %s\n",
			presenter.SeverityLabel(f.Severity),
			bold.Sprintf("%s: %s", f.PatternID, f.Name))
		dim.Fprintf(w, "  Category: %s\n", f.Category)
		dim.Fprintf(w, "  File: %s:%d\n", EscapeControl(f.File), f.Line)
		dim.Fprintf(w, "  Match: %s\n", EscapeControl(f.Match))
	}

	fmt.Fprintf(w, "\n%s\n\n", heavyRule)
}

// EscapeControl renders C0 and C1 control characters other than tab as \xNN
// so scanned content cannot drive the terminal.
func EscapeControl(s string) string {
	if strings.IndexFunc(s, isControl) < 0 {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if isControl(r) {
			fmt.Fprintf(&b, "\\x%02x", r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isControl(r rune) bool {
	return (r < 0x20 && r != '\t') || (r >= 0x7f && r <= 0x9f)
}

func joinCategories(categories []rules.Category) string {
	parts := make([]string, len(categories))
	for i, c := range categories {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

// Tally accumulates totals over the targets of one run.
type Tally struct {
	Targets  int
	Findings int
	HighRisk int
}

// Add counts one scanned target.
func (t *Tally) Add(result *scanner.Result) {
	t.Targets++
	t.Findings += len(result.Findings)
	if result.MaxSeverity() == rules.SeverityHigh {
		t.HighRisk++
	}
}

// WriteTally writes the summary block printed after a multi-target run.
func WriteTally(w io.Writer, t Tally) {
	fmt.Fprintln(w)
	bold.Fprintln(w, "Scan Summary")
	fmt.Fprintf(w, "  Skills scanned: %d\n", t.Targets)
	fmt.Fprintf(w, "  Total findings: %d\n", t.Findings)
	fmt.Fprintf(w, "  High-risk skills: %d\n", t.HighRisk)
	if t.HighRisk > 0 {
		fmt.Fprintf(w, "  %s\n", presenter.SeverityColor(rules.SeverityHigh).Sprint("⚠ High-risk skills found, review immediately!"))
	} else {
		ok.Fprintln(w, "  ✓ No high-risk skills found")
	}
	fmt.Fprintln(w)
}

// WriteDiscovery writes the discovery listing grouped by ecosystem, with
// ecosystems and paths in sorted order.
func WriteDiscovery(w io.Writer, entries []skills.Entry) {
	fmt.Fprintln(w)
	bold.Fprintln(w, heavyRule)
	bold.Fprintln(w, "  Agent Skills Discovery Results")
	fmt.Fprintf(w, "%s\n\n", heavyRule)

	if len(entries) == 0 {
		dim.Fprintln(w, "  No installed agent skills found")
		fmt.Fprintln(w)
		return
	}

	groups := skills.GroupByEcosystem(entries)
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		paths := make([]string, 0, len(groups[name]))
		for _, e := range groups[name] {
			paths = append(paths, e.Directory)
		}
		sort.Strings(paths)

		fmt.Fprintf(w, "  %s (%d skills)\n", bold.Sprint(name), len(paths))
		for _, p := range paths {
			fmt.Fprintf(w, "    • %s\n", EscapeControl(p))
		}
		fmt.Fprintln(w)
	}
}

var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*m")

// plainWriter drops ANSI color sequences from everything written through it.
type plainWriter struct {
	w io.Writer
}

// NewPlainWriter wraps w so color escape sequences never reach it. Each
// Write is expected to carry whole escape sequences, which holds for the
// formatted writes done by this package.
func NewPlainWriter(w io.Writer) io.Writer {
	return &plainWriter{w: w}
}

func (p *plainWriter) Write(b []byte) (int, error) {
	if _, err := p.w.Write(ansiEscape.ReplaceAll(b, nil)); err != nil {
		return 0, err
	}
	return len(b), nil
}
