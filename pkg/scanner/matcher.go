package scanner

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jingkaihe/skillscan/pkg/rules"
)

// maxMatchRunes bounds the source snippet stored on a finding.
const maxMatchRunes = 120

// Matcher applies the rules of a catalog to the text of a single file.
type Matcher struct {
	catalog *rules.Catalog
}

// NewMatcher creates a matcher over the given catalog.
func NewMatcher(catalog *rules.Catalog) *Matcher {
	return &Matcher{catalog: catalog}
}

// Match evaluates every rule applicable to target against content. Each
// expression contributes at most one finding per file (see firstMatchOnly).
func (m *Matcher) Match(content, filePath string, target rules.TargetType) []Finding {
	if target == rules.TargetOther {
		return nil
	}

	lines := splitLines(content)
	folded := make([]string, len(lines))
	for i, line := range lines {
		folded[i] = foldSpaces(line)
	}

	var findings []Finding
	for _, r := range m.catalog.Applicable(target) {
		for _, re := range r.Expressions() {
			lineNo, line, ok := firstMatchOnly(re, lines, folded)
			if !ok {
				continue
			}
			findings = append(findings, newFinding(r, filePath, lineNo, snippet(line, maxMatchRunes)))
		}
	}
	return findings
}

// splitLines splits content on \n, \r\n and bare \r.
func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	return strings.Split(content, "\n")
}

// foldSpaces maps non-ASCII whitespace (no-break space, em space, line
// separator, ...) and the ASCII information separators to a plain space,
// so the ASCII-only \s of RE2 sees them as whitespace.
func foldSpaces(line string) string {
	return strings.Map(func(r rune) rune {
		if (r > unicode.MaxASCII && unicode.IsSpace(r)) || (r >= 0x1c && r <= 0x1f) {
			return ' '
		}
		return r
	}, line)
}

// firstMatchOnly returns the first line (1-indexed) whose folded text matches re,
// together with the unmodified line. Later matching lines are ignored: a
// phrase repeated throughout a file is reported once per expression.
func firstMatchOnly(re *regexp.Regexp, lines, folded []string) (int, string, bool) {
	for i, text := range folded {
		if re.MatchString(text) {
			return i + 1, lines[i], true
		}
	}
	return 0, "", false
}

func snippet(line string, max int) string {
	return truncateRunes(strings.TrimSpace(line), max)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
