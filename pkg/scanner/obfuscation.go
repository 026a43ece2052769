package scanner

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/jingkaihe/skillscan/pkg/rules"
)

const (
	payloadFindingID   = "SC3"
	payloadFindingName = "Obfuscated Code (base64 payload)"
	maxDecodedRunes    = 80
)

var (
	base64TokenExpr = regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`)

	suspiciousPayloadMarkers = []string{
		"exec",
		"eval",
		"import os",
		"subprocess",
		"curl",
		"wget",
		"requests.post",
		"/etc/passwd",
		".ssh/",
	}
)

// DetectObfuscatedPayload looks for base64 runs of at least 40 characters
// whose decoded text contains an execution, shell, credential or upload
// marker. At most one finding is returned per file: the first suspicious
// token wins. Tokens that fail to decode are skipped.
func DetectObfuscatedPayload(content, filePath string) []Finding {
	for _, token := range base64TokenExpr.FindAllString(content, -1) {
		decoded, ok := decodePayload(token)
		if !ok {
			continue
		}
		for _, marker := range suspiciousPayloadMarkers {
			if !strings.Contains(decoded, marker) {
				continue
			}
			return []Finding{{
				PatternID: payloadFindingID,
				Name:      payloadFindingName,
				Category:  rules.CategorySupplyChain,
				Severity:  rules.SeverityHigh,
				File:      filePath,
				Line:      0,
				Match:     fmt.Sprintf("base64 decoded contains '%s': %s", marker, truncateRunes(decoded, maxDecodedRunes)),
			}}
		}
	}
	return nil
}

// decodePayload decodes a padded base64 token and drops any bytes that are
// not valid UTF-8.
func decodePayload(token string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", false
	}
	return strings.ToValidUTF8(string(raw), ""), true
}
