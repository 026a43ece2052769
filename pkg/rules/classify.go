package rules

import "path/filepath"

var (
	codeExtensions = map[string]bool{
		".py":   true,
		".sh":   true,
		".bash": true,
		".js":   true,
		".ts":   true,
		".mjs":  true,
		".cjs":  true,
	}

	dependencyManifests = map[string]bool{
		"requirements.txt": true,
		"requirements.in":  true,
		"Pipfile":          true,
	}
)

// Classify maps a file name (or path) to its target type. Matching is exact
// and case-sensitive on the base name and extension.
func Classify(name string) TargetType {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	switch {
	case ext == ".md":
		return TargetMarkdown
	case dependencyManifests[base]:
		return TargetDependencyManifest
	case codeExtensions[ext]:
		return TargetCode
	default:
		return TargetOther
	}
}
