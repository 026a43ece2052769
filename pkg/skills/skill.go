// Package skills locates installed agent skills. A skill is a directory
// containing a SKILL.md manifest with optional YAML frontmatter; each host
// tool (ecosystem) keeps its skills under its own conventional directories.
package skills

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

// ManifestFileName is the file that marks a directory as a skill.
const ManifestFileName = "SKILL.md"

// Entry is a skill found by discovery. The same physical directory shows up
// once for every ecosystem location it is reachable from.
type Entry struct {
	Ecosystem   string `json:"agent"`
	Directory   string `json:"path"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Metadata represents the YAML frontmatter in SKILL.md files
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// HasManifest reports whether dir contains a SKILL.md file.
func HasManifest(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ManifestFileName))
	return err == nil && !info.IsDir()
}

// LoadMetadata parses the frontmatter of the SKILL.md in dir. A manifest
// without frontmatter is not an error: the directory name is used as the
// skill name.
func LoadMetadata(dir string) (Metadata, error) {
	md := Metadata{Name: filepath.Base(dir)}

	content, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return md, errors.Wrap(err, "failed to read skill manifest")
	}

	gm := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := gm.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return md, errors.Wrap(err, "failed to parse markdown")
	}

	metaData, err := meta.TryGet(pctx)
	if err != nil {
		return md, errors.Wrap(err, "invalid frontmatter")
	}
	if name, _ := metaData["name"].(string); name != "" {
		md.Name = name
	}
	md.Description, _ = metaData["description"].(string)
	return md, nil
}
