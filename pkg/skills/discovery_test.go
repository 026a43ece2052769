package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, dir, manifest string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(manifest), 0o644))
}

func TestDefaultEcosystems(t *testing.T) {
	ecosystems := DefaultEcosystems()

	var names []string
	for _, e := range ecosystems {
		names = append(names, e.Name)
		assert.NotEmpty(t, e.Project, "%s should have project locations", e.Name)
	}
	assert.Equal(t, []string{
		"Claude Code", "Kiro", "Codex CLI", "Gemini CLI", "Antigravity",
		"OpenCode", "GitHub Copilot", "Cursor", "AgentSkills",
	}, names)

	opencode := ecosystems[5]
	assert.Equal(t, []string{".opencode/skills", ".opencode/skill"}, opencode.Project)
	assert.Empty(t, ecosystems[6].Global)
}

func TestNewRegistry(t *testing.T) {
	t.Run("with defaults", func(t *testing.T) {
		r, err := NewRegistry(WithHomeDir("/home/test"))
		require.NoError(t, err)
		assert.Len(t, r.Ecosystems(), len(DefaultEcosystems()))
		assert.Equal(t, "/home/test", r.homeDir)
	})

	t.Run("invalid filter", func(t *testing.T) {
		_, err := NewRegistry(WithHomeDir("/home/test"), WithFilter("[claude"))
		assert.Error(t, err)
	})

	t.Run("extra ecosystem without name", func(t *testing.T) {
		_, err := NewRegistry(WithHomeDir("/home/test"), WithExtraEcosystems(Ecosystem{Global: []string{"~/.x"}}))
		assert.Error(t, err)
	})
}

func TestDiscover(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()

	writeSkill(t, filepath.Join(home, ".claude", "skills", "weather"), `---
name: weather-forecast
description: Fetch the forecast
---

# Weather
`)
	writeSkill(t, filepath.Join(home, ".claude", "skills", "alpha"), "# No frontmatter\n")
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".claude", "skills", "not-a-skill"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".claude", "skills", "README.md"), []byte("x"), 0o644))

	writeSkill(t, filepath.Join(project, ".cursor", "skills", "lint"), "---\nname: lint\n---\n")
	writeSkill(t, filepath.Join(project, ".opencode", "skill", "fmt"), "# fmt\n")

	r, err := NewRegistry(WithHomeDir(home))
	require.NoError(t, err)

	t.Run("global only without project root", func(t *testing.T) {
		entries, err := r.Discover("")
		require.NoError(t, err)
		require.Len(t, entries, 2)

		assert.Equal(t, Entry{
			Ecosystem: "Claude Code",
			Directory: filepath.Join(home, ".claude", "skills", "alpha"),
			Name:      "alpha",
		}, entries[0])
		assert.Equal(t, Entry{
			Ecosystem:   "Claude Code",
			Directory:   filepath.Join(home, ".claude", "skills", "weather"),
			Name:        "weather-forecast",
			Description: "Fetch the forecast",
		}, entries[1])
	})

	t.Run("with project root", func(t *testing.T) {
		entries, err := r.Discover(project)
		require.NoError(t, err)
		require.Len(t, entries, 4)

		assert.Equal(t, "OpenCode", entries[2].Ecosystem)
		assert.Equal(t, filepath.Join(project, ".opencode", "skill", "fmt"), entries[2].Directory)
		assert.Equal(t, "Cursor", entries[3].Ecosystem)
		assert.Equal(t, "lint", entries[3].Name)
	})
}

func TestDiscoverNoDedupAcrossEcosystems(t *testing.T) {
	home := t.TempDir()
	shared := filepath.Join(home, "shared", "deploy")
	writeSkill(t, shared, "# deploy\n")

	for _, loc := range []string{".claude/skills", ".codex/skills"} {
		dir := filepath.Join(home, filepath.FromSlash(loc))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.Symlink(shared, filepath.Join(dir, "deploy")))
	}

	r, err := NewRegistry(WithHomeDir(home))
	require.NoError(t, err)

	entries, err := r.Discover("")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Claude Code", entries[0].Ecosystem)
	assert.Equal(t, "Codex CLI", entries[1].Ecosystem)
	assert.Equal(t, "deploy", entries[0].Name)
	assert.Equal(t, "deploy", entries[1].Name)
}

func TestDiscoverIgnoresSymlinkToFile(t *testing.T) {
	home := t.TempDir()
	skillsDir := filepath.Join(home, ".kiro", "skills")
	require.NoError(t, os.MkdirAll(skillsDir, 0o755))

	targetFile := filepath.Join(home, "somefile.txt")
	require.NoError(t, os.WriteFile(targetFile, []byte("just a file"), 0o644))
	require.NoError(t, os.Symlink(targetFile, filepath.Join(skillsDir, "file-symlink")))
	require.NoError(t, os.Symlink(filepath.Join(home, "missing"), filepath.Join(skillsDir, "broken")))

	r, err := NewRegistry(WithHomeDir(home))
	require.NoError(t, err)

	entries, err := r.Discover("")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiscoverFilter(t *testing.T) {
	home := t.TempDir()
	writeSkill(t, filepath.Join(home, ".claude", "skills", "a"), "# a\n")
	writeSkill(t, filepath.Join(home, ".gemini", "skills", "b"), "# b\n")
	writeSkill(t, filepath.Join(home, ".gemini", "antigravity", "skills", "c"), "# c\n")

	tests := []struct {
		filter string
		want   []string
	}{
		{"", []string{"Claude Code", "Gemini CLI", "Antigravity"}},
		{"claude*", []string{"Claude Code"}},
		{"GEMINI*", []string{"Gemini CLI"}},
		{"{gemini*,antigravity}", []string{"Gemini CLI", "Antigravity"}},
		{"cursor", nil},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			r, err := NewRegistry(WithHomeDir(home), WithFilter(tt.filter))
			require.NoError(t, err)

			entries, err := r.Discover("")
			require.NoError(t, err)

			var got []string
			for _, e := range entries {
				got = append(got, e.Ecosystem)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCustomEcosystems(t *testing.T) {
	home := t.TempDir()
	abs := t.TempDir()
	writeSkill(t, filepath.Join(home, ".tool", "skills", "x"), "# x\n")
	writeSkill(t, filepath.Join(abs, "y"), "# y\n")

	r, err := NewRegistry(
		WithHomeDir(home),
		WithEcosystems(Ecosystem{Name: "Tool", Global: []string{"~/.tool/skills"}}),
		WithExtraEcosystems(Ecosystem{Name: "Shared", Global: []string{abs}}),
	)
	require.NoError(t, err)

	entries, err := r.Discover("")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Tool", entries[0].Ecosystem)
	assert.Equal(t, "x", entries[0].Name)
	assert.Equal(t, "Shared", entries[1].Ecosystem)
	assert.Equal(t, filepath.Join(abs, "y"), entries[1].Directory)
}

func TestLoadMetadata(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		want     Metadata
	}{
		{
			name:     "full frontmatter",
			manifest: "---\nname: pdf-tools\ndescription: Work with PDFs\n---\n# PDF\n",
			want:     Metadata{Name: "pdf-tools", Description: "Work with PDFs"},
		},
		{
			name:     "description only",
			manifest: "---\ndescription: Work with PDFs\n---\n# PDF\n",
			want:     Metadata{Name: "skill-dir", Description: "Work with PDFs"},
		},
		{
			name:     "no frontmatter",
			manifest: "# Just markdown\n",
			want:     Metadata{Name: "skill-dir"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "skill-dir")
			writeSkill(t, dir, tt.manifest)

			got, err := LoadMetadata(dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("missing manifest", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "empty")
		require.NoError(t, os.MkdirAll(dir, 0o755))

		got, err := LoadMetadata(dir)
		assert.Error(t, err)
		assert.Equal(t, "empty", got.Name)
		assert.False(t, HasManifest(dir))
	})
}

func TestGroupByEcosystem(t *testing.T) {
	groups := GroupByEcosystem([]Entry{
		{Ecosystem: "Kiro", Directory: "/a"},
		{Ecosystem: "Cursor", Directory: "/b"},
		{Ecosystem: "Kiro", Directory: "/c"},
	})
	assert.Len(t, groups, 2)
	assert.Len(t, groups["Kiro"], 2)
	assert.Equal(t, "/c", groups["Kiro"][1].Directory)
}
