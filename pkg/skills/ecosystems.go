package skills

// Ecosystem is a host tool with its conventional skill locations. Global
// locations starting with "~/" are resolved against the home directory;
// project locations are relative to the project root.
type Ecosystem struct {
	Name    string   `mapstructure:"name" json:"name" yaml:"name"`
	Global  []string `mapstructure:"global" json:"global" yaml:"global"`
	Project []string `mapstructure:"project" json:"project" yaml:"project"`
}

// DefaultEcosystems returns the built-in ecosystem table in discovery order.
func DefaultEcosystems() []Ecosystem {
	return []Ecosystem{
		{
			Name:    "Claude Code",
			Global:  []string{"~/.claude/skills"},
			Project: []string{".claude/skills"},
		},
		{
			Name:    "Kiro",
			Global:  []string{"~/.kiro/skills"},
			Project: []string{".kiro/skills"},
		},
		{
			Name:    "Codex CLI",
			Global:  []string{"~/.codex/skills"},
			Project: []string{".codex/skills"},
		},
		{
			Name:    "Gemini CLI",
			Global:  []string{"~/.gemini/skills"},
			Project: []string{".gemini/skills"},
		},
		{
			Name:    "Antigravity",
			Global:  []string{"~/.gemini/antigravity/skills"},
			Project: []string{".gemini/antigravity/skills"},
		},
		{
			Name:    "OpenCode",
			Global:  []string{"~/.config/opencode/skill"},
			Project: []string{".opencode/skills", ".opencode/skill"},
		},
		{
			Name:    "GitHub Copilot",
			Project: []string{".github/skills"},
		},
		{
			Name:    "Cursor",
			Project: []string{".cursor/skills"},
		},
		{
			Name:    "AgentSkills",
			Global:  []string{"~/.agents/skills"},
			Project: []string{".agents/skills"},
		},
	}
}
