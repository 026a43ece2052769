package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillscan/pkg/report"
	"github.com/jingkaihe/skillscan/pkg/skills"
)

// DiscoverConfig holds configuration for the discover command
type DiscoverConfig struct {
	Project   string
	Ecosystem string
	JSON      bool
}

// NewDiscoverConfig creates a new DiscoverConfig with default values
func NewDiscoverConfig() *DiscoverConfig {
	return &DiscoverConfig{}
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List installed agent skills across known ecosystems",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		config := getDiscoverConfigFromFlags(cmd)
		return runDiscover(cmd.Context(), config, cmd.OutOrStdout())
	},
}

func init() {
	defaults := NewDiscoverConfig()
	discoverCmd.Flags().StringP("project", "p", defaults.Project, "Project root for project-level skills")
	discoverCmd.Flags().String("ecosystem", defaults.Ecosystem, "Only discover ecosystems whose name matches this glob")
	discoverCmd.Flags().Bool("json", defaults.JSON, "JSON output format")
}

// getDiscoverConfigFromFlags extracts discover configuration from command flags
func getDiscoverConfigFromFlags(cmd *cobra.Command) *DiscoverConfig {
	config := NewDiscoverConfig()

	if v, err := cmd.Flags().GetString("project"); err == nil {
		config.Project = v
	}
	if v, err := cmd.Flags().GetString("ecosystem"); err == nil {
		config.Ecosystem = v
	}
	if v, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = v
	}

	return config
}

func runDiscover(_ context.Context, config *DiscoverConfig, w io.Writer) error {
	registry, err := newRegistry(config.Ecosystem)
	if err != nil {
		return usageError(err)
	}
	entries, err := registry.Discover(config.Project)
	if err != nil {
		return exitWith(exitFailure, err)
	}

	if !config.JSON {
		report.WriteDiscovery(w, entries)
		return nil
	}

	if entries == nil {
		entries = []skills.Entry{}
	}
	if err := report.WriteJSON(w, entries); err != nil {
		return exitWith(exitFailure, err)
	}
	return nil
}
