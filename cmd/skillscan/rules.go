package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/skillscan/pkg/report"
	"github.com/jingkaihe/skillscan/pkg/rules"
)

// RulesConfig holds configuration for the rules command
type RulesConfig struct {
	Format   string
	Category string
}

// NewRulesConfig creates a new RulesConfig with default values
func NewRulesConfig() *RulesConfig {
	return &RulesConfig{
		Format: "table",
	}
}

// Validate validates the RulesConfig and returns an error if invalid
func (c *RulesConfig) Validate() error {
	switch c.Format {
	case "table", "json", "yaml":
	default:
		return errors.Errorf("invalid format %q, must be one of: table, json, yaml", c.Format)
	}
	if c.Category != "" && c.category() == "" {
		return errors.Errorf("unknown category %q", c.Category)
	}
	return nil
}

// category resolves the category flag case-insensitively.
func (c *RulesConfig) category() rules.Category {
	for _, known := range rules.Categories {
		if strings.EqualFold(string(known), c.Category) {
			return known
		}
	}
	return ""
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the built-in detection rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		config := getRulesConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			return usageError(err)
		}
		return runRules(cmd.Context(), config, cmd.OutOrStdout())
	},
}

func init() {
	defaults := NewRulesConfig()
	rulesCmd.Flags().StringP("format", "f", defaults.Format, "Output format (table, json, yaml)")
	rulesCmd.Flags().String("category", defaults.Category, "Only print rules of this category")
}

// getRulesConfigFromFlags extracts rules configuration from command flags
func getRulesConfigFromFlags(cmd *cobra.Command) *RulesConfig {
	config := NewRulesConfig()

	if v, err := cmd.Flags().GetString("format"); err == nil {
		config.Format = v
	}
	if v, err := cmd.Flags().GetString("category"); err == nil {
		config.Category = v
	}

	return config
}

// ruleDoc is the exported shape of a rule.
type ruleDoc struct {
	ID       string             `json:"id" yaml:"id"`
	Name     string             `json:"name" yaml:"name"`
	Category rules.Category     `json:"category" yaml:"category"`
	Severity rules.Severity     `json:"severity" yaml:"severity"`
	Targets  []rules.TargetType `json:"targets" yaml:"targets"`
	Patterns []string           `json:"patterns" yaml:"patterns"`
}

func ruleDocs(c *rules.Catalog, category rules.Category) []ruleDoc {
	list := c.Rules()
	if category != "" {
		list = c.ByCategory(category)
	}

	docs := make([]ruleDoc, 0, len(list))
	for _, r := range list {
		docs = append(docs, ruleDoc{
			ID:       r.ID,
			Name:     r.Name,
			Category: r.Category,
			Severity: r.Severity,
			Targets:  append([]rules.TargetType(nil), r.Targets...),
			Patterns: append([]string(nil), r.Patterns...),
		})
	}
	return docs
}

func runRules(_ context.Context, config *RulesConfig, w io.Writer) error {
	docs := ruleDocs(rules.Default(), config.category())

	switch config.Format {
	case "json":
		if err := report.WriteJSON(w, docs); err != nil {
			return exitWith(exitFailure, err)
		}
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(docs); err != nil {
			return exitWith(exitFailure, errors.Wrap(err, "failed to encode rules"))
		}
		if err := enc.Close(); err != nil {
			return exitWith(exitFailure, errors.Wrap(err, "failed to encode rules"))
		}
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tSEVERITY\tTARGETS\tPATTERNS")
		fmt.Fprintln(tw, "--\t----\t--------\t--------\t-------\t--------")
		for _, d := range docs {
			targets := make([]string, 0, len(d.Targets))
			for _, t := range d.Targets {
				targets = append(targets, string(t))
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
				d.ID, d.Name, d.Category, d.Severity, strings.Join(targets, ","), len(d.Patterns))
		}
		if err := tw.Flush(); err != nil {
			return exitWith(exitFailure, errors.Wrap(err, "failed to write rules table"))
		}
	}
	return nil
}
