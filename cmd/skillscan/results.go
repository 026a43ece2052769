package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillscan/pkg/presenter"
	"github.com/jingkaihe/skillscan/pkg/report"
	"github.com/jingkaihe/skillscan/pkg/results"
	"github.com/jingkaihe/skillscan/pkg/rules"
)

// ResultsListConfig holds configuration for the results list command
type ResultsListConfig struct {
	MinSeverity string
	Limit       int
	JSON        bool
}

// NewResultsListConfig creates a new ResultsListConfig with default values
func NewResultsListConfig() *ResultsListConfig {
	return &ResultsListConfig{
		MinSeverity: "NONE",
	}
}

// Validate validates the ResultsListConfig and returns an error if invalid
func (c *ResultsListConfig) Validate() error {
	if _, err := rules.ParseSeverity(c.MinSeverity); err != nil {
		return err
	}
	if c.Limit < 0 {
		return errors.Errorf("limit cannot be negative: %d", c.Limit)
	}
	return nil
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect scan results saved with --save",
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved scan results, most severe first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		config := getResultsListConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			return usageError(err)
		}
		return runResultsList(cmd.Context(), config, cmd.OutOrStdout())
	},
}

var resultsShowCmd = &cobra.Command{
	Use:   "show <skill>",
	Short: "Show the saved scan result of a skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return runResultsShow(cmd.Context(), args[0], asJSON, cmd.OutOrStdout())
	},
}

var resultsDeleteCmd = &cobra.Command{
	Use:   "delete <skill>",
	Short: "Delete the saved scan result of a skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runResultsDelete(cmd.Context(), args[0], cmd.OutOrStdout())
	},
}

func init() {
	defaults := NewResultsListConfig()
	resultsListCmd.Flags().String("min-severity", defaults.MinSeverity, "Only list results at or above this severity (NONE, LOW, MEDIUM, HIGH)")
	resultsListCmd.Flags().Int("limit", defaults.Limit, "Maximum number of results to list (0 for all)")
	resultsListCmd.Flags().Bool("json", defaults.JSON, "JSON output format")

	resultsShowCmd.Flags().Bool("json", false, "JSON output format")

	resultsCmd.AddCommand(withTracing(resultsListCmd))
	resultsCmd.AddCommand(withTracing(resultsShowCmd))
	resultsCmd.AddCommand(withTracing(resultsDeleteCmd))
}

// getResultsListConfigFromFlags extracts list configuration from command flags
func getResultsListConfigFromFlags(cmd *cobra.Command) *ResultsListConfig {
	config := NewResultsListConfig()

	if v, err := cmd.Flags().GetString("min-severity"); err == nil {
		config.MinSeverity = v
	}
	if v, err := cmd.Flags().GetInt("limit"); err == nil {
		config.Limit = v
	}
	if v, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = v
	}

	return config
}

func openStore(ctx context.Context) (*results.Store, error) {
	dbPath, err := dbPathFromViper()
	if err != nil {
		return nil, err
	}
	return results.Open(ctx, dbPath)
}

// resultsListOutput is the JSON document of results list.
type resultsListOutput struct {
	Results []results.Record `json:"results"`
	Stats   results.Stats    `json:"stats"`
}

func runResultsList(ctx context.Context, config *ResultsListConfig, w io.Writer) error {
	store, err := openStore(ctx)
	if err != nil {
		return exitWith(exitFailure, err)
	}
	defer store.Close()

	threshold, _ := rules.ParseSeverity(config.MinSeverity)
	records, err := store.List(ctx, results.ListOptions{MinSeverity: threshold, Limit: config.Limit})
	if err != nil {
		return exitWith(exitFailure, err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return exitWith(exitFailure, err)
	}

	if config.JSON {
		if err := report.WriteJSON(w, resultsListOutput{Results: records, Stats: stats}); err != nil {
			return exitWith(exitFailure, err)
		}
		return nil
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "No saved scan results found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SKILL\tSEVERITY\tFINDINGS\tSCANNED AT\tPATH")
	fmt.Fprintln(tw, "-----\t--------\t--------\t----------\t----")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.SkillID, r.Severity, r.FindingsCount, r.Timestamp, r.SkillPath)
	}
	if err := tw.Flush(); err != nil {
		return exitWith(exitFailure, errors.Wrap(err, "failed to write results table"))
	}

	fmt.Fprintf(w, "\nTotal scanned: %d, high risk: %d\n", stats.TotalScanned, stats.HighRisk)
	return nil
}

func runResultsShow(ctx context.Context, skillID string, asJSON bool, w io.Writer) error {
	store, err := openStore(ctx)
	if err != nil {
		return exitWith(exitFailure, err)
	}
	defer store.Close()

	rec, err := store.Get(ctx, skillID)
	if err != nil {
		return exitWith(exitFailure, err)
	}

	if asJSON {
		if err := report.WriteJSON(w, rec); err != nil {
			return exitWith(exitFailure, err)
		}
		return nil
	}

	writeRecord(w, rec)
	return nil
}

func writeRecord(w io.Writer, rec results.Record) {
	fmt.Fprintf(w, "Skill:      %s\n", rec.SkillID)
	fmt.Fprintf(w, "Path:       %s\n", report.EscapeControl(rec.SkillPath))
	fmt.Fprintf(w, "Run:        %s\n", rec.RunID)
	fmt.Fprintf(w, "Scanned at: %s\n", rec.Timestamp)
	fmt.Fprintf(w, "Severity:   %s\n", presenter.SeverityColor(rec.Severity).Sprint(rec.Severity))
	fmt.Fprintf(w, "Findings:   %d\n", rec.FindingsCount)

	if len(rec.Categories) > 0 {
		names := make([]string, 0, len(rec.Categories))
		for _, c := range rec.Categories {
			names = append(names, string(c))
		}
		fmt.Fprintf(w, "Categories: %s\n", strings.Join(names, ", "))
	}

	for _, f := range rec.Findings {
		fmt.Fprintf(w, "\n  %s %s: %s\n", presenter.SeverityLabel(f.Severity), f.ID, f.Name)
		fmt.Fprintf(w, "    File: %s:%d\n", report.EscapeControl(f.File), f.Line)
		fmt.Fprintf(w, "    Match: %s\n", report.EscapeControl(f.Match))
	}
}

func runResultsDelete(ctx context.Context, skillID string, w io.Writer) error {
	store, err := openStore(ctx)
	if err != nil {
		return exitWith(exitFailure, err)
	}
	defer store.Close()

	if err := store.Delete(ctx, skillID); err != nil {
		return exitWith(exitFailure, err)
	}
	fmt.Fprintf(w, "Deleted scan result for %s\n", skillID)
	return nil
}
