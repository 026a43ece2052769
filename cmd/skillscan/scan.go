package main

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillscan/pkg/logger"
	"github.com/jingkaihe/skillscan/pkg/presenter"
	"github.com/jingkaihe/skillscan/pkg/report"
	"github.com/jingkaihe/skillscan/pkg/results"
	"github.com/jingkaihe/skillscan/pkg/rules"
	"github.com/jingkaihe/skillscan/pkg/scanner"
	"github.com/jingkaihe/skillscan/pkg/skills"
)

// ScanConfig holds configuration for the scan command
type ScanConfig struct {
	Path         string
	JSON         bool
	Recursive    bool
	MinSeverity  string
	Auto         bool
	Project      string
	DiscoverOnly bool
	Ecosystem    string
	Output       string
	Save         bool
}

// NewScanConfig creates a new ScanConfig with default values
func NewScanConfig() *ScanConfig {
	return &ScanConfig{
		MinSeverity: "LOW",
	}
}

// Validate validates the ScanConfig and returns an error if invalid
func (c *ScanConfig) Validate() error {
	if !c.Auto && c.Path == "" {
		return errors.New("path required, or use --auto")
	}
	if c.DiscoverOnly && !c.Auto {
		return errors.New("--discover-only requires --auto")
	}
	if c.Ecosystem != "" && !c.Auto {
		return errors.New("--ecosystem requires --auto")
	}
	if _, err := c.threshold(); err != nil {
		return err
	}
	return nil
}

func (c *ScanConfig) threshold() (rules.Severity, error) {
	sev, err := rules.ParseSeverity(c.MinSeverity)
	if err != nil {
		return "", err
	}
	if sev == rules.SeverityNone {
		return "", errors.Errorf("invalid severity %q, must be one of: LOW, MEDIUM, HIGH", c.MinSeverity)
	}
	return sev, nil
}

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a skill directory, a single file or all discovered skills",
	Long: `Scan a skill directory or file for malicious patterns.

With --recursive every directory holding a SKILL.md below path is scanned as its
own skill. With --auto the installed skills of every known agent ecosystem are
discovered and scanned.

Exit status is 1 when any scanned skill has a HIGH severity finding, when the path
does not exist or when nothing scannable was found, and 2 on invalid usage.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := getScanConfigFromFlags(cmd, args)
		if err := config.Validate(); err != nil {
			return usageError(err)
		}
		return runScan(cmd.Context(), config, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	defaults := NewScanConfig()
	flags := scanCmd.Flags()
	flags.Bool("json", defaults.JSON, "JSON output format")
	flags.BoolP("recursive", "r", defaults.Recursive, "Scan every skill (directory containing SKILL.md) below path")
	flags.String("min-severity", defaults.MinSeverity, "Minimum severity to report (LOW, MEDIUM, HIGH)")
	flags.BoolP("auto", "a", defaults.Auto, "Discover and scan installed agent skills")
	flags.StringP("project", "p", defaults.Project, "Project root for project-level skills (with --auto)")
	flags.Bool("discover-only", defaults.DiscoverOnly, "List discovered skills without scanning")
	flags.String("ecosystem", defaults.Ecosystem, "Only discover ecosystems whose name matches this glob (with --auto)")
	flags.StringP("output", "o", defaults.Output, "Write results to a file (colors are stripped)")
	flags.Bool("save", defaults.Save, "Persist scan summaries to the result store")

	flags.Int("workers", 0, "Files scanned concurrently (0 uses all CPUs)")
	flags.StringSlice("exclude", nil, "Glob of paths relative to the skill root to skip (repeatable)")
	flags.Int64("max-file-bytes", scanner.DefaultMaxFileBytes, "Skip files larger than this many bytes")
	viper.BindPFlag("scan.workers", flags.Lookup("workers"))
	viper.BindPFlag("scan.exclude", flags.Lookup("exclude"))
	viper.BindPFlag("scan.max_file_bytes", flags.Lookup("max-file-bytes"))
	viper.BindPFlag("min_severity", flags.Lookup("min-severity"))
}

// getScanConfigFromFlags extracts scan configuration from command flags
func getScanConfigFromFlags(cmd *cobra.Command, args []string) *ScanConfig {
	config := NewScanConfig()

	if len(args) > 0 {
		config.Path = args[0]
	}
	if v, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = v
	}
	if v, err := cmd.Flags().GetBool("recursive"); err == nil {
		config.Recursive = v
	}
	if v := viper.GetString("min_severity"); v != "" {
		config.MinSeverity = v
	}
	if v, err := cmd.Flags().GetBool("auto"); err == nil {
		config.Auto = v
	}
	if v, err := cmd.Flags().GetString("project"); err == nil {
		config.Project = v
	}
	if v, err := cmd.Flags().GetBool("discover-only"); err == nil {
		config.DiscoverOnly = v
	}
	if v, err := cmd.Flags().GetString("ecosystem"); err == nil {
		config.Ecosystem = v
	}
	if v, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = v
	}
	if v, err := cmd.Flags().GetBool("save"); err == nil {
		config.Save = v
	}

	return config
}

// scanTarget is one skill to scan. Ecosystem is empty for explicit paths.
type scanTarget struct {
	Ecosystem string
	Path      string
}

// runScan executes a scan run and maps its outcome to an exit status.
func runScan(ctx context.Context, config *ScanConfig, stdout, stderr io.Writer) error {
	log := logger.G(ctx)

	out := stdout
	if config.Output != "" {
		f, err := os.Create(config.Output)
		if err != nil {
			return exitWith(exitFailure, errors.Wrapf(err, "failed to create output file %s", config.Output))
		}
		defer f.Close()
		out = report.NewPlainWriter(f)
	}

	var targets []scanTarget
	if config.Auto {
		entries, err := discoverTargets(config)
		if err != nil {
			return exitWith(exitFailure, err)
		}
		if config.DiscoverOnly {
			report.WriteDiscovery(out, entries)
			return finishOutput(config, stdout, exitOK, nil)
		}
		if !config.JSON {
			report.WriteDiscovery(out, entries)
		}
		if len(entries) == 0 {
			if !config.JSON {
				newPresenter(stdout, stderr).
					Warning("No agent skills found. Use --project to specify project directory or provide a path directly")
			} else {
				report.WriteJSON(out, []report.TargetReport{})
			}
			return finishOutput(config, stdout, exitOK, nil)
		}
		for _, e := range entries {
			targets = append(targets, scanTarget{Ecosystem: e.Ecosystem, Path: e.Directory})
		}
	} else {
		info, err := os.Stat(config.Path)
		if err != nil {
			if os.IsNotExist(err) {
				return exitWith(exitFailure, errors.Errorf("path does not exist: %s", config.Path))
			}
			return exitWith(exitFailure, errors.Wrapf(err, "cannot access %s", config.Path))
		}
		if config.Recursive && info.IsDir() {
			roots, err := findSkillRoots(config.Path)
			if err != nil {
				return exitWith(exitFailure, err)
			}
			for _, r := range roots {
				targets = append(targets, scanTarget{Path: r})
			}
		} else {
			targets = []scanTarget{{Path: config.Path}}
		}
	}

	if len(targets) == 0 {
		return exitWith(exitFailure, errors.New("no scannable skills found"))
	}
	sort.SliceStable(targets, func(i, j int) bool { return targets[i].Path < targets[j].Path })

	sc, err := newScannerFromViper()
	if err != nil {
		return usageError(err)
	}
	threshold, _ := config.threshold()

	var store *results.Store
	if config.Save {
		dbPath, err := dbPathFromViper()
		if err != nil {
			return exitWith(exitFailure, err)
		}
		store, err = results.Open(ctx, dbPath)
		if err != nil {
			return exitWith(exitFailure, err)
		}
		defer store.Close()
	}

	var (
		tally   report.Tally
		reports = []report.TargetReport{}
		errs    *multierror.Error
	)
	for _, t := range targets {
		result, err := sc.Scan(ctx, t.Path)
		if err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "failed to scan %s", t.Path))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		result = result.FilterMinSeverity(threshold)
		tally.Add(result)

		log.WithField("skill", t.Path).
			WithField("severity", result.MaxSeverity()).
			WithField("findings", len(result.Findings)).
			Debug("scanned skill")

		if config.JSON {
			reports = append(reports, report.NewTargetReport(t.Ecosystem, t.Path, result))
		} else {
			report.WriteText(out, report.Title(t.Ecosystem, t.Path), result)
		}

		if store != nil {
			if _, err := store.Save(ctx, skillID(t.Path), absPath(t.Path), report.NewSummary(result, time.Now())); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}

	if config.JSON {
		if err := report.WriteJSON(out, reports); err != nil {
			return exitWith(exitFailure, err)
		}
	} else if len(targets) > 1 {
		report.WriteTally(out, tally)
	}

	code := exitOK
	if tally.HighRisk > 0 || errs.ErrorOrNil() != nil {
		code = exitFailure
	}
	return finishOutput(config, stdout, code, errs.ErrorOrNil())
}

// finishOutput reports where file output went and builds the exit status.
func finishOutput(config *ScanConfig, stdout io.Writer, code int, err error) error {
	if config.Output != "" {
		newPresenter(stdout, stdout).Success("Results written to: " + config.Output)
	}
	return exitWith(code, err)
}

func discoverTargets(config *ScanConfig) ([]skills.Entry, error) {
	registry, err := newRegistry(config.Ecosystem)
	if err != nil {
		return nil, err
	}

	projectRoot := config.Project
	if projectRoot == "" && config.Path != "" {
		if info, err := os.Stat(config.Path); err == nil && info.IsDir() {
			projectRoot = config.Path
		}
	}
	return registry.Discover(projectRoot)
}

// findSkillRoots returns the directories below root that contain a SKILL.md,
// or the immediate subdirectories of root when there are none. Hidden
// directories are not descended into.
func findSkillRoots(root string) ([]string, error) {
	seen := make(map[string]bool)
	var roots []string

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == skills.ManifestFileName {
			dir := filepath.Dir(p)
			if !seen[dir] {
				seen[dir] = true
				roots = append(roots, dir)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk %s", root)
	}
	if len(roots) > 0 {
		return roots, nil
	}

	children, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", root)
	}
	for _, c := range children {
		if c.IsDir() {
			roots = append(roots, filepath.Join(root, c.Name()))
		}
	}
	return roots, nil
}

// skillID names a skill in the result store by its directory name.
func skillID(path string) string {
	return filepath.Base(absPath(path))
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
