package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillscan/pkg/logger"
	"github.com/jingkaihe/skillscan/pkg/presenter"
	"github.com/jingkaihe/skillscan/pkg/report"
	"github.com/jingkaihe/skillscan/pkg/rules"
	"github.com/jingkaihe/skillscan/pkg/scanner"
	"github.com/jingkaihe/skillscan/pkg/watcher"
)

// WatchConfig holds configuration for the watch command
type WatchConfig struct {
	Path         string
	DebounceTime int
	MinSeverity  string
}

// NewWatchConfig creates a new WatchConfig with default values
func NewWatchConfig() *WatchConfig {
	return &WatchConfig{
		DebounceTime: int(watcher.DefaultDebounce / time.Millisecond),
		MinSeverity:  "LOW",
	}
}

// Validate validates the WatchConfig and returns an error if invalid
func (c *WatchConfig) Validate() error {
	if c.Path == "" {
		return errors.New("path required")
	}
	if c.DebounceTime < 0 {
		return errors.Errorf("debounce time cannot be negative: %d", c.DebounceTime)
	}
	sev, err := rules.ParseSeverity(c.MinSeverity)
	if err != nil {
		return err
	}
	if sev == rules.SeverityNone {
		return errors.Errorf("invalid severity %q, must be one of: LOW, MEDIUM, HIGH", c.MinSeverity)
	}
	return nil
}

var watchCmd = &cobra.Command{
	Use:   "watch <path>",
	Short: "Rescan a skill whenever its files change",
	Long: `Scan a skill, then watch its directory tree (or the single file) and print a
fresh report after every burst of changes. Hidden files and directories are
ignored. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := getWatchConfigFromFlags(cmd, args)
		if err := config.Validate(); err != nil {
			return usageError(err)
		}
		return runWatch(cmd.Context(), config, cmd.OutOrStdout())
	},
}

func init() {
	defaults := NewWatchConfig()
	watchCmd.Flags().IntP("debounce", "d", defaults.DebounceTime, "Debounce time in milliseconds for change events")
	watchCmd.Flags().String("min-severity", defaults.MinSeverity, "Minimum severity to report (LOW, MEDIUM, HIGH)")
}

// getWatchConfigFromFlags extracts watch configuration from command flags
func getWatchConfigFromFlags(cmd *cobra.Command, args []string) *WatchConfig {
	config := NewWatchConfig()

	if len(args) > 0 {
		config.Path = args[0]
	}
	if debounce, err := cmd.Flags().GetInt("debounce"); err == nil {
		config.DebounceTime = debounce
	}
	if cmd.Flags().Changed("min-severity") {
		config.MinSeverity, _ = cmd.Flags().GetString("min-severity")
	} else if v := viper.GetString("min_severity"); v != "" {
		config.MinSeverity = v
	}

	return config
}

func runWatch(ctx context.Context, config *WatchConfig, w io.Writer) error {
	sc, err := newScannerFromViper()
	if err != nil {
		return usageError(err)
	}
	threshold, _ := rules.ParseSeverity(config.MinSeverity)

	if err := scanAndReport(ctx, sc, config.Path, threshold, w); err != nil {
		if errors.Is(err, scanner.ErrPathNotExist) {
			return exitWith(exitFailure, errors.Errorf("path does not exist: %s", config.Path))
		}
		return exitWith(exitFailure, err)
	}

	wt, err := watcher.New(config.Path, time.Duration(config.DebounceTime)*time.Millisecond,
		func(ctx context.Context, events []watcher.Event) {
			presenter.Info(fmt.Sprintf("Change detected (%d events), rescanning %s", len(events), config.Path))
			if err := scanAndReport(ctx, sc, config.Path, threshold, w); err != nil {
				logger.G(ctx).WithError(err).Warn("rescan failed")
			}
		})
	if err != nil {
		return exitWith(exitFailure, err)
	}

	presenter.Info(fmt.Sprintf("Watching %s for changes. Press Ctrl+C to stop.", config.Path))
	if err := wt.Run(ctx); err != nil {
		return exitWith(exitFailure, err)
	}
	presenter.Info("Watch stopped")
	return nil
}

// scanAndReport scans path and writes the filtered text report to w.
func scanAndReport(ctx context.Context, sc *scanner.Scanner, path string, threshold rules.Severity, w io.Writer) error {
	result, err := sc.Scan(ctx, path)
	if err != nil {
		return err
	}
	report.WriteText(w, report.Title("", path), result.FilterMinSeverity(threshold))
	return nil
}
