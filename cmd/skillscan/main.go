package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillscan/pkg/logger"
	"github.com/jingkaihe/skillscan/pkg/presenter"
)

const (
	exitOK      = 0
	exitFailure = 1 // high-risk findings, missing path or failed scans
	exitUsage   = 2
)

// exitError carries the process exit code out of a command. A nil err means
// the command already reported everything it had to say.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	if code == exitOK && err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// usageError marks an invalid invocation.
func usageError(err error) error {
	return &exitError{code: exitUsage, err: err}
}

var rootCmd = &cobra.Command{
	Use:   "skillscan [path]",
	Short: "Scan agent skill packages for malicious content",
	Long: `SkillScan inspects agent skill packages (a SKILL.md manifest plus scripts and
reference files) for prompt injection, data exfiltration, privilege escalation and
supply chain patterns.

Examples:
  skillscan ./my-skill/                  scan a skill directory
  skillscan ./SKILL.md                   scan a single file
  skillscan ./skills/ --recursive        scan every skill below a directory
  skillscan ./my-skill/ --json           JSON output
  skillscan --auto                       discover and scan installed agent skills
  skillscan --auto --project ./myrepo    also scan project-level skills`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.Configure(viper.GetString("log_level"), viper.GetString("log_format")); err != nil {
			return usageError(err)
		}
		presenter.SetQuiet(viper.GetBool("quiet"))

		shutdown, err := initTracing(cmd.Context())
		if err != nil {
			logger.G(cmd.Context()).WithError(err).Warn("failed to initialise tracing")
			return nil
		}
		tracingShutdown = shutdown
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		_ = cmd.Help()
		return usageError(errors.New("path required, or use --auto"))
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt, json)")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress informational messages (reports and errors are still printed)")
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))

	rootCmd.AddCommand(withTracing(scanCmd))
	rootCmd.AddCommand(withTracing(discoverCmd))
	rootCmd.AddCommand(withTracing(watchCmd))
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(withTracing(rulesCmd))
	rootCmd.AddCommand(versionCmd)
}

// newPresenter returns a presenter on the given streams honouring --quiet.
func newPresenter(stdout, stderr io.Writer) *presenter.TerminalPresenter {
	p := presenter.NewWithOptions(stdout, stderr, presenter.ParseColorMode(viper.GetString("color")))
	p.SetQuiet(viper.GetBool("quiet"))
	return p
}

// forwardArgs routes "skillscan <path> [flags]" and "skillscan --auto" to the
// scan command. Invocations naming a subcommand, asking for help or passing
// nothing at all are left untouched.
func forwardArgs(cmd *cobra.Command, args []string) []string {
	if len(args) == 0 {
		return args
	}
	switch args[0] {
	case "-h", "--help", "help", "completion", "__complete", "__completeNoDesc":
		return args
	}
	for _, a := range args {
		for _, sub := range cmd.Commands() {
			if a == sub.Name() || sub.HasAlias(a) {
				return args
			}
		}
	}
	return append([]string{"scan"}, args...)
}

func run(ctx context.Context, args []string) int {
	// a nil slice makes cobra fall back to os.Args
	rootCmd.SetArgs(append([]string{}, forwardArgs(rootCmd, args)...))
	err := rootCmd.ExecuteContext(ctx)
	if serr := shutdownTracing(ctx); serr != nil {
		logger.G(ctx).WithError(serr).Warn("failed to flush traces")
	}
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			presenter.Error(ee.err, "")
		}
		return ee.code
	}

	// cobra argument and flag errors
	presenter.Error(err, "")
	fmt.Fprintln(os.Stderr, "Run 'skillscan --help' for usage.")
	return exitUsage
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
