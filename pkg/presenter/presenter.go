// Package presenter writes user-facing CLI messages: errors and warnings on
// the error stream, progress and results on the output stream, and
// severity-tagged lines coloured by risk.
package presenter

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/jingkaihe/skillscan/pkg/rules"
)

// Presenter defines the interface for consistent CLI output
type Presenter interface {
	Error(err error, context string)
	Warning(message string)
	Info(message string)
	Success(message string)
	Risk(severity rules.Severity, message string)
	SetQuiet(quiet bool)
	IsQuiet() bool
}

// ColorMode represents different color output modes
type ColorMode int

const (
	// ColorAuto leaves the decision to fatih/color's terminal detection
	ColorAuto ColorMode = iota
	// ColorAlways forces colored output
	ColorAlways
	// ColorNever disables colored output
	ColorNever
)

// ParseColorMode maps "auto", "always"/"force" and "never"/"off" to a mode.
// Unknown values are treated as auto.
func ParseColorMode(s string) ColorMode {
	switch s {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

// TerminalPresenter implements Presenter for terminal output. Its color mode
// applies to its own output only; the global color.NoColor is left alone.
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	colorMode   ColorMode
	quiet       bool
}

// New creates a TerminalPresenter on stdout/stderr with the color mode taken
// from NO_COLOR and SKILLSCAN_COLOR.
func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, detectColorMode())
}

// NewWithOptions creates a TerminalPresenter with custom settings
func NewWithOptions(output, errorOutput io.Writer, colorMode ColorMode) *TerminalPresenter {
	return &TerminalPresenter{
		output:      output,
		errorOutput: errorOutput,
		colorMode:   colorMode,
	}
}

func detectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}
	return ParseColorMode(os.Getenv("SKILLSCAN_COLOR"))
}

// paint applies the presenter's color mode to c.
func (p *TerminalPresenter) paint(c *color.Color) *color.Color {
	switch p.colorMode {
	case ColorAlways:
		c.EnableColor()
	case ColorNever:
		c.DisableColor()
	}
	return c
}

// SeverityColor returns the color a severity is rendered with.
func SeverityColor(severity rules.Severity) *color.Color {
	switch severity {
	case rules.SeverityHigh:
		return color.New(color.FgRed, color.Bold)
	case rules.SeverityMedium:
		return color.New(color.FgYellow, color.Bold)
	case rules.SeverityLow:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgGreen)
	}
}

// SeverityLabel renders a severity as a colored "[HIGH]" style tag.
func SeverityLabel(severity rules.Severity) string {
	return SeverityColor(severity).Sprintf("[%s]", severity)
}

// Error displays an error message to stderr. Errors are shown in quiet mode.
func (p *TerminalPresenter) Error(err error, context string) {
	if err == nil {
		return
	}

	c := p.paint(color.New(color.FgRed, color.Bold))
	if context != "" {
		c.Fprintf(p.errorOutput, "[ERROR] %s: %v\n", context, err)
	} else {
		c.Fprintf(p.errorOutput, "[ERROR] %v\n", err)
	}
}

// Warning displays a warning message to stderr
func (p *TerminalPresenter) Warning(message string) {
	if p.quiet {
		return
	}
	p.paint(color.New(color.FgYellow)).Fprintf(p.errorOutput, "⚠ %s\n", message)
}

// Info displays an informational message
func (p *TerminalPresenter) Info(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.output, message)
}

// Success displays a success message
func (p *TerminalPresenter) Success(message string) {
	if p.quiet {
		return
	}
	p.paint(color.New(color.FgGreen)).Fprintf(p.output, "✓ %s\n", message)
}

// Risk displays a message tagged and colored by severity
func (p *TerminalPresenter) Risk(severity rules.Severity, message string) {
	if p.quiet {
		return
	}
	tag := p.paint(SeverityColor(severity)).Sprintf("[%s]", severity)
	fmt.Fprintf(p.output, "%s %s\n", tag, message)
}

// SetQuiet enables or disables quiet mode
func (p *TerminalPresenter) SetQuiet(quiet bool) {
	p.quiet = quiet
}

// IsQuiet returns whether quiet mode is enabled
func (p *TerminalPresenter) IsQuiet() bool {
	return p.quiet
}

var defaultPresenter = New()

// Error displays an error message using the default presenter instance.
func Error(err error, context string) {
	defaultPresenter.Error(err, context)
}

// Warning displays a warning message using the default presenter instance.
func Warning(message string) {
	defaultPresenter.Warning(message)
}

// Info displays an informational message using the default presenter instance.
func Info(message string) {
	defaultPresenter.Info(message)
}

// Success displays a success message using the default presenter instance.
func Success(message string) {
	defaultPresenter.Success(message)
}

// Risk displays a severity-tagged message using the default presenter instance.
func Risk(severity rules.Severity, message string) {
	defaultPresenter.Risk(severity, message)
}

// SetQuiet enables or disables quiet mode for the default presenter instance.
func SetQuiet(quiet bool) {
	defaultPresenter.SetQuiet(quiet)
}

// IsQuiet returns whether quiet mode is enabled for the default presenter instance.
func IsQuiet() bool {
	return defaultPresenter.IsQuiet()
}
