package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillscan/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Print the version information of SkillScan in JSON format.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := version.Get()
		if short, _ := cmd.Flags().GetBool("short"); short {
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return nil
		}

		out, err := info.JSON()
		if err != nil {
			return exitWith(exitFailure, errors.Wrap(err, "failed to format version info"))
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("short", false, "Print a single line instead of JSON")
}
