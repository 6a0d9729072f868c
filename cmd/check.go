package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/assetpipe/internal/services"
)

var checkCmd = &cobra.Command{
	Use:     "check",
	Aliases: []string{"c"},
	Short:   "Validate sets, dependencies and package conflicts",
	Long: `Bootstrap the asset pipeline the way serve does and report every set
that failed to compile and every asset name two packages contributed at the
same rank. Exits non-zero when anything is broken, so it can gate CI.

Examples:
  assetpipe check
  assetpipe check -o json`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

var checkFlags *StandardFlags

func init() {
	rootCmd.AddCommand(checkCmd)

	checkFlags = AddStandardFlags(checkCmd, "output")
}

type checkResult struct {
	Healthy   bool                     `json:"healthy" yaml:"healthy"`
	Assets    int                      `json:"assets" yaml:"assets"`
	Sets      int                      `json:"sets" yaml:"sets"`
	Failed    []services.SetEntry      `json:"failed_sets,omitempty" yaml:"failed_sets,omitempty"`
	Conflicts []services.ConflictEntry `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	Summary   string                   `json:"summary" yaml:"summary"`
}

func runCheck(cmd *cobra.Command, _ []string) error {
	report, err := bootstrapReport(cmd)
	if err != nil {
		return err
	}

	failed := report.FailedSets()
	result := checkResult{
		Healthy:   report.Healthy(),
		Assets:    len(report.Assets),
		Sets:      len(report.Sets),
		Failed:    failed,
		Conflicts: report.Conflicts,
		Summary: fmt.Sprintf("%d assets, %d sets, %d failed, %d conflicts",
			len(report.Assets), len(report.Sets), len(failed), len(report.Conflicts)),
	}

	out := cmd.OutOrStdout()
	switch checkFlags.OutputFormat {
	case "json":
		err = outputJSON(out, result)
	case "yaml":
		err = outputYAML(out, result)
	default:
		if !checkFlags.Quiet {
			for _, set := range failed {
				fmt.Fprintf(out, "set %s: %s\n", set.Name, set.Error)
			}
			for _, c := range report.Conflicts {
				fmt.Fprintf(out, "conflict %s: %s\n", c.Name, strings.Join(c.Packages, ", "))
			}
			fmt.Fprintln(out, result.Summary)
		}
	}
	if err != nil {
		return err
	}

	if !result.Healthy {
		return fmt.Errorf("asset pipeline is unhealthy: %s", result.Summary)
	}
	return nil
}
