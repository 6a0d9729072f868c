package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/assetpipe/internal/services"
)

var listCmd = &cobra.Command{
	Use:     "list [assets|sets|combinations]",
	Aliases: []string{"l", "ls"},
	Short:   "List assets, sets or combinations",
	Long: `Bootstrap the asset pipeline and list what it resolved.

  assets        every logical asset with its type and providing package
  sets          declared sets, their members and compiled order
  combinations  combinations built by the active policies

Examples:
  assetpipe list
  assetpipe list sets -o json
  assetpipe list combinations -o yaml`,
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"assets", "sets", "combinations"},
	RunE:      runList,
}

var listFlags *StandardFlags

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags = AddStandardFlags(listCmd, "output")
}

func runList(cmd *cobra.Command, args []string) error {
	what := "assets"
	if len(args) == 1 {
		what = args[0]
	}

	report, err := bootstrapReport(cmd)
	if err != nil {
		return err
	}

	var rows any
	switch what {
	case "sets":
		rows = report.Sets
	case "combinations":
		rows = report.Combinations
	default:
		rows = report.Assets
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(listFlags.OutputFormat) {
	case "json":
		return outputJSON(out, rows)
	case "yaml":
		return outputYAML(out, rows)
	default:
		return outputTable(out, report, what)
	}
}

// bootstrapReport loads the configuration, bootstraps a pipeline and
// snapshots it.
func bootstrapReport(cmd *cobra.Command) (*services.Report, error) {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	p, err := services.NewBootstrapService(cfg, logger).Bootstrap(cmd.Context(), services.BootstrapOptions{})
	if err != nil {
		return nil, err
	}
	defer p.Close()

	return p.Report(), nil
}

func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func outputYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	return encoder.Encode(v)
}

func outputTable(out io.Writer, report *services.Report, what string) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	switch what {
	case "sets":
		fmt.Fprintln(w, "SET\tMEMBERS\tCOMPILED\tERROR")
		for _, set := range report.Sets {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				set.Name, strings.Join(set.Members, ", "), strings.Join(set.Compiled, ", "), set.Error)
		}
	case "combinations":
		fmt.Fprintln(w, "COMBINATION\tFILES")
		for _, c := range report.Combinations {
			fmt.Fprintf(w, "%s\t%s\n", c.Name, strings.Join(c.Files, ", "))
		}
	default:
		fmt.Fprintln(w, "ASSET\tTYPE\tPROVIDER\tPATH")
		for _, a := range report.Assets {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Name, a.MimeType, a.Provenance, a.Path)
		}
	}

	return w.Flush()
}
