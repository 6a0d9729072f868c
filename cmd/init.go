package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/assetpipe/internal/services"
)

var initCmd = &cobra.Command{
	Use:     "init [directory]",
	Aliases: []string{"i"},
	Short:   "Initialize a new asset pipeline project",
	Long: `Initialize a project with the content folders and a .assetpipe.yml
configuration. If no directory is provided, initializes the current directory.

Templates:
  default   one set of example assets, no combination policies
  bundled   also combines every script and every stylesheet per request

Examples:
  assetpipe init
  assetpipe init site --template bundled
  assetpipe init --minimal --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var (
	initMinimal  bool
	initTemplate string
	initForce    bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initMinimal, "minimal", false, "Minimal setup without example assets")
	initCmd.Flags().StringVarP(&initTemplate, "template", "t", "default",
		"Project template ("+strings.Join(services.Templates, ", ")+")")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration file")
}

func runInit(cmd *cobra.Command, args []string) error {
	var projectDir string
	if len(args) == 1 {
		projectDir = args[0]
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		projectDir = cwd
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initializing asset pipeline project in %s\n", projectDir)

	err := services.NewInitService().InitProject(services.InitOptions{
		ProjectDir: projectDir,
		Minimal:    initMinimal,
		Template:   initTemplate,
		Force:      initForce,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Project initialized.")
	fmt.Fprintln(out, "\nNext steps:")
	if len(args) == 1 {
		fmt.Fprintln(out, "  cd "+projectDir)
	}
	fmt.Fprintln(out, "  assetpipe check")
	fmt.Fprintln(out, "  assetpipe serve --dev")
	return nil
}
